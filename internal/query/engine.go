// Package query answers questions against a built calendar index: fuzzy
// lookup by event name, lookup by day, and upcoming-window listings.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"campuscal/internal/calindex"
	"campuscal/internal/fuzzy"
	"campuscal/internal/model"
	"campuscal/internal/normalize"
)

const (
	DefaultLimit     = 3
	DefaultThreshold = 20
)

// ErrInvalidWindow is returned by EventsInWindow for a non-positive day count.
var ErrInvalidWindow = errors.New("query: window must be a positive number of days")

// Tense filters name lookups by date.
type Tense int

const (
	// NotPast admits only events dated today or later.
	NotPast Tense = iota
	// Past admits every event.
	Past
)

func (t Tense) String() string {
	if t == Past {
		return "past"
	}
	return "notpast"
}

// ParseTense accepts "past" and "notpast" (also "not_past"); empty means NotPast.
func ParseTense(s string) (Tense, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "notpast", "not_past":
		return NotPast, nil
	case "past":
		return Past, nil
	default:
		return NotPast, fmt.Errorf("unknown tense %q", s)
	}
}

// Engine runs queries over one immutable index. It holds no per-query state
// and may be shared between goroutines.
type Engine struct {
	idx       *calindex.Index
	now       func() time.Time
	loc       *time.Location
	limit     int
	threshold int
}

type Option func(*Engine)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone in which calendar days are compared.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithLimit sets how many matches LookupByName returns at most.
func WithLimit(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.limit = k
		}
	}
}

// WithThreshold sets the minimum similarity (0–100) a match needs.
func WithThreshold(t int) Option {
	return func(e *Engine) {
		if t >= 0 && t <= 100 {
			e.threshold = t
		}
	}
}

func New(idx *calindex.Index, opts ...Option) *Engine {
	e := &Engine{
		idx:       idx,
		now:       time.Now,
		loc:       time.Local,
		limit:     DefaultLimit,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Index() *calindex.Index {
	return e.idx
}

// LookupByName returns up to the configured limit of events whose names best
// match name, most similar first. A key containing the query scores 100.
func (e *Engine) LookupByName(name string, tense Tense, clean bool) []model.Match {
	q := normalize.QueryKey(name)
	if q == "" {
		return nil
	}

	today := e.today()
	best := newTopK(e.limit, e.threshold)

	e.idx.Each(func(key string, d model.EventDate) bool {
		if tense == NotPast && e.dayOf(d.Time).Before(today) {
			return true
		}

		k := normalize.QueryKey(key)
		similarity := 100
		if !strings.Contains(k, q) {
			similarity = fuzzy.PartialRatio(q, k)
		}

		best.offer(model.Match{
			Name:       e.displayName(key, clean),
			Date:       d,
			Similarity: similarity,
		})
		return true
	})

	return best.results()
}

// DaysUntil returns the best upcoming match for name and how many calendar
// days away it is.
func (e *Engine) DaysUntil(name string, clean bool) (model.Countdown, bool) {
	matches := e.LookupByName(name, NotPast, clean)
	if len(matches) == 0 {
		return model.Countdown{}, false
	}

	m := matches[0]
	return model.Countdown{
		Match: m,
		Days:  daysBetween(e.today(), e.dayOf(m.Date.Time)),
	}, true
}

// LookupByDate joins the names of every event on the same calendar day as
// day, ignoring time of day: "A", "A and B", "A, B, and C".
func (e *Engine) LookupByDate(day time.Time, clean bool) (string, bool) {
	target := e.dayOf(day)

	var names []string
	e.idx.Each(func(key string, d model.EventDate) bool {
		if e.dayOf(d.Time).Equal(target) {
			names = append(names, e.displayName(key, clean))
		}
		return true
	})

	if len(names) == 0 {
		return "", false
	}
	return normalize.JoinNames(names), true
}

// EventsInWindow lists every event strictly between now and now+days,
// earliest first.
func (e *Engine) EventsInWindow(days int, clean bool) ([]model.Match, error) {
	if days <= 0 {
		return nil, ErrInvalidWindow
	}

	now := e.now()
	cutoff := now.AddDate(0, 0, days)

	var out []model.Match
	e.idx.Each(func(key string, d model.EventDate) bool {
		if d.Time.After(now) && d.Time.Before(cutoff) {
			out = append(out, model.Match{Name: e.displayName(key, clean), Date: d})
		}
		return true
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Time.Before(out[j].Date.Time)
	})
	return out, nil
}

func (e *Engine) displayName(key string, clean bool) string {
	if clean {
		return normalize.DisplayName(key)
	}
	return key
}

func (e *Engine) today() time.Time {
	return e.dayOf(e.now())
}

// dayOf truncates t to midnight of its calendar day in the engine location.
func (e *Engine) dayOf(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// daysBetween counts calendar days from a to b, unaffected by DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
