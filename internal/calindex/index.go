// Package calindex builds the immutable event index from scraped entries.
package calindex

import (
	"strconv"
	"time"

	"campuscal/internal/datetext"
	appLog "campuscal/internal/log"
	"campuscal/internal/model"
)

// SkippedEntry records a raw entry whose date text could not be parsed.
type SkippedEntry struct {
	Entry model.RawEntry
	Err   error
}

// Index maps a unique event key to its date. It is never modified after
// Build returns, so it is safe for concurrent readers.
type Index struct {
	keys    []string
	dates   map[string]model.EventDate
	skipped []SkippedEntry
	builtAt time.Time
}

// Build parses every entry and inserts one key per resulting date. A label
// that is already taken gets the first free " Day N" suffix, N >= 2.
//
// Entries whose date text fails to parse are logged, recorded in Skipped and
// otherwise ignored; one bad row never aborts the build.
func Build(entries []model.RawEntry, p *datetext.Parser) *Index {
	if p == nil {
		p = &datetext.Parser{}
	}

	idx := &Index{
		dates:   make(map[string]model.EventDate, len(entries)),
		builtAt: time.Now(),
	}

	for _, e := range entries {
		dates, err := p.Parse(e.DateText)
		if err != nil {
			appLog.Error("calindex: skipping entry with unparsable date", err,
				"label", e.Label,
				"date_text", e.DateText,
			)
			idx.skipped = append(idx.skipped, SkippedEntry{Entry: e, Err: err})
			continue
		}

		for _, d := range dates {
			idx.insert(e.Label, d)
		}
	}

	appLog.Info("calindex: build completed",
		"entries", len(entries),
		"keys", len(idx.keys),
		"skipped", len(idx.skipped),
	)
	return idx
}

func (idx *Index) insert(label string, d model.EventDate) {
	key := idx.freeKey(label)
	idx.keys = append(idx.keys, key)
	idx.dates[key] = d
}

// freeKey probes label, label Day 2, label Day 3, ... against the key set.
func (idx *Index) freeKey(label string) string {
	if _, taken := idx.dates[label]; !taken {
		return label
	}
	for n := 2; ; n++ {
		candidate := label + " Day " + strconv.Itoa(n)
		if _, taken := idx.dates[candidate]; !taken {
			return candidate
		}
	}
}

// Len returns the number of keys.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// Keys returns the keys in insertion order.
func (idx *Index) Keys() []string {
	out := make([]string, len(idx.keys))
	copy(out, idx.keys)
	return out
}

func (idx *Index) Get(key string) (model.EventDate, bool) {
	d, ok := idx.dates[key]
	return d, ok
}

// Each calls fn for every entry in insertion order until fn returns false.
func (idx *Index) Each(fn func(key string, d model.EventDate) bool) {
	for _, k := range idx.keys {
		if !fn(k, idx.dates[k]) {
			return
		}
	}
}

// Skipped lists the entries dropped because their date text did not parse.
func (idx *Index) Skipped() []SkippedEntry {
	out := make([]SkippedEntry, len(idx.skipped))
	copy(out, idx.skipped)
	return out
}

func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}
