// Package export renders a calendar index as an iCalendar feed so the
// scraped calendar can be subscribed to from ordinary calendar clients.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	ical "github.com/arran4/golang-ical"

	"campuscal/internal/calindex"
	"campuscal/internal/model"
	"campuscal/internal/normalize"
)

// DefaultProdID identifies feeds produced by this program.
const DefaultProdID = "-//campuscal//academic calendar//EN"

const timedEventLength = time.Hour

// ICS serializes every entry of idx as a VEVENT, in index order. Date-only
// entries become all-day events; entries with a time get a one-hour slot.
// Summaries use the cleaned display name so "Reading Day Day 2" shows up as
// "Reading Day".
func ICS(idx *calindex.Index, loc *time.Location, prodID string) string {
	if loc == nil {
		loc = time.UTC
	}
	if prodID == "" {
		prodID = DefaultProdID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)
	cal.SetXWRTimezone(loc.String())

	stamp := idx.BuiltAt().UTC()
	idx.Each(func(key string, d model.EventDate) bool {
		ev := cal.AddEvent(eventUID(key, d))
		ev.SetDtStampTime(stamp)
		ev.SetSummary(normalize.DisplayName(key))

		start := d.Time.In(loc)
		if d.HasTime {
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(timedEventLength))
		} else {
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
		}
		return true
	})

	return cal.Serialize()
}

// eventUID is stable across rebuilds as long as the key and date are.
func eventUID(key string, d model.EventDate) string {
	sum := sha256.Sum256([]byte(key + "\x00" + d.Time.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:12]) + "@campuscal"
}
