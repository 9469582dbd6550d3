// Package phrase renders query results as the short spoken-style replies a
// voice assistant reads back.
package phrase

import (
	"fmt"
	"strings"
	"time"

	"campuscal/internal/model"
	"campuscal/internal/query"
)

const dayLayout = "January 2, 2006"

// Date formats an event date, adding the time when the calendar gave one.
func Date(d model.EventDate) string {
	if d.HasTime {
		return d.Time.Format(dayLayout + " at 3:04 PM")
	}
	return d.Time.Format(dayLayout)
}

// When answers "when is <event>".
func When(event string, tense query.Tense, matches []model.Match) string {
	var b strings.Builder
	b.WriteString("You asked about " + event)
	if tense == query.Past {
		b.WriteString(", including past events")
	}
	b.WriteString(".\n")

	if len(matches) == 0 {
		b.WriteString("There are no events occurring with that name.")
		return b.String()
	}
	if len(matches) > 1 {
		fmt.Fprintf(&b, "I found %d possible dates for this event.\n", len(matches))
	}
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "I found %s occurring on %s.", m.Name, Date(m.Date))
	}
	return b.String()
}

// On answers "what happens on <day>". names is the joined list from a
// by-date lookup.
func On(day time.Time, names string, found bool) string {
	reply := "You asked about " + day.Format(dayLayout) + ".\n"
	if !found {
		return reply + "There were no events found."
	}
	return reply + "On that day: " + names + "."
}

// Until answers "how many days until <event>".
func Until(event string, cd model.Countdown, found bool) string {
	reply := "You asked about how many days there are until " + event + ".\n"
	switch {
	case !found:
		return reply + "There were no events found."
	case cd.Days == 0:
		return reply + cd.Name + " is today."
	case cd.Days == 1:
		return reply + "There is 1 day until " + cd.Name + "."
	default:
		return reply + fmt.Sprintf("There are %d days until %s.", cd.Days, cd.Name)
	}
}

// Upcoming answers "what's happening in the next <days> days".
func Upcoming(days int, events []model.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You asked about upcoming events in the next %d days.\n", days)

	switch len(events) {
	case 0:
		b.WriteString("There were no events found.")
		return b.String()
	case 1:
		fmt.Fprintf(&b, "There is one event in the next %d days:\n", days)
	default:
		fmt.Fprintf(&b, "There are %d events in the next %d days:\n", len(events), days)
	}

	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.Name+" on "+Date(e.Date))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	return b.String()
}

// WindowOutOfRange is the reply for a day count outside 1..max.
func WindowOutOfRange(max int) string {
	return fmt.Sprintf("Number of days must be between 1 and %d.", max)
}
