package model

import "time"

// RawEntry is one scraped (event label, date text) pair, before the date
// text has been parsed. The Nth label on the page belongs to the Nth date text.
type RawEntry struct {
	Label    string
	DateText string
}

// EventDate is a calendar day in the display timezone, optionally carrying a
// time-of-day. Date-only values sit at local midnight.
type EventDate struct {
	Time    time.Time
	HasTime bool
}

// Match is a single query candidate. Similarity is on a 0–100 scale; 100 means
// the normalized key contains the normalized query.
type Match struct {
	Name       string
	Date       EventDate
	Similarity int
}

// Countdown is the best upcoming match for an event together with the number
// of whole calendar days from today until it.
type Countdown struct {
	Match
	Days int
}
