// Package datetext parses the handful of date/time shapes the campus calendar
// page publishes. It is deliberately narrow: the shape is chosen by token
// count alone, and each shape maps to a fixed layout.
//
// Recognized shapes:
//
//	July 4, 2020
//	August 23, 2019, Friday
//	September 26 – 28, 2019
//	August 26, 2019, Monday, 8 AM
//	October 14 & 15, 2019, Monday & Tuesday
//	April 10, 2020, Friday, 9 AM – 5 PM
package datetext

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"campuscal/internal/model"
)

// ErrUnrecognizedFormat is matched by every parse failure.
var ErrUnrecognizedFormat = errors.New("unrecognized date format")

const (
	dateLayout        = "January 2, 2006"
	dateWeekdayLayout = "January 2, 2006, Monday"
	dateTimeLayout    = "January 2, 2006, Monday, 3 PM"
	rangeDayLayout    = "January 2 2006"
)

// FormatError describes a date text that could not be parsed.
type FormatError struct {
	Text   string
	Tokens int
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("datetext: %q (%d tokens): %v", e.Text, e.Tokens, ErrUnrecognizedFormat)
	}
	return fmt.Sprintf("datetext: %q (%d tokens): %v: %v", e.Text, e.Tokens, ErrUnrecognizedFormat, e.Err)
}

func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnrecognizedFormat}
	}
	return []error{ErrUnrecognizedFormat, e.Err}
}

// TimeRangePolicy decides what the nine-token "H1 AM – H2 PM" shape is
// reduced to. The end time is always dropped.
type TimeRangePolicy int

const (
	// KeepStartTime reduces to the date plus the first time.
	KeepStartTime TimeRangePolicy = iota
	// DateOnly reduces to the bare date.
	DateOnly
)

func (p TimeRangePolicy) String() string {
	switch p {
	case KeepStartTime:
		return "start_time"
	case DateOnly:
		return "date_only"
	default:
		return fmt.Sprintf("TimeRangePolicy(%d)", int(p))
	}
}

// ParseTimeRangePolicy maps the config value to a policy. Empty means
// KeepStartTime.
func ParseTimeRangePolicy(s string) (TimeRangePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "start_time":
		return KeepStartTime, nil
	case "date_only":
		return DateOnly, nil
	default:
		return KeepStartTime, fmt.Errorf("unknown time range policy %q", s)
	}
}

// Parser turns one date text into one or more dates. The zero value parses
// in time.Local with KeepStartTime.
type Parser struct {
	Location  *time.Location
	TimeRange TimeRangePolicy
}

// shapeFunc parses an already tokenized date text.
type shapeFunc func(p *Parser, tokens []string) ([]model.EventDate, error)

// shapes is keyed by token count.
var shapes = map[int]shapeFunc{
	3: singleDate(dateLayout, false),
	4: singleDate(dateWeekdayLayout, false),
	5: dayRange,
	6: singleDate(dateTimeLayout, true),
	8: dayRange,
	9: timeRange,
}

// Parse returns the dates described by text in ascending order. Any failure
// is a *FormatError and yields no dates.
func (p *Parser) Parse(text string) ([]model.EventDate, error) {
	tokens := strings.Fields(text)

	shape, ok := shapes[len(tokens)]
	if !ok {
		return nil, &FormatError{Text: text, Tokens: len(tokens)}
	}

	dates, err := shape(p, tokens)
	if err != nil {
		return nil, &FormatError{Text: text, Tokens: len(tokens), Err: err}
	}
	return dates, nil
}

func (p *Parser) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func singleDate(layout string, hasTime bool) shapeFunc {
	return func(p *Parser, tokens []string) ([]model.EventDate, error) {
		value := strings.TrimRight(strings.Join(tokens, " "), ",")
		t, err := time.ParseInLocation(layout, value, p.location())
		if err != nil {
			return nil, err
		}
		return []model.EventDate{{Time: t, HasTime: hasTime}}, nil
	}
}

// dayRange handles "Month D – D2, YYYY" and "Month D1 & D2, YYYY, Wd & Wd":
// tokens 0,1,4 are the first day and 0,3,4 the last.
func dayRange(p *Parser, tokens []string) ([]model.EventDate, error) {
	start, err := p.rangeDay(tokens[0], tokens[1], tokens[4])
	if err != nil {
		return nil, fmt.Errorf("range start: %w", err)
	}
	end, err := p.rangeDay(tokens[0], tokens[3], tokens[4])
	if err != nil {
		return nil, fmt.Errorf("range end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Until:   end,
	})
	if err != nil {
		return nil, err
	}

	days := r.All()
	if len(days) == 0 {
		return nil, errors.New("empty range")
	}

	out := make([]model.EventDate, 0, len(days))
	for _, d := range days {
		out = append(out, model.EventDate{Time: d.In(p.location())})
	}
	return out, nil
}

func (p *Parser) rangeDay(month, day, year string) (time.Time, error) {
	value := month + " " + strings.TrimRight(day, ",") + " " + strings.TrimRight(year, ",")
	return time.ParseInLocation(rangeDayLayout, value, p.location())
}

// timeRange drops the end time of "Month D, YYYY, Weekday, H1 AM – H2 PM"
// and parses the remainder as the three- or six-token shape.
func timeRange(p *Parser, tokens []string) ([]model.EventDate, error) {
	if p.TimeRange == DateOnly {
		return singleDate(dateLayout, false)(p, tokens[:3])
	}
	return singleDate(dateTimeLayout, true)(p, tokens[:6])
}
