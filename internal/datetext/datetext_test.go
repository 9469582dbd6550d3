package datetext

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eastern = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, eastern)
}

func TestParseSingleDates(t *testing.T) {
	p := &Parser{Location: eastern}

	tests := []struct {
		name    string
		text    string
		want    time.Time
		hasTime bool
	}{
		{"three tokens", "July 4, 2020", day(2020, time.July, 4), false},
		{"four tokens", "August 23, 2019, Friday", day(2019, time.August, 23), false},
		{"four tokens wrong weekday is not validated", "August 23, 2019, Monday", day(2019, time.August, 23), false},
		{"six tokens", "August 26, 2019, Monday, 8 AM", time.Date(2019, time.August, 26, 8, 0, 0, 0, eastern), true},
		{"six tokens afternoon", "May 1, 2020, Friday, 12 PM", time.Date(2020, time.May, 1, 12, 0, 0, 0, eastern), true},
		{"extra whitespace", "  July  4,\t2020 ", day(2020, time.July, 4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.text)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.True(t, tt.want.Equal(got[0].Time), "got %s want %s", got[0].Time, tt.want)
			assert.Equal(t, tt.hasTime, got[0].HasTime)
		})
	}
}

func TestParseRanges(t *testing.T) {
	p := &Parser{Location: eastern}

	tests := []struct {
		name  string
		text  string
		first time.Time
		count int
	}{
		{"dash range", "September 26 – 28, 2019", day(2019, time.September, 26), 3},
		{"ampersand pair", "October 14 & 15, 2019, Monday & Tuesday", day(2019, time.October, 14), 2},
		{"single day range", "March 9 - 9, 2020", day(2020, time.March, 9), 1},
		{"range across DST change", "March 7 – 10, 2020", day(2020, time.March, 7), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.text)
			require.NoError(t, err)
			require.Len(t, got, tt.count)
			for i, d := range got {
				want := tt.first.AddDate(0, 0, i)
				assert.True(t, want.Equal(d.Time), "day %d: got %s want %s", i, d.Time, want)
				assert.False(t, d.HasTime)
			}
		})
	}
}

func TestParseTimeRangePolicies(t *testing.T) {
	const text = "April 10, 2020, Friday, 9 AM – 5 PM"

	t.Run("keep start time", func(t *testing.T) {
		p := &Parser{Location: eastern, TimeRange: KeepStartTime}
		got, err := p.Parse(text)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, time.Date(2020, time.April, 10, 9, 0, 0, 0, eastern).Equal(got[0].Time))
		assert.True(t, got[0].HasTime)
	})

	t.Run("date only", func(t *testing.T) {
		p := &Parser{Location: eastern, TimeRange: DateOnly}
		got, err := p.Parse(text)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, day(2020, time.April, 10).Equal(got[0].Time))
		assert.False(t, got[0].HasTime)
	})
}

func TestParseUnrecognizedTokenCounts(t *testing.T) {
	p := &Parser{Location: eastern}

	for _, text := range []string{
		"",
		"TBA",
		"July 2020",
		"Spring semester 2020 begins soon ok now",
		"one two three four five six seven eight nine ten",
	} {
		t.Run(text, func(t *testing.T) {
			got, err := p.Parse(text)
			assert.Nil(t, got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnrecognizedFormat))

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, text, fe.Text)
		})
	}
}

func TestParseMalformedWithinShape(t *testing.T) {
	p := &Parser{Location: eastern}

	for _, text := range []string{
		"Julember 4, 2020",
		"July 44, 2020",
		"September 28 – 26, 2019",
		"September xx – 28, 2019",
		"August 26, 2019, Monday, 8 XM",
	} {
		t.Run(text, func(t *testing.T) {
			got, err := p.Parse(text)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrUnrecognizedFormat)
		})
	}
}

func TestZeroParserUsesLocal(t *testing.T) {
	var p Parser
	got, err := p.Parse("July 4, 2020")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Local, got[0].Time.Location())
}

func TestParseTimeRangePolicy(t *testing.T) {
	p, err := ParseTimeRangePolicy("")
	require.NoError(t, err)
	assert.Equal(t, KeepStartTime, p)

	p, err = ParseTimeRangePolicy("Date_Only")
	require.NoError(t, err)
	assert.Equal(t, DateOnly, p)
	assert.Equal(t, "date_only", p.String())

	_, err = ParseTimeRangePolicy("end_time")
	assert.Error(t, err)
}
