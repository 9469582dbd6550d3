package calindex

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuscal/internal/datetext"
	appLog "campuscal/internal/log"
	"campuscal/internal/model"
)

func TestMain(m *testing.M) {
	appLog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func utcParser() *datetext.Parser {
	return &datetext.Parser{Location: time.UTC}
}

func TestBuildSingleEntries(t *testing.T) {
	idx := Build([]model.RawEntry{
		{Label: "Independence Day, College Closed", DateText: "July 4, 2020"},
		{Label: "Classes Begin", DateText: "August 26, 2019, Monday, 8 AM"},
	}, utcParser())

	require.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"Independence Day, College Closed", "Classes Begin"}, idx.Keys())

	d, ok := idx.Get("Independence Day, College Closed")
	require.True(t, ok)
	assert.True(t, time.Date(2020, time.July, 4, 0, 0, 0, 0, time.UTC).Equal(d.Time))
	assert.False(t, d.HasTime)

	d, ok = idx.Get("Classes Begin")
	require.True(t, ok)
	assert.True(t, d.HasTime)
	assert.Equal(t, 8, d.Time.Hour())
}

func TestBuildDuplicateLabels(t *testing.T) {
	idx := Build([]model.RawEntry{
		{Label: "Reading Day", DateText: "December 9, 2019"},
		{Label: "Reading Day", DateText: "December 12, 2019"},
		{Label: "Reading Day", DateText: "May 6, 2020"},
	}, utcParser())

	assert.Equal(t, []string{"Reading Day", "Reading Day Day 2", "Reading Day Day 3"}, idx.Keys())
}

func TestBuildRangeExpandsUnderOneLabel(t *testing.T) {
	idx := Build([]model.RawEntry{
		{Label: "Homecoming & Family Weekend", DateText: "September 26 – 28, 2019"},
	}, utcParser())

	require.Equal(t, 3, idx.Len())
	keys := idx.Keys()
	assert.Equal(t, []string{
		"Homecoming & Family Weekend",
		"Homecoming & Family Weekend Day 2",
		"Homecoming & Family Weekend Day 3",
	}, keys)
	for i, k := range keys {
		d, _ := idx.Get(k)
		assert.Equal(t, 26+i, d.Time.Day())
	}
}

func TestBuildProbesPastExistingSuffixes(t *testing.T) {
	// "Break Day 2" is a real label that happens to look like a suffix.
	idx := Build([]model.RawEntry{
		{Label: "Break Day 2", DateText: "March 10, 2020"},
		{Label: "Break", DateText: "March 9, 2020"},
		{Label: "Break", DateText: "March 11, 2020"},
	}, utcParser())

	assert.Equal(t, []string{"Break Day 2", "Break", "Break Day 3"}, idx.Keys())
}

func TestBuildSkipsUnparsableEntries(t *testing.T) {
	idx := Build([]model.RawEntry{
		{Label: "Good", DateText: "July 4, 2020"},
		{Label: "Bad", DateText: "TBA"},
		{Label: "Also bad", DateText: "Julember 4, 2020"},
		{Label: "Good too", DateText: "July 5, 2020"},
	}, utcParser())

	assert.Equal(t, []string{"Good", "Good too"}, idx.Keys())

	skipped := idx.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, "Bad", skipped[0].Entry.Label)
	assert.Equal(t, "Also bad", skipped[1].Entry.Label)
	for _, s := range skipped {
		assert.True(t, errors.Is(s.Err, datetext.ErrUnrecognizedFormat))
	}
}

func TestEachStopsEarly(t *testing.T) {
	idx := Build([]model.RawEntry{
		{Label: "A", DateText: "July 1, 2020"},
		{Label: "B", DateText: "July 2, 2020"},
		{Label: "C", DateText: "July 3, 2020"},
	}, utcParser())

	var seen []string
	idx.Each(func(key string, _ model.EventDate) bool {
		seen = append(seen, key)
		return key != "B"
	})
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestKeysReturnsCopy(t *testing.T) {
	idx := Build([]model.RawEntry{{Label: "A", DateText: "July 1, 2020"}}, nil)

	keys := idx.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"A"}, idx.Keys())
}
