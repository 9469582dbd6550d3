package export

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuscal/internal/calindex"
	"campuscal/internal/datetext"
	appLog "campuscal/internal/log"
	"campuscal/internal/model"
)

func TestMain(m *testing.M) {
	appLog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var unescape = strings.NewReplacer(`\,`, ",", `\;`, ";", `\\`, `\`)

func buildIndex(t *testing.T) *calindex.Index {
	t.Helper()
	idx := calindex.Build([]model.RawEntry{
		{Label: "Independence Day, College Closed", DateText: "July 4, 2020"},
		{Label: "Classes Begin", DateText: "August 26, 2019, Monday, 8 AM"},
		{Label: "Fall Break", DateText: "October 14 & 15, 2019, Monday & Tuesday"},
	}, &datetext.Parser{Location: time.UTC})
	require.Equal(t, 4, idx.Len())
	return idx
}

func TestICSRoundTrip(t *testing.T) {
	body := ICS(buildIndex(t), time.UTC, "")
	assert.Contains(t, body, "PRODID:"+DefaultProdID)

	cal, err := ical.ParseCalendar(strings.NewReader(body))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 4)

	summaries := make([]string, 0, len(events))
	uids := map[string]bool{}
	for _, ev := range events {
		summaries = append(summaries, unescape.Replace(ev.GetProperty(ical.ComponentPropertySummary).Value))
		uids[ev.Id()] = true
	}
	assert.Equal(t, []string{
		"Independence Day, College Closed",
		"Classes Begin",
		"Fall Break",
		"Fall Break",
	}, summaries)
	assert.Len(t, uids, 4, "every entry gets its own UID")
}

func TestICSAllDayAndTimed(t *testing.T) {
	cal, err := ical.ParseCalendar(strings.NewReader(ICS(buildIndex(t), time.UTC, "")))
	require.NoError(t, err)
	events := cal.Events()

	allDay := events[0].GetProperty(ical.ComponentPropertyDtStart)
	require.NotNil(t, allDay)
	assert.Equal(t, "20200704", allDay.Value)
	assert.Equal(t, []string{"DATE"}, allDay.ICalParameters["VALUE"])

	start, err := events[1].GetStartAt()
	require.NoError(t, err)
	end, err := events[1].GetEndAt()
	require.NoError(t, err)
	assert.True(t, time.Date(2019, time.August, 26, 8, 0, 0, 0, time.UTC).Equal(start))
	assert.Equal(t, time.Hour, end.Sub(start))
}

func TestEventUIDStable(t *testing.T) {
	d := model.EventDate{Time: time.Date(2020, time.July, 4, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, eventUID("Independence Day", d), eventUID("Independence Day", d))
	assert.NotEqual(t, eventUID("Independence Day", d), eventUID("Independence Day Day 2", d))
}
