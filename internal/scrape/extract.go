// Package scrape fetches the published calendar page and pulls the
// (event label, date text) pairs out of it.
package scrape

import (
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	appLog "campuscal/internal/log"
	"campuscal/internal/model"
)

// Selectors name the CSS selectors of event labels and date texts. The Nth
// match of Event belongs to the Nth match of Date.
type Selectors struct {
	Event string
	Date  string
}

// DefaultSelectors match the markup of the academic calendar page.
var DefaultSelectors = Selectors{Event: ".ev", Date: ".date"}

// Extract reads an HTML document and pairs event labels with date texts by
// position. If the counts differ, the common prefix is returned and the
// mismatch logged.
func Extract(r io.Reader, sel Selectors) ([]model.RawEntry, error) {
	if sel.Event == "" || sel.Date == "" {
		return nil, errors.New("scrape: event and date selectors are required")
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	labels := texts(doc.Find(sel.Event))
	dates := texts(doc.Find(sel.Date))

	n := len(labels)
	if len(dates) != n {
		appLog.Error("scrape: label/date count mismatch; pairing common prefix",
			errors.New("count mismatch"),
			"labels", len(labels),
			"dates", len(dates),
		)
		n = min(n, len(dates))
	}

	entries := make([]model.RawEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, model.RawEntry{Label: labels[i], DateText: dates[i]})
	}

	appLog.Debug("scrape: extracted entries", "count", len(entries))
	return entries, nil
}

// texts returns the whitespace-collapsed text of every selected node.
func texts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, node *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(node.Text()), " "))
	})
	return out
}
