package query

import (
	"sort"

	"campuscal/internal/model"
)

// topK keeps at most k matches with similarity >= threshold, highest first.
// A fresh one is made for every query.
type topK struct {
	k         int
	threshold int
	items     []model.Match
}

func newTopK(k, threshold int) *topK {
	return &topK{
		k:         k,
		threshold: threshold,
		items:     make([]model.Match, 0, k),
	}
}

// offer admits m if it clears the threshold and either there is room or it
// is at least as similar as the current lowest member, which it replaces.
func (t *topK) offer(m model.Match) {
	if m.Similarity < t.threshold || t.k <= 0 {
		return
	}

	if len(t.items) < t.k {
		t.items = append(t.items, m)
	} else {
		last := len(t.items) - 1
		if m.Similarity < t.items[last].Similarity {
			return
		}
		t.items[last] = m
	}

	sort.SliceStable(t.items, func(i, j int) bool {
		return t.items[i].Similarity > t.items[j].Similarity
	})
}

func (t *topK) results() []model.Match {
	if len(t.items) == 0 {
		return nil
	}
	out := make([]model.Match, len(t.items))
	copy(out, t.items)
	return out
}
