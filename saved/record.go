package saved

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Scores are the catalog's ranking signals for an item at the time it was
// resolved.
type Scores struct {
	Heat      float64 `json:"heat"`
	Relevance float64 `json:"relevance"`
	Comments  int     `json:"comments"`
}

// Record is a denormalized snapshot of a news topic. It's a cache entry, not a
// source of truth, so it may be stale.
type Record struct {
	Region   string `json:"region"`
	ItemID   string `json:"itemId"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Scores   Scores `json:"scores"`
	// When the original source published the story. Used for sorting.
	SourcePublishedAt *time.Time `json:"sourcePublishedAt,omitempty"`
	// When the catalog published its topic page
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Key returns the Key that identifies r
func (r Record) Key() (Key, error) {
	return NewKey(r.Region, r.ItemID)
}

// Validate returns an error if r can't be displayed or stored
func (r Record) Validate() error {
	if _, err := r.Key(); err != nil {
		return err
	}
	if r.Title == "" {
		return errors.New("record has no title")
	}
	return nil
}

// SortByRecency orders records by source publish time, newest first. Records
// without a source publish time sort as the oldest. Ties are broken by the
// catalog publish time and then by key so that the order depends only on the
// records themselves.
func SortByRecency(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if c := compareTimes(records[i].SourcePublishedAt, records[j].SourcePublishedAt); c != 0 {
			return c > 0
		}
		if c := compareTimes(records[i].PublishedAt, records[j].PublishedAt); c != 0 {
			return c > 0
		}
		return recordKeyString(records[i]) < recordKeyString(records[j])
	})
}

// compareTimes treats nil as earlier than any timestamp
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func recordKeyString(r Record) string {
	return fmt.Sprintf("%v%v%v", r.Region, keySeparator, r.ItemID)
}
