package scrape

import (
	"math"
	"regexp"
	"sort"

	"typeboard/leaderboard-api/internal/model"
)

const (
	MaxSpeed    = 500
	MaxAccuracy = 100
)

var wordTag = regexp.MustCompile(`^\d+w$`)

// Record is a validated personal best ready to be stored
type Record struct {
	Category    model.Category `json:"category"`
	WPM         int            `json:"wpm"`
	Accuracy    int            `json:"accuracy"`
	Consistency int            `json:"consistency"`
	RawWPM      int            `json:"rawWpm"`
}

// Normalize filters candidates against the accepted categories and ranges
// and keeps a single record per category. The faster candidate wins, ties
// keep the one seen first.
func Normalize(cands []Candidate, trackWords bool) map[model.Category]Record {
	out := make(map[model.Category]Record)
	best := make(map[model.Category]float64)

	for _, c := range cands {
		cat := categoryOf(c.Category)
		if !cat.Valid(trackWords) {
			continue
		}

		if c.Speed < 0 || c.Speed > MaxSpeed || c.Accuracy < 0 || c.Accuracy > MaxAccuracy {
			continue
		}

		if prev, ok := best[cat]; ok && prev >= c.Speed {
			continue
		}

		raw := c.RawSpeed
		if raw <= 0 {
			raw = c.Speed
		}

		consistency := c.Consistency
		if consistency < 0 || consistency > 100 {
			consistency = 0
		}

		best[cat] = c.Speed
		out[cat] = Record{
			Category:    cat,
			WPM:         round(c.Speed),
			Accuracy:    round(c.Accuracy),
			Consistency: round(consistency),
			RawWPM:      round(raw),
		}
	}

	return out
}

// Sorted returns the records in category display order
func Sorted(m map[model.Category]Record) []Record {
	out := make([]Record, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Category.Order() < out[j].Category.Order()
	})

	return out
}

func categoryOf(tag string) model.Category {
	if wordTag.MatchString(tag) {
		return model.CategoryWords
	}

	return model.Category(tag)
}

func round(f float64) int {
	return int(math.Round(f))
}
