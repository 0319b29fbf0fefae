package model

// Category is a personal-best bucket. Time buckets use the "{n}s" form,
// every word-count test is folded into CategoryWords.
type Category string

const (
	Category15s   Category = "15s"
	Category30s   Category = "30s"
	Category60s   Category = "60s"
	Category120s  Category = "120s"
	CategoryWords Category = "words"
)

// TimeCategories is the set of categories tracked when word tests are disabled
var TimeCategories = []Category{Category15s, Category30s, Category60s, Category120s}

// Categories returns the closed set of accepted categories in display order
func Categories(trackWords bool) []Category {
	if !trackWords {
		return TimeCategories
	}

	return append(append([]Category{}, TimeCategories...), CategoryWords)
}

// Valid reports whether c belongs to the accepted set
func (c Category) Valid(trackWords bool) bool {
	for _, v := range Categories(trackWords) {
		if v == c {
			return true
		}
	}

	return false
}

// Order is the position of c in the display order, unknown categories sort last
func (c Category) Order() int {
	for i, v := range Categories(true) {
		if v == c {
			return i
		}
	}

	return len(TimeCategories) + 1
}
