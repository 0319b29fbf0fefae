package validators

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"typeboard/leaderboard-api/internal/model"
)

var (
	ErrQueryEmpty    = errors.New("search query is required")
	ErrQueryTooShort = errors.New("search query must be at least 2 characters long")
	ErrQueryTooLong  = errors.New("search query must be 50 characters or less")
	ErrQueryInvalid  = errors.New("search query contains invalid characters")

	ErrCategoryEmpty = errors.New("category is required")

	ErrPageInvalid  = errors.New("page must be a number between 1 and 10000")
	ErrLimitInvalid = errors.New("limit must be a number between 1 and 100")
)

const (
	MaxPage      = 10000
	MaxLimit     = 100
	DefaultLimit = 20
)

var queryForbidden = []*regexp.Regexp{
	regexp.MustCompile(`^\$`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`\.\.`),
	regexp.MustCompile(`(?i)null`),
	regexp.MustCompile(`(?i)union.*select`),
	regexp.MustCompile(`(?i)drop.*table`),
	regexp.MustCompile(`(?i)delete.*from`),
	regexp.MustCompile(`(?i)insert.*into`),
	regexp.MustCompile(`(?i)update.*set`),
}

// SearchQuery validates a search string and returns it trimmed
func SearchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	n := utf8.RuneCountInString(q)

	switch {
	case q == "":
		return "", ErrQueryEmpty
	case n < 2:
		return "", ErrQueryTooShort
	case n > 50:
		return "", ErrQueryTooLong
	}

	for _, p := range queryForbidden {
		if p.MatchString(q) {
			return "", ErrQueryInvalid
		}
	}

	return q, nil
}

// Category parses c against the accepted categories
func Category(c string, trackWords bool) (model.Category, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return "", ErrCategoryEmpty
	}

	cat := model.Category(c)
	if !cat.Valid(trackWords) {
		valid := make([]string, 0, 5)
		for _, v := range model.Categories(trackWords) {
			valid = append(valid, string(v))
		}

		return "", fmt.Errorf("invalid category. Must be one of: %s", strings.Join(valid, ", "))
	}

	return cat, nil
}

// Pagination parses optional page and limit strings. Empty values fall back
// to page 1 and DefaultLimit.
func Pagination(page, limit string) (int, int, error) {
	p, l := 1, DefaultLimit

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 || n > MaxPage {
			return 0, 0, ErrPageInvalid
		}
		p = n
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > MaxLimit {
			return 0, 0, ErrLimitInvalid
		}
		l = n
	}

	return p, l, nil
}
