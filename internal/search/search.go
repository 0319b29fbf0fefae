// Package search finds leaderboard entries by username, either by tiered
// substring matching or by edit-distance similarity
package search

import (
	"context"
	"fmt"
	"sort"

	"typeboard/leaderboard-api/internal/model"
)

type Mode string

const (
	ModePartial Mode = "partial"
	ModeFuzzy   Mode = "fuzzy"
)

const (
	TierSubstring = 1
	TierPrefix    = 2
	TierExact     = 3
)

const (
	MatchDiscord = "discord"
	MatchLinked  = "monkeytype"
)

const (
	DefaultLimit = 10
	MaxLimit     = 20

	// MinSimilarity is exclusive
	MinSimilarity = 0.4
)

// Source is the read side of the store used by the engine
type Source interface {
	SubstringMatches(ctx context.Context, cat model.Category, needle string, max int) ([]model.Entry, error)
	VerifiedUsers(ctx context.Context, max int) ([]model.User, error)
	PersonalBests(ctx context.Context, cat model.Category, userIDs []string) (map[string]model.Entry, error)
}

type Result struct {
	model.Entry
	MatchPriority int     `json:"matchPriority,omitempty"`
	Similarity    float64 `json:"similarity,omitempty"`
	MatchType     string  `json:"matchType,omitempty"`
	SearchRank    int     `json:"searchRank"`
}

type Options struct {
	// FuzzyCandidates bounds the users scored in fuzzy mode
	FuzzyCandidates int
}

type Engine struct {
	src  Source
	opts Options
}

func New(src Source, opts Options) *Engine {
	if opts.FuzzyCandidates <= 0 {
		opts.FuzzyCandidates = 1000
	}

	return &Engine{src: src, opts: opts}
}

// ClampLimit maps a requested limit onto [1, MaxLimit], 0 selects the default
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}

	return limit
}

// Search runs query in the given mode. query and cat are expected to be
// validated already.
func (e *Engine) Search(ctx context.Context, query string, cat model.Category, mode Mode, limit int) ([]Result, error) {
	limit = ClampLimit(limit)

	var (
		results []Result
		err     error
	)

	switch mode {
	case ModeFuzzy:
		results, err = e.fuzzy(ctx, query, cat, limit)
	default:
		results, err = e.partial(ctx, query, cat, limit)
	}
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].SearchRank = i + 1
	}

	return results, nil
}

func (e *Engine) partial(ctx context.Context, query string, cat model.Category, limit int) ([]Result, error) {
	// The store tiers, orders and truncates so exact and prefix matches are
	// never cut by slower substring matches
	entries, err := e.src.SubstringMatches(ctx, cat, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run partial search, %w", err)
	}

	results := make([]Result, len(entries))
	for i, en := range entries {
		results[i] = Result{
			Entry:         en,
			MatchPriority: Tier(query, en.User.DiscordUsername, en.User.MonkeyTypeUsername),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.MatchPriority != b.MatchPriority {
			return a.MatchPriority > b.MatchPriority
		}
		if a.WPM != b.WPM {
			return a.WPM > b.WPM
		}
		return a.Accuracy > b.Accuracy
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

type fuzzyMatch struct {
	userID     string
	similarity float64
	field      string
}

func (e *Engine) fuzzy(ctx context.Context, query string, cat model.Category, limit int) ([]Result, error) {
	users, err := e.src.VerifiedUsers(ctx, e.opts.FuzzyCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load search candidates, %w", err)
	}

	matches := make([]fuzzyMatch, 0, len(users))
	for _, u := range users {
		sim, field := Similarity(query, u.DiscordUsername, u.LinkedUsername())
		if sim <= MinSimilarity {
			continue
		}

		matches = append(matches, fuzzyMatch{userID: u.ID, similarity: sim, field: field})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	if len(matches) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.userID
	}

	bests, err := e.src.PersonalBests(ctx, cat, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up fuzzy matches, %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		en, ok := bests[m.userID]
		if !ok {
			continue
		}

		results = append(results, Result{
			Entry:      en,
			Similarity: m.similarity,
			MatchType:  m.field,
		})
	}

	return results, nil
}
