// Package leaderboard slices ranked personal bests into pages
package leaderboard

import (
	"context"
	"fmt"

	"typeboard/leaderboard-api/internal/model"
)

// Source returns one slice of the ranked rows of a category together with
// the number of rows it was cut from
type Source interface {
	LeaderboardPage(ctx context.Context, cat model.Category, offset, limit int) ([]model.Entry, int64, error)
}

type Row struct {
	Rank int `json:"rank"`
	model.Entry
}

type Page struct {
	Category        model.Category `json:"category"`
	TotalUsers      int64          `json:"totalUsers"`
	CurrentPage     int            `json:"currentPage"`
	TotalPages      int            `json:"totalPages"`
	HasNextPage     bool           `json:"hasNextPage"`
	HasPreviousPage bool           `json:"hasPreviousPage"`
	Leaderboard     []Row          `json:"leaderboard"`
}

func Offset(page, limit int) int {
	return (page - 1) * limit
}

func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}

	return int((total + int64(limit) - 1) / int64(limit))
}

type Ranker struct {
	src Source
}

func NewRanker(src Source) *Ranker {
	return &Ranker{src: src}
}

// Page returns the 1-based page of cat. page and limit are expected to be
// validated already.
func (r *Ranker) Page(ctx context.Context, cat model.Category, page, limit int) (*Page, error) {
	offset := Offset(page, limit)

	entries, total, err := r.src.LeaderboardPage(ctx, cat, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard page, %w", err)
	}

	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{Rank: offset + i + 1, Entry: e}
	}

	return &Page{
		Category:        cat,
		TotalUsers:      total,
		CurrentPage:     page,
		TotalPages:      TotalPages(total, limit),
		HasNextPage:     int64(page)*int64(limit) < total,
		HasPreviousPage: page > 1,
		Leaderboard:     rows,
	}, nil
}
