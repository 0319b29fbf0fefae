package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"typeboard/leaderboard-api/internal/model"

	"gorm.io/gorm"
)

const entryColumns = `scores.wpm, scores.accuracy, scores.consistency, scores.raw_wpm, scores.last_updated,
users.id AS user_id, users.discord_username, users.discord_avatar, users.monkey_type_username,
users.branch, users.year, users.edu_email_verified`

type entryRow struct {
	WPM                int       `gorm:"column:wpm"`
	Accuracy           int       `gorm:"column:accuracy"`
	Consistency        int       `gorm:"column:consistency"`
	RawWPM             int       `gorm:"column:raw_wpm"`
	LastUpdated        time.Time `gorm:"column:last_updated"`
	UserID             string    `gorm:"column:user_id"`
	DiscordUsername    string    `gorm:"column:discord_username"`
	DiscordAvatar      string    `gorm:"column:discord_avatar"`
	MonkeyTypeUsername *string   `gorm:"column:monkey_type_username"`
	Branch             string    `gorm:"column:branch"`
	Year               int       `gorm:"column:year"`
	EduEmailVerified   bool      `gorm:"column:edu_email_verified"`
}

func (r entryRow) entry() model.Entry {
	e := model.Entry{
		WPM:         r.WPM,
		Accuracy:    r.Accuracy,
		Consistency: r.Consistency,
		RawWPM:      r.RawWPM,
		LastUpdated: r.LastUpdated,
		User: model.Public{
			ID:               r.UserID,
			DiscordUsername:  r.DiscordUsername,
			DiscordAvatar:    r.DiscordAvatar,
			Branch:           r.Branch,
			Year:             r.Year,
			EduEmailVerified: r.EduEmailVerified,
		},
	}

	if r.MonkeyTypeUsername != nil {
		e.User.MonkeyTypeUsername = *r.MonkeyTypeUsername
	}

	return e
}

func entries(rows []entryRow) []model.Entry {
	out := make([]model.Entry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}

	return out
}

// rankable is every personal best in cat owned by a verified user
func rankable(tx *gorm.DB, cat model.Category) *gorm.DB {
	return tx.Table("scores").
		Joins("JOIN users ON users.id = scores.user_id").
		Where("scores.category = ? AND scores.personal_best = ? AND users.is_verified = ?", cat, true, true)
}

// LeaderboardPage returns one page of rankable scores together with the
// total they were sliced from. Both reads share a transaction so the total
// and the page come from the same snapshot.
func (s *Store) LeaderboardPage(ctx context.Context, cat model.Category, offset, limit int) ([]model.Entry, int64, error) {
	var (
		total int64
		rows  []entryRow
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rankable(tx, cat).Count(&total).Error; err != nil {
			return err
		}

		if int64(offset) >= total {
			return nil
		}

		return rankable(tx, cat).
			Select(entryColumns).
			Order("scores.wpm DESC, scores.accuracy DESC, scores.consistency DESC, scores.id ASC").
			Offset(offset).
			Limit(limit).
			Scan(&rows).
			Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read leaderboard, %w", err)
	}

	return entries(rows), total, nil
}

// EscapeLike escapes the LIKE wildcards in s, using \ as escape character
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// matchTier ranks a row against the folded needle: 3 for an exact name, 2 for
// a prefix and 1 for any other substring
const matchTier = `CASE
WHEN users.discord_name_folded = ? OR users.linked_name_folded = ? THEN 3
WHEN users.discord_name_folded LIKE ? ESCAPE '\' OR users.linked_name_folded LIKE ? ESCAPE '\' THEN 2
ELSE 1 END AS match_tier`

// SubstringMatches returns rankable scores in cat whose owner has needle in
// either username, case-insensitive. Rows are ordered by match tier, then
// speed and accuracy, and at most max are returned.
func (s *Store) SubstringMatches(ctx context.Context, cat model.Category, needle string, max int) ([]model.Entry, error) {
	var rows []entryRow

	folded := strings.ToLower(needle)
	escaped := EscapeLike(folded)
	contains := "%" + escaped + "%"
	prefix := escaped + "%"

	err := rankable(s.db.WithContext(ctx), cat).
		Select(entryColumns+", "+matchTier, folded, folded, prefix, prefix).
		Where(`(users.discord_name_folded LIKE ? ESCAPE '\' OR users.linked_name_folded LIKE ? ESCAPE '\')`, contains, contains).
		Order("match_tier DESC, scores.wpm DESC, scores.accuracy DESC, scores.id ASC").
		Limit(max).
		Scan(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to search scores, %w", err)
	}

	return entries(rows), nil
}

// VerifiedUsers returns up to max verified users, oldest first
func (s *Store) VerifiedUsers(ctx context.Context, max int) ([]model.User, error) {
	var users []model.User

	err := s.db.WithContext(ctx).
		Select("id", "discord_username", "monkey_type_username").
		Where("is_verified = ?", true).
		Order("created_at ASC").
		Limit(max).
		Find(&users).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list verified users, %w", err)
	}

	return users, nil
}

// PersonalBests returns the rankable scores in cat for userIDs, keyed by user ID
func (s *Store) PersonalBests(ctx context.Context, cat model.Category, userIDs []string) (map[string]model.Entry, error) {
	out := make(map[string]model.Entry, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []entryRow

	err := rankable(s.db.WithContext(ctx), cat).
		Select(entryColumns).
		Where("scores.user_id IN ?", userIDs).
		Scan(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch personal bests, %w", err)
	}

	for _, r := range rows {
		out[r.UserID] = r.entry()
	}

	return out, nil
}
