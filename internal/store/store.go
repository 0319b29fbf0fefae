// Package store is the gorm-backed persistence for users and scores
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"typeboard/leaderboard-api/internal/model"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	ErrNotFound      = errors.New("record not found")
	ErrUsernameTaken = errors.New("linked username already belongs to another user")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables owned by the store
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Score{}); err != nil {
		return fmt.Errorf("failed to automigrate tables, %w", err)
	}

	if err := backfillFolded(db); err != nil {
		return fmt.Errorf("failed to backfill folded names, %w", err)
	}

	return nil
}

// backfillFolded fills the folded name columns of rows written before they existed
func backfillFolded(db *gorm.DB) error {
	var users []model.User

	err := db.Select("id", "discord_username", "monkey_type_username").
		Where("discord_name_folded = ? AND discord_username <> ?", "", "").
		Find(&users).
		Error
	if err != nil {
		return err
	}

	for _, u := range users {
		err := db.Model(&model.User{}).
			Where("id = ?", u.ID).
			Updates(map[string]any{
				"discord_name_folded": strings.ToLower(u.DiscordUsername),
				"linked_name_folded":  strings.ToLower(u.LinkedUsername()),
			}).Error
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) FindUserByDiscordID(ctx context.Context, discordID string) (*model.User, error) {
	var u model.User

	err := s.db.WithContext(ctx).
		Where("discord_id = ?", discordID).
		First(&u).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to find user, %w", err)
	}

	return &u, nil
}

// FindUsernameOwner returns a user other than excludeDiscordID that has
// username linked, optionally only among verified users
func (s *Store) FindUsernameOwner(ctx context.Context, username, excludeDiscordID string, verifiedOnly bool) (*model.User, error) {
	var u model.User

	q := s.db.WithContext(ctx).
		Where("monkey_type_username = ? AND discord_id <> ?", username, excludeDiscordID)
	if verifiedOnly {
		q = q.Where("is_verified = ?", true)
	}

	err := q.First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to look up username owner, %w", err)
	}

	return &u, nil
}

// UpsertLinkedUser creates or updates the user behind id with a verified
// link to username
func (s *Store) UpsertLinkedUser(ctx context.Context, id model.Identity, username string, now time.Time) (*model.User, error) {
	var u model.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("discord_id = ?", id.DiscordID).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			userID, err := gonanoid.Generate(idCharset, 16)
			if err != nil {
				return fmt.Errorf("failed to generate user ID, %w", err)
			}

			u = model.User{
				ID:                 userID,
				DiscordID:          id.DiscordID,
				DiscordUsername:    id.Name,
				DiscordAvatar:      id.Avatar,
				MonkeyTypeUsername: &username,
				DiscordNameFolded:  strings.ToLower(id.Name),
				LinkedNameFolded:   strings.ToLower(username),
				IsVerified:         true,
				VerificationStatus: model.StatusVerified,
				LastUpdated:        now,
			}

			return tx.Create(&u).Error
		}
		if err != nil {
			return err
		}

		err = tx.Model(&model.User{}).
			Where("id = ?", u.ID).
			Updates(map[string]any{
				"discord_username":     id.Name,
				"discord_avatar":       id.Avatar,
				"monkey_type_username": username,
				"discord_name_folded":  strings.ToLower(id.Name),
				"linked_name_folded":   strings.ToLower(username),
				"is_verified":          true,
				"verification_status":  model.StatusVerified,
				"last_updated":         now,
			}).Error
		if err != nil {
			return err
		}

		return tx.Where("id = ?", u.ID).First(&u).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}

		return nil, fmt.Errorf("failed to upsert user, %w", err)
	}

	return &u, nil
}

// ReplaceScores drops every score of userID and stores scores instead. Both
// steps share one transaction so a crash can't leave the user without rows.
func (s *Store) ReplaceScores(ctx context.Context, userID string, scores []model.Score) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Score{}).Error; err != nil {
			return err
		}

		if len(scores) == 0 {
			return nil
		}

		return tx.Create(&scores).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace scores, %w", err)
	}

	return nil
}

func (s *Store) ScoresByUser(ctx context.Context, userID string) ([]model.Score, error) {
	var scores []model.Score

	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("category").
		Find(&scores).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user scores, %w", err)
	}

	return scores, nil
}

// UpdateProfile writes academic metadata of the user behind discordID
func (s *Store) UpdateProfile(ctx context.Context, discordID string, branch string, year int, now time.Time) error {
	r := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("discord_id = ?", discordID).
		Updates(map[string]any{
			"branch":       branch,
			"year":         year,
			"last_updated": now,
		})
	if r.Error != nil {
		return fmt.Errorf("failed to update profile, %w", r.Error)
	}

	if r.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
