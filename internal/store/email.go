package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"typeboard/leaderboard-api/internal/model"

	"gorm.io/gorm"
)

// FindVerifiedEmailOwner returns a user other than excludeDiscordID that has
// already verified email
func (s *Store) FindVerifiedEmailOwner(ctx context.Context, email, excludeDiscordID string) (*model.User, error) {
	var u model.User

	err := s.db.WithContext(ctx).
		Where("edu_email = ? AND edu_email_verified = ? AND discord_id <> ?", email, true, excludeDiscordID).
		First(&u).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to look up email owner, %w", err)
	}

	return &u, nil
}

// SetVerificationCode stores a pending code hash for email on userID
func (s *Store) SetVerificationCode(ctx context.Context, userID, email, hash string, expiresAt, sentAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"edu_email":                    email,
			"edu_email_verified":           false,
			"verification_code_hash":       hash,
			"verification_code_expires_at": expiresAt,
			"last_verification_email_sent": sentAt,
			"verification_attempts":        gorm.Expr("verification_attempts + 1"),
			"last_updated":                 sentAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to store verification code, %w", err)
	}

	return nil
}

// MarkEmailVerified flags the pending email of userID as verified and drops
// the code
func (s *Store) MarkEmailVerified(ctx context.Context, userID string, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"edu_email_verified":           true,
			"verification_code_hash":       "",
			"verification_code_expires_at": nil,
			"last_updated":                 now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark email verified, %w", err)
	}

	return nil
}

// ClearVerificationCode drops the pending code of userID
func (s *Store) ClearVerificationCode(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"verification_code_hash":       "",
			"verification_code_expires_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to clear verification code, %w", err)
	}

	return nil
}

// ClearExpiredCodes drops every verification code that expired before now
func (s *Store) ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	r := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("verification_code_expires_at < ?", now).
		Updates(map[string]any{
			"verification_code_hash":       "",
			"verification_code_expires_at": nil,
		})
	if r.Error != nil {
		return 0, fmt.Errorf("failed to clear expired codes, %w", r.Error)
	}

	return r.RowsAffected, nil
}
