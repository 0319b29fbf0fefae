package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"typeboard/leaderboard-api/internal/metrics"
	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/internal/store"
	"typeboard/leaderboard-api/pkg/ratelimit"
	"typeboard/leaderboard-api/pkg/security"

	"go.uber.org/zap"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailVerified       = errors.New("this email is already verified")
	ErrEmailTaken          = errors.New("this email is already verified by another account")
	ErrHourlyCap           = errors.New("too many verification attempts, try again in an hour")
	ErrDailyCap            = errors.New("daily limit reached, try again tomorrow")
	ErrMailFailed          = errors.New("failed to send verification email")
	ErrNoCode              = errors.New("no verification code found, request a new code")
	ErrCodeExpired         = errors.New("verification code has expired, request a new code")
	ErrCodeMismatch        = errors.New("invalid verification code")
	ErrTooManyCodeAttempts = errors.New("too many wrong codes, request a new code later")
	ErrAlreadyVerified     = errors.New("email is already verified")
)

// CooldownError is returned while the previous mail is too recent
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("wait %d seconds before requesting another verification code", e.Seconds())
}

// Seconds rounds the remaining wait up
func (e *CooldownError) Seconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

type VerifyStore interface {
	FindUserByDiscordID(ctx context.Context, discordID string) (*model.User, error)
	FindVerifiedEmailOwner(ctx context.Context, email, excludeDiscordID string) (*model.User, error)
	SetVerificationCode(ctx context.Context, userID, email, hash string, expiresAt, sentAt time.Time) error
	MarkEmailVerified(ctx context.Context, userID string, now time.Time) error
	ClearVerificationCode(ctx context.Context, userID string) error
}

type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}

type VerifierOpts struct {
	Cooldown        time.Duration
	CodeTTL         time.Duration
	HourlyCap       int
	DailyCap        int
	MaxWrongCodes   int
	WrongCodeWindow time.Duration
}

// EmailVerifier proves ownership of an institutional address with a mailed code
type EmailVerifier struct {
	store    VerifyStore
	mailer   Mailer
	hasher   Hasher
	counters ratelimit.Store
	opts     VerifierOpts
	now      func() time.Time
	genCode  func() (string, error)
}

func NewEmailVerifier(s VerifyStore, m Mailer, h Hasher, counters ratelimit.Store, o VerifierOpts) *EmailVerifier {
	if o.Cooldown <= 0 {
		o.Cooldown = 2 * time.Minute
	}
	if o.CodeTTL <= 0 {
		o.CodeTTL = 10 * time.Minute
	}
	if o.HourlyCap <= 0 {
		o.HourlyCap = 3
	}
	if o.DailyCap <= 0 {
		o.DailyCap = 10
	}
	if o.MaxWrongCodes <= 0 {
		o.MaxWrongCodes = 5
	}
	if o.WrongCodeWindow <= 0 {
		o.WrongCodeWindow = 10 * time.Minute
	}

	return &EmailVerifier{
		store:    s,
		mailer:   m,
		hasher:   h,
		counters: counters,
		opts:     o,
		now:      time.Now,
		genCode:  security.GenerateCode,
	}
}

// Send mails a fresh code to email, which must already be validated and
// lower-cased. It returns when the code expires.
func (v *EmailVerifier) Send(ctx context.Context, id model.Identity, email string) (time.Time, error) {
	u, err := v.user(ctx, id)
	if err != nil {
		return time.Time{}, err
	}

	if u.EduEmailVerified && u.EduEmail == email {
		return time.Time{}, ErrEmailVerified
	}

	_, err = v.store.FindVerifiedEmailOwner(ctx, email, id.DiscordID)
	if err == nil {
		return time.Time{}, ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return time.Time{}, err
	}

	now := v.now()

	if last := u.LastVerificationEmailSent; last != nil {
		if since := now.Sub(*last); since < v.opts.Cooldown {
			return time.Time{}, &CooldownError{Remaining: v.opts.Cooldown - since}
		}
	}

	n, _, err := v.counters.Hit(ctx, "mail:hour:"+id.DiscordID, time.Hour)
	if err != nil {
		return time.Time{}, err
	}
	if n > v.opts.HourlyCap {
		return time.Time{}, ErrHourlyCap
	}

	n, _, err = v.counters.Hit(ctx, "mail:day:"+id.DiscordID, 24*time.Hour)
	if err != nil {
		return time.Time{}, err
	}
	if n > v.opts.DailyCap {
		return time.Time{}, ErrDailyCap
	}

	code, err := v.genCode()
	if err != nil {
		return time.Time{}, err
	}

	hash, err := v.hasher.Hash(code)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to hash verification code, %w", err)
	}

	expiresAt := now.Add(v.opts.CodeTTL)
	if err := v.store.SetVerificationCode(ctx, u.ID, email, hash, expiresAt, now); err != nil {
		return time.Time{}, err
	}

	if err := v.mailer.SendCode(ctx, email, u.DiscordUsername, code); err != nil {
		metrics.VerificationMails.WithLabelValues("failed").Inc()
		zap.L().Error("Failed to send verification mail", zap.Error(err), zap.String("discordID", id.DiscordID))

		return time.Time{}, ErrMailFailed
	}

	metrics.VerificationMails.WithLabelValues("sent").Inc()

	return expiresAt, nil
}

// Verify checks code against the pending one and marks the email verified
func (v *EmailVerifier) Verify(ctx context.Context, id model.Identity, code string) (*model.User, error) {
	u, err := v.user(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.VerificationCodeHash == "" || u.VerificationCodeExpiresAt == nil {
		return nil, ErrNoCode
	}

	now := v.now()
	if now.After(*u.VerificationCodeExpiresAt) {
		return nil, ErrCodeExpired
	}

	ok, err := v.hasher.Verify(code, u.VerificationCodeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check verification code, %w", err)
	}

	if !ok {
		n, _, err := v.counters.Hit(ctx, "verify:fail:"+id.DiscordID, v.opts.WrongCodeWindow)
		if err == nil && n >= v.opts.MaxWrongCodes {
			// Burn the code so guessing can't continue
			if err := v.store.ClearVerificationCode(ctx, u.ID); err != nil {
				return nil, err
			}

			return nil, ErrTooManyCodeAttempts
		}

		return nil, ErrCodeMismatch
	}

	if u.EduEmailVerified {
		return nil, ErrAlreadyVerified
	}

	if err := v.store.MarkEmailVerified(ctx, u.ID, now); err != nil {
		return nil, err
	}

	u.EduEmailVerified = true
	u.VerificationCodeHash = ""
	u.VerificationCodeExpiresAt = nil

	return u, nil
}

func (v *EmailVerifier) user(ctx context.Context, id model.Identity) (*model.User, error) {
	u, err := v.store.FindUserByDiscordID(ctx, id.DiscordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	return u, nil
}
