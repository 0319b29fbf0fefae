package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"typeboard/leaderboard-api/internal/fetcher"
	"typeboard/leaderboard-api/internal/metrics"
	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/internal/scrape"
	"typeboard/leaderboard-api/internal/store"

	"go.uber.org/zap"
)

var (
	ErrAlreadyLinkedDifferentAccount = errors.New("identity already has a verified link to another profile")
	ErrUsernameAlreadyClaimed        = errors.New("profile is linked to another verified account")
	ErrUsernameConflict              = errors.New("profile is associated with another account")
	ErrProfileNotFound               = errors.New("profile not found or not public")
	ErrBioMarkerMissing              = errors.New("profile bio is missing the verification marker")
	ErrInvalidUsername               = errors.New("invalid profile username")
	ErrNotLinked                     = errors.New("no profile linked")
	ErrIngestionBusy                 = errors.New("an ingestion for this account is already running")
	ErrFetchFailed                   = errors.New("failed to fetch profile")
)

// AlreadyLinkedError carries the username the identity is already bound to
type AlreadyLinkedError struct {
	Username string
}

func (e *AlreadyLinkedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAlreadyLinkedDifferentAccount, e.Username)
}

func (e *AlreadyLinkedError) Unwrap() error {
	return ErrAlreadyLinkedDifferentAccount
}

// IngestStore is the part of the store the ingestion pipeline writes through
type IngestStore interface {
	FindUserByDiscordID(ctx context.Context, discordID string) (*model.User, error)
	FindUsernameOwner(ctx context.Context, username, excludeDiscordID string, verifiedOnly bool) (*model.User, error)
	UpsertLinkedUser(ctx context.Context, id model.Identity, username string, now time.Time) (*model.User, error)
	ReplaceScores(ctx context.Context, userID string, scores []model.Score) error
}

type IngestorOpts struct {
	TrackWords bool
	// LeaseTTL bounds how long a crashed ingestion can block the next one
	LeaseTTL time.Duration
}

// Ingestor links profiles and refreshes their personal bests
type Ingestor struct {
	store   IngestStore
	fetcher fetcher.Fetcher
	lease   Lease
	opts    IngestorOpts
	now     func() time.Time
}

func NewIngestor(s IngestStore, f fetcher.Fetcher, l Lease, o IngestorOpts) *Ingestor {
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = 3 * time.Minute
	}

	return &Ingestor{
		store:   s,
		fetcher: f,
		lease:   l,
		opts:    o,
		now:     time.Now,
	}
}

type Result struct {
	User   *model.User
	Scores []scrape.Record
}

// NoScores is true when the profile loaded fine but held no usable personal bests
func (r *Result) NoScores() bool {
	return len(r.Scores) == 0
}

// Link binds the profile username to id, then imports its personal bests
func (in *Ingestor) Link(ctx context.Context, id model.Identity, username string) (res *Result, err error) {
	defer func() { record("link", res, err) }()

	release, err := in.lease.Acquire(ctx, "ingest:"+id.DiscordID, in.opts.LeaseTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := in.checkConflicts(ctx, id, username); err != nil {
		return nil, err
	}

	p, err := in.fetcher.FetchProfile(ctx, username)
	if err != nil {
		return nil, linkFetchError(err)
	}

	records, err := in.extract(p)
	if err != nil {
		return nil, err
	}

	now := in.now()

	user, err := in.store.UpsertLinkedUser(ctx, id, username, now)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, ErrUsernameConflict
		}

		return nil, err
	}

	if err := in.store.ReplaceScores(ctx, user.ID, buildScores(user, records, now)); err != nil {
		return nil, err
	}

	return &Result{User: user, Scores: records}, nil
}

// Refresh re-imports the personal bests of the profile already linked to id
func (in *Ingestor) Refresh(ctx context.Context, id model.Identity) (res *Result, err error) {
	defer func() { record("refresh", res, err) }()

	release, err := in.lease.Acquire(ctx, "ingest:"+id.DiscordID, in.opts.LeaseTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	user, err := in.store.FindUserByDiscordID(ctx, id.DiscordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotLinked
		}

		return nil, err
	}

	username := user.LinkedUsername()
	if username == "" {
		return nil, ErrNotLinked
	}

	p, err := in.fetcher.FetchProfile(ctx, username)
	if err != nil {
		return nil, refreshFetchError(err)
	}

	records, err := in.extract(p)
	if err != nil {
		return nil, err
	}

	if err := in.store.ReplaceScores(ctx, user.ID, buildScores(user, records, in.now())); err != nil {
		return nil, err
	}

	return &Result{User: user, Scores: records}, nil
}

// checkConflicts runs the three ownership checks in order, first match wins
func (in *Ingestor) checkConflicts(ctx context.Context, id model.Identity, username string) error {
	current, err := in.store.FindUserByDiscordID(ctx, id.DiscordID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if linked := current.LinkedUsername(); linked != "" && current.IsVerified && linked != username {
		return &AlreadyLinkedError{Username: linked}
	}

	_, err = in.store.FindUsernameOwner(ctx, username, id.DiscordID, true)
	if err == nil {
		return ErrUsernameAlreadyClaimed
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err = in.store.FindUsernameOwner(ctx, username, id.DiscordID, false)
	if err == nil {
		return ErrUsernameConflict
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return nil
}

func (in *Ingestor) extract(p *fetcher.Profile) ([]scrape.Record, error) {
	if !p.Exists {
		return nil, ErrProfileNotFound
	}

	if !p.BioContainsMarker {
		return nil, ErrBioMarkerMissing
	}

	cands, err := scrape.Extract(p.HTML)
	if err != nil {
		return nil, errors.Join(ErrFetchFailed, err)
	}

	return scrape.Sorted(scrape.Normalize(cands, in.opts.TrackWords)), nil
}

func buildScores(u *model.User, records []scrape.Record, now time.Time) []model.Score {
	scores := make([]model.Score, len(records))
	for i, r := range records {
		scores[i] = model.Score{
			UserID:             u.ID,
			DiscordID:          u.DiscordID,
			MonkeyTypeUsername: u.LinkedUsername(),
			Category:           r.Category,
			WPM:                r.WPM,
			Accuracy:           r.Accuracy,
			Consistency:        r.Consistency,
			RawWPM:             r.RawWPM,
			PersonalBest:       true,
			LastUpdated:        now,
		}
	}

	return scores
}

// linkFetchError reports a page that never loaded as missing, the caller
// can't tell a dead profile from an unreachable one
func linkFetchError(err error) error {
	switch {
	case errors.Is(err, fetcher.ErrInvalidUsername):
		return ErrInvalidUsername
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, fetcher.ErrHostMismatch):
		zap.L().Warn("Profile fetch left the expected host", zap.Error(err))
		return errors.Join(ErrFetchFailed, err)
	}

	zap.L().Warn("Profile fetch failed", zap.Error(err))
	return errors.Join(ErrProfileNotFound, err)
}

func refreshFetchError(err error) error {
	switch {
	case errors.Is(err, fetcher.ErrInvalidUsername):
		return ErrInvalidUsername
	case errors.Is(err, context.Canceled):
		return err
	}

	zap.L().Warn("Profile fetch failed", zap.Error(err))
	return errors.Join(ErrFetchFailed, err)
}

func record(op string, res *Result, err error) {
	metrics.IngestionsTotal.WithLabelValues(op, outcome(res, err)).Inc()

	if err == nil && res != nil {
		metrics.ScoresImported.Observe(float64(len(res.Scores)))
	}
}

func outcome(res *Result, err error) string {
	switch {
	case err == nil && res.NoScores():
		return "no_scores"
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyLinkedDifferentAccount),
		errors.Is(err, ErrUsernameAlreadyClaimed),
		errors.Is(err, ErrUsernameConflict):
		return "conflict"
	case errors.Is(err, ErrProfileNotFound):
		return "not_found"
	case errors.Is(err, ErrBioMarkerMissing):
		return "bio_missing"
	case errors.Is(err, ErrInvalidUsername):
		return "invalid"
	case errors.Is(err, ErrNotLinked):
		return "not_linked"
	case errors.Is(err, ErrIngestionBusy):
		return "busy"
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	}

	return "error"
}
