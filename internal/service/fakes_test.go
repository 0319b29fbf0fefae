package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"typeboard/leaderboard-api/internal/fetcher"
	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/internal/store"
)

// memStore keeps users by Discord ID and scores by user ID
type memStore struct {
	mu     sync.Mutex
	users  map[string]*model.User
	scores map[string][]model.Score

	replaceErr error
	replaced   int
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*model.User{},
		scores: map[string][]model.Score{},
	}
}

func (m *memStore) put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.DiscordID] = u
}

func (m *memStore) FindUserByDiscordID(_ context.Context, discordID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[discordID]
	if !ok {
		return nil, store.ErrNotFound
	}

	cp := *u
	return &cp, nil
}

func (m *memStore) FindUsernameOwner(_ context.Context, username, exclude string, verifiedOnly bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.DiscordID == exclude || u.LinkedUsername() != username {
			continue
		}
		if verifiedOnly && !u.IsVerified {
			continue
		}

		cp := *u
		return &cp, nil
	}

	return nil, store.ErrNotFound
}

func (m *memStore) UpsertLinkedUser(_ context.Context, id model.Identity, username string, now time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id.DiscordID]
	if !ok {
		u = &model.User{ID: "user-" + id.DiscordID, DiscordID: id.DiscordID}
		m.users[id.DiscordID] = u
	}

	u.DiscordUsername = id.Name
	u.DiscordAvatar = id.Avatar
	u.MonkeyTypeUsername = &username
	u.IsVerified = true
	u.VerificationStatus = model.StatusVerified
	u.LastUpdated = now

	cp := *u
	return &cp, nil
}

func (m *memStore) ReplaceScores(_ context.Context, userID string, scores []model.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replaceErr != nil {
		return m.replaceErr
	}

	m.replaced++
	m.scores[userID] = scores
	return nil
}

func (m *memStore) FindVerifiedEmailOwner(_ context.Context, email, exclude string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.DiscordID != exclude && u.EduEmail == email && u.EduEmailVerified {
			cp := *u
			return &cp, nil
		}
	}

	return nil, store.ErrNotFound
}

func (m *memStore) byID(id string) *model.User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *memStore) SetVerificationCode(_ context.Context, userID, email, hash string, expiresAt, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.byID(userID)
	if u == nil {
		return errors.New("no such user")
	}

	u.EduEmail = email
	u.EduEmailVerified = false
	u.VerificationCodeHash = hash
	u.VerificationCodeExpiresAt = &expiresAt
	u.LastVerificationEmailSent = &sentAt
	u.VerificationAttempts++
	return nil
}

func (m *memStore) MarkEmailVerified(_ context.Context, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.byID(userID)
	u.EduEmailVerified = true
	u.VerificationCodeHash = ""
	u.VerificationCodeExpiresAt = nil
	return nil
}

func (m *memStore) ClearVerificationCode(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.byID(userID)
	u.VerificationCodeHash = ""
	u.VerificationCodeExpiresAt = nil
	return nil
}

// stubFetcher returns a canned page or error and counts calls
type stubFetcher struct {
	mu      sync.Mutex
	profile *fetcher.Profile
	err     error
	calls   int
	block   chan struct{}
}

func (s *stubFetcher) FetchProfile(ctx context.Context, _ string) (*fetcher.Profile, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.profile, nil
}
