package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationCodeLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a := link(t, s, "100000000000000001", "alice", "alice_mt")
	b := link(t, s, "100000000000000002", "bob", "bob_mt")

	require.NoError(t, s.SetVerificationCode(ctx, a.ID, "alice@learner.example.edu", "hash", now.Add(10*time.Minute), now))

	u, err := s.FindUserByDiscordID(ctx, a.DiscordID)
	require.NoError(t, err)
	assert.Equal(t, "alice@learner.example.edu", u.EduEmail)
	assert.Equal(t, "hash", u.VerificationCodeHash)
	assert.Equal(t, 1, u.VerificationAttempts)
	require.NotNil(t, u.LastVerificationEmailSent)

	_, err = s.FindVerifiedEmailOwner(ctx, "alice@learner.example.edu", b.DiscordID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.MarkEmailVerified(ctx, a.ID, now))

	u, err = s.FindUserByDiscordID(ctx, a.DiscordID)
	require.NoError(t, err)
	assert.True(t, u.EduEmailVerified)
	assert.Empty(t, u.VerificationCodeHash)
	assert.Nil(t, u.VerificationCodeExpiresAt)

	owner, err := s.FindVerifiedEmailOwner(ctx, "alice@learner.example.edu", b.DiscordID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, owner.ID)
}

func TestClearExpiredCodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a := link(t, s, "100000000000000001", "alice", "alice_mt")
	b := link(t, s, "100000000000000002", "bob", "bob_mt")

	require.NoError(t, s.SetVerificationCode(ctx, a.ID, "a@x.edu", "h1", now.Add(-time.Minute), now.Add(-11*time.Minute)))
	require.NoError(t, s.SetVerificationCode(ctx, b.ID, "b@x.edu", "h2", now.Add(5*time.Minute), now))

	n, err := s.ClearExpiredCodes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	u, err := s.FindUserByDiscordID(ctx, b.DiscordID)
	require.NoError(t, err)
	assert.Equal(t, "h2", u.VerificationCodeHash)
}

func TestClearVerificationCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a := link(t, s, "100000000000000001", "alice", "alice_mt")
	require.NoError(t, s.SetVerificationCode(ctx, a.ID, "a@x.edu", "h1", now.Add(time.Minute), now))
	require.NoError(t, s.ClearVerificationCode(ctx, a.ID))

	u, err := s.FindUserByDiscordID(ctx, a.DiscordID)
	require.NoError(t, err)
	assert.Empty(t, u.VerificationCodeHash)
	assert.Nil(t, u.VerificationCodeExpiresAt)
	assert.Equal(t, "a@x.edu", u.EduEmail)
}
