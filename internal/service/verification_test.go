package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/pkg/ratelimit"
	"typeboard/leaderboard-api/pkg/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) SendCode(_ context.Context, to, _, code string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+":"+code)
	return nil
}

type verifierEnv struct {
	store    *memStore
	mailer   *fakeMailer
	verifier *EmailVerifier
	now      time.Time
}

func newVerifierEnv(t *testing.T) *verifierEnv {
	t.Helper()

	counters := ratelimit.NewMemoryStore()
	t.Cleanup(func() { counters.Close() })

	env := &verifierEnv{
		store:  newMemStore(),
		mailer: &fakeMailer{},
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	hasher := security.New()
	hasher.Memory = 1024
	hasher.Iterations = 1

	env.verifier = NewEmailVerifier(env.store, env.mailer, hasher, counters, VerifierOpts{})
	env.verifier.now = func() time.Time { return env.now }
	env.verifier.genCode = func() (string, error) { return "123456", nil }

	mine := "alice_mt"
	env.store.put(&model.User{ID: "u1", DiscordID: alice.DiscordID, DiscordUsername: "alice", MonkeyTypeUsername: &mine, IsVerified: true})

	return env
}

const aliceMail = "alice@learner.example.edu"

func TestSendAndVerify(t *testing.T) {
	env := newVerifierEnv(t)
	ctx := context.Background()

	exp, err := env.verifier.Send(ctx, alice, aliceMail)
	require.NoError(t, err)
	assert.Equal(t, env.now.Add(10*time.Minute), exp)
	assert.Equal(t, []string{aliceMail + ":123456"}, env.mailer.sent)

	u := env.store.users[alice.DiscordID]
	assert.NotEqual(t, "123456", u.VerificationCodeHash, "code is stored hashed")
	assert.Equal(t, 1, u.VerificationAttempts)

	_, err = env.verifier.Verify(ctx, alice, "654321")
	assert.ErrorIs(t, err, ErrCodeMismatch)

	verified, err := env.verifier.Verify(ctx, alice, "123456")
	require.NoError(t, err)
	assert.True(t, verified.EduEmailVerified)
	assert.True(t, env.store.users[alice.DiscordID].EduEmailVerified)

	_, err = env.verifier.Verify(ctx, alice, "123456")
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestSendCooldownAndCaps(t *testing.T) {
	env := newVerifierEnv(t)
	ctx := context.Background()

	_, err := env.verifier.Send(ctx, alice, aliceMail)
	require.NoError(t, err)

	env.now = env.now.Add(30 * time.Second)
	_, err = env.verifier.Send(ctx, alice, aliceMail)

	var cd *CooldownError
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, 90, cd.Seconds())

	env.now = env.now.Add(2 * time.Minute)
	_, err = env.verifier.Send(ctx, alice, aliceMail)
	require.NoError(t, err)

	env.now = env.now.Add(3 * time.Minute)
	_, err = env.verifier.Send(ctx, alice, aliceMail)
	require.NoError(t, err)

	env.now = env.now.Add(3 * time.Minute)
	_, err = env.verifier.Send(ctx, alice, aliceMail)
	assert.ErrorIs(t, err, ErrHourlyCap)
	assert.Len(t, env.mailer.sent, 3)
}

func TestSendDailyCap(t *testing.T) {
	env := newVerifierEnv(t)
	env.verifier.opts.HourlyCap = 100
	env.verifier.opts.DailyCap = 2
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.verifier.Send(ctx, alice, aliceMail)
		require.NoError(t, err)
		env.now = env.now.Add(3 * time.Minute)
	}

	_, err := env.verifier.Send(ctx, alice, aliceMail)
	assert.ErrorIs(t, err, ErrDailyCap)
}

func TestSendRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		env := newVerifierEnv(t)
		_, err := env.verifier.Send(ctx, model.Identity{DiscordID: "999"}, aliceMail)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("already verified", func(t *testing.T) {
		env := newVerifierEnv(t)
		u := env.store.users[alice.DiscordID]
		u.EduEmail, u.EduEmailVerified = aliceMail, true

		_, err := env.verifier.Send(ctx, alice, aliceMail)
		assert.ErrorIs(t, err, ErrEmailVerified)
	})

	t.Run("owned by another account", func(t *testing.T) {
		env := newVerifierEnv(t)
		env.store.put(&model.User{ID: "u2", DiscordID: "2", EduEmail: aliceMail, EduEmailVerified: true})

		_, err := env.verifier.Send(ctx, alice, aliceMail)
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("mail failure", func(t *testing.T) {
		env := newVerifierEnv(t)
		env.mailer.err = errors.New("smtp down")

		_, err := env.verifier.Send(ctx, alice, aliceMail)
		assert.ErrorIs(t, err, ErrMailFailed)
	})
}

func TestVerifyExpired(t *testing.T) {
	env := newVerifierEnv(t)
	ctx := context.Background()

	_, err := env.verifier.Send(ctx, alice, aliceMail)
	require.NoError(t, err)

	env.now = env.now.Add(11 * time.Minute)
	_, err = env.verifier.Verify(ctx, alice, "123456")
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestVerifyBurnsCodeAfterRepeatedFailures(t *testing.T) {
	env := newVerifierEnv(t)
	env.verifier.opts.MaxWrongCodes = 3
	ctx := context.Background()

	_, err := env.verifier.Send(ctx, alice, aliceMail)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = env.verifier.Verify(ctx, alice, "000000")
		assert.ErrorIs(t, err, ErrCodeMismatch)
	}

	_, err = env.verifier.Verify(ctx, alice, "000000")
	assert.ErrorIs(t, err, ErrTooManyCodeAttempts)

	_, err = env.verifier.Verify(ctx, alice, "123456")
	assert.ErrorIs(t, err, ErrNoCode)
}

type sweepStore struct {
	calls int
	n     int64
}

func (s *sweepStore) ClearExpiredCodes(context.Context, time.Time) (int64, error) {
	s.calls++
	return s.n, nil
}

func TestCodeCleanup(t *testing.T) {
	s := &sweepStore{n: 2}
	sweepCodes(s)
	assert.Equal(t, 1, s.calls)

	_, err := CodeCleanup("not a schedule", s)
	assert.Error(t, err)

	c, err := CodeCleanup("@every 1h", s)
	require.NoError(t, err)
	c.Stop()
}
