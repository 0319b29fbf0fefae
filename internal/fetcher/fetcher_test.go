package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	profile *Profile
	err     error
}

func (s *stubFetcher) FetchProfile(context.Context, string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	return s.profile, s.err
}

func TestProfileURL(t *testing.T) {
	got, err := ProfileURL("https://monkeytype.com/", "monkeytype.com", "speedy_01")
	require.NoError(t, err)
	assert.Equal(t, "https://monkeytype.com/profile/speedy_01", got)

	for _, name := range []string{"", "a/b", "..%2f", "x@evil.com", "a?b", "white space"} {
		_, err := ProfileURL("https://monkeytype.com", "monkeytype.com", name)
		assert.ErrorIs(t, err, ErrInvalidUsername, name)
	}

	_, err = ProfileURL("https://monkeytype.com.evil.io", "monkeytype.com", "speedy")
	assert.ErrorIs(t, err, ErrHostMismatch)
}

func TestCheckHost(t *testing.T) {
	assert.NoError(t, CheckHost("https://monkeytype.com/profile/x", "monkeytype.com"))
	assert.ErrorIs(t, CheckHost("https://www.monkeytype.com/profile/x", "monkeytype.com"), ErrHostMismatch)
	assert.ErrorIs(t, CheckHost("https://evil.com/monkeytype.com", "monkeytype.com"), ErrHostMismatch)
	assert.ErrorIs(t, CheckHost("file:///etc/passwd", ""), ErrHostMismatch)
	assert.ErrorIs(t, CheckHost("::not a url", "monkeytype.com"), ErrHostMismatch)
}

func TestBreakerFetcher_OpensAfterFailures(t *testing.T) {
	stub := &stubFetcher{err: ErrUnreachable}
	b := NewBreakerFetcher(stub, BreakerOpts{Name: "test-open", MaxFailures: 2, Timeout: time.Minute})

	for range 2 {
		_, err := b.FetchProfile(context.Background(), "speedy")
		assert.ErrorIs(t, err, ErrUnreachable)
	}

	_, err := b.FetchProfile(context.Background(), "speedy")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, 2, stub.calls, "open circuit must not reach the remote side")
}

func TestBreakerFetcher_BadInputDoesNotTrip(t *testing.T) {
	stub := &stubFetcher{err: ErrInvalidUsername}
	b := NewBreakerFetcher(stub, BreakerOpts{Name: "test-input", MaxFailures: 1, Timeout: time.Minute})

	for range 3 {
		_, err := b.FetchProfile(context.Background(), "bad/name")
		assert.ErrorIs(t, err, ErrInvalidUsername)
	}

	assert.Equal(t, 3, stub.calls)
}

func TestPacedFetcher_ContextCancelled(t *testing.T) {
	stub := &stubFetcher{profile: &Profile{Exists: true}}
	p := NewPacedFetcher(stub, 0.001, 1)

	_, err := p.FetchProfile(context.Background(), "speedy")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.FetchProfile(ctx, "speedy")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, 1, stub.calls)
}

func TestBreakerFetcher_PacingDoesNotTrip(t *testing.T) {
	stub := &stubFetcher{profile: &Profile{Exists: true}}
	b := NewBreakerFetcher(NewPacedFetcher(stub, 0.001, 1), BreakerOpts{Name: "test-pacing", MaxFailures: 1, Timeout: time.Minute})

	_, err := b.FetchProfile(context.Background(), "speedy")
	require.NoError(t, err)

	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := b.FetchProfile(ctx, "speedy")
		cancel()

		assert.ErrorIs(t, err, ErrPacingExceeded)
	}

	assert.Equal(t, gobreaker.StateClosed, b.cb.State())
	assert.Equal(t, 1, stub.calls)
}

type memSnapshots struct {
	keys []string
	err  error
}

func (m *memSnapshots) PutSnapshot(_ context.Context, key string, _ []byte) error {
	m.keys = append(m.keys, key)
	return m.err
}

func TestSnapshotFetcher(t *testing.T) {
	store := &memSnapshots{err: errors.New("bucket gone")}
	stub := &stubFetcher{profile: &Profile{Exists: true, HTML: "<html></html>"}}

	s := NewSnapshotFetcher(stub, store)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	p, err := s.FetchProfile(context.Background(), "speedy")
	require.NoError(t, err, "snapshot failures must not fail the fetch")
	assert.True(t, p.Exists)
	assert.Equal(t, []string{"snapshots/speedy/1700000000.html"}, store.keys)

	stub.profile = &Profile{Exists: false}
	_, err = s.FetchProfile(context.Background(), "speedy")
	require.NoError(t, err)
	assert.Len(t, store.keys, 1)
}
