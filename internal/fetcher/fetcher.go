// Package fetcher loads external profile pages. Implementations are
// swappable, the ingestion pipeline only depends on Fetcher.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"typeboard/leaderboard-api/pkg/validators"
)

var (
	ErrInvalidUsername = errors.New("username can't be used in a profile URL")
	ErrHostMismatch    = errors.New("profile URL resolved to an unexpected host")
	ErrUnreachable     = errors.New("profile page could not be loaded")
)

// Profile is the result of loading one profile page
type Profile struct {
	Exists            bool
	BioContainsMarker bool
	HTML              string
}

type Fetcher interface {
	FetchProfile(ctx context.Context, username string) (*Profile, error)
}

// ProfileURL builds the profile URL for username under base. The username
// is checked before anything is built and the result must stay on host.
func ProfileURL(base, host, username string) (string, error) {
	if !validators.UsernameSafeForURL(username) {
		return "", ErrInvalidUsername
	}

	u, err := url.Parse(strings.TrimRight(base, "/") + "/profile/" + url.PathEscape(username))
	if err != nil {
		return "", fmt.Errorf("failed to build profile URL, %w", err)
	}

	if err := CheckHost(u.String(), host); err != nil {
		return "", err
	}

	return u.String(), nil
}

// CheckHost fails unless raw parses and its hostname equals host exactly
func CheckHost(raw, host string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrHostMismatch
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return ErrHostMismatch
	}

	if u.Hostname() != host {
		return ErrHostMismatch
	}

	return nil
}
