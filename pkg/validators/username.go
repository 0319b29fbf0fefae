// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrUsernameEmpty    = errors.New("username is required")
	ErrUsernameTooShort = errors.New("username must be at least 2 characters")
	ErrUsernameTooLong  = errors.New("username must be 50 characters or less")
	ErrUsernameCharset  = errors.New("username can only contain letters, numbers, periods, hyphens, and underscores")
	ErrUsernameInvalid  = errors.New("username contains invalid characters")

	ErrDiscordIDInvalid = errors.New("invalid discord ID format")
)

const maxUsernameLen = 50

var (
	usernameCharset = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	discordID       = regexp.MustCompile(`^\d{17,19}$`)

	usernameForbidden = []*regexp.Regexp{
		regexp.MustCompile(`^\$`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`\.\.`),
		regexp.MustCompile(`(?i)null`),
		regexp.MustCompile(`(?i)union`),
		regexp.MustCompile(`(?i)select`),
		regexp.MustCompile(`(?i)drop`),
		regexp.MustCompile(`(?i)delete`),
		regexp.MustCompile(`(?i)insert`),
		regexp.MustCompile(`(?i)update`),
	}
)

// Username validates a linked profile username and returns it trimmed
func Username(u string) (string, error) {
	u = strings.TrimSpace(u)

	switch {
	case u == "":
		return "", ErrUsernameEmpty
	case len(u) > maxUsernameLen:
		return "", ErrUsernameTooLong
	case len(u) < 2:
		return "", ErrUsernameTooShort
	case !usernameCharset.MatchString(u):
		return "", ErrUsernameCharset
	}

	for _, p := range usernameForbidden {
		if p.MatchString(u) {
			return "", ErrUsernameInvalid
		}
	}

	return u, nil
}

// UsernameSafeForURL is the minimal check done before a username is placed
// into an outbound URL
func UsernameSafeForURL(u string) bool {
	return u != "" && len(u) <= maxUsernameLen && usernameCharset.MatchString(u)
}

func DiscordID(id string) error {
	if !discordID.MatchString(id) {
		return ErrDiscordIDInvalid
	}

	return nil
}
