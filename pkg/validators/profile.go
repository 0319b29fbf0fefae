package validators

import (
	"errors"
	"net/mail"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrEmailEmpty   = errors.New("email is required")
	ErrEmailInvalid = errors.New("invalid email format")
	ErrEmailDomain  = errors.New("email address is not in the accepted domain")

	ErrBranchInvalid = errors.New("invalid branch")
	ErrYearInvalid   = errors.New("year must be between 1 and 4")

	ErrCodeInvalid = errors.New("verification code must be 6 digits")
)

var (
	Branches = []string{"CSE", "IT", "ECE", "EEE", "ME", "CE", "CHE", "BT", "TE", "AE", "IE", "IPE"}

	emailLocal = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+$`)
	sixDigits  = regexp.MustCompile(`^\d{6}$`)
)

// EduEmail validates an address that must belong to domain and returns it
// lower-cased
func EduEmail(e, domain string) (string, error) {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" {
		return "", ErrEmailEmpty
	}

	// Header injection
	if strings.ContainsAny(e, "\r\n\x00") {
		return "", ErrEmailInvalid
	}

	local, ok := strings.CutSuffix(e, "@"+strings.ToLower(domain))
	if !ok {
		return "", ErrEmailDomain
	}

	if !emailLocal.MatchString(local) {
		return "", ErrEmailInvalid
	}

	if _, err := mail.ParseAddress(e); err != nil {
		return "", ErrEmailInvalid
	}

	return e, nil
}

// Branch returns the upper-cased branch code, empty input is allowed
func Branch(b string) (string, error) {
	b = strings.ToUpper(strings.TrimSpace(b))
	if b == "" {
		return "", nil
	}

	if !slices.Contains(Branches, b) {
		return "", ErrBranchInvalid
	}

	return b, nil
}

// Year allows 0 for "not set"
func Year(y int) error {
	if y < 0 || y > 4 {
		return ErrYearInvalid
	}

	return nil
}

// VerificationCode strips whitespace and checks for exactly six digits
func VerificationCode(c string) (string, error) {
	c = strings.Join(strings.Fields(c), "")
	if !sixDigits.MatchString(c) {
		return "", ErrCodeInvalid
	}

	return c, nil
}
