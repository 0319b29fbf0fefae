package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6 digit code, zero padded
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code, %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
