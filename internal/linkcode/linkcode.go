// Package linkcode mints and validates the opaque deep-link tokens that
// resolve to archived files. A token is a store-generated surrogate key, not
// an encoding of the archive coordinates, so the registry stays the sole
// authority for the token -> location mapping.
package linkcode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that could never have been issued.
// Callers must render it identically to a missing entry so that the shape of
// a token leaks nothing about the registry's contents.
var ErrInvalidToken = errors.New("invalid link token")

// tokenLength is the length of a minted token: a UUID with the dashes
// stripped. Fits well inside Telegram's 64-character start-payload limit.
const tokenLength = 32

// New returns a fresh collision-resistant token.
func New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Validate checks that token has the shape of an issued token. It says
// nothing about whether the token currently resolves.
func Validate(token string) error {
	if len(token) != tokenLength {
		return ErrInvalidToken
	}
	for _, r := range token {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ErrInvalidToken
		}
	}
	return nil
}

// DeepLink renders the user-facing retrieval link for a token.
func DeepLink(botUsername, token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, token)
}
