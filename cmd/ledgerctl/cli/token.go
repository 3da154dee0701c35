package cli

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinTokenLength is the shortest import token accepted by HashToken.
const MinTokenLength = 16

// HashToken returns the bcrypt hash stored in IMPORT_TOKEN_HASH.
func HashToken(token string, cost int) (string, error) {
	token = strings.TrimSpace(token)
	if len(token) < MinTokenLength {
		return "", errors.New("token: at least 16 characters required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
