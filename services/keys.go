// services/keys.go
package services

import (
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// Activation and password-reset keys are derived from a bcrypt hash of
// a per-user salt. The base64 form is split: the tail travels to the
// user (by mail), the head stays in the database. Neither part alone
// verifies, so a leaked database column cannot forge a key.
const publicKeyLength = 30

type keyPair struct {
	Public  string // sent to the user
	Private string // stored server side
}

func deriveKeyPair(salt string) (*keyPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(salt), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	encoded := base64.URLEncoding.EncodeToString(hash)
	return &keyPair{
		Public:  encoded[len(encoded)-publicKeyLength:],
		Private: encoded[:len(encoded)-publicKeyLength],
	}, nil
}

// verifyKey recombines the stored head with a presented tail and checks
// it against the salt.
func verifyKey(private, public, salt string) bool {
	decoded, err := base64.URLEncoding.DecodeString(private + public)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(decoded, []byte(salt)) == nil
}

// saltFromHash takes the trailing characters of a bcrypt password hash
// as the key-derivation salt.
func saltFromHash(hash string) string {
	if len(hash) <= 20 {
		return hash
	}
	return hash[len(hash)-20:]
}
