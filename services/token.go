// services/token.go
package services

import (
	"encoding/base64"
	"fmt"
)

// SessionToken is the url-safe form of a session id handed to pages and
// form posts. Commands must echo it back; a mismatch against the
// session cookie rejects the request.
func SessionToken(sessionID string) string {
	return base64.URLEncoding.EncodeToString([]byte(sessionID))
}

// SessionFromToken decodes a token back to the session id it encodes.
func SessionFromToken(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed session token: %w", err)
	}
	return string(raw), nil
}

// PrivateChannel names the per-session notification channel.
func PrivateChannel(token string) string {
	return "private-" + token
}

// InvalidationEvent names the event that tells a superseded session its
// connection is revoked.
func InvalidationEvent(token string) string {
	return token + ".session_invalidated"
}
