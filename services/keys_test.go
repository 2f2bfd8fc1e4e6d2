package services

import "testing"

func TestKeyPair_DeriveAndVerify(t *testing.T) {
	salt := "abcdefghij0123456789"
	keys, err := deriveKeyPair(salt)
	if err != nil {
		t.Fatalf("deriveKeyPair failed: %v", err)
	}
	if len(keys.Public) != publicKeyLength {
		t.Errorf("Expected public key of length %d, got %d", publicKeyLength, len(keys.Public))
	}
	if keys.Private == "" {
		t.Error("The private half must not be empty")
	}

	if !verifyKey(keys.Private, keys.Public, salt) {
		t.Error("A freshly derived pair must verify")
	}
	if verifyKey(keys.Private, "wrong-public-half-wrong-public", salt) {
		t.Error("A wrong public half must not verify")
	}
	if verifyKey(keys.Private, keys.Public, "another-salt") {
		t.Error("A wrong salt must not verify")
	}
}

func TestSaltFromHash(t *testing.T) {
	long := "0123456789abcdefghijklmnopqrstuvwxyz"
	if got := saltFromHash(long); got != "ghijklmnopqrstuvwxyz" {
		t.Errorf("Expected the trailing 20 characters, got %q", got)
	}
	short := "tiny"
	if got := saltFromHash(short); got != short {
		t.Errorf("Short hashes pass through unchanged, got %q", got)
	}
}

func TestSessionToken_RoundTrip(t *testing.T) {
	token := SessionToken("deadbeef")
	id, err := SessionFromToken(token)
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	if id != "deadbeef" {
		t.Errorf("Expected deadbeef, got %q", id)
	}

	if _, err := SessionFromToken("%%not-base64%%"); err == nil {
		t.Error("A malformed token must be rejected")
	}
}

func TestChannelNames(t *testing.T) {
	token := SessionToken("deadbeef")
	if got := PrivateChannel(token); got != "private-"+token {
		t.Errorf("Unexpected private channel %q", got)
	}
	if got := InvalidationEvent(token); got != token+".session_invalidated" {
		t.Errorf("Unexpected invalidation event %q", got)
	}
}
