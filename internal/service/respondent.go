package service

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// RespondentHasher derives the opaque respondent key stored with a response.
// The same student yields the same key within a session and unrelated keys
// across sessions, so uniqueness is enforced without storing who answered.
type RespondentHasher struct {
	key []byte
}

// NewRespondentHasher builds a hasher keyed with secret.
func NewRespondentHasher(secret string) (*RespondentHasher, error) {
	if secret == "" {
		return nil, fmt.Errorf("respondent hash secret is required")
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &RespondentHasher{key: key}, nil
}

// Hash returns the hex encoded keyed BLAKE2b-256 of the session and student ids.
func (h *RespondentHasher) Hash(sessionID, studentID string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is bounded in NewRespondentHasher
		panic(err)
	}
	mac.Write([]byte(sessionID))
	mac.Write([]byte{0})
	mac.Write([]byte(studentID))
	return hex.EncodeToString(mac.Sum(nil))
}
