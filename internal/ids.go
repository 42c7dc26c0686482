package internal

import "github.com/google/uuid"

// NewSessionID returns a random (v4) UUID string. Session ids are opaque and
// never derived from token material.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ValidSessionID reports whether s parses as a UUID.
func ValidSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
