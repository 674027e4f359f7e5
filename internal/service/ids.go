package service

import "github.com/google/uuid"

// newID returns a random v4 uuid. Ids are never reused.
func newID() string {
	return uuid.NewString()
}
