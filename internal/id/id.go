package id

import "github.com/google/uuid"

// New returns a random job identifier.
func New() string {
	return uuid.NewString()
}

// Session returns a random session identifier for the publish flag scope.
func Session() string {
	return "sess-" + uuid.NewString()
}
