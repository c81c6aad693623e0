// Package uuid generates and validates identifiers for records and queue entries.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// New generates a random UUID v4, used for locally created records.
func New() string {
	return uuid.New().String()
}

// NewOrdered generates a UUID v7. Queue entries use it so that ids sort in
// creation order even when two entries share a timestamp.
func NewOrdered() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		return uuid.New().String()
	}
	return id.String()
}

// Parse parses s and rejects anything that is not a v4 or v7 UUID.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	if v := id.Version(); v != 4 && v != 7 {
		return uuid.Nil, fmt.Errorf("unsupported UUID version v%d", v)
	}
	return id, nil
}

// IsValid checks if a string is a valid v4 or v7 UUID.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
