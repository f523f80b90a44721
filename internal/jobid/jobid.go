// Package jobid generates the short unique tokens that key every job
// and all of its artifacts. The token is the first segment of a random
// UUID: short enough for filenames and log lines, unique enough that
// concurrent jobs never collide on artifact paths.
package jobid

import (
	"strings"

	"github.com/google/uuid"
)

// Length is the number of hex characters in a job ID.
const Length = 8

// New generates a new short job ID.
func New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:Length]
}

// IsValid checks if a string looks like a job ID: exactly Length
// lowercase hex characters.
func IsValid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
