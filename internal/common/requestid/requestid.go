package requestid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// HeaderName carries the request ID in both directions
const HeaderName = "X-Request-ID"

// MaxLength matches the length of a canonical UUID
const MaxLength = 36

var invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// FromHeader returns a sanitized copy of an upstream request ID, or a fresh
// UUID when the header is empty or contains nothing usable.
func FromHeader(value string) string {
	id := invalidChars.ReplaceAllString(strings.TrimSpace(value), "")
	id = strings.Trim(id, "-")
	if id == "" {
		return New()
	}
	if len(id) > MaxLength {
		id = id[:MaxLength]
	}
	return id
}

// New returns a random UUID
func New() string {
	return uuid.New().String()
}
