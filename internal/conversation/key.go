package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/weiawesome/wes-match-live/internal/domain"
)

const keySeparator = "_"

// ParseUserID validates a user id: a positive base-10 integer.
func ParseUserID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: user id %q is not a positive integer", domain.ErrInvalidPayload, s)
	}
	return id, nil
}

// CanonicalUserID validates s and returns it in its one routable form:
// plain decimal without sign, padding or leading zeros. "012" and " 12"
// both become "12".
func CanonicalUserID(s string) (string, error) {
	id, err := ParseUserID(s)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(id, 10), nil
}

// Key derives the canonical conversation key for two participants: both ids
// in ascending numeric order joined by "_". Key(a, b) == Key(b, a).
func Key(a, b string) (string, error) {
	x, err := ParseUserID(a)
	if err != nil {
		return "", err
	}
	y, err := ParseUserID(b)
	if err != nil {
		return "", err
	}
	if x > y {
		x, y = y, x
	}
	return strconv.FormatUint(x, 10) + keySeparator + strconv.FormatUint(y, 10), nil
}

// Participants splits a key produced by Key back into its two user ids.
func Participants(key string) (string, string, error) {
	parts := strings.Split(key, keySeparator)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: malformed conversation key %q", domain.ErrInvalidPayload, key)
	}
	canonical, err := Key(parts[0], parts[1])
	if err != nil {
		return "", "", err
	}
	if canonical != key {
		return "", "", fmt.Errorf("%w: conversation key %q is not canonical", domain.ErrInvalidPayload, key)
	}
	return parts[0], parts[1], nil
}

// Includes reports whether userID is one of the key's participants.
func Includes(key, userID string) bool {
	a, b, err := Participants(key)
	if err != nil {
		return false
	}
	return a == userID || b == userID
}
