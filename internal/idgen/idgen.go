// Package idgen generates short, URL-safe correlation IDs for plugin calls.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// CallPrefix is prepended to plugin call IDs.
const CallPrefix = "call-"

// alphabet excludes look-alike characters so IDs survive being read aloud
// from a support ticket.
const alphabet = "23456789abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// CallID returns a new plugin call ID.
func CallID() (string, error) {
	return withPrefix(CallPrefix)
}

// MustCallID is CallID for callers that log instead of failing; on the
// (practically impossible) entropy error it returns the bare prefix.
func MustCallID() string {
	id, err := CallID()
	if err != nil {
		return CallPrefix + "unknown"
	}
	return id
}

func withPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
