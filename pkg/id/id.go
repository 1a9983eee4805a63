// Package id mints and checks request identifiers.
package id

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxLen caps an inbound identifier.
const MaxLen = 64

// New mints a ULID. Ids minted in the same millisecond still sort in order.
func New() string {
	return ulid.Make().String()
}

// Time reports when a ULID was minted. ok is false for anything else.
func Time(s string) (t time.Time, ok bool) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()).UTC(), true
}

// Accept returns s when it is safe to echo into headers and logs, and a
// fresh id otherwise.
func Accept(s string) string {
	if s == "" || len(s) > MaxLen {
		return New()
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return New()
		}
	}
	return s
}
