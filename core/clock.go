package core

import "time"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// Now is the production Clock. Timestamps are kept in UTC at microsecond precision,
// which both stores round-trip exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
