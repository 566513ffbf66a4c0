package caches

import "time"

var (
	// DefaultExpiredDuration is the item expiration used by backends that enable expiry
	// without choosing a duration.
	DefaultExpiredDuration = 24 * time.Hour

	// DefaultExpiredTaskTimer is the default duration of the expired task timer
	DefaultExpiredTaskTimer = 10 * time.Minute
)
