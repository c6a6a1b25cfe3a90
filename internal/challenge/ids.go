package challenge

import "github.com/google/uuid"

// NewID generates a new opaque challenge identifier. Challenge ids never
// encode meaning (no embedded trader id, timestamp, or sequence); they
// are pure UUIDs, matching the "opaque challenge/trader ids" convention
// used throughout the storage contract (§3, §6.2).
func NewID() string {
	return uuid.NewString()
}
