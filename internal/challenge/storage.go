package challenge

import "context"

// Storage is the persistence contract the Challenge Engine depends on
// (§6.2). Implementations own the row-level locking: LoadForUpdate must
// not return until the caller holds an exclusive lock on the row, and Save
// must fail with a StorageConflict error (not silently overwrite) when the
// version the caller holds is no longer current.
//
// No implementation may cache a Challenge across transactions (§5): each
// LoadForUpdate call must read the authoritative row.
type Storage interface {
	// LoadForUpdate loads the challenge with id under a row-level lock held
	// for the lifetime of ctx's transaction. It returns a NotFound error if
	// no such challenge exists.
	LoadForUpdate(ctx context.Context, id string) (*Challenge, error)

	// Save persists c, enforcing the optimistic version check as a second
	// line of defense behind the row lock. The engine has already advanced
	// c.Version by one, so Save returns a StorageConflict error if the
	// stored row's version is not c.Version-1, and otherwise writes
	// c.Version as given.
	Save(ctx context.Context, c *Challenge) error
}
