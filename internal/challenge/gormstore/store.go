package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abdoElHodaky/challengeeval/internal/challenge"
)

// Store implements challenge.Storage over a gorm *gorm.DB. Every call is
// wrapped in a circuit breaker so a struggling database degrades into
// fast failures instead of piling up blocked goroutines on the hot path.
type Store struct {
	db      *gorm.DB
	breaker *gobreaker.CircuitBreaker
}

// New builds a Store. The breaker trips after 5 consecutive failures and
// stays open for 30 seconds before allowing a trial request through,
// matching the conservative defaults used elsewhere in the stack.
func New(db *gorm.DB) *Store {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "challenge-storage",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Store{db: db, breaker: breaker}
}

// LoadForUpdate implements challenge.Storage: it holds a SELECT ... FOR
// UPDATE lock on the row for the life of the caller's transaction (ctx is
// expected to carry a *gorm.DB transaction via WithContext conventions).
func (s *Store) LoadForUpdate(ctx context.Context, id string) (*challenge.Challenge, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		var m Model
		err := s.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, challenge.NewNotFound(id)
		}
		if err != nil {
			return nil, challenge.NewStorageConflict(id, err)
		}
		return &m, nil
	})
	if err != nil {
		var ee *challenge.EngineError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, challenge.NewStorageConflict(id, err)
	}
	return toDomain(*result.(*Model)), nil
}

// Save implements challenge.Storage: it persists c with the optimistic
// version check as the second line of defense behind the row lock
// (§6.2). A version mismatch means another transaction committed first,
// and is reported as a StorageConflict so the caller can retry.
//
// The engine already advances c.Version by one for every accepted trade
// before calling Save (§3 "monotonically increasing version integer"), so
// the version the persisted row must still hold is c.Version-1; Save
// writes c.Version through unchanged rather than incrementing it again.
func (s *Store) Save(ctx context.Context, c *challenge.Challenge) error {
	_, err := s.breaker.Execute(func() (any, error) {
		m := fromDomain(c)
		expectedVersion := c.Version - 1

		result := s.db.WithContext(ctx).
			Model(&Model{}).
			Where("id = ? AND version = ?", c.ID, expectedVersion).
			Updates(&m)
		if result.Error != nil {
			return nil, challenge.NewStorageConflict(c.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, challenge.NewStorageConflict(c.ID, errors.New("version mismatch"))
		}
		return nil, nil
	})
	if err != nil {
		var ee *challenge.EngineError
		if errors.As(err, &ee) {
			return err
		}
		return challenge.NewStorageConflict(c.ID, err)
	}
	return nil
}
