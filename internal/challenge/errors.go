package challenge

import (
	"fmt"
)

// ErrorCode classifies the recoverable failures the engine can raise, per
// the error handling design in §7 of the specification.
type ErrorCode string

const (
	// ErrCodeNotFound means the challenge id was not present in storage.
	ErrCodeNotFound ErrorCode = "CHALLENGE_NOT_FOUND"
	// ErrCodeTradeRejected means the challenge is in a terminal state.
	ErrCodeTradeRejected ErrorCode = "TRADE_REJECTED"
	// ErrCodeInvalidTransition means the rules evaluator requested a
	// transition the state machine does not allow. This is a programmer
	// error: the transaction must abort, never retry.
	ErrCodeInvalidTransition ErrorCode = "INVALID_STATE_TRANSITION"
	// ErrCodeStorageConflict covers lock timeouts and optimistic version
	// mismatches. Callers may retry with back-off.
	ErrCodeStorageConflict ErrorCode = "STORAGE_CONFLICT"
)

// EngineError is the structured error type raised by the Challenge Engine.
// It carries enough context for a caller to log, retry, or surface the
// failure without string-matching the message.
type EngineError struct {
	Code        ErrorCode
	ChallengeID string
	Message     string
	Cause       error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (challenge=%s): %v", e.Code, e.Message, e.ChallengeID, e.Cause)
	}
	return fmt.Sprintf("%s: %s (challenge=%s)", e.Code, e.Message, e.ChallengeID)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the caller can reasonably retry the
// transaction that produced err. Only storage contention is retryable;
// everything else is either a closed challenge or a programming bug.
func IsRetryable(err error) bool {
	var ee *EngineError
	if !asEngineError(err, &ee) {
		return false
	}
	return ee.Code == ErrCodeStorageConflict
}

func asEngineError(err error, target **EngineError) bool {
	for err != nil {
		if ee, ok := err.(*EngineError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// NewNotFound builds the ChallengeNotFound error for id.
func NewNotFound(id string) error {
	return &EngineError{Code: ErrCodeNotFound, ChallengeID: id, Message: "challenge not found"}
}

// NewTradeRejected builds the TradeRejected error, reporting the terminal
// status the challenge is already in (e.g. "already FAILED").
func NewTradeRejected(id, reason string) error {
	return &EngineError{Code: ErrCodeTradeRejected, ChallengeID: id, Message: reason}
}

// NewInvalidTransition builds the InvalidStateTransition error. Reaching
// this means the rules evaluator or caller violated the state machine
// contract; the transaction must be aborted, not retried.
func NewInvalidTransition(id string, from, to Status) error {
	return &EngineError{
		Code:        ErrCodeInvalidTransition,
		ChallengeID: id,
		Message:     fmt.Sprintf("illegal transition %s -> %s", from, to),
	}
}

// NewStorageConflict wraps a lock timeout or optimistic version mismatch.
func NewStorageConflict(id string, cause error) error {
	return &EngineError{Code: ErrCodeStorageConflict, ChallengeID: id, Message: "storage conflict", Cause: cause}
}
