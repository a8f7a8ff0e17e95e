package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// UnauthorizedError indicates the actor is not a member or eligible voter
// for the target entity.
type UnauthorizedError struct {
	Actor string
}

func (e UnauthorizedError) Error() string {
	if e.Actor == "" {
		return "unauthorized"
	}
	return fmt.Sprintf("%s is not authorized for this entity", e.Actor)
}

func (e UnauthorizedError) Is(target error) bool {
	_, ok := target.(UnauthorizedError)
	if ok {
		return true
	}
	_, ok = target.(*UnauthorizedError)
	return ok
}

// ErrUnauthorized is the sentinel error for membership/eligibility failures.
var ErrUnauthorized = UnauthorizedError{}

// ConflictError indicates a stale expectedVersion. Callers re-read and retry.
type ConflictError struct {
	EntityID        string
	ExpectedVersion int64
}

func (e ConflictError) Error() string {
	if e.EntityID == "" {
		return "version conflict"
	}
	return fmt.Sprintf("version conflict on %s (expected %d)", e.EntityID, e.ExpectedVersion)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// ErrConflict is the sentinel error for optimistic-concurrency failures.
var ErrConflict = ConflictError{}

// AlreadyDecidedError indicates a decision reversal or a write against a
// terminal entity. Decisions are final once cast.
type AlreadyDecidedError struct {
	EntityID string
}

func (e AlreadyDecidedError) Error() string {
	if e.EntityID == "" {
		return "already decided"
	}
	return fmt.Sprintf("decision on %s is already final", e.EntityID)
}

func (e AlreadyDecidedError) Is(target error) bool {
	_, ok := target.(AlreadyDecidedError)
	if ok {
		return true
	}
	_, ok = target.(*AlreadyDecidedError)
	return ok
}

// ErrAlreadyDecided is the sentinel error for decision finality violations.
var ErrAlreadyDecided = AlreadyDecidedError{}
