package models

import "fmt"

type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

func (s SessionStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

func (s SessionStatus) Valid() bool { return s.rank() >= 0 }

// CanTransition reports whether a session may move from one status to another.
// Status only moves forward; completed -> completed is an allowed no-op so that
// ending a chat is idempotent.
func CanTransition(from, to SessionStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == StatusCompleted {
		return to == StatusCompleted
	}
	return to.rank() > from.rank()
}

// ErrInvalidTransition is returned when a caller asks for a backward move.
type ErrInvalidTransition struct{ From, To SessionStatus }

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid session status transition %s -> %s", e.From, e.To)
}

// CheckTransition is CanTransition returning an error.
func CheckTransition(from, to SessionStatus) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition{From: from, To: to}
	}
	return nil
}

// Precedes reports whether s comes strictly before o in the lifecycle. A
// client that holds o treats a record in status s as stale.
func (s SessionStatus) Precedes(o SessionStatus) bool {
	return s.Valid() && o.Valid() && s.rank() < o.rank()
}
