// Package pause implements the ledger-wide pause switch gating privileged
// mutation.
package pause

import (
	"errors"
	"time"
)

// State enumerates the two pause states.
type State string

const (
	// StateActive allows privileged mutation.
	StateActive State = "ACTIVE"
	// StatePaused halts privileged mutation.
	StatePaused State = "PAUSED"
)

// Status is the current switch state with its last transition metadata.
type Status struct {
	State     State
	ChangedBy string
	ChangedAt time.Time
}

// ErrAlreadyPaused indicates pause() while already paused.
var ErrAlreadyPaused = errors.New("pause: already paused")

// ErrNotPaused indicates unpause() while active.
var ErrNotPaused = errors.New("pause: not paused")

// ErrUnauthorized indicates the actor lacks the admin role.
var ErrUnauthorized = errors.New("pause: unauthorized")
