// Package form implements the create/edit lifecycle of a single Note or Folder: load
// for edit, local validation, owner checks, submit and confirmed delete.
package form

import (
	"errors"
	"fmt"
)

// State is the controller's position in the form lifecycle.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	LoadError
	Saving
	Saved
	ConfirmingDelete
	Deleting
	Deleted
	PermissionDenied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadError:
		return "load_error"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case ConfirmingDelete:
		return "confirming_delete"
	case Deleting:
		return "deleting"
	case Deleted:
		return "deleted"
	case PermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name as written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := Idle; st <= PermissionDenied; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown form state %q", text)
}

// editable reports whether edits, submit and delete are accepted.
func (s State) editable() bool {
	return s == Idle || s == Loaded
}

var (
	// ErrCancelled is returned by Delete when the confirmation is declined.
	ErrCancelled = errors.New("cancelled")

	// ErrBusy is returned when an operation is attempted in a state that does not accept it.
	ErrBusy = errors.New("form is not editable in its current state")
)
