// SPDX-License-Identifier: MIT

package fsm

import "fmt"

// NoTransitionError is returned by Fire when no transition matches the
// trigger from the current state, or when every matching transition was
// rejected by its guard. The engine state is unchanged.
type NoTransitionError struct {
	Trigger Trigger
	State   State
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("fsm: no valid transition for trigger %q from state %q", e.Trigger, e.State)
}
