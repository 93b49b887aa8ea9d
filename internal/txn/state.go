package txn

import "fmt"

// State is the lifecycle position of a transaction. Exactly one transaction
// is active per Controller, and its state only moves along the transitions
// table below.
type State int

const (
	StateIdle State = iota
	StateSnapshotTaken
	StateMutating
	StateVerifying
	StateCommitted
	StateRolledBack
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSnapshotTaken:
		return "snapshot_taken"
	case StateMutating:
		return "mutating"
	case StateVerifying:
		return "verifying"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions is the full set of legal state changes. Every path that is
// not a commit funnels into StateRolledBack; StateFailed is reachable only
// from there, when the restore itself could not complete.
var transitions = map[State][]State{
	StateIdle:          {StateSnapshotTaken},
	StateSnapshotTaken: {StateMutating, StateRolledBack},
	StateMutating:      {StateVerifying, StateRolledBack},
	StateVerifying:     {StateCommitted, StateRolledBack},
	StateRolledBack:    {StateFailed},
}

// to moves the controller to next. A transition outside the table is a
// controller bug, not a runtime condition, so it panics.
func (c *Controller) to(next State) {
	for _, allowed := range transitions[c.state] {
		if next == allowed {
			c.state = next
			return
		}
	}
	panic(fmt.Sprintf("illegal transition %s -> %s", c.state, next))
}

// State returns the controller's current transaction state.
func (c *Controller) State() State {
	return c.state
}
