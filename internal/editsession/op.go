package editsession

import (
	"fmt"

	"resumewizard/internal/errors"
)

// OpState is the lifecycle of a single send
type OpState int

const (
	OpIdle OpState = iota
	OpPending
	OpCommitted
	OpRolledBack
)

func (s OpState) String() string {
	switch s {
	case OpIdle:
		return "idle"
	case OpPending:
		return "pending"
	case OpCommitted:
		return "committed"
	case OpRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("OpState(%d)", int(s))
	}
}

// PendingOp records what an optimistic send added so it can be undone
type PendingOp struct {
	state         OpState
	instruction   string
	userMessageID string
	placeholderID string
}

// State returns the current lifecycle state
func (p *PendingOp) State() OpState {
	if p == nil {
		return OpIdle
	}
	return p.state
}

func (p *PendingOp) begin(instruction, userID, placeholderID string) error {
	if err := p.transition(OpPending); err != nil {
		return err
	}
	p.instruction = instruction
	p.userMessageID = userID
	p.placeholderID = placeholderID
	return nil
}

func (p *PendingOp) commit() error {
	return p.transition(OpCommitted)
}

func (p *PendingOp) rollback() error {
	return p.transition(OpRolledBack)
}

func (p *PendingOp) transition(to OpState) error {
	valid := false
	switch p.state {
	case OpIdle:
		valid = to == OpPending
	case OpPending:
		valid = to == OpCommitted || to == OpRolledBack
	}
	if !valid {
		return errors.NewStateError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("cannot move edit from %s to %s", p.state, to), nil).
			WithContext("from", p.state.String()).
			WithContext("to", to.String())
	}
	p.state = to
	return nil
}
