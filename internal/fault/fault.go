// Package fault implements the fail-fast policy for violated invariants.
//
// A Policy starts Running. The first Trap moves it to Trapped, which is
// terminal: no call returns it to Running. Inside a guest the trap is an
// unrecovered panic, so the module aborts and the host sees the call fail.
// Host-side code uses Mark and Err to track a guest that has died.
package fault

import (
	"errors"
	"fmt"
	"sync"
)

// State is the position of a Policy in its two-state machine.
type State int

const (
	// Running accepts calls.
	Running State = iota
	// Trapped is terminal.
	Trapped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Trapped:
		return "trapped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrTrapped is reported for any use of a trapped unit.
var ErrTrapped = errors.New("unit is trapped")

// Trap is the panic value raised by Policy.Trap.
type Trap struct {
	Reason string
	Err    error
}

func (t *Trap) Error() string {
	if t.Err != nil {
		return fmt.Sprintf("trap: %s: %v", t.Reason, t.Err)
	}
	return "trap: " + t.Reason
}

func (t *Trap) Unwrap() []error {
	if t.Err != nil {
		return []error{ErrTrapped, t.Err}
	}
	return []error{ErrTrapped}
}

// Policy holds the Running/Trapped state of one unit.
type Policy struct {
	mu    sync.Mutex
	state State
	cause *Trap
}

// New returns a Running policy.
func New() *Policy {
	return &Policy{}
}

// State returns the current state.
func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cause returns the trap that ended the unit, or nil while Running.
func (p *Policy) Cause() *Trap {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cause
}

// Mark records a trap without panicking and returns it. Only the first trap
// is kept.
func (p *Policy) Mark(reason string, err error) *Trap {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cause == nil {
		p.cause = &Trap{Reason: reason, Err: err}
		p.state = Trapped
	}
	return p.cause
}

// Trap marks the unit Trapped and panics. It never returns.
func (p *Policy) Trap(format string, args ...any) {
	t := &Trap{Reason: fmt.Sprintf(format, args...)}
	p.Mark(t.Reason, nil)
	panic(t)
}

// Must traps with err when err is non-nil.
func (p *Policy) Must(err error, what string) {
	if err == nil {
		return
	}
	t := &Trap{Reason: what, Err: err}
	p.Mark(what, err)
	panic(t)
}

// Guard traps if the unit has already trapped. Entry points call it first.
func (p *Policy) Guard() {
	if c := p.Cause(); c != nil {
		panic(c)
	}
}

// Err returns the recorded trap as an error, or nil while Running.
func (p *Policy) Err() error {
	if c := p.Cause(); c != nil {
		return c
	}
	return nil
}

// Recover converts a panic carrying a *Trap into an error. Other panics are
// re-raised. Use it with defer at a boundary that must not unwind further,
// such as an in-process guest.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if t, ok := r.(*Trap); ok {
		*errp = t
		return
	}
	panic(r)
}
