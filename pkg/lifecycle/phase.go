package lifecycle

import (
	"context"
	"fmt"
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Status is the completion flag of a lifecycle action.
type Status int

const (
	// StatusUnattempted means the action has never been performed.
	StatusUnattempted Status = iota

	// StatusSucceeded means the first attempt succeeded.
	StatusSucceeded

	// StatusFailed means the first attempt failed.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnattempted:
		return "unattempted"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler so statuses serialize
// by name in [ComponentInfo].
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the recorded result of a performed action.
type Outcome struct {
	// Action is the action the outcome belongs to.
	Action Action

	// Failure is nil on success, or the action-specific failure.
	Failure error
}

// Succeeded reports whether the action succeeded.
func (o Outcome) Succeeded() bool {
	return o.Failure == nil
}

// Phase gates a single lifecycle action. Its status and failure are set
// together, exactly once, by the first call to [Phase.Perform].
//
// A Phase is safe for concurrent use. The zero value is not usable; a
// Phase is created for each action when a [Component] is built, or with
// [NewPhase] for standalone use.
type Phase struct {
	action Action

	mu       sync.Mutex
	status   Status
	inFlight bool
	failure  error
}

// NewPhase returns an unattempted phase for action.
func NewPhase(action Action) *Phase {
	return &Phase{action: action}
}

// Action returns the action this phase gates.
func (p *Phase) Action() Action {
	return p.action
}

// Status returns the current completion flag. A phase whose first
// attempt is still running reports [StatusUnattempted].
func (p *Phase) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Done reports whether the action has completed, successfully or not.
func (p *Phase) Done() bool {
	return p.Status() != StatusUnattempted
}

// Perform runs fn as the action's first and only attempt.
//
// If the action was already performed, or an attempt is currently in
// flight, Perform returns the action's "already performed" failure and
// changes nothing. Otherwise fn runs outside the phase lock; its result is
// converted with [AsFailure] and recorded. A nil fn is a bare action that
// always succeeds. A panic in fn is recovered and recorded as a failure.
//
// Perform returns nil on success or the recorded failure.
func (p *Phase) Perform(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	if p.status != StatusUnattempted || p.inFlight {
		p.mu.Unlock()
		return alreadyPerformed(p.action)
	}
	p.inFlight = true
	p.mu.Unlock()

	failure := AsFailure(p.action, p.call(ctx, fn))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	p.failure = failure
	if failure == nil {
		p.status = StatusSucceeded
	} else {
		p.status = StatusFailed
	}
	return failure
}

// call invokes fn, converting a panic into an error.
func (p *Phase) call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = sserr.Newf(p.action.failureCode(),
				"lifecycle: %s panicked: %v", p.action, r)
		}
	}()
	return fn(ctx)
}

// Result returns the recorded outcome. It returns a
// [sserr.CodeContract] error if the action has not completed yet;
// callers must perform the action before reading its result.
func (p *Phase) Result() (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusUnattempted {
		return Outcome{}, sserr.Contractf(
			"lifecycle: result of %s read before the action was performed", p.action)
	}
	return Outcome{Action: p.action, Failure: p.failure}, nil
}

// MustResult is like [Phase.Result] but panics on the contract violation.
func (p *Phase) MustResult() Outcome {
	o, err := p.Result()
	if err != nil {
		panic(err)
	}
	return o
}
