package form

import (
	"context"
	"sync"
)

// OutcomeKind classifies a settled submission.
type OutcomeKind int

const (
	// OutcomeNone means nothing has settled yet.
	OutcomeNone OutcomeKind = iota
	// OutcomeCreated is a 201 reply.
	OutcomeCreated
	// OutcomeRejected is any other HTTP status.
	OutcomeRejected
	// OutcomeFailed is a transport failure.
	OutcomeFailed
	// OutcomeCancelled means the submission was abandoned via Cancel.
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Outcome is the result of one settled submission.
type Outcome struct {
	Kind OutcomeKind
	// Status is the HTTP status, zero for transport failures.
	Status int
	// Message is user-facing text: the backend msg when present.
	Message string
	// Err is the underlying error for anything but OutcomeCreated.
	Err error
}

// Failed reports whether the outcome should be surfaced as an error.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeRejected || o.Kind == OutcomeFailed
}

// Pending is a handle on an outstanding submission.
type Pending struct {
	done    chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
	outcome Outcome
}

func newPending(cancel context.CancelFunc) *Pending {
	return &Pending{done: make(chan struct{}), cancel: cancel}
}

// Done is closed when the submission settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the settled outcome. It is only meaningful after Done
// is closed.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return Outcome{}
	}
}

// Wait blocks until the submission settles or ctx is done. Returning on
// ctx does not cancel the submission.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel abandons the outbound request. The submission still settles,
// with OutcomeCancelled unless the reply had already arrived.
func (p *Pending) Cancel() {
	p.cancel()
}

func (p *Pending) settle(out Outcome) {
	p.once.Do(func() {
		p.outcome = out
		close(p.done)
		p.cancel()
	})
}
