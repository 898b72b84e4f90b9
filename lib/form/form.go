// Package form owns the state of one registration form instance.
//
// A Controller tracks the field values, the per-field validation messages,
// the password visibility flag and the submission lifecycle. Submission is
// a two-state machine: Idle -> Submitting -> Idle. Submitting is entered
// only when AttemptSubmit passes validation and is left unconditionally
// when the outbound request settles.
//
//	ctrl := form.NewController(form.Options{
//	    Submitter: client.New(client.Options{BaseURL: backend}),
//	    Navigator: nav,
//	})
//	ctrl.UpdateField("username", "alice")
//	ctrl.UpdateField("password", "correct horse")
//	p, err := ctrl.AttemptSubmit(ctx)
//	if err == nil {
//	    out, _ := p.Wait(ctx)
//	}
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pthm/hxsignup/lib/client"
	"github.com/pthm/hxsignup/lib/metrics"
	"github.com/pthm/hxsignup/lib/schema"
)

// DefaultLoginPath is where a successful registration navigates.
const DefaultLoginPath = "/login"

// Messages used when the backend gives no usable text.
const (
	MsgRejected  = "Registration failed. Please try again."
	MsgTransport = "Could not reach the server. Please try again."
)

var (
	// ErrInvalid is returned by AttemptSubmit when a field fails
	// validation. It is joined with the schema.Errors.
	ErrInvalid = errors.New("form: invalid input")

	// ErrInFlight is returned while a submission has not settled.
	ErrInFlight = errors.New("form: submission in flight")

	// ErrUnmounted is returned after Unmount.
	ErrUnmounted = errors.New("form: unmounted")
)

// Input is the username/password pair being edited.
type Input struct {
	Username string
	Password string
}

// Submitter performs the outbound registration request.
// *client.Client satisfies it.
type Submitter interface {
	Register(ctx context.Context, username, password string) (client.Response, error)
}

// Navigator performs page transitions on behalf of the form.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, path string) {
	f(ctx, path)
}

// Options configures a Controller.
type Options struct {
	// ID identifies the instance in logs.
	ID string
	// Submitter is required.
	Submitter Submitter
	// Navigator receives the login path on success. May be nil.
	Navigator Navigator
	// LoginPath defaults to DefaultLoginPath.
	LoginPath string
	// OnSettle, when set, is called with every settled outcome after
	// the state has been updated.
	OnSettle func(Outcome)
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// State is a point-in-time copy of the controller.
type State struct {
	Input           Input
	Errors          schema.Errors
	InFlight        bool
	PasswordVisible bool
	// Submitted is true once a submit has been attempted since the last
	// successful registration. Fields then re-validate on every change.
	Submitted bool
	Last      Outcome
}

// Controller is the state owner for one form instance. It is safe for
// concurrent use.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	input     Input
	errs      schema.Errors
	inFlight  bool
	visible   bool
	submitted bool
	unmounted bool
	last      Outcome
	pending   *Pending
}

// NewController returns an Idle controller with empty fields.
func NewController(opts Options) *Controller {
	if opts.Submitter == nil {
		panic("form: Options.Submitter is required")
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.ID != "" {
		log = log.With("form_id", opts.ID)
	}
	return &Controller{opts: opts, log: log}
}

// ID returns the instance identifier.
func (c *Controller) ID() string {
	return c.opts.ID
}

// UpdateField sets a field value. A field that already shows an error, or
// any field after the first submit attempt, is re-validated immediately.
// Fields are read-only while a submission is in flight.
func (c *Controller) UpdateField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted {
		return ErrUnmounted
	}
	if c.inFlight {
		return ErrInFlight
	}

	switch name {
	case schema.FieldUsername:
		c.input.Username = value
	case schema.FieldPassword:
		c.input.Password = value
	default:
		return fmt.Errorf("%w: %q", schema.ErrUnknownField, name)
	}

	if c.submitted || c.errs.Has(name) {
		msg, _ := schema.ValidateField(name, value)
		if msg == "" {
			delete(c.errs, name)
		} else {
			if c.errs == nil {
				c.errs = schema.Errors{}
			}
			c.errs[name] = msg
		}
	}
	return nil
}

// TogglePasswordVisible flips password obscuring and returns the new
// value. The stored password is untouched.
func (c *Controller) TogglePasswordVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = !c.visible
	return c.visible
}

// AttemptSubmit validates the current values and, when they pass, starts
// exactly one registration request.
//
// It returns an error wrapping ErrInvalid (and the schema.Errors) when a
// field fails, and ErrInFlight when a previous request has not settled.
// In both cases no request is made.
//
// The request runs detached from ctx's cancellation so that a dropped
// connection does not abort a registration the backend may already be
// processing; use Pending.Cancel to abandon it explicitly.
func (c *Controller) AttemptSubmit(ctx context.Context) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted {
		return nil, ErrUnmounted
	}
	if c.inFlight {
		c.opts.Metrics.Attempt(metrics.OutcomeInFlight)
		return nil, ErrInFlight
	}

	c.submitted = true
	res := schema.Validate(c.input.Username, c.input.Password)
	if !res.Accepted() {
		c.errs = res.Errors
		c.opts.Metrics.Attempt(metrics.OutcomeInvalid)
		c.log.Debug("submit blocked by validation", "fields", len(res.Errors))
		return nil, fmt.Errorf("%w: %w", ErrInvalid, res.Err())
	}

	c.errs = nil
	c.inFlight = true
	c.last = Outcome{}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := newPending(cancel)
	c.pending = p

	go c.run(taskCtx, p, c.input)
	return p, nil
}

func (c *Controller) run(ctx context.Context, p *Pending, in Input) {
	start := time.Now()
	resp, err := c.opts.Submitter.Register(ctx, in.Username, in.Password)
	took := time.Since(start)
	out := classify(ctx, resp, err)

	c.mu.Lock()
	c.inFlight = false
	c.pending = nil
	c.last = out
	if out.Kind == OutcomeCreated {
		c.input = Input{}
		c.errs = nil
		c.submitted = false
		c.visible = false
	}
	c.mu.Unlock()

	c.opts.Metrics.Settled(out.Kind.String(), took)

	switch out.Kind {
	case OutcomeCreated:
		c.log.Info("user created", "username", in.Username, "msg", out.Message, "took", took)
		if c.opts.Navigator != nil {
			c.opts.Navigator.Navigate(ctx, c.opts.LoginPath)
		}
	case OutcomeRejected:
		c.log.Warn("registration rejected", "username", in.Username, "status", out.Status, "msg", out.Message)
	case OutcomeCancelled:
		c.log.Info("registration cancelled", "username", in.Username)
	default:
		c.log.Error("registration request failed", "username", in.Username, "err", out.Err)
	}

	if c.opts.OnSettle != nil {
		c.opts.OnSettle(out)
	}
	p.settle(out)
}

// classify maps a submitter result onto an Outcome.
func classify(ctx context.Context, resp client.Response, err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeCreated, Status: resp.Status, Message: resp.Msg}
	}
	if ctx.Err() != nil {
		return Outcome{Kind: OutcomeCancelled, Err: err}
	}
	var ae *client.ApplicationError
	if errors.As(err, &ae) {
		msg := ae.Msg
		if msg == "" {
			msg = MsgRejected
		}
		return Outcome{Kind: OutcomeRejected, Status: ae.Status, Message: msg, Err: err}
	}
	return Outcome{Kind: OutcomeFailed, Message: MsgTransport, Err: err}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs schema.Errors
	if len(c.errs) > 0 {
		errs = make(schema.Errors, len(c.errs))
		for k, v := range c.errs {
			errs[k] = v
		}
	}
	return State{
		Input:           c.input,
		Errors:          errs,
		InFlight:        c.inFlight,
		PasswordVisible: c.visible,
		Submitted:       c.submitted,
		Last:            c.last,
	}
}

// InFlight reports whether a submission is outstanding.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending returns the outstanding submission, or nil.
func (c *Controller) Pending() *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Unmount discards the input and cancels any outstanding submission.
// Further edits and submits fail with ErrUnmounted.
func (c *Controller) Unmount() {
	c.mu.Lock()
	p := c.pending
	c.unmounted = true
	c.input = Input{}
	c.errs = nil
	c.mu.Unlock()

	if p != nil {
		p.Cancel()
	}
}
