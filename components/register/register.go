// Package register is the registration form component.
//
// Each browser tab gets its own form instance, mounted on first render and
// kept in a Store. The instance ID travels in the component props, which
// are encrypted, so every action lands on the same form.Controller.
package register

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/hxsignup"
	"github.com/pthm/hxsignup/lib/form"
	"github.com/pthm/hxsignup/lib/schema"
)

// Events emitted via HX-Trigger.
const (
	EventInvalid = "register:invalid"
	EventBusy    = "register:busy"
	EventCreated = "register:created"
	EventFailed  = "register:failed"
)

// Props carries the form instance ID.
type Props struct {
	FormID string

	inst *Instance
}

// HXEncode implements hxsignup.Encodable.
func (p Props) HXEncode() map[string]any {
	return map[string]any{"id": p.FormID}
}

// HXDecode implements hxsignup.Decodable.
func (p *Props) HXDecode(m map[string]any) error {
	id, ok := m["id"].(string)
	if !ok {
		return fmt.Errorf("register: props missing form id")
	}
	p.FormID = id
	return nil
}

// Register renders and drives one form instance per props.
type Register struct {
	*hxsignup.Component[Props]
	store *Store
}

// New creates the component backed by store.
func New(store *Store) *Register {
	c := &Register{
		Component: hxsignup.New[Props]("register").Sensitive(),
		store:     store,
	}
	c.SetParent(c)
	c.Action("field", c.handleField)
	c.Action("toggle", c.handleToggle)
	c.Action("submit", c.handleSubmit)
	c.Action("status", c.handleStatus).Method(http.MethodGet)
	return c
}

// Hydrate mounts a new instance for empty props and resumes an existing
// one otherwise.
func (c *Register) Hydrate(ctx context.Context, props *Props) error {
	if props.FormID == "" {
		props.inst = c.store.Mount()
		props.FormID = props.inst.ID
		return nil
	}
	inst, ok := c.store.Get(props.FormID)
	if !ok {
		return fmt.Errorf("%w: form %s", hxsignup.ErrNotFound, props.FormID)
	}
	props.inst = inst
	return nil
}

// Render produces the form markup.
func (c *Register) Render(ctx context.Context, props Props) templ.Component {
	return formView(c, props)
}

// Mount hydrates a fresh instance and returns its markup, for embedding
// in a full page.
func (c *Register) Mount(ctx context.Context) (templ.Component, error) {
	var props Props
	if err := c.Hydrate(ctx, &props); err != nil {
		return nil, err
	}
	return c.Render(ctx, props), nil
}

// handleField stores the value of the input that changed.
func (c *Register) handleField(ctx context.Context, props Props, r *http.Request) hxsignup.Result[Props] {
	name := hxsignup.TriggerName(r)
	err := props.inst.Controller.UpdateField(name, r.PostFormValue(name))
	switch {
	case err == nil, errors.Is(err, form.ErrInFlight):
		return hxsignup.OK(props)
	case errors.Is(err, schema.ErrUnknownField):
		return hxsignup.OK(props).Status(http.StatusBadRequest)
	default:
		return c.fail(props, err)
	}
}

// handleToggle flips password visibility. Posted values are applied first
// so the swap does not lose anything typed since the last change event.
func (c *Register) handleToggle(ctx context.Context, props Props, r *http.Request) hxsignup.Result[Props] {
	if err := c.applyPosted(props.inst, r); err != nil {
		return c.fail(props, err)
	}
	props.inst.Controller.TogglePasswordVisible()
	return hxsignup.OK(props)
}

// handleSubmit validates, sends the registration and waits for it to
// settle. If the client goes away first the submission keeps running and
// the next status poll picks up the outcome.
func (c *Register) handleSubmit(ctx context.Context, props Props, r *http.Request) hxsignup.Result[Props] {
	ctrl := props.inst.Controller
	if err := c.applyPosted(props.inst, r); err != nil {
		return c.fail(props, err)
	}

	p, err := ctrl.AttemptSubmit(ctx)
	switch {
	case errors.Is(err, form.ErrInvalid):
		return hxsignup.OK(props).Trigger(EventInvalid)
	case errors.Is(err, form.ErrInFlight):
		return hxsignup.OK(props).Trigger(EventBusy)
	case err != nil:
		return c.fail(props, err)
	}

	out, err := p.Wait(ctx)
	if err != nil {
		return hxsignup.OK(props)
	}
	return c.settled(props, out)
}

// handleStatus is polled while a submission is in flight.
func (c *Register) handleStatus(ctx context.Context, props Props, r *http.Request) hxsignup.Result[Props] {
	if path := props.inst.TakeRedirect(); path != "" {
		c.store.Delete(props.FormID)
		return hxsignup.Redirect[Props](path).Trigger(EventCreated)
	}
	return hxsignup.OK(props)
}

func (c *Register) settled(props Props, out form.Outcome) hxsignup.Result[Props] {
	switch out.Kind {
	case form.OutcomeCreated:
		path := props.inst.TakeRedirect()
		if path == "" {
			path = c.store.LoginPath()
		}
		c.store.Delete(props.FormID)
		return hxsignup.Redirect[Props](path).Trigger(EventCreated)
	case form.OutcomeRejected, form.OutcomeFailed:
		return hxsignup.OK(props).
			Flash(hxsignup.FlashError, out.Message).
			Trigger(EventFailed, map[string]any{"status": out.Status})
	default:
		return hxsignup.OK(props)
	}
}

// applyPosted copies posted field values into the controller. Fields are
// read-only while in flight, so ErrInFlight is not an error here.
func (c *Register) applyPosted(inst *Instance, r *http.Request) error {
	for _, field := range schema.Fields {
		vals, ok := r.PostForm[field]
		if !ok || len(vals) == 0 {
			continue
		}
		if err := inst.Controller.UpdateField(field, vals[0]); err != nil && !errors.Is(err, form.ErrInFlight) {
			return err
		}
	}
	return nil
}

func (c *Register) fail(props Props, err error) hxsignup.Result[Props] {
	if errors.Is(err, form.ErrUnmounted) {
		err = fmt.Errorf("%w: form %s", hxsignup.ErrNotFound, props.FormID)
	}
	return hxsignup.Err(props, err)
}
