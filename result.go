package hxsignup

// Result[P] is returned from action handlers to say what the response
// should be. The runtime applies it after the handler returns.
//
//	// Re-render with updated props
//	return hxsignup.OK(props)
//
//	// Re-render with a client error status and a toast
//	return hxsignup.OK(props).Status(http.StatusUnprocessableEntity).
//	    Flash(hxsignup.FlashError, "Please fix the highlighted fields")
//
//	// Navigate the browser via HX-Redirect
//	return hxsignup.Redirect[Props]("/login")
//
//	// Hand the error to the registry's OnError hook
//	return hxsignup.Err(props, err)
type Result[P any] struct {
	props       P
	err         error
	redirect    string
	flashes     []Flash
	trigger     string
	triggerData map[string]any
	headers     map[string]string
	status      int
	skip        bool
}

// OK creates a result that re-renders with props.
func OK[P any](props P) Result[P] {
	return Result[P]{props: props}
}

// Err creates a result that is handed to the error hook instead of
// rendering.
func Err[P any](props P, err error) Result[P] {
	return Result[P]{props: props, err: err}
}

// Skip creates a result for handlers that wrote their own response.
func Skip[P any]() Result[P] {
	return Result[P]{skip: true}
}

// Redirect creates a result that navigates via the HX-Redirect header.
func Redirect[P any](url string) Result[P] {
	return Result[P]{redirect: url}
}

// Flash adds a toast, rendered as an out-of-band swap into #toasts.
// Flashes are dropped on redirects.
func (r Result[P]) Flash(level, message string) Result[P] {
	r.flashes = append(r.flashes, Flash{Level: level, Message: message})
	return r
}

// Trigger emits an event via the HX-Trigger header, optionally with data
// that HTMX exposes as evt.detail.
func (r Result[P]) Trigger(event string, data ...map[string]any) Result[P] {
	r.trigger = event
	if len(data) > 0 {
		r.triggerData = data[0]
	}
	return r
}

// Header sets a response header.
func (r Result[P]) Header(key, value string) Result[P] {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Status sets the HTTP status code. Zero means 200.
func (r Result[P]) Status(code int) Result[P] {
	r.status = code
	return r
}

// GetProps returns the props from the result.
func (r Result[P]) GetProps() P {
	return r.props
}

// GetErr returns the error from the result.
func (r Result[P]) GetErr() error {
	return r.err
}

// GetRedirect returns the redirect URL.
func (r Result[P]) GetRedirect() string {
	return r.redirect
}

// GetFlashes returns the flash messages.
func (r Result[P]) GetFlashes() []Flash {
	return r.flashes
}

// GetTrigger returns the trigger event name.
func (r Result[P]) GetTrigger() string {
	return r.trigger
}

// GetTriggerData returns the trigger event data.
func (r Result[P]) GetTriggerData() map[string]any {
	return r.triggerData
}

// GetHeaders returns the response headers.
func (r Result[P]) GetHeaders() map[string]string {
	return r.headers
}

// GetStatus returns the HTTP status code (0 means not set).
func (r Result[P]) GetStatus() int {
	return r.status
}

// ShouldSkip reports whether the handler wrote its own response.
func (r Result[P]) ShouldSkip() bool {
	return r.skip
}
