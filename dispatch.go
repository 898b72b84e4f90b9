package hxsignup

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// propsParam is the request parameter carrying encoded props, either in
// the query string (GET) or in hx-vals (mutating methods).
const propsParam = "p"

// HXServeHTTP decodes props, hydrates, routes to the default render or a
// registered action, and writes the Result.
func (c *Component[P]) HXServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c.parent == nil {
		c.fail(w, r, fmt.Errorf("hxsignup: component %q has no parent (missing SetParent)", c.name))
		return
	}

	var props P
	if encoded := r.FormValue(propsParam); encoded != "" {
		if c.encoder == nil {
			c.fail(w, r, fmt.Errorf("hxsignup: component %q has no encoder", c.name))
			return
		}
		if err := c.encoder.Decode(encoded, c.sensitive, &props); err != nil {
			c.fail(w, r, wrapEncodingError(err))
			return
		}
	}

	if err := c.parent.Hydrate(r.Context(), &props); err != nil {
		c.fail(w, r, fmt.Errorf("%w: %w", ErrHydrationFailed, err))
		return
	}

	action := strings.Trim(strings.TrimPrefix(r.URL.Path, c.prefix), "/")
	if action == "" {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		c.writeResult(w, r, OK(props))
		return
	}

	def, ok := c.actions[action]
	if !ok {
		c.fail(w, r, fmt.Errorf("%w: action %q", ErrNotFound, action))
		return
	}
	if r.Method != def.method {
		w.Header().Set("Allow", def.method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c.writeResult(w, r, def.handler(r.Context(), props, r))
}

// writeResult applies a Result to the response.
func (c *Component[P]) writeResult(w http.ResponseWriter, r *http.Request, result Result[P]) {
	if err := result.GetErr(); err != nil {
		c.fail(w, r, err)
		return
	}

	h := w.Header()
	for k, v := range result.GetHeaders() {
		h.Set(k, v)
	}
	if trigger := BuildTriggerHeader(result.GetTrigger(), result.GetTriggerData()); trigger != "" {
		h.Set("HX-Trigger", trigger)
	}

	if redirect := result.GetRedirect(); redirect != "" {
		h.Set("HX-Redirect", redirect)
		w.WriteHeader(statusOr(result.GetStatus(), http.StatusOK))
		return
	}
	if result.ShouldSkip() {
		return
	}

	// Render into a buffer so a template error can still become a 500.
	var buf bytes.Buffer
	if err := c.parent.Render(r.Context(), result.GetProps()).Render(r.Context(), &buf); err != nil {
		c.fail(w, r, fmt.Errorf("hxsignup: render %s: %w", c.name, err))
		return
	}
	buf.WriteString(RenderFlashesOOB(result.GetFlashes()))

	h.Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusOr(result.GetStatus(), http.StatusOK))
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, &buf)
	}
}

func (c *Component[P]) fail(w http.ResponseWriter, r *http.Request, err error) {
	if c.onError != nil {
		c.onError(w, r, err)
		return
	}
	DefaultErrorHandler(w, r, err)
}

// DefaultErrorHandler maps runtime errors to plain HTTP errors.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsNotFound(err):
		http.Error(w, "Not found", http.StatusNotFound)
	case IsDecryptionError(err):
		http.Error(w, "Bad request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}
