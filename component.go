package hxsignup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/a-h/templ"
)

// Handler is the signature of an action handler.
type Handler[P any] func(ctx context.Context, props P, r *http.Request) Result[P]

// actionDef holds metadata about a registered action.
type actionDef[P any] struct {
	name    string
	method  string
	handler Handler[P]
}

// Component[P] is the base type embedded by concrete components.
//
//	type Register struct {
//	    *hxsignup.Component[Props]
//	    store *Store
//	}
//
//	func New(store *Store) *Register {
//	    c := &Register{Component: hxsignup.New[Props]("register"), store: store}
//	    c.SetParent(c)
//	    c.Action("submit", c.handleSubmit)
//	    return c
//	}
//
// The URL prefix is derived from the name and the file:line of the New
// call, so two instances of the same component get distinct routes.
type Component[P any] struct {
	name      string
	prefix    string
	sensitive bool
	actions   map[string]*actionDef[P]
	encoder   *Encoder
	parent    Lifecycle[P]
	onError   func(http.ResponseWriter, *http.Request, error)
}

// New creates a component with the given name. Props are signed by
// default; call Sensitive to encrypt them.
func New[P any](name string) *Component[P] {
	return &Component[P]{
		name:    name,
		prefix:  "/_c/" + name + "-" + componentHash(name, 1),
		actions: make(map[string]*actionDef[P]),
	}
}

// Sensitive switches props to the encrypted envelope.
func (c *Component[P]) Sensitive() *Component[P] {
	c.sensitive = true
	return c
}

// Name returns the component's name.
func (c *Component[P]) Name() string {
	return c.name
}

// Prefix returns the URL prefix all actions are mounted under.
func (c *Component[P]) Prefix() string {
	return c.prefix
}

// HXPrefix implements HXComponent.
func (c *Component[P]) HXPrefix() string {
	return c.prefix
}

// IsSensitive reports whether props are encrypted.
func (c *Component[P]) IsSensitive() bool {
	return c.sensitive
}

// Action registers a named handler. The method defaults to POST.
//
//	c.Action("submit", c.handleSubmit)
//	c.Action("peek", c.handlePeek).Method(http.MethodGet)
func (c *Component[P]) Action(name string, handler Handler[P]) *ActionBuilder[P] {
	def := &actionDef[P]{name: name, method: http.MethodPost, handler: handler}
	c.actions[name] = def
	return &ActionBuilder[P]{action: def}
}

// HasAction reports whether name is registered.
func (c *Component[P]) HasAction(name string) bool {
	_, ok := c.actions[name]
	return ok
}

// SetEncoder sets the props encoder. The Registry calls this from Add.
func (c *Component[P]) SetEncoder(enc *Encoder) {
	c.encoder = enc
}

// Encoder returns the props encoder.
func (c *Component[P]) Encoder() *Encoder {
	return c.encoder
}

// SetErrorHandler sets the error hook. The Registry calls this from Add.
func (c *Component[P]) SetErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) {
	c.onError = fn
}

// SetParent records the concrete component so HXServeHTTP can reach its
// Hydrate and Render methods.
func (c *Component[P]) SetParent(parent Lifecycle[P]) {
	c.parent = parent
}

// EncodeProps returns the encoded form of props.
func (c *Component[P]) EncodeProps(props P) (string, error) {
	if c.encoder == nil {
		return "", fmt.Errorf("hxsignup: component %q has no encoder (not registered?)", c.name)
	}
	return c.encoder.Encode(props, c.sensitive)
}

// URL returns the URL for action with props in the query string. An empty
// action is the default render.
func (c *Component[P]) URL(action string, props P) string {
	path := c.prefix + "/" + action
	encoded, err := c.EncodeProps(props)
	if err != nil || encoded == "" {
		return path
	}
	return path + "?p=" + encoded
}

// Wire returns the hx-* attributes that invoke action with props.
// Unknown actions produce no attributes.
func (c *Component[P]) Wire(action string, props P) templ.Attributes {
	def, ok := c.actions[action]
	if !ok {
		return templ.Attributes{}
	}
	encoded, _ := c.EncodeProps(props)
	return WireAttrs(c.prefix+"/"+action, def.method, encoded)
}

// Refresh returns hx-get attributes for the default render.
func (c *Component[P]) Refresh(props P) templ.Attributes {
	encoded, _ := c.EncodeProps(props)
	return WireAttrs(c.prefix+"/", http.MethodGet, encoded)
}

// componentHash derives a short stable hash from the name and the
// caller's source location.
func componentHash(name string, skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	input := name
	if ok {
		input = fmt.Sprintf("%s:%d:%s", filepath.Base(file), line, name)
	}
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:4])
}
