// Package hxsignupecho provides Echo framework integration for hxsignup
// components.
//
// Mount components onto an Echo instance or group:
//
//	e := echo.New()
//	reg := hxsignupecho.Mount(e, hxsignupecho.WithKey(key))
//	reg.Add(register.New(store))
//
// Or mount on a group with middleware:
//
//	g := e.Group("", middleware.RequestID())
//	reg := hxsignupecho.MountGroup(g)
package hxsignupecho

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/hxsignup"
)

// Option configures the Mount and MountGroup functions.
type Option func(*options)

type options struct {
	key     []byte
	path    string
	logger  *slog.Logger
	onError func(http.ResponseWriter, *http.Request, error)
}

// WithKey sets the props key for the registry. Keys that are not 32 bytes
// are stretched with SHA-256. Without a key a random one is generated,
// which only suits a single short-lived process.
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithPath sets the route the component handler is mounted on.
// Defaults to "/_c/", which is where component URLs point.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithLogger sets the logger that records failed component requests.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithErrorHandler replaces hxsignup.DefaultErrorHandler.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Mount creates a registry and mounts the component handler on an Echo instance.
func Mount(e *echo.Echo, opts ...Option) *hxsignup.Registry {
	reg := newRegistry(opts)
	e.Any(reg.path+"*", echo.WrapHandler(reg.Handler()))
	return reg.Registry
}

// MountGroup creates a registry and mounts the component handler on an Echo group.
// Components then share the group's middleware.
func MountGroup(g *echo.Group, opts ...Option) *hxsignup.Registry {
	reg := newRegistry(opts)
	g.Any(reg.path+"*", echo.WrapHandler(reg.Handler()))
	return reg.Registry
}

type mountedRegistry struct {
	*hxsignup.Registry
	path string
}

func newRegistry(opts []Option) *mountedRegistry {
	o := &options{path: "/_c/"}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("hxsignupecho: failed to generate random key: %v", err))
		}
	}

	reg := hxsignup.NewRegistry(key)
	if o.logger != nil {
		reg.Logger = o.logger
	}
	if o.onError != nil {
		reg.OnError = o.onError
	}

	return &mountedRegistry{Registry: reg, path: o.path}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxsignupecho.Render(c, page)
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
