package hxsignup

import (
	"context"
	"net/http"

	"github.com/a-h/templ"
)

// Hydrater is implemented by components to resolve props before any
// handler runs, including the default render.
//
// For the registration form this is where the form instance ID carried in
// the props is turned back into the live form controller:
//
//	func (c *Register) Hydrate(ctx context.Context, props *Props) error {
//	    props.Form = c.store.Get(props.FormID)
//	    return nil
//	}
type Hydrater[P any] interface {
	Hydrate(ctx context.Context, props *P) error
}

// Renderer is implemented by components to produce templ output. Render
// should only read props.
type Renderer[P any] interface {
	Render(ctx context.Context, props P) templ.Component
}

// Lifecycle combines Hydrater and Renderer.
type Lifecycle[P any] interface {
	Hydrater[P]
	Renderer[P]
}

// HXComponent is what the Registry routes to.
type HXComponent interface {
	HXPrefix() string
	HXServeHTTP(w http.ResponseWriter, r *http.Request)
}
