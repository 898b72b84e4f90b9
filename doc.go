// Package hxsignup is a small component runtime for server-rendered,
// HTMX-driven forms, and the home of the registration form built on it.
//
// A component embeds *Component[P], where P is its Props type. Props are
// serialized into the URLs and hx-vals the component renders, so they
// should hold identifiers only; anything richer is looked up in Hydrate.
//
//	type Register struct {
//	    *hxsignup.Component[Props]
//	    store *Store
//	}
//
// The lifecycle is two interfaces:
//   - Hydrater[P]: Hydrate(ctx, *P) resolves identifiers before any handler
//   - Renderer[P]: Render(ctx, P) produces the templ.Component output
//
// # Actions
//
// Actions are registered with semantic names and routed by HXServeHTTP
// under the component's prefix:
//
//	c.Action("submit", c.handleSubmit)
//	c.Action("toggle", c.handleToggle)
//
// A handler returns a Result[P] that tells the runtime what to do next:
// re-render (OK), report an error (Err), navigate (Redirect), or nothing
// (Skip). Flash messages ride along as out-of-band swaps.
//
//	return hxsignup.OK(props).Flash(hxsignup.FlashError, "username taken")
//	return hxsignup.Redirect[Props]("/login").Trigger("register:created")
//
// # Security
//
// Props are either signed (HMAC, visible) or encrypted (AES-GCM, opaque,
// via Sensitive). Mutating requests must carry HX-Request: true, which
// browsers will not send cross-origin without a CORS preflight.
//
// # Registration
//
//	reg := hxsignup.NewRegistry(key)
//	reg.Add(register.New(store))
//	http.Handle("/_c/", reg.Handler())
package hxsignup
