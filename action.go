package hxsignup

import (
	"encoding/json"
	"net/http"

	"github.com/a-h/templ"
)

// ActionBuilder configures a registered action.
type ActionBuilder[P any] struct {
	action *actionDef[P]
}

// Method overrides the default POST method.
func (ab *ActionBuilder[P]) Method(m string) *ActionBuilder[P] {
	ab.action.method = m
	return ab
}

// WireAttrs builds the HTMX attributes that reach a component route.
//
// GET puts the encoded props in the query string; other methods carry
// them in hx-vals so they travel in the request body next to the form
// fields. Everything else (hx-target, hx-swap, hx-include) is up to the
// template.
func WireAttrs(path, method, encoded string) templ.Attributes {
	attrs := templ.Attributes{}

	switch method {
	case http.MethodGet, "":
		url := path
		if encoded != "" {
			url = path + "?" + propsParam + "=" + encoded
		}
		attrs["hx-get"] = url
		return attrs
	case http.MethodPost:
		attrs["hx-post"] = path
	case http.MethodPut:
		attrs["hx-put"] = path
	case http.MethodPatch:
		attrs["hx-patch"] = path
	case http.MethodDelete:
		attrs["hx-delete"] = path
	}
	if encoded != "" {
		data, _ := json.Marshal(map[string]string{propsParam: encoded})
		attrs["hx-vals"] = string(data)
	}
	return attrs
}

// Merge combines attribute sets; later sets win.
func Merge(sets ...templ.Attributes) templ.Attributes {
	out := templ.Attributes{}
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
