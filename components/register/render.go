package register

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxsignup"
	"github.com/pthm/hxsignup/lib/form"
	"github.com/pthm/hxsignup/lib/schema"
)

// Button labels.
const (
	LabelCreate   = "Create"
	LabelCreating = "Creating..."
)

// pollDelay is how often an in-flight form asks for its outcome.
const pollDelay = "1s"

func formView(c *Register, props Props) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if props.inst == nil {
			return fmt.Errorf("register: render without hydrated form %q", props.FormID)
		}
		st := props.inst.Controller.Snapshot()
		id := "register-" + props.FormID

		var b markup
		wrapper := templ.Attributes{
			"id":        id,
			"class":     "register",
			"hx-target": "this",
			"hx-swap":   hxsignup.SwapOuter.String(),
		}
		if st.InFlight {
			wrapper = hxsignup.Merge(wrapper, c.Wire("status", props), templ.Attributes{
				"hx-trigger": "load delay:" + pollDelay,
			})
		}
		b.open("div", wrapper)

		b.open("form", hxsignup.Merge(c.Wire("submit", props), templ.Attributes{
			"class":           "register-form",
			"novalidate":      true,
			"hx-disabled-elt": "find button[type='submit']",
			"hx-sync":         "this:drop",
		}))

		if st.Last.Failed() {
			b.open("div", templ.Attributes{"class": "register-banner", "role": "alert"})
			b.text(st.Last.Message)
			b.close("div")
		}

		b.field(c, props, st, fieldSpec{
			name:         schema.FieldUsername,
			label:        "Username",
			inputType:    "text",
			autocomplete: "username",
		})
		passwordType := "password"
		if st.PasswordVisible {
			passwordType = "text"
		}
		b.field(c, props, st, fieldSpec{
			name:         schema.FieldPassword,
			label:        "Password",
			inputType:    passwordType,
			autocomplete: "new-password",
			toggle:       true,
		})

		submit := templ.Attributes{"type": "submit", "class": "register-submit"}
		label := LabelCreate
		if st.InFlight {
			submit["disabled"] = true
			submit["aria-busy"] = "true"
			label = LabelCreating
		}
		b.open("button", submit)
		b.text(label)
		b.close("button")

		b.open("p", templ.Attributes{"class": "register-footer"})
		b.text("Already have an account? ")
		b.open("a", templ.Attributes{"href": c.store.LoginPath()})
		b.text("Login Now")
		b.close("a")
		b.close("p")

		b.close("form")
		b.close("div")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

type fieldSpec struct {
	name         string
	label        string
	inputType    string
	autocomplete string
	toggle       bool
}

func (b *markup) field(c *Register, props Props, st form.State, f fieldSpec) {
	inputID := "register-" + props.FormID + "-" + f.name
	errID := inputID + "-error"
	msg, invalid := st.Errors[f.name]

	value := st.Input.Username
	if f.name == schema.FieldPassword {
		value = st.Input.Password
	}

	b.open("div", templ.Attributes{"class": "field"})
	b.open("label", templ.Attributes{"for": inputID})
	b.text(f.label)
	b.close("label")

	if f.toggle {
		b.open("div", templ.Attributes{"class": "password"})
	}

	input := hxsignup.Merge(c.Wire("field", props), templ.Attributes{
		"id":           inputID,
		"type":         f.inputType,
		"name":         f.name,
		"value":        value,
		"placeholder":  f.label,
		"autocomplete": f.autocomplete,
		"hx-trigger":   "change",
	})
	if st.InFlight {
		input["disabled"] = true
	}
	if invalid {
		input["aria-invalid"] = "true"
		input["aria-describedby"] = errID
	}
	b.void("input", input)

	if f.toggle {
		toggle := hxsignup.Merge(c.Wire("toggle", props), templ.Attributes{
			"type":          "button",
			"class":         "password-toggle",
			"aria-controls": inputID,
		})
		icon := "icon icon-eye"
		if st.PasswordVisible {
			toggle["aria-label"] = "Hide password"
			toggle["aria-pressed"] = "true"
			icon = "icon icon-eye-off"
		} else {
			toggle["aria-label"] = "Show password"
			toggle["aria-pressed"] = "false"
		}
		if st.InFlight {
			toggle["disabled"] = true
		}
		b.open("button", toggle)
		b.open("span", templ.Attributes{"class": icon, "aria-hidden": "true"})
		b.close("span")
		b.close("button")
		b.close("div")
	}

	if invalid {
		b.open("p", templ.Attributes{"id": errID, "class": "field-error"})
		b.text(msg)
		b.close("p")
	}
	b.close("div")
}

// markup builds escaped HTML.
type markup struct {
	strings.Builder
}

func (b *markup) open(tag string, attrs templ.Attributes) {
	b.WriteByte('<')
	b.WriteString(tag)
	b.attrs(attrs)
	b.WriteByte('>')
}

func (b *markup) void(tag string, attrs templ.Attributes) {
	b.open(tag, attrs)
}

func (b *markup) close(tag string) {
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

func (b *markup) text(s string) {
	b.WriteString(templ.EscapeString(s))
}

// attrs writes attributes in key order. true renders a bare attribute and
// false omits it.
func (b *markup) attrs(attrs templ.Attributes) {
	// Writes to a strings.Builder do not fail.
	_ = templ.RenderAttributes(context.Background(), &b.Builder, attrs)
}
