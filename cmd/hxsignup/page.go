package main

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/pthm/hxsignup"
)

const htmxScript = `<script src="https://unpkg.com/htmx.org@2.0.4" crossorigin="anonymous"></script>`

// dismissScript removes toasts after their data-auto-dismiss delay.
const dismissScript = `<script>
document.body.addEventListener("htmx:oobAfterSwap", function () {
  document.querySelectorAll("#toasts [data-auto-dismiss]").forEach(function (el) {
    if (el.dataset.timer) return;
    el.dataset.timer = "1";
    setTimeout(function () { el.remove(); }, parseInt(el.dataset.autoDismiss, 10));
  });
});
</script>`

// page wraps body in the HTML document shell.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+templ.EscapeString(title)+`</title>`+htmxScript+`</head><body><main>`+
			`<h1>`+templ.EscapeString(title)+`</h1>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</main>`); err != nil {
			return err
		}
		if err := hxsignup.ToastContainer().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, dismissScript+`</body></html>`)
		return err
	})
}

// loginNotice stands in for the login page, which lives outside this
// server.
func loginNotice() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p class="login-notice">Your account is ready. Sign in with your new username and password.</p>`)
		return err
	})
}
