package hxsignup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

type stepProps struct {
	FormID string
	Count  int64
}

func (p stepProps) HXEncode() map[string]any {
	return map[string]any{"f": p.FormID, "c": p.Count}
}

func (p *stepProps) HXDecode(m map[string]any) error {
	if v, ok := m["f"].(string); ok {
		p.FormID = v
	}
	switch n := m["c"].(type) {
	case int8:
		p.Count = int64(n)
	case int64:
		p.Count = n
	case uint8:
		p.Count = int64(n)
	}
	return nil
}

// stepper is a minimal component exercising every Result kind.
type stepper struct {
	*Component[stepProps]
	hydrateErr error
	hydrated   int
}

func newStepper() *stepper {
	c := &stepper{Component: New[stepProps]("stepper")}
	c.SetParent(c)
	c.Action("bump", c.handleBump)
	c.Action("done", func(ctx context.Context, p stepProps, r *http.Request) Result[stepProps] {
		return Redirect[stepProps]("/login").Trigger("stepper:done", map[string]any{"form": p.FormID})
	})
	c.Action("fail", func(ctx context.Context, p stepProps, r *http.Request) Result[stepProps] {
		return Err(p, errors.New("backend exploded"))
	})
	c.Action("raw", func(ctx context.Context, p stepProps, r *http.Request) Result[stepProps] {
		return Skip[stepProps]()
	}).Method(http.MethodGet)
	return c
}

func (c *stepper) Hydrate(ctx context.Context, p *stepProps) error {
	c.hydrated++
	if c.hydrateErr != nil {
		return c.hydrateErr
	}
	if p.FormID == "" {
		p.FormID = "fresh"
	}
	return nil
}

func (c *stepper) Render(ctx context.Context, p stepProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<form id="%s" data-count="%d"></form>`, p.FormID, p.Count)
		return err
	})
}

func (c *stepper) handleBump(ctx context.Context, p stepProps, r *http.Request) Result[stepProps] {
	p.Count++
	return OK(p).Flash(FlashSuccess, "bumped").Header("X-Count", fmt.Sprint(p.Count))
}

func registered(t *testing.T) (*Registry, *stepper) {
	t.Helper()
	reg := NewRegistry([]byte("test-key"))
	c := newStepper()
	reg.Add(c)
	return reg, c
}

func TestNewPrefix(t *testing.T) {
	a := New[stepProps]("stepper")
	b := New[stepProps]("stepper")

	if !strings.HasPrefix(a.Prefix(), "/_c/stepper-") {
		t.Errorf("Prefix() = %q, want /_c/stepper- prefix", a.Prefix())
	}
	if a.Prefix() == b.Prefix() {
		t.Error("instances created on different lines should not share a prefix")
	}
	if a.HXPrefix() != a.Prefix() {
		t.Error("HXPrefix() should equal Prefix()")
	}
	if a.IsSensitive() || !a.Sensitive().IsSensitive() {
		t.Error("Sensitive() should flip IsSensitive()")
	}
}

func TestDispatchRender(t *testing.T) {
	_, c := registered(t)

	res, err := TestGet(c, c.URL("", stepProps{FormID: "abc", Count: 2}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsOK() {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if !res.HTMLContains(`<form id="abc" data-count="2">`) {
		t.Errorf("unexpected HTML: %s", res.HTML)
	}
	if ct := res.Headers.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestDispatchRenderWithoutProps(t *testing.T) {
	_, c := registered(t)

	res, _ := TestGet(c, c.Prefix()+"/")
	if !res.HTMLContains(`id="fresh"`) {
		t.Errorf("Hydrate should fill defaults, got %s", res.HTML)
	}
}

func TestDispatchAction(t *testing.T) {
	_, c := registered(t)
	encoded, err := c.EncodeProps(stepProps{FormID: "abc", Count: 1})
	if err != nil {
		t.Fatal(err)
	}

	res, _ := TestPost(c, c.Prefix()+"/bump", map[string]string{"p": encoded})
	if !res.HTMLContains(`data-count="2"`) {
		t.Errorf("bump did not re-render with new props: %s", res.HTML)
	}
	if !res.HasFlash(FlashSuccess, "bumped") {
		t.Errorf("flash missing: %+v", res.Flashes)
	}
	if res.Headers.Get("X-Count") != "2" {
		t.Errorf("X-Count = %q", res.Headers.Get("X-Count"))
	}
}

func TestDispatchRedirectAndTrigger(t *testing.T) {
	_, c := registered(t)
	encoded, _ := c.EncodeProps(stepProps{FormID: "abc"})

	res, _ := TestPost(c, c.Prefix()+"/done", map[string]string{"p": encoded})
	if !res.RedirectedTo("/login") {
		t.Errorf("RedirectURL = %q, want /login", res.RedirectURL)
	}
	if !res.HasEvent("stepper:done") {
		t.Errorf("events = %v", res.TriggeredEvents)
	}
	if res.HTML != "" {
		t.Errorf("redirect should have no body, got %q", res.HTML)
	}
}

func TestDispatchErrors(t *testing.T) {
	_, c := registered(t)
	encoded, _ := c.EncodeProps(stepProps{FormID: "abc"})

	tests := []struct {
		name   string
		method string
		path   string
		form   map[string]string
		want   int
	}{
		{"handler error", http.MethodPost, "/fail", map[string]string{"p": encoded}, http.StatusInternalServerError},
		{"unknown action", http.MethodPost, "/nope", nil, http.StatusNotFound},
		{"wrong method", http.MethodGet, "/bump", nil, http.StatusMethodNotAllowed},
		{"post to render", http.MethodPost, "/", nil, http.StatusMethodNotAllowed},
		{"tampered props", http.MethodPost, "/bump", map[string]string{"p": encoded + "x"}, http.StatusBadRequest},
		{"skip", http.MethodGet, "/raw", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := NewTestRequest(tt.method, c.Prefix()+tt.path).WithFormData(tt.form).Execute(c)
			if res.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (body %q)", res.StatusCode, tt.want, res.HTML)
			}
		})
	}
}

func TestDispatchHydrationError(t *testing.T) {
	_, c := registered(t)
	c.hydrateErr = fmt.Errorf("form gone: %w", ErrNotFound)

	res, _ := TestGet(c, c.Prefix()+"/")
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}

	c.hydrateErr = errors.New("db down")
	res, _ = TestGet(c, c.Prefix()+"/")
	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", res.StatusCode)
	}
}

func TestDispatchWithoutParent(t *testing.T) {
	c := New[stepProps]("orphan")
	rec := httptest.NewRecorder()
	c.HXServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.Prefix()+"/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRegistryCollision(t *testing.T) {
	reg, c := registered(t)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate prefix")
		}
	}()
	reg.Add(c)
}

func TestRegistryHandlerCSRF(t *testing.T) {
	reg, c := registered(t)
	h := reg.Handler()

	req := httptest.NewRequest(http.MethodPost, c.Prefix()+"/bump", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("POST without HX-Request: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, c.Prefix()+"/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET: status = %d, want 200", rec.Code)
	}
}

func TestRegistryOnError(t *testing.T) {
	reg, c := registered(t)
	var got error
	reg.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}

	res, _ := NewTestRequest(http.MethodPost, c.Prefix()+"/nope").Execute(c)
	if res.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", res.StatusCode)
	}
	if !IsNotFound(got) {
		t.Errorf("OnError got %v, want ErrNotFound", got)
	}
	if len(reg.Prefixes()) != 1 || reg.Prefixes()[0] != c.Prefix() {
		t.Errorf("Prefixes() = %v", reg.Prefixes())
	}
}

func TestRegistryLogsHTMXContext(t *testing.T) {
	reg, c := registered(t)
	var buf bytes.Buffer
	reg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	reg.OnError = func(w http.ResponseWriter, r *http.Request, err error) {}

	_, err := NewTestRequest(http.MethodPost, c.Prefix()+"/nope").
		WithHeader("HX-Trigger", "register-form").
		WithHeader("HX-Target", "register-abc").
		WithHeader("HX-Current-URL", "http://localhost/signup").
		WithHeader("HX-Boosted", "true").
		Execute(c)
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"level=WARN",
		"trigger=register-form",
		"target=register-abc",
		"current_url=http://localhost/signup",
		"boosted=true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestWire(t *testing.T) {
	_, c := registered(t)
	props := stepProps{FormID: "abc"}

	attrs := c.Wire("bump", props)
	if attrs["hx-post"] != c.Prefix()+"/bump" {
		t.Errorf("hx-post = %v", attrs["hx-post"])
	}
	if v, _ := attrs["hx-vals"].(string); !strings.Contains(v, `"p":`) {
		t.Errorf("hx-vals = %v", attrs["hx-vals"])
	}

	if got := c.Wire("raw", props)["hx-get"]; !strings.HasPrefix(got.(string), c.Prefix()+"/raw?p=") {
		t.Errorf("hx-get = %v", got)
	}
	if len(c.Wire("missing", props)) != 0 {
		t.Error("unknown action should produce no attributes")
	}
	if !strings.HasPrefix(c.Refresh(props)["hx-get"].(string), c.Prefix()+"/?p=") {
		t.Errorf("Refresh() = %v", c.Refresh(props))
	}
}
