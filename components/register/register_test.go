package register

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxsignup"
	"github.com/pthm/hxsignup/lib/client"
	"github.com/pthm/hxsignup/lib/form"
	"github.com/pthm/hxsignup/lib/schema"
)

const testKey = "0123456789abcdef0123456789abcdef"

// backend is a fake registration endpoint.
type backend struct {
	srv    *httptest.Server
	hits   atomic.Int32
	status int
	msg    string
	gate   chan struct{}

	mu   sync.Mutex
	last client.Request
}

func newBackend(t *testing.T, status int, msg string) *backend {
	t.Helper()
	b := &backend{status: status, msg: msg}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		var req client.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.last = req
		b.mu.Unlock()

		if b.gate != nil {
			<-b.gate
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.status)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": b.msg})
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) lastRequest() client.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

type harness struct {
	t     *testing.T
	reg   *hxsignup.Registry
	store *Store
	comp  *Register
}

func newHarness(t *testing.T, baseURL string) *harness {
	t.Helper()
	reg := hxsignup.NewRegistry([]byte(testKey))
	reg.Logger = discardLogger()

	store := NewStore(StoreOptions{
		Submitter: client.New(client.Options{BaseURL: baseURL, Timeout: 2 * time.Second}),
		Logger:    discardLogger(),
	})
	comp := New(store)
	reg.Add(comp)
	return &harness{t: t, reg: reg, store: store, comp: comp}
}

// mount renders a fresh form and returns its props.
func (h *harness) mount() Props {
	h.t.Helper()
	var props Props
	require.NoError(h.t, h.comp.Hydrate(context.Background(), &props))
	return props
}

func (h *harness) post(action string, props Props, fields map[string]string, headers ...string) *hxsignup.TestResult {
	return h.postCtx(context.Background(), action, props, fields, headers...)
}

func (h *harness) postCtx(ctx context.Context, action string, props Props, fields map[string]string, headers ...string) *hxsignup.TestResult {
	h.t.Helper()
	encoded, err := h.comp.EncodeProps(props)
	require.NoError(h.t, err)

	data := map[string]string{"p": encoded}
	for k, v := range fields {
		data[k] = v
	}
	req := hxsignup.NewTestRequest(http.MethodPost, h.comp.Prefix()+"/"+action).
		WithFormData(data).
		WithContext(ctx)
	for i := 0; i+1 < len(headers); i += 2 {
		req = req.WithHeader(headers[i], headers[i+1])
	}
	res, err := req.Execute(h.comp)
	require.NoError(h.t, err)
	return res
}

func (h *harness) instance(props Props) *Instance {
	h.t.Helper()
	inst, ok := h.store.Get(props.FormID)
	require.True(h.t, ok, "form %s not mounted", props.FormID)
	return inst
}

func creds(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func TestRenderFreshForm(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	res, err := hxsignup.TestGet(h.comp, h.comp.Prefix()+"/")
	require.NoError(t, err)
	require.True(t, res.IsOK(), "status %d", res.StatusCode)

	assert.True(t, res.HTMLContainsAll(
		`name="username"`,
		`name="password"`,
		`type="password"`,
		`aria-label="Show password"`,
		`>Create</button>`,
		`Already have an account? <a href="/login">Login Now</a>`,
		`hx-sync="this:drop"`,
	), res.HTML)
	assert.False(t, res.HTMLContains("field-error"))
	assert.False(t, res.HTMLContains("register-banner"))
	assert.Equal(t, 1, h.store.Len())
}

func TestMountForPage(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	comp, err := h.comp.Mount(context.Background())
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, comp.Render(context.Background(), &sb))
	assert.Contains(t, sb.String(), `class="register"`)
	assert.Contains(t, sb.String(), h.comp.Prefix()+"/submit")
	assert.Equal(t, 1, h.store.Len())
}

func TestSubmitShortUsername(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "User created successfully")
	h := newHarness(t, b.srv.URL)
	props := h.mount()

	res := h.post("submit", props, creds("abc", "password1"))

	require.True(t, res.IsOK())
	assert.True(t, res.HasEvent(EventInvalid))
	assert.True(t, res.HTMLContains(schema.MsgUsernameTooShort))
	assert.False(t, res.HTMLContains(schema.MsgPasswordTooShort))
	assert.True(t, res.HTMLContains(`aria-invalid="true"`))
	assert.Empty(t, res.RedirectURL)
	assert.Zero(t, b.hits.Load(), "no request for invalid input")
}

func TestSubmitBothFieldsShort(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "")
	h := newHarness(t, b.srv.URL)
	props := h.mount()

	res := h.post("submit", props, creds("abc", "short"))

	assert.True(t, res.HTMLContainsAll(schema.MsgUsernameTooShort, schema.MsgPasswordTooShort))
	assert.Zero(t, b.hits.Load())
}

func TestSubmitCreatedRedirectsToLogin(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "User created successfully")
	h := newHarness(t, b.srv.URL)
	props := h.mount()

	res := h.post("submit", props, creds("alice", "password1"))

	assert.True(t, res.RedirectedTo("/login"))
	assert.True(t, res.HasEvent(EventCreated))
	assert.Equal(t, int32(1), b.hits.Load())
	assert.Equal(t, client.Request{Username: "alice", Password: "password1"}, b.lastRequest())
	assert.Equal(t, 0, h.store.Len(), "form is unmounted after success")
}

func TestSubmitRejectedShowsBanner(t *testing.T) {
	b := newBackend(t, http.StatusBadRequest, "username taken")
	h := newHarness(t, b.srv.URL)
	props := h.mount()

	res := h.post("submit", props, creds("alice", "password1"))

	require.True(t, res.IsOK())
	assert.Empty(t, res.RedirectURL, "no navigation on failure")
	assert.True(t, res.HasEvent(EventFailed))
	assert.True(t, res.HasFlash(hxsignup.FlashError, "username taken"))
	assert.True(t, res.HTMLContainsAll(
		`<div class="register-banner" role="alert">username taken</div>`,
		`value="alice"`,
		`>Create</button>`,
	), res.HTML)

	st := h.instance(props).Controller.Snapshot()
	assert.False(t, st.InFlight)
	assert.Equal(t, form.OutcomeRejected, st.Last.Kind)
	assert.Equal(t, http.StatusBadRequest, st.Last.Status)
}

func TestSubmitTransportFailure(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "")
	url := b.srv.URL
	b.srv.Close()
	h := newHarness(t, url)
	props := h.mount()

	res := h.post("submit", props, creds("alice", "password1"))

	require.True(t, res.IsOK())
	assert.Empty(t, res.RedirectURL)
	assert.True(t, res.HasFlash(hxsignup.FlashError, form.MsgTransport))
	assert.True(t, res.HTMLContains(form.MsgTransport))
	assert.False(t, h.instance(props).Controller.InFlight())
}

func TestSubmitWhileInFlight(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "User created successfully")
	b.gate = make(chan struct{})
	var release sync.Once
	defer release.Do(func() { close(b.gate) })

	h := newHarness(t, b.srv.URL)
	props := h.mount()

	first := make(chan *hxsignup.TestResult, 1)
	go func() {
		first <- h.post("submit", props, creds("alice", "password1"))
	}()
	require.Eventually(t, func() bool { return b.hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	second := h.post("submit", props, creds("alice", "password1"))
	require.True(t, second.IsOK())
	assert.True(t, second.HasEvent(EventBusy))
	assert.True(t, second.HTMLContainsAll(LabelCreating, `aria-busy="true"`, "load delay:1s"), second.HTML)

	// Edits are ignored while the request is outstanding.
	h.post("field", props, map[string]string{"username": "mallory"}, "HX-Trigger-Name", "username")
	assert.Equal(t, "alice", h.instance(props).Controller.Snapshot().Input.Username)

	release.Do(func() { close(b.gate) })

	select {
	case res := <-first:
		assert.True(t, res.RedirectedTo("/login"))
	case <-time.After(2 * time.Second):
		t.Fatal("first submit did not settle")
	}
	assert.Equal(t, int32(1), b.hits.Load(), "exactly one outbound request")
}

func TestSubmitSurvivesClientDisconnect(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "User created successfully")
	b.gate = make(chan struct{})
	var release sync.Once
	defer release.Do(func() { close(b.gate) })

	h := newHarness(t, b.srv.URL)
	props := h.mount()
	inst := h.instance(props)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *hxsignup.TestResult, 1)
	go func() {
		done <- h.postCtx(ctx, "submit", props, creds("alice", "password1"))
	}()
	require.Eventually(t, func() bool { return b.hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	pending := inst.Controller.Pending()
	require.NotNil(t, pending)

	cancel()
	res := <-done
	assert.True(t, res.HTMLContains(LabelCreating), "disconnected request renders the in-flight form")

	release.Do(func() { close(b.gate) })
	select {
	case <-pending.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not settle")
	}
	assert.Equal(t, form.OutcomeCreated, pending.Outcome().Kind)

	encoded, err := h.comp.EncodeProps(props)
	require.NoError(t, err)
	status, err := hxsignup.TestGet(h.comp, h.comp.Prefix()+"/status?p="+encoded)
	require.NoError(t, err)
	assert.True(t, status.RedirectedTo("/login"))
	assert.True(t, status.HasEvent(EventCreated))
	assert.Equal(t, 0, h.store.Len())
}

func TestStatusWithoutOutcomeRerenders(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	props := h.mount()
	encoded, err := h.comp.EncodeProps(props)
	require.NoError(t, err)

	res, err := hxsignup.TestGet(h.comp, h.comp.Prefix()+"/status?p="+encoded)
	require.NoError(t, err)
	assert.True(t, res.IsOK())
	assert.Empty(t, res.RedirectURL)
	assert.True(t, res.HTMLContains(`>Create</button>`))
}

func TestTogglePasswordVisibility(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	props := h.mount()

	res := h.post("toggle", props, creds("ali", "secret123"))
	require.True(t, res.IsOK())
	assert.True(t, res.HTMLContainsAll(
		`type="text" value="secret123"`,
		`aria-label="Hide password"`,
		`aria-pressed="true"`,
		`icon-eye-off`,
		`value="ali"`,
	), res.HTML)

	st := h.instance(props).Controller.Snapshot()
	assert.True(t, st.PasswordVisible)
	assert.Equal(t, "secret123", st.Input.Password, "toggle never alters the password")
	assert.Empty(t, st.Errors, "toggle does not validate")

	res = h.post("toggle", props, nil)
	assert.True(t, res.HTMLContainsAll(`type="password" value="secret123"`, `aria-pressed="false"`), res.HTML)
	assert.Equal(t, "secret123", h.instance(props).Controller.Snapshot().Input.Password)
}

func TestFieldRevalidatesAfterSubmit(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "")
	h := newHarness(t, b.srv.URL)
	props := h.mount()

	h.post("submit", props, creds("abc", "short"))

	res := h.post("field", props, map[string]string{"username": "alice", "password": "short"},
		"HX-Trigger-Name", "username")
	require.True(t, res.IsOK())
	assert.False(t, res.HTMLContains(schema.MsgUsernameTooShort))
	assert.True(t, res.HTMLContains(schema.MsgPasswordTooShort))
	assert.Zero(t, b.hits.Load())
}

func TestFieldBeforeSubmitDoesNotValidate(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	props := h.mount()

	res := h.post("field", props, map[string]string{"username": "ab"}, "HX-Trigger-Name", "username")
	require.True(t, res.IsOK())
	assert.False(t, res.HTMLContains("field-error"))
	assert.Equal(t, "ab", h.instance(props).Controller.Snapshot().Input.Username)
}

func TestFieldUnknownName(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	props := h.mount()

	res := h.post("field", props, map[string]string{"email": "a@b.c"}, "HX-Trigger-Name", "email")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestUnknownFormIsNotFound(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	res := h.post("submit", Props{FormID: uuid.NewString()}, creds("alice", "password1"))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestTamperedPropsRejected(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	req := hxsignup.NewTestRequest(http.MethodPost, h.comp.Prefix()+"/submit").
		WithFormData(map[string]string{"p": "not-a-valid-envelope"})
	res, err := req.Execute(h.comp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, 0, h.store.Len())
}

func TestPropsAreEncrypted(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	props := h.mount()

	encoded, err := h.comp.EncodeProps(props)
	require.NoError(t, err)
	assert.NotContains(t, encoded, props.FormID)
	assert.True(t, h.comp.IsSensitive())

	var decoded Props
	require.NoError(t, h.reg.Encoder().Decode(encoded, true, &decoded))
	assert.Equal(t, props.FormID, decoded.FormID)
}

func TestRegistryRoutesRegister(t *testing.T) {
	b := newBackend(t, http.StatusCreated, "")
	h := newHarness(t, b.srv.URL)
	props := h.mount()
	encoded, err := h.comp.EncodeProps(props)
	require.NoError(t, err)

	// Plain form posts without HX-Request are refused by the CSRF gate.
	body := strings.NewReader("p=" + encoded + "&username=alice&password=password1")
	req := httptest.NewRequest(http.MethodPost, h.comp.Prefix()+"/submit", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.reg.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, b.hits.Load())
}

func TestMarkupAttributes(t *testing.T) {
	var b markup
	b.void("input", templ.Attributes{
		"value":    `a"<b`,
		"name":     "username",
		"disabled": true,
		"hidden":   false,
	})
	assert.Equal(t, `<input disabled name="username" value="a&#34;&lt;b">`, b.String())
}
