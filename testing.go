package hxsignup

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
)

// TestResult is the recorded output of a component request.
type TestResult struct {
	HTML            string
	StatusCode      int
	Headers         http.Header
	TriggeredEvents []string
	Flashes         []Flash
	RedirectURL     string
}

// TestRender runs Hydrate and Render without any HTTP mechanics.
func TestRender[P any](comp Lifecycle[P], props P) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), comp, props)
}

// TestRenderWithContext is TestRender with a caller-supplied context.
func TestRenderWithContext[P any](ctx context.Context, comp Lifecycle[P], props P) (*TestResult, error) {
	if err := comp.Hydrate(ctx, &props); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := comp.Render(ctx, props).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return &TestResult{
		HTML:       buf.String(),
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
	}, nil
}

// TestGet simulates a render request.
func TestGet(comp HXComponent, url string) (*TestResult, error) {
	return NewTestRequest(http.MethodGet, url).Execute(comp)
}

// TestPost simulates an action request with form values.
func TestPost(comp HXComponent, url string, formData map[string]string) (*TestResult, error) {
	return NewTestRequest(http.MethodPost, url).WithFormData(formData).Execute(comp)
}

// TestRequestBuilder builds a request against an HXComponent.
//
//	res, err := hxsignup.NewTestRequest("POST", path).
//	    WithFormData(map[string]string{"p": encoded, "username": "alice"}).
//	    WithHeader("HX-Trigger-Name", "username").
//	    Execute(comp)
type TestRequestBuilder struct {
	method   string
	url      string
	formData map[string]string
	headers  map[string]string
	ctx      context.Context
}

// NewTestRequest creates a request builder. HX-Request: true is always set.
func NewTestRequest(method, url string) *TestRequestBuilder {
	return &TestRequestBuilder{
		method:   method,
		url:      url,
		formData: make(map[string]string),
		headers:  make(map[string]string),
		ctx:      context.Background(),
	}
}

// WithFormData adds form values to the request body.
func (b *TestRequestBuilder) WithFormData(data map[string]string) *TestRequestBuilder {
	for k, v := range data {
		b.formData[k] = v
	}
	return b
}

// WithHeader adds a header to the request.
func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.headers[key] = value
	return b
}

// WithContext sets the request context.
func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// Request returns the built *http.Request.
func (b *TestRequestBuilder) Request() *http.Request {
	form := url.Values{}
	for k, v := range b.formData {
		form.Set(k, v)
	}

	req := httptest.NewRequest(b.method, b.url, strings.NewReader(form.Encode()))
	req = req.WithContext(b.ctx)
	req.Header.Set("HX-Request", "true")
	if len(b.formData) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	return req
}

// Execute serves the request with comp and records the response.
func (b *TestRequestBuilder) Execute(comp HXComponent) (*TestResult, error) {
	rec := httptest.NewRecorder()
	comp.HXServeHTTP(rec, b.Request())
	return newTestResult(rec), nil
}

func newTestResult(rec *httptest.ResponseRecorder) *TestResult {
	res := &TestResult{
		HTML:        rec.Body.String(),
		StatusCode:  rec.Code,
		Headers:     rec.Header(),
		RedirectURL: rec.Header().Get("HX-Redirect"),
	}
	if trigger := rec.Header().Get("HX-Trigger"); trigger != "" {
		res.TriggeredEvents = parseTriggerHeader(trigger)
	}
	res.Flashes = parseFlashesFromHTML(res.HTML)
	return res
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HasEvent checks if an event was triggered.
func (r *TestResult) HasEvent(event string) bool {
	for _, e := range r.TriggeredEvents {
		if e == event {
			return true
		}
	}
	return false
}

// HasFlash checks if a flash with the given level and message was rendered.
func (r *TestResult) HasFlash(level, message string) bool {
	for _, f := range r.Flashes {
		if f.Level == level && f.Message == message {
			return true
		}
	}
	return false
}

// RedirectedTo checks the HX-Redirect target.
func (r *TestResult) RedirectedTo(url string) bool {
	return r.RedirectURL == url
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// parseTriggerHeader returns the event names in an HX-Trigger value,
// which is either a comma-separated list or a JSON object keyed by event.
func parseTriggerHeader(trigger string) []string {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return nil
	}

	if strings.HasPrefix(trigger, "{") {
		var events []string
		depth := 0
		inString := false
		start := -1
		for i := 0; i < len(trigger); i++ {
			c := trigger[i]
			if inString && c == '\\' {
				i++
				continue
			}
			switch {
			case c == '"' && !inString:
				inString = true
				start = i + 1
			case c == '"':
				inString = false
				j := i + 1
				for j < len(trigger) && (trigger[j] == ' ' || trigger[j] == '\t') {
					j++
				}
				if depth == 1 && j < len(trigger) && trigger[j] == ':' {
					events = append(events, trigger[start:i])
				}
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
			}
		}
		return events
	}

	var events []string
	for _, p := range strings.Split(trigger, ",") {
		if p = strings.TrimSpace(p); p != "" {
			events = append(events, p)
		}
	}
	return events
}

// parseFlashesFromHTML extracts toasts rendered by RenderFlashesOOB.
// Messages are returned as they appear in the HTML, still escaped.
func parseFlashesFromHTML(html string) []Flash {
	const prefix = `<div class="toast toast-`
	var flashes []Flash

	idx := 0
	for {
		start := strings.Index(html[idx:], prefix)
		if start == -1 {
			break
		}
		start += idx + len(prefix)

		levelEnd := strings.Index(html[start:], `"`)
		tagEnd := strings.Index(html[start:], ">")
		if levelEnd == -1 || tagEnd == -1 {
			break
		}
		contentStart := start + tagEnd + 1
		contentEnd := strings.Index(html[contentStart:], "</div>")
		if contentEnd == -1 {
			break
		}

		flashes = append(flashes, Flash{
			Level:   html[start : start+levelEnd],
			Message: html[contentStart : contentStart+contentEnd],
		})
		idx = contentStart + contentEnd
	}
	return flashes
}
