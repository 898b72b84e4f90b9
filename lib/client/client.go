// Package client performs the outbound registration request.
//
// A Client issues exactly one POST per call and never retries. The outcome
// is one of three things: a created Response, an *ApplicationError for any
// other HTTP status, or a *TransportError when no usable response arrived.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RegisterPath is the backend route for account creation.
const RegisterPath = "/register"

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// Request is the JSON payload sent to the backend.
type Request struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response is a successful (201) registration reply.
type Response struct {
	Status int
	Msg    string
}

// ApplicationError is a well-formed reply with a status other than 201.
type ApplicationError struct {
	Status int
	Msg    string
}

func (e *ApplicationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("register: status %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("register: status %d", e.Status)
}

// TransportError means the request could not be completed or the reply
// could not be understood.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "register: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsApplication reports whether err is, or wraps, an *ApplicationError.
func IsApplication(err error) bool {
	var ae *ApplicationError
	return errors.As(err, &ae)
}

// HTTPDoer is the subset of *http.Client used here.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL is prepended to RegisterPath, e.g. "http://localhost:8080".
	BaseURL string
	// Timeout bounds the whole exchange. Zero means no timeout.
	// Ignored when HTTP is set.
	Timeout time.Duration
	// HTTP overrides the transport, mainly for tests.
	HTTP HTTPDoer
}

// Client talks to the registration endpoint.
type Client struct {
	url  string
	http HTTPDoer
}

// New creates a Client.
func New(opts Options) *Client {
	doer := opts.HTTP
	if doer == nil {
		doer = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		url:  strings.TrimSuffix(opts.BaseURL, "/") + RegisterPath,
		http: doer,
	}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Register posts username and password once.
func (c *Client) Register(ctx context.Context, username, password string) (Response, error) {
	body, err := json.Marshal(Request{Username: username, Password: password})
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Response{}, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode == http.StatusCreated {
		msg, err := decodeMsg(raw)
		if err != nil {
			return Response{}, &TransportError{Err: fmt.Errorf("decode body: %w", err)}
		}
		return Response{Status: resp.StatusCode, Msg: msg}, nil
	}

	// Error replies are often HTML or plain text from a proxy; fall back
	// to the status text rather than failing on them.
	msg, err := decodeMsg(raw)
	if err != nil || msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return Response{}, &ApplicationError{Status: resp.StatusCode, Msg: msg}
}

// decodeMsg extracts the optional "msg" field. An empty body is fine.
func decodeMsg(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	var payload struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", err
	}
	return payload.Msg, nil
}
