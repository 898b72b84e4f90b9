package hxsignup

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
)

// encoderSetter and errorHandlerSetter are satisfied by anything that
// embeds *Component[P].
type encoderSetter interface {
	SetEncoder(*Encoder)
}

type errorHandlerSetter interface {
	SetErrorHandler(func(http.ResponseWriter, *http.Request, error))
}

// Registry routes component requests and owns the props encoder.
type Registry struct {
	mu         sync.RWMutex
	mux        *http.ServeMux
	encoder    *Encoder
	components map[string]HXComponent

	// OnError writes the response for failed requests. It runs after the
	// error has been logged.
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger receives one record per failed request.
	Logger *slog.Logger
}

// NewRegistry creates a registry whose encoder is keyed with key.
func NewRegistry(key []byte) *Registry {
	enc, err := NewEncoder(key)
	if err != nil {
		panic(fmt.Sprintf("hxsignup: failed to create encoder: %v", err))
	}
	return &Registry{
		mux:        http.NewServeMux(),
		encoder:    enc,
		components: make(map[string]HXComponent),
		OnError:    DefaultErrorHandler,
		Logger:     slog.Default(),
	}
}

// Encoder returns the registry's encoder.
func (reg *Registry) Encoder() *Encoder {
	return reg.encoder
}

// Add registers components. It panics on a prefix collision, so wiring
// mistakes surface at startup rather than on first request.
func (reg *Registry) Add(components ...HXComponent) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, comp := range components {
		prefix := comp.HXPrefix()
		if _, exists := reg.components[prefix]; exists {
			panic(fmt.Sprintf("hxsignup: prefix collision for %q", prefix))
		}
		if es, ok := comp.(encoderSetter); ok {
			es.SetEncoder(reg.encoder)
		}
		if eh, ok := comp.(errorHandlerSetter); ok {
			eh.SetErrorHandler(reg.handleError)
		}
		reg.components[prefix] = comp
		reg.mux.HandleFunc(prefix+"/", comp.HXServeHTTP)
	}
}

// Prefixes returns the registered prefixes in sorted order.
func (reg *Registry) Prefixes() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]string, 0, len(reg.components))
	for p := range reg.components {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (reg *Registry) handleError(w http.ResponseWriter, r *http.Request, err error) {
	level := slog.LevelError
	if IsNotFound(err) || IsDecryptionError(err) {
		level = slog.LevelWarn
	}
	reg.Logger.Log(r.Context(), level, "component request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"trigger", TriggerID(r),
		"target", TargetID(r),
		"current_url", CurrentURL(r),
		"boosted", IsBoosted(r),
		"err", err)
	reg.OnError(w, r, err)
}

// Handler returns the HTTP handler for component routes. Mount it at
// "/_c/".
//
// Mutating methods must carry HX-Request: true. A cross-origin page can
// submit a plain form but cannot add that header without a preflight, so
// this stands in for a CSRF token.
func (reg *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !IsHTMX(r) {
			http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
			return
		}
		reg.mux.ServeHTTP(w, r)
	})
}
