package register

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/pthm/hxsignup/lib/form"
	"github.com/pthm/hxsignup/lib/metrics"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// Submitter performs the registration request. Required.
	Submitter form.Submitter
	// LoginPath is where successful registrations go (default /login).
	LoginPath string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Instance is one mounted registration form.
type Instance struct {
	ID         string
	Controller *form.Controller

	nav     *redirector
	touched time.Time
}

// TakeRedirect returns the path recorded by a successful submission and
// clears it. Empty means no navigation is pending.
func (i *Instance) TakeRedirect() string {
	return i.nav.take()
}

// redirector is the form's Navigator. The HTTP layer turns the recorded
// path into an HX-Redirect.
type redirector struct {
	mu   sync.Mutex
	path string
}

func (r *redirector) Navigate(ctx context.Context, path string) {
	r.mu.Lock()
	r.path = path
	r.mu.Unlock()
}

func (r *redirector) take() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.path
	r.path = ""
	return p
}

// Store holds mounted form instances in memory, keyed by UUID.
type Store struct {
	opts StoreOptions
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	forms map[string]*Instance
}

// NewStore creates an empty store.
func NewStore(opts StoreOptions) *Store {
	if opts.Submitter == nil {
		panic("register: StoreOptions.Submitter is required")
	}
	if opts.LoginPath == "" {
		opts.LoginPath = form.DefaultLoginPath
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		opts:  opts,
		log:   log,
		now:   time.Now,
		forms: make(map[string]*Instance),
	}
}

// LoginPath returns the configured login path.
func (s *Store) LoginPath() string {
	return s.opts.LoginPath
}

// Mount creates a fresh, empty form instance.
func (s *Store) Mount() *Instance {
	id := uuid.NewString()
	nav := &redirector{}
	inst := &Instance{
		ID:  id,
		nav: nav,
		Controller: form.NewController(form.Options{
			ID:        id,
			Submitter: s.opts.Submitter,
			Navigator: nav,
			LoginPath: s.opts.LoginPath,
			Logger:    s.log,
			Metrics:   s.opts.Metrics,
		}),
	}

	s.mu.Lock()
	inst.touched = s.now()
	s.forms[id] = inst
	s.mu.Unlock()

	s.opts.Metrics.Mounted(1)
	s.log.Debug("form mounted", "form_id", id)
	return inst
}

// Get returns the instance for id and marks it as used.
func (s *Store) Get(id string) (*Instance, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.forms[id]
	if ok {
		inst.touched = s.now()
	}
	return inst, ok
}

// Delete unmounts and removes the instance. It reports whether id existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	inst, ok := s.forms[id]
	delete(s.forms, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	inst.Controller.Unmount()
	s.opts.Metrics.Mounted(-1)
	return true
}

// Len returns the number of mounted instances.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forms)
}

// Sweep unmounts instances unused for longer than idle. Instances with a
// submission in flight are kept until it settles.
func (s *Store) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	var expired []*Instance
	s.mu.Lock()
	for id, inst := range s.forms {
		if inst.touched.After(cutoff) || inst.Controller.InFlight() {
			continue
		}
		expired = append(expired, inst)
		delete(s.forms, id)
	}
	s.mu.Unlock()

	for _, inst := range expired {
		inst.Controller.Unmount()
	}
	if n := len(expired); n > 0 {
		s.opts.Metrics.Mounted(-n)
		s.log.Info("expired idle forms", "count", n, "remaining", s.Len())
	}
	return len(expired)
}

// Schedule registers Sweep on c with the given cron spec.
func (s *Store) Schedule(c *cron.Cron, spec string, idle time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() { s.Sweep(idle) })
}
