package listview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SanmishaTech/jssp-sub001/internal/form"
	"github.com/SanmishaTech/jssp-sub001/internal/metrics"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

// =============================================================================
// Screen instances
// =============================================================================

// Client is the REST client used by controllers and dialogs.
type Client interface {
	Backend
	form.Backend
}

// Instance is one mounted screen: its list controller and its form dialog.
// Closing the instance cancels all of its pending work.
type Instance struct {
	Controller *Controller
	Dialog     *form.Dialog

	lastUsed time.Time
}

func (i *Instance) close() {
	i.Dialog.Teardown()
	i.Controller.Close()
}

type instanceKey struct {
	session string
	slug    string
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Catalogue   *screen.Catalogue
	Client      Client
	IdleTTL     time.Duration // instances unused for this long are torn down
	MaxImageDim int
	Logger      *slog.Logger
}

// Registry keeps the screen instances of every session.
type Registry struct {
	client      Client
	schemas     map[string]*form.Schema
	idleTTL     time.Duration
	maxImageDim int
	logger      *slog.Logger

	root   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	instances map[instanceKey]*Instance
	now       func() time.Time
}

// NewRegistry creates a registry. Form rules of every screen are checked here
// so that a bad catalogue fails at startup.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	schemas := make(map[string]*form.Schema)
	for _, s := range cfg.Catalogue.All() {
		schema, err := form.NewSchema(s.Fields)
		if err != nil {
			return nil, fmt.Errorf("screen %q: %w", s.Slug, err)
		}
		schemas[s.Slug] = schema
	}

	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = 30 * time.Minute
	}

	root, cancel := context.WithCancel(context.Background())
	return &Registry{
		client:      cfg.Client,
		schemas:     schemas,
		idleTTL:     idle,
		maxImageDim: cfg.MaxImageDim,
		logger:      cfg.Logger,
		root:        root,
		cancel:      cancel,
		instances:   make(map[instanceKey]*Instance),
		now:         time.Now,
	}, nil
}

// Instance returns the session's instance of s, mounting it on first use.
func (r *Registry) Instance(sessionID, token string, s *screen.Screen) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := instanceKey{session: sessionID, slug: s.Slug}
	if inst, ok := r.instances[k]; ok {
		inst.lastUsed = r.now()
		return inst
	}

	ctrl := New(r.root, s, r.client, token, r.logger)
	inst := &Instance{
		Controller: ctrl,
		Dialog: form.New(r.root, form.Config{
			Screen:      s,
			Schema:      r.schemas[s.Slug],
			Backend:     r.client,
			Owner:       ctrl,
			Token:       token,
			MaxImageDim: r.maxImageDim,
			Logger:      r.logger,
		}),
		lastUsed: r.now(),
	}
	r.instances[k] = inst
	metrics.ScreenInstances.Inc()
	r.logger.Debug("screen instance mounted", "screen", s.Slug)
	return inst
}

// Lookup returns an existing instance without mounting one.
func (r *Registry) Lookup(sessionID, slug string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[instanceKey{session: sessionID, slug: slug}]
	if ok {
		inst.lastUsed = r.now()
	}
	return inst, ok
}

// Close tears down one instance.
func (r *Registry) Close(sessionID, slug string) {
	r.mu.Lock()
	k := instanceKey{session: sessionID, slug: slug}
	inst, ok := r.instances[k]
	if ok {
		delete(r.instances, k)
	}
	r.mu.Unlock()

	if ok {
		inst.close()
		metrics.ScreenInstances.Dec()
	}
}

// CloseSession tears down every instance of a session and returns how many
// were closed.
func (r *Registry) CloseSession(sessionID string) int {
	r.mu.Lock()
	var closing []*Instance
	for k, inst := range r.instances {
		if k.session == sessionID {
			closing = append(closing, inst)
			delete(r.instances, k)
		}
	}
	r.mu.Unlock()

	for _, inst := range closing {
		inst.close()
		metrics.ScreenInstances.Dec()
	}
	return len(closing)
}

// Sweep tears down instances idle for longer than the idle TTL.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.idleTTL)
	var closing []*Instance
	for k, inst := range r.instances {
		if inst.lastUsed.Before(cutoff) {
			closing = append(closing, inst)
			delete(r.instances, k)
		}
	}
	r.mu.Unlock()

	for _, inst := range closing {
		inst.close()
		metrics.ScreenInstances.Dec()
	}
	if len(closing) > 0 {
		r.logger.Info("idle screen instances closed", "count", len(closing))
	}
	return len(closing)
}

// Run sweeps idle instances until ctx is done, then closes everything.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Shutdown()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Shutdown closes every instance and cancels all pending work.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	closing := r.instances
	r.instances = make(map[instanceKey]*Instance)
	r.mu.Unlock()

	for _, inst := range closing {
		inst.close()
		metrics.ScreenInstances.Dec()
	}
	r.cancel()
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
