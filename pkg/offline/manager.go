package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/scaledspace/pkg/metrics"
)

var (
	ErrCacheInstallFailure   = errors.New("cache install failed")
	ErrNetworkUnavailable    = errors.New("network unavailable")
	ErrNoInstalledGeneration = errors.New("no installed cache generation")
)

// State is the lifecycle stage of a cache generation.
type State string

const (
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActive     State = "active"
	StateFailed     State = "failed"
)

// Generation is one installed snapshot of the shell.
type Generation struct {
	Name     string
	Manifest *Manifest
	Keys     []string
}

// Event reports a generation state change.
type Event struct {
	Generation string
	State      State
	Err        error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("cache %s %s: %v", e.Generation, e.State, e.Err)
	}
	return fmt.Sprintf("cache %s %s", e.Generation, e.State)
}

// Manager installs and activates cache generations.
type Manager struct {
	storage     Storage
	origin      *url.URL
	transport   http.RoundTripper
	assets      fs.FS
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
	events      chan Event

	// transition serializes install, activation and adoption of generations.
	transition sync.Mutex

	mu      sync.RWMutex
	states  map[string]State
	pending *Generation
	active  *Generation
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTransport sets the network transport used for fetches.
func WithTransport(rt http.RoundTripper) ManagerOption {
	return func(m *Manager) {
		m.transport = rt
	}
}

// WithAssets sets the deployed asset tree manifest globs expand against.
func WithAssets(assets fs.FS) ManagerOption {
	return func(m *Manager) {
		m.assets = assets
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithConcurrency bounds parallel fetches during install.
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager for the application served at origin.
func NewManager(storage Storage, origin string, opts ...ManagerOption) (*Manager, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", origin)
	}
	m := &Manager{
		storage:     storage,
		origin:      &url.URL{Scheme: u.Scheme, Host: u.Host},
		transport:   http.DefaultTransport,
		concurrency: 4,
		now:         time.Now,
		events:      make(chan Event, 16),
		states:      make(map[string]State),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Events delivers generation state changes. Events are dropped when
// nobody reads them.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) emit(e Event) {
	select {
	case m.events <- e:
	default:
		if m.logger != nil {
			m.logger.Debug("cache event dropped", "event", e.String())
		}
	}
}

func (m *Manager) setState(name string, s State, err error) {
	m.mu.Lock()
	m.states[name] = s
	m.mu.Unlock()
	m.emit(Event{Generation: name, State: s, Err: err})
}

// Origin returns the scheme and host the manager fetches from.
func (m *Manager) Origin() *url.URL {
	u := *m.origin
	return &u
}

// Transport returns the network transport.
func (m *Manager) Transport() http.RoundTripper {
	return m.transport
}

// Active returns the generation currently serving requests.
func (m *Manager) Active() (Generation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return Generation{}, false
	}
	return *m.active, true
}

// Storage returns the backing storage.
func (m *Manager) Storage() Storage {
	return m.storage
}

// Install fetches every shell asset and stores them as a new generation.
// The generation is written only when every fetch succeeded; on failure
// the error wraps ErrCacheInstallFailure and the active generation is
// left untouched.
func (m *Manager) Install(ctx context.Context, manifest *Manifest) error {
	m.transition.Lock()
	defer m.transition.Unlock()
	return m.installGeneration(ctx, manifest)
}

func (m *Manager) installGeneration(ctx context.Context, manifest *Manifest) error {
	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheInstallFailure, err)
	}
	name := manifest.Generation()
	m.setState(name, StateInstalling, nil)

	err := m.install(ctx, name, manifest)
	if err != nil {
		metrics.CacheInstalls.WithLabelValues("failed").Inc()
		m.setState(name, StateFailed, err)
		if m.logger != nil {
			m.logger.Warn("cache install failed", "generation", name, "error", err)
		}
		return err
	}

	metrics.CacheInstalls.WithLabelValues("installed").Inc()
	if m.logger != nil {
		m.logger.Info("cache generation installed", "generation", name)
	}
	return nil
}

func (m *Manager) install(ctx context.Context, name string, manifest *Manifest) error {
	keys, err := manifest.Expand(m.assets)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheInstallFailure, err)
	}
	offlineKey, err := RequestKey(manifest.Offline)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheInstallFailure, err)
	}
	hasOffline := false
	for _, k := range keys {
		if k == offlineKey {
			hasOffline = true
			break
		}
	}
	if !hasOffline {
		return fmt.Errorf("%w: offline page %s did not resolve to an asset", ErrCacheInstallFailure, offlineKey)
	}

	var mu sync.Mutex
	entries := make(map[string]Entry, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			entry, err := m.fetch(gctx, key)
			if err != nil {
				return fmt.Errorf("%w: generation %s: asset %s: %w", ErrCacheInstallFailure, name, key, err)
			}
			mu.Lock()
			entries[key] = entry
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := m.storage.PutAll(ctx, name, entries); err != nil {
		return fmt.Errorf("%w: generation %s: %w", ErrCacheInstallFailure, name, err)
	}

	m.mu.Lock()
	m.states[name] = StateInstalled
	m.pending = &Generation{Name: name, Manifest: manifest, Keys: keys}
	m.mu.Unlock()
	m.emit(Event{Generation: name, State: StateInstalled})
	return nil
}

func (m *Manager) fetch(ctx context.Context, key string) (Entry, error) {
	target, err := m.origin.Parse(key)
	if err != nil {
		return Entry{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Entry{}, err
	}
	resp, err := m.transport.RoundTrip(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Entry{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read body: %w", err)
	}
	return Entry{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: m.now().UnixMilli(),
	}, nil
}

// Activate makes the installed generation the active one and deletes every
// other stored generation.
func (m *Manager) Activate(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()
	return m.activate(ctx)
}

func (m *Manager) activate(ctx context.Context) error {
	m.mu.RLock()
	next := m.pending
	m.mu.RUnlock()
	if next == nil {
		return ErrNoInstalledGeneration
	}

	names, err := m.storage.Generations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cache generations: %w", err)
	}
	for _, name := range names {
		if name == next.Name {
			continue
		}
		if err := m.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to evict cache generation %s: %w", name, err)
		}
		if m.logger != nil {
			m.logger.Info("cache generation evicted", "generation", name)
		}
	}

	m.mu.Lock()
	for name := range m.states {
		if name != next.Name {
			delete(m.states, name)
		}
	}
	m.states[next.Name] = StateActive
	m.active = next
	m.pending = nil
	m.mu.Unlock()

	m.emit(Event{Generation: next.Name, State: StateActive})
	if m.logger != nil {
		m.logger.Info("cache generation activated", "generation", next.Name)
	}
	return nil
}

// Resume adopts a generation stored by an earlier process as active,
// without refetching. It reports whether one was found.
func (m *Manager) Resume(ctx context.Context, manifest *Manifest) (bool, error) {
	m.transition.Lock()
	defer m.transition.Unlock()

	gen, err := m.stored(ctx, manifest)
	if err != nil || gen == nil {
		return false, err
	}

	m.mu.Lock()
	m.states[gen.Name] = StateActive
	m.active = gen
	m.mu.Unlock()

	m.emit(Event{Generation: gen.Name, State: StateActive})
	return true, nil
}

// Stage marks a generation stored by an earlier process as installed so a
// following Activate promotes it. It reports whether one was found.
func (m *Manager) Stage(ctx context.Context, manifest *Manifest) (bool, error) {
	m.transition.Lock()
	defer m.transition.Unlock()

	gen, err := m.stored(ctx, manifest)
	if err != nil || gen == nil {
		return false, err
	}

	m.mu.Lock()
	m.states[gen.Name] = StateInstalled
	m.pending = gen
	m.mu.Unlock()
	return true, nil
}

func (m *Manager) stored(ctx context.Context, manifest *Manifest) (*Generation, error) {
	name := manifest.Generation()
	found, err := m.storage.Has(ctx, name)
	if err != nil || !found {
		return nil, err
	}
	keys, err := m.storage.Keys(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Generation{Name: name, Manifest: manifest, Keys: keys}, nil
}

// Update installs and activates the manifest's generation unless it is
// already active.
func (m *Manager) Update(ctx context.Context, manifest *Manifest) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	if active, ok := m.Active(); ok && active.Name == manifest.Generation() {
		return nil
	}
	if err := m.installGeneration(ctx, manifest); err != nil {
		return err
	}
	return m.activate(ctx)
}

// ManagerState is a snapshot of the manager for introspection.
type ManagerState struct {
	Origin      string           `json:"origin"`
	Active      string           `json:"active,omitempty"`
	Pending     string           `json:"pending,omitempty"`
	Generations map[string]State `json:"generations"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := ManagerState{
		Origin:      m.origin.String(),
		Generations: make(map[string]State, len(m.states)),
	}
	for k, v := range m.states {
		s.Generations[k] = v
	}
	if m.active != nil {
		s.Active = m.active.Name
	}
	if m.pending != nil {
		s.Pending = m.pending.Name
	}
	return s
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "cache-manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
