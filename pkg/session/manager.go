package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/logging"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed view lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Factory builds the tree of a view the first time it is opened.
type Factory func(ctx context.Context, view string) (*detailtree.Tree, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type viewEntry struct {
	tree    *detailtree.Tree
	pending []domain.Change
}

// Manager orchestrates view access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	factory Factory

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Map of active locks
	views map[string]*viewEntry // Map of open views

	locker      ports.DistributedLocker // Optional distributed locker
	ttl         time.Duration
	notifier    ports.ChangeNotifier
	unsubscribe func()
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks (default DefaultLockTTL).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithNotifier queues repository changes for every open view. Queued changes are
// applied when the view is next used.
func WithNotifier(n ports.ChangeNotifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a view manager that builds trees with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		locks:   make(map[string]*lockEntry),
		views:   make(map[string]*viewEntry),
		ttl:     DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier != nil {
		m.unsubscribe = m.notifier.Subscribe(m.enqueue)
	}
	return m
}

// enqueue runs inside the committer's call stack, possibly while a view lock is
// held, so it only touches the maps.
func (m *Manager) enqueue(c domain.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.views {
		v.pending = append(v.pending, c)
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(view) after unlocking.
func (m *Manager) acquire(view string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[view]
	if !exists {
		entry = &lockEntry{}
		m.locks[view] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(view string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[view]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, view)
	}
}

// WithLock executes a function while holding the lock for the view.
func (m *Manager) WithLock(ctx context.Context, view string, fn func(context.Context) error) error {
	entry := m.acquire(view)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(view)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "view:"+view, m.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"view", view,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// WithView runs fn on the tree of view, opening the view if needed. Changes queued
// since the view was last used are applied first, with a single rebuild at most.
func (m *Manager) WithView(ctx context.Context, view string, fn func(context.Context, *detailtree.Tree) error) error {
	return m.WithLock(ctx, view, func(ctx context.Context) error {
		tree, pending, err := m.open(ctx, view)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			err := tree.SuppressRefresh(ctx, func() error {
				var errs []error
				for _, c := range pending {
					errs = append(errs, tree.HandleChange(ctx, c))
				}
				return errors.Join(errs...)
			})
			if err != nil {
				m.logger.Warn("applying queued changes failed", "view", view, "changes", len(pending), "err", err)
			}
		}
		return fn(ctx, tree)
	})
}

// open must be called with the view lock held.
func (m *Manager) open(ctx context.Context, view string) (*detailtree.Tree, []domain.Change, error) {
	m.mu.Lock()
	v, ok := m.views[view]
	if ok {
		pending := v.pending
		v.pending = nil
		m.mu.Unlock()
		return v.tree, pending, nil
	}
	m.mu.Unlock()

	tree, err := m.factory(ctx, view)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open view %s: %w", view, err)
	}
	m.mu.Lock()
	m.views[view] = &viewEntry{tree: tree}
	m.mu.Unlock()
	m.logger.Debug("view opened", "view", view)
	return tree, nil, nil
}

// Close disposes the tree of view and forgets it.
func (m *Manager) Close(ctx context.Context, view string) error {
	return m.WithLock(ctx, view, func(ctx context.Context) error {
		m.mu.Lock()
		v, ok := m.views[view]
		delete(m.views, view)
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("%s: %w", view, domain.ErrViewNotFound)
		}
		v.tree.Close()
		m.logger.Debug("view closed", "view", view)
		return nil
	})
}

// List returns the names of the open views, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.views))
	for name := range m.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown closes every view and stops listening for changes.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	var errs []error
	for _, name := range m.List() {
		if err := m.Close(ctx, name); err != nil && !errors.Is(err, domain.ErrViewNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
