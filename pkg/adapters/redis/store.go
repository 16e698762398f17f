package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/goccy/go-json"
	backend "github.com/redis/go-redis/v9"
)

// PrefsStore implements ports.PrefsStore using Redis.
// Each view's prefs live under {prefix}{view}; a sorted set {prefix}index, scored by
// expiry time, lists the views.
type PrefsStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the PrefsStore.
type Option func(*PrefsStore)

// WithTTL expires prefs that were not saved for ttl (zero keeps them forever).
func WithTTL(ttl time.Duration) Option {
	return func(s *PrefsStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix (default "detailtree:prefs:").
func WithPrefix(prefix string) Option {
	return func(s *PrefsStore) {
		s.prefix = prefix
	}
}

// New connects to the Redis server at addr.
func New(addr string, opts ...Option) *PrefsStore {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient creates a store on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *PrefsStore {
	s := &PrefsStore{
		client: client,
		prefix: "detailtree:prefs:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *PrefsStore) Client() *backend.Client {
	return s.client
}

func (s *PrefsStore) key(view string) string { return s.prefix + view }
func (s *PrefsStore) index() string          { return s.prefix + "index" }

// Save persists the prefs of a view.
func (s *PrefsStore) Save(ctx context.Context, view string, prefs domain.Prefs) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}
	score := float64(0)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(view), data, s.ttl)
	pipe.ZAdd(ctx, s.index(), backend.Z{Score: score, Member: view})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save prefs for %s: %w", view, err)
	}
	return nil
}

// Load retrieves the prefs of a view.
func (s *PrefsStore) Load(ctx context.Context, view string) (domain.Prefs, error) {
	data, err := s.client.Get(ctx, s.key(view)).Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.Prefs{}, domain.ErrPrefsNotFound
	}
	if err != nil {
		return domain.Prefs{}, fmt.Errorf("failed to load prefs for %s: %w", view, err)
	}
	var p domain.Prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Prefs{}, fmt.Errorf("failed to decode prefs for %s: %w", view, err)
	}
	return p, nil
}

// Delete removes the prefs of a view.
func (s *PrefsStore) Delete(ctx context.Context, view string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(view))
	pipe.ZRem(ctx, s.index(), view)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete prefs for %s: %w", view, err)
	}
	return nil
}

// List returns the views with saved prefs. Expired index entries are removed lazily.
func (s *PrefsStore) List(ctx context.Context) ([]string, error) {
	if s.ttl > 0 {
		now := fmt.Sprintf("%d", time.Now().Unix())
		if err := s.client.ZRemRangeByScore(ctx, s.index(), "1", "("+now).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune prefs index: %w", err)
		}
	}
	views, err := s.client.ZRange(ctx, s.index(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list prefs: %w", err)
	}
	return views, nil
}
