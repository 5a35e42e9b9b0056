// Package audiostore keeps synthesized audio for a fixed window and deletes
// it afterwards, whether or not it was ever fetched.
//
// A Store owns a registry of live assets and a single expiry queue ordered
// by deadline. One scheduler goroutine (Run) drains the queue. There is no
// capacity bound: under a high request rate storage grows with the number of
// assets created within one TTL window.
package audiostore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ent0n29/kanavoz/internal/audio"
)

// DefaultTTL is how long an asset stays retrievable.
const DefaultTTL = 300 * time.Second

// retryDelay reschedules an asset whose backend delete failed.
const retryDelay = 10 * time.Second

var assetKeyPattern = regexp.MustCompile(`^[0-9]+-[0-9a-f]{8}\.[a-z0-9]+$`)

// IsAssetKey reports whether key has the shape of a key this package
// creates: a NewID id followed by the extension of a supported audio format.
// Anything else found in a backend belongs to someone else and is neither
// served nor deleted.
func IsAssetKey(key string) bool {
	return assetKeyPattern.MatchString(key) && audio.KnownExt(filepath.Ext(key))
}

// Asset is the metadata of one stored blob.
type Asset struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the default time-derived id generator.
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets the logger used for store and expiry events.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// Store owns the live asset registry and the expiry queue over one Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	newID   func(time.Time) string
	log     zerolog.Logger

	mu       sync.Mutex
	assets   map[string]Asset
	queue    expiryQueue
	onStore  func(Asset)
	onExpire func(Asset)

	wake chan struct{}
}

// New returns a Store over backend. A non-positive ttl selects DefaultTTL.
func New(backend Backend, ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		newID:   NewID,
		log:     zerolog.Nop(),
		assets:  make(map[string]Asset),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID derives an id from the creation time in milliseconds plus eight hex
// characters of a random UUID, so same-instant requests do not collide.
func NewID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", t.UnixMilli(), suffix)
}

// SetStoreHook registers fn to run after an asset is stored or recovered.
func (s *Store) SetStoreHook(fn func(Asset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStore = fn
}

// SetExpireHook registers fn to run after an asset is deleted.
func (s *Store) SetExpireHook(fn func(Asset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) BackendKind() string { return s.backend.Kind() }

// Len is the number of live assets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

// Lookup returns the registry entry for id.
func (s *Store) Lookup(id string) (Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	return a, ok
}

// Store writes data under a fresh id with extension ext and schedules its
// deletion at CreatedAt + TTL.
func (s *Store) Store(ctx context.Context, data []byte, ext string) (Asset, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !audio.KnownExt(ext) {
		return Asset{}, fmt.Errorf("store audio: %w: extension %q", ErrInvalidKey, ext)
	}
	now := s.now()
	id := s.newID(now)
	asset := Asset{
		ID:        id,
		Key:       id + ext,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	_, taken := s.assets[id]
	s.mu.Unlock()
	if taken {
		return Asset{}, fmt.Errorf("store audio: duplicate id %s", id)
	}

	if err := s.backend.Put(ctx, asset.Key, data); err != nil {
		return Asset{}, fmt.Errorf("store audio: %w", err)
	}

	s.mu.Lock()
	s.assets[id] = asset
	s.queue.push(asset)
	hook := s.onStore
	s.mu.Unlock()
	s.signal()
	if hook != nil {
		hook(asset)
	}

	s.log.Debug().
		Str("asset_id", id).
		Time("expires_at", asset.ExpiresAt).
		Int("bytes", len(data)).
		Msg("audio stored")
	return asset, nil
}

// Retrieve returns the blob stored under key. Retrieval does not extend the
// asset's lifetime. A retrieval racing the deletion may see either outcome.
func (s *Store) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if !IsAssetKey(key) {
		return nil, ErrNotFound
	}
	return s.backend.Get(ctx, key)
}

// Expire deletes the blob of id and drops its registry entry. Unknown or
// already expired ids are a no-op.
func (s *Store) Expire(ctx context.Context, id string) error {
	s.mu.Lock()
	asset, ok := s.assets[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.expire(ctx, asset)
}

func (s *Store) expire(ctx context.Context, asset Asset) error {
	if err := s.backend.Delete(ctx, asset.Key); err != nil {
		return fmt.Errorf("expire %s: %w", asset.ID, err)
	}

	s.mu.Lock()
	_, live := s.assets[asset.ID]
	delete(s.assets, asset.ID)
	hook := s.onExpire
	s.mu.Unlock()

	if !live {
		return nil
	}
	s.log.Debug().Str("asset_id", asset.ID).Msg("audio expired")
	if hook != nil {
		hook(asset)
	}
	return nil
}

// Recover schedules blobs left in the backend by a previous process. Each is
// given ModTime + TTL as its deadline, which may already have passed. Keys
// that are not asset keys are left alone. It returns the number of assets
// scheduled.
func (s *Store) Recover(ctx context.Context) (int, error) {
	objects, err := s.backend.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover audio: %w", err)
	}

	var recovered []Asset
	s.mu.Lock()
	for _, obj := range objects {
		if !IsAssetKey(obj.Key) {
			continue
		}
		id := strings.TrimSuffix(obj.Key, filepath.Ext(obj.Key))
		if _, ok := s.assets[id]; ok {
			continue
		}
		asset := Asset{
			ID:        id,
			Key:       obj.Key,
			CreatedAt: obj.ModTime,
			ExpiresAt: obj.ModTime.Add(s.ttl),
		}
		s.assets[id] = asset
		s.queue.push(asset)
		recovered = append(recovered, asset)
	}
	hook := s.onStore
	s.mu.Unlock()

	n := len(recovered)
	if hook != nil {
		for _, asset := range recovered {
			hook(asset)
		}
	}
	if n > 0 {
		s.signal()
		s.log.Info().Int("assets", n).Str("backend", s.backend.Kind()).Msg("recovered audio from previous run")
	}
	return n, nil
}

// Run drains the expiry queue until ctx is done. Only one Run may be active.
func (s *Store) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.expireDue(ctx)

		wait := time.Hour
		s.mu.Lock()
		if next, ok := s.queue.peek(); ok {
			wait = next.Sub(s.now())
		}
		s.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// expireDue deletes every asset whose deadline has passed. Failed deletes
// are retried after retryDelay.
func (s *Store) expireDue(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	due := s.queue.popDue(now)
	s.mu.Unlock()

	for _, asset := range due {
		err := s.expire(ctx, asset)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error().Err(err).Str("asset_id", asset.ID).Msg("audio delete failed, retrying")
		asset.ExpiresAt = now.Add(retryDelay)
		s.mu.Lock()
		s.queue.push(asset)
		s.mu.Unlock()
	}
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
