package cache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/models"
)

// Store is the typed snapshot store over the durable KV, with an in-memory
// tier in front of it. Every save lands in memory first, so the memory copy
// is always at least as fresh as the durable one and keeps serving reads
// and mutations when the KV write is dropped or the KV is disabled. Reads
// of a missing key return empty snapshots, never errors: a fresh terminal
// starts from nothing.
type Store struct {
	kv       KV
	tenantID string

	mu  sync.RWMutex
	mem map[string][]byte
}

// NewStore creates a snapshot store scoped to one tenant.
func NewStore(kv KV, tenantID string) *Store {
	return &Store{kv: kv, tenantID: tenantID, mem: make(map[string][]byte)}
}

// save writes the snapshot to the memory tier, then to the durable KV. The
// returned error is the KV's; the memory write cannot fail past marshaling.
func (s *Store) save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal snapshot")
	}
	s.mu.Lock()
	s.mem[key] = data
	s.mu.Unlock()
	return s.kv.Set(ctx, key, value)
}

// load reads from the memory tier when populated, falling back to the
// durable KV on a cold start.
func (s *Store) load(ctx context.Context, key string, value interface{}) error {
	s.mu.RLock()
	data, ok := s.mem[key]
	s.mu.RUnlock()
	if ok {
		return json.Unmarshal(data, value)
	}
	return s.kv.Get(ctx, key, value)
}

// LoadOrders returns the cached orders snapshot.
func (s *Store) LoadOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.load(ctx, OrdersCacheKey(s.tenantID), &orders)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load orders snapshot")
	}
	return orders, nil
}

// SaveOrders atomically replaces the orders snapshot. The memory tier keeps
// the full snapshot regardless of the durable write's fate. On a quota
// error the durable write degrades: retry once with Delivered orders
// stripped, then drop it silently — memory keeps serving reads and the
// remote store stays authoritative ("cloud-only" mode). Any other durable
// write failure is logged and absorbed the same way. Mutation callers never
// see a failure.
func (s *Store) SaveOrders(ctx context.Context, orders []models.Order) error {
	err := s.save(ctx, OrdersCacheKey(s.tenantID), orders)
	if err == nil {
		return nil
	}
	if !IsQuotaError(err) {
		log.Warn().Err(err).Msg("Durable cache write failed, serving the orders snapshot from memory")
		return nil
	}

	pruned := pruneDelivered(orders)
	log.Warn().
		Int("before", len(orders)).
		Int("after", len(pruned)).
		Msg("Local cache quota exceeded, retrying with delivered orders stripped")

	if err := s.kv.Set(ctx, OrdersCacheKey(s.tenantID), pruned); err != nil {
		log.Warn().Err(err).Msg("Local cache still over quota, dropping write and serving from memory")
	}
	return nil
}

// LoadMenu returns the cached menu snapshot.
func (s *Store) LoadMenu(ctx context.Context) ([]models.MenuItem, error) {
	var menu []models.MenuItem
	err := s.load(ctx, MenuCacheKey(s.tenantID), &menu)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load menu snapshot")
	}
	return menu, nil
}

// SaveMenu replaces the menu snapshot. A durable write failure is absorbed;
// memory serves until the next successful write.
func (s *Store) SaveMenu(ctx context.Context, menu []models.MenuItem) error {
	if err := s.save(ctx, MenuCacheKey(s.tenantID), menu); err != nil {
		log.Warn().Err(err).Msg("Durable cache write failed, serving the menu snapshot from memory")
	}
	return nil
}

// LoadSettings returns the cached settings, or defaults when nothing is
// cached yet.
func (s *Store) LoadSettings(ctx context.Context) (models.AppSettings, error) {
	var settings models.AppSettings
	err := s.load(ctx, SettingsCacheKey(s.tenantID), &settings)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return models.DefaultSettings(), nil
		}
		return models.AppSettings{}, errors.Wrap(err, "failed to load settings snapshot")
	}
	settings.Normalize()
	return settings, nil
}

// SaveSettings replaces the settings snapshot, absorbing durable write
// failures like SaveMenu.
func (s *Store) SaveSettings(ctx context.Context, settings models.AppSettings) error {
	if err := s.save(ctx, SettingsCacheKey(s.tenantID), settings); err != nil {
		log.Warn().Err(err).Msg("Durable cache write failed, serving the settings snapshot from memory")
	}
	return nil
}

func pruneDelivered(orders []models.Order) []models.Order {
	kept := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status != models.StatusDelivered {
			kept = append(kept, o)
		}
	}
	return kept
}
