package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu         sync.RWMutex
	estimates  map[string]EstimateEntry
	quarantine map[string]QuarantineItem
	byDedupe   map[string]string
	readings   map[string]IntervalReading
	settings   map[string]string
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		estimates:  make(map[string]EstimateEntry),
		quarantine: make(map[string]QuarantineItem),
		byDedupe:   make(map[string]string),
		readings:   make(map[string]IntervalReading),
		settings:   make(map[string]string),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Estimate cache

func (m *MemoryStorage) GetEstimate(ctx context.Context, cacheKey string) (*EstimateEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.estimates[cacheKey]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

func (m *MemoryStorage) PutEstimate(ctx context.Context, e EstimateEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ComputedAt.IsZero() {
		e.ComputedAt = time.Now()
	}
	m.estimates[e.CacheKey] = e
	return nil
}

func (m *MemoryStorage) DeleteEstimate(ctx context.Context, cacheKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.estimates, cacheKey)
	return nil
}

func (m *MemoryStorage) DeleteEstimatesForHome(ctx context.Context, homeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, e := range m.estimates {
		if e.HomeID == homeID {
			delete(m.estimates, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) PurgeExpiredEstimates(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, e := range m.estimates {
		if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now) {
			delete(m.estimates, key)
			n++
		}
	}
	return n, nil
}

// Quarantine queue

func (m *MemoryStorage) UpsertQuarantineItem(ctx context.Context, item QuarantineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byDedupe[item.DedupeKey]; ok {
		existing := m.quarantine[id]
		existing.SeenCount++
		existing.LastSeenAt = item.LastSeenAt
		existing.Detail = item.Detail
		// A resolved item seen again reopens.
		existing.Status = QuarantineOpen
		existing.ResolvedAt = nil
		existing.Resolution = ""
		m.quarantine[id] = existing
		return nil
	}
	m.quarantine[item.ID] = item
	m.byDedupe[item.DedupeKey] = item.ID
	return nil
}

func (m *MemoryStorage) GetQuarantineItem(ctx context.Context, id string) (*QuarantineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.quarantine[id]
	if !ok {
		return nil, nil
	}
	cp := item
	return &cp, nil
}

func (m *MemoryStorage) GetQuarantineItemByDedupeKey(ctx context.Context, dedupeKey string) (*QuarantineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDedupe[dedupeKey]
	if !ok {
		return nil, nil
	}
	cp := m.quarantine[id]
	return &cp, nil
}

func (m *MemoryStorage) ListQuarantineItems(ctx context.Context, status string, limit int) ([]QuarantineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []QuarantineItem
	for _, item := range m.quarantine {
		if status != "" && item.Status != status {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStorage) ResolveQuarantineItem(ctx context.Context, id, resolution string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.quarantine[id]
	if !ok {
		return nil
	}
	now := time.Now()
	item.Status = QuarantineResolved
	item.ResolvedAt = &now
	item.Resolution = resolution
	m.quarantine[id] = item
	return nil
}

// Interval readings

func readingKey(r IntervalReading) string {
	return r.MeterID + "|" + r.Timestamp.UTC().Format(time.RFC3339) + "|" + r.Source
}

func (m *MemoryStorage) SaveIntervalReadings(ctx context.Context, readings []IntervalReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range readings {
		m.readings[readingKey(r)] = r
	}
	return nil
}

func (m *MemoryStorage) QueryIntervalReadings(ctx context.Context, meterID string, from, to time.Time) ([]IntervalReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []IntervalReading
	for _, r := range m.readings {
		if r.MeterID != meterID {
			continue
		}
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) LatestIntervalTimestamp(ctx context.Context, meterID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest time.Time
	for _, r := range m.readings {
		if r.MeterID == meterID && r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	return latest, nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Locking & scheduled jobs

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	// Single instance always acquires.
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	return nil
}
