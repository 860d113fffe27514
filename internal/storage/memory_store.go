package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/example/roadside-matching/internal/models"
)

// MemoryStore keeps providers and requests in process memory. Records are
// copied in and out so callers never share slices with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[string]models.Provider
	order     []string
	requests  map[string]models.ServiceRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: make(map[string]models.Provider),
		requests:  make(map[string]models.ServiceRequest),
	}
}

func cloneProvider(p models.Provider) models.Provider {
	p.ServiceTags = slices.Clone(p.ServiceTags)
	p.Skills = slices.Clone(p.Skills)
	return p
}

func (m *MemoryStore) ListProviders(_ context.Context) ([]models.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Provider, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneProvider(m.providers[id]))
	}
	return out, nil
}

func (m *MemoryStore) GetProvider(_ context.Context, id string) (models.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return models.Provider{}, ErrNotFound
	}
	return cloneProvider(p), nil
}

func (m *MemoryStore) GetProviderByOwner(_ context.Context, ownerID string) (models.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if p := m.providers[id]; p.OwnerID == ownerID {
			return cloneProvider(p), nil
		}
	}
	return models.Provider{}, ErrNotFound
}

func (m *MemoryStore) InsertProvider(_ context.Context, p models.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[p.ID]; ok {
		return ErrConflict
	}
	for _, existing := range m.providers {
		if p.OwnerID != "" && existing.OwnerID == p.OwnerID {
			return ErrConflict
		}
	}
	m.providers[p.ID] = cloneProvider(p)
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryStore) UpdateProvider(_ context.Context, id string, fn func(*models.Provider) error) (models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return models.Provider{}, ErrNotFound
	}
	p = cloneProvider(p)
	if err := fn(&p); err != nil {
		return models.Provider{}, err
	}
	m.providers[id] = cloneProvider(p)
	return p, nil
}

func (m *MemoryStore) InsertRequest(_ context.Context, r models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return ErrConflict
	}
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) GetRequest(_ context.Context, id string) (models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return models.ServiceRequest{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListRequestsByClient(_ context.Context, clientID string) ([]models.ServiceRequest, error) {
	return m.filterRequests(func(r models.ServiceRequest) bool { return r.ClientID == clientID }), nil
}

func (m *MemoryStore) ListRequestsByProvider(_ context.Context, providerID string) ([]models.ServiceRequest, error) {
	return m.filterRequests(func(r models.ServiceRequest) bool { return r.ProviderID == providerID }), nil
}

// filterRequests returns matching requests, newest first.
func (m *MemoryStore) filterRequests(keep func(models.ServiceRequest) bool) []models.ServiceRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.ServiceRequest{}
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStore) UpdateRequestStatus(_ context.Context, r models.ServiceRequest, from models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.requests[r.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != from {
		return ErrStale
	}
	cur.Status = r.Status
	cur.UpdatedAt = r.UpdatedAt
	cur.AcceptedAt = r.AcceptedAt
	cur.RejectedAt = r.RejectedAt
	cur.CompletedAt = r.CompletedAt
	cur.CancelledAt = r.CancelledAt
	m.requests[r.ID] = cur
	return nil
}

var (
	_ ProviderStore = (*MemoryStore)(nil)
	_ RequestStore  = (*MemoryStore)(nil)
)
