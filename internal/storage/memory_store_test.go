package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roadside-matching/internal/models"
)

func TestMemoryStoreProviderOwnerIsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.InsertProvider(ctx, models.Provider{ID: "p1", OwnerID: "acc1"}))

	err := m.InsertProvider(ctx, models.Provider{ID: "p2", OwnerID: "acc1"})
	assert.ErrorIs(t, err, ErrConflict)

	p, err := m.GetProviderByOwner(ctx, "acc1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestMemoryStoreUpdateProviderDoesNotWriteOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.InsertProvider(ctx, models.Provider{ID: "p1", Name: "Garage"}))

	_, err := m.UpdateProvider(ctx, "p1", func(p *models.Provider) error {
		p.Name = "changed"
		return errors.New("rejected")
	})
	require.Error(t, err)

	p, _ := m.GetProvider(ctx, "p1")
	assert.Equal(t, "Garage", p.Name)

	_, err = m.UpdateProvider(ctx, "missing", func(*models.Provider) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.InsertProvider(ctx, models.Provider{ID: "p1", Skills: []string{"towing"}}))

	p, _ := m.GetProvider(ctx, "p1")
	p.Skills[0] = "mutated"

	again, _ := m.GetProvider(ctx, "p1")
	assert.Equal(t, "towing", again.Skills[0])
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, m.InsertRequest(ctx, models.ServiceRequest{
			ID: id, ClientID: "c1", ProviderID: "p1", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, m.InsertRequest(ctx, models.ServiceRequest{ID: "other", ClientID: "c2", ProviderID: "p2"}))

	got, err := m.ListRequestsByClient(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{got[0].ID, got[1].ID, got[2].ID})

	byProvider, _ := m.ListRequestsByProvider(ctx, "p2")
	require.Len(t, byProvider, 1)
	assert.Equal(t, "other", byProvider[0].ID)
}

func TestMemoryStoreConditionalStatusUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.InsertRequest(ctx, models.ServiceRequest{ID: "r1", Status: models.StatusPending}))

	const racers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now()
			err := m.UpdateRequestStatus(ctx, models.ServiceRequest{ID: "r1", Status: models.StatusAccepted, AcceptedAt: &now}, models.StatusPending)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrStale)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	r, _ := m.GetRequest(ctx, "r1")
	assert.Equal(t, models.StatusAccepted, r.Status)
	assert.NotNil(t, r.AcceptedAt)

	err := m.UpdateRequestStatus(ctx, models.ServiceRequest{ID: "nope"}, models.StatusPending)
	assert.ErrorIs(t, err, ErrNotFound)
}
