package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/storage"
)

var (
	owner   = models.Account{ID: "acc-garage", Role: models.RoleProvider}
	other   = models.Account{ID: "acc-other", Role: models.RoleProvider}
	client  = models.Account{ID: "acc-client", Role: models.RoleClient}
	epoch   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	garageA = models.Provider{Name: "Garage A", Address: "1 Main St", Position: models.Position{Lat: 0, Lon: 0}}
)

func newService(t *testing.T) (*Service, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(epoch)
	return New(storage.NewMemoryStore(), clk, nil), clk
}

func TestRegisterAssignsOwnerAndDedupesTags(t *testing.T) {
	s, _ := newService(t)
	p := garageA
	p.ServiceTags = []string{"towing", "towing", " repair ", ""}

	got, err := s.Register(context.Background(), owner, p)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, []string{"towing", "repair"}, got.ServiceTags)
	assert.Equal(t, epoch, got.CreatedAt)

	byOwner, err := s.FindByOwner(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ID, byOwner.ID)
}

func TestRegisterRules(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, client, garageA)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = s.Register(ctx, owner, models.Provider{Address: "x"})
	assert.ErrorIs(t, err, apperr.Validation)
	assert.Equal(t, "name", apperr.FieldOf(err))

	tooMany := garageA
	tooMany.Skills = []string{"a", "b", "c", "d", "e", "f"}
	_, err = s.Register(ctx, owner, tooMany)
	assert.Equal(t, "skills", apperr.FieldOf(err))

	_, err = s.Register(ctx, owner, garageA)
	require.NoError(t, err)
	_, err = s.Register(ctx, owner, garageA)
	assert.ErrorIs(t, err, apperr.Validation)
}

func TestFindByIDNotFound(t *testing.T) {
	s, _ := newService(t)
	_, err := s.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = s.FindByOwner(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestUpdateReplacesOnlySuppliedFields(t *testing.T) {
	s, clk := newService(t)
	ctx := context.Background()
	p := garageA
	p.Phone = "0102030405"
	p.Skills = []string{"diesel"}
	created, err := s.Register(ctx, owner, p)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	name := "Garage A+"
	open := true
	tags := []string{"towing", "towing"}
	updated, err := s.Update(ctx, owner, created.ID, models.ProviderPatch{Name: &name, IsOpen: &open, ServiceTags: &tags})
	require.NoError(t, err)

	assert.Equal(t, "Garage A+", updated.Name)
	assert.True(t, updated.IsOpen)
	assert.Equal(t, []string{"towing"}, updated.ServiceTags)
	assert.Equal(t, "0102030405", updated.Phone)
	assert.Equal(t, []string{"diesel"}, updated.Skills)
	assert.Equal(t, created.Address, updated.Address)
	assert.Equal(t, epoch.Add(time.Hour), updated.UpdatedAt)
	assert.Equal(t, epoch, updated.CreatedAt)
}

func TestUpdateAuthorizationAndValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	created, err := s.Register(ctx, owner, garageA)
	require.NoError(t, err)
	name := "hijacked"

	_, err = s.Update(ctx, other, created.ID, models.ProviderPatch{Name: &name})
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = s.Update(ctx, models.Account{ID: owner.ID, Role: models.RoleClient}, created.ID, models.ProviderPatch{Name: &name})
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = s.Update(ctx, owner, "missing", models.ProviderPatch{Name: &name})
	assert.ErrorIs(t, err, apperr.NotFound)

	blank := "  "
	_, err = s.Update(ctx, owner, created.ID, models.ProviderPatch{Name: &blank})
	assert.ErrorIs(t, err, apperr.Validation)

	_, err = s.Update(ctx, owner, created.ID, models.ProviderPatch{Position: &models.Position{Lat: 120, Lon: 0}})
	assert.ErrorIs(t, err, apperr.Validation)

	still, _ := s.FindByID(ctx, created.ID)
	assert.Equal(t, "Garage A", still.Name)
}

func TestUpdateChecksOwnershipBeforePayload(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	created, err := s.Register(ctx, owner, garageA)
	require.NoError(t, err)

	blank := ""
	_, err = s.Update(ctx, other, created.ID, models.ProviderPatch{Name: &blank, Position: &models.Position{Lat: 120}})
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestRegisterIgnoresSuppliedRating(t *testing.T) {
	s, _ := newService(t)
	p := garageA
	p.Rating = 5

	got, err := s.Register(context.Background(), owner, p)
	require.NoError(t, err)
	assert.Zero(t, got.Rating)

	stored, err := s.FindByID(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Rating)
}

func TestNearbyComposesDirectoryWithGeo(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	for i, pos := range []models.Position{{Lat: 1, Lon: 1}, {Lat: 0.01, Lon: 0}, {Lat: 0, Lon: 0}} {
		p := garageA
		p.Name = []string{"C", "B", "A"}[i]
		p.Position = pos
		_, err := s.Register(ctx, models.Account{ID: p.Name, Role: models.RoleProvider}, p)
		require.NoError(t, err)
	}

	got, err := s.Nearby(ctx, models.Position{Lat: 0, Lon: 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Provider.Name)
	assert.Equal(t, "B", got[1].Provider.Name)

	_, err = s.Nearby(ctx, models.Position{Lat: 95, Lon: 0}, 5)
	assert.ErrorIs(t, err, apperr.Validation)
}

type brokenStore struct{ storage.ProviderStore }

func (brokenStore) ListProviders(context.Context) ([]models.Provider, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	s := New(brokenStore{}, nil, nil)
	_, err := s.Nearby(context.Background(), models.Position{}, 10)
	assert.ErrorIs(t, err, apperr.Unavailable)
}
