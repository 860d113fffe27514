// Package directory is the read and update surface over provider records.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/geo"
	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/observability"
	"github.com/example/roadside-matching/internal/storage"
	"github.com/example/roadside-matching/internal/validate"
)

type Service struct {
	Store  storage.ProviderStore
	Clock  clock.Clock
	Logger *slog.Logger
}

func New(store storage.ProviderStore, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: store, Clock: clk, Logger: logger}
}

func (s *Service) FindAll(ctx context.Context) ([]models.Provider, error) {
	ps, err := s.Store.ListProviders(ctx)
	if err != nil {
		return nil, storeErr(err, "list providers")
	}
	return ps, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (models.Provider, error) {
	p, err := s.Store.GetProvider(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Provider{}, apperr.NewNotFound("provider %q not found", id)
		}
		return models.Provider{}, storeErr(err, "get provider")
	}
	return p, nil
}

func (s *Service) FindByOwner(ctx context.Context, accountID string) (models.Provider, error) {
	p, err := s.Store.GetProviderByOwner(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Provider{}, apperr.NewNotFound("no provider registered for account %q", accountID)
		}
		return models.Provider{}, storeErr(err, "get provider by owner")
	}
	return p, nil
}

// Nearby ranks every known provider against origin. Radius filtering stays
// in geo.Nearby rather than in storage.
func (s *Service) Nearby(ctx context.Context, origin models.Position, radiusKm float64) ([]models.NearbyProvider, error) {
	if err := validate.Struct(origin); err != nil {
		return nil, err
	}
	start := time.Now()
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := geo.Nearby(origin, all, radiusKm)
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	observability.NearbyResults.Observe(float64(len(out)))
	observability.MatchesTotal.Inc()
	return out, nil
}

// Register creates the provider record of a provider account.
func (s *Service) Register(ctx context.Context, actor models.Account, p models.Provider) (models.Provider, error) {
	if actor.Role != models.RoleProvider {
		return models.Provider{}, apperr.NewForbidden("only provider accounts can register a provider")
	}
	p.ID = uuid.NewString()
	p.OwnerID = actor.ID
	p.Rating = 0
	p.ServiceTags = dedupe(p.ServiceTags)
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if err := validate.Struct(p); err != nil {
		return models.Provider{}, err
	}
	now := s.Clock.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.Store.InsertProvider(ctx, p); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return models.Provider{}, apperr.NewValidation("owner_id", "account %s already has a provider", actor.ID)
		}
		return models.Provider{}, storeErr(err, "insert provider")
	}
	s.Logger.InfoContext(ctx, "provider registered", "provider_id", p.ID, "owner_id", p.OwnerID)
	return p, nil
}

// Update replaces only the supplied fields. The actor must be the provider
// account owning the record; ownership is checked before the patch is
// validated.
func (s *Service) Update(ctx context.Context, actor models.Account, id string, patch models.ProviderPatch) (models.Provider, error) {
	updated, err := s.Store.UpdateProvider(ctx, id, func(p *models.Provider) error {
		if actor.Role != models.RoleProvider || p.OwnerID != actor.ID {
			return apperr.NewForbidden("not the owner of this provider")
		}
		if err := validate.Struct(patch); err != nil {
			return err
		}
		if patch.Position != nil {
			if err := validate.Struct(*patch.Position); err != nil {
				return err
			}
		}
		applyPatch(p, patch)
		p.UpdatedAt = s.Clock.Now().UTC()
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return models.Provider{}, apperr.NewNotFound("provider %q not found", id)
		case apperr.KindOf(err) != "":
			return models.Provider{}, err
		}
		return models.Provider{}, storeErr(err, "update provider")
	}
	s.Logger.InfoContext(ctx, "provider updated", "provider_id", id)
	return updated, nil
}

func applyPatch(p *models.Provider, patch models.ProviderPatch) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setString(&p.Name, patch.Name)
	setString(&p.Email, patch.Email)
	setString(&p.Phone, patch.Phone)
	setString(&p.Description, patch.Description)
	setString(&p.OpeningHours, patch.OpeningHours)
	setString(&p.Address, patch.Address)
	if patch.IsOpen != nil {
		p.IsOpen = *patch.IsOpen
	}
	if patch.Position != nil {
		p.Position = *patch.Position
	}
	if patch.ServiceTags != nil {
		p.ServiceTags = dedupe(*patch.ServiceTags)
	}
	if patch.Skills != nil {
		p.Skills = slices.Clone(*patch.Skills)
	}
}

// dedupe gives service tags set semantics while keeping first-seen order.
func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func storeErr(err error, op string) error {
	return apperr.WrapUnavailable(err, "provider store: %s", op)
}
