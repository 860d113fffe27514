// Package lifecycle owns service requests: creation, the status state
// machine and party-scoped reads.
//
// Legal moves:
//
//	pending  -> accepted | rejected | cancelled
//	accepted -> completed
//
// An accepted request cannot be cancelled by the client; only the provider
// can close it by completing it. Every other move, including re-issuing the
// current status, is an invalid transition.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/authz"
	"github.com/example/roadside-matching/internal/dispatch"
	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/observability"
	"github.com/example/roadside-matching/internal/storage"
	"github.com/example/roadside-matching/internal/validate"
)

var transitions = map[models.Status][]models.Status{
	models.StatusPending:  {models.StatusAccepted, models.StatusRejected, models.StatusCancelled},
	models.StatusAccepted: {models.StatusCompleted},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Providers is the part of the provider directory the lifecycle needs.
type Providers interface {
	FindByID(ctx context.Context, id string) (models.Provider, error)
	FindByOwner(ctx context.Context, accountID string) (models.Provider, error)
}

type Service struct {
	Store     storage.RequestStore
	Providers Providers
	Gate      *authz.Gate
	Notifier  dispatch.Notifier
	Clock     clock.Clock
	Logger    *slog.Logger
}

func New(store storage.RequestStore, providers Providers, gate *authz.Gate, notifier dispatch.Notifier, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = dispatch.NotifierFunc(func(context.Context, models.Event) error { return nil })
	}
	return &Service{Store: store, Providers: providers, Gate: gate, Notifier: notifier, Clock: clk, Logger: logger}
}

// CreateParams is the client-supplied part of a new request.
type CreateParams struct {
	ProviderID  string             `json:"provider_id" validate:"notblank"`
	Description string             `json:"description" validate:"notblank"`
	Location    models.Location    `json:"location"`
	Vehicle     models.VehicleInfo `json:"vehicle"`
	Urgency     models.Urgency     `json:"urgency" validate:"omitempty,oneof=low medium high"`
}

// Create opens a pending request from actor against an existing provider.
// Nothing is persisted when the provider is unknown.
func (s *Service) Create(ctx context.Context, actor models.Account, p CreateParams) (models.ServiceRequest, error) {
	p.Description = strings.TrimSpace(p.Description)
	if err := validate.Struct(p); err != nil {
		return models.ServiceRequest{}, err
	}
	d, err := s.Gate.Authorize(ctx, actor, authz.ActionCreate, models.ServiceRequest{})
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if err := d.Err(); err != nil {
		return models.ServiceRequest{}, err
	}
	provider, err := s.Providers.FindByID(ctx, p.ProviderID)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if p.Urgency == "" {
		p.Urgency = models.UrgencyMedium
	}

	now := s.Clock.Now().UTC()
	r := models.ServiceRequest{
		ID:           uuid.NewString(),
		ClientID:     actor.ID,
		ClientName:   actor.Name,
		ClientPhone:  actor.Phone,
		ClientEmail:  actor.Email,
		ProviderID:   provider.ID,
		ProviderName: provider.Name,
		Description:  p.Description,
		Location:     p.Location,
		Vehicle:      p.Vehicle,
		Urgency:      p.Urgency,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.InsertRequest(ctx, r); err != nil {
		return models.ServiceRequest{}, apperr.WrapUnavailable(err, "request store: insert")
	}
	observability.RequestsCreated.Inc()
	s.Logger.InfoContext(ctx, "service request created", "request_id", r.ID, "client_id", r.ClientID, "provider_id", r.ProviderID)
	s.emit(ctx, models.EventCreated, r, provider.OwnerID)
	return r, nil
}

// Transition moves a request to target on behalf of actor. Authorization is
// checked before the state table, so an unrelated provider always gets
// Forbidden whatever the current status is.
func (s *Service) Transition(ctx context.Context, requestID string, actor models.Account, target models.Status) (models.ServiceRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	action, ok := authz.ActionFor(target)
	if !ok {
		observability.Transitions.WithLabelValues(string(target), "invalid").Inc()
		if !target.Valid() {
			return models.ServiceRequest{}, apperr.NewValidation("status", "unknown status %q", target)
		}
		return models.ServiceRequest{}, apperr.NewInvalidTransition(string(r.Status), string(target))
	}
	d, err := s.Gate.Authorize(ctx, actor, action, r)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if err := d.Err(); err != nil {
		observability.Transitions.WithLabelValues(string(target), "forbidden").Inc()
		return models.ServiceRequest{}, err
	}
	if !CanTransition(r.Status, target) {
		observability.Transitions.WithLabelValues(string(target), "invalid").Inc()
		return models.ServiceRequest{}, apperr.NewInvalidTransition(string(r.Status), string(target))
	}

	from := r.Status
	now := s.Clock.Now().UTC()
	r.Status = target
	r.UpdatedAt = now
	stamp(&r, target, now)

	if err := s.Store.UpdateRequestStatus(ctx, r, from); err != nil {
		switch {
		case errors.Is(err, storage.ErrStale):
			// someone else moved it first; report against what is stored now
			observability.Transitions.WithLabelValues(string(target), "conflict").Inc()
			cur, lerr := s.load(ctx, requestID)
			if lerr != nil {
				return models.ServiceRequest{}, lerr
			}
			return models.ServiceRequest{}, apperr.NewInvalidTransition(string(cur.Status), string(target))
		case errors.Is(err, storage.ErrNotFound):
			return models.ServiceRequest{}, apperr.NewNotFound("service request %q not found", requestID)
		}
		return models.ServiceRequest{}, apperr.WrapUnavailable(err, "request store: update status")
	}
	observability.Transitions.WithLabelValues(string(target), "ok").Inc()
	s.Logger.InfoContext(ctx, "service request transitioned", "request_id", r.ID, "from", from, "to", target, "actor_id", actor.ID)

	ownerID := ""
	if actor.Role == models.RoleProvider {
		ownerID = actor.ID
	} else if p, err := s.Providers.FindByID(ctx, r.ProviderID); err == nil {
		ownerID = p.OwnerID
	}
	s.emit(ctx, models.EventType(target), r, ownerID)
	return r, nil
}

func stamp(r *models.ServiceRequest, target models.Status, now time.Time) {
	t := now
	switch target {
	case models.StatusAccepted:
		r.AcceptedAt = &t
	case models.StatusRejected:
		r.RejectedAt = &t
	case models.StatusCompleted:
		r.CompletedAt = &t
	case models.StatusCancelled:
		r.CancelledAt = &t
	}
}

// Get returns the request if actor is one of its parties.
func (s *Service) Get(ctx context.Context, requestID string, actor models.Account) (models.ServiceRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	d, err := s.Gate.Authorize(ctx, actor, authz.ActionView, r)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if err := d.Err(); err != nil {
		return models.ServiceRequest{}, err
	}
	return r, nil
}

// ListForClient returns the actor's own requests, newest first.
func (s *Service) ListForClient(ctx context.Context, actor models.Account) ([]models.ServiceRequest, error) {
	if actor.Role != models.RoleClient {
		return nil, apperr.NewForbidden("only client accounts have client requests")
	}
	rs, err := s.Store.ListRequestsByClient(ctx, actor.ID)
	if err != nil {
		return nil, apperr.WrapUnavailable(err, "request store: list by client")
	}
	return rs, nil
}

// ListForProvider returns the requests addressed to the actor's provider,
// newest first.
func (s *Service) ListForProvider(ctx context.Context, actor models.Account) ([]models.ServiceRequest, error) {
	if actor.Role != models.RoleProvider {
		return nil, apperr.NewForbidden("only provider accounts have provider requests")
	}
	p, err := s.Providers.FindByOwner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	rs, err := s.Store.ListRequestsByProvider(ctx, p.ID)
	if err != nil {
		return nil, apperr.WrapUnavailable(err, "request store: list by provider")
	}
	return rs, nil
}

func (s *Service) load(ctx context.Context, id string) (models.ServiceRequest, error) {
	r, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ServiceRequest{}, apperr.NewNotFound("service request %q not found", id)
		}
		return models.ServiceRequest{}, apperr.WrapUnavailable(err, "request store: get")
	}
	return r, nil
}

func (s *Service) emit(ctx context.Context, typ models.EventType, r models.ServiceRequest, providerOwnerID string) {
	ev := models.Event{
		Type:            typ,
		RequestID:       r.ID,
		ClientID:        r.ClientID,
		ProviderID:      r.ProviderID,
		ProviderOwnerID: providerOwnerID,
		Status:          r.Status,
		At:              r.UpdatedAt,
	}
	if err := s.Notifier.Notify(ctx, ev); err != nil {
		s.Logger.WarnContext(ctx, "notify failed", "request_id", r.ID, "event", typ, "error", err)
	}
}
