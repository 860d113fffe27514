// Package authz decides whether an account may act on a service request.
// Session validity is the identity layer's concern; the gate only checks
// that the actor's role and identity match the request.
package authz

import (
	"context"
	"errors"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/models"
)

type Action string

const (
	ActionCreate         Action = "create"
	ActionAcceptOrReject Action = "acceptOrReject"
	ActionComplete       Action = "complete"
	ActionCancel         Action = "cancel"
	ActionView           Action = "view"
)

const (
	ReasonNotClient           = "only client accounts can create requests"
	ReasonNotAssignedProvider = "not the assigned provider"
	ReasonNotRequestingClient = "not the requesting client"
	ReasonNotParty            = "not a party to this request"
	ReasonUnknownAction       = "unknown action"
)

// Decision is the outcome of Authorize. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Err returns nil for an allowed decision and a Forbidden error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.NewForbidden(d.Reason)
}

// ProviderResolver finds the provider record owned by an account.
type ProviderResolver interface {
	FindByOwner(ctx context.Context, accountID string) (models.Provider, error)
}

type Gate struct {
	Providers ProviderResolver
}

func NewGate(providers ProviderResolver) *Gate {
	return &Gate{Providers: providers}
}

// Authorize evaluates the rule for action against target. target may be the
// zero value for ActionCreate. A lookup failure other than not-found is
// returned as an error; it is never treated as allowed.
func (g *Gate) Authorize(ctx context.Context, actor models.Account, action Action, target models.ServiceRequest) (Decision, error) {
	switch action {
	case ActionCreate:
		if actor.Role == models.RoleClient {
			return allow(), nil
		}
		return deny(ReasonNotClient), nil

	case ActionAcceptOrReject, ActionComplete:
		ok, err := g.isAssignedProvider(ctx, actor, target)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return allow(), nil
		}
		return deny(ReasonNotAssignedProvider), nil

	case ActionCancel:
		if actor.Role == models.RoleClient && actor.ID == target.ClientID {
			return allow(), nil
		}
		return deny(ReasonNotRequestingClient), nil

	case ActionView:
		if actor.Role == models.RoleClient && actor.ID == target.ClientID {
			return allow(), nil
		}
		ok, err := g.isAssignedProvider(ctx, actor, target)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return allow(), nil
		}
		return deny(ReasonNotParty), nil
	}
	return deny(ReasonUnknownAction), nil
}

func (g *Gate) isAssignedProvider(ctx context.Context, actor models.Account, target models.ServiceRequest) (bool, error) {
	if actor.Role != models.RoleProvider || target.ProviderID == "" {
		return false, nil
	}
	p, err := g.Providers.FindByOwner(ctx, actor.ID)
	if errors.Is(err, apperr.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.ID == target.ProviderID, nil
}

// ActionFor maps a requested status to the action that must be authorized.
func ActionFor(target models.Status) (Action, bool) {
	switch target {
	case models.StatusAccepted, models.StatusRejected:
		return ActionAcceptOrReject, true
	case models.StatusCompleted:
		return ActionComplete, true
	case models.StatusCancelled:
		return ActionCancel, true
	}
	return "", false
}
