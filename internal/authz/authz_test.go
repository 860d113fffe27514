package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/models"
)

type fakeResolver struct {
	byOwner map[string]models.Provider
	err     error
}

func (f *fakeResolver) FindByOwner(_ context.Context, accountID string) (models.Provider, error) {
	if f.err != nil {
		return models.Provider{}, f.err
	}
	p, ok := f.byOwner[accountID]
	if !ok {
		return models.Provider{}, apperr.NewNotFound("no provider for %s", accountID)
	}
	return p, nil
}

var (
	alice    = models.Account{ID: "alice", Role: models.RoleClient}
	bob      = models.Account{ID: "bob", Role: models.RoleClient}
	garage   = models.Account{ID: "garage-owner", Role: models.RoleProvider}
	rival    = models.Account{ID: "rival-owner", Role: models.RoleProvider}
	orphan   = models.Account{ID: "no-provider", Role: models.RoleProvider}
	request  = models.ServiceRequest{ID: "r1", ClientID: "alice", ProviderID: "p-garage"}
	resolver = &fakeResolver{byOwner: map[string]models.Provider{
		"garage-owner": {ID: "p-garage"},
		"rival-owner":  {ID: "p-rival"},
	}}
)

func TestAuthorizeTable(t *testing.T) {
	g := NewGate(resolver)
	cases := []struct {
		name   string
		actor  models.Account
		action Action
		allow  bool
		reason string
	}{
		{"client creates", alice, ActionCreate, true, ""},
		{"provider cannot create", garage, ActionCreate, false, ReasonNotClient},
		{"assigned provider accepts", garage, ActionAcceptOrReject, true, ""},
		{"other provider accepts", rival, ActionAcceptOrReject, false, ReasonNotAssignedProvider},
		{"provider without record", orphan, ActionAcceptOrReject, false, ReasonNotAssignedProvider},
		{"client accepts", alice, ActionAcceptOrReject, false, ReasonNotAssignedProvider},
		{"assigned provider completes", garage, ActionComplete, true, ""},
		{"other provider completes", rival, ActionComplete, false, ReasonNotAssignedProvider},
		{"requesting client cancels", alice, ActionCancel, true, ""},
		{"other client cancels", bob, ActionCancel, false, ReasonNotRequestingClient},
		{"provider cancels", garage, ActionCancel, false, ReasonNotRequestingClient},
		{"client views", alice, ActionView, true, ""},
		{"provider views", garage, ActionView, true, ""},
		{"stranger views", bob, ActionView, false, ReasonNotParty},
		{"rival views", rival, ActionView, false, ReasonNotParty},
		{"unknown action", alice, Action("delete"), false, ReasonUnknownAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := g.Authorize(context.Background(), tc.actor, tc.action, request)
			require.NoError(t, err)
			assert.Equal(t, tc.allow, d.Allowed)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestProviderWithClientIDCannotCancel(t *testing.T) {
	// identity match alone is not enough, the role must match too
	impostor := models.Account{ID: "alice", Role: models.RoleProvider}
	d, err := NewGate(resolver).Authorize(context.Background(), impostor, ActionCancel, request)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestDeniedDecisionIsForbidden(t *testing.T) {
	err := Decision{Reason: ReasonNotParty}.Err()
	assert.ErrorIs(t, err, apperr.Forbidden)
	assert.Contains(t, err.Error(), ReasonNotParty)
	assert.NoError(t, Decision{Allowed: true}.Err())
}

func TestLookupFailureIsNotAllowed(t *testing.T) {
	g := NewGate(&fakeResolver{err: apperr.WrapUnavailable(errors.New("down"), "provider store")})
	_, err := g.Authorize(context.Background(), garage, ActionComplete, request)
	assert.ErrorIs(t, err, apperr.Unavailable)
}

func TestActionFor(t *testing.T) {
	for status, want := range map[models.Status]Action{
		models.StatusAccepted:  ActionAcceptOrReject,
		models.StatusRejected:  ActionAcceptOrReject,
		models.StatusCompleted: ActionComplete,
		models.StatusCancelled: ActionCancel,
	} {
		got, ok := ActionFor(status)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := ActionFor(models.StatusPending)
	assert.False(t, ok)
}
