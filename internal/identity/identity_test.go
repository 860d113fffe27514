package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roadside-matching/internal/models"
)

func TestExtractBearerToken(t *testing.T) {
	for _, h := range []string{"Bearer abc", "bearer abc", "BEARER abc"} {
		got, err := ExtractBearerToken(h)
		require.NoError(t, err, h)
		assert.Equal(t, "abc", got)
	}

	_, err := ExtractBearerToken("")
	assert.ErrorIs(t, err, ErrNoToken)

	for _, h := range []string{"abc", "Basic abc", "Bearer", "   ", "Bearer a b"} {
		_, err := ExtractBearerToken(h)
		assert.ErrorIs(t, err, ErrInvalidToken, h)
	}
}

func TestParseStaticTokens(t *testing.T) {
	accs, err := ParseStaticTokens("t1:alice:client:Alice Martin, t2:garage-1:Provider ,")
	require.NoError(t, err)
	assert.Equal(t, models.Account{ID: "alice", Role: models.RoleClient, Name: "Alice Martin"}, accs["t1"])
	assert.Equal(t, models.Account{ID: "garage-1", Role: models.RoleProvider}, accs["t2"])

	_, err = ParseStaticTokens("t1:alice:admin,broken")
	assert.ErrorIs(t, err, ErrMissingRole)
	assert.ErrorContains(t, err, "broken")
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]models.Account{"t1": {ID: "alice", Role: models.RoleClient}})
	acc, err := v.Verify(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.ID)

	_, err = v.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMockVerifier(t *testing.T) {
	m := &MockVerifier{Account: models.Account{ID: "x", Role: models.RoleProvider}}
	acc, err := m.Verify(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "x", acc.ID)

	boom := errors.New("boom")
	_, err = (&MockVerifier{Error: boom}).Verify(context.Background(), "t")
	assert.ErrorIs(t, err, boom)
}

func TestAccountFromClaims(t *testing.T) {
	acc, err := accountFromClaims("uid-1", map[string]any{"role": "provider", "name": "Garage du Port", "email": "g@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.Account{ID: "uid-1", Role: models.RoleProvider, Name: "Garage du Port", Email: "g@example.com"}, acc)

	_, err = accountFromClaims("uid-2", map[string]any{"email": "x@example.com"})
	assert.ErrorIs(t, err, ErrMissingRole)
}
