package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("load request: %w", NewNotFound("request %q not found", "r1"))

	assert.True(t, errors.Is(err, NotFound))
	assert.False(t, errors.Is(err, Forbidden))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestValidationCarriesField(t *testing.T) {
	err := NewValidation("description", "is required")

	assert.Equal(t, "description", FieldOf(err))
	assert.Equal(t, "description: is required", err.Error())
}

func TestUnavailableUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapUnavailable(cause, "provider directory unreachable")

	assert.True(t, errors.Is(err, Unavailable))
	assert.True(t, errors.Is(err, cause))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}
