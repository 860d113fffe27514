package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/models"
)

func TestStructNamesFieldByJSONPath(t *testing.T) {
	type wrapper struct {
		Location models.Location `json:"location"`
	}
	err := Struct(wrapper{Location: models.Location{Lat: 95, Lon: 2, Address: "Quai"}})
	assert.ErrorIs(t, err, apperr.Validation)
	assert.Equal(t, "location.lat", apperr.FieldOf(err))
	assert.Contains(t, err.Error(), "latitude")
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	err := Struct(models.Provider{Name: "   ", Address: "x"})
	assert.Equal(t, "name", apperr.FieldOf(err))
	assert.Contains(t, err.Error(), "is required")

	assert.NoError(t, Struct(models.Provider{Name: "Garage", Address: "x"}))
}

func TestPatchRules(t *testing.T) {
	blank := ""
	err := Struct(models.ProviderPatch{Name: &blank})
	assert.Equal(t, "name", apperr.FieldOf(err))

	bad := "not-an-email"
	err = Struct(models.ProviderPatch{Email: &bad})
	assert.Equal(t, "email", apperr.FieldOf(err))

	skills := []string{"a", "b", "c", "d", "e", "f"}
	err = Struct(models.ProviderPatch{Skills: &skills})
	assert.Equal(t, "skills", apperr.FieldOf(err))

	assert.NoError(t, Struct(models.ProviderPatch{}))
}

func TestPositionBounds(t *testing.T) {
	assert.NoError(t, Struct(models.Position{Lat: -90, Lon: 180}))
	err := Struct(models.Position{Lat: 0, Lon: -180.5})
	assert.Equal(t, "lon", apperr.FieldOf(err))
}
