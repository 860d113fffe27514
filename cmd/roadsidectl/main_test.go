package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roadside-matching/internal/client"
	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/resilience"
)

func TestNearbyPrintsSourceWhenBackendIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := client.New(srv.URL, "t", models.Account{ID: "a1", Role: models.RoleClient}, nil)
	var out bytes.Buffer
	err := run(context.Background(), c, []string{"nearby", "-lat", "48.85", "-lon", "2.35", "-radius", "5"}, &out, slog.Default())
	require.NoError(t, err)

	var got struct {
		Source   resilience.Source       `json:"source"`
		Degraded bool                    `json:"degraded"`
		Data     []models.NearbyProvider `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, resilience.Synthetic, got.Source)
	assert.True(t, got.Degraded)
	assert.Len(t, got.Data, resilience.DefaultSyntheticCount)
}

func TestRunRejectsBadUsage(t *testing.T) {
	c := client.New("http://127.0.0.1:1", "", models.Account{}, nil)
	var out bytes.Buffer
	assert.Error(t, run(context.Background(), c, nil, &out, slog.Default()))
	assert.ErrorContains(t, run(context.Background(), c, []string{"launch"}, &out, slog.Default()), "unknown command")
	assert.ErrorContains(t, run(context.Background(), c, []string{"get"}, &out, slog.Default()), "-id")
}
