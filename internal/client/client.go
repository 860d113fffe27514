// Package client is the app-side caller of the roadside HTTP API. Reads go
// through a resilience.Cache so the app keeps showing something useful when
// the backend cannot be reached; writes are never cached or replayed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/lifecycle"
	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/resilience"
)

// ErrUnauthenticated is returned when the API rejects the bearer token.
var ErrUnauthenticated = errors.New("unauthenticated")

type Client struct {
	BaseURL string
	Token   string
	// Account scopes cached request lists; it should be the token's account.
	Account models.Account
	HTTP    *http.Client
	Cache   *resilience.Cache
	// SyntheticCount is how many placeholder providers to show when nearby
	// search has neither a live nor a cached answer.
	SyntheticCount int
}

func New(baseURL, token string, account models.Account, cache *resilience.Cache) *Client {
	if cache == nil {
		cache = resilience.NewCache()
	}
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		Token:          token,
		Account:        account,
		HTTP:           &http.Client{Timeout: 10 * time.Second},
		Cache:          cache,
		SyntheticCount: resilience.DefaultSyntheticCount,
	}
}

// NearbyProviders falls back to the last answer for the same (rounded)
// position, then to synthetic placeholders.
func (c *Client) NearbyProviders(ctx context.Context, origin models.Position, radiusKm float64) (resilience.Result[[]models.NearbyProvider], error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(origin.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(origin.Lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	path := "/api/v1/providers/nearby?" + q.Encode()

	return resilience.Query(ctx, c.Cache, resilience.NearbyKey(origin, radiusKm),
		func(ctx context.Context) ([]models.NearbyProvider, error) {
			var out []models.NearbyProvider
			err := c.do(ctx, http.MethodGet, path, nil, &out)
			return out, err
		},
		func() []models.NearbyProvider {
			return resilience.SyntheticProviders(origin, radiusKm, c.SyntheticCount)
		})
}

func (c *Client) GetProvider(ctx context.Context, id string) (resilience.Result[models.Provider], error) {
	return resilience.Query(ctx, c.Cache, "provider:"+id,
		func(ctx context.Context) (models.Provider, error) {
			var p models.Provider
			err := c.do(ctx, http.MethodGet, "/api/v1/providers/"+url.PathEscape(id), nil, &p)
			return p, err
		}, nil)
}

func (c *Client) GetRequest(ctx context.Context, id string) (resilience.Result[models.ServiceRequest], error) {
	return resilience.Query(ctx, c.Cache, resilience.RequestKey(c.Account.ID, id),
		func(ctx context.Context) (models.ServiceRequest, error) {
			var r models.ServiceRequest
			err := c.do(ctx, http.MethodGet, "/api/v1/requests/"+url.PathEscape(id), nil, &r)
			return r, err
		}, nil)
}

// ListRequests lists the account's requests seen as role.
func (c *Client) ListRequests(ctx context.Context, role models.Role) (resilience.Result[[]models.ServiceRequest], error) {
	path := "/api/v1/requests?mine=" + url.QueryEscape(string(role))
	return resilience.Query(ctx, c.Cache, resilience.RequestListKey(c.Account.ID, role),
		func(ctx context.Context) ([]models.ServiceRequest, error) {
			var out []models.ServiceRequest
			err := c.do(ctx, http.MethodGet, path, nil, &out)
			return out, err
		}, nil)
}

func (c *Client) CreateRequest(ctx context.Context, p lifecycle.CreateParams) (models.ServiceRequest, error) {
	if resilience.IsSynthetic(p.ProviderID) {
		return models.ServiceRequest{}, apperr.NewValidation("provider_id", "placeholder providers cannot be booked")
	}
	var r models.ServiceRequest
	err := c.do(ctx, http.MethodPost, "/api/v1/requests", p, &r)
	return r, err
}

func (c *Client) Transition(ctx context.Context, requestID string, target models.Status) (models.ServiceRequest, error) {
	var r models.ServiceRequest
	body := map[string]models.Status{"status": target}
	err := c.do(ctx, http.MethodPost, "/api/v1/requests/"+url.PathEscape(requestID)+"/transitions", body, &r)
	if err == nil {
		c.Cache.Forget(resilience.RequestKey(c.Account.ID, requestID))
	}
	return r, err
}

func (c *Client) RegisterProvider(ctx context.Context, p models.Provider) (models.Provider, error) {
	var out models.Provider
	err := c.do(ctx, http.MethodPost, "/api/v1/providers", p, &out)
	return out, err
}

func (c *Client) UpdateProvider(ctx context.Context, id string, patch models.ProviderPatch) (models.Provider, error) {
	var out models.Provider
	err := c.do(ctx, http.MethodPatch, "/api/v1/providers/"+url.PathEscape(id), patch, &out)
	return out, err
}

// do sends one request. Transport failures and 5xx answers become
// apperr.Unavailable; other error answers are rebuilt from the error body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.WrapUnavailable(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}
	return decodeError(method, path, resp)
}

type errorEnvelope struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

func decodeError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 500 {
		return apperr.WrapUnavailable(fmt.Errorf("status %d", resp.StatusCode), "%s %s", method, path)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthenticated)
	}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Kind == "" {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return &apperr.Error{Kind: apperr.Kind(env.Error.Kind), Message: env.Error.Message, Field: env.Error.Field}
}
