// Package identity turns bearer tokens into accounts. The core never sees a
// token, only the models.Account resolved here.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/roadside-matching/internal/models"
)

var (
	ErrNoToken      = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUserDisabled = errors.New("user disabled")
	// ErrMissingRole means the token is genuine but carries no usable role claim.
	ErrMissingRole = errors.New("account has no client or provider role")
	// ErrCertificateFetch is a network failure, not a bad token.
	ErrCertificateFetch = errors.New("failed to fetch certificates")
)

type Verifier interface {
	Verify(ctx context.Context, token string) (models.Account, error)
}

// ExtractBearerToken extracts the token from an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

func parseRole(v string) (models.Role, error) {
	switch r := models.Role(strings.ToLower(strings.TrimSpace(v))); r {
	case models.RoleClient, models.RoleProvider:
		return r, nil
	}
	return "", ErrMissingRole
}

// StaticVerifier resolves tokens from a fixed table. Meant for local runs.
type StaticVerifier struct {
	accounts map[string]models.Account
}

func NewStaticVerifier(accounts map[string]models.Account) *StaticVerifier {
	return &StaticVerifier{accounts: accounts}
}

// ParseStaticTokens reads "token:accountID:role[:name]" entries separated by
// commas, e.g. "t1:alice:client:Alice,t2:garage-1:provider".
func ParseStaticTokens(entries string) (map[string]models.Account, error) {
	out := make(map[string]models.Account)
	var errs []error
	for _, raw := range strings.Split(entries, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
			errs = append(errs, fmt.Errorf("static token %q: want token:account:role[:name]", raw))
			continue
		}
		role, err := parseRole(parts[2])
		if err != nil {
			errs = append(errs, fmt.Errorf("static token %q: %w", raw, err))
			continue
		}
		acc := models.Account{ID: parts[1], Role: role}
		if len(parts) == 4 {
			acc.Name = parts[3]
		}
		out[parts[0]] = acc
	}
	return out, errors.Join(errs...)
}

func (s *StaticVerifier) Verify(_ context.Context, token string) (models.Account, error) {
	acc, ok := s.accounts[token]
	if !ok {
		return models.Account{}, ErrInvalidToken
	}
	return acc, nil
}

// MockVerifier returns a fixed account or error. Used in tests.
type MockVerifier struct {
	Account models.Account
	Error   error
	// Accounts, when set, is consulted by token before Account.
	Accounts map[string]models.Account
}

func (m *MockVerifier) Verify(_ context.Context, token string) (models.Account, error) {
	if m.Error != nil {
		return models.Account{}, m.Error
	}
	if m.Accounts != nil {
		acc, ok := m.Accounts[token]
		if !ok {
			return models.Account{}, ErrInvalidToken
		}
		return acc, nil
	}
	return m.Account, nil
}

var (
	_ Verifier = (*StaticVerifier)(nil)
	_ Verifier = (*MockVerifier)(nil)
)
