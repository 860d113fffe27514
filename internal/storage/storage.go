package storage

import (
	"context"
	"errors"

	"github.com/example/roadside-matching/internal/models"
)

var (
	ErrNotFound = errors.New("storage: record not found")
	// ErrConflict is returned when inserting a record whose unique key exists.
	ErrConflict = errors.New("storage: record already exists")
	// ErrStale is returned by a conditional status update when the stored
	// status no longer matches the expected one.
	ErrStale = errors.New("storage: record changed concurrently")
)

// ProviderStore persists provider records.
type ProviderStore interface {
	ListProviders(ctx context.Context) ([]models.Provider, error)
	GetProvider(ctx context.Context, id string) (models.Provider, error)
	GetProviderByOwner(ctx context.Context, ownerID string) (models.Provider, error)
	InsertProvider(ctx context.Context, p models.Provider) error
	// UpdateProvider applies fn to the stored record and writes the result
	// back atomically. If fn returns an error nothing is written.
	UpdateProvider(ctx context.Context, id string, fn func(*models.Provider) error) (models.Provider, error)
}

// RequestStore persists service requests.
type RequestStore interface {
	InsertRequest(ctx context.Context, r models.ServiceRequest) error
	GetRequest(ctx context.Context, id string) (models.ServiceRequest, error)
	ListRequestsByClient(ctx context.Context, clientID string) ([]models.ServiceRequest, error)
	ListRequestsByProvider(ctx context.Context, providerID string) ([]models.ServiceRequest, error)
	// UpdateRequestStatus writes r's status and timestamps only if the
	// stored status still equals from. Otherwise it returns ErrStale.
	UpdateRequestStatus(ctx context.Context, r models.ServiceRequest, from models.Status) error
}
