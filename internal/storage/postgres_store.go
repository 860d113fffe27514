package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/roadside-matching/internal/models"
)

//go:embed migrations/001_create_schema.sql
var schemaSQL string

// PostgresStore implements ProviderStore and RequestStore on PostgreSQL.
// Status changes use a conditional UPDATE so concurrent transitions on the
// same request are serialized by the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the schema if it does not exist yet.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schemaSQL)
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

const providerColumns = `id, owner_id, name, email, phone, description, opening_hours, is_open,
	lat, lon, address, service_tags, skills, rating, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (models.Provider, error) {
	var pr models.Provider
	var tags, skills pq.StringArray
	err := row.Scan(&pr.ID, &pr.OwnerID, &pr.Name, &pr.Email, &pr.Phone, &pr.Description, &pr.OpeningHours, &pr.IsOpen,
		&pr.Position.Lat, &pr.Position.Lon, &pr.Address, &tags, &skills, &pr.Rating, &pr.CreatedAt, &pr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Provider{}, ErrNotFound
	}
	if err != nil {
		return models.Provider{}, err
	}
	pr.ServiceTags = []string(tags)
	pr.Skills = []string(skills)
	return pr, nil
}

func (p *PostgresStore) ListProviders(ctx context.Context) ([]models.Provider, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Provider{}
	for rows.Next() {
		pr, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetProvider(ctx context.Context, id string) (models.Provider, error) {
	return scanProvider(p.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id=$1`, id))
}

func (p *PostgresStore) GetProviderByOwner(ctx context.Context, ownerID string) (models.Provider, error) {
	return scanProvider(p.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE owner_id=$1`, ownerID))
}

func (p *PostgresStore) InsertProvider(ctx context.Context, pr models.Provider) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO providers(`+providerColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		pr.ID, pr.OwnerID, pr.Name, pr.Email, pr.Phone, pr.Description, pr.OpeningHours, pr.IsOpen,
		pr.Position.Lat, pr.Position.Lon, pr.Address, pq.Array(nonNil(pr.ServiceTags)), pq.Array(nonNil(pr.Skills)), pr.Rating,
		pr.CreatedAt, pr.UpdatedAt)
	return mapUniqueViolation(err)
}

func (p *PostgresStore) UpdateProvider(ctx context.Context, id string, fn func(*models.Provider) error) (models.Provider, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Provider{}, err
	}
	defer func() { _ = tx.Rollback() }()

	pr, err := scanProvider(tx.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return models.Provider{}, err
	}
	if err := fn(&pr); err != nil {
		return models.Provider{}, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE providers SET name=$2, email=$3, phone=$4, description=$5, opening_hours=$6,
		is_open=$7, lat=$8, lon=$9, address=$10, service_tags=$11, skills=$12, rating=$13, updated_at=$14 WHERE id=$1`,
		pr.ID, pr.Name, pr.Email, pr.Phone, pr.Description, pr.OpeningHours, pr.IsOpen, pr.Position.Lat, pr.Position.Lon,
		pr.Address, pq.Array(nonNil(pr.ServiceTags)), pq.Array(nonNil(pr.Skills)), pr.Rating, pr.UpdatedAt)
	if err != nil {
		return models.Provider{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Provider{}, err
	}
	return pr, nil
}

const requestColumns = `id, client_id, client_name, client_phone, client_email, provider_id, provider_name,
	description, lat, lon, address, vehicle_make, vehicle_model, vehicle_year, vehicle_plate, urgency, status,
	created_at, updated_at, accepted_at, rejected_at, completed_at, cancelled_at`

func scanRequest(row rowScanner) (models.ServiceRequest, error) {
	var r models.ServiceRequest
	var accepted, rejected, completed, cancelled sql.NullTime
	err := row.Scan(&r.ID, &r.ClientID, &r.ClientName, &r.ClientPhone, &r.ClientEmail, &r.ProviderID, &r.ProviderName,
		&r.Description, &r.Location.Lat, &r.Location.Lon, &r.Location.Address,
		&r.Vehicle.Make, &r.Vehicle.Model, &r.Vehicle.Year, &r.Vehicle.LicensePlate, &r.Urgency, &r.Status,
		&r.CreatedAt, &r.UpdatedAt, &accepted, &rejected, &completed, &cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ServiceRequest{}, ErrNotFound
	}
	if err != nil {
		return models.ServiceRequest{}, err
	}
	r.AcceptedAt = nullTime(accepted)
	r.RejectedAt = nullTime(rejected)
	r.CompletedAt = nullTime(completed)
	r.CancelledAt = nullTime(cancelled)
	return r, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (p *PostgresStore) InsertRequest(ctx context.Context, r models.ServiceRequest) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO service_requests(`+requestColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		r.ID, r.ClientID, r.ClientName, r.ClientPhone, r.ClientEmail, r.ProviderID, r.ProviderName,
		r.Description, r.Location.Lat, r.Location.Lon, r.Location.Address,
		r.Vehicle.Make, r.Vehicle.Model, r.Vehicle.Year, r.Vehicle.LicensePlate, r.Urgency, r.Status,
		r.CreatedAt, r.UpdatedAt, r.AcceptedAt, r.RejectedAt, r.CompletedAt, r.CancelledAt)
	return mapUniqueViolation(err)
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (models.ServiceRequest, error) {
	return scanRequest(p.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=$1`, id))
}

func (p *PostgresStore) ListRequestsByClient(ctx context.Context, clientID string) ([]models.ServiceRequest, error) {
	return p.listRequests(ctx, `client_id=$1`, clientID)
}

func (p *PostgresStore) ListRequestsByProvider(ctx context.Context, providerID string) ([]models.ServiceRequest, error) {
	return p.listRequests(ctx, `provider_id=$1`, providerID)
}

func (p *PostgresStore) listRequests(ctx context.Context, where string, arg string) ([]models.ServiceRequest, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE `+where+` ORDER BY created_at DESC, id DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.ServiceRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateRequestStatus(ctx context.Context, r models.ServiceRequest, from models.Status) error {
	res, err := p.db.ExecContext(ctx, `UPDATE service_requests SET status=$3, updated_at=$4,
		accepted_at=$5, rejected_at=$6, completed_at=$7, cancelled_at=$8 WHERE id=$1 AND status=$2`,
		r.ID, from, r.Status, r.UpdatedAt, r.AcceptedAt, r.RejectedAt, r.CompletedAt, r.CancelledAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM service_requests WHERE id=$1)`, r.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStale
}

// nonNil keeps pq from encoding an empty set as NULL.
func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	}
	return err
}

var (
	_ ProviderStore = (*PostgresStore)(nil)
	_ RequestStore  = (*PostgresStore)(nil)
)
