package models

import "time"

// Position is a WGS84 coordinate in decimal degrees.
type Position struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

// Account is the identity handed to the core by the identity collaborator.
type Account struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

const MaxSkills = 5

// Provider is a garage that can be matched to clients. OwnerID is the
// provider account that registered it.
type Provider struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name" validate:"notblank"`
	Email        string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string    `json:"phone,omitempty"`
	Description  string    `json:"description,omitempty"`
	OpeningHours string    `json:"opening_hours,omitempty"`
	IsOpen       bool      `json:"is_open"`
	Position     Position  `json:"position"`
	Address      string    `json:"address" validate:"notblank"`
	ServiceTags  []string  `json:"service_tags"`
	Skills       []string  `json:"skills" validate:"max=5"`
	Rating       float64   `json:"rating"` // 0..5
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProviderPatch carries a partial provider update; nil fields are left as is.
type ProviderPatch struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,notblank"`
	Email        *string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string   `json:"phone,omitempty" validate:"omitempty,notblank"`
	Description  *string   `json:"description,omitempty" validate:"omitempty,notblank"`
	OpeningHours *string   `json:"opening_hours,omitempty" validate:"omitempty,notblank"`
	IsOpen       *bool     `json:"is_open,omitempty"`
	Position     *Position `json:"position,omitempty"`
	Address      *string   `json:"address,omitempty" validate:"omitempty,notblank"`
	ServiceTags  *[]string `json:"service_tags,omitempty"`
	Skills       *[]string `json:"skills,omitempty" validate:"omitempty,max=5"`
}

// NearbyProvider is one ranked match for a position.
type NearbyProvider struct {
	Provider   Provider `json:"provider"`
	DistanceKm float64  `json:"distance_km"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Location is where assistance was requested.
type Location struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lon     float64 `json:"lon" validate:"longitude"`
	Address string  `json:"address" validate:"notblank"`
}

func (l Location) Position() Position { return Position{Lat: l.Lat, Lon: l.Lon} }

type VehicleInfo struct {
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         string `json:"year,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

// ServiceRequest links one client to one provider. Each optional stamp is
// written once, by the transition it names, so at most one terminal stamp
// (rejected, completed, cancelled) is ever set.
type ServiceRequest struct {
	ID           string      `json:"id"`
	ClientID     string      `json:"client_id"`
	ClientName   string      `json:"client_name,omitempty"`
	ClientPhone  string      `json:"client_phone,omitempty"`
	ClientEmail  string      `json:"client_email,omitempty"`
	ProviderID   string      `json:"provider_id"`
	ProviderName string      `json:"provider_name,omitempty"`
	Description  string      `json:"description"`
	Location     Location    `json:"location"`
	Vehicle      VehicleInfo `json:"vehicle"`
	Urgency      Urgency     `json:"urgency"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	AcceptedAt   *time.Time  `json:"accepted_at,omitempty"`
	RejectedAt   *time.Time  `json:"rejected_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	CancelledAt  *time.Time  `json:"cancelled_at,omitempty"`
}

type EventType string

const (
	EventCreated   EventType = "created"
	EventAccepted  EventType = "accepted"
	EventRejected  EventType = "rejected"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
)

// Event is published to the notification collaborator after a request is
// created or changes status.
type Event struct {
	Type       EventType `json:"type"`
	RequestID  string    `json:"request_id"`
	ClientID   string    `json:"client_id"`
	ProviderID string    `json:"provider_id"`
	// ProviderOwnerID lets dispatchers reach the provider account.
	ProviderOwnerID string    `json:"provider_owner_id,omitempty"`
	Status          Status    `json:"status"`
	At              time.Time `json:"at"`
}
