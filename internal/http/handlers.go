package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/lifecycle"
	"github.com/example/roadside-matching/internal/logging"
	"github.com/example/roadside-matching/internal/models"
)

// locationBody keeps coordinates as pointers so a missing lat is reported
// instead of silently becoming 0.
type locationBody struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Address string   `json:"address"`
}

// positionBody is the pointer-coordinate form of models.Position.
type positionBody struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (b *positionBody) resolve(field string) (models.Position, error) {
	if b == nil || b.Lat == nil {
		return models.Position{}, apperr.NewValidation(field+".lat", "is required")
	}
	if b.Lon == nil {
		return models.Position{}, apperr.NewValidation(field+".lon", "is required")
	}
	return models.Position{Lat: *b.Lat, Lon: *b.Lon}, nil
}

// The outer Position shadows the embedded one when decoding.
type registerProviderBody struct {
	models.Provider
	Position *positionBody `json:"position"`
}

type providerPatchBody struct {
	models.ProviderPatch
	Position *positionBody `json:"position"`
}

type createRequestBody struct {
	ProviderID  string             `json:"provider_id"`
	Description string             `json:"description"`
	Location    locationBody       `json:"location"`
	Vehicle     models.VehicleInfo `json:"vehicle"`
	Urgency     models.Urgency     `json:"urgency"`
}

type transitionBody struct {
	Status models.Status `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			logging.FromContext(r.Context(), s.logger).Warn("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"), "lat")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lon, err := floatParam(q.Get("lon"), "lon")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	radius := s.DefaultRadiusKm
	if raw := q.Get("radius"); raw != "" {
		v, err := floatParam(raw, "radius")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		radius = *v
	}
	out, err := s.Directory.Nearby(r.Context(), models.Position{Lat: *lat, Lon: *lon}, radius)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	out, err := s.Directory.FindAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := s.Directory.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRegisterProvider(w http.ResponseWriter, r *http.Request) {
	var body registerProviderBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := body.Position.resolve("position")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body.Provider.Position = pos
	p, err := s.Directory.Register(r.Context(), accountFrom(r.Context()), body.Provider)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	var body providerPatchBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch := body.ProviderPatch
	if body.Position != nil {
		pos, err := body.Position.resolve("position")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.Position = &pos
	}
	p, err := s.Directory.Update(r.Context(), accountFrom(r.Context()), mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Location.Lat == nil {
		s.writeError(w, r, apperr.NewValidation("location.lat", "is required"))
		return
	}
	if body.Location.Lon == nil {
		s.writeError(w, r, apperr.NewValidation("location.lon", "is required"))
		return
	}
	req, err := s.Requests.Create(r.Context(), accountFrom(r.Context()), lifecycle.CreateParams{
		ProviderID:  body.ProviderID,
		Description: body.Description,
		Location:    models.Location{Lat: *body.Location.Lat, Lon: *body.Location.Lon, Address: body.Location.Address},
		Vehicle:     body.Vehicle,
		Urgency:     body.Urgency,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Requests.Get(r.Context(), mux.Vars(r)["id"], accountFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	actor := accountFrom(r.Context())
	mine := models.Role(r.URL.Query().Get("mine"))
	if mine == "" {
		mine = actor.Role
	}
	var (
		out []models.ServiceRequest
		err error
	)
	switch mine {
	case models.RoleClient:
		out, err = s.Requests.ListForClient(r.Context(), actor)
	case models.RoleProvider:
		out, err = s.Requests.ListForProvider(r.Context(), actor)
	default:
		err = apperr.NewValidation("mine", "must be one of: client provider")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(string(body.Status)) == "" {
		s.writeError(w, r, apperr.NewValidation("status", "is required"))
		return
	}
	req, err := s.Requests.Transition(r.Context(), mux.Vars(r)["id"], accountFrom(r.Context()), body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleWS opens a live event stream for the caller. Browsers cannot set
// headers on the upgrade request, so the token may also come as
// ?access_token=.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if t := r.URL.Query().Get("access_token"); t != "" {
			header = "Bearer " + t
		}
	}
	acc, err := s.authenticate(r.Context(), header)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		return
	}
	session := s.WSReg.Add(acc.ID, conn)
	defer s.WSReg.Remove(acc.ID, session)
	logging.FromContext(r.Context(), s.logger).Info("ws session opened", "account_id", acc.ID)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func floatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, apperr.NewValidation(name, "is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.NewValidation(name, "must be a number")
	}
	return &v, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidation("body", "is required")
		}
		return apperr.NewValidation("body", "malformed JSON: %v", err)
	}
	return nil
}
