package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/roadside-matching/internal/directory"
	"github.com/example/roadside-matching/internal/dispatch"
	"github.com/example/roadside-matching/internal/geo"
	"github.com/example/roadside-matching/internal/identity"
	"github.com/example/roadside-matching/internal/lifecycle"
)

// Options wires the API to its collaborators.
type Options struct {
	Directory       *directory.Service
	Requests        *lifecycle.Service
	Verifier        identity.Verifier
	WSReg           *dispatch.WSRegistry
	DefaultRadiusKm float64
	CORSOrigins     []string
	// Ready, when set, backs /healthz.
	Ready  func(context.Context) error
	Logger *slog.Logger
}

type Server struct {
	Directory       *directory.Service
	Requests        *lifecycle.Service
	Verifier        identity.Verifier
	WSReg           *dispatch.WSRegistry
	DefaultRadiusKm float64
	Ready           func(context.Context) error

	logger   *slog.Logger
	mux      *mux.Router
	handler  http.Handler
	upgrader websocket.Upgrader
}

func NewServer(o Options) *Server {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.DefaultRadiusKm <= 0 {
		o.DefaultRadiusKm = geo.DefaultRadiusKm
	}
	if o.WSReg == nil {
		o.WSReg = dispatch.NewWSRegistry()
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
	s := &Server{
		Directory:       o.Directory,
		Requests:        o.Requests,
		Verifier:        o.Verifier,
		WSReg:           o.WSReg,
		DefaultRadiusKm: o.DefaultRadiusKm,
		Ready:           o.Ready,
		logger:          o.Logger,
		mux:             mux.NewRouter(),
		// origin checks are left to CORS and the bearer token
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.registerMiddleware()
	s.routes()
	// CORS wraps the router so preflight requests never hit method matching
	s.handler = cors.Handler(cors.Options{
		AllowedOrigins: o.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})(s.mux)
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/providers/nearby", s.handleNearby).Methods(http.MethodGet)
	api.HandleFunc("/providers", s.handleListProviders).Methods(http.MethodGet)
	api.HandleFunc("/providers", s.authed(s.handleRegisterProvider)).Methods(http.MethodPost)
	api.HandleFunc("/providers/{id}", s.handleGetProvider).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id}", s.authed(s.handleUpdateProvider)).Methods(http.MethodPatch)

	api.HandleFunc("/requests", s.authed(s.handleCreateRequest)).Methods(http.MethodPost)
	api.HandleFunc("/requests", s.authed(s.handleListRequests)).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}", s.authed(s.handleGetRequest)).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}/transitions", s.authed(s.handleTransition)).Methods(http.MethodPost)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }
