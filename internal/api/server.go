// v2
// internal/api/server.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/maxmcoste/home-controller/internal/actions"
	"github.com/maxmcoste/home-controller/internal/auth"
	"github.com/maxmcoste/home-controller/internal/config"
	"github.com/maxmcoste/home-controller/internal/control"
	"github.com/maxmcoste/home-controller/internal/metrics"
	"github.com/maxmcoste/home-controller/internal/store"
)

// Lifecycle lets the privileged control endpoints signal the composition
// root without the API owning process shutdown.
type Lifecycle interface {
	RequestStop()
	RequestRestart()
}

// Server is the HTTP surface in front of the store, controller and
// authenticator.
type Server struct {
	cfg   *config.Config
	log   *slog.Logger
	store *store.Store
	ctrl  *control.Controller
	auth  *auth.Authenticator
	rec   actions.Recorder
	life  Lifecycle

	// serializes topology file edits and the re-registration they trigger
	topoMu sync.Mutex

	http *http.Server
}

// New assembles the server. The router is wrapped with request logging and
// permissive CORS so the web UI can call from another origin.
func New(cfg *config.Config, st *store.Store, ctrl *control.Controller, a *auth.Authenticator, rec actions.Recorder, life Lifecycle, log *slog.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		log:   log.With(slog.String("component", "api")),
		store: st,
		ctrl:  ctrl,
		auth:  a,
		rec:   rec,
		life:  life,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.getRoot).Methods("GET")
	r.HandleFunc("/health", s.getHealth).Methods("GET")
	r.HandleFunc("/status", s.getStatus).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	r.HandleFunc("/rooms", s.getRooms).Methods("GET")
	r.HandleFunc("/rooms/by-floor/{floor}", s.getRoomsByFloor).Methods("GET")
	r.HandleFunc("/rooms/by-type/{roomType}", s.getRoomsByType).Methods("GET")
	r.HandleFunc("/room/{roomID}", s.getRoom).Methods("GET")
	r.HandleFunc("/room/{roomID}/target", s.putTarget).Methods("PUT")
	r.HandleFunc("/room/{roomID}/temperature", s.postTemperature).Methods("POST")

	r.HandleFunc("/topology", s.getTopology).Methods("GET")
	r.HandleFunc("/topology/rooms/{roomType}", s.postRoom).Methods("POST")
	r.HandleFunc("/topology/rooms/{roomID}", s.putRoom).Methods("PUT")
	r.HandleFunc("/topology/rooms/{roomID}", s.deleteRoom).Methods("DELETE")

	r.HandleFunc("/control/{action}", s.postControl).Methods("POST")

	chain := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
	chain = handlers.LoggingHandler(os.Stdout, chain)

	s.http = &http.Server{
		Addr:              cfg.BindAddr(),
		Handler:           chain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the wrapped handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving until Stop or a listener error.
func (s *Server) Start() error {
	s.log.Info("http server starting", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("http server stopping")
	return s.http.Shutdown(ctx)
}
