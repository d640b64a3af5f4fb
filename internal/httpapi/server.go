package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/biblioteca/libaccess/internal/libaccess/service"
)

// Observer receives one observation per routed request.
type Observer interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
}

type Dependencies struct {
	Logger  *slog.Logger
	Addr    string
	Tracker *service.AccessTracker
	Reports *service.ReportService
	Admin   *service.AdminService
	Codes   *service.CodeIssuer

	// Optional.
	Observer       Observer
	MetricsHandler http.Handler
	Now            func() time.Time
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	router     *mux.Router
	tracker    *service.AccessTracker
	reports    *service.ReportService
	admin      *service.AdminService
	codes      *service.CodeIssuer
	now        func() time.Time
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	r := mux.NewRouter()
	s := &Server{
		logger:  d.Logger,
		router:  r,
		tracker: d.Tracker,
		reports: d.Reports,
		admin:   d.Admin,
		codes:   d.Codes,
		now:     d.Now,
	}

	r.Use(requestMiddleware(d.Logger, d.Observer))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/v1/access").Subrouter()
	api.HandleFunc("/check-in", s.handleCheckIn).Methods(http.MethodPost)
	api.HandleFunc("/check-out", s.handleCheckOut).Methods(http.MethodPost)
	api.HandleFunc("/members/{memberID:[0-9-]+}/inside", s.handleIsInside).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberID:[0-9-]+}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/inside", s.handleCurrentlyInside).Methods(http.MethodGet)
	api.HandleFunc("/occupancy", s.handleOccupancy).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/codes", s.handleGenerateCode).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleRecent).Methods(http.MethodGet)
	api.HandleFunc("/sessions/by-code/{code}", s.handleByCode).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id:[0-9]+}", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id:[0-9]+}", s.handleDeleteSession).Methods(http.MethodDelete)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           recoverMiddleware(d.Logger, r),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
