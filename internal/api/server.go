// Package api exposes the Mines service over HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/pf-mines/internal/ledger"
	"github.com/MJE43/pf-mines/internal/play"
	"github.com/MJE43/pf-mines/internal/scan"
	"github.com/MJE43/pf-mines/internal/store"
)

// EventStream is the websocket endpoint mounted at /ws.
type EventStream interface {
	http.Handler
	Clients() int
}

// Options wires the server to its collaborators. Archive and Events are
// optional; a nil Ledger means the ledger is disabled.
type Options struct {
	Play           *play.Service
	Scanner        *scan.Scanner
	Archive        store.DB
	Ledger         ledger.Ledger
	Events         EventStream
	Logger         *log.Logger
	RequestTimeout time.Duration
}

// Server handles HTTP requests
type Server struct {
	play         *play.Service
	scanner      *scan.Scanner
	archive      store.DB
	ledger       ledger.Ledger
	events       EventStream
	errorHandler *ErrorHandler
	logger       *log.Logger
	timeout      time.Duration
	startTime    time.Time
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.WithPrefix("api")

	s := &Server{
		play:         opts.Play,
		scanner:      opts.Scanner,
		archive:      opts.Archive,
		ledger:       opts.Ledger,
		events:       opts.Events,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		timeout:      opts.RequestTimeout,
		startTime:    time.Now(),
	}
	if s.scanner == nil {
		s.scanner = scan.NewScanner(EngineVersion)
	}
	if s.ledger == nil {
		s.ledger = ledger.Nop{}
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}

	logger.Info("api ready",
		"archive", s.archive != nil,
		"ledger", s.ledger.Info().Backend,
		"events", s.events != nil,
	)
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	// The websocket stream outlives any request timeout.
	if s.events != nil {
		r.Get("/ws", s.events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/health", s.handleHealthCheck)
		r.Get("/health/live", s.handleLiveness)
		r.Get("/version", s.handleVersion)

		r.Route("/game", func(r chi.Router) {
			r.Post("/new", s.handleNewGame)
			r.Post("/reveal", s.handleReveal)
			r.Post("/cashout", s.handleCashout)
			r.Get("/state", s.handleState)
			r.Post("/verify", s.handleVerify)
		})

		r.Post("/seed/hash", s.handleSeedHash)
		r.Post("/scan", s.handleScan)
		r.Get("/scan/runs", s.handleListRuns)
		r.Get("/scan/runs/{run_id}/hits", s.handleRunHits)

		r.Get("/games/history", s.handleHistory)
		r.Get("/games/history/{game_id}", s.handleHistoryGame)

		r.Get("/ledger/info", s.handleLedgerInfo)
		r.Get("/ledger/{game_id}", s.handleLedgerEntry)
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}

func (s *Server) invalid(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleValidationError(w, r, err.Error())
}
