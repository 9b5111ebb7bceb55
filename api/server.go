package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lightlink-network/ll-opinit-bots/database/models"
)

// Store is the read side of the bridge database.
type Store interface {
	ListOutputs(ctx context.Context, page models.Page) (*models.PaginatedResult, error)
	GetOutput(ctx context.Context, index uint64) (*models.Output, error)
	ListWithdrawals(ctx context.Context, f models.WithdrawalFilter, page models.Page) ([]models.Withdrawal, int64, error)
	ListUnconfirmedDeposits(ctx context.Context, page models.Page) (*models.PaginatedResult, error)
}

// API server
type Server struct {
	r     chi.Router
	log   *slog.Logger
	store Store
	opts  ServerOpts
}

type ServerOpts struct {
	Logger *slog.Logger
	Store  Store
	Port   string
}

// Create API server
func NewServer(opts ServerOpts) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("api server requires a store")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		log:   opts.Logger,
		store: opts.Store,
		opts:  opts,
	}
	s.routes()

	return s, nil
}

// Starts the HTTP server and blocks until ctx is done
func (s *Server) StartServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.opts.Port,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("failed to shut down api server", "error", err)
		}
	}()

	s.log.Info("📡 Server Started. API Server is now listening on http://localhost:" + s.opts.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Turns server into http server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Returns JSON response to the API user. HTTP status code
// and data must be provided
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

// Returns an error to the API user
func ERROR(w http.ResponseWriter, statusCode int, err error) {
	w.WriteHeader(statusCode)
	err = json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}
