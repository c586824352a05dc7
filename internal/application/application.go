package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/tube-cutter/internal/api"
	"github.com/eugenenazirov/tube-cutter/internal/config"
	"github.com/eugenenazirov/tube-cutter/internal/cutting"
	"github.com/eugenenazirov/tube-cutter/internal/metrics"
	"github.com/eugenenazirov/tube-cutter/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := newStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := applyCapacity(store, cfg.StockCapacity, logger); err != nil {
		return nil, fmt.Errorf("failed to apply stock capacity: %w", err)
	}

	m := metrics.New("tube_cutter")
	handler := api.NewHandler(cutting.New, store, api.WithLogger(logger), api.WithMetrics(m))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithRouterMetrics(m),
		api.WithTrustedProxies(cfg.TrustedProxies...),
	)

	return &App{
		storage: store,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

func newStorage(cfg config.Config) (storage.Storage, error) {
	if cfg.DataFile == "" {
		return storage.NewMemoryStorage(), nil
	}
	return storage.NewFileStorage(cfg.DataFile)
}

// applyCapacity seeds the store with the configured capacity. A capacity
// already saved in the data file wins, so changes made through the API survive
// restarts.
func applyCapacity(store storage.Storage, capacity float64, logger *zap.Logger) error {
	if fs, ok := store.(*storage.FileStorage); ok && fs.CapacityLoaded() {
		stored, err := fs.GetCapacity()
		if err != nil {
			return err
		}
		logger.Info("using stock capacity from data file",
			zap.String("path", fs.Path()),
			zap.Float64("capacity", stored),
		)
		return nil
	}
	return store.SetCapacity(capacity)
}

// BuildRootHandler routes /api/ and /metrics traffic to apiHandler and answers
// 404 elsewhere.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/metrics", apiHandler)
	mux.Handle("/", http.NotFoundHandler())
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
