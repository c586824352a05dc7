package api

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/tube-cutter/internal/metrics"
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimit configures per-client rate limiting. A zero rate or burst
// disables limiting.
func WithRateLimit(ratePerSecond float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if ratePerSecond <= 0 || burst <= 0 {
			cfg.rateLimiter = nil
			return
		}
		cfg.rateLimiter = newTokenBucketLimiter(ratePerSecond, burst)
	}
}

// WithRateLimiter overrides the default request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

// WithRouterMetrics serves m on GET /metrics and records request metrics.
func WithRouterMetrics(m *metrics.Metrics) RouterOption {
	return func(cfg *routerConfig) {
		cfg.metrics = m
	}
}

// WithTrustedProxies lets peers inside prefixes name the client through
// X-Forwarded-For when rate limiting. Without it the header is ignored.
func WithTrustedProxies(prefixes ...netip.Prefix) RouterOption {
	return func(cfg *routerConfig) {
		cfg.trustedProxies = prefixes
	}
}

type routerConfig struct {
	enableLogging bool
	logger        *zap.Logger
	rateLimiter   rateLimiter
	metrics       *metrics.Metrics

	trustedProxies []netip.Prefix
}

// NewRouter creates an HTTP router with standard middleware.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		enableLogging: true,
		logger:        logger,
		rateLimiter:   newTokenBucketLimiter(25, 50),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/health", http.HandlerFunc(handler.handleHealth))
	mux.Handle("GET /api/capacity", http.HandlerFunc(handler.handleGetCapacity))
	mux.Handle("PUT /api/capacity", http.HandlerFunc(handler.handlePutCapacity))
	mux.Handle("GET /api/details", http.HandlerFunc(handler.handleListDetails))
	mux.Handle("POST /api/details", http.HandlerFunc(handler.handleAddDetail))
	mux.Handle("DELETE /api/details", http.HandlerFunc(handler.handleClearDetails))
	mux.Handle("DELETE /api/details/{id}", http.HandlerFunc(handler.handleRemoveDetail))
	mux.Handle("POST /api/optimize", http.HandlerFunc(handler.handleOptimize))
	mux.Handle("GET /api/optimize/export", http.HandlerFunc(handler.handleExport))
	if cfg.metrics != nil {
		mux.Handle("GET /metrics", cfg.metrics.Handler())
	}

	var root http.Handler = mux
	if cfg.metrics != nil {
		root = cfg.metrics.Middleware(func(r *http.Request) string {
			_, pattern := mux.Handler(r)
			return pattern
		}, root)
	}
	root = corsMiddleware(root)
	root = recoveryMiddleware(cfg.logger, root)
	if cfg.enableLogging {
		root = loggingMiddleware(cfg.logger, root)
	}
	root = rateLimitMiddleware(cfg.rateLimiter, cfg.trustedProxies, root)
	root = requestIDMiddleware(root)

	return root
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Requested-With")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID,Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
	})
}

func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("request_id", requestIDFromContext(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "Internal error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := contextWithRequestID(r.Context(), requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
