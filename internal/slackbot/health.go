package slackbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// HealthServer provides HTTP health endpoints for Kubernetes probes.
type HealthServer struct {
	bot    *Bot
	ready  func() bool
	server *http.Server
	port   int
	logger *zap.Logger
}

// NewHealthServer creates a health server for bot. ready reports whether
// the bot finished loading its Octane data.
func NewHealthServer(bot *Bot, ready func() bool, port int, logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{
		bot:    bot,
		ready:  ready,
		port:   port,
		logger: logger,
	}
}

// Handler returns the health endpoints.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// /healthz - liveness probe: checks if the bot is connected to Slack
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if h.bot.IsConnected() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("disconnected"))
		}
	})

	// /readyz - readiness probe: checks that the catalog is loaded
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if h.ready == nil || h.ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("initializing"))
		}
	})
	return mux
}

// Start serves the health endpoints until ctx is canceled.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", h.port),
		Handler: h.Handler(),
	}

	h.logger.Info("starting health server", zap.Int("port", h.port))

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		h.logger.Info("shutting down health server")
		return h.server.Shutdown(context.Background())
	case err := <-errCh:
		return fmt.Errorf("health server error: %w", err)
	}
}
