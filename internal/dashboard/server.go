// Package dashboard serves the JSON HTTP API over the application Store.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/metrics"
	"github.com/stageboard/stageboard/internal/state"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Store   *state.Store
	Port    int
	Out     io.Writer
	Logger  zerolog.Logger
	Metrics *metrics.Recorder // optional; serves /metrics when set
	Events  *Broadcaster      // optional; serves /api/events when set
	BaseURL string            // public URL used in share links
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Logger, opts.Metrics))
	registerRoutes(router, opts)
	return router
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("dashboard: store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.BaseURL == "" {
		opts.BaseURL = fmt.Sprintf("http://localhost:%d", opts.Port)
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}
	opts.Logger.Info().Int("port", opts.Port).Msg("dashboard listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
