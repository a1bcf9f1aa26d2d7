package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/vrc-api-client/pkg/cache"
	"github.com/Sternrassler/vrc-api-client/pkg/client"
	"github.com/Sternrassler/vrc-api-client/pkg/logging"
	"github.com/Sternrassler/vrc-api-client/pkg/metrics"
	"github.com/Sternrassler/vrc-api-client/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// maxProxyBody bounds request bodies forwarded upstream.
const maxProxyBody = 1 << 20

func main() {
	cfg, err := loadConfig(newViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("api-proxy")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Proxy failed")
	}
}

func run(cfg proxyConfig, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openSnapshotStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	manager := cache.NewManager(store, logging.NewLogger("cache"))
	if n, err := manager.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("Starting with empty cache")
	} else if n > 0 {
		logger.Info().Int("groups", n).Msg("Cache snapshot loaded")
	}

	clientCfg := client.DefaultConfig(cfg.UserAgent)
	clientCfg.BaseURL = cfg.BaseURL
	apiClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}
	defer apiClient.Close()

	go manager.RunCleanup(ctx, cfg.CleanupInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newMux(apiClient, manager, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("base_url", cfg.BaseURL).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting API proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown incomplete")
	}
	if err := manager.Save(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Cache snapshot not saved")
	}
	return nil
}

func newMux(apiClient *client.Client, manager *cache.Manager, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/cache/stats", statsHandler(apiClient, manager))
	mux.HandleFunc("/cache/clear", clearHandler(apiClient, manager, logger))
	mux.HandleFunc("/api/", proxyHandler(apiClient, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// statsResponse is the /cache/stats payload.
type statsResponse struct {
	Caches          cache.Stats     `json:"caches"`
	Total           int             `json:"total"`
	PendingRequests int             `json:"pending_requests"`
	FailedEndpoints int             `json:"failed_endpoints"`
	RateLimit       ratelimit.State `json:"rate_limit"`
}

func statsHandler(apiClient *client.Client, manager *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := manager.Stats()
		writeJSON(w, http.StatusOK, statsResponse{
			Caches:          stats,
			Total:           stats.Total(),
			PendingRequests: apiClient.PendingRequests(),
			FailedEndpoints: apiClient.FailedEndpoints(),
			RateLimit:       apiClient.RateLimitState(),
		})
	}
}

// clearHandler drops every cached entity and failed-endpoint record, the
// same reset a logout performs.
func clearHandler(apiClient *client.Client, manager *cache.Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		manager.ClearAll()
		apiClient.ResetFailures()
		logger.Info().Msg("Caches cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// proxyHandler forwards /api/<endpoint> through the request pipeline.
// Example: GET /api/groups/grp_1 -> GET <base>/groups/grp_1
func proxyHandler(apiClient *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, "/api")
		if endpoint == "" || endpoint == "/" {
			http.Error(w, "missing endpoint", http.StatusBadRequest)
			return
		}

		opts := &client.Options{
			Query:   r.URL.Query(),
			Cookies: r.Cookies(),
		}
		if r.Body != nil && r.Method != http.MethodGet {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
			if err != nil {
				http.Error(w, "read body", http.StatusBadRequest)
				return
			}
			if len(body) > 0 {
				opts.Body = body
				if ct := r.Header.Get("Content-Type"); ct != "" {
					opts.Headers = http.Header{"Content-Type": {ct}}
				}
			}
		}

		resp, err := apiClient.Dispatch(r.Context(), r.Method, endpoint, opts)
		if err != nil {
			status := errorStatus(err)
			logger.Debug().Err(err).Str("endpoint", endpoint).Int("status", status).Msg("Proxy request failed")
			writeError(w, status, err)
			return
		}

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		for _, c := range resp.Cookies {
			http.SetCookie(w, c)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(resp.Body); err != nil {
			logger.Debug().Err(err).Msg("Failed to write response")
		}
	}
}

// errorStatus maps a pipeline error to the status the proxy answers with.
func errorStatus(err error) int {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	switch apiErr.Class {
	case client.ErrorClassRateLimit:
		return http.StatusTooManyRequests
	case client.ErrorClassCircuitBreaker:
		return http.StatusServiceUnavailable
	case client.ErrorClassCancelled:
		return http.StatusGatewayTimeout
	case client.ErrorClassRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": err.Error()}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		body["class"] = string(apiErr.Class)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
