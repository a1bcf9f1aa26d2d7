package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/vrc-api-client/internal/testutil"
	"github.com/Sternrassler/vrc-api-client/pkg/cache"
	"github.com/Sternrassler/vrc-api-client/pkg/client"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, baseURL string) (*httptest.Server, *client.Client, *cache.Manager) {
	t.Helper()

	cfg := client.DefaultConfig("test/1.0")
	cfg.BaseURL = baseURL
	cfg.BaseBackoff = 10 * time.Millisecond
	cfg.MinSpacing = time.Millisecond
	cfg.RateLimit = 1000
	cfg.RetryAfterPadding = time.Millisecond
	apiClient, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create API client: %v", err)
	}

	manager := cache.NewManager(nil, zerolog.Nop())
	srv := httptest.NewServer(newMux(apiClient, manager, zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		apiClient.Close()
	})
	return srv, apiClient, manager
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	srv, _, _ := newTestServer(t, mock.URL())

	// One request so the labelled client metrics have a series.
	http.Get(srv.URL + "/api/users/usr_1")

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, "vrcapi_requests_total") {
		t.Error("Expected metrics output to contain vrcapi_requests_total")
	}
}

func TestProxyHandler(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/groups/grp_1", testutil.NewOKResponse(`{"id":"grp_1"}`))
	mock.SetResponse("/groups/grp_gone", testutil.NewNotFoundResponse())
	mock.SetResponse("/groups/grp_1/bans", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{}`})

	srv, _, _ := newTestServer(t, mock.URL())

	t.Run("get", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/groups/grp_1?includeRoles=true")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
		if string(body) != `{"id":"grp_1"}` {
			t.Errorf("body = %s", body)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("not found then suppressed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/groups/grp_gone")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("first status = %d, want 404 passed through", resp.StatusCode)
		}

		resp, err = http.Get(srv.URL + "/api/groups/grp_gone")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("second status = %d, want 503", resp.StatusCode)
		}
		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		if body["class"] != string(client.ErrorClassCircuitBreaker) {
			t.Errorf("error body = %v", body)
		}
		if got := mock.PathCount("/groups/grp_gone"); got != 1 {
			t.Errorf("upstream calls = %d, want 1", got)
		}
	})

	t.Run("post forwards body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/groups/grp_1/bans", "application/json", strings.NewReader(`{"userId":"usr_2"}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		if got := string(mock.LastBody()); got != `{"userId":"usr_2"}` {
			t.Errorf("forwarded body = %s", got)
		}
	})

	t.Run("missing endpoint", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestCacheEndpoints(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	srv, _, manager := newTestServer(t, mock.URL())

	manager.Users.Set("usr_1", cache.Record{"id": "usr_1"})
	manager.Groups.Set("grp_1", cache.Record{"id": "grp_1"})

	resp, err := http.Get(srv.URL + "/cache/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	resp.Body.Close()

	if stats.Caches.Users != 1 || stats.Caches.Groups != 1 || stats.Total != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.RateLimit.GateOpen {
		t.Error("rate limit gate reported closed")
	}

	resp, err = http.Get(srv.URL + "/cache/clear")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /cache/clear status = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/cache/clear", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("POST /cache/clear status = %d, want 204", resp.StatusCode)
	}
	if got := manager.Stats().Total(); got != 0 {
		t.Errorf("entries after clear = %d, want 0", got)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rate limit", &client.APIError{Class: client.ErrorClassRateLimit}, http.StatusTooManyRequests},
		{"circuit breaker", &client.APIError{Class: client.ErrorClassCircuitBreaker}, http.StatusServiceUnavailable},
		{"cancelled", &client.APIError{Class: client.ErrorClassCancelled}, http.StatusGatewayTimeout},
		{"bad request", &client.APIError{Class: client.ErrorClassRequest}, http.StatusBadRequest},
		{"network", &client.APIError{Class: client.ErrorClassNetwork}, http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig(newViper())
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Port != 8080 {
			t.Errorf("Port = %d, want 8080", cfg.Port)
		}
		if cfg.BaseURL != client.DefaultBaseURL {
			t.Errorf("BaseURL = %q", cfg.BaseURL)
		}
		if cfg.CleanupInterval != cache.DefaultCleanupInterval {
			t.Errorf("CleanupInterval = %v", cfg.CleanupInterval)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("API_PROXY_PORT", "9090")
		t.Setenv("API_PROXY_USER_AGENT", "MyTool/2.0 (ops@example.com)")
		t.Setenv("API_PROXY_LOG_PRETTY", "true")
		t.Setenv("API_PROXY_CLEANUP_INTERVAL", "30s")
		t.Setenv("API_PROXY_SNAPSHOT_PATH", "/tmp/snapshot.json")

		cfg, err := loadConfig(newViper())
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Port != 9090 {
			t.Errorf("Port = %d, want 9090", cfg.Port)
		}
		if cfg.UserAgent != "MyTool/2.0 (ops@example.com)" {
			t.Errorf("UserAgent = %q", cfg.UserAgent)
		}
		if !cfg.LogPretty {
			t.Error("LogPretty = false, want true")
		}
		if cfg.CleanupInterval != 30*time.Second {
			t.Errorf("CleanupInterval = %v, want 30s", cfg.CleanupInterval)
		}
		if cfg.SnapshotPath != "/tmp/snapshot.json" {
			t.Errorf("SnapshotPath = %q", cfg.SnapshotPath)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		t.Setenv("API_PROXY_PORT", "70000")
		if _, err := loadConfig(newViper()); err == nil {
			t.Error("loadConfig() error = nil, want invalid port")
		}
	})
}

func TestOpenSnapshotStore(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		store, closeStore, err := openSnapshotStore(proxyConfig{})
		if err != nil || store != nil {
			t.Errorf("openSnapshotStore() = %v, %v, want nil store", store, err)
		}
		if err := closeStore(); err != nil {
			t.Errorf("closeStore() error = %v", err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		store, _, err := openSnapshotStore(proxyConfig{SnapshotPath: path})
		if err != nil {
			t.Fatalf("openSnapshotStore() error = %v", err)
		}
		fs, ok := store.(*cache.FileStore)
		if !ok || fs.Path() != path {
			t.Errorf("store = %#v, want FileStore at %s", store, path)
		}
	})

	t.Run("redis preferred", func(t *testing.T) {
		store, closeStore, err := openSnapshotStore(proxyConfig{
			RedisURL:     "redis://localhost:6379/0",
			SnapshotPath: "/tmp/ignored.json",
			SnapshotKey:  "test:snapshot",
		})
		if err != nil {
			t.Fatalf("openSnapshotStore() error = %v", err)
		}
		defer closeStore()
		rs, ok := store.(*cache.RedisStore)
		if !ok || rs.Key() != "test:snapshot" {
			t.Errorf("store = %#v, want RedisStore with key test:snapshot", store)
		}
	})

	t.Run("bad redis url", func(t *testing.T) {
		if _, _, err := openSnapshotStore(proxyConfig{RedisURL: "mysql://nope"}); err == nil {
			t.Error("openSnapshotStore() error = nil, want parse error")
		}
	})
}
