//go:build integration

package accessor

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/vrc-api-client/internal/testutil"
	"github.com/Sternrassler/vrc-api-client/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_WarmStartFromRedis(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/groups/grp_1", testutil.NewOKResponse(`{"id":"grp_1","name":"Test Group","memberCount":42}`))

	ctx := context.Background()
	store := cache.NewRedisStore(redisClient, "", time.Hour)
	apiClient := newTestClient(t, mock.URL())

	// First process: fetch through the pipeline and save on shutdown.
	first := New(apiClient, cache.NewManager(store, zerolog.Nop()))
	group, err := first.Group(ctx, "grp_1", false)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if group["name"] != "Test Group" {
		t.Fatalf("Group() = %v", group)
	}
	if err := first.Cache().Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Second process: load the snapshot and serve without I/O.
	second := New(apiClient, cache.NewManager(store, zerolog.Nop()))
	loaded, err := second.Cache().Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != 1 {
		t.Errorf("loaded = %d, want 1", loaded)
	}

	group, err = second.Group(ctx, "grp_1", false)
	if err != nil {
		t.Fatalf("Group() after warm start error = %v", err)
	}
	if group["memberCount"] != float64(42) {
		t.Errorf("memberCount = %v, want 42", group["memberCount"])
	}
	if got := mock.PathCount("/groups/grp_1"); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (second process served from snapshot)", got)
	}
}
