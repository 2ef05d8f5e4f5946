package delivery

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dunamismax/boothflow/internal/id"
)

func TestRedisFlags_RoundTrip(t *testing.T) {
	addr := os.Getenv("BOOTHFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOTHFLOW_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	flags := NewRedisFlags(client, "boothflow:test:webpage", time.Minute)
	session := id.Session()

	if done, err := flags.Published(ctx, session, "Gala"); err != nil || done {
		t.Fatalf("expected fresh session to be unpublished, got done=%v err=%v", done, err)
	}
	if err := flags.MarkPublished(ctx, session, "Gala"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if done, err := flags.Published(ctx, session, "Gala"); err != nil || !done {
		t.Fatalf("expected session to be published, got done=%v err=%v", done, err)
	}
	if done, _ := flags.Published(ctx, session, "Other"); done {
		t.Fatal("expected a different title to need publishing")
	}
}

func TestMemoryFlags_ExpireAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	flags := NewMemoryFlags()
	flags.now = func() time.Time { return now }

	if err := flags.MarkPublished(ctx, "old", "Gala"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	now = now.Add(defaultFlagTTL)
	if err := flags.MarkPublished(ctx, "new", "Gala"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, ok := flags.titles["old"]; ok {
		t.Fatal("expected expired session to be swept on write")
	}
	if done, _ := flags.Published(ctx, "new", "Gala"); !done {
		t.Fatal("expected fresh session to be published")
	}

	now = now.Add(defaultFlagTTL)
	if done, _ := flags.Published(ctx, "new", "Gala"); done {
		t.Fatal("expected session to expire")
	}
	if len(flags.titles) != 0 {
		t.Fatalf("expected expired entry to be evicted, got %d", len(flags.titles))
	}
}

func TestMemoryFlags_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	flags := NewMemoryFlags()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session := fmt.Sprintf("s%d", i)
			for range 50 {
				if _, err := flags.Published(ctx, session, "Gala"); err != nil {
					t.Errorf("published: %v", err)
					return
				}
				if err := flags.MarkPublished(ctx, session, "Gala"); err != nil {
					t.Errorf("mark: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := range 32 {
		if done, _ := flags.Published(ctx, fmt.Sprintf("s%d", i), "Gala"); !done {
			t.Fatalf("expected s%d to be published", i)
		}
	}
}
