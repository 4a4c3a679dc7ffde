package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCollectionCacheFetchesOnce(t *testing.T) {
	c := NewCollectionCache(0, zerolog.Nop())
	ctx := context.Background()

	var fetches int32
	fetch := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&fetches, 1)
		return []string{"TCGA-LUAD", "TCGA-BRCA", "LIDC-IDRI"}, nil
	}

	for i := 0; i < 10; i++ {
		entries, err := c.Get(ctx, "tcia", fetch)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
	}

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("expected exactly 1 upstream fetch, got %d", n)
	}
}

func TestCollectionCacheConcurrentPopulate(t *testing.T) {
	c := NewCollectionCache(0, zerolog.Nop())
	ctx := context.Background()

	var fetches int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return []string{"LIDC-IDRI"}, nil
	}

	const waiters = 6
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(ctx, "tcia", fetch); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("expected a single shared fetch, got %d", n)
	}
}

func TestCollectionCacheTTLExpiry(t *testing.T) {
	c := NewCollectionCache(time.Minute, zerolog.Nop())
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	var fetches int32
	fetch := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&fetches, 1)
		return []string{"entry"}, nil
	}

	if _, err := c.Get(ctx, "tcia", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	current = current.Add(30 * time.Second)
	if _, err := c.Get(ctx, "tcia", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("entry within TTL refetched (%d fetches)", n)
	}

	current = current.Add(2 * time.Minute)
	if _, err := c.Get(ctx, "tcia", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Errorf("stale entry not refetched (%d fetches)", n)
	}
}
