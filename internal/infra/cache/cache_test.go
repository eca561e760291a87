package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_ComputeCreatesAndUpdates(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	v, err := c.Compute("counter", func(current int, ok bool) (int, error) {
		if ok {
			t.Fatal("expected missing key on first compute")
		}
		return current + 1, nil
	})
	if err != nil || v != 1 {
		t.Fatalf("expected 1, got %d (err=%v)", v, err)
	}

	v, err = c.Compute("counter", func(current int, ok bool) (int, error) {
		if !ok {
			t.Fatal("expected existing key on second compute")
		}
		return current + 1, nil
	})
	if err != nil || v != 2 {
		t.Fatalf("expected 2, got %d (err=%v)", v, err)
	}
}

func TestCache_ComputeErrorLeavesValue(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	_, err := c.Compute("key1", func(string, bool) (string, error) {
		return "changed", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error from compute")
	}

	val, _ := c.Get("key1")
	if val != "value1" {
		t.Errorf("expected 'value1' to survive, got '%s'", val)
	}
}

func TestCache_ComputeTreatsExpiredAsMissing(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, _ = c.Compute("key1", func(current string, ok bool) (string, error) {
		if ok || current != "" {
			t.Errorf("expected expired entry to be reported missing, got %q ok=%v", current, ok)
		}
		return "fresh", nil
	})
}

func TestCache_NonPositiveTTLFallsBack(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		c := cache.New[string](ttl)

		c.Set("key1", "value1")
		if _, ok := c.Get("key1"); !ok {
			t.Errorf("ttl %v: expected key to survive with the default ttl", ttl)
		}
		c.Close()
	}
}
