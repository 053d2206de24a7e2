package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryGetSetDelete(t *testing.T) {
	c := NewMemory("t:", time.Minute)
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "v" {
		t.Fatalf("v = %q", v)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("after delete: err = %v, want not found", err)
	}
}

func TestMemoryTTLExpires(t *testing.T) {
	c := NewMemory("", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "short", "x", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "short"); !IsNotFound(err) {
		t.Fatalf("err = %v, want not found after expiry", err)
	}
}

func TestMemoryPrefixIsolation(t *testing.T) {
	a := NewMemory("a:", time.Minute)
	ctx := context.Background()

	if err := a.Set(ctx, "k", "va", 0); err != nil {
		t.Fatal(err)
	}
	b := NewMemory("b:", time.Minute)
	if _, err := b.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("separate clients share nothing, err = %v", err)
	}
}

func TestMemoryConsumeIsOneShot(t *testing.T) {
	c := NewMemory("t:", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	v, err := c.Consume(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "v" {
		t.Fatalf("v = %q", v)
	}
	if _, err := c.Consume(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("second consume: err = %v, want not found", err)
	}
}

func TestMemoryConsumeRaceYieldsOneWinner(t *testing.T) {
	c := NewMemory("t:", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}

	var won int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Consume(ctx, "k"); err == nil {
				atomic.AddInt64(&won, 1)
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	c, err := New(Config{Kind: ""})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("memory ping: %v", err)
	}
}
