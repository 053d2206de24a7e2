package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterCeiling(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip1")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d denied", i+1)
		}
		if want := int64(3 - i - 1); res.Remaining != want {
			t.Errorf("hit %d: remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res, err := l.Allow(ctx, "ip1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("4th hit in the window should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "ip1"); !res.Allowed {
		t.Fatal("first hit for ip1 denied")
	}
	if res, _ := l.Allow(ctx, "ip2"); !res.Allowed {
		t.Fatal("ip2 should have its own window")
	}
	if res, _ := l.Allow(ctx, "ip1"); res.Allowed {
		t.Fatal("ip1 is over its ceiling")
	}
}

func TestByPathDispatch(t *testing.T) {
	l := ByPath{
		Default: NewMemoryLimiter(5, time.Minute),
		Paths: map[string]Limiter{
			"/v1/auth/password/forgot": NewMemoryLimiter(1, time.Minute),
		},
	}
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "ip1|/v1/auth/password/forgot"); !res.Allowed {
		t.Fatal("first forgot hit denied")
	}
	if res, _ := l.Allow(ctx, "ip1|/v1/auth/password/forgot"); res.Allowed {
		t.Fatal("forgot ceiling is 1, second hit should be denied")
	}
	// Other paths still ride the default window.
	if res, _ := l.Allow(ctx, "ip1|/v1/auth/login"); !res.Allowed {
		t.Fatal("login hit should use the default limiter")
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	l := NewMemoryLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "ip1"); !res.Allowed {
		t.Fatal("first hit denied")
	}
	if res, _ := l.Allow(ctx, "ip1"); res.Allowed {
		t.Fatal("second hit inside the window allowed")
	}
	time.Sleep(30 * time.Millisecond)
	if res, _ := l.Allow(ctx, "ip1"); !res.Allowed {
		t.Fatal("window never reset")
	}
}
