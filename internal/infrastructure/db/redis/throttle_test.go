package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeCounters implements the subset of redis.Cmdable the throttle uses.
// Any other method panics through the nil embedded interface.
type fakeCounters struct {
	redis.Cmdable
	values  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{values: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounters) Ping(_ context.Context) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCounters) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	n, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(strconv.FormatInt(n, 10), nil)
}

func (f *fakeCounters) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.values[key]++
	return redis.NewIntResult(f.values[key], nil)
}

func (f *fakeCounters) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounters) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestLoginThrottle_BlocksAfterLimit(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCounters()
	th := NewLoginThrottle(fake, 3, time.Minute)

	for i := 0; i < 3; i++ {
		blocked, err := th.Blocked(ctx, "alice")
		if err != nil || blocked {
			t.Fatalf("attempt %d: blocked=%v err=%v", i, blocked, err)
		}
		if err := th.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	blocked, err := th.Blocked(ctx, "alice")
	if err != nil || !blocked {
		t.Fatalf("expected alice to be blocked, got %v %v", blocked, err)
	}
	if blocked, _ := th.Blocked(ctx, "bob"); blocked {
		t.Fatalf("counters must be per username")
	}
}

func TestLoginThrottle_WindowStartsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCounters()
	th := NewLoginThrottle(fake, 5, 10*time.Minute)

	_ = th.RecordFailure(ctx, "alice")
	if fake.expires["login:fail:alice"] != 10*time.Minute {
		t.Fatalf("expected expiry on first failure, got %v", fake.expires)
	}

	fake.expires["login:fail:alice"] = 0
	_ = th.RecordFailure(ctx, "alice")
	if fake.expires["login:fail:alice"] != 0 {
		t.Fatalf("later failures must not extend the window")
	}
}

func TestLoginThrottle_Reset(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCounters()
	th := NewLoginThrottle(fake, 1, time.Minute)

	_ = th.RecordFailure(ctx, "alice")
	if blocked, _ := th.Blocked(ctx, "alice"); !blocked {
		t.Fatalf("expected block after one failure")
	}
	if err := th.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if blocked, _ := th.Blocked(ctx, "alice"); blocked {
		t.Fatalf("expected counter cleared")
	}
}

func TestLoginThrottle_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCounters()
	fake.err = errors.New("connection refused")
	th := NewLoginThrottle(fake, 0, 0)

	if _, err := th.Blocked(ctx, "alice"); err == nil {
		t.Fatalf("expected error from Blocked")
	}
	if err := th.RecordFailure(ctx, "alice"); err == nil {
		t.Fatalf("expected error from RecordFailure")
	}
	if th.maxFailures != defaultMaxFailures || th.window != defaultWindow {
		t.Fatalf("defaults not applied: %d %v", th.maxFailures, th.window)
	}
}
