package pending

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrackerResolve_ExactlyOnce(t *testing.T) {
	tracker := NewTracker(testLogger(), time.Minute, nil)
	tracker.Start()
	defer tracker.Stop()

	tracker.Register(42, Request{Kind: KindDirectMessage, Nick: "op", TargetName: "MK1"})

	req, ok := tracker.Resolve(42)
	if !ok {
		t.Fatalf("expected first resolve to succeed")
	}
	if req.Nick != "op" || req.Kind != KindDirectMessage {
		t.Fatalf("unexpected request: %+v", req)
	}
	if _, ok := tracker.Resolve(42); ok {
		t.Fatalf("expected duplicate resolve to fail")
	}
	if tracker.Len() != 0 {
		t.Fatalf("expected empty tracker, got %d", tracker.Len())
	}
}

func TestTrackerResolve_UnknownID(t *testing.T) {
	tracker := NewTracker(testLogger(), time.Minute, nil)
	if _, ok := tracker.Resolve(7); ok {
		t.Fatalf("expected unknown id to resolve false")
	}
}

func TestTrackerExpiry_FiresTimeoutExactlyOnce(t *testing.T) {
	var fired atomic.Int32
	var gotReq atomic.Value
	tracker := NewTracker(testLogger(), 30*time.Millisecond, func(id uint32, req Request) {
		if id == 42 {
			fired.Add(1)
			gotReq.Store(req)
		}
	})
	tracker.Start()
	defer tracker.Stop()

	tracker.Register(42, Request{Kind: KindPing, Nick: "op", TargetName: "MK2"})

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one timeout, got %d", fired.Load())
	}
	req := gotReq.Load().(Request)
	if req.Kind != KindPing || req.Nick != "op" {
		t.Fatalf("unexpected timed-out request: %+v", req)
	}
	if _, ok := tracker.Resolve(42); ok {
		t.Fatalf("expected expired request to be gone")
	}

	// No second callback for the same entry.
	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("timeout fired again: %d", fired.Load())
	}
}

// Resolving right as entries expire must still yield exactly one terminal
// event per request, never both a completion and a timeout.
func TestTrackerResolve_ExpiryRaceSingleTerminalEvent(t *testing.T) {
	const n = 64
	var mu sync.Mutex
	events := make(map[uint32]int)
	tracker := NewTracker(testLogger(), 20*time.Millisecond, func(id uint32, _ Request) {
		mu.Lock()
		events[id]++
		mu.Unlock()
	})
	tracker.Start()
	defer tracker.Stop()

	for i := uint32(1); i <= n; i++ {
		tracker.Register(i, Request{Kind: KindPing, Nick: "op"})
	}

	time.Sleep(18 * time.Millisecond)
	for i := uint32(1); i <= n; i++ {
		if _, ok := tracker.Resolve(i); ok {
			mu.Lock()
			events[i]++
			mu.Unlock()
		}
	}
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != n {
		t.Fatalf("expected %d terminal events, got %d", n, len(events))
	}
	for id, count := range events {
		if count != 1 {
			t.Fatalf("request %d saw %d terminal events", id, count)
		}
	}
}

func TestTrackerResolve_SuppressesTimeout(t *testing.T) {
	var fired atomic.Int32
	tracker := NewTracker(testLogger(), 30*time.Millisecond, func(uint32, Request) {
		fired.Add(1)
	})
	tracker.Start()
	defer tracker.Stop()

	tracker.Register(7, Request{Kind: KindDirectMessage, Nick: "op"})
	if _, ok := tracker.Resolve(7); !ok {
		t.Fatalf("expected resolve to succeed")
	}

	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("timeout fired for resolved request: %d", fired.Load())
	}
}
