package radio

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"meshgate/internal/bus"
	"meshgate/internal/mesh"
)

func startTestSimulator(t *testing.T) (*Simulator, bus.MessageBus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(logger)
	sim := NewSimulator(logger, b)
	sim.ReplyDelay = 10 * time.Millisecond
	sim.ChatterInterval = time.Hour
	sim.NewNodeAfter = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		b.Close()
	})
	if err := sim.Start(ctx); err != nil {
		t.Fatalf("start simulator: %v", err)
	}

	return sim, b
}

func waitForEvent[T any](t *testing.T, sub bus.Subscription) T {
	t.Helper()
	for {
		select {
		case payload, ok := <-sub:
			if !ok {
				t.Fatalf("subscription closed")
			}
			if event, ok := payload.(T); ok {
				return event
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no event arrived")
		}
	}
}

func TestSimulatorSeedsNodeDirectory(t *testing.T) {
	sim, b := startTestSimulator(t)
	sub := b.Subscribe(mesh.TopicNodeInfo)
	defer b.Unsubscribe(sub, mesh.TopicNodeInfo)

	num, ok := sim.MyNodeNum()
	if !ok || num != simulatorNodeNum {
		t.Fatalf("unexpected my node num: %d ok=%v", num, ok)
	}
	if _, ok := sim.knows(0x1A2B3C4D); !ok {
		t.Fatalf("expected seeded node in the directory")
	}
}

func TestSimulatorAcksKnownNode(t *testing.T) {
	sim, b := startTestSimulator(t)
	sub := b.Subscribe(mesh.TopicDelivery)
	defer b.Unsubscribe(sub, mesh.TopicDelivery)

	id, err := sim.SendDirect(0x1A2B3C4D, "hello", true)
	if err != nil {
		t.Fatalf("send direct: %v", err)
	}

	result := waitForEvent[mesh.DeliveryResult](t, sub)
	if result.RequestID != id || !result.Acked {
		t.Fatalf("unexpected delivery result: %+v", result)
	}
}

func TestSimulatorNaksUnknownNode(t *testing.T) {
	sim, b := startTestSimulator(t)
	sub := b.Subscribe(mesh.TopicDelivery)
	defer b.Unsubscribe(sub, mesh.TopicDelivery)

	id, err := sim.SendDirect(0xDDDDDDDD, "anyone there", true)
	if err != nil {
		t.Fatalf("send direct: %v", err)
	}

	result := waitForEvent[mesh.DeliveryResult](t, sub)
	if result.RequestID != id || result.Acked {
		t.Fatalf("expected NAK, got %+v", result)
	}
	if result.Reason != "NO_ROUTE" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestSimulatorPongFromKnownNode(t *testing.T) {
	sim, b := startTestSimulator(t)
	sub := b.Subscribe(mesh.TopicPingReply)
	defer b.Unsubscribe(sub, mesh.TopicPingReply)

	id, err := sim.Ping(0x5E6F7081)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}

	reply := waitForEvent[mesh.PingReply](t, sub)
	if reply.RequestID != id || reply.From != 0x5E6F7081 {
		t.Fatalf("unexpected ping reply: %+v", reply)
	}
	if reply.RSSI >= 0 {
		t.Fatalf("expected negative RSSI, got %d", reply.RSSI)
	}
}

func TestSimulatorRejectsBroadcastTargets(t *testing.T) {
	sim, _ := startTestSimulator(t)
	if _, err := sim.SendDirect(mesh.Broadcast, "x", true); err == nil {
		t.Fatalf("expected error for broadcast DM")
	}
	if _, err := sim.Ping(mesh.Broadcast); err == nil {
		t.Fatalf("expected error for broadcast ping")
	}
	if _, err := sim.SendText(0, "   "); err == nil {
		t.Fatalf("expected error for empty broadcast")
	}
}
