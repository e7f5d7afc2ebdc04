// Package relay turns mesh bus events into chat-server lines. It is the
// single consumer of the gateway-facing topics, so completion bookkeeping
// (resolve, notify) never races with itself.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	"meshgate/internal/bus"
	"meshgate/internal/domain"
	"meshgate/internal/mesh"
	"meshgate/internal/pending"
)

// ChatSink is the slice of the chat server the relay writes to.
type ChatSink interface {
	SendToRoom(prefix, text string)
	NoticeTo(nick, text string)
}

type Relay struct {
	logger  *slog.Logger
	bus     bus.MessageBus
	nodes   *domain.NodeStore
	pending *pending.Tracker
	mesh    mesh.Interface
	sink    ChatSink
}

func New(logger *slog.Logger, b bus.MessageBus, nodes *domain.NodeStore, tracker *pending.Tracker, m mesh.Interface, sink ChatSink) *Relay {
	return &Relay{
		logger:  logger,
		bus:     b,
		nodes:   nodes,
		pending: tracker,
		mesh:    m,
		sink:    sink,
	}
}

// Start drains the gateway topics on one goroutine until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	texts := r.bus.Subscribe(mesh.TopicTextMessage)
	deliveries := r.bus.Subscribe(mesh.TopicDelivery)
	pongs := r.bus.Subscribe(mesh.TopicPingReply)
	statuses := r.bus.Subscribe(mesh.TopicConnStatus)

	go func() {
		defer func() {
			r.bus.Unsubscribe(texts, mesh.TopicTextMessage)
			r.bus.Unsubscribe(deliveries, mesh.TopicDelivery)
			r.bus.Unsubscribe(pongs, mesh.TopicPingReply)
			r.bus.Unsubscribe(statuses, mesh.TopicConnStatus)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-texts:
				if !ok {
					return
				}
				if msg, ok := payload.(mesh.TextMessage); ok {
					r.handleText(msg)
				}
			case payload, ok := <-deliveries:
				if !ok {
					return
				}
				if result, ok := payload.(mesh.DeliveryResult); ok {
					r.handleDelivery(result)
				}
			case payload, ok := <-pongs:
				if !ok {
					return
				}
				if reply, ok := payload.(mesh.PingReply); ok {
					r.handlePingReply(reply)
				}
			case payload, ok := <-statuses:
				if !ok {
					return
				}
				if status, ok := payload.(mesh.ConnStatus); ok {
					r.handleConnStatus(status)
				}
			}
		}
	}()
}

// OnTimeout is the tracker's expiry callback: tell the requester their mesh
// request went unanswered. The nick may be gone, in which case NoticeTo drops
// the line.
func (r *Relay) OnTimeout(requestID uint32, req pending.Request) {
	switch req.Kind {
	case pending.KindPing:
		r.sink.NoticeTo(req.Nick, fmt.Sprintf("[TIMEOUT] no pong from %s", req.TargetName))
	default:
		r.sink.NoticeTo(req.Nick, fmt.Sprintf("[TIMEOUT] no delivery confirmation from %s", req.TargetName))
	}
}

func (r *Relay) handleText(msg mesh.TextMessage) {
	if num, ok := r.mesh.MyNodeNum(); ok && msg.From == num {
		// The radio loops our own broadcasts back; the room already saw them.
		return
	}
	name := r.senderName(msg.From)
	if msg.Broadcast {
		r.sink.SendToRoom("mesh", fmt.Sprintf("[MESH Rx ch%d %s] %s", msg.Channel, name, msg.Text))

		return
	}
	r.sink.SendToRoom("mesh", fmt.Sprintf("[MESH DM %s] %s", name, msg.Text))
}

func (r *Relay) handleDelivery(result mesh.DeliveryResult) {
	req, ok := r.pending.Resolve(result.RequestID)
	if !ok {
		return
	}
	if result.Acked {
		r.sink.NoticeTo(req.Nick, fmt.Sprintf("[ACK] %s confirmed delivery", req.TargetName))

		return
	}
	r.sink.NoticeTo(req.Nick, fmt.Sprintf("[NAK] delivery to %s failed: %s", req.TargetName, result.Reason))
}

func (r *Relay) handlePingReply(reply mesh.PingReply) {
	req, ok := r.pending.Resolve(reply.RequestID)
	if !ok {
		return
	}
	quality := domain.DetermineSignalQuality(reply.SNR, reply.RSSI)
	r.sink.NoticeTo(req.Nick, fmt.Sprintf("[PONG] %s answered: SNR %.1f dB, RSSI %d dBm (%s)",
		req.TargetName, reply.SNR, reply.RSSI, quality))
}

func (r *Relay) handleConnStatus(status mesh.ConnStatus) {
	switch status.State {
	case mesh.ConnectionStateConnected:
		r.sink.SendToRoom("gateway", fmt.Sprintf("[MESH] radio link up via %s", status.TransportName))
	case mesh.ConnectionStateReconnecting:
		line := "[MESH] radio link lost, reconnecting"
		if status.Err != "" {
			line += ": " + status.Err
		}
		r.sink.SendToRoom("gateway", line)
	}
}

func (r *Relay) senderName(num uint32) string {
	if node, ok := r.nodes.Get(num); ok {
		return node.DisplayName()
	}

	return domain.FormatNodeNum(num)
}
