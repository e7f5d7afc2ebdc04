package radio

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"meshgate/internal/bus"
	"meshgate/internal/mesh"
	"meshgate/internal/transport"
)

// maxTextBytes is the Meshtastic payload limit for a single text packet.
const maxTextBytes = 200

var _ mesh.Interface = (*Service)(nil)

// Service drives one radio link: it keeps the transport connected, reads
// frames into bus events, and drains an outbox of encoded packets. Sends are
// fire and forget; delivery outcomes arrive later as routing events.
type Service struct {
	logger    *slog.Logger
	transport transport.Transport
	codec     *MeshtasticCodec
	bus       bus.MessageBus
	outbox    chan []byte
	cancel    context.CancelFunc
}

func NewService(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, codec *MeshtasticCodec) *Service {
	return &Service{
		logger:    logger,
		transport: tr,
		codec:     codec,
		bus:       b,
		outbox:    make(chan []byte, 128),
	}
}

func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.runOutbox(ctx)
	go s.runConnector(ctx)

	return nil
}

func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
	}

	return s.transport.Close()
}

func (s *Service) MyNodeNum() (uint32, bool) {
	return s.codec.LocalNodeNum()
}

func (s *Service) SendText(channel uint32, text string) (uint32, error) {
	if err := validateText(text); err != nil {
		return 0, err
	}
	payload, id, err := s.codec.EncodeText(mesh.Broadcast, channel, text, false)
	if err != nil {
		return 0, fmt.Errorf("encode broadcast: %w", err)
	}
	if err := s.enqueue(payload); err != nil {
		return 0, err
	}

	return id, nil
}

func (s *Service) SendDirect(dest uint32, text string, wantAck bool) (uint32, error) {
	if dest == mesh.Broadcast || dest == 0 {
		return 0, errors.New("direct message requires a node destination")
	}
	if err := validateText(text); err != nil {
		return 0, err
	}
	payload, id, err := s.codec.EncodeText(dest, 0, text, wantAck)
	if err != nil {
		return 0, fmt.Errorf("encode direct message: %w", err)
	}
	if err := s.enqueue(payload); err != nil {
		return 0, err
	}

	return id, nil
}

func (s *Service) Ping(dest uint32) (uint32, error) {
	payload, id, err := s.codec.EncodePing(dest)
	if err != nil {
		return 0, fmt.Errorf("encode ping: %w", err)
	}
	if err := s.enqueue(payload); err != nil {
		return 0, err
	}

	return id, nil
}

func validateText(text string) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) == 0 {
		return errors.New("message body is empty")
	}
	if len(text) > maxTextBytes {
		return fmt.Errorf("message body exceeds %d bytes: %d", maxTextBytes, len(text))
	}

	return nil
}

func (s *Service) enqueue(payload []byte) error {
	select {
	case s.outbox <- payload:
		return nil
	default:
		return errors.New("radio outbox is full")
	}
}

func (s *Service) runConnector(ctx context.Context) {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		s.publishConnStatus(mesh.ConnectionStateConnecting, nil)
		if err := s.transport.Connect(ctx); err != nil {
			s.publishConnStatus(mesh.ConnectionStateReconnecting, err)
			s.logger.Error("transport connect failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			if backoff < 15*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		s.publishConnStatus(mesh.ConnectionStateConnected, nil)
		if err := s.sendWantConfig(ctx); err != nil {
			s.logger.Warn("want_config send failed", "error", err)
		}

		keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
		go s.runKeepAlive(keepAliveCtx)
		err := s.runReader(ctx)
		cancelKeepAlive()
		_ = s.transport.Close()
		s.publishConnStatus(mesh.ConnectionStateReconnecting, err)

		if !sleepWithContext(ctx, backoff) {
			return
		}
		if backoff < 15*time.Second {
			backoff *= 2
		}
	}
}

func (s *Service) runReader(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		payload, err := s.transport.ReadFrame(readCtx)
		cancel()
		if err != nil {
			return err
		}

		s.bus.Publish(mesh.TopicRawFrameIn, mesh.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})
		decoded, err := s.codec.DecodeFromRadio(payload)
		if err != nil {
			s.logger.Warn("decode fromradio failed", "error", err)
			continue
		}

		if decoded.NodeUpdate != nil {
			s.bus.Publish(mesh.TopicNodeInfo, *decoded.NodeUpdate)
		}
		if decoded.TextMessage != nil {
			s.bus.Publish(mesh.TopicTextMessage, *decoded.TextMessage)
		}
		if decoded.Delivery != nil {
			s.bus.Publish(mesh.TopicDelivery, *decoded.Delivery)
		}
		if decoded.PingReply != nil {
			s.bus.Publish(mesh.TopicPingReply, *decoded.PingReply)
		}
	}
}

func (s *Service) runKeepAlive(ctx context.Context) {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := s.codec.EncodeHeartbeat()
			if err != nil {
				s.logger.Debug("encode heartbeat failed", "error", err)
				continue
			}
			if err := s.writeFrame(ctx, payload, 5*time.Second); err != nil {
				s.logger.Debug("heartbeat write failed", "error", err)
			}
		}
	}
}

func (s *Service) runOutbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.outbox:
			if err := s.writeFrame(ctx, payload, 8*time.Second); err != nil {
				s.logger.Warn("outbound frame write failed", "error", err)
			}
		}
	}
}

func (s *Service) sendWantConfig(ctx context.Context) error {
	payload, err := s.codec.EncodeWantConfig()
	if err != nil {
		return err
	}

	return s.writeFrame(ctx, payload, 6*time.Second)
}

func (s *Service) writeFrame(ctx context.Context, payload []byte, timeout time.Duration) error {
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.transport.WriteFrame(writeCtx, payload); err != nil {
		return err
	}
	s.bus.Publish(mesh.TopicRawFrameOut, mesh.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})

	return nil
}

func (s *Service) publishConnStatus(state mesh.ConnectionState, err error) {
	status := mesh.ConnStatus{
		State:         state,
		TransportName: s.transport.Name(),
		Timestamp:     time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(mesh.TopicConnStatus, status)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
