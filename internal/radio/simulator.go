package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"meshgate/internal/bus"
	"meshgate/internal/domain"
	"meshgate/internal/mesh"
)

const simulatorNodeNum uint32 = 12345678

var _ mesh.Interface = (*Simulator)(nil)

// Simulator is an in-process mesh backend for running the gateway without a
// radio. It seeds a small node directory, chatters on the primary channel,
// and answers tracked sends with a delayed ACK or PONG so the whole request
// pipeline can be exercised end to end.
type Simulator struct {
	logger *slog.Logger
	bus    bus.MessageBus

	// Intervals are fields so tests can shrink them.
	ChatterInterval time.Duration
	ReplyDelay      time.Duration
	NewNodeAfter    time.Duration

	nextID     atomic.Uint32
	mu         sync.Mutex
	knownNodes map[uint32]domain.Node
	cancel     context.CancelFunc
}

func NewSimulator(logger *slog.Logger, b bus.MessageBus) *Simulator {
	return &Simulator{
		logger:          logger,
		bus:             b,
		ChatterInterval: 45 * time.Second,
		ReplyDelay:      1500 * time.Millisecond,
		NewNodeAfter:    60 * time.Second,
		knownNodes:      make(map[uint32]domain.Node),
	}
}

func (s *Simulator) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.bus.Publish(mesh.TopicConnStatus, mesh.ConnStatus{
		State:         mesh.ConnectionStateConnected,
		TransportName: "mock",
		Timestamp:     time.Now(),
	})
	for _, node := range seedNodes() {
		s.mu.Lock()
		s.knownNodes[node.Num] = node
		s.mu.Unlock()
		s.bus.Publish(mesh.TopicNodeInfo, domain.NodeUpdate{Node: node})
	}
	s.logger.Info("mock mesh started", "nodes", len(s.knownNodes), "my_node_num", simulatorNodeNum)

	go s.runChatter(ctx)
	go s.runLateJoiner(ctx)

	return nil
}

func (s *Simulator) Close() error {
	if s.cancel != nil {
		s.cancel()
	}

	return nil
}

func (s *Simulator) MyNodeNum() (uint32, bool) {
	return simulatorNodeNum, true
}

func (s *Simulator) SendText(channel uint32, text string) (uint32, error) {
	if err := validateText(text); err != nil {
		return 0, err
	}
	id := s.nextPacketID()
	s.logger.Debug("mock broadcast sent", "channel", channel, "bytes", len(text))

	return id, nil
}

func (s *Simulator) SendDirect(dest uint32, text string, wantAck bool) (uint32, error) {
	if dest == mesh.Broadcast || dest == 0 {
		return 0, errors.New("direct message requires a node destination")
	}
	if err := validateText(text); err != nil {
		return 0, err
	}
	id := s.nextPacketID()
	if wantAck {
		go s.deliverLater(id, dest)
	}

	return id, nil
}

func (s *Simulator) Ping(dest uint32) (uint32, error) {
	if dest == mesh.Broadcast || dest == 0 {
		return 0, errors.New("ping requires a direct destination")
	}
	id := s.nextPacketID()
	go s.pongLater(id, dest)

	return id, nil
}

func (s *Simulator) nextPacketID() uint32 {
	for {
		if id := s.nextID.Add(1); id != 0 {
			return id
		}
	}
}

func (s *Simulator) knows(num uint32) (domain.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.knownNodes[num]

	return node, ok
}

// deliverLater emits a routing result after the round trip delay: an ACK
// when the destination is part of the simulated mesh, a NAK otherwise.
func (s *Simulator) deliverLater(requestID, dest uint32) {
	time.Sleep(s.ReplyDelay)
	_, ok := s.knows(dest)
	result := mesh.DeliveryResult{
		RequestID: requestID,
		From:      dest,
		Acked:     ok,
	}
	if ok {
		result.Reason = "NONE"
	} else {
		result.Reason = "NO_ROUTE"
	}
	s.bus.Publish(mesh.TopicDelivery, result)
}

func (s *Simulator) pongLater(requestID, dest uint32) {
	time.Sleep(s.ReplyDelay)
	if _, ok := s.knows(dest); !ok {
		// Unreachable nodes never answer; the tracker times the request out.
		return
	}
	s.bus.Publish(mesh.TopicPingReply, mesh.PingReply{
		RequestID: requestID,
		From:      dest,
		SNR:       6.25 - rand.Float64()*4,
		RSSI:      -82 - rand.Intn(20),
	})
}

func (s *Simulator) runChatter(ctx context.Context) {
	lines := []string{
		"anyone copy on the ridge repeater?",
		"solar is holding at 4.1V after the storm",
		"net check-in at 1900 local",
		"picked you up 3 by 5 from the valley",
	}
	ticker := time.NewTicker(s.ChatterInterval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			from := seedNodes()[i%2].Num
			now := time.Now()
			s.bus.Publish(mesh.TopicTextMessage, mesh.TextMessage{
				From:      from,
				To:        mesh.Broadcast,
				Channel:   0,
				Text:      lines[i%len(lines)],
				Broadcast: true,
				SNR:       5.5 - rand.Float64()*8,
				RSSI:      -90 - rand.Intn(25),
				RxTime:    now,
			})
			s.bus.Publish(mesh.TopicNodeInfo, domain.NodeUpdate{
				Node:  domain.Node{Num: from, LastHeardAt: now},
				Heard: true,
			})
			i++
		}
	}
}

// runLateJoiner introduces a previously unseen node after a while, the way a
// real mesh grows while the gateway is up.
func (s *Simulator) runLateJoiner(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.NewNodeAfter):
	}

	node := domain.Node{
		Num:         0x2C9E11F0,
		NodeID:      domain.FormatNodeNum(0x2C9E11F0),
		LongName:    "Roaming Node 4",
		ShortName:   "RN4",
		LastHeardAt: time.Now(),
	}
	s.mu.Lock()
	s.knownNodes[node.Num] = node
	s.mu.Unlock()
	s.bus.Publish(mesh.TopicNodeInfo, domain.NodeUpdate{Node: node})
	s.logger.Info("mock node joined", "node", node.DisplayName())
}

func seedNodes() []domain.Node {
	now := time.Now()
	snr1, snr2 := 7.25, -3.5
	rssi1, rssi2 := -78, -104
	battery := uint32(87)
	voltage := 4.05
	alt := int32(142)

	return []domain.Node{
		{
			Num:         0x1A2B3C4D,
			NodeID:      domain.FormatNodeNum(0x1A2B3C4D),
			LongName:    "Mesh Kit One",
			ShortName:   "MK1",
			LastHeardAt: now.Add(-2 * time.Minute),
			SNR:         &snr1,
			RSSI:        &rssi1,
			Position: &domain.Position{
				Latitude:  44.0582,
				Longitude: -121.3153,
				Altitude:  &alt,
				Time:      now.Add(-10 * time.Minute),
			},
			Metrics: &domain.DeviceMetrics{
				BatteryLevel: &battery,
				Voltage:      &voltage,
			},
		},
		{
			Num:         0x5E6F7081,
			NodeID:      domain.FormatNodeNum(0x5E6F7081),
			LongName:    "Mesh Kit Two",
			ShortName:   "MK2",
			LastHeardAt: now.Add(-25 * time.Minute),
			SNR:         &snr2,
			RSSI:        &rssi2,
		},
		{
			Num:         simulatorNodeNum,
			NodeID:      domain.FormatNodeNum(simulatorNodeNum),
			LongName:    fmt.Sprintf("Gateway %s", domain.FormatNodeNum(simulatorNodeNum)),
			ShortName:   "GW",
			LastHeardAt: now,
		},
	}
}
