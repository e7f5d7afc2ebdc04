package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"meshgate/internal/bus"
	"meshgate/internal/mesh"
)

// NodeStore is the in-memory node directory. Records are created or merged on
// every mesh event referencing a node and are never deleted for the process
// lifetime.
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[uint32]Node
}

func NewNodeStore() *NodeStore {
	return &NodeStore{
		nodes: make(map[uint32]Node),
	}
}

// Start consumes node updates from the bus until ctx is cancelled.
func (s *NodeStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(mesh.TopicNodeInfo)
	go func() {
		defer b.Unsubscribe(sub, mesh.TopicNodeInfo)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				update, ok := msg.(NodeUpdate)
				if !ok {
					continue
				}
				s.Upsert(update.Node)
			}
		}
	}()
}

// Upsert merges a sparse update into the cached record. Conflicting scalar
// attributes are last-write-wins; the last-heard timestamp only moves forward.
func (s *NodeStore) Upsert(node Node) {
	if node.Num == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[node.Num]
	if ok {
		if node.NodeID == "" {
			node.NodeID = existing.NodeID
		}
		if node.LongName == "" {
			node.LongName = existing.LongName
		}
		if node.ShortName == "" {
			node.ShortName = existing.ShortName
		}
		if node.SNR == nil {
			node.SNR = existing.SNR
		}
		if node.RSSI == nil {
			node.RSSI = existing.RSSI
		}
		if node.Position == nil {
			node.Position = existing.Position
		}
		if node.Metrics == nil {
			node.Metrics = existing.Metrics
		}
		if node.LastHeardAt.IsZero() || existing.LastHeardAt.After(node.LastHeardAt) {
			node.LastHeardAt = existing.LastHeardAt
		}
	}
	if node.NodeID == "" {
		node.NodeID = FormatNodeNum(node.Num)
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = time.Now()
	}
	s.nodes[node.Num] = node
}

func (s *NodeStore) Get(num uint32) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[num]

	return node, ok
}

// SnapshotSorted returns all records, most recently heard first.
func (s *NodeStore) SnapshotSorted() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastHeardAt.After(out[j].LastHeardAt)
	})

	return out
}

func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.nodes)
}
