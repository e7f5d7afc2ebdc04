package domain

import (
	"strconv"
	"strings"
)

// Resolve maps a user-supplied node reference to a directory record. Matching
// is tried in order: canonical "!hex" node id, short name, long name (all
// case-insensitive), then numeric node number. When several nodes share a
// name, the most recently heard one wins.
func (s *NodeStore) Resolve(ref string) (Node, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Node{}, false
	}

	nodes := s.SnapshotSorted()

	if num, ok := ParseNodeID(ref); ok {
		for _, node := range nodes {
			if node.Num == num {
				return node, true
			}
		}
	}
	for _, node := range nodes {
		if node.ShortName != "" && strings.EqualFold(node.ShortName, ref) {
			return node, true
		}
	}
	for _, node := range nodes {
		if node.LongName != "" && strings.EqualFold(node.LongName, ref) {
			return node, true
		}
	}
	if num, err := strconv.ParseUint(ref, 10, 32); err == nil {
		for _, node := range nodes {
			if node.Num == uint32(num) {
				return node, true
			}
		}
	}

	return Node{}, false
}
