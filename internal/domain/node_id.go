package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeNodeID trims and rejects placeholder/unknown node ids.
func NormalizeNodeID(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "unknown") || v == "!ffffffff" {
		return ""
	}

	return v
}

// FormatNodeNum renders a node number in the canonical "!1234abcd" form.
func FormatNodeNum(num uint32) string {
	return fmt.Sprintf("!%08x", num)
}

// ParseNodeID converts a canonical "!1234abcd" id to its node number.
func ParseNodeID(nodeID string) (uint32, bool) {
	nodeID = NormalizeNodeID(nodeID)
	if len(nodeID) != 9 || nodeID[0] != '!' {
		return 0, false
	}
	num, err := strconv.ParseUint(nodeID[1:], 16, 32)
	if err != nil {
		return 0, false
	}

	return uint32(num), true
}
