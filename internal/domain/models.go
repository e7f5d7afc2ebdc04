package domain

import "time"

// Position is the last reported GPS fix of a node.
type Position struct {
	Latitude  float64
	Longitude float64
	Altitude  *int32
	Time      time.Time
}

// DeviceMetrics holds the last reported telemetry of a node.
type DeviceMetrics struct {
	BatteryLevel  *uint32
	Voltage       *float64
	AirUtilTx     *float64
	UptimeSeconds *uint32
}

// Node is one mesh endpoint as cached by the directory. The node number is
// the canonical key; the id string and names are mutable attributes.
type Node struct {
	Num         uint32
	NodeID      string
	LongName    string
	ShortName   string
	LastHeardAt time.Time
	SNR         *float64
	RSSI        *int
	Position    *Position
	Metrics     *DeviceMetrics
	UpdatedAt   time.Time
}

// DisplayName picks the friendliest available label for a node.
func (n Node) DisplayName() string {
	if n.ShortName != "" {
		return n.ShortName
	}
	if n.LongName != "" {
		return n.LongName
	}
	if n.NodeID != "" {
		return n.NodeID
	}

	return FormatNodeNum(n.Num)
}

// NodeUpdate is published on the bus whenever a mesh event references a node.
// Heard marks updates caused by actual RF traffic from the node.
type NodeUpdate struct {
	Node  Node
	Heard bool
}
