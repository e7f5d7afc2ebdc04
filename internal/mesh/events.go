package mesh

import "time"

type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
)

// ConnStatus is a bus event snapshot of the mesh link state.
type ConnStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Timestamp     time.Time
}

// TextMessage is a text payload received from (or looped back by) the mesh.
type TextMessage struct {
	From      uint32
	To        uint32
	Channel   uint32
	Text      string
	Broadcast bool
	SNR       float64
	RSSI      int
	RxTime    time.Time
}

// DeliveryResult is the terminal outcome of a tracked send: the routing layer
// either confirmed delivery or reported why it failed.
type DeliveryResult struct {
	RequestID uint32
	From      uint32
	Acked     bool
	Reason    string
}

// PingReply carries signal quality reported by a ping response.
type PingReply struct {
	RequestID uint32
	From      uint32
	SNR       float64
	RSSI      int
}

// RawFrame carries frame diagnostics for debug logging.
type RawFrame struct {
	Hex string
	Len int
}
