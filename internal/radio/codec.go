package radio

import (
	"meshgate/internal/domain"
	"meshgate/internal/mesh"
)

// DecodedFrame is a parsed inbound radio frame with optional event payloads.
type DecodedFrame struct {
	Raw         []byte
	MyNodeNum   uint32
	NodeUpdate  *domain.NodeUpdate
	TextMessage *mesh.TextMessage
	Delivery    *mesh.DeliveryResult
	PingReply   *mesh.PingReply
}

// Codec translates between transport frames and gateway events.
type Codec interface {
	EncodeWantConfig() ([]byte, error)
	EncodeHeartbeat() ([]byte, error)
	// EncodeText builds an outbound text packet. dest may be mesh.Broadcast.
	// The returned packet id correlates delivery events with the request.
	EncodeText(dest uint32, channel uint32, text string, wantAck bool) ([]byte, uint32, error)
	// EncodePing builds an echo request to one node.
	EncodePing(dest uint32) ([]byte, uint32, error)
	DecodeFromRadio(payload []byte) (DecodedFrame, error)
}
