package mesh

import "context"

// Broadcast is the destination node number addressing every node on the mesh.
const Broadcast = ^uint32(0)

// Interface is the boundary to the radio side of the gateway. Sends are
// fire-and-forget: the returned request id correlates with DeliveryResult and
// PingReply events arriving later on the bus.
type Interface interface {
	// Start brings the link up and begins publishing events on the bus.
	Start(ctx context.Context) error
	// SendText broadcasts text on the given channel index. Broadcasts have no
	// end-to-end acknowledgement; the id is informational.
	SendText(channel uint32, text string) (uint32, error)
	// SendDirect sends text to one node, optionally requesting delivery
	// confirmation.
	SendDirect(dest uint32, text string, wantAck bool) (uint32, error)
	// Ping requests an echo from the target node.
	Ping(dest uint32) (uint32, error)
	// MyNodeNum reports the gateway radio's own node number once known.
	MyNodeNum() (uint32, bool)
	Close() error
}
