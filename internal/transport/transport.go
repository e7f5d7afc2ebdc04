// Package transport moves length-prefixed radio frames over a serial port or
// a TCP socket. The framing matches the Meshtastic stream API: 0x94 0xC3
// header followed by a big-endian uint16 payload length.
package transport

import "context"

type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}
