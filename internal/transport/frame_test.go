package transport

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte("hello mesh")
	frame, err := encodeFrame(payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if frame[0] != 0x94 || frame[1] != 0xC3 {
		t.Fatalf("unexpected header: %x %x", frame[0], frame[1])
	}

	decoded, err := readFrame(ioReadFullFunc(bytes.NewReader(frame)))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("payload mismatch: %q", decoded)
	}
}

func TestReadFrameResyncsPastNoise(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	frame, err := encodeFrame(payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	// Boot log noise, a lone first header byte, then the real frame.
	stream := append([]byte("boot: radio ready\n\x94Z"), frame...)

	decoded, err := readFrame(ioReadFullFunc(bytes.NewReader(stream)))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("payload mismatch: %v", decoded)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	stream := []byte{0x94, 0xC3, 0x00, 0x00}
	if _, err := readFrame(ioReadFullFunc(bytes.NewReader(stream))); err == nil {
		t.Fatalf("expected error for zero-length frame")
	}
}

func TestEncodeFrameRejectsOversizedPayload(t *testing.T) {
	if _, err := encodeFrame(make([]byte, 70000)); err == nil {
		t.Fatalf("expected error for oversized payload")
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	frame, err := encodeFrame([]byte("full payload"))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if _, err := readFrame(ioReadFullFunc(bytes.NewReader(frame[:len(frame)-3]))); err == nil {
		t.Fatalf("expected error for truncated frame")
	}
}
