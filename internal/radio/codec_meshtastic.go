package radio

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"meshgate/internal/domain"
	"meshgate/internal/mesh"
)

// Meshtastic protobuf field numbers and enum values used by the stream API
// subset this gateway speaks. Messages are built and parsed directly with
// protowire; only the fields below are touched, unknown fields are skipped.
const (
	// ToRadio payload variants.
	toRadioPacket     = 1
	toRadioWantConfig = 3
	toRadioHeartbeat  = 7

	// FromRadio payload variants.
	fromRadioPacket         = 2
	fromRadioMyInfo         = 3
	fromRadioNodeInfo       = 4
	fromRadioConfigComplete = 7

	// MeshPacket fields.
	packetFrom    = 1
	packetTo      = 2
	packetChannel = 3
	packetDecoded = 4
	packetID      = 6
	packetRxTime  = 7
	packetRxSNR   = 8
	packetWantAck = 10
	packetRxRSSI  = 12

	// Data fields.
	dataPortnum      = 1
	dataPayload      = 2
	dataWantResponse = 3
	dataRequestID    = 6

	// MyNodeInfo fields.
	myInfoNodeNum = 1

	// NodeInfo fields.
	nodeInfoNum       = 1
	nodeInfoUser      = 2
	nodeInfoPosition  = 3
	nodeInfoSNR       = 4
	nodeInfoLastHeard = 5
	nodeInfoMetrics   = 6

	// User fields.
	userID        = 1
	userLongName  = 2
	userShortName = 3

	// Position fields.
	positionLatitudeI  = 1
	positionLongitudeI = 2
	positionAltitude   = 3
	positionTime       = 4

	// DeviceMetrics fields.
	metricsBattery   = 1
	metricsVoltage   = 2
	metricsAirUtilTx = 4
	metricsUptime    = 5

	// Telemetry fields.
	telemetryTime          = 1
	telemetryDeviceMetrics = 2

	// Routing fields.
	routingErrorReason = 3

	// PortNum values.
	portTextMessage = 1
	portPosition    = 3
	portNodeInfo    = 4
	portRouting     = 5
	portReply       = 32
	portTelemetry   = 67
)

const positionScale = 1e-7

// MeshtasticCodec implements Codec for the Meshtastic stream protocol.
type MeshtasticCodec struct {
	packetID     atomic.Uint32
	wantConfigID atomic.Uint32
	localNodeNum atomic.Uint32
}

func NewMeshtasticCodec() (*MeshtasticCodec, error) {
	var seedRaw [4]byte
	if _, err := rand.Read(seedRaw[:]); err != nil {
		return nil, fmt.Errorf("seed packet id: %w", err)
	}
	c := &MeshtasticCodec{}
	c.packetID.Store(binary.BigEndian.Uint32(seedRaw[:]))

	return c, nil
}

func (c *MeshtasticCodec) nextNonZeroID() uint32 {
	for {
		id := c.packetID.Add(1)
		if id != 0 {
			return id
		}
	}
}

// LocalNodeNum reports the radio's own node number once the initial config
// exchange has delivered it.
func (c *MeshtasticCodec) LocalNodeNum() (uint32, bool) {
	num := c.localNodeNum.Load()

	return num, num != 0
}

func (c *MeshtasticCodec) EncodeWantConfig() ([]byte, error) {
	id := c.nextNonZeroID()
	c.wantConfigID.Store(id)

	var b []byte
	b = protowire.AppendTag(b, toRadioWantConfig, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))

	return b, nil
}

func (c *MeshtasticCodec) EncodeHeartbeat() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, toRadioHeartbeat, protowire.BytesType)
	b = protowire.AppendBytes(b, nil)

	return b, nil
}

func (c *MeshtasticCodec) EncodeText(dest uint32, channel uint32, text string, wantAck bool) ([]byte, uint32, error) {
	if text == "" {
		return nil, 0, fmt.Errorf("text payload is empty")
	}
	data := encodeData(portTextMessage, []byte(text), false, 0)

	return c.encodePacket(dest, channel, data, wantAck)
}

func (c *MeshtasticCodec) EncodePing(dest uint32) ([]byte, uint32, error) {
	if dest == mesh.Broadcast {
		return nil, 0, fmt.Errorf("ping requires a direct destination")
	}
	data := encodeData(portReply, []byte("ping"), true, 0)

	return c.encodePacket(dest, 0, data, false)
}

func (c *MeshtasticCodec) encodePacket(dest uint32, channel uint32, data []byte, wantAck bool) ([]byte, uint32, error) {
	id := c.nextNonZeroID()

	var pkt []byte
	pkt = protowire.AppendTag(pkt, packetTo, protowire.Fixed32Type)
	pkt = protowire.AppendFixed32(pkt, dest)
	if channel != 0 {
		pkt = protowire.AppendTag(pkt, packetChannel, protowire.VarintType)
		pkt = protowire.AppendVarint(pkt, uint64(channel))
	}
	pkt = protowire.AppendTag(pkt, packetDecoded, protowire.BytesType)
	pkt = protowire.AppendBytes(pkt, data)
	pkt = protowire.AppendTag(pkt, packetID, protowire.Fixed32Type)
	pkt = protowire.AppendFixed32(pkt, id)
	if wantAck {
		pkt = protowire.AppendTag(pkt, packetWantAck, protowire.VarintType)
		pkt = protowire.AppendVarint(pkt, 1)
	}

	var b []byte
	b = protowire.AppendTag(b, toRadioPacket, protowire.BytesType)
	b = protowire.AppendBytes(b, pkt)

	return b, id, nil
}

func encodeData(portnum uint64, payload []byte, wantResponse bool, requestID uint32) []byte {
	var b []byte
	b = protowire.AppendTag(b, dataPortnum, protowire.VarintType)
	b = protowire.AppendVarint(b, portnum)
	if len(payload) > 0 {
		b = protowire.AppendTag(b, dataPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, payload)
	}
	if wantResponse {
		b = protowire.AppendTag(b, dataWantResponse, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if requestID != 0 {
		b = protowire.AppendTag(b, dataRequestID, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, requestID)
	}

	return b
}

func (c *MeshtasticCodec) DecodeFromRadio(payload []byte) (DecodedFrame, error) {
	out := DecodedFrame{Raw: payload}

	err := eachField(payload, func(num protowire.Number, typ protowire.Type, val fieldValue) error {
		switch num {
		case fromRadioMyInfo:
			if typ != protowire.BytesType {
				return nil
			}
			if nodeNum, ok := decodeMyInfo(val.bytes); ok {
				c.localNodeNum.Store(nodeNum)
				out.MyNodeNum = nodeNum
			}
		case fromRadioNodeInfo:
			if typ != protowire.BytesType {
				return nil
			}
			if update, ok := decodeNodeInfo(val.bytes); ok {
				out.NodeUpdate = &update
			}
		case fromRadioPacket:
			if typ != protowire.BytesType {
				return nil
			}
			c.decodePacket(val.bytes, &out)
		}

		return nil
	})
	if err != nil {
		return out, fmt.Errorf("decode fromradio: %w", err)
	}

	return out, nil
}

type decodedPacket struct {
	from      uint32
	to        uint32
	channel   uint32
	id        uint32
	rxTime    time.Time
	rxSNR     float64
	rxRSSI    int
	portnum   uint64
	payload   []byte
	requestID uint32
	hasData   bool
}

func (c *MeshtasticCodec) decodePacket(raw []byte, out *DecodedFrame) {
	var pkt decodedPacket
	err := eachField(raw, func(num protowire.Number, typ protowire.Type, val fieldValue) error {
		switch num {
		case packetFrom:
			pkt.from = val.fixed32
		case packetTo:
			pkt.to = val.fixed32
		case packetChannel:
			pkt.channel = uint32(val.varint)
		case packetID:
			pkt.id = val.fixed32
		case packetRxTime:
			if val.fixed32 != 0 {
				pkt.rxTime = time.Unix(int64(val.fixed32), 0)
			}
		case packetRxSNR:
			pkt.rxSNR = float64(math.Float32frombits(val.fixed32))
		case packetRxRSSI:
			pkt.rxRSSI = int(int32(uint32(val.varint)))
		case packetDecoded:
			if typ != protowire.BytesType {
				return nil
			}
			pkt.hasData = true
			return eachField(val.bytes, func(num protowire.Number, typ protowire.Type, val fieldValue) error {
				switch num {
				case dataPortnum:
					pkt.portnum = val.varint
				case dataPayload:
					pkt.payload = val.bytes
				case dataRequestID:
					pkt.requestID = val.fixed32
				}

				return nil
			})
		}

		return nil
	})
	if err != nil || !pkt.hasData {
		return
	}
	if pkt.rxTime.IsZero() {
		pkt.rxTime = time.Now()
	}

	local := c.localNodeNum.Load()

	switch pkt.portnum {
	case portTextMessage:
		if len(pkt.payload) == 0 {
			return
		}
		out.TextMessage = &mesh.TextMessage{
			From:      pkt.from,
			To:        pkt.to,
			Channel:   pkt.channel,
			Text:      string(pkt.payload),
			Broadcast: pkt.to == mesh.Broadcast,
			SNR:       pkt.rxSNR,
			RSSI:      pkt.rxRSSI,
			RxTime:    pkt.rxTime,
		}
	case portRouting:
		if pkt.requestID == 0 {
			return
		}
		reason := decodeRoutingError(pkt.payload)
		out.Delivery = &mesh.DeliveryResult{
			RequestID: pkt.requestID,
			From:      pkt.from,
			Acked:     reason == 0,
			Reason:    routingErrorName(reason),
		}
	case portReply:
		if pkt.requestID == 0 {
			// Inbound echo request; the firmware answers it, not the gateway.
			return
		}
		out.PingReply = &mesh.PingReply{
			RequestID: pkt.requestID,
			From:      pkt.from,
			SNR:       pkt.rxSNR,
			RSSI:      pkt.rxRSSI,
		}
	case portNodeInfo:
		if update, ok := decodeUserPayload(pkt); ok {
			out.NodeUpdate = &update
		}
	case portPosition:
		if update, ok := decodePositionPayload(pkt); ok {
			out.NodeUpdate = &update
		}
	case portTelemetry:
		if update, ok := decodeTelemetryPayload(pkt); ok {
			out.NodeUpdate = &update
		}
	}

	// Any packet heard over RF refreshes the sender's directory entry.
	if out.NodeUpdate == nil && pkt.from != 0 && pkt.from != local {
		update := heardUpdate(pkt)
		out.NodeUpdate = &update
	}
}

func heardUpdate(pkt decodedPacket) domain.NodeUpdate {
	node := domain.Node{
		Num:         pkt.from,
		LastHeardAt: pkt.rxTime,
	}
	if pkt.rxSNR != 0 {
		snr := pkt.rxSNR
		node.SNR = &snr
	}
	if pkt.rxRSSI != 0 {
		rssi := pkt.rxRSSI
		node.RSSI = &rssi
	}

	return domain.NodeUpdate{Node: node, Heard: true}
}

func decodeMyInfo(raw []byte) (uint32, bool) {
	var nodeNum uint32
	err := eachField(raw, func(num protowire.Number, _ protowire.Type, val fieldValue) error {
		if num == myInfoNodeNum {
			nodeNum = uint32(val.varint)
		}

		return nil
	})
	if err != nil || nodeNum == 0 {
		return 0, false
	}

	return nodeNum, true
}

func decodeNodeInfo(raw []byte) (domain.NodeUpdate, bool) {
	var node domain.Node
	err := eachField(raw, func(num protowire.Number, typ protowire.Type, val fieldValue) error {
		switch num {
		case nodeInfoNum:
			node.Num = uint32(val.varint)
		case nodeInfoUser:
			if typ == protowire.BytesType {
				decodeUser(val.bytes, &node)
			}
		case nodeInfoPosition:
			if typ == protowire.BytesType {
				if pos, ok := decodePosition(val.bytes); ok {
					node.Position = &pos
				}
			}
		case nodeInfoSNR:
			if snr := float64(math.Float32frombits(val.fixed32)); snr != 0 {
				node.SNR = &snr
			}
		case nodeInfoLastHeard:
			if val.fixed32 != 0 {
				node.LastHeardAt = time.Unix(int64(val.fixed32), 0)
			}
		case nodeInfoMetrics:
			if typ == protowire.BytesType {
				if metrics, ok := decodeDeviceMetrics(val.bytes); ok {
					node.Metrics = &metrics
				}
			}
		}

		return nil
	})
	if err != nil || node.Num == 0 {
		return domain.NodeUpdate{}, false
	}

	return domain.NodeUpdate{Node: node}, true
}

func decodeUser(raw []byte, node *domain.Node) {
	_ = eachField(raw, func(num protowire.Number, _ protowire.Type, val fieldValue) error {
		switch num {
		case userID:
			node.NodeID = domain.NormalizeNodeID(string(val.bytes))
		case userLongName:
			node.LongName = string(val.bytes)
		case userShortName:
			node.ShortName = string(val.bytes)
		}

		return nil
	})
}

func decodeUserPayload(pkt decodedPacket) (domain.NodeUpdate, bool) {
	if pkt.from == 0 {
		return domain.NodeUpdate{}, false
	}
	update := heardUpdate(pkt)
	decodeUser(pkt.payload, &update.Node)

	return update, true
}

func decodePosition(raw []byte) (domain.Position, bool) {
	var pos domain.Position
	var seen bool
	_ = eachField(raw, func(num protowire.Number, _ protowire.Type, val fieldValue) error {
		switch num {
		case positionLatitudeI:
			pos.Latitude = float64(int32(val.fixed32)) * positionScale
			seen = true
		case positionLongitudeI:
			pos.Longitude = float64(int32(val.fixed32)) * positionScale
			seen = true
		case positionAltitude:
			alt := int32(uint32(val.varint))
			pos.Altitude = &alt
		case positionTime:
			if val.fixed32 != 0 {
				pos.Time = time.Unix(int64(val.fixed32), 0)
			}
		}

		return nil
	})

	return pos, seen
}

func decodePositionPayload(pkt decodedPacket) (domain.NodeUpdate, bool) {
	if pkt.from == 0 {
		return domain.NodeUpdate{}, false
	}
	pos, ok := decodePosition(pkt.payload)
	if !ok {
		return domain.NodeUpdate{}, false
	}
	update := heardUpdate(pkt)
	update.Node.Position = &pos

	return update, true
}

func decodeDeviceMetrics(raw []byte) (domain.DeviceMetrics, bool) {
	var metrics domain.DeviceMetrics
	var seen bool
	_ = eachField(raw, func(num protowire.Number, _ protowire.Type, val fieldValue) error {
		switch num {
		case metricsBattery:
			battery := uint32(val.varint)
			metrics.BatteryLevel = &battery
			seen = true
		case metricsVoltage:
			voltage := float64(math.Float32frombits(val.fixed32))
			metrics.Voltage = &voltage
			seen = true
		case metricsAirUtilTx:
			air := float64(math.Float32frombits(val.fixed32))
			metrics.AirUtilTx = &air
			seen = true
		case metricsUptime:
			uptime := uint32(val.varint)
			metrics.UptimeSeconds = &uptime
			seen = true
		}

		return nil
	})

	return metrics, seen
}

func decodeTelemetryPayload(pkt decodedPacket) (domain.NodeUpdate, bool) {
	if pkt.from == 0 {
		return domain.NodeUpdate{}, false
	}
	var metrics domain.DeviceMetrics
	var seen bool
	_ = eachField(pkt.payload, func(num protowire.Number, typ protowire.Type, val fieldValue) error {
		if num == telemetryDeviceMetrics && typ == protowire.BytesType {
			metrics, seen = decodeDeviceMetrics(val.bytes)
		}

		return nil
	})
	if !seen {
		return domain.NodeUpdate{}, false
	}
	update := heardUpdate(pkt)
	update.Node.Metrics = &metrics

	return update, true
}

func decodeRoutingError(raw []byte) uint64 {
	var reason uint64
	_ = eachField(raw, func(num protowire.Number, _ protowire.Type, val fieldValue) error {
		if num == routingErrorReason {
			reason = val.varint
		}

		return nil
	})

	return reason
}

func routingErrorName(reason uint64) string {
	switch reason {
	case 0:
		return "NONE"
	case 1:
		return "NO_ROUTE"
	case 2:
		return "GOT_NAK"
	case 3:
		return "TIMEOUT"
	case 5:
		return "NO_INTERFACE"
	case 7:
		return "MAX_RETRANSMIT"
	case 8:
		return "NO_CHANNEL"
	case 9:
		return "TOO_LARGE"
	default:
		return fmt.Sprintf("ERROR_%d", reason)
	}
}

// fieldValue holds the decoded value of one wire field; only the member
// matching the wire type is meaningful.
type fieldValue struct {
	varint  uint64
	fixed32 uint32
	bytes   []byte
}

// eachField walks a protobuf message, invoking fn per field. Unknown fields
// and wire types are skipped, matching protobuf forward compatibility.
func eachField(raw []byte, fn func(num protowire.Number, typ protowire.Type, val fieldValue) error) error {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return protowire.ParseError(n)
		}
		raw = raw[n:]

		var val fieldValue
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return protowire.ParseError(n)
			}
			val.varint = v
			raw = raw[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(raw)
			if n < 0 {
				return protowire.ParseError(n)
			}
			val.fixed32 = v
			raw = raw[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(raw)
			if n < 0 {
				return protowire.ParseError(n)
			}
			raw = raw[n:]
			continue
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return protowire.ParseError(n)
			}
			val.bytes = v
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return protowire.ParseError(n)
			}
			raw = raw[n:]
			continue
		}

		if err := fn(num, typ, val); err != nil {
			return err
		}
	}

	return nil
}
