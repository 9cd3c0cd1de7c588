// Package packets defines the scene replication packets sent to editor clients.
//
// Every packet starts with a little-endian uint16 packet ID followed by a
// fixed or length-prefixed payload. Multi-byte values are little-endian.
package packets

import (
	"errors"
	"fmt"
	"sort"

	crunch "github.com/superwhiskers/crunch/v3"

	"github.com/Faultbox/mapeditor/pkg/math"
)

// Packet IDs sent by the editor server.
const (
	ZC_NODE_SPAWN      uint16 = 0x0A01 // Node spawned, full state
	ZC_NODE_TRANSFORM  uint16 = 0x0A02 // Node pose changed
	ZC_NODE_PROPERTIES uint16 = 0x0A03 // Node properties replaced
	ZC_NODE_DESTROY    uint16 = 0x0A04 // Node destroyed
	ZC_SNAPSHOT_DONE   uint16 = 0x0A05 // Initial snapshot finished
)

// Decoding errors.
var (
	ErrShortPacket   = errors.New("packet too short")
	ErrUnknownPacket = errors.New("unknown packet id")
)

// Wire sizes.
const (
	HeaderSize    = 2
	TransformSize = 10 * 4 // position, rotation quaternion, scale
)

// Packet is a replication packet.
type Packet interface {
	ID() uint16
	Size() int
	Encode() []byte
}

// NodeSpawn (ZC_NODE_SPAWN 0x0A01)
type NodeSpawn struct {
	Handle     uint32
	Kind       uint8
	Transform  math.Transform
	Properties map[string]string
}

// ID returns the packet ID.
func (p *NodeSpawn) ID() uint16 { return ZC_NODE_SPAWN }

// Size returns packet size.
func (p *NodeSpawn) Size() int {
	return HeaderSize + 4 + 1 + TransformSize + propertiesSize(p.Properties)
}

// Encode encodes the packet.
func (p *NodeSpawn) Encode() []byte {
	buf := newBuffer(p)
	buf.WriteU32LENext([]uint32{p.Handle})
	buf.WriteByteNext(p.Kind)
	writeTransform(buf, p.Transform)
	writeProperties(buf, p.Properties)
	return buf.Bytes()
}

// NodeTransform (ZC_NODE_TRANSFORM 0x0A02)
type NodeTransform struct {
	Handle    uint32
	Transform math.Transform
}

// ID returns the packet ID.
func (p *NodeTransform) ID() uint16 { return ZC_NODE_TRANSFORM }

// Size returns packet size.
func (p *NodeTransform) Size() int {
	return HeaderSize + 4 + TransformSize
}

// Encode encodes the packet.
func (p *NodeTransform) Encode() []byte {
	buf := newBuffer(p)
	buf.WriteU32LENext([]uint32{p.Handle})
	writeTransform(buf, p.Transform)
	return buf.Bytes()
}

// NodeProperties (ZC_NODE_PROPERTIES 0x0A03)
type NodeProperties struct {
	Handle     uint32
	Properties map[string]string
}

// ID returns the packet ID.
func (p *NodeProperties) ID() uint16 { return ZC_NODE_PROPERTIES }

// Size returns packet size.
func (p *NodeProperties) Size() int {
	return HeaderSize + 4 + propertiesSize(p.Properties)
}

// Encode encodes the packet.
func (p *NodeProperties) Encode() []byte {
	buf := newBuffer(p)
	buf.WriteU32LENext([]uint32{p.Handle})
	writeProperties(buf, p.Properties)
	return buf.Bytes()
}

// NodeDestroy (ZC_NODE_DESTROY 0x0A04)
type NodeDestroy struct {
	Handle uint32
}

// ID returns the packet ID.
func (p *NodeDestroy) ID() uint16 { return ZC_NODE_DESTROY }

// Size returns packet size.
func (p *NodeDestroy) Size() int {
	return HeaderSize + 4
}

// Encode encodes the packet.
func (p *NodeDestroy) Encode() []byte {
	buf := newBuffer(p)
	buf.WriteU32LENext([]uint32{p.Handle})
	return buf.Bytes()
}

// SnapshotDone (ZC_SNAPSHOT_DONE 0x0A05)
type SnapshotDone struct {
	Count uint32 // Nodes sent in the snapshot
}

// ID returns the packet ID.
func (p *SnapshotDone) ID() uint16 { return ZC_SNAPSHOT_DONE }

// Size returns packet size.
func (p *SnapshotDone) Size() int {
	return HeaderSize + 4
}

// Encode encodes the packet.
func (p *SnapshotDone) Encode() []byte {
	buf := newBuffer(p)
	buf.WriteU32LENext([]uint32{p.Count})
	return buf.Bytes()
}

// PeekID returns the packet ID of an encoded packet.
func PeekID(data []byte) (uint16, error) {
	if len(data) < HeaderSize {
		return 0, ErrShortPacket
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

// Decode parses an encoded packet.
func Decode(data []byte) (Packet, error) {
	id, err := PeekID(data)
	if err != nil {
		return nil, err
	}

	r := &reader{Buffer: crunch.NewBuffer(data), size: int64(len(data))}
	r.u16()

	switch id {
	case ZC_NODE_SPAWN:
		p := &NodeSpawn{}
		if err := r.need(4 + 1 + TransformSize); err != nil {
			return nil, fmt.Errorf("node spawn: %w", err)
		}
		p.Handle = r.u32()
		p.Kind = r.u8()
		p.Transform = r.transform()
		if p.Properties, err = r.properties(); err != nil {
			return nil, fmt.Errorf("node spawn: %w", err)
		}
		return p, nil

	case ZC_NODE_TRANSFORM:
		p := &NodeTransform{}
		if err := r.need(4 + TransformSize); err != nil {
			return nil, fmt.Errorf("node transform: %w", err)
		}
		p.Handle = r.u32()
		p.Transform = r.transform()
		return p, nil

	case ZC_NODE_PROPERTIES:
		p := &NodeProperties{}
		if err := r.need(4); err != nil {
			return nil, fmt.Errorf("node properties: %w", err)
		}
		p.Handle = r.u32()
		if p.Properties, err = r.properties(); err != nil {
			return nil, fmt.Errorf("node properties: %w", err)
		}
		return p, nil

	case ZC_NODE_DESTROY:
		if err := r.need(4); err != nil {
			return nil, fmt.Errorf("node destroy: %w", err)
		}
		return &NodeDestroy{Handle: r.u32()}, nil

	case ZC_SNAPSHOT_DONE:
		if err := r.need(4); err != nil {
			return nil, fmt.Errorf("snapshot done: %w", err)
		}
		return &SnapshotDone{Count: r.u32()}, nil
	}

	return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownPacket, id)
}

func newBuffer(p Packet) *crunch.Buffer {
	buf := crunch.NewBuffer()
	buf.Grow(int64(p.Size()))
	buf.WriteU16LENext([]uint16{p.ID()})
	return buf
}

func writeTransform(buf *crunch.Buffer, t math.Transform) {
	buf.WriteF32LENext([]float32{
		t.Position.X, t.Position.Y, t.Position.Z,
		t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W,
		t.Scale.X, t.Scale.Y, t.Scale.Z,
	})
}

// Properties are a uint16 count followed by length-prefixed key/value
// pairs, sorted by key.
func propertiesSize(props map[string]string) int {
	n := 2
	for k, v := range props {
		n += 2 + len(k) + 2 + len(v)
	}
	return n
}

func writeProperties(buf *crunch.Buffer, props map[string]string) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteU16LENext([]uint16{uint16(len(keys))})
	for _, k := range keys {
		writeString(buf, k)
		writeString(buf, props[k])
	}
}

func writeString(buf *crunch.Buffer, s string) {
	buf.WriteU16LENext([]uint16{uint16(len(s))})
	if len(s) > 0 {
		buf.WriteBytesNext([]byte(s))
	}
}

// reader tracks how much of the buffer is left so malformed packets are
// rejected instead of reading past the end.
type reader struct {
	*crunch.Buffer
	off  int64
	size int64
}

func (r *reader) need(n int64) error {
	if r.size-r.off < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortPacket, n, r.off, r.size-r.off)
	}
	return nil
}

func (r *reader) u8() byte {
	r.off++
	return r.ReadByteNext()
}

func (r *reader) u16() uint16 {
	r.off += 2
	return r.ReadU16LENext(1)[0]
}

func (r *reader) u32() uint32 {
	r.off += 4
	return r.ReadU32LENext(1)[0]
}

func (r *reader) transform() math.Transform {
	f := r.ReadF32LENext(10)
	r.off += TransformSize
	return math.Transform{
		Position: math.Vec3{X: f[0], Y: f[1], Z: f[2]},
		Rotation: math.Quat{X: f[3], Y: f[4], Z: f[5], W: f[6]},
		Scale:    math.Vec3{X: f[7], Y: f[8], Z: f[9]},
	}
}

func (r *reader) str() (string, error) {
	if err := r.need(2); err != nil {
		return "", err
	}
	n := int64(r.u16())
	if n == 0 {
		return "", nil
	}
	if err := r.need(n); err != nil {
		return "", err
	}
	r.off += n
	return string(r.ReadBytesNext(n)), nil
}

func (r *reader) properties() (map[string]string, error) {
	if err := r.need(2); err != nil {
		return nil, err
	}
	count := int(r.u16())
	if count == 0 {
		return nil, nil
	}

	props := make(map[string]string, count)
	for i := 0; i < count; i++ {
		k, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("property %d key: %w", i, err)
		}
		v, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("property %d value: %w", i, err)
		}
		props[k] = v
	}
	return props, nil
}
