package packets

import (
	"encoding/binary"
	"errors"
	stdmath "math"
	"testing"

	"github.com/Faultbox/mapeditor/pkg/math"
)

func testTransform() math.Transform {
	return math.Transform{
		Position: math.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: math.Quat{X: 0, Y: 0.70710677, Z: 0, W: 0.70710677},
		Scale:    math.Vec3{X: 2, Y: 2, Z: 2},
	}
}

func TestNodeDestroyEncode(t *testing.T) {
	pkt := &NodeDestroy{Handle: 0x01020304}

	data := pkt.Encode()

	if len(data) != 6 {
		t.Errorf("expected size 6, got %d", len(data))
	}

	// Check packet ID
	if data[0] != 0x04 || data[1] != 0x0A {
		t.Errorf("expected packet ID 0x0A04, got %02x%02x", data[1], data[0])
	}

	// Check handle (little-endian)
	handle := uint32(data[2]) | uint32(data[3])<<8 | uint32(data[4])<<16 | uint32(data[5])<<24
	if handle != 0x01020304 {
		t.Errorf("expected handle 0x01020304, got %08x", handle)
	}
}

func TestNodeTransformEncode(t *testing.T) {
	pkt := &NodeTransform{Handle: 7, Transform: testTransform()}

	data := pkt.Encode()

	if len(data) != pkt.Size() || len(data) != 46 {
		t.Fatalf("expected size 46, got %d (Size=%d)", len(data), pkt.Size())
	}

	if data[0] != 0x02 || data[1] != 0x0A {
		t.Errorf("expected packet ID 0x0A02, got %02x%02x", data[1], data[0])
	}

	// Position starts after ID and handle
	x := stdmath.Float32frombits(binary.LittleEndian.Uint32(data[6:10]))
	if x != 1 {
		t.Errorf("expected position x=1, got %v", x)
	}

	// Rotation W is the 7th float
	w := stdmath.Float32frombits(binary.LittleEndian.Uint32(data[30:34]))
	if w != 0.70710677 {
		t.Errorf("expected rotation w=0.70710677, got %v", w)
	}
}

func TestNodeSpawnSize(t *testing.T) {
	pkt := &NodeSpawn{
		Handle:    1,
		Kind:      3,
		Transform: testTransform(),
		Properties: map[string]string{
			"color": "red",
			"name":  "CustomPrimitive",
		},
	}

	data := pkt.Encode()

	// id + handle + kind + transform + count + (2+5+2+3) + (2+4+2+15)
	want := 2 + 4 + 1 + 40 + 2 + 12 + 23
	if len(data) != want || pkt.Size() != want {
		t.Errorf("expected size %d, got %d (Size=%d)", want, len(data), pkt.Size())
	}

	// Property count follows the transform
	count := binary.LittleEndian.Uint16(data[47:49])
	if count != 2 {
		t.Errorf("expected 2 properties, got %d", count)
	}

	// Keys are sorted, so "color" comes first
	keyLen := binary.LittleEndian.Uint16(data[49:51])
	if string(data[51:51+keyLen]) != "color" {
		t.Errorf("expected first key 'color', got %q", data[51:51+keyLen])
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"spawn", &NodeSpawn{Handle: 9, Kind: 2, Transform: testTransform(), Properties: map[string]string{"intensity": "1.5", "shadows": "true"}}},
		{"spawn without properties", &NodeSpawn{Handle: 10, Transform: testTransform()}},
		{"transform", &NodeTransform{Handle: 11, Transform: testTransform()}},
		{"properties", &NodeProperties{Handle: 12, Properties: map[string]string{"locked": "true", "empty": ""}}},
		{"destroy", &NodeDestroy{Handle: 13}},
		{"snapshot done", &SnapshotDone{Count: 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.pkt.Encode())
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.ID() != tt.pkt.ID() {
				t.Fatalf("expected ID 0x%04X, got 0x%04X", tt.pkt.ID(), got.ID())
			}

			switch want := tt.pkt.(type) {
			case *NodeSpawn:
				p := got.(*NodeSpawn)
				if p.Handle != want.Handle || p.Kind != want.Kind || p.Transform != want.Transform {
					t.Errorf("expected %+v, got %+v", want, p)
				}
				if len(p.Properties) != len(want.Properties) {
					t.Errorf("expected %d properties, got %d", len(want.Properties), len(p.Properties))
				}
				for k, v := range want.Properties {
					if p.Properties[k] != v {
						t.Errorf("property %s: expected %q, got %q", k, v, p.Properties[k])
					}
				}
			case *NodeProperties:
				p := got.(*NodeProperties)
				if p.Handle != want.Handle {
					t.Errorf("expected handle %d, got %d", want.Handle, p.Handle)
				}
				for k, v := range want.Properties {
					if gotV, ok := p.Properties[k]; !ok || gotV != v {
						t.Errorf("property %s: expected %q, got %q", k, v, gotV)
					}
				}
			case *NodeTransform:
				if *got.(*NodeTransform) != *want {
					t.Errorf("expected %+v, got %+v", want, got)
				}
			case *NodeDestroy:
				if *got.(*NodeDestroy) != *want {
					t.Errorf("expected %+v, got %+v", want, got)
				}
			case *SnapshotDone:
				if *got.(*SnapshotDone) != *want {
					t.Errorf("expected %+v, got %+v", want, got)
				}
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	spawn := (&NodeSpawn{Handle: 1, Transform: testTransform(), Properties: map[string]string{"name": "x"}}).Encode()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"header only", []byte{0x04}, ErrShortPacket},
		{"unknown id", []byte{0xFF, 0xFF, 0, 0, 0, 0}, ErrUnknownPacket},
		{"truncated destroy", []byte{0x04, 0x0A, 1, 0}, ErrShortPacket},
		{"truncated transform", (&NodeTransform{Handle: 1}).Encode()[:20], ErrShortPacket},
		{"truncated properties", spawn[:len(spawn)-1], ErrShortPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPeekID(t *testing.T) {
	id, err := PeekID((&SnapshotDone{}).Encode())
	if err != nil {
		t.Fatalf("PeekID: %v", err)
	}
	if id != ZC_SNAPSHOT_DONE {
		t.Errorf("expected 0x%04X, got 0x%04X", ZC_SNAPSHOT_DONE, id)
	}
}
