package message

import (
	"fmt"
	"math"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

// PositionFormat selects how much of the orientation is sent.
type PositionFormat int

const (
	PositionAll         PositionFormat = iota // position + quaternion (28 bytes)
	PositionOnly                              // position (12 bytes)
	PositionQuaternion3                       // position + ox, oy, oz (24 bytes)
)

func (f PositionFormat) size() int {
	switch f {
	case PositionOnly:
		return 12
	case PositionQuaternion3:
		return 24
	default:
		return 28
	}
}

// Position is a tracked location with orientation as a unit quaternion
// (ox, oy, oz, w).
type Position struct {
	Position   [3]float32
	Quaternion [4]float32
	Format     PositionFormat
}

func (p *Position) TypeName() string { return TypePosition }
func (p *Position) ContentSize() int { return p.Format.size() }

func (p *Position) PackContent(w *wire.Writer) error {
	w.Float32s(p.Position[:])
	switch p.Format {
	case PositionOnly:
	case PositionQuaternion3:
		w.Float32s(p.Quaternion[:3])
	default:
		w.Float32s(p.Quaternion[:])
	}
	return nil
}

func (p *Position) UnpackContent(r *wire.Reader) error {
	var out Position
	switch r.Len() {
	case 12:
		out.Format = PositionOnly
		out.Quaternion = [4]float32{0, 0, 0, 1}
	case 24:
		out.Format = PositionQuaternion3
	case 28:
		out.Format = PositionAll
	default:
		return fmt.Errorf("%w: position body of %d bytes", protocol.ErrFormat, r.Len())
	}
	vals, err := r.Float32s(uint64(r.Len() / 4))
	if err != nil {
		return err
	}
	copy(out.Position[:], vals[:3])
	copy(out.Quaternion[:], vals[3:])
	if out.Format == PositionQuaternion3 {
		q := out.Quaternion
		ww := 1 - float64(q[0])*float64(q[0]) - float64(q[1])*float64(q[1]) - float64(q[2])*float64(q[2])
		out.Quaternion[3] = float32(math.Sqrt(math.Max(ww, 0)))
	}
	*p = out
	return nil
}
