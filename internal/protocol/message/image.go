package message

import (
	"fmt"
	"math"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

const (
	imageHeaderSize    = 72
	imageHeaderVersion = 1
)

type ScalarType uint8

const (
	ScalarInt8    ScalarType = 2
	ScalarUint8   ScalarType = 3
	ScalarInt16   ScalarType = 4
	ScalarUint16  ScalarType = 5
	ScalarInt32   ScalarType = 6
	ScalarUint32  ScalarType = 7
	ScalarFloat32 ScalarType = 10
	ScalarFloat64 ScalarType = 11
)

// Size returns the width in bytes, or 0 for an unknown type.
func (s ScalarType) Size() int {
	switch s {
	case ScalarInt8, ScalarUint8:
		return 1
	case ScalarInt16, ScalarUint16:
		return 2
	case ScalarInt32, ScalarUint32, ScalarFloat32:
		return 4
	case ScalarFloat64:
		return 8
	default:
		return 0
	}
}

type Coordinate uint8

const (
	CoordinateRAS Coordinate = 1
	CoordinateLPS Coordinate = 2
)

// Image is a 3D volume or a sub-volume of one. Matrix holds the column
// vectors t, s, n (each scaled by voxel spacing) followed by the origin p:
// tx ty tz sx sy sz nx ny nz px py pz. Data is the raw sub-volume in the
// byte order named by Endian.
type Image struct {
	Components uint8
	ScalarType ScalarType
	Endian     Endian
	Coordinate Coordinate
	Size       [3]uint16
	Matrix     [12]float32
	SubOffset  [3]uint16
	SubSize    [3]uint16
	Data       []byte
}

func (im *Image) TypeName() string { return TypeImage }
func (im *Image) ContentSize() int { return imageHeaderSize + len(im.Data) }

// Spacing is the length of each axis vector.
func (im *Image) Spacing() [3]float32 {
	var out [3]float32
	for i := 0; i < 3; i++ {
		x, y, z := im.Matrix[i*3], im.Matrix[i*3+1], im.Matrix[i*3+2]
		out[i] = float32(math.Sqrt(float64(x*x + y*y + z*z)))
	}
	return out
}

func (im *Image) Origin() [3]float32 {
	return [3]float32{im.Matrix[9], im.Matrix[10], im.Matrix[11]}
}

// SetGeometry fills Matrix from unit axis directions, spacing and origin.
func (im *Image) SetGeometry(axes [3][3]float32, spacing, origin [3]float32) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			im.Matrix[i*3+j] = axes[i][j] * spacing[i]
		}
	}
	copy(im.Matrix[9:], origin[:])
}

func imageDataSize(sub [3]uint16, components uint8, scalar ScalarType) uint64 {
	return uint64(sub[0]) * uint64(sub[1]) * uint64(sub[2]) * uint64(components) * uint64(scalar.Size())
}

func (im *Image) normalized() (Image, error) {
	out := *im
	if out.Components == 0 {
		out.Components = 1
	}
	if out.Endian == 0 {
		out.Endian = EndianBig
	}
	if out.Coordinate == 0 {
		out.Coordinate = CoordinateRAS
	}
	if out.SubSize == [3]uint16{} {
		out.SubSize = out.Size
	}
	if out.ScalarType.Size() == 0 {
		return Image{}, fmt.Errorf("%w: unknown scalar type %d", protocol.ErrFormat, out.ScalarType)
	}
	for i := 0; i < 3; i++ {
		if uint32(out.SubOffset[i])+uint32(out.SubSize[i]) > uint32(out.Size[i]) {
			return Image{}, fmt.Errorf("%w: sub-volume exceeds image on axis %d", protocol.ErrFormat, i)
		}
	}
	return out, nil
}

func (im *Image) PackContent(w *wire.Writer) error {
	n, err := im.normalized()
	if err != nil {
		return err
	}
	if want := imageDataSize(n.SubSize, n.Components, n.ScalarType); uint64(len(n.Data)) != want {
		return fmt.Errorf("%w: image data is %d bytes, geometry requires %d", protocol.ErrSizeMismatch, len(n.Data), want)
	}
	w.Uint16(imageHeaderVersion)
	w.Uint8(n.Components)
	w.Uint8(uint8(n.ScalarType))
	w.Uint8(uint8(n.Endian))
	w.Uint8(uint8(n.Coordinate))
	for _, v := range n.Size {
		w.Uint16(v)
	}
	w.Float32s(n.Matrix[:])
	for _, v := range n.SubOffset {
		w.Uint16(v)
	}
	for _, v := range n.SubSize {
		w.Uint16(v)
	}
	w.Bytes(n.Data)
	return nil
}

func (im *Image) UnpackContent(r *wire.Reader) error {
	if err := r.Need(imageHeaderSize); err != nil {
		return err
	}
	var out Image
	version, _ := r.Uint16()
	if version != imageHeaderVersion {
		return fmt.Errorf("%w: image header version %d", protocol.ErrFormat, version)
	}
	out.Components, _ = r.Uint8()
	scalar, _ := r.Uint8()
	endian, _ := r.Uint8()
	coord, _ := r.Uint8()
	out.ScalarType = ScalarType(scalar)
	out.Endian = Endian(endian)
	out.Coordinate = Coordinate(coord)
	for i := range out.Size {
		out.Size[i], _ = r.Uint16()
	}
	matrix, _ := r.Float32s(12)
	copy(out.Matrix[:], matrix)
	for i := range out.SubOffset {
		out.SubOffset[i], _ = r.Uint16()
	}
	for i := range out.SubSize {
		out.SubSize[i], _ = r.Uint16()
	}
	if out.ScalarType.Size() == 0 {
		return fmt.Errorf("%w: unknown scalar type %d", protocol.ErrFormat, scalar)
	}
	want := imageDataSize(out.SubSize, out.Components, out.ScalarType)
	if uint64(r.Len()) != want {
		return fmt.Errorf("%w: image data is %d bytes, geometry requires %d", protocol.ErrFormat, r.Len(), want)
	}
	out.Data = r.Rest()
	*im = out
	return nil
}
