package message

import (
	"fmt"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

const (
	videoHeaderSize    = 21
	videoHeaderVersion = 1
	VideoCodecNameSize = 4
)

// VideoFrameType follows the encoder's frame classification.
type VideoFrameType uint16

const (
	FrameInvalid VideoFrameType = iota
	FrameIDR
	FrameI
	FrameP
	FrameSkip
	FrameIPMixed
)

// Video frames an opaque encoded picture. Nothing here encodes or decodes
// pixels; Frame is whatever the external encoder produced.
type Video struct {
	Endian      Endian
	Codec       string
	Width       uint32
	Height      uint32
	AdditionalZ uint32
	FrameType   VideoFrameType
	Frame       []byte
}

func (v *Video) TypeName() string { return TypeVideo }
func (v *Video) ContentSize() int { return videoHeaderSize + len(v.Frame) }

func (v *Video) PackContent(w *wire.Writer) error {
	if len(v.Codec) > VideoCodecNameSize {
		return fmt.Errorf("%w: codec name %q longer than %d bytes", protocol.ErrFormat, v.Codec, VideoCodecNameSize)
	}
	endian := v.Endian
	if endian == 0 {
		endian = EndianBig
	}
	w.Uint16(videoHeaderVersion)
	w.Uint8(uint8(endian))
	w.FixedString(v.Codec, VideoCodecNameSize)
	w.Uint32(v.Width)
	w.Uint32(v.Height)
	w.Uint32(v.AdditionalZ)
	w.Uint16(uint16(v.FrameType))
	w.Bytes(v.Frame)
	return nil
}

func (v *Video) UnpackContent(r *wire.Reader) error {
	if err := r.Need(videoHeaderSize); err != nil {
		return err
	}
	var out Video
	version, _ := r.Uint16()
	if version != videoHeaderVersion {
		return fmt.Errorf("%w: video header version %d", protocol.ErrFormat, version)
	}
	endian, _ := r.Uint8()
	out.Endian = Endian(endian)
	out.Codec, _ = r.FixedString(VideoCodecNameSize)
	out.Width, _ = r.Uint32()
	out.Height, _ = r.Uint32()
	out.AdditionalZ, _ = r.Uint32()
	ft, _ := r.Uint16()
	out.FrameType = VideoFrameType(ft)
	out.Frame = r.Rest()
	*v = out
	return nil
}
