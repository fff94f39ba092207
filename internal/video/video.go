// Package video turns raw pictures into VIDEO messages. Compression is
// delegated to an Encoder supplied by the caller; this package only frames
// whatever bytes the encoder returns.
package video

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/message"
	"github.com/rs/zerolog/log"
)

// Picture is a planar YUV 4:2:0 frame: a full-resolution Y plane followed
// by U and V planes subsampled by two in both directions.
type Picture struct {
	Width  uint32
	Height uint32
	Y      []byte
	U      []byte
	V      []byte
}

func chromaSize(w, h uint32) uint64 {
	return uint64((w+1)/2) * uint64((h+1)/2)
}

// Validate checks plane sizes against the dimensions. Gray pictures may
// leave U and V empty.
func (p Picture) Validate() error {
	if p.Width == 0 || p.Height == 0 {
		return fmt.Errorf("%w: picture is %dx%d", protocol.ErrFormat, p.Width, p.Height)
	}
	if uint64(len(p.Y)) != uint64(p.Width)*uint64(p.Height) {
		return fmt.Errorf("%w: Y plane is %d bytes for %dx%d", protocol.ErrSizeMismatch, len(p.Y), p.Width, p.Height)
	}
	if p.Gray() {
		return nil
	}
	c := chromaSize(p.Width, p.Height)
	if uint64(len(p.U)) != c || uint64(len(p.V)) != c {
		return fmt.Errorf("%w: chroma planes are %d/%d bytes, want %d", protocol.ErrSizeMismatch, len(p.U), len(p.V), c)
	}
	return nil
}

// Gray reports whether the picture carries luma only.
func (p Picture) Gray() bool {
	return len(p.U) == 0 && len(p.V) == 0
}

// Frame is one encoded picture.
type Frame struct {
	Type message.VideoFrameType
	Data []byte
}

// Encoder is an external compression engine such as an H.264 or VP9
// library binding.
type Encoder interface {
	// Codec is the four character codec name carried in VIDEO messages.
	Codec() string
	Encode(ctx context.Context, pic Picture) (Frame, error)
}

// PassthroughEncoder emits the raw I420 planes. Gray pictures get neutral
// chroma so the output is always a full I420 frame.
type PassthroughEncoder struct{}

const CodecI420 = "I420"

func (PassthroughEncoder) Codec() string { return CodecI420 }

func (PassthroughEncoder) Encode(ctx context.Context, pic Picture) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if err := pic.Validate(); err != nil {
		return Frame{}, err
	}
	c := chromaSize(pic.Width, pic.Height)
	out := make([]byte, 0, uint64(len(pic.Y))+2*c)
	out = append(out, pic.Y...)
	if pic.Gray() {
		for i := uint64(0); i < 2*c; i++ {
			out = append(out, 0x80)
		}
	} else {
		out = append(out, pic.U...)
		out = append(out, pic.V...)
	}
	return Frame{Type: message.FrameIDR, Data: out}, nil
}

// Config fixes the stream parameters of a FrameSource.
type Config struct {
	DeviceName     string
	Width          uint32
	Height         uint32
	UseCompression bool
	// Clock stamps messages; nil means time.Now.
	Clock func() time.Time
}

// FrameSource encodes successive pictures into VIDEO messages. It is not
// safe for concurrent use.
type FrameSource struct {
	cfg         Config
	encoder     Encoder
	passthrough PassthroughEncoder
	lastType    message.VideoFrameType
}

// NewFrameSource returns a source using enc when cfg.UseCompression is set
// and raw I420 otherwise. enc may be nil when compression is off.
func NewFrameSource(enc Encoder, cfg Config) (*FrameSource, error) {
	if cfg.UseCompression && enc == nil {
		return nil, fmt.Errorf("video: compression requested without an encoder")
	}
	if enc != nil && len(enc.Codec()) > message.VideoCodecNameSize {
		return nil, fmt.Errorf("%w: codec name %q", protocol.ErrFormat, enc.Codec())
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &FrameSource{cfg: cfg, encoder: enc}, nil
}

func (s *FrameSource) active() Encoder {
	if s.cfg.UseCompression {
		return s.encoder
	}
	return s.passthrough
}

// Codec is the codec name the next message will carry.
func (s *FrameSource) Codec() string {
	return s.active().Codec()
}

// LastFrameType is the type of the most recently encoded frame.
func (s *FrameSource) LastFrameType() message.VideoFrameType {
	return s.lastType
}

// EncodeIntoMessage encodes pic and installs the result as m's content,
// device name and timestamp. m is left untouched on error.
func (s *FrameSource) EncodeIntoMessage(ctx context.Context, pic Picture, m *message.Message) error {
	if pic.Width != s.cfg.Width || pic.Height != s.cfg.Height {
		return fmt.Errorf("%w: picture %dx%d, source configured for %dx%d",
			protocol.ErrSizeMismatch, pic.Width, pic.Height, s.cfg.Width, s.cfg.Height)
	}
	enc := s.active()
	frame, err := enc.Encode(ctx, pic)
	if err != nil {
		return fmt.Errorf("video: encode with %s: %w", enc.Codec(), err)
	}
	m.SetContent(&message.Video{
		Endian:    message.EndianBig,
		Codec:     enc.Codec(),
		Width:     pic.Width,
		Height:    pic.Height,
		FrameType: frame.Type,
		Frame:     frame.Data,
	})
	m.SetDeviceName(s.cfg.DeviceName)
	m.SetTimestamp(header.TimestampFromTime(s.cfg.Clock()))
	s.lastType = frame.Type
	log.Debug().Str("component", "video").Str("codec", enc.Codec()).
		Uint16("frame_type", uint16(frame.Type)).Int("bytes", len(frame.Data)).Msg("frame encoded")
	return nil
}

// Next encodes pic into a new message.
func (s *FrameSource) Next(ctx context.Context, pic Picture) (*message.Message, error) {
	m := message.New(&message.Video{})
	if err := s.EncodeIntoMessage(ctx, pic, m); err != nil {
		return nil, err
	}
	return m, nil
}
