// Package header encodes and decodes the OpenIGTLink frame header and the
// version 2 body prefix (extended header) and suffix (metadata).
package header

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

const (
	Size           = 58
	TypeNameSize   = 12
	DeviceNameSize = 20

	Version1 uint16 = 1
	Version2 uint16 = 2
)

// Header is the fixed wire header preceding every body.
type Header struct {
	Version    uint16
	TypeName   string
	DeviceName string
	Timestamp  Timestamp
	BodySize   uint64
	CRC        uint64
}

// Encode returns the 58 byte wire form of h. Names longer than their field
// are truncated.
func Encode(h Header) []byte {
	buf := make([]byte, Size)
	EncodeTo(buf, h)
	return buf
}

// EncodeTo writes h into the first Size bytes of b.
func EncodeTo(b []byte, h Header) {
	_ = b[Size-1]
	binary.BigEndian.PutUint16(b[0:2], h.Version)
	wire.PutFixedString(b[2:14], h.TypeName)
	wire.PutFixedString(b[14:34], h.DeviceName)
	binary.BigEndian.PutUint64(b[34:42], uint64(h.Timestamp))
	binary.BigEndian.PutUint64(b[42:50], h.BodySize)
	binary.BigEndian.PutUint64(b[50:58], h.CRC)
}

// Decode parses a 58 byte header. For an unsupported version the decoded
// header is still returned alongside ErrVersion so the caller can skip
// BodySize bytes.
func Decode(b []byte) (Header, error) {
	if len(b) != Size {
		return Header{}, fmt.Errorf("%w: header length %d, want %d", protocol.ErrFormat, len(b), Size)
	}
	h := Header{
		Version:    binary.BigEndian.Uint16(b[0:2]),
		TypeName:   wire.TrimNUL(b[2:14]),
		DeviceName: wire.TrimNUL(b[14:34]),
		Timestamp:  Timestamp(binary.BigEndian.Uint64(b[34:42])),
		BodySize:   binary.BigEndian.Uint64(b[42:50]),
		CRC:        binary.BigEndian.Uint64(b[50:58]),
	}
	if h.Version != Version1 && h.Version != Version2 {
		return h, fmt.Errorf("%w: %d", protocol.ErrVersion, h.Version)
	}
	return h, nil
}

// Timestamp is seconds in the upper 32 bits and a binary fraction of a
// second (units of 2^-32 s) in the lower 32 bits.
type Timestamp uint64

func NewTimestamp(sec, frac uint32) Timestamp {
	return Timestamp(uint64(sec)<<32 | uint64(frac))
}

// TimestampFromTime converts t, truncating to whole units of 2^-32 s.
func TimestampFromTime(t time.Time) Timestamp {
	sec := uint32(t.Unix())
	frac := uint32((uint64(t.Nanosecond()) << 32) / uint64(time.Second))
	return NewTimestamp(sec, frac)
}

func (ts Timestamp) Seconds() uint32 {
	return uint32(ts >> 32)
}

func (ts Timestamp) Fraction() uint32 {
	return uint32(ts)
}

// Nanoseconds converts the fraction field, rounding to the nearest ns.
func (ts Timestamp) Nanoseconds() uint32 {
	return uint32((uint64(ts.Fraction())*uint64(time.Second) + 1<<31) >> 32)
}

func (ts Timestamp) Time() time.Time {
	ns := int64(ts.Nanoseconds())
	return time.Unix(int64(ts.Seconds()), 0).Add(time.Duration(ns))
}
