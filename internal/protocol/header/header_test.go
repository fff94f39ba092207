package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Header{
		Version:    Version1,
		TypeName:   "POLYDATA",
		DeviceName: "DeviceName",
		Timestamp:  NewTimestamp(0, 1234567890),
		BodySize:   300,
		CRC:        0xDEADBEEFCAFEF00D,
	}
	b := Encode(in)
	if len(b) != Size {
		t.Fatalf("expected %d bytes, got %d", Size, len(b))
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("header mismatch: got=%+v want=%+v", out, in)
	}
}

func TestEncodeLayout(t *testing.T) {
	b := Encode(Header{Version: Version2, TypeName: "POLYDATA", DeviceName: "dev", Timestamp: 7, BodySize: 9, CRC: 11})
	if binary.BigEndian.Uint16(b[0:2]) != 2 {
		t.Fatalf("version bytes: %v", b[0:2])
	}
	wantName := append([]byte("POLYDATA"), 0, 0, 0, 0)
	if !bytes.Equal(b[2:14], wantName) {
		t.Fatalf("type name bytes: %v", b[2:14])
	}
	if binary.BigEndian.Uint64(b[34:42]) != 7 || binary.BigEndian.Uint64(b[42:50]) != 9 || binary.BigEndian.Uint64(b[50:58]) != 11 {
		t.Fatalf("numeric fields misplaced: %v", b[34:])
	}
}

func TestDeviceNameTruncatedToTwentyBytes(t *testing.T) {
	long := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := Encode(Header{Version: Version1, TypeName: "STRING", DeviceName: long})
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.DeviceName != long[:DeviceNameSize] {
		t.Fatalf("expected truncated device name, got %q", out.DeviceName)
	}
	if b[14+DeviceNameSize-1] != 'T' || b[14+DeviceNameSize] != 0 {
		t.Fatalf("device name overflowed its field")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	b := Encode(Header{Version: 3, TypeName: "STRING", BodySize: 17})
	h, err := Decode(b)
	if !errors.Is(err, protocol.ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
	if h.BodySize != 17 {
		t.Fatalf("body size should survive version rejection, got %d", h.BodySize)
	}

	b = Encode(Header{Version: 0})
	if _, err := Decode(b); !errors.Is(err, protocol.ErrVersion) {
		t.Fatalf("expected ErrVersion for version 0, got %v", err)
	}
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	if _, err := Decode(make([]byte, Size-1)); !errors.Is(err, protocol.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestTimestampConversion(t *testing.T) {
	ts := NewTimestamp(10, 1<<31)
	if ts.Seconds() != 10 || ts.Fraction() != 1<<31 {
		t.Fatalf("split mismatch: sec=%d frac=%d", ts.Seconds(), ts.Fraction())
	}
	if ts.Nanoseconds() != 500000000 {
		t.Fatalf("expected half second, got %dns", ts.Nanoseconds())
	}

	now := time.Unix(1700000000, 123456789)
	back := TimestampFromTime(now).Time()
	if !back.Equal(now) {
		t.Fatalf("time round trip: got=%v want=%v", back, now)
	}
}

func TestExtendedRoundTrip(t *testing.T) {
	buf := make([]byte, ExtendedSize+10)
	w := wire.NewWriter(buf)
	Extended{HeaderSize: ExtendedSize, MetaDataHeaderSize: 4, MetaDataSize: 6, MessageID: 99}.Encode(w)
	w.Bytes(make([]byte, 10))
	if err := w.Err(); err != nil {
		t.Fatalf("writer: %v", err)
	}
	e, err := DecodeExtended(wire.NewReader(buf))
	if err != nil {
		t.Fatalf("decode extended: %v", err)
	}
	if e.MessageID != 99 || e.MetaDataHeaderSize != 4 || e.MetaDataSize != 6 {
		t.Fatalf("extended mismatch: %+v", e)
	}
}

func TestDecodeExtendedRejectsOversizedMetadata(t *testing.T) {
	buf := make([]byte, ExtendedSize)
	w := wire.NewWriter(buf)
	Extended{HeaderSize: ExtendedSize, MetaDataHeaderSize: 10, MetaDataSize: 100}.Encode(w)
	if _, err := DecodeExtended(wire.NewReader(buf)); !errors.Is(err, protocol.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}

	buf = make([]byte, ExtendedSize)
	w = wire.NewWriter(buf)
	Extended{HeaderSize: 4}.Encode(w)
	if _, err := DecodeExtended(wire.NewReader(buf)); !errors.Is(err, protocol.ErrFormat) {
		t.Fatalf("expected ErrFormat for short extended header, got %v", err)
	}
}
