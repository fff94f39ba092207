// Package dump turns decoded messages into flat records for display or
// archival.
package dump

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/message"
)

// Record is the summary of one frame. Error is set when the frame could
// not be decoded; the header fields are still filled in that case.
type Record struct {
	Index     int               `msgpack:"index"`
	Type      string            `msgpack:"type"`
	Device    string            `msgpack:"device"`
	Version   uint16            `msgpack:"version"`
	Time      time.Time         `msgpack:"time"`
	BodySize  uint64            `msgpack:"body_size"`
	MessageID uint32            `msgpack:"message_id,omitempty"`
	Meta      map[string]string `msgpack:"meta,omitempty"`
	Summary   string            `msgpack:"summary,omitempty"`
	Error     string            `msgpack:"error,omitempty"`
}

func fromHeader(index int, h header.Header) Record {
	return Record{
		Index:    index,
		Type:     h.TypeName,
		Device:   h.DeviceName,
		Version:  h.Version,
		Time:     h.Timestamp.Time().UTC(),
		BodySize: h.BodySize,
	}
}

// FromMessage summarizes a decoded message.
func FromMessage(index int, m *message.Message) Record {
	rec := fromHeader(index, m.Header())
	rec.MessageID = m.MessageID()
	if md := m.MetaData(); len(md) > 0 {
		rec.Meta = make(map[string]string, len(md))
		for _, e := range md {
			rec.Meta[e.Key] = metaValue(e)
		}
	}
	rec.Summary = Summarize(m.Content())
	return rec
}

// FromError records a frame that failed to decode.
func FromError(index int, h header.Header, err error) Record {
	rec := fromHeader(index, h)
	rec.Error = err.Error()
	return rec
}

func metaValue(e header.MetaEntry) string {
	switch e.Encoding {
	case header.EncodingUSASCII, header.EncodingUTF8:
		return string(e.Value)
	default:
		return "0x" + hex.EncodeToString(e.Value)
	}
}

// Summarize renders the interesting fields of c on one line.
func Summarize(c message.Content) string {
	switch v := c.(type) {
	case *message.PolyData:
		return fmt.Sprintf("points=%d vertices=%d lines=%d polygons=%d strips=%d attributes=%d",
			len(v.Points), len(v.Vertices), len(v.Lines), len(v.Polygons), len(v.TriangleStrips), len(v.Attributes))
	case *message.Transform:
		m := v.Matrix
		return fmt.Sprintf("translation=(%g,%g,%g)", m[0][3], m[1][3], m[2][3])
	case *message.Position:
		q := v.Quaternion
		return fmt.Sprintf("position=(%g,%g,%g) quaternion=(%g,%g,%g,%g)",
			v.Position[0], v.Position[1], v.Position[2], q[0], q[1], q[2], q[3])
	case *message.String:
		return fmt.Sprintf("encoding=%d value=%q", v.Encoding, v.Value)
	case *message.Status:
		return fmt.Sprintf("code=%s subcode=%d name=%q message=%q", v.Code, v.SubCode, v.ErrorName, v.Message)
	case *message.Capability:
		return fmt.Sprintf("types=%v", v.Types)
	case *message.Image:
		return fmt.Sprintf("size=%dx%dx%d scalar=%d components=%d bytes=%d",
			v.Size[0], v.Size[1], v.Size[2], v.ScalarType, v.Components, len(v.Data))
	case *message.Video:
		return fmt.Sprintf("codec=%s size=%dx%d frame_type=%d bytes=%d", v.Codec, v.Width, v.Height, v.FrameType, len(v.Frame))
	case *message.Query:
		return "query"
	default:
		return fmt.Sprintf("content=%T", c)
	}
}
