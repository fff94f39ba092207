package dump

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type Format string

const (
	FormatText    Format = "text"
	FormatMsgpack Format = "msgpack"
)

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("dump: unknown format %q", raw)
	}
}

// Writer emits records in call order.
type Writer interface {
	WriteRecord(rec Record) error
}

func NewWriter(w io.Writer, f Format) (Writer, error) {
	switch f {
	case FormatText:
		return &textWriter{w: w}, nil
	case FormatMsgpack:
		return &msgpackWriter{enc: msgpack.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("dump: unknown format %q", f)
	}
}

type textWriter struct {
	w io.Writer
}

func (t *textWriter) WriteRecord(rec Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s v%d device=%q time=%s body=%d",
		rec.Index, rec.Type, rec.Version, rec.Device, rec.Time.Format(time.RFC3339Nano), rec.BodySize)
	if rec.MessageID != 0 {
		fmt.Fprintf(&b, " id=%d", rec.MessageID)
	}
	if len(rec.Meta) > 0 {
		keys := make([]string, 0, len(rec.Meta))
		for k := range rec.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " meta.%s=%q", k, rec.Meta[k])
		}
	}
	if rec.Summary != "" {
		b.WriteString(" ")
		b.WriteString(rec.Summary)
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, " error=%q", rec.Error)
	}
	b.WriteString("\n")
	_, err := io.WriteString(t.w, b.String())
	return err
}

type msgpackWriter struct {
	enc *msgpack.Encoder
}

func (m *msgpackWriter) WriteRecord(rec Record) error {
	return m.enc.Encode(&rec)
}

// ReadRecords decodes a msgpack record stream until EOF.
func ReadRecords(r io.Reader) ([]Record, error) {
	dec := msgpack.NewDecoder(r)
	var out []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("dump: decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}
