package message

import (
	"fmt"
	"math"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

// String is a text payload tagged with its MIBenum character set. A zero
// Encoding is sent as US-ASCII.
type String struct {
	Encoding uint16
	Value    string
}

func (s *String) TypeName() string { return TypeString }
func (s *String) ContentSize() int { return 4 + len(s.Value) }

func (s *String) PackContent(w *wire.Writer) error {
	if len(s.Value) > math.MaxUint16 {
		return fmt.Errorf("%w: string of %d bytes exceeds %d", protocol.ErrFormat, len(s.Value), math.MaxUint16)
	}
	enc := s.Encoding
	if enc == 0 {
		enc = header.EncodingUSASCII
	}
	w.Uint16(enc)
	w.Uint16(uint16(len(s.Value)))
	w.Bytes([]byte(s.Value))
	return nil
}

func (s *String) UnpackContent(r *wire.Reader) error {
	enc, err := r.Uint16()
	if err != nil {
		return err
	}
	n, err := r.Uint16()
	if err != nil {
		return err
	}
	b, err := r.Bytes(uint64(n))
	if err != nil {
		return err
	}
	if err := r.Done(); err != nil {
		return err
	}
	s.Encoding = enc
	s.Value = string(b)
	return nil
}
