package header

import (
	"fmt"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

// ExtendedSize is the length of the extended header this package writes.
const ExtendedSize = 12

// Extended is the prefix of every version 2 body.
type Extended struct {
	HeaderSize         uint16
	MetaDataHeaderSize uint16
	MetaDataSize       uint32
	MessageID          uint32
}

func (e Extended) Encode(w *wire.Writer) {
	w.Uint16(e.HeaderSize)
	w.Uint16(e.MetaDataHeaderSize)
	w.Uint32(e.MetaDataSize)
	w.Uint32(e.MessageID)
}

// DecodeExtended reads the extended header from the start of a version 2
// body. A peer may declare a larger extended header than ExtendedSize; the
// extra bytes are skipped.
func DecodeExtended(r *wire.Reader) (Extended, error) {
	var e Extended
	var err error
	if err = r.Need(ExtendedSize); err != nil {
		return Extended{}, fmt.Errorf("extended header: %w", err)
	}
	e.HeaderSize, _ = r.Uint16()
	e.MetaDataHeaderSize, _ = r.Uint16()
	e.MetaDataSize, _ = r.Uint32()
	e.MessageID, _ = r.Uint32()
	if e.HeaderSize < ExtendedSize {
		return Extended{}, fmt.Errorf("%w: extended header size %d < %d", protocol.ErrFormat, e.HeaderSize, ExtendedSize)
	}
	if err = r.Skip(uint64(e.HeaderSize - ExtendedSize)); err != nil {
		return Extended{}, fmt.Errorf("extended header: %w", err)
	}
	if err = r.Need(uint64(e.MetaDataHeaderSize) + uint64(e.MetaDataSize)); err != nil {
		return Extended{}, fmt.Errorf("metadata sizes: %w", err)
	}
	return e, nil
}
