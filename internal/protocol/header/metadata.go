package header

import (
	"fmt"
	"math"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

// The metadata section has no checksum of its own. It sits at the tail of
// a version 2 body, so the body CRC in the fixed header covers it.

// Value encodings are IANA MIBenum character set numbers.
const (
	EncodingUSASCII uint16 = 3
	EncodingUTF8    uint16 = 106
)

const metaEntryHeaderSize = 8

// MetaEntry is one key/value pair of the version 2 metadata section.
type MetaEntry struct {
	Key      string
	Encoding uint16
	Value    []byte
}

// MetaData keeps entries in wire order.
type MetaData []MetaEntry

// Get returns the first entry named key.
func (md MetaData) Get(key string) (MetaEntry, bool) {
	for _, e := range md {
		if e.Key == key {
			return e, true
		}
	}
	return MetaEntry{}, false
}

// Set replaces the value of key or appends a new entry.
func (md MetaData) Set(key string, encoding uint16, value []byte) MetaData {
	v := append([]byte(nil), value...)
	for i := range md {
		if md[i].Key == key {
			md[i].Encoding = encoding
			md[i].Value = v
			return md
		}
	}
	return append(md, MetaEntry{Key: key, Encoding: encoding, Value: v})
}

// SetString stores value as UTF-8.
func (md MetaData) SetString(key, value string) MetaData {
	return md.Set(key, EncodingUTF8, []byte(value))
}

// HeaderSize is zero for empty metadata, else the entry table size.
func (md MetaData) HeaderSize() int {
	if len(md) == 0 {
		return 0
	}
	return 2 + metaEntryHeaderSize*len(md)
}

// BodySize is the total size of keys and values.
func (md MetaData) BodySize() int {
	n := 0
	for _, e := range md {
		n += len(e.Key) + len(e.Value)
	}
	return n
}

func (md MetaData) Validate() error {
	if len(md) > math.MaxUint16 {
		return fmt.Errorf("%w: %d metadata entries", protocol.ErrFormat, len(md))
	}
	total := uint64(0)
	for i, e := range md {
		if len(e.Key) == 0 || len(e.Key) > math.MaxUint16 {
			return fmt.Errorf("%w: metadata[%d] key length %d", protocol.ErrFormat, i, len(e.Key))
		}
		if uint64(len(e.Value)) > math.MaxUint32 {
			return fmt.Errorf("%w: metadata[%d] value length %d", protocol.ErrFormat, i, len(e.Value))
		}
		total += uint64(len(e.Key) + len(e.Value))
	}
	if total > math.MaxUint32 {
		return fmt.Errorf("%w: metadata size %d", protocol.ErrFormat, total)
	}
	return nil
}

// Encode writes the entry table followed by the keys and values.
func (md MetaData) Encode(w *wire.Writer) {
	if len(md) == 0 {
		return
	}
	w.Uint16(uint16(len(md)))
	for _, e := range md {
		w.Uint16(uint16(len(e.Key)))
		w.Uint16(e.Encoding)
		w.Uint32(uint32(len(e.Value)))
	}
	for _, e := range md {
		w.Bytes([]byte(e.Key))
		w.Bytes(e.Value)
	}
}

// DecodeMetaData parses the entry table hdr and the key/value bytes body.
// Both slices must be consumed exactly.
func DecodeMetaData(hdr, body []byte) (MetaData, error) {
	if len(hdr) == 0 {
		if len(body) != 0 {
			return nil, fmt.Errorf("%w: %d metadata bytes without entry table", protocol.ErrFormat, len(body))
		}
		return nil, nil
	}
	hr := wire.NewReader(hdr)
	count, err := hr.Uint16()
	if err != nil {
		return nil, fmt.Errorf("metadata count: %w", err)
	}
	if err := hr.NeedN(uint64(count), metaEntryHeaderSize); err != nil {
		return nil, fmt.Errorf("metadata table: %w", err)
	}
	type sizes struct {
		key      uint16
		encoding uint16
		value    uint32
	}
	table := make([]sizes, count)
	for i := range table {
		table[i].key, _ = hr.Uint16()
		table[i].encoding, _ = hr.Uint16()
		table[i].value, _ = hr.Uint32()
	}
	if err := hr.Done(); err != nil {
		return nil, fmt.Errorf("metadata table: %w", err)
	}

	br := wire.NewReader(body)
	md := make(MetaData, 0, count)
	for i, s := range table {
		key, err := br.Bytes(uint64(s.key))
		if err != nil {
			return nil, fmt.Errorf("metadata[%d] key: %w", i, err)
		}
		value, err := br.Bytes(uint64(s.value))
		if err != nil {
			return nil, fmt.Errorf("metadata[%d] value: %w", i, err)
		}
		md = append(md, MetaEntry{Key: string(key), Encoding: s.encoding, Value: value})
	}
	if err := br.Done(); err != nil {
		return nil, fmt.Errorf("metadata body: %w", err)
	}
	return md, nil
}
