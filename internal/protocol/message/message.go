// Package message implements the message lifecycle shared by every
// OpenIGTLink kind, the type registry used for dispatch, and the typed
// body codecs.
//
// A Message owns its header, its pack buffer and a Content value. Content
// is the per-kind codec; new kinds are added by registering a Content
// constructor rather than by wrapping Message.
//
// A Message is not safe for concurrent use. Distinct messages share no
// mutable state and may be packed or unpacked in parallel.
package message

import (
	"fmt"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/crc64"
	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

// Content is the type-specific body of a message.
//
// UnpackContent must consume r exactly and must leave the receiver
// unchanged when it returns an error.
type Content interface {
	TypeName() string
	ContentSize() int
	PackContent(w *wire.Writer) error
	UnpackContent(r *wire.Reader) error
}

type State int

const (
	StateEmpty State = iota
	StateHeaderSet
	StateBodyAllocated
	StatePacked
	StateUnpacked
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateHeaderSet:
		return "header_set"
	case StateBodyAllocated:
		return "body_allocated"
	case StatePacked:
		return "packed"
	case StateUnpacked:
		return "unpacked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Message struct {
	header    header.Header
	messageID uint32
	meta      header.MetaData
	content   Content
	buf       []byte
	state     State
}

// New returns a version 1 message carrying c, ready to be packed.
func New(c Content) *Message {
	return &Message{
		header:  header.Header{Version: header.Version1, TypeName: c.TypeName()},
		content: c,
	}
}

func (m *Message) invalidate() {
	if m.state == StatePacked || m.state == StateUnpacked {
		m.state = StateEmpty
	}
}

func (m *Message) SetDeviceName(name string) {
	m.header.DeviceName = name
	m.invalidate()
}

func (m *Message) SetTimestamp(ts header.Timestamp) {
	m.header.Timestamp = ts
	m.invalidate()
}

// SetVersion selects the header version used by the next Pack.
func (m *Message) SetVersion(v uint16) error {
	if v != header.Version1 && v != header.Version2 {
		return fmt.Errorf("%w: %d", protocol.ErrVersion, v)
	}
	m.header.Version = v
	m.invalidate()
	return nil
}

// SetMessageID sets the version 2 extended header message id.
func (m *Message) SetMessageID(id uint32) {
	m.messageID = id
	m.invalidate()
}

// SetMetaData replaces the version 2 metadata section.
func (m *Message) SetMetaData(md header.MetaData) {
	m.meta = md
	m.invalidate()
}

// SetContent swaps the body codec. The header type name follows it.
func (m *Message) SetContent(c Content) {
	m.content = c
	m.header.TypeName = c.TypeName()
	m.invalidate()
}

// SetHeader installs a decoded header on the receive path.
func (m *Message) SetHeader(h header.Header) error {
	if m.content != nil && h.TypeName != m.content.TypeName() {
		return fmt.Errorf("%w: header type %q does not match %q", protocol.ErrFormat, h.TypeName, m.content.TypeName())
	}
	m.header = h
	m.buf = nil
	m.state = StateHeaderSet
	return nil
}

// AllocateBody reserves a pack buffer sized to the header's BodySize.
func (m *Message) AllocateBody() error {
	if m.state == StateEmpty {
		return fmt.Errorf("%w: no header set", protocol.ErrInvalidState)
	}
	if m.header.BodySize > uint64(maxInt-header.Size) {
		return fmt.Errorf("%w: %d", protocol.ErrBodyTooLarge, m.header.BodySize)
	}
	m.buf = make([]byte, header.Size+int(m.header.BodySize))
	header.EncodeTo(m.buf, m.header)
	m.state = StateBodyAllocated
	return nil
}

const maxInt = int(^uint(0) >> 1)

// Pack serializes the whole message into a newly allocated buffer and
// updates BodySize and CRC. On error the previous buffer and header are
// left as they were.
func (m *Message) Pack() error {
	if m.content == nil {
		return fmt.Errorf("%w: no content", protocol.ErrInvalidState)
	}
	h := m.header
	h.TypeName = m.content.TypeName()
	if len(h.DeviceName) > header.DeviceNameSize {
		h.DeviceName = h.DeviceName[:header.DeviceNameSize]
	}
	if len(h.TypeName) > header.TypeNameSize {
		return fmt.Errorf("%w: type name %q longer than %d bytes", protocol.ErrFormat, h.TypeName, header.TypeNameSize)
	}

	v2 := h.Version == header.Version2
	if !v2 && len(m.meta) > 0 {
		return fmt.Errorf("%w: metadata requires version 2", protocol.ErrFormat)
	}
	contentSize := m.content.ContentSize()
	bodySize := contentSize
	if v2 {
		if err := m.meta.Validate(); err != nil {
			return err
		}
		bodySize += header.ExtendedSize + m.meta.HeaderSize() + m.meta.BodySize()
	}

	buf := make([]byte, header.Size+bodySize)
	w := wire.NewWriter(buf[header.Size:])
	if v2 {
		header.Extended{
			HeaderSize:         header.ExtendedSize,
			MetaDataHeaderSize: uint16(m.meta.HeaderSize()),
			MetaDataSize:       uint32(m.meta.BodySize()),
			MessageID:          m.messageID,
		}.Encode(w)
	}
	start := w.Offset()
	if err := m.content.PackContent(w); err != nil {
		return fmt.Errorf("pack %s: %w", h.TypeName, err)
	}
	if n := w.Offset() - start; n != contentSize {
		return fmt.Errorf("%w: %s wrote %d content bytes, declared %d", protocol.ErrSizeMismatch, h.TypeName, n, contentSize)
	}
	if v2 {
		m.meta.Encode(w)
	}
	if err := w.Err(); err != nil {
		return fmt.Errorf("pack %s: %w", h.TypeName, err)
	}

	h.BodySize = uint64(bodySize)
	h.CRC = crc64.Checksum(buf[header.Size:])
	header.EncodeTo(buf, h)

	m.header = h
	m.buf = buf
	m.state = StatePacked
	return nil
}

// Unpack validates the body checksum and then decodes the body. Content and
// metadata are replaced only when every step succeeds.
func (m *Message) Unpack() error {
	switch m.state {
	case StateBodyAllocated, StatePacked, StateUnpacked:
	default:
		return fmt.Errorf("%w: unpack in state %s", protocol.ErrInvalidState, m.state)
	}
	if m.content == nil {
		return fmt.Errorf("%w: no content", protocol.ErrInvalidState)
	}
	body := m.Body()
	if uint64(len(body)) != m.header.BodySize {
		return fmt.Errorf("%w: body is %d bytes, header declares %d", protocol.ErrFormat, len(body), m.header.BodySize)
	}
	if sum := crc64.Checksum(body); sum != m.header.CRC {
		return fmt.Errorf("%w: %s computed %#016x, header %#016x", protocol.ErrChecksum, m.header.TypeName, sum, m.header.CRC)
	}

	r := wire.NewReader(body)
	var (
		messageID uint32
		meta      header.MetaData
	)
	if m.header.Version == header.Version2 {
		ext, err := header.DecodeExtended(r)
		if err != nil {
			return err
		}
		metaLen := int(ext.MetaDataHeaderSize) + int(ext.MetaDataSize)
		content, err := r.Sub(uint64(r.Len() - metaLen))
		if err != nil {
			return err
		}
		metaHdr, err := r.Bytes(uint64(ext.MetaDataHeaderSize))
		if err != nil {
			return err
		}
		metaBody, err := r.Bytes(uint64(ext.MetaDataSize))
		if err != nil {
			return err
		}
		if meta, err = header.DecodeMetaData(metaHdr, metaBody); err != nil {
			return err
		}
		messageID = ext.MessageID
		r = content
	}
	if err := m.content.UnpackContent(r); err != nil {
		return fmt.Errorf("unpack %s: %w", m.header.TypeName, err)
	}
	m.messageID = messageID
	m.meta = meta
	m.state = StateUnpacked
	return nil
}

// Reset drops the pack buffer and returns the message to StateEmpty.
func (m *Message) Reset() {
	m.buf = nil
	m.state = StateEmpty
}

func (m *Message) Header() header.Header       { return m.header }
func (m *Message) TypeName() string            { return m.header.TypeName }
func (m *Message) DeviceName() string          { return m.header.DeviceName }
func (m *Message) Timestamp() header.Timestamp { return m.header.Timestamp }
func (m *Message) Version() uint16             { return m.header.Version }
func (m *Message) MessageID() uint32           { return m.messageID }
func (m *Message) MetaData() header.MetaData   { return m.meta }
func (m *Message) Content() Content            { return m.content }
func (m *Message) State() State                { return m.state }

// PackBuffer returns header and body bytes. The slice is owned by the
// message and is replaced, not modified, by the next Pack.
func (m *Message) PackBuffer() []byte {
	return m.buf
}

// Body returns the body part of the pack buffer.
func (m *Message) Body() []byte {
	if len(m.buf) < header.Size {
		return nil
	}
	return m.buf[header.Size:]
}

// BodyPackSize is the body length the next Pack will produce.
func (m *Message) BodyPackSize() int {
	if m.content == nil {
		return 0
	}
	n := m.content.ContentSize()
	if m.header.Version == header.Version2 {
		n += header.ExtendedSize + m.meta.HeaderSize() + m.meta.BodySize()
	}
	return n
}

// As returns the content of m as T.
func As[T Content](m *Message) (T, bool) {
	c, ok := m.content.(T)
	return c, ok
}

// Decode dispatches h through reg, copies body into a fresh message and
// unpacks it.
func Decode(reg *Registry, h header.Header, body []byte) (*Message, error) {
	m, err := reg.New(h)
	if err != nil {
		return nil, err
	}
	if uint64(len(body)) != h.BodySize {
		return nil, fmt.Errorf("%w: body is %d bytes, header declares %d", protocol.ErrFormat, len(body), h.BodySize)
	}
	if err := m.AllocateBody(); err != nil {
		return nil, err
	}
	copy(m.Body(), body)
	if err := m.Unpack(); err != nil {
		return nil, err
	}
	return m, nil
}
