// Package stream reads and writes back-to-back OpenIGTLink frames over an
// io.Reader or io.Writer. It is not a transport: connection handling,
// reconnects and timeouts belong to the caller.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/igtl/internal/observability"
	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Limits constrains how much memory a single frame may claim.
type Limits struct {
	MaxBodyBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxBodyBytes: 64 * 1024 * 1024}
}

// Frame is one undecoded wire message.
type Frame struct {
	Header header.Header
	Body   []byte
}

// Bytes returns the frame as it appears on the wire. BodySize is taken
// from Body; the CRC is kept as is.
func (f Frame) Bytes() []byte {
	h := f.Header
	h.BodySize = uint64(len(f.Body))
	buf := make([]byte, header.Size+len(f.Body))
	header.EncodeTo(buf, h)
	copy(buf[header.Size:], f.Body)
	return buf
}

// Decode dispatches and unpacks f through reg.
func (f Frame) Decode(reg *message.Registry) (*message.Message, error) {
	return message.Decode(reg, f.Header, f.Body)
}

type Option func(*Reader)

func WithRegistry(reg *message.Registry) Option {
	return func(r *Reader) { r.reg = reg }
}

func WithLimits(l Limits) Option {
	return func(r *Reader) { r.limits = l }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// WithSkipUnknown controls whether Next silently steps over frames whose
// type is not registered. It defaults to true.
func WithSkipUnknown(skip bool) Option {
	return func(r *Reader) { r.skipUnknown = skip }
}

// Reader yields frames in wire order. After any error for which
// protocol.Recoverable is true the reader is positioned on the next header.
// Other errors leave the stream misaligned.
type Reader struct {
	r           io.Reader
	reg         *message.Registry
	limits      Limits
	skipUnknown bool
	logger      zerolog.Logger
	hdr         [header.Size]byte
}

func NewReader(r io.Reader, opts ...Option) *Reader {
	sr := &Reader{
		r:           r,
		reg:         message.Default(),
		limits:      DefaultLimits(),
		skipUnknown: true,
		logger:      log.With().Str("component", "stream").Logger(),
	}
	for _, opt := range opts {
		opt(sr)
	}
	return sr
}

// readHeader returns io.EOF only when the stream ends on a frame boundary.
// Body limits are left to the caller since unknown bodies are never
// buffered.
// An unsupported version has its body discarded before ErrVersion is
// returned.
func (r *Reader) readHeader() (header.Header, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return header.Header{}, io.EOF
		}
		return header.Header{}, fmt.Errorf("stream: read header: %w", err)
	}
	h, err := header.Decode(r.hdr[:])
	if err != nil {
		if errors.Is(err, protocol.ErrVersion) {
			if serr := r.discard(h.BodySize); serr != nil {
				return h, serr
			}
		}
		return h, err
	}
	return h, nil
}

// checkLimit applies MaxBodyBytes to bodies that are about to be buffered.
func (r *Reader) checkLimit(h header.Header) error {
	if h.BodySize > r.limits.MaxBodyBytes {
		return fmt.Errorf("%w: %s declares %d bytes, limit %d",
			protocol.ErrBodyTooLarge, h.TypeName, h.BodySize, r.limits.MaxBodyBytes)
	}
	return nil
}

func (r *Reader) discard(n uint64) error {
	if n > uint64(maxInt64) {
		return fmt.Errorf("%w: cannot skip %d bytes", protocol.ErrBodyTooLarge, n)
	}
	if _, err := io.CopyN(io.Discard, r.r, int64(n)); err != nil {
		return fmt.Errorf("stream: skip body: %w", unexpectedEOF(err))
	}
	return nil
}

const maxInt64 = int64(^uint64(0) >> 1)

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (r *Reader) fail(err error) error {
	if !errors.Is(err, io.EOF) {
		observability.RecordError(observability.DirectionIn, err)
	}
	return err
}

// NextRaw reads one header and its body without dispatching.
func (r *Reader) NextRaw() (Frame, error) {
	h, err := r.readHeader()
	if err != nil {
		return Frame{Header: h}, r.fail(err)
	}
	if err := r.checkLimit(h); err != nil {
		return Frame{Header: h}, r.fail(err)
	}
	body := make([]byte, h.BodySize)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return Frame{Header: h}, r.fail(fmt.Errorf("stream: read %s body: %w", h.TypeName, unexpectedEOF(err)))
	}
	observability.RecordFrame(observability.DirectionIn, h.TypeName, h.BodySize)
	return Frame{Header: h, Body: body}, nil
}

// Next reads, dispatches and unpacks the next frame. Frames of unknown
// type are streamed past whatever their size and skipped unless WithSkipUnknown(false) was given, in which case
// the wrapped ErrUnknownType is returned after the body was consumed.
// A checksum or content error is also reported only after the body was
// consumed, so the following call starts on the next header.
func (r *Reader) Next() (*message.Message, error) {
	for {
		h, err := r.readHeader()
		if err != nil {
			if errors.Is(err, protocol.ErrVersion) {
				r.logger.Warn().Uint16("version", h.Version).Str("type", h.TypeName).Msg("unsupported version, body skipped")
			}
			return nil, r.fail(err)
		}

		m, err := r.reg.New(h)
		if errors.Is(err, protocol.ErrUnknownType) {
			if serr := r.discard(h.BodySize); serr != nil {
				return nil, r.fail(serr)
			}
			observability.RecordError(observability.DirectionIn, err)
			r.logger.Debug().Str("type", h.TypeName).Str("device", h.DeviceName).
				Uint64("body_size", h.BodySize).Msg("unknown type skipped")
			if r.skipUnknown {
				continue
			}
			return nil, err
		}
		if err != nil {
			return nil, r.fail(err)
		}

		if err := r.checkLimit(h); err != nil {
			return nil, r.fail(err)
		}
		if err := m.AllocateBody(); err != nil {
			return nil, r.fail(err)
		}
		if _, err := io.ReadFull(r.r, m.Body()); err != nil {
			return nil, r.fail(fmt.Errorf("stream: read %s body: %w", h.TypeName, unexpectedEOF(err)))
		}
		if err := m.Unpack(); err != nil {
			r.logger.Warn().Err(err).Str("type", h.TypeName).Str("device", h.DeviceName).Msg("frame rejected")
			return nil, r.fail(err)
		}
		observability.RecordFrame(observability.DirectionIn, h.TypeName, h.BodySize)
		return m, nil
	}
}

// Writer writes packed messages back to back.
type Writer struct {
	w      io.Writer
	limits Limits
}

func NewWriter(w io.Writer, limits Limits) *Writer {
	return &Writer{w: w, limits: limits}
}

// Write packs m unless it is already packed and writes the pack buffer.
func (w *Writer) Write(m *message.Message) error {
	if m.State() != message.StatePacked {
		if err := m.Pack(); err != nil {
			observability.RecordError(observability.DirectionOut, err)
			return err
		}
	}
	return w.write(m.Header(), m.PackBuffer())
}

// WriteFrame writes f verbatim apart from BodySize, which follows Body.
func (w *Writer) WriteFrame(f Frame) error {
	h := f.Header
	h.BodySize = uint64(len(f.Body))
	return w.write(h, f.Bytes())
}

func (w *Writer) write(h header.Header, buf []byte) error {
	if h.BodySize > w.limits.MaxBodyBytes {
		err := fmt.Errorf("%w: %s body of %d bytes, limit %d",
			protocol.ErrBodyTooLarge, h.TypeName, h.BodySize, w.limits.MaxBodyBytes)
		observability.RecordError(observability.DirectionOut, err)
		return err
	}
	if _, err := w.w.Write(buf); err != nil {
		observability.RecordError(observability.DirectionOut, err)
		return fmt.Errorf("stream: write %s: %w", h.TypeName, err)
	}
	observability.RecordFrame(observability.DirectionOut, h.TypeName, h.BodySize)
	return nil
}
