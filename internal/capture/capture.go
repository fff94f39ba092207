// Package capture reads and writes recorded frame streams. A capture is the
// raw concatenation of packed frames, optionally wrapped in a zstd, lz4 or
// snappy stream.
package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Compression string

const (
	Auto   Compression = "auto"
	None   Compression = "none"
	Zstd   Compression = "zstd"
	LZ4    Compression = "lz4"
	Snappy Compression = "snappy"
)

var (
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic    = []byte{0x04, 0x22, 0x4d, 0x18}
	snappyMagic = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}
)

func ParseCompression(raw string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return Auto, nil
	case Auto, None, Zstd, LZ4, Snappy:
		return c, nil
	case "zst":
		return Zstd, nil
	default:
		return "", fmt.Errorf("capture: unknown compression %q", raw)
	}
}

// CompressionFromPath infers compression from a file extension.
func CompressionFromPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	case ".sz", ".snappy":
		return Snappy
	default:
		return None
	}
}

// Detect peeks at the stream prefix without consuming it.
func Detect(br *bufio.Reader) Compression {
	prefix, _ := br.Peek(len(snappyMagic))
	switch {
	case bytes.HasPrefix(prefix, zstdMagic):
		return Zstd
	case bytes.HasPrefix(prefix, lz4Magic):
		return LZ4
	case bytes.HasPrefix(prefix, snappyMagic):
		return Snappy
	default:
		return None
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w. Close flushes the compressor but does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case None, Auto:
		return nopWriteCloser{w}, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("capture: zstd writer: %w", err)
		}
		return enc, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, fmt.Errorf("capture: unknown compression %q", c)
	}
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r. With Auto the compression is sniffed from the first
// bytes. Close releases decoder resources but does not close r.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	if c == Auto {
		br := bufio.NewReader(r)
		c = Detect(br)
		r = br
	}
	switch c {
	case None:
		return io.NopCloser(r), nil
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("capture: zstd reader: %w", err)
		}
		return zstdReadCloser{dec}, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("capture: unknown compression %q", c)
	}
}

type fileReader struct {
	io.ReadCloser
	f *os.File
}

func (fr fileReader) Close() error {
	err := fr.ReadCloser.Close()
	if cerr := fr.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open opens path ("-" for stdin) for reading through c. With Auto the
// compression is sniffed from content.
func Open(path string, c Compression) (io.ReadCloser, error) {
	if path == "-" {
		return NewReader(os.Stdin, c)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc, err := NewReader(f, c)
	if err != nil {
		f.Close()
		return nil, err
	}
	return fileReader{ReadCloser: rc, f: f}, nil
}

type fileWriter struct {
	io.WriteCloser
	f *os.File
}

func (fw fileWriter) Close() error {
	err := fw.WriteCloser.Close()
	if cerr := fw.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Create creates path and wraps it in c. Auto picks compression from the
// file extension.
func Create(path string, c Compression) (io.WriteCloser, error) {
	if c == Auto {
		c = CompressionFromPath(path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	wc, err := NewWriter(f, c)
	if err != nil {
		f.Close()
		return nil, err
	}
	return fileWriter{WriteCloser: wc, f: f}, nil
}
