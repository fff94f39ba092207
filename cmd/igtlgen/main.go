package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/igtl/internal/capture"
	"github.com/danmuck/igtl/internal/observability"
	"github.com/danmuck/igtl/internal/protocol/crc64"
	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/message"
	"github.com/danmuck/igtl/internal/protocol/stream"
	"github.com/danmuck/igtl/internal/video"
	"github.com/rs/zerolog/log"
)

// options controls the generated capture.
type options struct {
	Repeat  int
	Version uint16
	Device  string
	Clock   func() time.Time
}

func main() {
	observability.InitLogger("igtlgen")

	output := flag.String("output", "demo.igtl", "capture path, - for stdout")
	compression := flag.String("compression", string(capture.Auto), "auto|none|zstd|lz4|snappy (auto follows the file extension)")
	repeat := flag.Int("repeat", 1, "number of times the demo sequence is written")
	version := flag.Uint("version", uint(header.Version1), "header version: 1|2")
	device := flag.String("device", "DeviceName", "device name for generated frames")
	flag.Parse()

	c, err := capture.ParseCompression(*compression)
	if err != nil {
		fmt.Fprintf(os.Stderr, "igtlgen: %v\n", err)
		os.Exit(2)
	}
	opts := options{Repeat: *repeat, Version: uint16(*version), Device: *device, Clock: time.Now}

	var out io.WriteCloser
	if *output == "-" {
		if c == capture.Auto {
			c = capture.None
		}
		out, err = capture.NewWriter(os.Stdout, c)
	} else {
		out, err = capture.Create(*output, c)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "igtlgen: %v\n", err)
		os.Exit(1)
	}

	n, err := generate(context.Background(), out, opts)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "igtlgen: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("output", *output).Int("frames", n).Msg("capture written")
}

// generate writes opts.Repeat copies of the demo sequence and returns the
// number of frames written.
func generate(ctx context.Context, w io.Writer, opts options) (int, error) {
	if opts.Repeat < 1 {
		return 0, fmt.Errorf("repeat must be at least 1, got %d", opts.Repeat)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	sw := stream.NewWriter(w, stream.DefaultLimits())
	frames, err := video.NewFrameSource(nil, video.Config{DeviceName: opts.Device, Width: 4, Height: 4, Clock: opts.Clock})
	if err != nil {
		return 0, err
	}

	written := 0
	var id uint32
	for i := 0; i < opts.Repeat; i++ {
		msgs, err := demoMessages(ctx, opts, frames, i)
		if err != nil {
			return written, err
		}
		for _, m := range msgs {
			if opts.Version == header.Version2 {
				if err := m.SetVersion(header.Version2); err != nil {
					return written, err
				}
				id++
				m.SetMessageID(id)
				m.SetMetaData(header.MetaData{}.SetString("Generator", "igtlgen").SetString("Sequence", fmt.Sprint(i)))
			} else if opts.Version != header.Version1 {
				return written, fmt.Errorf("unsupported header version %d", opts.Version)
			}
			if err := sw.Write(m); err != nil {
				return written, err
			}
			written++
		}
		if err := sw.WriteFrame(vendorFrame(opts, i)); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func demoMessages(ctx context.Context, opts options, frames *video.FrameSource, seq int) ([]*message.Message, error) {
	now := header.TimestampFromTime(opts.Clock())

	cube := message.New(cubePolyData())
	cube.SetDeviceName(opts.Device)
	cube.SetTimestamp(header.NewTimestamp(0, 1234567890))

	tr := message.NewTransform()
	tr.Matrix[0][3] = float32(seq)
	transform := message.New(tr)

	pos := message.New(&message.Position{
		Position:   [3]float32{10, 20, float32(seq)},
		Quaternion: [4]float32{0, 0, 0, 1},
	})
	str := message.New(&message.String{Encoding: header.EncodingUTF8, Value: fmt.Sprintf("frame sequence %d", seq)})
	status := message.New(&message.Status{Code: message.StatusOK, ErrorName: "Ready", Message: "tracking"})
	capability := message.New(message.CapabilityOf(message.Default()))

	img := &message.Image{ScalarType: message.ScalarUint8, Size: [3]uint16{4, 4, 1}, Data: make([]byte, 16)}
	for i := range img.Data {
		img.Data[i] = byte(i * 16)
	}
	img.SetGeometry([3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, [3]float32{1, 1, 1}, [3]float32{})
	image := message.New(img)

	pic := video.Picture{Width: 4, Height: 4, Y: make([]byte, 16), U: make([]byte, 4), V: make([]byte, 4)}
	vid, err := frames.Next(ctx, pic)
	if err != nil {
		return nil, err
	}
	query := message.New(&message.Query{Name: "GET_STATUS"})

	msgs := []*message.Message{cube, transform, pos, str, status, capability, image, vid, query}
	for _, m := range msgs[1:] {
		if m.DeviceName() == "" {
			m.SetDeviceName(opts.Device)
		}
		if m.Timestamp() == 0 {
			m.SetTimestamp(now)
		}
	}
	return msgs, nil
}

// vendorFrame is a type no registry knows, for exercising skip paths.
func vendorFrame(opts options, seq int) stream.Frame {
	body := []byte(fmt.Sprintf("vendor payload %d", seq))
	return stream.Frame{
		Header: header.Header{
			Version:    header.Version1,
			TypeName:   "X_VENDOR",
			DeviceName: opts.Device,
			Timestamp:  header.TimestampFromTime(opts.Clock()),
			CRC:        crc64.Checksum(body),
		},
		Body: body,
	}
}

func cubePolyData() *message.PolyData {
	pd := &message.PolyData{}
	for _, p := range []message.Point{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	} {
		pd.AddPoint(p[0], p[1], p[2])
	}
	pd.Polygons = message.CellArray{
		{0, 1, 2, 3}, {4, 5, 6, 7}, {0, 1, 5, 4},
		{1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7},
	}
	pd.AddAttribute(message.Attribute{
		Type: message.PointScalar,
		Size: 8,
		Name: "attr",
		Data: []float32{0, 1, 2, 3, 4, 5, 6, 7},
	})
	return pd
}
