package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/danmuck/igtl/internal/capture"
	"github.com/danmuck/igtl/internal/config"
	"github.com/danmuck/igtl/internal/dump"
	"github.com/danmuck/igtl/internal/observability"
	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/message"
	"github.com/danmuck/igtl/internal/protocol/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type summary struct {
	Frames  int
	Errors  int
	Skipped int
}

type result struct {
	rec  dump.Record
	skip bool
}

func main() {
	observability.InitLogger("igtldump")

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "igtldump: %v\n", err)
		os.Exit(2)
	}

	in, err := capture.Open(cfg.Input, cfg.Compression)
	if err != nil {
		fmt.Fprintf(os.Stderr, "igtldump: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := run(ctx, cfg, in, os.Stdout)
	log.Info().Int("frames", sum.Frames).Int("errors", sum.Errors).Int("skipped", sum.Skipped).Msg("dump finished")
	if cfg.Metrics {
		if merr := writeMetrics(os.Stderr); merr != nil {
			log.Warn().Err(merr).Msg("metrics export failed")
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "igtldump: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies the optional TOML file first and then any flag the
// user set explicitly.
func loadConfig(args []string) (config.DumpConfig, error) {
	fs := flag.NewFlagSet("igtldump", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to igtldump TOML config")
	input := fs.String("input", "-", "capture file, - for stdin")
	format := fs.String("format", string(dump.FormatText), "output format: text|msgpack")
	compression := fs.String("compression", string(capture.Auto), "input compression: auto|none|zstd|lz4|snappy")
	workers := fs.Int("workers", 0, "concurrent decoders")
	maxBody := fs.Uint64("max-body", 0, "largest accepted body in bytes")
	skipUnknown := fs.Bool("skip-unknown", false, "omit frames of unregistered type")
	stopOnError := fs.Bool("stop-on-error", false, "stop at the first frame that fails to decode")
	metrics := fs.Bool("metrics", false, "print stream metrics to stderr on exit")
	if err := fs.Parse(args); err != nil {
		return config.DumpConfig{}, err
	}
	if fs.NArg() > 0 {
		*input = fs.Arg(0)
	}

	cfg := config.DefaultDumpConfig()
	if *configPath != "" {
		loaded, err := config.LoadDumpConfig(*configPath)
		if err != nil {
			return config.DumpConfig{}, err
		}
		cfg = loaded
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	set := func(name string) bool { return explicit[name] }

	var ferr error
	if set("input") || fs.NArg() > 0 {
		cfg.Input = strings.TrimSpace(*input)
	}
	if set("format") {
		cfg.Format, ferr = dump.ParseFormat(*format)
		if ferr != nil {
			return config.DumpConfig{}, ferr
		}
	}
	if set("compression") {
		cfg.Compression, ferr = capture.ParseCompression(*compression)
		if ferr != nil {
			return config.DumpConfig{}, ferr
		}
	}
	if set("workers") {
		cfg.Workers = *workers
	}
	if set("max-body") {
		cfg.MaxBodyBytes = *maxBody
	}
	if set("skip-unknown") {
		cfg.SkipUnknown = *skipUnknown
	}
	if set("stop-on-error") {
		cfg.StopOnError = *stopOnError
	}
	if set("metrics") {
		cfg.Metrics = *metrics
	}
	if err := config.ValidateDumpConfig(cfg); err != nil {
		return config.DumpConfig{}, err
	}
	return cfg, nil
}

// run reads already decompressed frames in order, decodes up to cfg.Workers of them at once and
// writes records in wire order.
func run(ctx context.Context, cfg config.DumpConfig, in io.Reader, out io.Writer) (summary, error) {
	var sum summary
	w, err := dump.NewWriter(out, cfg.Format)
	if err != nil {
		return sum, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := message.Default()
	sr := stream.NewReader(in, stream.WithRegistry(reg), stream.WithLimits(stream.Limits{MaxBodyBytes: cfg.MaxBodyBytes}))
	sem := semaphore.NewWeighted(int64(cfg.Workers))
	slots := make(chan chan result, cfg.Workers)
	readErr := make(chan error, 1)

	go func() {
		defer close(slots)
		for index := 0; ; index++ {
			f, ferr := sr.NextRaw()
			if errors.Is(ferr, io.EOF) {
				readErr <- nil
				return
			}
			if ferr != nil && !protocol.Recoverable(ferr) {
				readErr <- fmt.Errorf("frame %d: %w", index, ferr)
				return
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				readErr <- nil
				return
			}
			slot := make(chan result, 1)
			select {
			case slots <- slot:
			case <-ctx.Done():
				sem.Release(1)
				readErr <- nil
				return
			}
			go func(index int, f stream.Frame, ferr error) {
				defer sem.Release(1)
				slot <- decodeFrame(reg, index, f, ferr, cfg.SkipUnknown)
			}(index, f, ferr)
		}
	}()

	for slot := range slots {
		res := <-slot
		if res.skip {
			sum.Skipped++
			continue
		}
		sum.Frames++
		if res.rec.Error != "" {
			sum.Errors++
		}
		if err := w.WriteRecord(res.rec); err != nil {
			return sum, fmt.Errorf("write record %d: %w", res.rec.Index, err)
		}
		if cfg.StopOnError && res.rec.Error != "" {
			return sum, fmt.Errorf("frame %d: %s", res.rec.Index, res.rec.Error)
		}
	}
	if err := <-readErr; err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}

func decodeFrame(reg *message.Registry, index int, f stream.Frame, readErr error, skipUnknown bool) result {
	if readErr != nil {
		return result{rec: dump.FromError(index, f.Header, readErr)}
	}
	m, err := f.Decode(reg)
	if err != nil {
		if skipUnknown && errors.Is(err, protocol.ErrUnknownType) {
			return result{skip: true}
		}
		log.Debug().Err(err).Int("index", index).Str("type", f.Header.TypeName).Msg("frame not decoded")
		return result{rec: dump.FromError(index, f.Header, err)}
	}
	return result{rec: dump.FromMessage(index, m)}
}

func writeMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "igtl_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
