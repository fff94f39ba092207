package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/igtl/internal/capture"
	"github.com/danmuck/igtl/internal/dump"
)

// DumpConfig drives igtldump.
type DumpConfig struct {
	Input        string
	Format       dump.Format
	Compression  capture.Compression
	Workers      int
	MaxBodyBytes uint64
	SkipUnknown  bool
	StopOnError  bool
	Metrics      bool
}

// igtldump config.toml key mapping.
type dumpFileConfig struct {
	Input        string `toml:"input"`
	Format       string `toml:"format"`
	Compression  string `toml:"compression"`
	Workers      int    `toml:"workers"`
	MaxBodyBytes uint64 `toml:"max_body_bytes"`
	SkipUnknown  bool   `toml:"skip_unknown"`
	StopOnError  bool   `toml:"stop_on_error"`
	Metrics      bool   `toml:"metrics"`
}

func DefaultDumpConfig() DumpConfig {
	return DumpConfig{
		Input:        "-",
		Format:       dump.FormatText,
		Compression:  capture.Auto,
		Workers:      runtime.GOMAXPROCS(0),
		MaxBodyBytes: 64 * 1024 * 1024,
	}
}

// LoadDumpConfig overlays the keys present in path onto the defaults.
func LoadDumpConfig(path string) (DumpConfig, error) {
	cfg := DefaultDumpConfig()

	var raw dumpFileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return DumpConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return DumpConfig{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("input") {
		cfg.Input = strings.TrimSpace(raw.Input)
	}
	if meta.IsDefined("format") {
		f, err := dump.ParseFormat(raw.Format)
		if err != nil {
			return DumpConfig{}, err
		}
		cfg.Format = f
	}
	if meta.IsDefined("compression") {
		c, err := capture.ParseCompression(raw.Compression)
		if err != nil {
			return DumpConfig{}, err
		}
		cfg.Compression = c
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("max_body_bytes") {
		cfg.MaxBodyBytes = raw.MaxBodyBytes
	}
	if meta.IsDefined("skip_unknown") {
		cfg.SkipUnknown = raw.SkipUnknown
	}
	if meta.IsDefined("stop_on_error") {
		cfg.StopOnError = raw.StopOnError
	}
	if meta.IsDefined("metrics") {
		cfg.Metrics = raw.Metrics
	}

	if err := ValidateDumpConfig(cfg); err != nil {
		return DumpConfig{}, err
	}
	return cfg, nil
}

func ValidateDumpConfig(cfg DumpConfig) error {
	if strings.TrimSpace(cfg.Input) == "" {
		return fmt.Errorf("dump config missing input")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("dump config workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.MaxBodyBytes == 0 {
		return fmt.Errorf("dump config max_body_bytes must be positive")
	}
	if _, err := dump.ParseFormat(string(cfg.Format)); err != nil {
		return err
	}
	if _, err := capture.ParseCompression(string(cfg.Compression)); err != nil {
		return err
	}
	return nil
}
