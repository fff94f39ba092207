package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/igtl/internal/capture"
	"github.com/danmuck/igtl/internal/dump"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "igtldump.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDumpConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
input = "session.igtl.zst"
format = "msgpack"
workers = 3
skip_unknown = false
`)
	cfg, err := LoadDumpConfig(path)
	require.NoError(t, err)

	def := DefaultDumpConfig()
	require.Equal(t, "session.igtl.zst", cfg.Input)
	require.Equal(t, dump.FormatMsgpack, cfg.Format)
	require.Equal(t, 3, cfg.Workers)
	require.False(t, cfg.SkipUnknown)
	require.Equal(t, def.Compression, cfg.Compression)
	require.Equal(t, def.MaxBodyBytes, cfg.MaxBodyBytes)
}

func TestLoadDumpConfigCompression(t *testing.T) {
	cfg, err := LoadDumpConfig(writeConfig(t, `compression = "lz4"`))
	require.NoError(t, err)
	require.Equal(t, capture.LZ4, cfg.Compression)
}

func TestLoadDumpConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"workers":     `workers = 0`,
		"format":      `format = "xml"`,
		"compression": `compression = "brotli"`,
		"input":       `input = "  "`,
		"unknown key": `colour = true`,
		"syntax":      `workers = `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadDumpConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadDumpConfigMissingFile(t *testing.T) {
	_, err := LoadDumpConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidateDumpConfig(t *testing.T) {
	require.NoError(t, ValidateDumpConfig(DefaultDumpConfig()))
	cfg := DefaultDumpConfig()
	cfg.MaxBodyBytes = 0
	require.Error(t, ValidateDumpConfig(cfg))
}
