package testlog

import (
	"testing"

	"github.com/danmuck/igtl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start configures the global test logger and returns a logger whose
// output lands in t's log, tagged with the test name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("start")
	return For(t, t.Name())
}

// For builds a logger that writes through tl at the global level.
func For(tl zerolog.TestingLog, name string) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(tl)).
		Level(zerolog.GlobalLevel()).
		With().Str("test", name).Logger()
}
