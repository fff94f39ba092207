package testlog

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type recorder struct {
	lines []string
}

func (r *recorder) Log(args ...interface{}) { r.lines = append(r.lines, fmt.Sprint(args...)) }
func (r *recorder) Logf(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}
func (r *recorder) Helper() {}

func TestForWritesTaggedLinesToTestLog(t *testing.T) {
	rec := &recorder{}
	l := For(rec, "TestDecode").Level(zerolog.WarnLevel)
	l.Error().Str("type", "STRING").Msg("frame")
	l.Debug().Msg("hidden")

	if len(rec.lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(rec.lines), rec.lines)
	}
	got := rec.lines[0]
	for _, want := range []string{`"test":"TestDecode"`, `"type":"STRING"`, `"message":"frame"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("line %q missing %s", got, want)
		}
	}
}

func TestStartReturnsUsableLogger(t *testing.T) {
	l := Start(t)
	l.Info().Msg("ok")
}
