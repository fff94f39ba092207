package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/message"
	"github.com/danmuck/igtl/internal/protocol/stream"
	"github.com/danmuck/igtl/internal/testutil/testlog"
)

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func TestGenerateWritesReadableCapture(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	n, err := generate(context.Background(), &buf, options{Repeat: 2, Version: header.Version1, Device: "Demo", Clock: fixedClock})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n != 20 {
		t.Fatalf("expected 20 frames, got %d", n)
	}

	r := stream.NewReader(&buf, stream.WithSkipUnknown(false))
	var types []string
	unknown := 0
	for {
		m, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, protocol.ErrUnknownType) {
			unknown++
			continue
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		types = append(types, m.TypeName())
		if m.TypeName() == message.TypePolyData && len(m.Body()) != 300 {
			t.Fatalf("cube body is %d bytes", len(m.Body()))
		}
	}
	if unknown != 2 || len(types) != 18 || types[0] != message.TypePolyData || types[7] != message.TypeVideo {
		t.Fatalf("unexpected sequence: unknown=%d types=%v", unknown, types)
	}
}

func TestGenerateVersion2CarriesMetaData(t *testing.T) {
	var buf bytes.Buffer
	if _, err := generate(context.Background(), &buf, options{Repeat: 1, Version: header.Version2, Device: "Demo", Clock: fixedClock}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	m, err := stream.NewReader(&buf).Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if m.Version() != header.Version2 || m.MessageID() != 1 {
		t.Fatalf("expected v2 with id 1, got v%d id %d", m.Version(), m.MessageID())
	}
	if e, ok := m.MetaData().Get("Generator"); !ok || string(e.Value) != "igtlgen" {
		t.Fatalf("metadata missing: %+v", m.MetaData())
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	if _, err := generate(context.Background(), io.Discard, options{Repeat: 0, Version: 1}); err == nil {
		t.Fatalf("expected error for repeat 0")
	}
	if _, err := generate(context.Background(), io.Discard, options{Repeat: 1, Version: 7}); err == nil {
		t.Fatalf("expected error for version 7")
	}
}
