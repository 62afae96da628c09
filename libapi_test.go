package ddsctx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"

	"github.com/drblury/ddsctx/descriptor"
)

func TestOpenRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	reg, err := Open(context.Background(), &cfg, NewNopServiceLogger())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}()

	if err := reg.Sample(0, descriptor.Int32Size, descriptor.Int32{}); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if _, err := reg.Topic(0, descriptor.Int32{}, "topic_demo", ""); err != nil {
		t.Fatalf("topic: %v", err)
	}
	if _, err := reg.Writer(0, "topic_demo", ""); err != nil {
		t.Fatalf("writer: %v", err)
	}
	if _, err := reg.Reader(0, "topic_demo", ""); err != nil {
		t.Fatalf("reader: %v", err)
	}
	if err := reg.Send(0, "topic_demo", int32(7)); err != nil {
		t.Fatalf("send: %v", err)
	}

	n, err := reg.Take(0, "topic_demo", 0)
	if err != nil || n != 1 {
		t.Fatalf("expected one sample, got %d (%v)", n, err)
	}
	data, err := reg.Data(0)
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if got := *data.(*int32); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestOpenRequiresConfigAndLogger(t *testing.T) {
	if _, err := Open(context.Background(), nil, NewNopServiceLogger()); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}
	cfg := DefaultConfig()
	if _, err := Open(context.Background(), &cfg, nil); !errors.Is(err, ErrLoggerRequired) {
		t.Fatalf("expected logger required error, got %v", err)
	}
}

func TestNewRequiresRuntime(t *testing.T) {
	if _, err := New(nil, NewNopServiceLogger(), Dependencies{}); !errors.Is(err, ErrRuntimeRequired) {
		t.Fatalf("expected runtime required error, got %v", err)
	}
}

func TestEventCodeExports(t *testing.T) {
	cases := map[EventCode]uint8{
		TopicOnInconsistentTopic:         0x00,
		ReaderOnDataAvailable:            0x10,
		ReaderOnRequestedIncompatibleQoS: 0x16,
		WriterOnPublicationMatched:       0x20,
		WriterOnOfferedIncompatibleQoS:   0x23,
	}
	for code, want := range cases {
		if uint8(code) != want {
			t.Fatalf("%s: expected 0x%02x, got 0x%02x", code, want, uint8(code))
		}
	}
}

func TestLoggerExports(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologServiceLogger(zerolog.New(&buf), slog.LevelInfo)
	logger.Info("boot", LogFields{"component": "test"})
	if !bytes.Contains(buf.Bytes(), []byte("boot")) {
		t.Fatalf("expected zerolog output, got %q", buf.String())
	}

	NewSlogServiceLogger(slog.New(slog.NewTextHandler(&buf, nil))).Debug("ignored", nil)
}
