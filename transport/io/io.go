// Package io provides a file-backed transport: every message is appended to
// one JSON-lines file, and subscribers tail that file. Several processes can
// share a file to exchange samples without a broker.
package io

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/ddsctx/internal/runtime/jsoncodec"
	"github.com/drblury/ddsctx/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "io"

// DefaultFilePath is used when the config names no file.
const DefaultFilePath = "ddsctx.log"

// PollInterval is how long a subscriber waits at end of file before
// looking for new records.
var PollInterval = 20 * time.Millisecond

func init() {
	Register()
}

// Register registers the I/O transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.IOCapabilities)
}

// Build creates a bus over cfg.GetIOFile().
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Bus, error) {
	path := cfg.GetIOFile()
	if path == "" {
		path = DefaultFilePath
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return transport.Bus{
		Publisher:  &Publisher{path: path},
		Subscriber: &Subscriber{path: path, logger: logger, closed: make(chan struct{})},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.IOCapabilities
}

// record is one line of the file.
type record struct {
	UUID     string            `json:"uuid"`
	Topic    string            `json:"topic"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// Publisher appends messages to the file.
type Publisher struct {
	path string
	mu   sync.Mutex
}

// Publish appends one line per message. A batch is written with a single
// write call so concurrent readers never see half of it.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	var buf bytes.Buffer
	for _, msg := range messages {
		line, err := jsoncodec.Marshal(record{
			UUID:     msg.UUID,
			Topic:    topic,
			Metadata: msg.Metadata,
			Payload:  msg.Payload,
		})
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (p *Publisher) Close() error { return nil }

// Subscriber tails the file for records of one topic.
type Subscriber struct {
	path   string
	logger watermill.LoggerAdapter

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// Subscribe delivers records appended after the call returns. The file is
// opened and positioned before returning so no later publish is missed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	f, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, err
	}

	out := make(chan *message.Message)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer f.Close()
		s.tail(ctx, f, topic, out)
	}()
	return out, nil
}

func (s *Subscriber) tail(ctx context.Context, f *os.File, topic string, out chan<- *message.Message) {
	reader := bufio.NewReader(f)
	var partial []byte

	for {
		line, err := reader.ReadBytes('\n')
		partial = append(partial, line...)
		if errors.Is(err, io.EOF) {
			// keep the partial line and wait for the writer to finish it
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case <-time.After(PollInterval):
			}
			continue
		}
		if err != nil {
			s.logger.Error("Failed to read transport file", err, watermill.LogFields{"file": s.path})
			return
		}

		msg, ok := s.decode(partial, topic)
		partial = partial[:0]
		if !ok {
			continue
		}
		if !s.deliver(ctx, out, msg) {
			return
		}
	}
}

func (s *Subscriber) decode(line []byte, topic string) (*message.Message, bool) {
	var rec record
	if err := jsoncodec.Unmarshal(bytes.TrimSpace(line), &rec); err != nil {
		s.logger.Error("Failed to decode transport record", err, watermill.LogFields{"file": s.path})
		return nil, false
	}
	if rec.Topic != topic {
		return nil, false
	}
	msg := message.NewMessage(rec.UUID, rec.Payload)
	for k, v := range rec.Metadata {
		msg.Metadata.Set(k, v)
	}
	return msg, true
}

func (s *Subscriber) deliver(ctx context.Context, out chan<- *message.Message, msg *message.Message) bool {
	select {
	case out <- msg:
	case <-ctx.Done():
		return false
	case <-s.closed:
		return false
	}
	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		s.logger.Debug("Record nacked", watermill.LogFields{"uuid": msg.UUID})
	case <-ctx.Done():
		return false
	case <-s.closed:
		return false
	}
	return true
}

// Close stops every tailing goroutine and waits for them.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	s.wg.Wait()
	return nil
}
