// Package stdio serves the dispatcher over a newline-delimited JSON stream,
// one request at a time.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/harun/apibridge/internal/metrics"
	"github.com/harun/apibridge/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// Transport is the name reported to tracing and metrics.
const Transport = "stdio"

// Handler processes one raw frame and returns the encoded reply, or nil when
// nothing is to be written. *dispatch.Dispatcher satisfies it.
type Handler interface {
	HandleMessage(ctx context.Context, data []byte) []byte
}

// OrderedHandler is implemented by handlers that can answer a batch one
// member at a time. Serve prefers it over HandleMessage.
type OrderedHandler interface {
	HandleMessageInOrder(ctx context.Context, data []byte) []byte
}

// Server runs a single session over a reader/writer pair.
type Server struct {
	handler Handler
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records the session in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a Server.
func NewServer(handler Handler, opts ...Option) *Server {
	s := &Server{handler: handler}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type line struct {
	data []byte
	err  error
}

// Serve reads requests from r and writes replies to w until r reaches EOF or
// ctx is cancelled. A request is fully answered before the next line is read.
// EOF is a clean shutdown and returns nil.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("stdio server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	sessionID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}
	ctx = tracing.WithSessionID(tracing.WithTransport(ctx, Transport), sessionID)
	logger := tracing.PropagateToLogger(ctx, log.Logger)

	s.metrics.SessionOpened(Transport)
	defer s.metrics.SessionClosed()
	logger.Info().Msg("Session started")

	// The reader goroutine only reads when asked, so no request is pulled
	// off the stream while another is being handled.
	next := make(chan struct{})
	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)

	go func() {
		reader := bufio.NewReader(r)
		for {
			select {
			case <-next:
			case <-done:
				return
			}
			data, err := reader.ReadBytes('\n')
			select {
			case lines <- line{data: data, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	out := bufio.NewWriter(w)
	for {
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			logger.Info().Msg("Session cancelled")
			return ctx.Err()
		}

		var in line
		select {
		case in = <-lines:
		case <-ctx.Done():
			logger.Info().Msg("Session cancelled")
			return ctx.Err()
		}

		if data := bytes.TrimSpace(in.data); len(data) > 0 {
			if err := s.reply(ctx, out, data); err != nil {
				return err
			}
		}

		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				logger.Info().Msg("Session ended")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", in.err)
		}
	}
}

func (s *Server) reply(ctx context.Context, out *bufio.Writer, data []byte) error {
	ctx = tracing.WithTraceID(ctx, tracing.NewTraceID())

	var resp []byte
	if h, ok := s.handler.(OrderedHandler); ok {
		resp = h.HandleMessageInOrder(ctx, data)
	} else {
		resp = s.handler.HandleMessage(ctx, data)
	}
	if resp == nil {
		return nil
	}

	if _, err := out.Write(resp); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := out.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
