package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harun/apibridge/internal/metrics"
	"github.com/harun/apibridge/internal/tracing"
	"github.com/harun/apibridge/pkg/descriptor"
	"github.com/harun/apibridge/pkg/registry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "apibridge/executor"

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// VariableSource provides values for {{name}} expansion. *store.Store
// satisfies it.
type VariableSource interface {
	Variables() map[string]string
}

// Config bounds outbound calls.
type Config struct {
	Timeout          time.Duration
	MaxResponseBytes int64
	UserAgent        string
}

// DefaultConfig returns the default outbound limits.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		MaxResponseBytes: 1 << 20,
		UserAgent:        "apibridge",
	}
}

// relevantHeaders are copied from upstream responses into results.
var relevantHeaders = []string{"Content-Type", "Content-Length", "Location", "ETag", "Retry-After", "X-Request-Id"}

// Result is the mapped upstream response.
type Result struct {
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      interface{}       `json:"body"`
	Truncated bool              `json:"truncated,omitempty"`
}

// OK reports a 2xx status.
func (r *Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Result) statusLine() string {
	if text := http.StatusText(r.Status); text != "" {
		return fmt.Sprintf("%d %s", r.Status, text)
	}
	return strconv.Itoa(r.Status)
}

// Text renders the result for a text content block.
func (r *Result) Text() string {
	var rendered string
	switch body := r.Body.(type) {
	case string:
		rendered = body
	case nil:
		rendered = ""
	default:
		data, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			rendered = fmt.Sprintf("%v", body)
		} else {
			rendered = string(data)
		}
	}
	if r.Truncated {
		rendered += "\n... [response truncated]"
	}
	return fmt.Sprintf("Status: %s\n\nResponse:\n%s", r.statusLine(), rendered)
}

// Executor turns a descriptor invocation into exactly one outbound request.
type Executor struct {
	client  Doer
	cfg     Config
	vars    VariableSource
	metrics *metrics.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithClient replaces the HTTP client.
func WithClient(client Doer) Option {
	return func(e *Executor) {
		e.client = client
	}
}

// WithVariables enables {{name}} expansion from src.
func WithVariables(src VariableSource) Option {
	return func(e *Executor) {
		e.vars = src
	}
}

// WithMetrics records upstream request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// New creates an Executor.
func New(cfg Config, opts ...Option) *Executor {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaults.MaxResponseBytes
	}

	e := &Executor{
		client: &http.Client{},
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) variables() map[string]string {
	if e.vars == nil {
		return nil
	}
	return e.vars.Variables()
}

// Execute validates args against d's input schema, sends the request once
// and maps the response. A non-2xx response returns both the Result and an
// UpstreamStatus error.
func (e *Executor) Execute(ctx context.Context, d *descriptor.Descriptor, args map[string]interface{}) (*Result, error) {
	if err := registry.ValidateArguments(d, args); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, tracerName, "upstream "+d.Name,
		attribute.String("tool.name", d.Name),
		attribute.String("http.request.method", string(d.Method)),
	)

	result, err := e.execute(ctx, d, args)
	if result != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", result.Status))
	}
	tracing.EndSpan(span, err)
	return result, err
}

func (e *Executor) execute(ctx context.Context, d *descriptor.Descriptor, args map[string]interface{}) (*Result, error) {
	req, err := e.Build(ctx, d, args)
	if err != nil {
		return nil, err
	}

	logger := tracing.PropagateToLogger(ctx, log.Logger)
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Msg("Sending upstream request")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		kind := classify(ctx, err)
		e.metrics.RecordUpstream(req.Method, string(kind), time.Since(start))
		logger.Error().
			Str("kind", string(kind)).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("Upstream request failed")
		return nil, &ExecutionError{Kind: kind, Tool: d.Name, Err: err}
	}
	defer resp.Body.Close()

	result, err := e.mapResponse(resp)
	if err != nil {
		kind := classify(ctx, err)
		e.metrics.RecordUpstream(req.Method, string(kind), time.Since(start))
		return nil, &ExecutionError{Kind: kind, Tool: d.Name, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	duration := time.Since(start)
	e.metrics.RecordUpstream(req.Method, statusClass(resp.StatusCode), duration)
	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Bool("truncated", result.Truncated).
		Msg("Upstream request completed")

	if !result.OK() {
		return result, &ExecutionError{Kind: UpstreamStatus, Tool: d.Name, Result: result}
	}
	return result, nil
}

func (e *Executor) mapResponse(resp *http.Response) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Status:  resp.StatusCode,
		Headers: make(map[string]string),
	}
	if int64(len(data)) > e.cfg.MaxResponseBytes {
		data = data[:e.cfg.MaxResponseBytes]
		result.Truncated = true
	}
	for _, h := range relevantHeaders {
		if v := resp.Header.Get(h); v != "" {
			result.Headers[h] = v
		}
	}

	result.Body = string(data)
	if isJSON(resp.Header.Get("Content-Type")) && !result.Truncated && len(data) > 0 {
		var parsed interface{}
		if err := json.Unmarshal(data, &parsed); err == nil {
			result.Body = parsed
		}
	}
	return result, nil
}

func isJSON(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func classify(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Network
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
