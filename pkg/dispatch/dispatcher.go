package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harun/apibridge/internal/audit"
	"github.com/harun/apibridge/internal/metrics"
	"github.com/harun/apibridge/internal/tracing"
	"github.com/harun/apibridge/pkg/executor"
	"github.com/harun/apibridge/pkg/registry"
	"github.com/harun/apibridge/pkg/store"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// ServerName is reported in the initialize result.
	ServerName = "apibridge"
	// DefaultProtocolVersion is used when the client does not send one.
	DefaultProtocolVersion = "2025-03-26"

	tracerName = "apibridge/dispatch"
)

const defaultInstructions = "Registered HTTP APIs are exposed as tools named after each API. " +
	"Use list_apis and get_api to inspect them. When administration is enabled, add_api, update_api, " +
	"delete_api, enable_api and disable_api manage the registrations, and set_variable stores values " +
	"that base URLs, headers and credentials can reference as {{name}}."

// Config wires the dispatcher to its collaborators.
type Config struct {
	Store        *store.Store
	Registry     *registry.Registry
	Executor     *executor.Executor
	Metrics      *metrics.Metrics
	Audit        *audit.Logger
	Version      string
	Instructions string
	// OnToolsChanged is called after a built-in call changes the tool set.
	OnToolsChanged func()
}

// Dispatcher decodes protocol messages and routes them to the registry,
// the built-in handlers or the executor. It holds no per-session state and
// is safe for concurrent use.
type Dispatcher struct {
	store        *store.Store
	registry     *registry.Registry
	executor     *executor.Executor
	metrics      *metrics.Metrics
	audit        *audit.Logger
	version      string
	instructions string
	builtins     map[string]builtinHandler
	onChanged    func()
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		store:        cfg.Store,
		registry:     cfg.Registry,
		executor:     cfg.Executor,
		metrics:      cfg.Metrics,
		audit:        cfg.Audit,
		version:      cfg.Version,
		instructions: cfg.Instructions,
		onChanged:    cfg.OnToolsChanged,
	}
	if d.version == "" {
		d.version = "dev"
	}
	if d.instructions == "" {
		d.instructions = defaultInstructions
	}
	d.builtins = d.builtinHandlers()
	return d
}

// HandleMessage processes one raw frame (a single request or a batch) and
// returns the encoded reply, or nil when nothing is to be sent back.
// Batch members are dispatched concurrently.
func (d *Dispatcher) HandleMessage(ctx context.Context, data []byte) []byte {
	return d.handleMessage(ctx, data, true)
}

// HandleMessageInOrder is HandleMessage for the sequential transport: batch
// members are dispatched one after another in the order they were sent.
func (d *Dispatcher) HandleMessageInOrder(ctx context.Context, data []byte) []byte {
	return d.handleMessage(ctx, data, false)
}

func (d *Dispatcher) handleMessage(ctx context.Context, data []byte, concurrent bool) []byte {
	frames, batch, perr := ParseMessage(data)
	if perr != nil {
		return encode(errorResponse(nil, perr.Code, perr.Message, perr.Data))
	}

	if !batch {
		resp := d.handleFrame(ctx, frames[0])
		if resp == nil {
			return nil
		}
		return encode(resp)
	}

	responses := make([]*Response, len(frames))
	if concurrent {
		g, gctx := errgroup.WithContext(ctx)
		for i, frame := range frames {
			g.Go(func() error {
				responses[i] = d.handleFrame(gctx, frame)
				return nil
			})
		}
		g.Wait()
	} else {
		for i, frame := range frames {
			responses[i] = d.handleFrame(ctx, frame)
		}
	}

	out := make([]*Response, 0, len(responses))
	for _, resp := range responses {
		if resp != nil {
			out = append(out, resp)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return encode(out)
}

func (d *Dispatcher) handleFrame(ctx context.Context, frame json.RawMessage) *Response {
	req, perr := ParseRequest(frame)
	if perr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		return errorResponse(id, perr.Code, perr.Message, perr.Data)
	}
	return d.Handle(ctx, req)
}

func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		data, _ = json.Marshal(errorResponse(nil, InternalError, "Internal error", err.Error()))
	}
	return data
}

// Handle routes one decoded request. It returns nil for notifications.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) *Response {
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	d.metrics.RecordRPC(req.Method, tracing.GetTransport(ctx))

	logger := tracing.PropagateToLogger(ctx, log.Logger)
	logger.Debug().Str("method", req.Method).Bool("notification", req.IsNotification()).Msg("Handling request")

	if req.IsNotification() {
		if !strings.HasPrefix(req.Method, "notifications/") {
			logger.Debug().Str("method", req.Method).Msg("Ignoring notification with unknown method")
		}
		return nil
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, d.initialize(req.Params))
	case "ping":
		return resultResponse(req.ID, map[string]interface{}{})
	case "tools/list":
		d.metrics.RecordToolList()
		return resultResponse(req.ID, map[string]interface{}{"tools": d.registry.List()})
	case "tools/call":
		result, rpcErr := d.callTool(ctx, req.Params)
		if rpcErr != nil {
			return errorResponse(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		return resultResponse(req.ID, result)
	}

	return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

func (d *Dispatcher) initialize(raw json.RawMessage) map[string]interface{} {
	var params initializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			log.Debug().Err(err).Msg("Ignoring malformed initialize params")
		}
	}

	version := params.ProtocolVersion
	if version == "" {
		version = DefaultProtocolVersion
	}

	log.Info().
		Str("client", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("protocol_version", version).
		Msg("Client initialized")

	return map[string]interface{}{
		"protocolVersion": version,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": true},
		},
		"serverInfo": map[string]interface{}{
			"name":    ServerName,
			"version": d.version,
		},
		"instructions": d.instructions,
	}
}

type callParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// callTool runs one tools/call. Only malformed params are JSON-RPC errors;
// every tool failure becomes an isError result.
func (d *Dispatcher) callTool(ctx context.Context, raw json.RawMessage) (*CallToolResult, *RPCError) {
	var params callParams
	if len(raw) == 0 {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params: missing tool name"}
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	if params.Name == "" {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params: missing tool name"}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	ctx = tracing.WithTool(ctx, params.Name)
	ctx, span := tracing.StartSpan(ctx, tracerName, "tools/call",
		attribute.String("tool.name", params.Name),
		attribute.String("session.id", tracing.GetSessionID(ctx)),
	)

	start := time.Now()
	kind, result, err := d.invoke(ctx, params.Name, params.Arguments)
	duration := time.Since(start)

	errKind := ""
	if err != nil {
		errKind = errorKind(err)
		result = errorResult(err)
	}
	d.metrics.RecordToolCall(kind, errKind, duration)
	tracing.EndSpan(span, err)

	logger := tracing.PropagateToLogger(ctx, log.Logger)
	if err != nil {
		logger.Warn().Str("kind", errKind).Dur("duration", duration).Err(err).Msg("Tool call failed")
	} else {
		logger.Debug().Dur("duration", duration).Msg("Tool call completed")
	}
	return result, nil
}

func changesTools(name string) bool {
	switch name {
	case registry.AddAPI, registry.UpdateAPI, registry.DeleteAPI, registry.EnableAPI, registry.DisableAPI:
		return true
	}
	return false
}

func mutates(name string) bool {
	return changesTools(name) || name == registry.SetVariable || name == registry.DeleteVariable
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]interface{}) (string, *CallToolResult, error) {
	res, err := d.registry.Resolve(name)
	if err != nil {
		return "unknown", nil, err
	}

	if res.Builtin != nil {
		if err := d.registry.Validate(res, args); err != nil {
			return "builtin", nil, err
		}
		handler, ok := d.builtins[res.Builtin.Name]
		if !ok {
			return "builtin", nil, fmt.Errorf("no handler for built-in tool %s", res.Builtin.Name)
		}
		out, err := handler(ctx, args)
		if mutates(res.Builtin.Name) {
			d.audit.Mutation(ctx, res.Builtin.Name, args, err)
		}
		if err != nil {
			return "builtin", nil, err
		}
		if d.onChanged != nil && changesTools(res.Builtin.Name) {
			d.onChanged()
		}
		return "builtin", successResult(out), nil
	}

	result, err := d.executor.Execute(ctx, res.Descriptor, args)
	if err != nil {
		return "api", nil, err
	}
	return "api", upstreamResult(result, false), nil
}
