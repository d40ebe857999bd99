package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"podman-mcp/internal/podman"
	"podman-mcp/internal/requestid"
	"podman-mcp/internal/storage"
	"podman-mcp/internal/tools"
)

const (
	defaultToolTimeout    = 60 * time.Second
	defaultRetryAttempts  = 1
	defaultRetryBackoff   = 250 * time.Millisecond
	defaultMaxConcurrency = 8
)

// Journal records tool invocations. *storage.Storage implements it.
type Journal interface {
	Record(ctx context.Context, inv *storage.Invocation) error
}

// Dispatcher routes decoded requests to the MCP methods and the tool
// registry. It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	registry       *tools.Registry
	journal        Journal
	logger         *slog.Logger
	toolTimeout    time.Duration
	retryAttempts  int
	retryBackoff   time.Duration
	maxConcurrency int
	serverInfo     Implementation
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJournal records every tool call.
func WithJournal(j Journal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithToolTimeout bounds each tool call attempt.
func WithToolTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.toolTimeout = timeout
		}
	}
}

// WithRetry sets how many extra attempts a read-only tool gets after a
// runtime transport failure, and the pause between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		d.retryAttempts = max(attempts, 0)
		d.retryBackoff = max(backoff, 0)
	}
}

// WithMaxBatchConcurrency bounds how many batch elements run at once.
func WithMaxBatchConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrency = n
		}
	}
}

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(d *Dispatcher) { d.serverInfo = Implementation{Name: name, Version: version} }
}

// NewDispatcher creates a dispatcher over a built registry.
func NewDispatcher(registry *tools.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:       registry,
		logger:         slog.Default(),
		toolTimeout:    defaultToolTimeout,
		retryAttempts:  defaultRetryAttempts,
		retryBackoff:   defaultRetryBackoff,
		maxConcurrency: defaultMaxConcurrency,
		serverInfo:     Implementation{Name: "podman-mcp", Version: "dev"},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reply is the outcome of handling one HTTP body. Body is nil when nothing
// is to be sent back. ParseError is set when the body was not JSON.
type Reply struct {
	Body       []byte
	ParseError bool
}

// Handle decodes a request body, dispatches every element and encodes the
// responses.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) (*Reply, error) {
	batch, perr := Decode(body)
	if perr != nil {
		data, err := Encode([]*Response{errorResponse(nil, perr)}, false)
		if err != nil {
			return nil, fmt.Errorf("encode parse error: %w", err)
		}
		return &Reply{Body: data, ParseError: true}, nil
	}

	responses := d.dispatchBatch(ctx, batch)
	data, err := Encode(responses, batch.IsBatch)
	if err != nil {
		return nil, fmt.Errorf("encode responses: %w", err)
	}
	return &Reply{Body: data}, nil
}

// dispatchBatch runs elements concurrently, bounded by maxConcurrency, and
// returns the responses in element order.
func (d *Dispatcher) dispatchBatch(ctx context.Context, batch *Batch) []*Response {
	responses := make([]*Response, len(batch.Elements))
	if len(batch.Elements) == 1 {
		responses[0] = d.dispatchElement(ctx, batch.Elements[0])
		return responses
	}

	sem := make(chan struct{}, d.maxConcurrency)
	var wg sync.WaitGroup
	for i, el := range batch.Elements {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			responses[i] = d.dispatchElement(ctx, el)
		}()
	}
	wg.Wait()
	return responses
}

func (d *Dispatcher) dispatchElement(ctx context.Context, el Element) *Response {
	if el.Err != nil {
		return errorResponse(el.ID, el.Err)
	}
	return d.Dispatch(ctx, el.Request)
}

// Dispatch handles one validated request. It returns nil for notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while dispatching",
				"method", req.Method, "panic", r, "stack", string(debug.Stack()),
				"request_id", requestid.FromContext(ctx))
			resp = errorResponse(req.ID, newInternalError(fmt.Sprint(r)))
		}
		if req.IsNotification() {
			resp = nil
		}
	}()

	result, rpcErr := d.route(ctx, req)
	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}
	return resultResponse(req.ID, result)
}

func (d *Dispatcher) route(ctx context.Context, req *Request) (any, *Error) {
	switch req.Method {
	case MethodInitialize:
		return d.initialize(req)
	case MethodInitialized, MethodPing:
		return struct{}{}, nil
	case MethodToolsList:
		return ListToolsResult{Tools: d.registry.List()}, nil
	case MethodToolsCall:
		return d.callTool(ctx, req)
	default:
		return nil, newMethodNotFound()
	}
}

func (d *Dispatcher) initialize(req *Request) (any, *Error) {
	var params InitializeParams
	if len(req.Params) > 0 && !isNull(req.Params) {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, newInvalidParams("params", "must be an object")
		}
	}

	version := mcpgo.LATEST_PROTOCOL_VERSION
	if slices.Contains(mcpgo.ValidProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}
	return InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities{Tools: &ToolsCapability{ListChanged: false}},
		ServerInfo:      d.serverInfo,
	}, nil
}

// callTool walks a tools/call request through param checks, tool
// resolution, argument validation and execution. Each failure stops the
// walk with exactly one error.
func (d *Dispatcher) callTool(ctx context.Context, req *Request) (any, *Error) {
	name, args, rpcErr := parseCallParams(req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	tool, err := d.registry.Resolve(name)
	if err != nil {
		return nil, newToolNotFound(name)
	}

	if err := tools.ValidateArguments(tool.Descriptor.InputSchema, args); err != nil {
		var argErr *tools.ArgumentError
		if errors.As(err, &argErr) {
			return nil, newInvalidParams(argErr.Field, argErr.Reason)
		}
		return nil, newInvalidParams("arguments", err.Error())
	}

	start := time.Now()
	value, err := d.invoke(ctx, tool, args)
	dur := time.Since(start)

	result, rpcErr, outcome := d.classify(value, err)
	d.logTool(ctx, name, dur, outcome, err)
	d.record(ctx, name, args, outcome, err, dur)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func parseCallParams(raw json.RawMessage) (string, tools.Arguments, *Error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil, newInvalidParams("name", "required")
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return "", nil, newInvalidParams("params", "must be an object")
	}

	rawName, ok := params["name"]
	if !ok || isNull(rawName) {
		return "", nil, newInvalidParams("name", "required")
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil {
		return "", nil, newInvalidParams("name", "must be a string")
	}
	if name == "" {
		return "", nil, newInvalidParams("name", "must not be empty")
	}

	rawArgs, ok := params["arguments"]
	if !ok || isNull(rawArgs) {
		return "", nil, newInvalidParams("arguments", "required")
	}
	var args tools.Arguments
	if !bytes.HasPrefix(bytes.TrimSpace(rawArgs), []byte("{")) || json.Unmarshal(rawArgs, &args) != nil {
		return "", nil, newInvalidParams("arguments", "must be an object")
	}
	return name, args, nil
}

// panicError carries a recovered handler panic out of its goroutine.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// invoke runs the handler, retrying read-only tools after transport
// failures.
func (d *Dispatcher) invoke(ctx context.Context, tool *tools.Tool, args tools.Arguments) (any, error) {
	attempts := 1
	if tool.ReadOnly() {
		attempts += d.retryAttempts
	}

	for attempt := 1; ; attempt++ {
		value, err := d.runHandler(ctx, tool, args)
		var transportErr *podman.TransportError
		if err == nil || !errors.As(err, &transportErr) || attempt >= attempts {
			return value, err
		}

		d.logger.Warn("retrying tool call",
			"tool", tool.Descriptor.Name, "attempt", attempt+1, "error", err,
			"request_id", requestid.FromContext(ctx))
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(d.retryBackoff):
		}
	}
}

// runHandler runs one attempt bounded by the tool timeout. On expiry it
// returns without waiting for the handler, whose context is cancelled.
func (d *Dispatcher) runHandler(ctx context.Context, tool *tools.Tool, args tools.Arguments) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.toolTimeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &panicError{value: r, stack: debug.Stack()}}
			}
		}()
		value, err := tool.Handler(ctx, args)
		done <- outcome{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, &podman.TransportError{
			Op:  tool.Descriptor.Name,
			Err: fmt.Errorf("tool call did not finish within %s: %w", d.toolTimeout, ctx.Err()),
		}
	}
}

// classify maps a handler outcome onto a tools/call result or error.
func (d *Dispatcher) classify(value any, err error) (*ToolResult, *Error, string) {
	var (
		panicErr     *panicError
		transportErr *podman.TransportError
	)
	switch {
	case err == nil:
		text, merr := renderValue(value)
		if merr != nil {
			return nil, newInternalError(merr.Error()), storage.OutcomeInternalError
		}
		return TextResult(text, false), nil, storage.OutcomeOK
	case errors.As(err, &panicErr):
		d.logger.Error("tool handler panicked", "panic", panicErr.value, "stack", string(panicErr.stack))
		return nil, newInternalError(panicErr.Error()), storage.OutcomeInternalError
	case errors.As(err, &transportErr):
		return nil, newRuntimeUnavailable(err.Error()), storage.OutcomeRuntimeError
	default:
		// runtime-reported failures and any other handler error are data
		return TextResult(err.Error(), true), nil, storage.OutcomeToolError
	}
}

// renderValue turns a handler value into the text of a content block.
func renderValue(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

func (d *Dispatcher) logTool(ctx context.Context, name string, dur time.Duration, outcome string, err error) {
	rid := requestid.FromContext(ctx)
	if err != nil {
		d.logger.Warn("tool call failed", "tool", name, "outcome", outcome, "duration", dur, "error", err, "request_id", rid)
	} else {
		d.logger.Info("tool call", "tool", name, "duration", dur, "request_id", rid)
	}
}

func (d *Dispatcher) record(ctx context.Context, name string, args tools.Arguments, outcome string, err error, dur time.Duration) {
	if d.journal == nil {
		return
	}
	inv := &storage.Invocation{
		RequestID:  requestid.FromContext(ctx),
		Tool:       name,
		Arguments:  args,
		Outcome:    outcome,
		DurationMS: dur.Milliseconds(),
	}
	if err != nil {
		inv.Error = err.Error()
	}
	// journal writes must not be cut short by a cancelled request
	if jerr := d.journal.Record(context.WithoutCancel(ctx), inv); jerr != nil {
		d.logger.Warn("failed to journal tool call", "tool", name, "error", jerr)
	}
}
