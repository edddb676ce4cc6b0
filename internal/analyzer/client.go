package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"crest/internal/config"
	"crest/internal/diag"
	"crest/internal/execfind"
)

// State tracks the session lifecycle. Transitions only move forward; a
// stopped client is never restarted, the session manager builds a new one.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	// ErrNotFound means the analyzer executable could not be resolved.
	ErrNotFound = errors.New("analyzer executable not found")
	// ErrExited rejects requests that were pending when the process died.
	ErrExited = errors.New("analyzer exited")
	// ErrAlreadyStarted guards against double Start on one client.
	ErrAlreadyStarted = errors.New("analyzer already started")
)

const handshakeTimeout = 15 * time.Second

// Options wires one client instance. The diagnostics and log sinks are
// registered here, before the process exists; at most one subscriber each.
type Options struct {
	Path          string
	Args          []string
	RootDir       string
	FallbackFlags []string
	OnDiagnostics func(uri string, diags []diag.Diagnostic)
	Logf          func(format string, args ...any)
}

type rpcOutcome struct {
	result json.RawMessage
	err    error
}

type queuedNotification struct {
	method string
	params any
}

// Client drives one clangd process over framed stdio: it correlates requests
// with responses, queues notifications until the handshake completes, answers
// server-initiated reverse requests, and routes publishDiagnostics to the
// registered sink.
type Client struct {
	opts Options

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	nextID    int64
	pending   map[int64]chan rpcOutcome
	queue     []queuedNotification
	readyCh   chan struct{}
	stoppedCh chan struct{}

	writeMu sync.Mutex
}

func New(opts Options) *Client {
	return &Client{
		opts:      opts,
		pending:   make(map[int64]chan rpcOutcome),
		readyCh:   make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// BuildCommand resolves the analyzer executable and assembles its argument
// list from the settings snapshot.
func BuildCommand(settings config.Settings) (string, []string, error) {
	path, ok := execfind.Resolve(settings.Analyzer.Path)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrNotFound, settings.Analyzer.Path)
	}
	args := append([]string(nil), settings.Analyzer.Args...)
	if dir := settings.Analyzer.CompileCommandsDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			args = append(args, "--compile-commands-dir="+dir)
		}
	}
	return path, args, nil
}

func (c *Client) logf(format string, args ...any) {
	if c.opts.Logf != nil {
		c.opts.Logf(format, args...)
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the handshake completed and the process is alive.
func (c *Client) Ready() bool {
	return c.State() == StateReady
}

// Start spawns the process and performs the initialize handshake. The
// bootstrap initialize request bypasses the ready gate by definition; once
// its response arrives the client sends the initialized notification and
// flushes every notification queued during startup, in original order.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateNotStarted {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateStarting

	cmd := exec.Command(c.opts.Path, c.opts.Args...)
	if c.opts.RootDir != "" {
		cmd.Dir = c.opts.RootDir
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		c.transitionStopped()
		return fmt.Errorf("failed to spawn analyzer: %w", err)
	}
	c.cmd = cmd
	c.stdin = stdin
	c.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		c.readLoop(stdout)
	}()
	go func() {
		defer readers.Done()
		c.stderrLoop(stderr)
	}()
	go func() {
		readers.Wait()
		if err := cmd.Wait(); err != nil {
			c.logf("analyzer: process exited: %v", err)
		}
		c.transitionStopped()
	}()

	if err := c.handshake(ctx); err != nil {
		c.Stop()
		return err
	}
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	params := initializeParams{
		ProcessID:    os.Getpid(),
		Capabilities: map[string]any{},
	}
	if c.opts.RootDir != "" {
		uri := pathToURI(c.opts.RootDir)
		params.RootURI = uri
		params.WorkspaceFolders = []workspaceFolder{{URI: uri, Name: filepath.Base(c.opts.RootDir)}}
	}
	if len(c.opts.FallbackFlags) > 0 {
		params.InitializationOptions = map[string]any{
			"fallbackFlags": c.opts.FallbackFlags,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	// Out-of-band request: the ready gate does not apply to the bootstrap.
	outcome, id, err := c.register()
	if err != nil {
		return err
	}
	if err := c.sendMessage(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "initialize",
		"params":  params,
	}); err != nil {
		c.unregister(id)
		return fmt.Errorf("failed to send initialize: %w", err)
	}
	select {
	case result := <-outcome:
		if result.err != nil {
			return fmt.Errorf("initialize failed: %w", result.err)
		}
	case <-c.stoppedCh:
		return ErrExited
	case <-ctx.Done():
		return fmt.Errorf("initialize timed out: %w", ctx.Err())
	}

	// The ready flip and the queue flush happen under the write lock, so a
	// Notify that observes StateReady blocks until every queued replay is
	// on the wire. Editor ordering survives the handshake boundary.
	c.writeMu.Lock()
	c.mu.Lock()
	if c.state != StateStarting {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return ErrExited
	}
	c.state = StateReady
	queued := c.queue
	c.queue = nil
	stdin := c.stdin
	close(c.readyCh)
	c.mu.Unlock()

	initErr := writeNotificationTo(stdin, "initialized", map[string]any{})
	if initErr == nil {
		for _, note := range queued {
			if err := writeNotificationTo(stdin, note.method, note.params); err != nil {
				c.logf("analyzer: failed to flush queued %s: %v", note.method, err)
			}
		}
	}
	c.writeMu.Unlock()
	if initErr != nil {
		return fmt.Errorf("failed to send initialized: %w", initErr)
	}
	return nil
}

// writeNotificationTo frames one notification directly. Callers hold writeMu.
func writeNotificationTo(stdin io.Writer, method string, params any) error {
	if stdin == nil {
		return ErrExited
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return writeFrame(stdin, payload)
}

// Request sends a correlated request and blocks until the matching response,
// process death, or context cancellation. It waits for readiness first.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.readyCh:
	case <-c.stoppedCh:
		return nil, ErrExited
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	outcome, id, err := c.register()
	if err != nil {
		return nil, err
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	if err := c.sendMessage(msg); err != nil {
		c.unregister(id)
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	select {
	case result := <-outcome:
		return result.result, result.err
	case <-ctx.Done():
		c.unregister(id)
		return nil, ctx.Err()
	}
}

// Notify sends a notification, queueing it FIFO while the handshake is still
// in flight. Notifications carry no id and expect no reply.
func (c *Client) Notify(method string, params any) error {
	c.mu.Lock()
	switch c.state {
	case StateStopped:
		c.mu.Unlock()
		return ErrExited
	case StateNotStarted, StateStarting:
		c.queue = append(c.queue, queuedNotification{method: method, params: params})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.sendNotification(method, params)
}

// Stop attempts a graceful shutdown request (failure ignored), sends the exit
// notification, terminates the process and clears all pending state.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return
	}
	if c.state == StateNotStarted {
		c.mu.Unlock()
		// No process to tear down, but stoppedCh must still close so
		// waiters fail fast instead of sitting out their contexts.
		c.transitionStopped()
		return
	}
	wasReady := c.state == StateReady
	cmd := c.cmd
	c.mu.Unlock()

	if wasReady {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if _, err := c.Request(ctx, "shutdown", nil); err != nil {
			c.logf("analyzer: shutdown request failed: %v", err)
		}
		cancel()
	}
	if err := c.sendNotification("exit", nil); err != nil {
		c.logf("analyzer: exit notification failed: %v", err)
	}
	if cmd != nil && cmd.Process != nil {
		// The wait goroutine reaps the process and finishes the transition.
		_ = cmd.Process.Kill()
	}
	c.transitionStopped()
}

// transitionStopped is idempotent; the first caller rejects all pending
// requests and drops the queue.
func (c *Client) transitionStopped() {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateStopped
	pending := c.pending
	c.pending = make(map[int64]chan rpcOutcome)
	c.queue = nil
	stdin := c.stdin
	c.stdin = nil
	close(c.stoppedCh)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcOutcome{err: ErrExited}
	}
	if stdin != nil {
		stdin.Close()
	}
}

func (c *Client) register() (chan rpcOutcome, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return nil, 0, ErrExited
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcOutcome, 1)
	c.pending[id] = ch
	return ch, id, nil
}

func (c *Client) unregister(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	return c.sendMessage(msg)
}

func (c *Client) sendMessage(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()
	if stdin == nil {
		return ErrExited
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(stdin, payload)
}

func (c *Client) readLoop(stdout io.Reader) {
	var decoder frameDecoder
	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			decoder.Append(buf[:n])
			for {
				payload, derr := decoder.Next()
				if derr != nil {
					c.logf("analyzer: dropping malformed frame: %v", derr)
					continue
				}
				if payload == nil {
					break
				}
				c.dispatch(payload)
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) stderrLoop(stderr io.Reader) {
	buf := make([]byte, 8*1024)
	line := make([]byte, 0, 256)
	for {
		n, err := stderr.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				if len(line) > 0 {
					c.logf("analyzer: %s", string(line))
					line = line[:0]
				}
				continue
			}
			line = append(line, b)
		}
		if err != nil {
			if len(line) > 0 {
				c.logf("analyzer: %s", string(line))
			}
			return
		}
	}
}

func (c *Client) dispatch(payload []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logf("analyzer: failed to parse message: %v", err)
		return
	}
	switch {
	case msg.Method != "" && len(msg.ID) == 0:
		c.handleNotification(&msg)
	case msg.Method != "" && len(msg.ID) > 0:
		c.handleReverseRequest(&msg)
	case len(msg.ID) > 0:
		c.handleResponse(&msg)
	}
}

func (c *Client) handleNotification(msg *rpcMessage) {
	switch msg.Method {
	case "textDocument/publishDiagnostics":
		var params publishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			c.logf("analyzer: bad publishDiagnostics params: %v", err)
			return
		}
		c.mu.Lock()
		stopped := c.state == StateStopped
		sink := c.opts.OnDiagnostics
		c.mu.Unlock()
		// Invariant: no diagnostics callback after stopped.
		if stopped || sink == nil {
			return
		}
		sink(params.URI, toDiagnostics(uriToPath(params.URI), params.Diagnostics))
	case "window/logMessage", "window/showMessage":
		var params logMessageParams
		if err := json.Unmarshal(msg.Params, &params); err == nil && params.Message != "" {
			c.logf("analyzer: %s", params.Message)
		}
	case "$/progress", "telemetry/event":
		// intentionally ignored
	}
}

// handleReverseRequest answers server-initiated requests with neutral stubs;
// none of them may block forward progress.
func (c *Client) handleReverseRequest(msg *rpcMessage) {
	var result any
	switch msg.Method {
	case "workspace/configuration":
		var params struct {
			Items []json.RawMessage `json:"items"`
		}
		_ = json.Unmarshal(msg.Params, &params)
		nulls := make([]any, len(params.Items))
		result = nulls
	case "client/registerCapability", "client/unregisterCapability":
		result = nil
	case "window/workDoneProgress/create":
		result = nil
	case "workspace/applyEdit":
		result = map[string]any{"applied": false}
	default:
		if err := c.sendMessage(map[string]any{
			"jsonrpc": "2.0",
			"id":      msg.ID,
			"error":   rpcError{Code: -32601, Message: "method not found"},
		}); err != nil {
			c.logf("analyzer: failed to reject reverse request %s: %v", msg.Method, err)
		}
		return
	}
	if err := c.sendMessage(map[string]any{
		"jsonrpc": "2.0",
		"id":      msg.ID,
		"result":  result,
	}); err != nil {
		c.logf("analyzer: failed to answer reverse request %s: %v", msg.Method, err)
	}
}

func (c *Client) handleResponse(msg *rpcMessage) {
	var id int64
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		c.logf("analyzer: response with non-numeric id %s", string(msg.ID))
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		c.logf("analyzer: response for unknown request id %d", id)
		return
	}
	if msg.Error != nil {
		ch <- rpcOutcome{err: msg.Error}
		return
	}
	ch <- rpcOutcome{result: msg.Result}
}

func pathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

func uriToPath(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return uri
	}
	path := parsed.Path
	if path == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return filepath.FromSlash(path)
}
