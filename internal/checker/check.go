// Package checker drives one-shot diagnostic runs for the CLI: both sources
// race over a set of files and the merged results decide the exit code.
package checker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crest/internal/analyzer"
	"crest/internal/compiler"
	"crest/internal/config"
	"crest/internal/diag"
	"crest/internal/lang"
)

// SourceExt is the file extension the checker picks up when walking
// directories.
const SourceExt = ".crest"

// analyzerWait bounds how long one file waits for the analyzer's publish
// before the check proceeds with the other sources.
var analyzerWait = 4 * time.Second

// ErrNoSources reports that neither the compiler nor the analyzer could run;
// the caller maps it to the operational exit code.
var ErrNoSources = errors.New("no diagnostic source available")

// Stage and Status describe per-file progress for the UI.
type Stage int

const (
	StageQueued Stage = iota
	StageLint
	StageCompile
	StageAnalyze
)

type Status int

const (
	StatusQueued Status = iota
	StatusWorking
	StatusDone
	StatusError
)

// Event is one progress update. File is empty for run-level events.
type Event struct {
	File   string
	Stage  Stage
	Status Status
	Err    error
}

// FileResult carries the merged diagnostics for one checked file.
type FileResult struct {
	Path        string
	Diagnostics []diag.Diagnostic
	ReadErr     error
}

// Report is the outcome of a whole run.
type Report struct {
	Files       []FileResult
	CompilerRan bool
	AnalyzerRan bool
}

// HasErrors reports whether any file produced an error-severity diagnostic.
func (r *Report) HasErrors() bool {
	for _, f := range r.Files {
		for _, d := range f.Diagnostics {
			if d.Severity == diag.SevError {
				return true
			}
		}
	}
	return false
}

// Total counts diagnostics across all files.
func (r *Report) Total() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Diagnostics)
	}
	return n
}

// Options configures a run.
type Options struct {
	Settings config.Settings
	Jobs     int
	// WrapHeader checks header files through a synthetic translation unit
	// that includes ExtraIncludes first.
	WrapHeader    bool
	ExtraIncludes []string
	Logf          func(format string, args ...any)
	// Progress receives per-file events when non-nil. The checker closes
	// it when the run finishes.
	Progress chan<- Event

	newSession func(opts analyzer.Options) oneShotSession
}

type oneShotSession interface {
	Start(ctx context.Context) error
	Notify(method string, params any) error
	Stop()
}

func (o *Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

func (o *Options) emit(ev Event) {
	if o.Progress != nil {
		o.Progress <- ev
	}
}

// ListFiles expands the argument paths: directories are walked for source
// files, explicit files are taken as-is. The result is sorted and unique.
func ListFiles(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot check %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(sub, SourceExt) {
				add(sub)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run checks every file and returns the merged report. The compiler and the
// analyzer contribute whenever they are available; with both gone the run is
// an operational failure.
func Run(ctx context.Context, opts Options, paths []string) (*Report, error) {
	files, err := ListFiles(paths)
	if err != nil {
		return nil, err
	}
	if opts.Progress != nil {
		defer close(opts.Progress)
	}

	settings := opts.Settings

	compilerOK := false
	if settings.Compiler.Enabled {
		if _, ok := compiler.Locate(settings); ok {
			compilerOK = true
		} else {
			opts.logf("crestc: compiler %q not found, skipping compiler diagnostics", settings.Compiler.Path)
		}
	}

	dispatch := newDiagRouter()
	session, analyzerOK := startOneShotAnalyzer(ctx, &opts, settings, dispatch)
	if session != nil {
		defer session.Stop()
	}

	if !compilerOK && !analyzerOK {
		return nil, ErrNoSources
	}

	report := &Report{
		Files:       make([]FileResult, len(files)),
		CompilerRan: compilerOK,
		AnalyzerRan: analyzerOK,
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	runner := &compiler.Runner{Logf: opts.Logf}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(files), 1)))
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			report.Files[i] = checkFile(gctx, &opts, runner, session, dispatch, settings, path, compilerOK, analyzerOK)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func checkFile(ctx context.Context, opts *Options, runner *compiler.Runner, session oneShotSession, dispatch *diagRouter, settings config.Settings, path string, compilerOK, analyzerOK bool) FileResult {
	result := FileResult{Path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		opts.emit(Event{File: path, Stage: StageLint, Status: StatusError, Err: err})
		result.ReadErr = err
		return result
	}
	text := string(raw)
	checkText := text
	if opts.WrapHeader && isHeader(path) {
		checkText = wrapHeader(path, opts.ExtraIncludes)
	}

	opts.emit(Event{File: path, Stage: StageLint, Status: StatusWorking})
	lint := lang.Validate(path, text)

	var compilerDiags []diag.Diagnostic
	if compilerOK {
		opts.emit(Event{File: path, Stage: StageCompile, Status: StatusWorking})
		compilerDiags = runner.Run(ctx, path, checkText, settings)
	}

	var analyzerDiags []diag.Diagnostic
	if analyzerOK {
		opts.emit(Event{File: path, Stage: StageAnalyze, Status: StatusWorking})
		analyzerDiags = analyzeOnce(ctx, opts, session, dispatch, settings, path, checkText)
	}

	merged := diag.MergeDedup(settings.Compiler.MaxProblems, analyzerDiags, compilerDiags, lint)
	result.Diagnostics = merged

	status := StatusDone
	if hasError(merged) {
		status = StatusError
	}
	opts.emit(Event{File: path, Stage: StageAnalyze, Status: status})
	return result
}

// analyzeOnce pushes one document through the shared session and waits for
// its publish. No answer within the window simply yields no analyzer
// diagnostics for that file.
func analyzeOnce(ctx context.Context, opts *Options, session oneShotSession, dispatch *diagRouter, settings config.Settings, path, text string) []diag.Diagnostic {
	uri := pathToURI(path)
	ch := dispatch.subscribe(uri)
	defer dispatch.unsubscribe(uri)

	if err := session.Notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": "c",
			"version":    1,
			"text":       text,
		},
	}); err != nil {
		opts.logf("clangd: didOpen failed: %v", err)
		return nil
	}
	defer func() {
		if err := session.Notify("textDocument/didClose", map[string]any{
			"textDocument": map[string]any{"uri": uri},
		}); err != nil {
			opts.logf("clangd: didClose failed: %v", err)
		}
	}()

	select {
	case diags := <-ch:
		return filterByMode(settings.Analyzer.DiagnosticsMode, text, diags)
	case <-time.After(analyzerWait):
		opts.logf("clangd: no diagnostics for %s within %s", filepath.Base(path), analyzerWait)
		return nil
	case <-ctx.Done():
		return nil
	}
}

func filterByMode(mode config.DiagnosticsMode, text string, diags []diag.Diagnostic) []diag.Diagnostic {
	switch mode {
	case config.DiagnosticsNone:
		return nil
	case config.DiagnosticsAll:
		return diags
	}
	lines := strings.Split(text, "\n")
	out := make([]diag.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if lang.IsAnalyzerNoise(d.Message) && d.Line >= 0 && d.Line < len(lines) && lang.MentionsDialect(lines[d.Line]) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func startOneShotAnalyzer(ctx context.Context, opts *Options, settings config.Settings, dispatch *diagRouter) (oneShotSession, bool) {
	if !settings.Analyzer.Enabled || settings.Analyzer.Mode == config.ModeDisabled {
		return nil, false
	}
	path, args, err := analyzer.BuildCommand(settings)
	if err != nil {
		opts.logf("clangd: %v", err)
		return nil, false
	}
	newSession := opts.newSession
	if newSession == nil {
		newSession = func(o analyzer.Options) oneShotSession {
			return analyzer.New(o)
		}
	}
	session := newSession(analyzer.Options{
		Path:          path,
		Args:          args,
		FallbackFlags: settings.Analyzer.FallbackFlags,
		OnDiagnostics: dispatch.deliver,
		Logf:          opts.Logf,
	})
	if err := session.Start(ctx); err != nil {
		opts.logf("clangd: session failed to start: %v", err)
		session.Stop()
		return nil, false
	}
	return session, true
}

// diagRouter fans analyzer publishes out to the per-file waiters.
type diagRouter struct {
	mu      sync.Mutex
	waiters map[string]chan []diag.Diagnostic
}

func newDiagRouter() *diagRouter {
	return &diagRouter{waiters: make(map[string]chan []diag.Diagnostic)}
}

func (r *diagRouter) subscribe(uri string) <-chan []diag.Diagnostic {
	ch := make(chan []diag.Diagnostic, 1)
	r.mu.Lock()
	r.waiters[uri] = ch
	r.mu.Unlock()
	return ch
}

func (r *diagRouter) unsubscribe(uri string) {
	r.mu.Lock()
	delete(r.waiters, uri)
	r.mu.Unlock()
}

func (r *diagRouter) deliver(uri string, diags []diag.Diagnostic) {
	r.mu.Lock()
	ch, ok := r.waiters[uri]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- diags:
	default:
	}
}

func hasError(diags []diag.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diag.SevError {
			return true
		}
	}
	return false
}

func isHeader(path string) bool {
	switch filepath.Ext(path) {
	case ".h", ".ch":
		return true
	}
	return false
}

// wrapHeader builds a synthetic translation unit so a bare header can be
// checked with its expected context included first.
func wrapHeader(path string, extraIncludes []string) string {
	var b strings.Builder
	for _, inc := range extraIncludes {
		b.WriteString("#include \"" + inc + "\"\n")
	}
	b.WriteString("#include \"" + filepath.Base(path) + "\"\n")
	return b.String()
}

func pathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}
