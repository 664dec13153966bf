package svcboot

import (
	"fmt"
	"path/filepath"
	"plugin"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Module is an opened artifact. *plugin.Plugin satisfies it.
type Module interface {
	Lookup(symName string) (plugin.Symbol, error)
}

// Opener opens the artifact at path as a dynamically loaded module.
type Opener func(path string) (Module, error)

// OpenPlugin opens path with the standard library plugin package.
// Go never unmaps a loaded plugin, so the module outlives every object
// obtained from it.
func OpenPlugin(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOpener replaces the module opener (default OpenPlugin).
func WithOpener(open Opener) LoaderOption {
	return func(l *Loader) {
		l.open = open
	}
}

// WithLoaderLogger sets the logger used for load events.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// Loader opens artifacts and claims the Entry each one exports.
//
// A Loader invokes an artifact's entry point exactly once. Loading the same
// path twice is refused: the plugin package caches modules by path, so a
// second load would share the first one's package state.
type Loader struct {
	open   Opener
	logger *zap.Logger

	mu     sync.Mutex
	loaded map[string]*Artifact
	// invoked holds every path whose entry point has run, including
	// those whose Entry was rejected.
	invoked map[string]struct{}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		open:    OpenPlugin,
		logger:  zap.NewNop(),
		loaded:  make(map[string]*Artifact),
		invoked: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Artifact is a loaded artifact together with the Entry it handed over.
type Artifact struct {
	// Path is the cleaned path the artifact was opened from.
	Path string

	// Entry is the claimed result of the artifact's entry point.
	Entry *Entry

	// module keeps the opened module referenced for as long as the
	// Artifact is reachable.
	module Module
}

// Name returns the service name declared by the artifact.
func (a *Artifact) Name() string {
	return a.Entry.Name
}

// Bootstrapper wraps the artifact's builder in a new Bootstrapper.
func (a *Artifact) Bootstrapper(binder Binder) *Bootstrapper {
	return New(a.Entry.Builder, binder)
}

// Load opens the artifact at path, resolves EntrySymbol, invokes it once and
// validates the returned Entry. Once the entry point has run, later loads of
// the same path fail with ErrAlreadyLoaded whether or not validation passed.
func (l *Loader) Load(path string) (*Artifact, error) {
	path = filepath.Clean(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.invoked[path]; ok {
		return nil, &Error{Kind: KindLoad, Op: "load " + path, Err: ErrAlreadyLoaded}
	}

	mod, err := l.open(path)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Op: "load " + path, Err: err}
	}

	sym, err := mod.Lookup(EntrySymbol)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Op: "load " + path, Err: fmt.Errorf("%w: %v", ErrSymbolNotFound, err)}
	}

	entryFn, ok := sym.(EntryFunc)
	if !ok {
		return nil, &Error{Kind: KindLoad, Op: "load " + path, Err: fmt.Errorf("%w: %s is %T, want %T", ErrBadSymbol, EntrySymbol, sym, EntryFunc(nil))}
	}

	// Claim ownership of the entry immediately; it is never requested
	// again, even if it turns out to be invalid.
	l.invoked[path] = struct{}{}
	entry := entryFn()
	if err := entry.Validate(); err != nil {
		return nil, &Error{Kind: KindLoad, Op: "load " + path, Err: err}
	}

	artifact := &Artifact{
		Path:   path,
		Entry:  entry,
		module: mod,
	}
	l.loaded[path] = artifact

	l.logger.Info("artifact loaded",
		zap.String("path", path),
		zap.String("service", entry.Name),
		zap.Int("abi_version", entry.ABIVersion))

	return artifact, nil
}

// Loaded returns the paths loaded so far in sorted order.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths := make([]string, 0, len(l.loaded))
	for path := range l.loaded {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
