// File: registry/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Module discovery: every regular file in a flat directory is opened as a Go
// plugin and must export the three lifecycle entry points
//
//	func Load() int32
//	func Work(item *api.WorkItem)
//	func Unload() int32
//
// Discovery is all-or-nothing. Any unreadable directory, unopenable file or
// missing entry point fails the whole operation and no module list is returned.

package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"plugin"

	"github.com/momentics/hioload-modhost/api"
)

// Entry point names resolved in every module file.
const (
	SymbolLoad   = "Load"
	SymbolWork   = "Work"
	SymbolUnload = "Unload"
)

var (
	ErrModuleDir     = errors.New("registry: module directory unavailable")
	ErrOpenFailed    = errors.New("registry: module open failed")
	ErrMissingSymbol = errors.New("registry: missing symbol")
	ErrSymbolType    = errors.New("registry: symbol has unexpected type")
)

// SymbolError identifies the module file and entry point that failed to resolve.
type SymbolError struct {
	Path   string
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%v: %s in %s", e.Err, e.Symbol, e.Path)
}

func (e *SymbolError) Unwrap() error { return e.Err }

// SymbolTable is an opened module unit.
type SymbolTable interface {
	Lookup(name string) (plugin.Symbol, error)
}

// Opener opens the module unit at path.
type Opener func(path string) (SymbolTable, error)

// PluginOpener opens path with the Go plugin loader. Plugins are never
// closed, so the returned handle outlives every resolved entry point.
func PluginOpener(path string) (SymbolTable, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Entry is a loaded module together with where it came from.
type Entry struct {
	Name   string
	Path   string
	Module api.Module
}

// ModuleList holds modules in directory enumeration order. Serving must not
// depend on this order.
type ModuleList []Entry

// Static wraps a module compiled into the host binary. Such modules skip
// dynamic loading entirely and are fixed at build time.
func Static(name string, m api.Module) Entry {
	return Entry{Name: name, Module: m}
}

// Option configures a Registry.
type Option func(*Registry)

// WithOpener replaces the plugin loader.
func WithOpener(open Opener) Option {
	return func(r *Registry) { r.open = open }
}

// WithLogger sets the logger used for discovery messages.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// Registry discovers modules in a directory.
type Registry struct {
	open Opener
	log  *log.Logger
}

// New creates a Registry using the Go plugin loader.
func New(opts ...Option) *Registry {
	r := &Registry{
		open: PluginOpener,
		log:  log.New(log.Writer(), "[registry] ", log.LstdFlags),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Discover loads every module found in dir with the default registry.
func Discover(dir string) (ModuleList, error) {
	return New().Discover(dir)
}

// Discover loads every regular file in dir as a module. Subdirectories are not
// visited and file names are not filtered.
func (r *Registry) Discover(dir string) (ModuleList, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModuleDir, err)
	}

	var list ModuleList
	for _, de := range entries {
		if !de.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, de.Name())
		m, err := r.load(path)
		if err != nil {
			return nil, err
		}
		list = append(list, Entry{Name: de.Name(), Path: path, Module: m})
		r.log.Printf("loaded module %s", path)
	}
	return list, nil
}

func (r *Registry) load(path string) (*pluginModule, error) {
	table, err := r.open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}

	m := &pluginModule{name: filepath.Base(path), handle: table}
	if m.load, err = resolve[func() int32](table, path, SymbolLoad); err != nil {
		return nil, err
	}
	if m.work, err = resolve[func(*api.WorkItem)](table, path, SymbolWork); err != nil {
		return nil, err
	}
	if m.unload, err = resolve[func() int32](table, path, SymbolUnload); err != nil {
		return nil, err
	}
	return m, nil
}

// resolve looks up name and converts it to F. Exported functions and
// exported variables holding a function are both accepted.
func resolve[F any](table SymbolTable, path, name string) (F, error) {
	var zero F
	sym, err := table.Lookup(name)
	if err != nil || sym == nil {
		return zero, &SymbolError{Path: path, Symbol: name, Err: ErrMissingSymbol}
	}
	switch fn := sym.(type) {
	case F:
		return fn, nil
	case *F:
		if fn != nil {
			return *fn, nil
		}
	}
	return zero, &SymbolError{Path: path, Symbol: name, Err: ErrSymbolType}
}

// pluginModule adapts resolved entry points to api.Module.
type pluginModule struct {
	name   string
	handle SymbolTable

	load   func() int32
	work   func(*api.WorkItem)
	unload func() int32
}

func (m *pluginModule) Load() api.Port { return api.Port(m.load()) }

func (m *pluginModule) HandleConnection(item *api.WorkItem) { m.work(item) }

func (m *pluginModule) Unload() error {
	if status := m.unload(); status != 0 {
		return &api.UnloadStatusError{Module: m.name, Status: status}
	}
	return nil
}
