// Package extension implements the engine's host-extension model: native
// Go functions registered under a name and invoked from script code via
// OpCallExt, plus a loader for dynamic libraries built on the "func(argc,
// argv) -> Value" calling convention spec.md §6.2 describes.
//
// The registry lookup is grounded on the teacher's object.Builtins/
// GetBuiltinByName slice-and-lookup pattern (_examples/dr8co-kong/object/
// builtins.go), generalized from a fixed compiled-in list to a registry
// that host programs and dynamically loaded libraries can both populate at
// runtime (_examples/db47h-ngaro/vm's BindInHandler/BindOpcodeHandler
// option pattern for registering host callbacks by name/port).
package extension

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/dr8co/augo/value"
)

// Func is a native function: it receives the arguments a script call
// passed and returns a single result or an error.
type Func func(args []value.Value) (value.Value, error)

// LibraryInit is the symbol every dynamic extension library must export:
// a func() map[string]Func returning the names it wants registered.
// Mirrors aug_register in original_source/aug.h, where a host library
// exposes a single entrypoint the engine calls to populate its registry.
type LibraryInit func() map[string]Func

// Registry holds every native function currently callable from script
// code, whether registered directly by the host program (engine.Register)
// or pulled in from a dynamically loaded library (ImportLib/Load).
type Registry struct {
	mu      sync.RWMutex
	funcs   map[string]Func
	loaded  map[string]bool
	loadDir string
}

// NewRegistry creates an empty registry. loadDir is the directory Load
// searches for "<name>.so" plugin files; an empty loadDir disables
// dynamic loading (Load then always fails), which is the expected
// configuration for engines that only use host-registered extensions.
func NewRegistry(loadDir string) *Registry {
	return &Registry{
		funcs:   make(map[string]Func),
		loaded:  make(map[string]bool),
		loadDir: loadDir,
	}
}

// Register installs fn under name, available to every script running
// against this registry (spec.md §6.2 Register/Unregister).
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Unregister removes name, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, name)
}

// Call looks up name and invokes it with args. It implements vm.Extensions.
func (r *Registry) Call(name string, args []value.Value) (value.Value, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return value.Value{}, fmt.Errorf("extension: no such function %q", name)
	}
	return fn(args)
}

// Load resolves "<loadDir>/<name>.so" as a Go plugin, calls its exported
// "AugoInit" symbol (a LibraryInit), and registers every function it
// returns. It implements vm.Extensions. Loading the same name twice is a
// no-op success, matching aug_import's idempotent re-import semantics.
func (r *Registry) Load(name string) error {
	r.mu.Lock()
	if r.loaded[name] {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if r.loadDir == "" {
		return fmt.Errorf("extension: dynamic loading disabled, cannot load %q", name)
	}

	p, err := plugin.Open(r.loadDir + "/" + name + ".so")
	if err != nil {
		return fmt.Errorf("extension: open %q: %w", name, err)
	}
	sym, err := p.Lookup("AugoInit")
	if err != nil {
		return fmt.Errorf("extension: %q missing AugoInit: %w", name, err)
	}
	initFn, ok := sym.(func() map[string]Func)
	if !ok {
		return fmt.Errorf("extension: %q: AugoInit has the wrong signature", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for fname, fn := range initFn() {
		r.funcs[fname] = fn
	}
	r.loaded[name] = true
	return nil
}

// RegisterTable installs every entry of a static table in one call, the
// shape stdlib's testkit/mathlib/printlib packages export (mirroring the
// teacher's object.Builtins slice-of-structs registration style).
func (r *Registry) RegisterTable(table map[string]Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, fn := range table {
		r.funcs[name] = fn
	}
}
