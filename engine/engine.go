// Package engine is the embeddable front door to the augo pipeline:
// lexer -> parser -> ir -> code -> vm, wrapped behind the same lifecycle
// shape as aug_startup/aug_shutdown/aug_register/aug_execute/aug_eval/
// aug_call/aug_save_state/aug_load_state in original_source/aug.h,
// rewritten as Go methods on an *Engine instead of a vm pointer threaded
// through free functions.
package engine

import (
	"fmt"
	"os"

	"github.com/dr8co/augo/code"
	"github.com/dr8co/augo/extension"
	"github.com/dr8co/augo/input"
	"github.com/dr8co/augo/ir"
	"github.com/dr8co/augo/lexer"
	"github.com/dr8co/augo/parser"
	"github.com/dr8co/augo/value"
	"github.com/dr8co/augo/vm"
)

// Engine owns one host extension registry and the global variable state
// scripts loaded through it accumulate, mirroring aug_vm's lifetime.
type Engine struct {
	registry *extension.Registry
	globals  []value.Value

	// scripts maps a loaded/imported script's path to its compiled form,
	// so Unload and repeat imports don't recompile.
	scripts map[string]*Script
}

// Script is a compiled, loadable unit: the result of Load or an
// import statement, kept around so Call/Unload can reference it later
// (aug_script in original_source/aug.h).
type Script struct {
	Path     string
	Bytecode *code.Bytecode
}

// State is a snapshot of an Engine's global variable table, the
// equivalent of aug_vm_exec_state, used by SaveState/LoadState to
// suspend and resume execution (spec.md §6.3).
type State struct {
	globals []value.Value
}

// Startup constructs an Engine with dynamic libraries loaded from loadDir
// (pass "" to disable dynamic loading entirely).
func Startup(loadDir string) *Engine {
	return &Engine{
		registry: extension.NewRegistry(loadDir),
		scripts:  make(map[string]*Script),
	}
}

// Shutdown releases every global value the engine is still holding.
func (e *Engine) Shutdown() {
	for _, g := range e.globals {
		value.Decref(g)
	}
	e.globals = nil
	e.scripts = nil
}

// Register installs a native function under name, callable from any
// script run through this engine (spec.md §6.2).
func (e *Engine) Register(name string, fn extension.Func) {
	e.registry.Register(name, fn)
}

// RegisterTable installs every entry of table at once (the shape the
// stdlib/testkit, stdlib/mathlib, and stdlib/printlib packages export).
func (e *Engine) RegisterTable(table map[string]extension.Func) {
	e.registry.RegisterTable(table)
}

// Unregister removes a previously registered native function.
func (e *Engine) Unregister(name string) {
	e.registry.Unregister(name)
}

// compile runs the full lexer -> parser -> ir pipeline over source and
// returns the resulting bytecode, or the first error encountered.
func compile(name, source string) (*code.Bytecode, error) {
	in := input.OpenString(name, source)
	l := lexer.New(in)
	p := parser.New(l)
	root := p.ParseRoot()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse error in %s: %s", name, errs[0])
	}

	gen := ir.New()
	bc, err := gen.Generate(root)
	if err != nil {
		return nil, fmt.Errorf("compile error in %s: %w", name, err)
	}
	return bc, nil
}

// scriptLoader adapts Engine.Import to the vm.ScriptLoader interface
// OpImportScript calls into.
type scriptLoader struct{ e *Engine }

func (s scriptLoader) Import(path string) error {
	_, err := s.e.Load(path)
	return err
}

// run compiles and executes bc against the engine's shared globals table,
// returning the VM left standing (so callers can read its final stack
// top) or the first runtime fault.
func (e *Engine) run(bc *code.Bytecode) (*vm.VM, error) {
	machine := vm.New(bc, e.globals, e.registry, scriptLoader{e})
	if err := machine.Run(); err != nil {
		return nil, err
	}
	e.globals = machine.Globals()
	return machine, nil
}

// Execute compiles and runs the script at path, rebooting the engine's
// global state first (aug_execute's "reboot the VM" semantics).
func (e *Engine) Execute(path string) error {
	//nolint:gosec // operator-supplied script path, not user input over a network boundary
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("engine: read %s: %w", path, err)
	}
	bc, err := compile(path, string(src))
	if err != nil {
		return err
	}
	for _, g := range e.globals {
		value.Decref(g)
	}
	e.globals = nil
	_, err = e.run(bc)
	return err
}

// Eval compiles and runs a single snippet of source against the engine's
// existing global state (rather than rebooting it), returning the value
// left on top of the stack. This is what the REPL uses for incremental
// evaluation (spec.md §6.3 Eval).
func (e *Engine) Eval(source string) (value.Value, error) {
	bc, err := compile("<eval>", source)
	if err != nil {
		return value.Value{}, err
	}
	machine, err := e.run(bc)
	if err != nil {
		return value.Value{}, err
	}
	return machine.StackTop(), nil
}

// Load compiles, executes, and keeps path's globals resident in the
// engine so Call can later invoke its functions (aug_load).
func (e *Engine) Load(path string) (*Script, error) {
	if s, ok := e.scripts[path]; ok {
		return s, nil
	}
	//nolint:gosec // operator-supplied script path
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", path, err)
	}
	bc, err := compile(path, string(src))
	if err != nil {
		return nil, err
	}
	if _, err := e.run(bc); err != nil {
		return nil, err
	}
	script := &Script{Path: path, Bytecode: bc}
	e.scripts[path] = script
	return script, nil
}

// Unload discards a script loaded with Load. It does not currently reclaim
// the script's global slots (they may be shared/renumbered across scripts
// loaded into the same engine), only forgets the Script handle so a later
// Load recompiles from disk.
func (e *Engine) Unload(script *Script) {
	delete(e.scripts, script.Path)
}

// Call invokes funcName, one of script's top-level functions, with args
// (aug_call_args).
func (e *Engine) Call(script *Script, funcName string, args ...value.Value) (value.Value, error) {
	var fnIdx = -1
	for i, fn := range script.Bytecode.Functions {
		if fn.Name == funcName {
			fnIdx = i
			break
		}
	}
	if fnIdx < 0 {
		return value.Value{}, fmt.Errorf("engine: function %q not defined", funcName)
	}

	machine := vm.New(script.Bytecode, e.globals, e.registry, scriptLoader{e})
	if err := machine.CallEntry(fnIdx, args); err != nil {
		return value.Value{}, err
	}
	e.globals = machine.Globals()
	return machine.StackTop(), nil
}

// SaveState snapshots the engine's current global variable table.
func (e *Engine) SaveState() *State {
	snap := make([]value.Value, len(e.globals))
	for i, g := range e.globals {
		value.Incref(g)
		snap[i] = g
	}
	return &State{globals: snap}
}

// LoadState restores a previously saved global variable table, releasing
// whatever state the engine currently holds.
func (e *Engine) LoadState(s *State) {
	for _, g := range e.globals {
		value.Decref(g)
	}
	e.globals = s.globals
}
