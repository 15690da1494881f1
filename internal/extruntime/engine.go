// Package extruntime implements the sandboxed Extension Runtime (C3): a
// shared wazero engine that compiles guest WebAssembly modules once and
// instantiates them per extension, wiring the Host Capability Table (C2)
// in as host imports.
//
// wazero has no Component Model support, so the guest ABI here is a
// simpler convention than the original's WIT-generated bindings: every
// exported extension method takes a pointer+length pair describing a
// JSON-encoded argument in guest linear memory and returns a single i64
// packing a result pointer+length. The host writes each argument into a
// buffer it obtains from the guest's exported "alloc" function.
package extruntime

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/inkbound/novelhost/internal/capability"
	"github.com/inkbound/novelhost/internal/errors"
)

// Engine compiles guest modules once and instantiates them many times. A
// single Engine is shared across every running extension instance, and
// so is its "host" module: wazero namespaces instantiated modules by
// name within one Runtime, so the host module linking the Host
// Capability Table (C2) in as imports is built exactly once here and
// every guest's imports resolve against that single instance, rather
// than each Runner trying (and colliding) to instantiate its own
// module also named "host".
type Engine struct {
	runtime wazero.Runtime
	caps    *capability.Table
	bridge  *hostBridge

	mu     sync.Mutex
	panics map[string]*capability.PanicCapture // extensionID -> this guest's capture slot
}

// NewEngine builds an Engine backed by the given capability table,
// instantiating the shared host module immediately.
func NewEngine(ctx context.Context, caps *capability.Table) (*Engine, error) {
	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, errors.Wrap(err, errors.CodeWasmtimeError, "instantiate WASI")
	}

	e := &Engine{
		runtime: runtime,
		caps:    caps,
		panics:  make(map[string]*capability.PanicCapture),
	}
	e.bridge = newHostBridge(caps, e)

	hostBuilder := runtime.NewHostModuleBuilder("host")
	e.bridge.register(hostBuilder)
	if _, err := hostBuilder.Instantiate(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CodeWasmtimeError, "instantiate host module")
	}

	return e, nil
}

// registerPanicCapture installs extensionID's per-guest-instance panic
// slot, looked up by the shared host module's report_panic handler via
// the calling guest module's name.
func (e *Engine) registerPanicCapture(extensionID string, pc *capability.PanicCapture) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panics[extensionID] = pc
}

// unregisterPanicCapture removes extensionID's slot once its Runner is
// closed, so a stale slot can never be mistaken for a live one.
func (e *Engine) unregisterPanicCapture(extensionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.panics, extensionID)
}

func (e *Engine) panicCaptureFor(extensionID string) *capability.PanicCapture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.panics[extensionID]
}

// Close releases every module compiled against this Engine.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile parses and validates guest bytecode without instantiating it,
// so the result can be instantiated without repeating validation.
// NewRunner names each instance after its extension id, so one Engine
// holds at most one live instance per extension id.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, error) {
	mod, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeWasmtimeError, "compile extension module")
	}
	return mod, nil
}

// NewRunner instantiates a compiled module against the Engine's shared
// host module and drives the register_extension+init startup sequence
// every extension must complete before serving calls. Each call gets
// its own PanicCapture, registered under extensionID for the shared
// host module's report_panic handler to find.
func (e *Engine) NewRunner(ctx context.Context, mod wazero.CompiledModule, extensionID string) (*Runner, error) {
	cfg := wazero.NewModuleConfig().WithName(extensionID)
	instance, err := e.runtime.InstantiateModule(ctx, mod, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeWasmtimeError, "instantiate extension module")
	}

	panics := &capability.PanicCapture{}
	e.registerPanicCapture(extensionID, panics)

	r := &Runner{
		extensionID: extensionID,
		instance:    instance,
		engine:      e,
		panics:      panics,
	}

	if fn := instance.ExportedFunction("register_extension"); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			wrapped := r.wrapRuntimeError(fmt.Sprintf("register_extension: %v", err))
			e.unregisterPanicCapture(extensionID)
			return nil, wrapped
		}
	}
	if fn := instance.ExportedFunction("init"); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			wrapped := r.wrapRuntimeError(fmt.Sprintf("init: %v", err))
			e.unregisterPanicCapture(extensionID)
			return nil, wrapped
		}
	}

	return r, nil
}
