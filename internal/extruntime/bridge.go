package extruntime

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/inkbound/novelhost/internal/capability"
	"github.com/inkbound/novelhost/internal/httpbroker"
)

// hostBridge exposes the Host Capability Table (C2) to every guest
// instance as wazero host functions, registered once against the
// Engine's single shared "host" module. Every function follows the same
// convention: read a JSON argument from guest memory at (ptr, len),
// perform the host call, write a JSON result into guest memory (via the
// guest's exported "alloc"), and return the result's (ptr, len) packed
// into a single i64 (ptr<<32 | len). Since one host module instance
// serves every guest, a function that needs to know which extension is
// calling reads the calling module's own name (api.Module.Name(), set
// to the extension id at InstantiateModule time) rather than closing
// over a per-runner value.
type hostBridge struct {
	caps   *capability.Table
	engine *Engine
}

func newHostBridge(caps *capability.Table, engine *Engine) *hostBridge {
	return &hostBridge{caps: caps, engine: engine}
}

func (b *hostBridge) register(builder wazero.HostModuleBuilder) {
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.httpRequest), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64}).
		Export("http_request")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.now), nil, []api.ValueType{api.ValueTypeI64}).
		Export("now_unix_millis")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.trace), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("trace")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.panicked), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("report_panic")
}

func readMemory(mod api.Module, ptr, size uint32) ([]byte, bool) {
	return mod.Memory().Read(ptr, size)
}

// writeResult allocates size bytes in the guest via its exported "alloc"
// function, writes data into that buffer, and returns the packed
// (ptr<<32 | len) result wazero host functions use to return variable
// length data without a shared calling convention for strings.
func writeResult(ctx context.Context, mod api.Module, data []byte) uint64 {
	alloc := mod.ExportedFunction("alloc")
	if alloc == nil {
		return 0
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		return 0
	}
	ptr := uint32(results[0])
	mod.Memory().Write(ptr, data)
	return uint64(ptr)<<32 | uint64(len(data))
}

func (b *hostBridge) httpRequest(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, size := uint32(stack[0]), uint32(stack[1])
	raw, ok := readMemory(mod, ptr, size)
	if !ok {
		stack[0] = 0
		return
	}

	var req httpbroker.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		stack[0] = writeResult(ctx, mod, mustJSON(map[string]string{"error": "bad request encoding"}))
		return
	}

	resp, respErr := b.caps.HTTP.Request(ctx, req)
	var out struct {
		Response *httpbroker.Response      `json:"response,omitempty"`
		Error    *httpbroker.ResponseError `json:"error,omitempty"`
	}
	out.Response, out.Error = resp, respErr
	stack[0] = writeResult(ctx, mod, mustJSON(out))
}

func (b *hostBridge) now(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = uint64(b.caps.Now().UnixMilli())
}

func (b *hostBridge) trace(_ context.Context, mod api.Module, stack []uint64) {
	ptr, size := uint32(stack[0]), uint32(stack[1])
	raw, ok := readMemory(mod, ptr, size)
	if !ok {
		return
	}
	var payload struct {
		Level   capability.TraceLevel `json:"level"`
		Message string                `json:"message"`
		Fields  map[string]string     `json:"fields"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	b.caps.Trace(mod.Name(), payload.Level, payload.Message, payload.Fields)
}

func (b *hostBridge) panicked(_ context.Context, mod api.Module, stack []uint64) {
	ptr, size := uint32(stack[0]), uint32(stack[1])
	raw, ok := readMemory(mod, ptr, size)
	if !ok {
		return
	}
	if pc := b.engine.panicCaptureFor(mod.Name()); pc != nil {
		pc.Capture(string(raw))
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"failed to encode host response"}`)
	}
	return data
}
