// Package capability implements the Host Capability Table (C2): the fixed
// set of host functions a sandboxed extension is linked against. It holds
// no extension-specific state; a single Table is shared by every running
// extension and capabilities are distinguished purely by the arguments the
// guest passes (resource handles, keys) rather than by per-guest instances.
package capability

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkbound/novelhost/internal/httpbroker"
)

// ResourceHandle identifies a host-owned resource (currently only HTTP
// response bodies that outlive a single call) visible to a guest.
type ResourceHandle uint64

// ResourceTable hands out opaque handles for host-owned values a guest may
// reference across multiple calls without copying the value itself back
// and forth over the guest/host boundary.
type ResourceTable struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[ResourceHandle]any
}

// NewResourceTable builds an empty table.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{entries: make(map[ResourceHandle]any)}
}

// Put stores a value and returns the handle a guest can use to refer to it.
func (t *ResourceTable) Put(v any) ResourceHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	h := ResourceHandle(t.nextID)
	t.entries[h] = v
	return h
}

// Get retrieves the value behind a handle.
func (t *ResourceTable) Get(h ResourceHandle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[h]
	return v, ok
}

// Drop releases a handle. Guests are expected to drop every handle they
// acquire; the host does not time these out on its own.
func (t *ResourceTable) Drop(h ResourceHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, h)
}

// PanicCapture holds the most recent guest panic payload, if any, so the
// runtime can merge it into a RuntimeError alongside whatever trap the
// engine itself reports. Surfacing the payload clears the slot.
type PanicCapture struct {
	mu      sync.Mutex
	payload *string
}

// Capture records a panic message from the guest. Only the most recent
// payload is kept — a guest that panics more than once per call has
// already left its state undefined.
func (p *PanicCapture) Capture(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := message
	p.payload = &msg
}

// Take returns and clears the captured payload, if any.
func (p *PanicCapture) Take() *string {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload := p.payload
	p.payload = nil
	return payload
}

// Table is the full set of host capabilities linked into every extension
// instance: HTTP, time, structured logging, and resource management.
// Per-guest-instance state — notably the panic-capture slot a Runner
// consults after each call — is deliberately not here; it lives on the
// Runner itself so one extension's captured panic can never be
// attributed to a different extension's concurrently-trapping call.
type Table struct {
	HTTP      *httpbroker.Broker
	Resources *ResourceTable

	log       *slog.Logger
	callCount atomic.Int64
}

// New builds a Table. log receives every guest trace/log call, tagged with
// the extension ID that's calling.
func New(broker *httpbroker.Broker, log *slog.Logger) *Table {
	return &Table{
		HTTP:      broker,
		Resources: NewResourceTable(),
		log:       log,
	}
}

// Now returns the host's wall-clock time, the guest's only source of
// "current time" — extensions never read the system clock directly.
func (t *Table) Now() time.Time {
	return time.Now()
}

// TraceLevel mirrors the small set of severities a guest can emit at.
type TraceLevel string

const (
	TraceDebug TraceLevel = "debug"
	TraceInfo  TraceLevel = "info"
	TraceWarn  TraceLevel = "warn"
	TraceError TraceLevel = "error"
)

// Trace forwards a guest-emitted structured log line to the shared logger,
// tagged with the calling extension's ID.
func (t *Table) Trace(extensionID string, level TraceLevel, message string, fields map[string]string) {
	t.callCount.Add(1)
	args := make([]any, 0, len(fields)*2+2)
	args = append(args, "extension", extensionID)
	for k, v := range fields {
		args = append(args, k, v)
	}
	switch level {
	case TraceDebug:
		t.log.Debug(message, args...)
	case TraceWarn:
		t.log.Warn(message, args...)
	case TraceError:
		t.log.Error(message, args...)
	default:
		t.log.Info(message, args...)
	}
}

// CallCount reports how many Trace calls have been served, mostly useful
// for tests asserting an extension actually logged something.
func (t *Table) CallCount() int64 {
	return t.callCount.Load()
}
