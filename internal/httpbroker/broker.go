package httpbroker

import "context"

// Backend is the single capability guests see: execute one request and
// get back either a Response or a ResponseError. A Backend implementation
// never returns a Go error from Request for HTTP-shaped failures — those
// become ResponseError values per spec §4.1's failure semantics.
type Backend interface {
	Request(ctx context.Context, req Request) (*Response, *ResponseError)
}

// Broker is the C1 capability as exposed to the Host Capability Table
// (C2): a thin wrapper selecting between the Direct and Rendered
// backends, configured once at host init.
type Broker struct {
	backend Backend
}

// New wraps a Backend (Direct or Rendered) as the host's HTTP broker.
func New(backend Backend) *Broker {
	return &Broker{backend: backend}
}

// Request executes req against the configured backend.
func (b *Broker) Request(ctx context.Context, req Request) (*Response, *ResponseError) {
	return b.backend.Request(ctx, req)
}
