package extruntime

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"

	"github.com/inkbound/novelhost/internal/capability"
	"github.com/inkbound/novelhost/internal/errors"
	"github.com/inkbound/novelhost/internal/model"
)

// Runner wraps one instantiated extension, exposing its typed methods and
// folding any trap the engine reports together with whatever panic
// payload the guest most recently reported into a single RuntimeError —
// mirroring the original runtime's practice of never losing the panic
// message behind a generic trap. panics is this Runner's own capture
// slot (per-guest-instance state, grounded on original_source's fresh
// per-Store State{panic_error: None}), not shared with any other Runner.
type Runner struct {
	extensionID string
	instance    api.Module
	engine      *Engine
	panics      *capability.PanicCapture
}

// RuntimeError combines a wazero-level trap with a captured guest panic
// payload, when one was reported before the trap surfaced.
type RuntimeError struct {
	Underlying   error
	CapturedPanic *string
}

func (e *RuntimeError) Error() string {
	if e.CapturedPanic != nil {
		return "extension panicked: " + *e.CapturedPanic
	}
	return e.Underlying.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Underlying }

func (r *Runner) wrapRuntimeError(msg string) *errors.Error {
	rtErr := &RuntimeError{Underlying: errors.NewError(errors.CodeWasmtimeError, msg), CapturedPanic: r.panics.Take()}
	return errors.Wrap(rtErr, errors.CodeRuntimeError, "extension call failed")
}

// Close tears down the guest instance and releases its panic-capture slot.
// The Engine it came from may still serve other runners.
func (r *Runner) Close(ctx context.Context) error {
	r.engine.unregisterPanicCapture(r.extensionID)
	return r.instance.Close(ctx)
}

// callJSON invokes a guest export following the ptr/len-in, packed
// ptr/len-out convention, marshaling arg and unmarshaling the result
// into out.
func (r *Runner) callJSON(ctx context.Context, export string, arg any, out any) error {
	fn := r.instance.ExportedFunction(export)
	if fn == nil {
		return errors.Newf(errors.CodeGuestError, "extension does not export %q", export)
	}

	alloc := r.instance.ExportedFunction("alloc")
	if alloc == nil {
		return errors.NewError(errors.CodeGuestError, "extension does not export alloc")
	}

	payload, err := json.Marshal(arg)
	if err != nil {
		return errors.Wrap(err, errors.CodeDataConversionError, "encode extension call argument")
	}

	allocResult, err := alloc.Call(ctx, uint64(len(payload)))
	if err != nil {
		return r.wrapRuntimeError(err.Error())
	}
	argPtr := uint32(allocResult[0])
	if !r.instance.Memory().Write(argPtr, payload) {
		return errors.NewError(errors.CodeGuestError, "failed to write argument into guest memory")
	}

	results, err := fn.Call(ctx, uint64(argPtr), uint64(len(payload)))
	if err != nil {
		return r.wrapRuntimeError(err.Error())
	}
	if len(results) == 0 {
		return errors.NewError(errors.CodeGuestError, "extension call returned no result")
	}

	packed := results[0]
	resultPtr, resultLen := uint32(packed>>32), uint32(packed)
	raw, ok := r.instance.Memory().Read(resultPtr, resultLen)
	if !ok {
		return errors.NewError(errors.CodeGuestError, "failed to read result from guest memory")
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.CodeDataConversionError, "decode extension call result")
	}
	return nil
}

// guestResult mirrors the envelope every typed extension export wraps
// its payload in, distinguishing a success value from a guest-raised
// domain error without relying on a Go error / trap.
type guestResult[T any] struct {
	Value *T                  `json:"value,omitempty"`
	Error *model.GuestError   `json:"error,omitempty"`
}

// Meta returns the extension's static source metadata.
func (r *Runner) Meta(ctx context.Context) (*model.SourceMeta, error) {
	var meta model.SourceMeta
	if err := r.callJSON(ctx, "meta", struct{}{}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// FetchNovelInfo resolves a novel's metadata and chapter list from its URL.
func (r *Runner) FetchNovelInfo(ctx context.Context, url string) (*model.Novel, error) {
	var result guestResult[model.Novel]
	if err := r.callJSON(ctx, "fetch_novel_info", url, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return result.Value, nil
}

// FetchChapter resolves a single chapter's content from its URL.
func (r *Runner) FetchChapter(ctx context.Context, url string) (*model.ChapterContent, error) {
	var result guestResult[model.ChapterContent]
	if err := r.callJSON(ctx, "fetch_chapter", url, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return result.Value, nil
}

// SimpleSearch runs a free-text search against the extension's source.
func (r *Runner) SimpleSearch(ctx context.Context, query model.SimpleSearchQuery) (*model.SearchResult, error) {
	var result guestResult[model.SearchResult]
	if err := r.callJSON(ctx, "simple_search", query, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return result.Value, nil
}

// ComplexSearch runs a filtered/sorted search against the extension's source.
func (r *Runner) ComplexSearch(ctx context.Context, query model.ComplexSearchQuery) (*model.SearchResult, error) {
	var result guestResult[model.SearchResult]
	if err := r.callJSON(ctx, "complex_search", query, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return result.Value, nil
}
