package httpbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/inkbound/novelhost/internal/model"
)

// Rendered drives a headless browser for extensions that need JS-rendered
// content. On GET it navigates and waits for the page (or a selector) to
// appear, then returns the rendered document HTML. On non-GET it first
// navigates to the URL's origin to establish cookies, then evaluates an
// inline fetch() expression inside the page.
//
// The browser's response headers come back as a JS object, which loses
// multi-valued header semantics (spec §9 Open Question 1) — values for a
// repeated header name are joined with ", " before being split back into
// the ordered KV form the rest of the broker uses.
type Rendered struct {
	allocatorOpts []chromedp.ExecAllocatorOption
}

// NewRendered builds a Rendered backend using chromedp's default
// headless Chrome allocator options.
func NewRendered() *Rendered {
	return &Rendered{allocatorOpts: chromedp.DefaultExecAllocatorOptions[:]}
}

// Request implements Backend.
func (r *Rendered) Request(ctx context.Context, req Request) (*Response, *ResponseError) {
	timeout := defaultTimeout
	if req.TimeoutMillis > 0 {
		timeout = time.Duration(req.TimeoutMillis) * time.Millisecond
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocatorOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, timeout)
	defer timeoutCancel()

	if req.Method == MethodGet {
		return r.get(browserCtx, req)
	}
	return r.fetch(browserCtx, req)
}

func (r *Rendered) get(ctx context.Context, req Request) (*Response, *ResponseError) {
	waitSelector := req.WaitForElement
	if waitSelector == "" {
		waitSelector = "body"
	}

	var html string
	err := chromedp.Run(ctx,
		chromedp.Navigate(withParams(req.URL, req.Params)),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, classifyChromeError(err)
	}

	return &Response{Status: 200, Body: []byte(html)}, nil
}

// jsFetchResult mirrors the shape evaluated fetch() returns from the page.
type jsFetchResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func (r *Rendered) fetch(ctx context.Context, req Request) (*Response, *ResponseError) {
	origin := model.MakeAbsoluteURL("/", req.URL)

	expr, err := buildFetchExpression(req)
	if err != nil {
		return nil, &ResponseError{Kind: ErrKindBody, Message: err.Error()}
	}

	var raw string
	runErr := chromedp.Run(ctx,
		chromedp.Navigate(origin),
		chromedp.Evaluate(expr, &raw, awaitPromise),
	)
	if runErr != nil {
		return nil, classifyChromeError(runErr)
	}

	var result jsFetchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &ResponseError{Kind: ErrKindBadResponse, Message: "failed to parse evaluated fetch() result: " + err.Error()}
	}

	headers := make([]KV, 0, len(result.Headers))
	for k, v := range result.Headers {
		// JS headers collapse multi-valued entries into one comma-joined
		// string; split them back to restore the ordered-pair shape.
		for _, part := range strings.Split(v, ", ") {
			headers = append(headers, KV{Key: k, Value: part})
		}
	}

	return &Response{Status: uint16(result.Status), Headers: headers, Body: []byte(result.Body)}, nil
}

func awaitPromise(p *chromedp.EvaluateParams) *chromedp.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func buildFetchExpression(req Request) (string, error) {
	headersObj := "{}"
	if len(req.Headers) > 0 {
		m := map[string]string{}
		for _, h := range req.Headers {
			if existing, ok := m[h.Key]; ok {
				m[h.Key] = existing + ", " + h.Value
			} else {
				m[h.Key] = h.Value
			}
		}
		b, err := json.Marshal(m)
		if err != nil {
			return "", err
		}
		headersObj = string(b)
	}

	bodyLiteral := "undefined"
	if req.Body != nil && req.Body.Raw != nil {
		b, err := json.Marshal(string(req.Body.Raw))
		if err != nil {
			return "", err
		}
		bodyLiteral = string(b)
	}

	url := withParams(req.URL, req.Params)
	urlLiteral, err := json.Marshal(url)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`(async () => {
  const resp = await fetch(%s, { method: %q, headers: %s, body: %s, credentials: "include" });
  const text = await resp.text();
  const headers = {};
  resp.headers.forEach((v, k) => { headers[k] = v; });
  return JSON.stringify({ status: resp.status, headers, body: text });
})()`, string(urlLiteral), req.Method, headersObj, bodyLiteral), nil
}

func classifyChromeError(err error) *ResponseError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "context deadline"):
		return &ResponseError{Kind: ErrKindTimeout, Message: msg}
	default:
		return &ResponseError{Kind: ErrKindOther, Message: msg}
	}
}
