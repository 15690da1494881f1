package httpbroker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/inkbound/novelhost/internal/ratelimit"
)

// Direct is a synchronous HTTP client backend. It ignores WaitForElement
// (there's no DOM to wait on) beyond the socket-level timeout, and
// assembles multipart bodies per RFC 7578.
type Direct struct {
	client    *http.Client
	limiter   *ratelimit.KeyedRateLimiter
	userAgent string
}

// DirectOption configures a Direct backend.
type DirectOption func(*Direct)

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) DirectOption {
	return func(d *Direct) { d.userAgent = ua }
}

// NewDirect builds a Direct backend with a cookie jar shared across
// requests (so a guest's session cookies survive across calls) and a
// per-host token-bucket limiter bounding requests/sec.
func NewDirect(requestsPerSecond float64, opts ...DirectOption) (*Direct, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	d := &Direct{
		client:    &http.Client{Jar: jar},
		limiter:   ratelimit.New(requestsPerSecond, 1),
		userAgent: "novelhost/1.0",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Request implements Backend.
func (d *Direct) Request(ctx context.Context, req Request) (*Response, *ResponseError) {
	host, err := hostOf(req.URL)
	if err != nil {
		return nil, &ResponseError{Kind: ErrKindBadResponse, Message: err.Error()}
	}
	if err := d.limiter.Wait(ctx, host); err != nil {
		return nil, &ResponseError{Kind: ErrKindOther, Message: err.Error()}
	}

	timeout := defaultTimeout
	if req.TimeoutMillis > 0 {
		timeout = time.Duration(req.TimeoutMillis) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &ResponseError{Kind: ErrKindBody, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), withParams(req.URL, req.Params), body)
	if err != nil {
		return nil, &ResponseError{Kind: ErrKindBadResponse, Message: err.Error()}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("User-Agent", d.userAgent)
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Key, h.Value)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ResponseError{Kind: ErrKindTimeout, Message: "request timed out"}
		}
		if isRedirectError(err) {
			return nil, &ResponseError{Kind: ErrKindRedirect, Message: err.Error()}
		}
		return nil, &ResponseError{Kind: ErrKindOther, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResponseError{Kind: ErrKindBody, Message: err.Error()}
	}

	headers := make([]KV, 0, len(resp.Header))
	for k, vs := range resp.Header {
		for _, v := range vs {
			headers = append(headers, KV{Key: k, Value: v})
		}
	}

	status := uint16(resp.StatusCode)
	return &Response{Status: status, Headers: headers, Body: data}, nil
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

func withParams(rawURL string, params []KV) string {
	if len(params) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for _, p := range params {
		q.Add(p.Key, p.Value)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// encodeBody builds the *http.Request body and Content-Type for either a
// multipart form or a raw byte buffer.
func encodeBody(body *RequestBody) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	if body.Raw != nil {
		return bytes.NewReader(body.Raw), "", nil
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, part := range body.Form {
		if part.IsFile {
			fw, err := w.CreateFormFile(part.Name, part.Filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := fw.Write(part.Binary); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := w.WriteField(part.Name, part.Text); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func isRedirectError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err.Error() == "stopped after 10 redirects"
}
