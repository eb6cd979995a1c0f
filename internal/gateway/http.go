package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/oaktrail/treetrack/internal/common"
	"github.com/oaktrail/treetrack/internal/logging"
)

// transport is the shared HTTP plumbing both backends dispatch through.
// Every request gets the bearer token, a per-request deadline, and the
// retry policy: 5xx responses are retried after a fixed delay up to a
// bounded count, 4xx and transport errors surface immediately.
type transport struct {
	baseURL    string
	token      string
	timeout    time.Duration
	retryCount int
	retryDelay time.Duration
	hc         *http.Client
	log        logging.Logger
}

func newTransport(baseURL, token string, timeout time.Duration, retryCount int, retryDelay time.Duration, log logging.Logger) *transport {
	return &transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    timeout,
		retryCount: retryCount,
		retryDelay: retryDelay,
		hc:         &http.Client{},
		log:        log,
	}
}

// getJSON issues a GET and decodes the JSON response into out.
func (t *transport) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	body, err := t.do(ctx, http.MethodGet, u, nil, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &common.LocalError{Code: "codec", Message: err.Error()}
	}
	return nil
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func (t *transport) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return &common.LocalError{Code: "codec", Message: err.Error()}
	}
	body, err := t.do(ctx, http.MethodPost, t.baseURL+path, data, "application/json", nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &common.LocalError{Code: "codec", Message: err.Error()}
	}
	return nil
}

// postBinary uploads raw bytes, reporting transport progress as the request
// body is consumed. The whole request is retried on 5xx; a retried attempt
// re-reads the body from the start, so reports are clamped to their
// high-water mark and the caller never sees the fraction move backwards.
func (t *transport) postBinary(ctx context.Context, urlStr string, data []byte, headers map[string]string, onProgress ProgressFunc, out any) error {
	if onProgress != nil {
		onProgress = monotone(onProgress)
	}
	opts := &requestOptions{headers: headers, onProgress: onProgress}
	body, err := t.do(ctx, http.MethodPost, urlStr, data, "application/octet-stream", opts)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &common.LocalError{Code: "codec", Message: err.Error()}
	}
	return nil
}

// getBytes downloads a resource by absolute URL.
func (t *transport) getBytes(ctx context.Context, urlStr string) ([]byte, error) {
	return t.do(ctx, http.MethodGet, urlStr, nil, "", nil)
}

type requestOptions struct {
	headers    map[string]string
	onProgress ProgressFunc
}

// do sends one logical request, retrying the same request on 5xx.
func (t *transport) do(ctx context.Context, method, urlStr string, payload []byte, contentType string, opts *requestOptions) ([]byte, error) {
	backoff := retry.WithMaxRetries(uint64(t.retryCount), retry.NewConstant(t.retryDelay))

	var result []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, err := t.doOnce(ctx, method, urlStr, payload, contentType, opts)
		if err != nil {
			var re *common.RemoteError
			if errors.As(err, &re) && re.Retryable() {
				t.log.Warn(ctx, "retrying after server error", "method", method, "url", urlStr, "status", re.Status)
				return retry.RetryableError(err)
			}
			return err
		}
		result = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *transport) doOnce(ctx context.Context, method, urlStr string, payload []byte, contentType string, opts *requestOptions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
		if opts != nil && opts.onProgress != nil {
			reqBody = &progressReader{r: reqBody, total: int64(len(payload)), on: opts.onProgress}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, &common.LocalError{Code: "request", Message: err.Error()}
	}
	if payload != nil {
		req.ContentLength = int64(len(payload))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if opts != nil {
		for k, v := range opts.headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := t.hc.Do(req)
	if err != nil {
		if cancelled(ctx, err) {
			return nil, common.ErrCancelled
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if cancelled(ctx, err) {
			return nil, common.ErrCancelled
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &common.RemoteError{Status: resp.StatusCode, Message: truncate(string(body), 500)}
	}
	return body, nil
}

// cancelled distinguishes an explicit cancellation from a transport failure.
// A deadline expiry is a failure, not a cancellation.
func cancelled(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return ctx.Err() == context.Canceled
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// monotone drops progress reports below the highest fraction already
// delivered. Attempts run sequentially, so no locking is needed.
func monotone(on ProgressFunc) ProgressFunc {
	var highWater float64
	return func(f float64) {
		if f < highWater {
			return
		}
		highWater = f
		on(f)
	}
}

// progressReader counts bytes consumed from the request body and reports
// the fraction completed.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	on    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.total > 0 {
			p.on(float64(p.read) / float64(p.total))
		}
	}
	return n, err
}
