package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// maxErrorBody caps how much of a failed upstream response is kept.
	maxErrorBody = 64 << 10

	// GET requests are tried this many times when the failure is retryable.
	getAttempts = 2
)

// retryBackoff is the pause before a repeated GET.
var retryBackoff = 200 * time.Millisecond

// ErrStreamDone may be returned by a LineProcessor to end a stream early without error.
var ErrStreamDone = errors.New("httpclient: stream done")

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a traced client. Streaming callers should pass a zero timeout
// and rely on the request context instead.
func New(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32
	transport.IdleConnTimeout = 90 * time.Second

	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(transport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Host
			}),
		),
	}
}

// Fetch returns the raw body of a 2xx reply.
func Fetch(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body any) ([]byte, error) {
	resp, err := send(ctx, client, method, url, headers, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// SendRequest decodes a 2xx JSON reply into response, which may be nil.
func SendRequest(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body any, response any) error {
	resp, err := send(ctx, client, method, url, headers, body, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type LineProcessor func(line string) error

// StreamRequest reads a server-sent event stream line by line. Blank lines
// and SSE comments are skipped.
func StreamRequest(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body any, processLine LineProcessor) error {
	resp, err := send(ctx, client, method, url, headers, body, "text/event-stream")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if err := processLine(line); err != nil {
			if errors.Is(err, ErrStreamDone) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// send issues the request and turns non-2xx replies into *UpstreamError.
// GETs are retried once on transport errors, 429 and 5xx.
func send(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body any, accept string) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = getAttempts
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(retryBackoff):
			}
		}

		resp, err := once(ctx, client, method, url, headers, payload, accept)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return nil, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if ue, ok := AsUpstream(err); ok {
		return ue.Retryable()
	}
	return true
}

func once(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, payload []byte, accept string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &UpstreamError{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		URL:        url,
	}
}
