// Package httpx provides the shared outbound HTTP clients used for tool
// backends and the JSON helpers on top of them. Connections are pooled and
// reused across requests; every call is cancellable through its context.
//
// Two timeout classes exist:
//
//   - [Pool.Short] — controller/tool-grade calls with a bounded deadline
//     (default 45 s).
//   - [Pool.Long]  — long-running synthesis calls with no deadline of their
//     own; cancellation comes exclusively from the request context.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shushunyam/eyeofterror/internal/fault"
)

// DefaultShortTimeout bounds controller and tool calls.
const DefaultShortTimeout = 45 * time.Second

// maxErrorBody caps how much of a non-2xx response body is retained in the
// returned error.
const maxErrorBody = 2048

// Pool holds the two shared outbound clients. Safe for concurrent use.
type Pool struct {
	// Short is the bounded-deadline client for controller and tool calls.
	Short *http.Client

	// Long is the unbounded-but-cancellable client for audio synthesis.
	Long *http.Client
}

// Option is a functional option for configuring a Pool.
type Option func(*Pool)

// WithShortTimeout overrides the deadline of the short-call client.
func WithShortTimeout(d time.Duration) Option {
	return func(p *Pool) {
		p.Short.Timeout = d
	}
}

// NewPool creates a [Pool] with default timeouts. Both clients share Go's
// default transport and therefore one connection pool per scheme/host.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		Short: &http.Client{Timeout: DefaultShortTimeout},
		Long:  &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// PostJSON marshals body, POSTs it to url with client, and returns the raw
// response bytes. Failures are classified per the orchestrator taxonomy:
// fault.Transport for network errors, fault.Timeout for exceeded deadlines,
// fault.Canceled for context cancellation, and fault.HTTPStatus (with the
// downstream code and a body excerpt) for non-2xx responses.
func PostJSON(ctx context.Context, client *http.Client, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("httpx: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("httpx: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := data
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &fault.Error{
			Kind:    fault.HTTPStatus,
			Message: fmt.Sprintf("POST %s returned status %d: %s", url, resp.StatusCode, excerpt),
			Code:    resp.StatusCode,
		}
	}
	return data, nil
}

// classify maps a transport-level error to its taxonomy kind. Deadline and
// cancellation are distinguished via the context and the wrapped error chain.
func classify(ctx context.Context, url string, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled:
		return fault.Wrap(fault.Canceled, err, "POST %s", url)
	case errors.Is(err, context.DeadlineExceeded):
		return fault.Wrap(fault.Timeout, err, "POST %s", url)
	}
	// http.Client.Timeout surfaces as a *url.Error with Timeout() == true.
	var timeouter interface{ Timeout() bool }
	if errors.As(err, &timeouter) && timeouter.Timeout() {
		return fault.Wrap(fault.Timeout, err, "POST %s", url)
	}
	return fault.Wrap(fault.Transport, err, "POST %s", url)
}
