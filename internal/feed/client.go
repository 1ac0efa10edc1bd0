// Package feed implements the upstream transaction feed client.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/cnoret/fraudpipe/internal/domain"
)

// Failure classes surfaced to the pipeline. Callers match with errors.Is.
var (
	// ErrUnavailable covers network errors, timeouts and non-2xx statuses.
	ErrUnavailable = errors.New("feed: upstream unavailable")
	// ErrMalformed means the body could not be decoded into a tabular record.
	ErrMalformed = errors.New("feed: malformed response")
	// ErrEmpty means the feed answered with zero transactions.
	ErrEmpty = errors.New("feed: no transactions returned")
)

// envelope is the pandas orient=split shape the feed serves:
// {"columns": [...], "data": [[...], ...]}.
type envelope struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

// Client fetches one raw transaction per call from the upstream feed.
type Client struct {
	url     string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[domain.RawTransaction]
}

// NewClient creates a feed client with the given endpoint and per-call
// timeout. Repeated upstream failures trip a circuit breaker so a flapping
// feed fails fast instead of burning the whole run budget on timeouts.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:   url,
		httpc: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[domain.RawTransaction](gobreaker.Settings{
			Name:    "feed",
			Timeout: 30 * time.Second,
		}),
	}
}

// Fetch retrieves the first transaction of the feed's current batch.
// The feed is unordered, so "first" carries no meaning beyond "one".
func (c *Client) Fetch(ctx context.Context) (domain.RawTransaction, error) {
	tx, err := c.breaker.Execute(func() (domain.RawTransaction, error) {
		return c.fetch(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tx, err
}

func (c *Client) fetch(ctx context.Context) (domain.RawTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: building request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, ErrEmpty
	}

	row := env.Data[0]
	tx := make(domain.RawTransaction, len(env.Columns))
	for i, col := range env.Columns {
		if i < len(row) {
			tx[col] = row[i]
		}
	}
	return tx, nil
}

// decodeEnvelope decodes the feed body, tolerating the upstream's habit of
// double-encoding the JSON document as a quoted string. Order of attempts:
// direct decode, decode-of-decoded-string, then manual unquoting.
func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Columns != nil {
		return &env, nil
	}

	var wrapped string
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if err := json.Unmarshal([]byte(wrapped), &env); err == nil && env.Columns != nil {
			return &env, nil
		}
	}

	stripped := strings.TrimSpace(string(body))
	stripped = strings.Trim(stripped, `"`)
	stripped = strings.ReplaceAll(stripped, `\"`, `"`)
	if err := json.Unmarshal([]byte(stripped), &env); err == nil && env.Columns != nil {
		return &env, nil
	}

	return nil, fmt.Errorf("%w: body is not a columns/data document", ErrMalformed)
}
