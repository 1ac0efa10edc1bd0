// Package scoring implements the remote fraud-model client: schema
// discovery and prediction.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/cnoret/fraudpipe/internal/domain"
)

var (
	// ErrUnavailable covers network errors, timeouts and non-2xx statuses
	// from the scoring endpoint.
	ErrUnavailable = errors.New("scoring: endpoint unavailable")
	// ErrInvalidResponse means the endpoint answered something that cannot
	// be repaired into a valid ScoreResult.
	ErrInvalidResponse = errors.New("scoring: invalid response")
)

// Client talks to the model's scoring and schema endpoints.
type Client struct {
	scoreURL  string
	schemaURL string
	httpc     *http.Client
	breaker   *gobreaker.CircuitBreaker[domain.ScoreResult]
}

// NewClient creates a scoring client. scoreURL receives prediction POSTs,
// schemaURL serves the model's expected column sets.
func NewClient(scoreURL, schemaURL string, timeout time.Duration) *Client {
	return &Client{
		scoreURL:  scoreURL,
		schemaURL: schemaURL,
		httpc:     &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[domain.ScoreResult](gobreaker.Settings{
			Name:    "scoring",
			Timeout: 30 * time.Second,
		}),
	}
}

// ExpectedColumns queries the model for the columns it currently requires.
// The ordering contract is numeric columns first, then categorical, which
// the aligner preserves. Failures here are expected to be recovered by the
// caller via its fallback schema, so errors are returned unclassified.
func (c *Client) ExpectedColumns(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.schemaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scoring: building schema request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring: schema request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scoring: schema endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Numeric     []string `json:"expected_numeric"`
		Categorical []string `json:"expected_categorical"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("scoring: decoding schema response: %w", err)
	}
	if len(body.Numeric) == 0 && len(body.Categorical) == 0 {
		return nil, fmt.Errorf("scoring: schema response listed no columns")
	}

	return append(body.Numeric, body.Categorical...), nil
}

// Score sends the aligned payload for prediction and returns a repaired
// ScoreResult. Out-of-range probabilities are clamped and labels coerced to
// {0,1}: the pipeline favors liveness over strictness for values the model
// plainly intended. Only an undecodable body or a missing probability is a
// hard error. No retries here; the scheduler owns retry policy.
func (c *Client) Score(ctx context.Context, payload domain.AlignedPayload) (domain.ScoreResult, error) {
	res, err := c.breaker.Execute(func() (domain.ScoreResult, error) {
		return c.score(ctx, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.ScoreResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, err
}

func (c *Client) score(ctx context.Context, payload domain.AlignedPayload) (domain.ScoreResult, error) {
	reqBody, err := json.Marshal(map[string]interface{}{"data": payload})
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("scoring: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scoreURL, bytes.NewReader(reqBody))
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("scoring: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ScoreResult{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Probability *float64 `json:"probability"`
		Prediction  *float64 `json:"prediction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ScoreResult{}, fmt.Errorf("%w: decoding body: %v", ErrInvalidResponse, err)
	}
	if body.Probability == nil || math.IsNaN(*body.Probability) || math.IsInf(*body.Probability, 0) {
		return domain.ScoreResult{}, fmt.Errorf("%w: probability missing or not a number", ErrInvalidResponse)
	}

	result := domain.ScoreResult{
		Probability: clamp01(*body.Probability),
	}
	if body.Prediction != nil && *body.Prediction != 0 {
		result.Prediction = 1
	}
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
