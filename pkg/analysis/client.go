// Package analysis provides a client for the external facial image-analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/medspa-portal/internal/resilience"
)

// Client runs aesthetic analysis on a patient photo.
type Client interface {
	Analyze(ctx context.Context, req Request) (*Response, error)
}

// Request is the body for POST /analyze.
type Request struct {
	ImageURL  string `json:"image_url"`
	PatientID string `json:"patient_id,omitempty"`
}

// Response is the analysis payload.
type Response struct {
	Issues          []Issue          `json:"issues"`
	OverallScore    float64          `json:"overallScore"`
	Recommendations []Recommendation `json:"recommendations"`
	Areas           []Area           `json:"areas"`
}

// Issue is a single detected finding.
type Issue struct {
	Name        string  `json:"name"`
	Severity    string  `json:"severity,omitempty"`
	Score       float64 `json:"score"`
	Area        string  `json:"area,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Recommendation suggests a treatment for one or more issues.
type Recommendation struct {
	Treatment string   `json:"treatment"`
	Serves    []string `json:"serves,omitempty"`
	Priority  int      `json:"priority,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// UnmarshalJSON accepts both objects and bare treatment names.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = Recommendation{Treatment: name}
		return nil
	}
	type plain Recommendation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Recommendation(p)
	return nil
}

// Area is a facial region with an aggregate score.
type Area struct {
	Name   string   `json:"name"`
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker guards calls with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates an analysis client. apiKey may be empty for
// unauthenticated deployments.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			// Model cold starts are slow.
			Timeout: 90 * time.Second,
		},
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker("analysis", 5, 30*time.Second),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("analysis", "analyze")
	}
	return c
}

func (c *httpClient) Analyze(ctx context.Context, req Request) (*Response, error) {
	if req.ImageURL == "" {
		return nil, eris.New("analysis: image_url is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: marshal request")
	}

	result, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*Response, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Response, error) {
			return c.send(ctx, body)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: analyze")
	}
	return result, nil
}

func (c *httpClient) send(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "analysis: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError("analysis", resp.StatusCode, respBody)
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "analysis: unmarshal response")
	}
	return &result, nil
}
