// Package airtable is a thin client for the Airtable REST API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/medspa-portal/internal/resilience"
)

const (
	defaultBaseURL = "https://api.airtable.com/v0"

	// maxBatch is the most records Airtable accepts in one create call.
	maxBatch = 10
)

// ErrNotFound is returned when Airtable answers 404 for a record or table.
var ErrNotFound = eris.New("airtable: not found")

// Client defines the Airtable operations used by this application.
type Client interface {
	List(ctx context.Context, table string, opts ListOptions) ([]Record, error)
	Get(ctx context.Context, table, id string) (*Record, error)
	Create(ctx context.Context, table string, fields []Fields) ([]Record, error)
	Update(ctx context.Context, table, id string, fields Fields) (*Record, error)
	Delete(ctx context.Context, table, id string) error
}

// Record is a single Airtable row.
type Record struct {
	ID          string `json:"id,omitempty"`
	CreatedTime string `json:"createdTime,omitempty"`
	Fields      Fields `json:"fields"`
}

// Sort orders list results by a field.
type Sort struct {
	Field     string
	Direction string // "asc" or "desc"
}

// ListOptions narrows a List call. Zero values are omitted from the query.
type ListOptions struct {
	View            string
	FilterByFormula string
	Sort            []Sort
	Fields          []string
	PageSize        int
	MaxRecords      int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.View != "" {
		q.Set("view", o.View)
	}
	if o.FilterByFormula != "" {
		q.Set("filterByFormula", o.FilterByFormula)
	}
	for i, s := range o.Sort {
		q.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		if s.Direction != "" {
			q.Set(fmt.Sprintf("sort[%d][direction]", i), s.Direction)
		}
	}
	for _, f := range o.Fields {
		q.Add("fields[]", f)
	}
	if o.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(min(o.PageSize, 100)))
	}
	if o.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(o.MaxRecords))
	}
	return q
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL. An empty URL keeps the default.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default 5 req/s throttle. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	token   string
	baseID  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an Airtable client for one base.
func NewClient(token, baseID string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseID:  baseID,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("airtable", "request")
	}
	return c
}

func (c *httpClient) tableURL(table string, id string) string {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

// do sends one request with throttling and retries, decoding a 2xx body into out.
func (c *httpClient) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "airtable: marshal request")
		}
	}

	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "airtable: rate limit")
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return eris.Wrap(err, "airtable: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "airtable: read response")
		}

		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return resilience.NewStatusError("airtable", resp.StatusCode, respBody)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, "airtable: unmarshal response")
		}
		return nil
	})
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// List fetches every record matching opts, following offset pagination.
func (c *httpClient) List(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	var all []Record
	q := opts.query()

	for {
		var page listResponse
		u := c.tableURL(table, "") + "?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, eris.Wrapf(err, "airtable: list %s", table)
		}
		all = append(all, page.Records...)

		if page.Offset == "" || (opts.MaxRecords > 0 && len(all) >= opts.MaxRecords) {
			break
		}
		q.Set("offset", page.Offset)
	}

	if opts.MaxRecords > 0 && len(all) > opts.MaxRecords {
		all = all[:opts.MaxRecords]
	}
	return all, nil
}

func (c *httpClient) Get(ctx context.Context, table, id string) (*Record, error) {
	if id == "" {
		return nil, eris.Wrapf(ErrNotFound, "airtable: get %s: empty id", table)
	}
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, id), nil, &rec); err != nil {
		return nil, eris.Wrapf(err, "airtable: get %s/%s", table, id)
	}
	return &rec, nil
}

type createRequest struct {
	Records  []Record `json:"records"`
	Typecast bool     `json:"typecast"`
}

// Create inserts records in batches of ten, returning them in input order.
func (c *httpClient) Create(ctx context.Context, table string, fields []Fields) ([]Record, error) {
	created := make([]Record, 0, len(fields))
	for start := 0; start < len(fields); start += maxBatch {
		end := min(start+maxBatch, len(fields))

		req := createRequest{Typecast: true}
		for _, f := range fields[start:end] {
			req.Records = append(req.Records, Record{Fields: f})
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodPost, c.tableURL(table, ""), req, &resp); err != nil {
			return created, eris.Wrapf(err, "airtable: create %s (batch at %d)", table, start)
		}
		created = append(created, resp.Records...)
	}
	return created, nil
}

type updateRequest struct {
	Fields   Fields `json:"fields"`
	Typecast bool   `json:"typecast"`
}

// Update patches only the given fields of a record.
func (c *httpClient) Update(ctx context.Context, table, id string, fields Fields) (*Record, error) {
	if id == "" {
		return nil, eris.Wrapf(ErrNotFound, "airtable: update %s: empty id", table)
	}
	var rec Record
	if err := c.do(ctx, http.MethodPatch, c.tableURL(table, id), updateRequest{Fields: fields, Typecast: true}, &rec); err != nil {
		return nil, eris.Wrapf(err, "airtable: update %s/%s", table, id)
	}
	return &rec, nil
}

func (c *httpClient) Delete(ctx context.Context, table, id string) error {
	if id == "" {
		return eris.Wrapf(ErrNotFound, "airtable: delete %s: empty id", table)
	}
	var resp struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, c.tableURL(table, id), nil, &resp); err != nil {
		return eris.Wrapf(err, "airtable: delete %s/%s", table, id)
	}
	if !resp.Deleted {
		return eris.Errorf("airtable: delete %s/%s: not acknowledged", table, id)
	}
	return nil
}

// EscapeFormulaString quotes s for use inside an Airtable formula string literal.
func EscapeFormulaString(s string) string {
	return `"` + formulaEscaper.Replace(s) + `"`
}

var formulaEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
