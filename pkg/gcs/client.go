// Package gcs uploads patient media to a Google Cloud Storage bucket through
// the JSON API.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sells-group/medspa-portal/internal/resilience"
)

const (
	defaultUploadBaseURL = "https://storage.googleapis.com/upload/storage/v1"
	defaultPublicBaseURL = "https://storage.googleapis.com"
	scopeReadWrite       = "https://www.googleapis.com/auth/devstorage.read_write"
)

// Uploader stores an object and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (*Object, error)
}

// Object describes an uploaded object.
type Object struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient supplies an already-authorised http.Client, skipping
// credential lookup (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUploadBaseURL overrides the upload endpoint.
func WithUploadBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.uploadBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPublicBaseURL overrides the host used to build public object URLs.
func WithPublicBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.publicBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCredentialsJSON authenticates with a service-account key.
func WithCredentialsJSON(data []byte) Option {
	return func(c *httpClient) {
		c.credentials = data
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	bucket        string
	uploadBaseURL string
	publicBaseURL string
	credentials   []byte
	http          *http.Client
	retry         resilience.RetryConfig
}

// NewClient creates an uploader for bucket. Without WithCredentialsJSON or
// WithHTTPClient, application default credentials are used.
func NewClient(ctx context.Context, bucket string, opts ...Option) (Uploader, error) {
	if bucket == "" {
		return nil, eris.New("gcs: bucket is required")
	}
	c := &httpClient{
		bucket:        bucket,
		uploadBaseURL: defaultUploadBaseURL,
		publicBaseURL: defaultPublicBaseURL,
		retry:         resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}

	if c.http == nil {
		var creds *google.Credentials
		var err error
		if len(c.credentials) > 0 {
			creds, err = google.CredentialsFromJSON(ctx, c.credentials, scopeReadWrite)
		} else {
			creds, err = google.FindDefaultCredentials(ctx, scopeReadWrite)
		}
		if err != nil {
			return nil, eris.Wrap(err, "gcs: load credentials")
		}
		c.http = oauth2.NewClient(ctx, creds.TokenSource)
		c.http.Timeout = 2 * time.Minute
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("gcs", "upload")
	}
	return c, nil
}

type uploadResponse struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// Upload buffers body so a retry can resend it, then performs a simple
// media upload.
func (c *httpClient) Upload(ctx context.Context, name, contentType string, body io.Reader) (*Object, error) {
	if name == "" {
		return nil, eris.New("gcs: object name is required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "gcs: read body")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	q := url.Values{}
	q.Set("uploadType", "media")
	q.Set("name", name)
	endpoint := fmt.Sprintf("%s/b/%s/o?%s", c.uploadBaseURL, url.PathEscape(c.bucket), q.Encode())

	res, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*uploadResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, eris.Wrap(err, "gcs: create request")
		}
		req.Header.Set("Content-Type", contentType)
		req.ContentLength = int64(len(data))

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "gcs: read response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resilience.NewStatusError("gcs", resp.StatusCode, respBody)
		}

		var out uploadResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, eris.Wrap(err, "gcs: unmarshal response")
		}
		return &out, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "gcs: upload %s", name)
	}

	size, _ := strconv.ParseInt(res.Size, 10, 64)
	if size == 0 {
		size = int64(len(data))
	}
	return &Object{
		Bucket:      c.bucket,
		Name:        res.Name,
		ContentType: contentType,
		Size:        size,
		URL:         c.PublicURL(res.Name),
	}, nil
}

// PublicURL returns the public HTTPS URL of an object.
func (c *httpClient) PublicURL(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, strings.Join(segments, "/"))
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectName builds a collision-free object name of the form
// prefix/yyyy/mm/<uuid>-<sanitized filename>.
func ObjectName(prefix, filename string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "upload"
	}
	if len(base) > 80 {
		base = base[len(base)-80:]
	}
	return path.Join(prefix, now.UTC().Format("2006/01"), uuid.NewString()+"-"+strings.ToLower(base))
}
