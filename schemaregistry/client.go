package schemaregistry

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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	// contentTypeRegistry is the media type of the registry wire protocol.
	contentTypeRegistry = "application/vnd.schemaregistry.v1+json"

	// defaultMaxSchemaSize is the response size cap applied when none is
	// configured. Schemas are small; anything past this is a misbehaving
	// server.
	defaultMaxSchemaSize = 8 << 20

	defaultTimeout = 30 * time.Second
)

// HTTPClient is the Client implementation that talks to a schema registry
// over its REST protocol. It is safe for concurrent use.
//
// HTTPClient does not cache; wrap it with NewCachingClient for that.
type HTTPClient struct {
	baseURL   string
	transport http.RoundTripper
	timeout   time.Duration
	szLimit   int
	sem       *semaphore.Weighted
	userAgent string
	setAuth   func(*http.Request)
	logger    zerolog.Logger
	metrics   *Metrics
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTransport sets the http.RoundTripper used for registry requests. The
// default is http.DefaultTransport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *HTTPClient) { c.transport = transport }
}

// WithTimeout sets the per-request timeout. It applies only when the caller's
// context carries no deadline of its own. Zero disables the timeout. The
// default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) { c.timeout = timeout }
}

// WithBasicAuth sends the given credentials with every request.
func WithBasicAuth(username, password string) Option {
	return func(c *HTTPClient) {
		c.setAuth = func(req *http.Request) { req.SetBasicAuth(username, password) }
	}
}

// WithBearerToken sends the given token with every request. It overrides
// WithBasicAuth and vice versa; the last one wins.
func WithBearerToken(token string) Option {
	return func(c *HTTPClient) {
		c.setAuth = func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
	}
}

// WithMaxParallel limits the number of in-flight registry requests. Zero or
// negative means no limit, which is the default.
func WithMaxParallel(parLimit int) Option {
	return func(c *HTTPClient) {
		if parLimit > 0 {
			c.sem = semaphore.NewWeighted(int64(parLimit))
		} else {
			c.sem = nil
		}
	}
}

// WithMaxSchemaSize is the maximum response size accepted, in bytes. Zero
// restores the default of 8 MiB.
func WithMaxSchemaSize(szLimit int) Option {
	return func(c *HTTPClient) {
		if szLimit > 0 {
			c.szLimit = szLimit
		} else {
			c.szLimit = defaultMaxSchemaSize
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(c *HTTPClient) { c.userAgent = userAgent }
}

// WithLogger sets the logger for request-level debug and warning output. The
// default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *HTTPClient) { c.logger = logger }
}

// WithMetrics attaches a metrics collector. See NewMetrics.
func WithMetrics(metrics *Metrics) Option {
	return func(c *HTTPClient) { c.metrics = metrics }
}

// NewHTTPClient returns an HTTPClient for the registry at baseURL. A baseURL
// without a scheme gets "https://" prepended. The path portion, if any, is
// kept, so registries mounted under a path prefix work.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:   strings.TrimSuffix(ensureScheme(baseURL), "/"),
		transport: http.DefaultTransport,
		timeout:   defaultTimeout,
		szLimit:   defaultMaxSchemaSize,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid registry URL %q: %v", baseURL, err)
	}
	return c, nil
}

func ensureScheme(u string) string {
	if !strings.Contains(u, "://") {
		return "https://" + u
	}
	return u
}

// schemaResponse is the wire form of a GET /schemas/ids/{id} response.
type schemaResponse struct {
	Schema     string      `json:"schema"`
	SchemaType string      `json:"schemaType"`
	References []Reference `json:"references"`
}

// errorResponse is the wire form of a registry error body.
type errorResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// SchemaByID implements Client. It issues a single GET /schemas/ids/{id}
// request, with subject passed through as the ?subject= hint when non-empty.
func (c *HTTPClient) SchemaByID(ctx context.Context, id int, subject string) (Schema, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return Schema{}, err
		}
		defer c.sem.Release(1)
	}
	if c.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
	}

	reqURL := fmt.Sprintf("%s/schemas/ids/%d", c.baseURL, id)
	if subject != "" {
		reqURL += "?subject=" + url.QueryEscape(subject)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return Schema{}, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", contentTypeRegistry)
	req.Header.Set("X-Request-Id", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.setAuth != nil {
		c.setAuth(req)
	}

	logger := c.logger.With().Int("schema_id", id).Str("request_id", requestID).Logger()
	logger.Debug().Str("url", reqURL).Msg("fetching schema")

	start := time.Now()
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		c.metrics.observeFetch(outcomeUnavailable, time.Since(start), -1)
		logger.Warn().Err(err).Msg("registry request failed")
		return Schema{}, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := c.readBody(resp)
	if err != nil {
		c.metrics.observeFetch(outcomeError, time.Since(start), -1)
		return Schema{}, err
	}

	if resp.StatusCode != http.StatusOK {
		err := c.statusError(resp.StatusCode, body)
		outcome := outcomeUnavailable
		if errors.Is(err, ErrSchemaNotFound) {
			outcome = outcomeNotFound
			logger.Debug().Int("status", resp.StatusCode).Msg("schema not found")
		} else {
			logger.Warn().Int("status", resp.StatusCode).Msg("registry returned an error")
		}
		c.metrics.observeFetch(outcome, time.Since(start), -1)
		return Schema{}, err
	}

	var sr schemaResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		c.metrics.observeFetch(outcomeError, time.Since(start), -1)
		return Schema{}, fmt.Errorf("decoding registry response for schema %d: %v", id, err)
	}
	schemaType := SchemaType(sr.SchemaType)
	if schemaType == "" {
		schemaType = TypeAvro
	}
	c.metrics.observeFetch(outcomeOK, time.Since(start), len(sr.Schema))
	logger.Debug().Str("schema_type", string(schemaType)).Int("schema_bytes", len(sr.Schema)).Msg("fetched schema")
	return Schema{
		ID:         id,
		Type:       schemaType,
		Schema:     sr.Schema,
		References: sr.References,
	}, nil
}

// readBody downloads the response, up to the configured size limit, into a
// pooled buffer and returns a copy.
func (c *HTTPClient) readBody(resp *http.Response) ([]byte, error) {
	if resp.ContentLength > int64(c.szLimit) {
		return nil, fmt.Errorf("registry response size %d is larger than limit of %d", resp.ContentLength, c.szLimit)
	}
	buf := bufferPool.Get().(*bytes.Buffer)
	defer bufferPool.Put(buf)
	buf.Reset()
	n, err := buf.ReadFrom(io.LimitReader(resp.Body, int64(c.szLimit+1)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRegistryUnavailable, err)
	}
	if n > int64(c.szLimit) {
		return nil, fmt.Errorf("registry response size is larger than limit of %d", c.szLimit)
	}
	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())
	return body, nil
}

// statusError maps a non-200 response to an error wrapping one of the
// sentinel errors. 404s and bodies carrying the registry's 40403 error code
// mean the id is unknown; everything else means the registry is unusable.
func (c *HTTPClient) statusError(statusCode int, body []byte) error {
	re := &ResponseError{StatusCode: statusCode}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		re.ErrorCode = er.ErrorCode
		re.Message = er.Message
	}
	if statusCode == http.StatusNotFound || re.ErrorCode == errCodeSchemaNotFound {
		return fmt.Errorf("%w: %w", ErrSchemaNotFound, re)
	}
	return fmt.Errorf("%w: %w", ErrRegistryUnavailable, re)
}

var bufferPool = sync.Pool{New: func() interface{} {
	buf := make([]byte, 8192)
	return bytes.NewBuffer(buf)
}}
