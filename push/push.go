package push

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultGateway is used when no gateway URL is configured.
const DefaultGateway = "http://localhost:9091"

// Client pushes metric snapshots for one job (and optional grouping key) to a
// Pushgateway. All of its state — derived URL, credentials, serializer and
// the persistent HTTP client — is fixed at construction.
//
// A mutex serializes Add, Replace and Delete on one Client for the full
// request/response round trip, so at most one exchange is ever in flight per
// instance. Distinct Clients are independent of each other.
type Client struct {
	job         string
	groupingKey map[string]string
	url         *url.URL // derived push URL, userinfo stripped
	hasAuth     bool
	username    string
	password    string
	serializer  Serializer
	http        *http.Client

	mu sync.Mutex
}

type options struct {
	gateway     string
	groupingKey map[string]string
	openTimeout time.Duration
	readTimeout time.Duration
	serializer  Serializer
	tlsConfig   *tls.Config
}

// Option configures a Client at construction.
type Option func(*options)

// WithGateway sets the base gateway URL. The scheme must be http or https.
// Credentials embedded in the URL are sent as HTTP basic auth and never
// appear in the derived push URL.
func WithGateway(gateway string) Option {
	return func(o *options) { o.gateway = gateway }
}

// WithGrouping adds one grouping-key label. Repeatable; a repeated label name
// keeps the last value.
func WithGrouping(name, value string) Option {
	return func(o *options) {
		if o.groupingKey == nil {
			o.groupingKey = make(map[string]string)
		}
		o.groupingKey[name] = value
	}
}

// WithGroupingKey merges every entry of key into the grouping key.
func WithGroupingKey(key map[string]string) Option {
	return func(o *options) {
		if o.groupingKey == nil {
			o.groupingKey = make(map[string]string, len(key))
		}
		for name, value := range key {
			o.groupingKey[name] = value
		}
	}
}

// WithTimeouts overrides the connection-open and response-read timeouts. The
// open timeout bounds dialing, the read timeout bounds waiting for the
// gateway's response headers. Zero keeps the transport default (no limit).
func WithTimeouts(open, read time.Duration) Option {
	return func(o *options) {
		o.openTimeout = open
		o.readTimeout = read
	}
}

// WithSerializer replaces the default text-exposition serializer.
func WithSerializer(s Serializer) Option {
	return func(o *options) { o.serializer = s }
}

// WithTLSConfig passes a TLS configuration through to the HTTP transport.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) { o.tlsConfig = cfg }
}

// New builds a Client for job. The gateway defaults to DefaultGateway and the
// grouping key to empty. Fails with ErrInvalidArgument on an empty job or a
// malformed or non-http(s) gateway URL, and with ErrInvalidLabelSet on a bad
// grouping-key label. No network I/O happens here; the first request is sent
// by the first Add, Replace or Delete call.
func New(job string, opts ...Option) (*Client, error) {
	if job == "" {
		return nil, fmt.Errorf("%w: job name must not be empty", ErrInvalidArgument)
	}

	o := options{gateway: DefaultGateway, serializer: NewTextSerializer()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateGroupingKey(o.groupingKey); err != nil {
		return nil, err
	}

	u, err := url.Parse(o.gateway + buildPath(job, o.groupingKey))
	if err != nil {
		return nil, fmt.Errorf("%w: parse gateway URL %q: %v", ErrInvalidArgument, o.gateway, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: gateway URL %q: scheme must be http or https", ErrInvalidArgument, o.gateway)
	}

	c := &Client{
		job:         job,
		groupingKey: o.groupingKey,
		url:         u,
		serializer:  o.serializer,
		http:        newHTTPClient(o),
	}
	if u.User != nil {
		c.hasAuth = true
		c.username = u.User.Username()
		c.password, _ = u.User.Password()
		u.User = nil
	}
	return c, nil
}

// newHTTPClient builds the one persistent HTTP client shared by all calls on
// a Client. Redirects are not followed: the gateway never legitimately
// redirects a push, so a 3xx must reach the classifier instead of being
// chased by the transport.
func newHTTPClient(o options) *http.Client {
	dialer := &net.Dialer{Timeout: o.openTimeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: o.readTimeout,
			TLSClientConfig:       o.tlsConfig,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// URL returns the derived push URL with credentials stripped.
func (c *Client) URL() string { return c.url.String() }

// Add merges the source's metrics into what the gateway holds for this job
// and grouping key (HTTP POST).
func (c *Client) Add(ctx context.Context, src MetricsSource) error {
	return c.push(ctx, http.MethodPost, src)
}

// Replace overwrites everything the gateway holds for this job and grouping
// key with the source's metrics (HTTP PUT).
func (c *Client) Replace(ctx context.Context, src MetricsSource) error {
	return c.push(ctx, http.MethodPut, src)
}

// Delete removes all metrics for this job and grouping key from the gateway
// (HTTP DELETE). Nothing is gathered or validated.
func (c *Client) Delete(ctx context.Context) error {
	return c.send(ctx, http.MethodDelete, nil)
}

func (c *Client) push(ctx context.Context, method string, src MetricsSource) error {
	mfs, err := src.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	if err := c.checkCollisions(mfs); err != nil {
		return err
	}
	body, err := c.serializer.Marshal(mfs)
	if err != nil {
		return fmt.Errorf("serialize metrics: %w", err)
	}
	if body == nil {
		// An empty source still pushes a payload: a Replace with no families
		// must clear the group, with the content type set, not turn into a
		// bodyless request.
		body = []byte{}
	}
	return c.send(ctx, method, body)
}

// send performs one exchange with the gateway. The lock is held from request
// build through response classification, so concurrent calls on the same
// Client never interleave on the wire.
func (c *Client) send(ctx context.Context, method string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url.String(), r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", c.serializer.ContentType())
	}
	if c.hasAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures (refused connection, timeout) pass through
		// unclassified.
		return fmt.Errorf("%s %s: %w", method, c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w", method, c.url, newStatusError(resp))
	}
	// Drain the (empty) success body so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
