package source

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Client is the session resource an adapter holds across fetches within one
// sweep: a lazily-created HTTP client plus a polite per-source rate limiter.
// It is not safe for concurrent use; each adapter owns exactly one.
type Client struct {
	mu         sync.Mutex
	httpClient *http.Client
	closed     bool

	limiter   *rate.Limiter
	userAgent string
	timeout   time.Duration
}

// NewClient creates a session client. The underlying HTTP client is created
// on first use, so constructing adapters is free.
func NewClient(userAgent string) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		limiter:   rate.NewLimiter(rate.Limit(2), 4), // 2 req/s per source
		userAgent: userAgent,
		timeout:   15 * time.Second,
	}
}

// session returns the HTTP client, creating it on first use. Reopens after
// Close so a reused adapter keeps working in a later sweep.
func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil || c.closed {
		c.httpClient = &http.Client{Timeout: c.timeout}
		c.closed = false
	}
	return c.httpClient
}

// Get fetches the URL, enforcing the rate limit, checking for a 200, and
// decoding the body to UTF-8 when the response declares another charset
// (RU marketplaces still serve windows-1251).
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "source: build request %s", url)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.session().Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "source: get %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("source: %s returned %d", url, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if cs := responseCharset(resp.Header.Get("Content-Type")); cs != "" && !strings.EqualFold(cs, "utf-8") {
		if enc, err := htmlindex.Get(cs); err == nil && enc != nil {
			body = transform.NewReader(body, enc.NewDecoder())
		} else {
			zap.L().Debug("source: unknown charset, reading raw", zap.String("charset", cs))
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read body %s", url)
	}
	return data, nil
}

// Close releases the session. Idempotent; a later Get transparently opens a
// fresh session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil && !c.closed {
		c.httpClient.CloseIdleConnections()
		c.closed = true
	}
	return nil
}

func responseCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
