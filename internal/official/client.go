package official

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Upstream location of the official interest-rate calculator.
const (
	DefaultHost     = "www.justiciachaco.gov.ar"
	DefaultCalcPath = "/sistemas/calcula_tasas/calculadora_v2/"

	// The upstream is a slow legacy system; both legs share one generous
	// fixed timeout and there are no retries at this layer.
	upstreamTimeout = 25 * time.Second
)

// browserUserAgent mimics a desktop Chrome session. The upstream serves a
// reduced page (and sometimes a block page) to non-browser agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// PageResponse is one upstream round trip's outcome.
type PageResponse struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Client performs the raw GET/POST round trips against the calculator.
// It is stateless transport: cookies are passed explicitly per call, never
// stored, so two calculations can never share a session by accident.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upstream client for the given host and path.
// Empty arguments select the production calculator.
func NewClient(host, calcPath string) *Client {
	if host == "" {
		host = DefaultHost
	}
	if calcPath == "" {
		calcPath = DefaultCalcPath
	}
	return &Client{
		baseURL: "https://" + host + calcPath,
		httpClient: &http.Client{
			Timeout: upstreamTimeout,
			// The legacy app answers a successful POST with the result
			// page directly; a redirect would lose the response body.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// NewClientForURL creates a client against an arbitrary base URL.
// Used by tests to point the engine at an httptest server.
func NewClientForURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: upstreamTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// FetchFormPage GETs the calculator form page without cookies. The
// response carries the rate select, the hidden session fields and the
// Set-Cookie headers a subsequent submission needs.
func (c *Client) FetchFormPage(ctx context.Context) (*PageResponse, error) {
	return c.do(ctx, http.MethodGet, "", "")
}

// SubmitForm POSTs the url-encoded form body with the session's cookie
// header attached.
func (c *Client) SubmitForm(ctx context.Context, body, cookieHeader string) (*PageResponse, error) {
	return c.do(ctx, http.MethodPost, body, cookieHeader)
}

func (c *Client) do(ctx context.Context, method, body, cookieHeader string) (*PageResponse, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Connection", "close")
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, WrapError(KindTimeout, err)
		}
		return nil, fmt.Errorf("%s %s: %w", method, c.baseURL, err)
	}
	defer resp.Body.Close()

	// The legacy app emits ISO-8859-1 without declaring it reliably.
	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(resp.Body))
	if err != nil {
		if isTimeout(err) {
			return nil, WrapError(KindTimeout, err)
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	page := &PageResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(decoded),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewError(HTTPStatusKind(resp.StatusCode))
	}
	return page, nil
}

// isTimeout recognizes deadline-style transport failures so they surface
// under the TIMEOUT kind instead of hanging semantics on the caller.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
