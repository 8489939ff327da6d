package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spotfix-widget-service/internal/fault"
	"spotfix-widget-service/internal/logger"

	"github.com/andybalholm/brotli"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// DesktopUserAgent is sent on probes that would otherwise be blocked as bot
// traffic.
const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Client issues the outbound HTTP calls for the service. Form POSTs (the
// provisioning API) run through a circuit breaker and rate limiter; GETs are
// one-shot probes configured per call site.
type Client struct {
	apiTimeout time.Duration
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewClient builds a client whose POSTs use apiTimeout.
func NewClient(apiTimeout time.Duration) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ProvisioningAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	// One admin clicking buttons never needs more than this; it exists to
	// keep a stuck UI from hammering the provisioning API.
	limiter := rate.NewLimiter(rate.Limit(2), 5)

	return &Client{
		apiTimeout: apiTimeout,
		breaker:    breaker,
		limiter:    limiter,
	}
}

// PostForm sends a form-encoded POST and decodes the JSON response. A
// non-empty "error" field in the body is surfaced as an application fault
// even on HTTP 200. Only application faults carry the remote's own message;
// everything else is normalized.
func (c *Client) PostForm(ctx context.Context, rawURL string, fields map[string]string) (map[string]interface{}, error) {
	tracer := otel.Tracer("remote-client")
	ctx, span := tracer.Start(ctx, "remote.post_form")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", rawURL))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "request rate limited: %v", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.postFormOnce(ctx, rawURL, fields)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("breaker.open", true))
			return nil, fault.Wrap(fault.KindTransport, err, "provisioning API temporarily unavailable, try again later")
		}
		span.SetAttributes(attribute.String("error.kind", string(fault.KindOf(err))))
		return nil, err
	}

	return result.(map[string]interface{}), nil
}

func (c *Client) postFormOnce(ctx context.Context, rawURL string, fields map[string]string) (map[string]interface{}, error) {
	form := url.Values{}
	for key, value := range fields {
		form.Set(key, value)
	}

	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "invalid request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "%v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "failed to read response: %v", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil || data == nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fault.Application("API returned status %d", resp.StatusCode)
		}
		return nil, fault.Application("Invalid response from API.")
	}

	if msg := errorField(data); msg != "" {
		return nil, fault.Application("%s", msg)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fault.Application("API returned status %d", resp.StatusCode)
	}

	return data, nil
}

// errorField extracts a non-empty error message from a decoded body.
func errorField(data map[string]interface{}) string {
	raw, ok := data["error"]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
		return "API error"
	default:
		return ""
	}
}

// GetOptions configures a single probe.
type GetOptions struct {
	Timeout       time.Duration
	MaxRedirects  int
	SkipTLSVerify bool
	UserAgent     string
}

// GetResult is the transport-level outcome of a probe. Callers decide what
// the status code means.
type GetResult struct {
	StatusCode int
	Body       string
}

// Get fetches rawURL with the given options and returns the status and the
// decoded body. Transport failures come back as transport faults; any HTTP
// status is a successful transport.
func (c *Client) Get(ctx context.Context, rawURL string, opts GetOptions) (*GetResult, error) {
	tracer := otel.Tracer("remote-client")
	ctx, span := tracer.Start(ctx, "remote.get")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", rawURL))

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	transport := &http.Transport{
		DisableCompression: false,
	}
	if opts.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > opts.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "invalid request: %v", err)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}

	resp, err := client.Do(req)
	if err != nil {
		span.SetAttributes(attribute.Bool("transport.error", true))
		return nil, fault.Wrap(fault.KindTransport, err, "%v", err)
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "failed to read response body: %v", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return &GetResult{StatusCode: resp.StatusCode, Body: body}, nil
}

// decodeBody reads the response handling brotli and non-UTF-8 charsets. Gzip
// is decompressed by the transport; brotli is not.
func decodeBody(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}

	var reader io.Reader = bytes.NewReader(raw)
	if strings.Contains(resp.Header.Get("Content-Encoding"), "br") {
		decompressed, err := io.ReadAll(brotli.NewReader(reader))
		if err == nil {
			raw = decompressed
		}
		reader = bytes.NewReader(raw)
	}

	contentType := resp.Header.Get("Content-Type")
	if utf8Reader, err := charset.NewReader(reader, contentType); err == nil {
		if decoded, err := io.ReadAll(utf8Reader); err == nil && len(decoded) > 0 {
			return string(decoded), nil
		}
	}

	return string(raw), nil
}
