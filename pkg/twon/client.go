package twon

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/icholy/digest"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/elektronisch/go2n/internal/logging"
	"github.com/elektronisch/go2n/internal/metrics"
	"github.com/elektronisch/go2n/internal/version"
)

const (
	// apiRoot prefixes every endpoint path
	apiRoot = "api/"

	tracerName = "github.com/elektronisch/go2n/pkg/twon"
)

// Client executes requests against one device's HTTP API. It holds no
// device state; every call is independent.
type Client struct {
	opts       ConnectionOptions
	httpClient *http.Client
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewClient creates a request pipeline for opts. A nil httpClient gets a
// dedicated transport; a nil logger uses the package-level logger.
//
// For HTTPS the base transport must be an *http.Transport so the TLS policy
// of opts can be applied; any other RoundTripper is rejected.
func NewClient(opts ConnectionOptions, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}
	hc, err := buildHTTPClient(opts, httpClient)
	if err != nil {
		return nil, err
	}
	return &Client{
		opts:       opts,
		httpClient: hc,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// buildHTTPClient applies the TLS policy and, for digest auth, wraps the
// transport in a digest round tripper. Basic auth is added per request.
func buildHTTPClient(opts ConnectionOptions, base *http.Client) (*http.Client, error) {
	var client http.Client
	if base != nil {
		client = *base
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	if opts.Protocol() == ProtocolHTTPS {
		t, ok := transport.(*http.Transport)
		if !ok {
			return nil, NewValidationError(fmt.Sprintf(
				"https needs an *http.Transport to apply the TLS policy, got %T", transport))
		}
		t = t.Clone()
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{}
		}
		t.TLSClientConfig.InsecureSkipVerify = !opts.TLSVerify()
		transport = t
	}

	if opts.HasCredentials() && opts.AuthMethod() == AuthDigest {
		transport = &digest.Transport{
			Username:  opts.username,
			Password:  opts.password,
			Transport: transport,
		}
	}

	client.Transport = transport
	return &client, nil
}

// Options returns the connection options the client was built with
func (c *Client) Options() ConnectionOptions {
	return c.opts
}

type requestConfig struct {
	method  string
	timeout time.Duration
	query   url.Values
	body    any
}

// RequestOption adjusts a single Execute call
type RequestOption func(*requestConfig)

// WithMethod sets the HTTP method (default GET)
func WithMethod(method string) RequestOption {
	return func(r *requestConfig) { r.method = method }
}

// WithRequestTimeout overrides the connection's default timeout for one call
func WithRequestTimeout(timeout time.Duration) RequestOption {
	return func(r *requestConfig) { r.timeout = timeout }
}

// WithQuery adds query parameters
func WithQuery(query url.Values) RequestOption {
	return func(r *requestConfig) { r.query = query }
}

// WithJSONBody sends body encoded as JSON
func WithJSONBody(body any) RequestOption {
	return func(r *requestConfig) { r.body = body }
}

// NormalizeEndpoint strips one leading slash and prefixes the API root
// unless the path already carries it.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	if !strings.HasPrefix(endpoint, apiRoot) {
		endpoint = apiRoot + endpoint
	}
	return endpoint
}

// envelope is the wrapper every device response uses
type envelope struct {
	Success *bool           `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code        *int   `json:"code"`
		Param       string `json:"param,omitempty"`
		Description string `json:"description,omitempty"`
	} `json:"error"`
}

// Execute performs one API call and returns the raw result payload, or nil
// when the device reports success without a result.
func (c *Client) Execute(ctx context.Context, endpoint string, opts ...RequestOption) (json.RawMessage, error) {
	cfg := requestConfig{
		method:  http.MethodGet,
		timeout: c.opts.Timeout(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	endpoint = NormalizeEndpoint(endpoint)

	ctx, span := c.tracer.Start(ctx, "twon.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("twon.host", c.opts.Host()),
			attribute.String("twon.endpoint", endpoint),
			attribute.String("http.request.method", cfg.method),
		),
	)
	defer span.End()

	start := time.Now()
	result, status, err := c.do(ctx, endpoint, cfg)
	duration := time.Since(start)

	outcome := outcomeFor(err)
	metrics.RecordRequest(endpoint, cfg.method, outcome, duration)
	span.SetAttributes(attribute.String("twon.outcome", outcome))

	fields := logging.RequestFields(c.opts.Host(), cfg.method, endpoint, status, duration)
	if err != nil {
		if devErr, ok := asDeviceError(err); ok && devErr.Type == ErrTypeAPI {
			metrics.RecordAPIError(devErr.Kind.String())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("device request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	c.logger.Debug("device request", fields...)
	return result, nil
}

func (c *Client) do(ctx context.Context, endpoint string, cfg requestConfig) (json.RawMessage, int, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	target := c.opts.BaseURL() + "/" + endpoint
	if len(cfg.query) > 0 {
		target += "?" + cfg.query.Encode()
	}

	var body io.Reader
	if cfg.body != nil {
		data, err := json.Marshal(cfg.body)
		if err != nil {
			return nil, 0, NewValidationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.method, target, body)
	if err != nil {
		return nil, 0, NewValidationError(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Accept", ContentTypeJSON)
	req.Header.Set("User-Agent", version.UserAgent())
	if cfg.body != nil {
		req.Header.Set("Content-Type", ContentTypeJSON)
	}
	if c.opts.basicAuth != "" {
		req.Header.Set("Authorization", c.opts.basicAuth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, NewConnectionError(cfg.method+" "+endpoint+" failed", err, c.opts.Host())
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, NewConnectionError("failed to read response body", err, c.opts.Host())
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Rejected before the API layer; report it the way the API would
		return nil, resp.StatusCode, ClassifyAPIError(9, c.opts.HasCredentials())
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != ContentTypeJSON {
		c.logger.Debug("unexpected content type", zap.String("content_type", contentType), logging.BodyField(data))
		return nil, resp.StatusCode, NewUnsupportedDeviceError(fmt.Sprintf("unexpected content type %q", contentType))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Success == nil {
		c.logger.Debug("malformed response", logging.BodyField(data))
		return nil, resp.StatusCode, NewUnsupportedDeviceError("response malformed")
	}

	if !*env.Success {
		if env.Error == nil || env.Error.Code == nil {
			return nil, resp.StatusCode, NewUnsupportedDeviceError("response malformed: failure without error code")
		}
		apiErr := ClassifyAPIError(*env.Error.Code, c.opts.HasCredentials())
		apiErr.Host = c.opts.Host()
		if apiErr.Type == ErrTypeAPI {
			if env.Error.Description != "" {
				apiErr.Message = env.Error.Description
			}
			if env.Error.Param != "" {
				apiErr.Message += " (param " + env.Error.Param + ")"
			}
		}
		return nil, resp.StatusCode, apiErr
	}

	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, resp.StatusCode, nil
	}
	return env.Result, resp.StatusCode, nil
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	devErr, ok := asDeviceError(err)
	if !ok {
		return metrics.OutcomeOther
	}
	switch devErr.Type {
	case ErrTypeConnection:
		return metrics.OutcomeConnection
	case ErrTypeUnsupportedDevice:
		return metrics.OutcomeUnsupported
	case ErrTypeAPI:
		return metrics.OutcomeAPIError
	default:
		return metrics.OutcomeOther
	}
}
