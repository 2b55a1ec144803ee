package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
)

type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource

	// MaxFailures consecutive transport or 5xx failures open the breaker for
	// OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration

	// Base is the innermost round tripper. Defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// APIError is a non-2xx answer from the shop API.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("shop api returned status %d: %s", e.StatusCode, e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("shop api returned status %d: invalid %s", e.StatusCode, strings.Join(keys, ", "))
	}
	return fmt.Sprintf("shop api returned status %d", e.StatusCode)
}

func (e *APIError) FieldErrors() map[string]string {
	return e.Fields
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	logger     *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = defaultMaxFailures
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if opts.Tokens == nil {
		opts.Tokens = StaticToken("")
	}

	transport := otelhttp.NewTransport(&Transport{Base: opts.Base, Source: opts.Tokens})

	maxFailures := opts.MaxFailures
	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "shop-api",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Transport: transport, Timeout: opts.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// do sends one request through the breaker. Transport errors and 5xx answers
// count as failures and come back as errors; 4xx answers are returned to the
// caller to interpret.
func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header) (*response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = data
	}

	return c.breaker.Execute(func() (*response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
		}

		out := &response{StatusCode: resp.StatusCode, Body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return out, decodeAPIError(out)
		}
		return out, nil
	})
}

type errorBody struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeAPIError(resp *response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(resp.Body))
		return apiErr
	}

	for _, msg := range []string{body.Error, body.Detail, body.Message} {
		if msg != "" {
			apiErr.Message = msg
			break
		}
	}

	if len(body.Errors) > 0 {
		apiErr.Fields = make(map[string]string, len(body.Errors))
		for _, fe := range body.Errors {
			field := fe.Field
			if field == "" {
				field = "non_field"
			}
			apiErr.Fields[field] = fe.Message
		}
	}

	return apiErr
}
