// Package api is the REST client for the invoicing and auth APIs. Every call
// forwards the browser's auth cookie found on the context.
package api

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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoicer/internal/auth"
)

const maxResponseBytes = 10 << 20

// Observer is told about every upstream request.
type Observer func(op string, status int, elapsed time.Duration, err error)

type Options struct {
	InvoiceURL string
	AuthURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
	Logger     *zap.Logger
}

// Client talks to the invoicing API and the auth API.
type Client struct {
	invoiceURL string
	authURL    string
	httpClient *http.Client
	observe    Observer
	log        *zap.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	observe := opts.Observer
	if observe == nil {
		observe = func(string, int, time.Duration, error) {}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		invoiceURL: strings.TrimSuffix(opts.InvoiceURL, "/"),
		authURL:    strings.TrimSuffix(opts.AuthURL, "/"),
		httpClient: httpClient,
		observe:    observe,
		log:        log,
	}
}

// invoice builds an invoicing API URL from path segments. Segments are
// escaped individually.
func (c *Client) invoice(segments ...string) string {
	return c.invoiceURL + joinPath(segments...)
}

func (c *Client) auth(segments ...string) string {
	return c.authURL + joinPath(segments...)
}

func joinPath(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// doJSON performs a request and decodes the (possibly enveloped) JSON reply
// into out, when out is non-nil.
func (c *Client) doJSON(ctx context.Context, op, method, target string, body, out any) error {
	raw, _, err := c.do(ctx, op, method, target, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeEnvelope(op, raw, out)
}

func (c *Client) do(ctx context.Context, op, method, target string, body any) ([]byte, string, error) {
	start := time.Now()
	status, raw, contentType, err := c.roundTrip(ctx, op, method, target, body)
	elapsed := time.Since(start)
	c.observe(op, status, elapsed, err)
	if err != nil {
		c.log.Debug("upstream request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	return raw, contentType, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, target string, body any) (int, []byte, string, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, "", fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, "", fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if creds, ok := auth.CredentialsFromContext(ctx); ok {
		req.AddCookie(&http.Cookie{Name: creds.Cookie.Name, Value: creds.Cookie.Value})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, "", &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, "", &TransientError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, nil, "", errorFromResponse(op, resp.StatusCode, data)
	}
	return resp.StatusCode, data, resp.Header.Get("Content-Type"), nil
}

type errorBody struct {
	Message any `json:"message"`
	Details *struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	} `json:"details"`
}

func errorFromResponse(op string, status int, data []byte) error {
	var body errorBody
	_ = json.Unmarshal(data, &body)
	message, topFields := messages(body.Message)

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if body.Details != nil {
			if _, fields := messages(body.Details.Message); len(fields) > 0 {
				if message == "" {
					message = "Validation Error"
				}
				return &ValidationError{Message: message, Fields: fields}
			}
		}
		if len(topFields) > 0 {
			return &ValidationError{Message: "Validation Error", Fields: topFields}
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &TransientError{Op: op, Status: status, Err: errors.New(message)}
}

// messages normalizes a message field that is either a string or a list.
func messages(v any) (single string, list []string) {
	switch m := v.(type) {
	case string:
		return m, nil
	case []any:
		for _, item := range m {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
	}
	return "", list
}

// decodeEnvelope unwraps {"data": ...} when present.
func decodeEnvelope(op string, raw []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
