package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
)

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "…"
	}
	return fmt.Sprintf("http %d: %s", e.Code, body)
}

func (e *StatusError) HTTPStatusCode() int { return e.Code }

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// Classify tags a collaborator error: retryable failures become ErrTransient and
// 404 becomes ErrNotFound. Other errors are returned with op context only.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusNotFound {
		return apperr.Wrap(apperr.ErrNotFound, op, err)
	}
	if IsRetryableError(err) {
		return apperr.Wrap(apperr.ErrTransient, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Client is a small JSON-over-HTTP client shared by the collaborator adapters.
// Every call is bounded by Timeout and recorded in the collaborator metrics.
type Client struct {
	Service string
	BaseURL string
	Timeout time.Duration
	Header  http.Header
	HTTP    *http.Client
}

func New(service, baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		Service: service,
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Timeout: timeout,
		Header:  http.Header{},
		HTTP:    httpClient,
	}
}

// DoJSON sends in as a JSON body (nil for none) and decodes a JSON response into out (nil to discard).
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	raw, err := c.Do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", c.Service, path, err)
	}
	return nil
}

// Do returns the raw response body, used for binary payloads such as XLSX and PDF.
func (c *Client) Do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request: %w", c.Service, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.Service, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.Send(req, strings.TrimPrefix(path, "/"))
}

// Send executes a prepared request under the client timeout, headers and metrics.
// op labels the call in metrics and errors.
func (c *Client) Send(req *http.Request, op string) ([]byte, error) {
	if c.Timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), c.Timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	raw, err := c.roundTrip(req)
	if err != nil {
		err = Classify(c.Service+" "+op, err)
	}
	status := "ok"
	if err != nil {
		status = apperr.Classify(err).String()
	}
	observability.Current().ObserveCall(c.Service, op, status, time.Since(start))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
