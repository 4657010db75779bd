package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/internal/pkg/env"
)

const defaultTimeout = 5 * time.Second

// Client is a thin REST client for the marketplace CRUD services.
// Requests carry the internal static token; any 2xx is success, 4xx/5xx
// are logged and reported without retrying. Only transport-level
// failures come back as errors.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given base URL and internal token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// NewFromEnv selects the prod or local API base URL depending on APP_ENV.
func NewFromEnv() *Client {
	baseURL := env.GetEnv("API_URL_LOCAL", "http://localhost:8000")
	if env.IsProd() {
		baseURL = env.GetEnv("API_URL_PROD", baseURL)
	}
	return New(baseURL, env.GetEnv("INTERNAL_API_TOKEN", ""))
}

// GetJSON fetches path with the given query and decodes the response
// body into out. Non-2xx responses are an error here because callers use
// GET only for lookups they depend on.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		io.Copy(io.Discard, res.Body)
		return fmt.Errorf("GET %s responded %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// PostJSON posts a JSON body and decodes the response into out. Like
// GetJSON, a non-2xx response is an error because callers depend on the
// decoded result.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		io.Copy(io.Discard, res.Body)
		return fmt.Errorf("POST %s responded %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// Send performs a write call (POST/PATCH/DELETE) with an optional JSON
// body. ok reports whether the service accepted it; a rejected call is
// logged, not an error.
func (c *Client) Send(ctx context.Context, method, path string, body any) (ok bool, err error) {
	var reader io.Reader
	if body != nil {
		raw, merr := json.Marshal(body)
		if merr != nil {
			return false, merr
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Warnf("[API] %s %s rejected with %d: %s", method, path, res.StatusCode, detail)
		return false, nil
	}
	return true, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", c.token)
}
