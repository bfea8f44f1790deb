// Package crm wraps the REST APIs of the connected revenue services
// (Salesforce, HubSpot, Attio, Lusha, Hunter) and turns synced object
// schemas into agent tools.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx response from a service.
type APIError struct {
	Service string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Service, e.Status, e.Body)
}

// restClient is the shared HTTP core for all service wrappers. Each request
// waits on the service's rate limiter, applies the service's auth, and
// decodes JSON responses.
type restClient struct {
	service   string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	authorize func(req *http.Request, params url.Values)
}

func newRESTClient(service, baseURL string, perSecond float64) *restClient {
	return &restClient{
		service: service,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
	}
}

// do issues one request. params go into the query string, body (when non-nil)
// is sent as JSON, and the response is decoded into out (when non-nil).
func (c *restClient) do(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		reader = bytes.NewReader(payload)
	}

	if params == nil {
		params = url.Values{}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.authorize != nil {
		c.authorize(req, params)
	}
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Service: c.service, Status: resp.StatusCode, Body: compactError(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", c.service, err)
		}
	}
	return nil
}

func bearerAuth(token string) func(req *http.Request, params url.Values) {
	return func(req *http.Request, params url.Values) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func headerAuth(header, value string) func(req *http.Request, params url.Values) {
	return func(req *http.Request, params url.Values) {
		req.Header.Set(header, value)
	}
}

func queryAuth(param, value string) func(req *http.Request, params url.Values) {
	return func(req *http.Request, params url.Values) {
		params.Set(param, value)
	}
}

// compactError collapses an error response body to a single short line.
func compactError(data []byte) string {
	s := strings.Join(strings.Fields(string(data)), " ")
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
