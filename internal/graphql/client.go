// Package graphql is a minimal GraphQL-over-HTTP transport used to reach the
// collaborator services. Responses are returned as gjson results rooted at
// the "data" member.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"transaction-service/internal/util"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/propagation"
)

const maxResponseBytes = 4 << 20

var (
	// ErrTransport means the request never produced a usable HTTP response
	ErrTransport = errors.New("graphql transport failure")
	// ErrStatus means the server answered with a non-2xx status
	ErrStatus = errors.New("graphql unexpected status")
	// ErrGraphQL means the server answered with an errors array or no data
	ErrGraphQL = errors.New("graphql error response")
)

// Client posts GraphQL documents to a single endpoint
type Client struct {
	name       string
	url        string
	httpClient *http.Client
}

type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// NewClient creates a client for the endpoint at url. name labels metrics.
func NewClient(name, url string, timeout time.Duration) *Client {
	return &Client{
		name: name,
		url:  url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// URL returns the endpoint this client talks to
func (c *Client) URL() string {
	return c.url
}

// Do executes one operation. token, when non-empty, is sent as a bearer token.
func (c *Client) Do(ctx context.Context, operation, query string, variables map[string]interface{}, token string) (gjson.Result, error) {
	start := time.Now()
	defer func() {
		util.UpstreamLatency.WithLabelValues(c.name, operation).Observe(time.Since(start).Seconds())
	}()

	data, err := c.do(ctx, operation, query, variables, token)
	if err != nil {
		util.UpstreamErrorsTotal.WithLabelValues(c.name, operation).Inc()
	}
	return data, err
}

func (c *Client) do(ctx context.Context, operation, query string, variables map[string]interface{}, token string) (gjson.Result, error) {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %s: %v", ErrTransport, operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	util.InjectTraceContext(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %s: %v", ErrTransport, operation, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %s: reading body: %v", ErrTransport, operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, fmt.Errorf("%w: %s: status %d", ErrStatus, operation, resp.StatusCode)
	}

	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, fmt.Errorf("%w: %s: malformed JSON body", ErrGraphQL, operation)
	}

	parsed := gjson.ParseBytes(payload)
	if errs := parsed.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("%w: %s: %s", ErrGraphQL, operation, errs.Get("0.message").String())
	}

	data := parsed.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return gjson.Result{}, fmt.Errorf("%w: %s: no data returned", ErrGraphQL, operation)
	}

	return data, nil
}
