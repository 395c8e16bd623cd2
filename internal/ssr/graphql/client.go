package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrGraphQL marks errors reported by the GraphQL server in the response body
var ErrGraphQL = errors.New("graphql error")

const maxErrorBody = 512

// Endpoint builds the project endpoint: https://api.<host>/<namespace>/v1/<projectID>.
// An empty project id is not rejected; the resulting endpoint fails at fetch time.
func Endpoint(host, namespace, projectID string) string {
	return fmt.Sprintf("https://api.%s/%s/v1/%s", host, namespace, projectID)
}

type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors,omitempty"`
}

// Error is a single entry of the response "errors" array
type Error struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// Client is a request-scoped GraphQL client. It forwards the visitor's cookie and
// records every result so the render state can be shipped to the browser.
type Client struct {
	endpoint   string
	cookie     string
	httpClient *http.Client
	logger     *zap.Logger

	mu      sync.Mutex
	results map[string]json.RawMessage
	data    map[string]json.RawMessage
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Query runs query with vars and decodes the "data" object into out.
// A query already answered for this client is served from its recorded result.
func (c *Client) Query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	key, err := resultKey(query, vars)
	if err != nil {
		return err
	}

	c.mu.Lock()
	data, ok := c.results[key]
	c.mu.Unlock()

	if !ok {
		data, err = c.fetch(ctx, query, vars)
		if err != nil {
			return err
		}
		if err := c.record(key, data); err != nil {
			return err
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, query string, vars map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("GraphQL request failed",
			zap.String("endpoint", c.endpoint),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read graphql response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("graphql endpoint returned status %d: %s", resp.StatusCode, truncate(respBody))
	}

	var decoded response
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(messages, "; "))
	}
	if len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		return nil, fmt.Errorf("%w: response has no data", ErrGraphQL)
	}

	c.logger.Debug("GraphQL query completed",
		zap.String("endpoint", c.endpoint),
		zap.Duration("duration", time.Since(start)))
	return decoded.Data, nil
}

// record keeps the raw result and merges its top-level fields into the client data
func (c *Client) record(key string, data json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: data is not an object: %v", ErrGraphQL, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = data
	for name, value := range fields {
		c.data[name] = value
	}
	return nil
}

// Data returns a copy of every field fetched so far
func (c *Client) Data() map[string]json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]json.RawMessage, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

func resultKey(query string, vars map[string]interface{}) (string, error) {
	if len(vars) == 0 {
		return query, nil
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(query)
	for _, name := range names {
		value, err := json.Marshal(vars[name])
		if err != nil {
			return "", fmt.Errorf("failed to encode variable %q: %w", name, err)
		}
		b.WriteString("\x00")
		b.WriteString(name)
		b.WriteString("=")
		b.Write(value)
	}
	return b.String(), nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
