package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls a node's client API.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewClient(base, apiKey string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx answer from the node.
type APIError struct {
	Status       int
	Kind         string
	Message      string
	Inconsistent bool
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("node returned %d", e.Status)
	if e.Kind != "" {
		msg += " " + e.Kind
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Inconsistent {
		msg += " (local log may be inconsistent)"
	}
	return msg
}

func (c *Client) header(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Do sends in as JSON (when non-nil) and decodes the answer into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.header(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Error        string `json:"error"`
			Kind         string `json:"kind"`
			Inconsistent bool   `json:"inconsistent"`
		}
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message, apiErr.Kind, apiErr.Inconsistent = eb.Error, eb.Kind, eb.Inconsistent
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
