// Package client is the HTTP client the CLI uses to talk to a running
// oysterd server, mirroring every route in spec.md §6 one method at a
// time.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the CLI's default server address.
const DefaultURL = "http://localhost:5072"

// Client talks to a single oysterd server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client pointed at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// FilterEntry is the `{used}` object in a filter response entry.
type FilterEntry struct {
	Used uint64 `json:"used"`
}

// Dump asks the server to start a background snapshot dump.
func (c *Client) Dump() (string, error) {
	resp, err := c.http.Post(c.url("_dump"), "text/plain", nil)
	if err != nil {
		return "", fmt.Errorf("client: dump: %w", err)
	}
	defer resp.Body.Close()
	return readAll(resp)
}

// Scan asks the server to run a freshness scan.
func (c *Client) Scan() error {
	resp, err := c.http.Post(c.url("_scan"), "text/plain", nil)
	if err != nil {
		return fmt.Errorf("client: scan: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Get fetches the value for key. ok is false on a 404.
func (c *Client) Get(key string) (value string, ok bool, err error) {
	resp, err := c.http.Get(c.url(key))
	if err != nil {
		return "", false, fmt.Errorf("client: get %q: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	body, err := readAll(resp)
	if err != nil {
		return "", false, err
	}
	return body, true, nil
}

// Insert stores value under key.
func (c *Client) Insert(key, value string) error {
	resp, err := c.http.Post(c.url(key), "text/plain", strings.NewReader(value))
	if err != nil {
		return fmt.Errorf("client: insert %q: %w", key, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Incr increments the integer stored at key.
func (c *Client) Incr(key string) error {
	resp, err := c.http.Post(c.url("_incr/"+key), "text/plain", nil)
	if err != nil {
		return fmt.Errorf("client: incr %q: %w", key, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Decr decrements the integer stored at key, saturating at zero.
func (c *Client) Decr(key string) error {
	resp, err := c.http.Post(c.url("_decr/"+key), "text/plain", nil)
	if err != nil {
		return fmt.Errorf("client: decr %q: %w", key, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Remove deletes key.
func (c *Client) Remove(key string) error {
	req, err := http.NewRequest(http.MethodDelete, c.url(key), nil)
	if err != nil {
		return fmt.Errorf("client: remove %q: %w", key, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: remove %q: %w", key, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Filter returns every (key, value, descriptor) triple matching pattern.
func (c *Client) Filter(pattern string) ([]FilterMatch, error) {
	resp, err := c.http.Post(c.url("_filter"), "text/plain", strings.NewReader(pattern))
	if err != nil {
		return nil, fmt.Errorf("client: filter %q: %w", pattern, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("client: filter %q: decode response: %w", pattern, err)
	}

	out := make([]FilterMatch, 0, len(raw))
	for _, entry := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(entry, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("client: filter %q: malformed entry: %s", pattern, entry)
		}
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return nil, fmt.Errorf("client: filter %q: malformed key: %w", pattern, err)
		}
		var valueAndDescriptor []json.RawMessage
		if err := json.Unmarshal(pair[1], &valueAndDescriptor); err != nil || len(valueAndDescriptor) != 2 {
			return nil, fmt.Errorf("client: filter %q: malformed value/descriptor pair", pattern)
		}
		var value string
		if err := json.Unmarshal(valueAndDescriptor[0], &value); err != nil {
			return nil, fmt.Errorf("client: filter %q: malformed value: %w", pattern, err)
		}
		var descriptor FilterEntry
		if err := json.Unmarshal(valueAndDescriptor[1], &descriptor); err != nil {
			return nil, fmt.Errorf("client: filter %q: malformed descriptor: %w", pattern, err)
		}
		out = append(out, FilterMatch{Key: key, Value: value, Descriptor: descriptor})
	}
	return out, nil
}

// FilterMatch is one entry of a Filter response.
type FilterMatch struct {
	Key        string
	Value      string
	Descriptor FilterEntry
}

// FilterKeys returns every key matching pattern.
func (c *Client) FilterKeys(pattern string) ([]string, error) {
	resp, err := c.http.Post(c.url("_filter/keys"), "text/plain", strings.NewReader(pattern))
	if err != nil {
		return nil, fmt.Errorf("client: filter_keys %q: %w", pattern, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var keys []string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("client: filter_keys %q: decode response: %w", pattern, err)
	}
	return keys, nil
}

func readAll(resp *http.Response) (string, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("client: read response body: %w", err)
	}
	return string(b), nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 400 {
		return fmt.Errorf("client: server returned %s", resp.Status)
	}
	return nil
}
