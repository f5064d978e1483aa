package inventory

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
)

// Client reads and writes inventory objects over the inventory HTTP
// API. It implements the persister side used by bound records.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds an inventory client for the API at baseURL. The
// token is sent as a bearer token on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetServer looks up exactly one object of the given server type. A
// short hostname matches either exactly or as the first label of a
// fully qualified name. Zero or multiple matches are ConfigErrors.
func (c *Client) GetServer(ctx context.Context, hostname, serverType string) (*Record, error) {
	query := url.Values{}
	query.Set("servertype", serverType)
	query.Set("hostname_prefix", strings.SplitN(hostname, ".", 2)[0])

	var objects []map[string]any
	if err := c.do(ctx, http.MethodGet, "/servers?"+query.Encode(), nil, &objects); err != nil {
		return nil, err
	}

	var matches []map[string]any
	for _, obj := range objects {
		name, _ := obj[AttrHostname].(string)
		if name == hostname || strings.HasPrefix(name, hostname+".") {
			matches = append(matches, obj)
		}
	}

	switch len(matches) {
	case 0:
		return nil, notFoundError(hostname, serverType)
	case 1:
		return newRecord(serverType, matches[0], c), nil
	default:
		names := make([]string, len(matches))
		for i, obj := range matches {
			names[i], _ = obj[AttrHostname].(string)
		}
		return nil, configErrorf("hostname %q matches multiple %s objects: %s",
			hostname, serverType, strings.Join(names, ", "))
	}
}

// List returns all objects of a server type, optionally restricted to
// a set of states.
func (c *Client) List(ctx context.Context, serverType string, states []string) ([]*Record, error) {
	query := url.Values{}
	query.Set("servertype", serverType)
	for _, s := range states {
		query.Add("state", s)
	}

	var objects []map[string]any
	if err := c.do(ctx, http.MethodGet, "/servers?"+query.Encode(), nil, &objects); err != nil {
		return nil, err
	}

	records := make([]*Record, len(objects))
	for i, obj := range objects {
		records[i] = newRecord(serverType, obj, c)
	}

	return records, nil
}

// ListByHypervisor returns the VM objects placed on the given
// hypervisor.
func (c *Client) ListByHypervisor(ctx context.Context, hypervisor string) ([]*Record, error) {
	query := url.Values{}
	query.Set("servertype", TypeVM)
	query.Set(AttrHypervisor, hypervisor)

	var objects []map[string]any
	if err := c.do(ctx, http.MethodGet, "/servers?"+query.Encode(), nil, &objects); err != nil {
		return nil, err
	}

	records := make([]*Record, len(objects))
	for i, obj := range objects {
		records[i] = newRecord(TypeVM, obj, c)
	}

	return records, nil
}

func (c *Client) commit(ctx context.Context, serverType, object string, changes map[string]any) error {
	path := "/servers/" + url.PathEscape(object)
	return c.do(ctx, http.MethodPatch, path, changes, nil)
}

func (c *Client) remove(ctx context.Context, serverType, object string) error {
	path := "/servers/" + url.PathEscape(object)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) fetch(ctx context.Context, serverType, object string) (map[string]any, error) {
	var attrs map[string]any
	path := "/servers/" + url.PathEscape(object)
	if err := c.do(ctx, http.MethodGet, path, nil, &attrs); err != nil {
		return nil, err
	}

	return attrs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inventory request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return configErrorf("inventory object not found: %s %s", method, path)
	}
	if resp.StatusCode == http.StatusConflict {
		return configErrorf("inventory rejected the change: %s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inventory request %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response for %s %s: %w", method, path, err)
		}
	}

	return nil
}
