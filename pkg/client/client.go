// Package client is a thin convenience wrapper for CLI tools to call the
// Loom daemon’s JSON API over a Unix‑domain socket. It re‑exports the DTOs
// from pkg/api so callers get strongly‑typed results instead of generic maps.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lc/loom/internal/socket"
	"github.com/lc/loom/pkg/api"
)

// Client holds an http.Client wired to a Unix socket.
type Client struct {
	hc   *http.Client
	base string // dummy scheme+host for Request.URL (http://unix)
}

// New returns a Client that dials the given Unix‑domain socket path.
// The dialer waits for a daemon that is still starting up, so commands
// issued right after launching loomd do not flake.
func New(socketPath string) *Client {
	tr := &http.Transport{
		DialContext: socket.Dialer(socketPath, &socket.DefaultProcessChecker{}),
	}
	return &Client{hc: &http.Client{Transport: tr}, base: "http://unix"}
}

// --------------------------- commands ------------------------------

// Resolve asks the daemon to resolve host to a single address.
// A zero timeout lets the daemon apply its configured default.
func (c *Client) Resolve(ctx context.Context, host string, timeout time.Duration) (api.ResolveResponse, error) {
	var out api.ResolveResponse
	err := c.post(ctx, "/v1/resolve", api.ResolveRequest{Host: host, Timeout: timeout}, &out)
	return out, err
}

// AddrInfo asks the daemon for connectable endpoints for host and port.
func (c *Client) AddrInfo(ctx context.Context, host string, port int) (api.AddrInfoResponse, error) {
	var out api.AddrInfoResponse
	err := c.post(ctx, "/v1/addrinfo", api.AddrInfoRequest{Host: host, Port: port}, &out)
	return out, err
}

// Status retrieves the current status of the daemon.
// It returns pending calls, pool activity, uptime, and version.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.get(ctx, "/v1/status", &out)
	return out, err
}

// --------------------------- HTTP helpers --------------------------

func (c *Client) post(ctx context.Context, path string, payload, v any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.base+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// statusError extracts the daemon's error text so the CLI can show the
// actual failure, not just the status code.
func statusError(resp *http.Response) error {
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err == nil && body.Len() > 0 {
		return fmt.Errorf("daemon returned %s: %s", resp.Status, bytes.TrimSpace(body.Bytes()))
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
