// Package api exposes a tiny JSON‑over‑HTTP API for the Loom daemon.
// It listens on a Unix domain socket (path comes from config) and delegates
// all resolution logic to pkg/resolve.  No third‑party HTTP framework is
// used—just net/http + encoding/json—keeping the binary small and
// dependency‑free, which matches Uber's "start minimal" guidance.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lc/loom/internal/buildinfo"
	"github.com/lc/loom/internal/socket"
	"github.com/lc/loom/internal/workpool"
	"github.com/lc/loom/pkg/loop"
	"github.com/lc/loom/pkg/resolve"
)

// ResolveRequest asks for a single-address resolution of a host.
type ResolveRequest struct {
	Host    string        `json:"host"`
	Timeout time.Duration `json:"timeout,omitempty"` // 0 = server default
}

// ResolveResponse carries a successful resolution.
type ResolveResponse struct {
	Host    string        `json:"host"`
	Addr    string        `json:"addr"`
	Elapsed time.Duration `json:"elapsed"`
}

// AddrInfoRequest asks for connectable endpoints for a host and port.
type AddrInfoRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Endpoint is the wire form of one resolved endpoint.
type Endpoint struct {
	Family        string `json:"family"`
	Type          string `json:"type"`
	Protocol      string `json:"protocol"`
	CanonicalName string `json:"canonical_name"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
}

// AddrInfoResponse carries the ordered endpoint sequence.
type AddrInfoResponse struct {
	Endpoints []Endpoint `json:"endpoints"`
}

// StatusResponse represents the server status response.
type StatusResponse struct {
	PendingCalls int           `json:"pending_calls"`
	PoolWorkers  int           `json:"pool_workers"`
	PoolActive   int           `json:"pool_active"`
	PoolQueued   int           `json:"pool_queued"`
	Uptime       time.Duration `json:"uptime"`
	Version      string        `json:"version"`
	Commit       string        `json:"commit"`
}

// -------- server -----------------------------------------------------

// Server handles HTTP API requests over a Unix domain socket.
type Server struct {
	resolver       resolve.HostResolver
	adapter        resolve.AddrResolver
	loop           *loop.Loop
	pool           *workpool.Pool
	defaultTimeout time.Duration

	start time.Time
	mux   *http.ServeMux
	srv   *http.Server
}

// New creates a new API server around the resolution stack. defaultTimeout
// bounds a resolution when the request does not supply its own.
func New(resolver resolve.HostResolver, adapter resolve.AddrResolver, lp *loop.Loop, pool *workpool.Pool, defaultTimeout time.Duration) *Server {
	s := &Server{
		resolver:       resolver,
		adapter:        adapter,
		loop:           lp,
		pool:           pool,
		defaultTimeout: defaultTimeout,
		start:          time.Now(),
		mux:            http.NewServeMux(),
	}

	s.mux.HandleFunc("/v1/resolve", s.handleResolve)
	s.mux.HandleFunc("/v1/addrinfo", s.handleAddrInfo)
	s.mux.HandleFunc("/v1/status", s.handleStatus)
	s.mux.Handle("/metrics", metricsHandler())

	s.srv = &http.Server{
		Handler:           requestID(instrument(s.mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts the Unix‑socket HTTP server.
func (s *Server) ListenAndServe(path string) error {
	ln, err := socket.Listen(path)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// handleResolve resolves a host to a single address.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Host == "" {
		http.Error(w, "host required", http.StatusBadRequest)
		return
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.defaultTimeout
	}

	start := time.Now()
	addr, err := s.resolver.GetHostByName(req.Host, timeout).Wait(r.Context())
	if err != nil {
		http.Error(w, err.Error(), lookupStatus(err))
		return
	}

	writeJSON(w, ResolveResponse{
		Host:    req.Host,
		Addr:    addr,
		Elapsed: time.Since(start),
	})
}

// handleAddrInfo resolves a host and port to connectable endpoints.
func (s *Server) handleAddrInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req AddrInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Host == "" {
		http.Error(w, "host required", http.StatusBadRequest)
		return
	}
	if req.Port < 0 || req.Port > 65535 {
		http.Error(w, "port out of range", http.StatusBadRequest)
		return
	}

	eps, err := s.adapter.GetAddrInfo(req.Host, req.Port).Wait(r.Context())
	if err != nil {
		http.Error(w, err.Error(), lookupStatus(err))
		return
	}

	out := AddrInfoResponse{Endpoints: make([]Endpoint, 0, len(eps))}
	for _, ep := range eps {
		out.Endpoints = append(out.Endpoints, Endpoint{
			Family:        ep.Family.String(),
			Type:          ep.SocketType.String(),
			Protocol:      ep.Protocol.String(),
			CanonicalName: ep.CanonicalName,
			Host:          ep.Addr.Host,
			Port:          ep.Addr.Port,
		})
	}
	writeJSON(w, out)
}

// handleStatus returns the server status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats := s.pool.Stats()
	writeJSON(w, StatusResponse{
		PendingCalls: s.loop.PendingCalls(),
		PoolWorkers:  stats.Workers,
		PoolActive:   stats.Active,
		PoolQueued:   stats.Queued,
		Uptime:       time.Since(s.start),
		Version:      buildinfo.Version,
		Commit:       buildinfo.Commit,
	})
}

// lookupStatus maps a resolution failure to an HTTP status: timeouts are
// gateway timeouts, other lookup failures are bad-gateway, and everything
// else (including a cancelled request context) is an internal error.
func lookupStatus(err error) int {
	switch {
	case errors.Is(err, resolve.ErrLookupTimeout):
		return http.StatusGatewayTimeout
	case isLookupError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isLookupError(err error) bool {
	var lerr *resolve.LookupError
	return errors.As(err, &lerr)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
	}
}
