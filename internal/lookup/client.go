package lookup

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoRecords is returned when no usable address records are found.
	ErrNoRecords = fmt.Errorf("no records found")
	// ErrEmptyMsg is returned when the DNS response message is empty.
	ErrEmptyMsg = fmt.Errorf("empty message")
	// ErrEmptyHostname is returned when an empty hostname is provided.
	ErrEmptyHostname = fmt.Errorf("empty hostname")
)

var _defaultResolver = "1.1.1.1:53"

// Backend is a blocking name-to-single-address lookup. Implementations
// block the calling goroutine; the resolver runs them on its worker pool.
type Backend interface {
	// HostByName resolves a hostname to one address string.
	HostByName(hostname string) (string, error)
}

var _ Backend = (*Client)(nil)

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Client resolves host names by querying DNS resolvers directly. A and AAAA
// records are queried concurrently; when both answer, the IPv4 address is
// preferred.
type Client struct {
	Client    Exchanger
	Timeout   time.Duration
	Resolvers []string
	Retries   uint

	mu sync.Mutex
}

// Opt is a function option for configuring the Client.
type Opt func(c *Client)

// NewClient creates a Client with the given query timeout and optional
// configurations. The returned Client is ready for lookups.
func NewClient(timeout time.Duration, opts ...Opt) *Client {
	c := &Client{
		Client: &dns.Client{
			Timeout: timeout,
		},
		Timeout: timeout,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// WithResolvers returns an option to set custom DNS resolvers.
// If not provided, the default resolver (1.1.1.1:53) will be used.
func WithResolvers(resolvers []string) Opt {
	return func(c *Client) {
		c.Resolvers = resolvers
	}
}

// WithTimeout returns an option to set a custom timeout for DNS queries.
// This overrides the timeout provided to NewClient.
func WithTimeout(timeout time.Duration) Opt {
	return func(c *Client) {
		c.Timeout = timeout
	}
}

// WithRetries returns an option to set how many additional attempts a
// failed query gets before giving up.
func WithRetries(retries uint) Opt {
	return func(c *Client) {
		c.Retries = retries
	}
}

// HostByName resolves a hostname to a single address string, blocking until
// an answer arrives or the query timeout elapses. If the hostname is
// already an IP literal, it is returned as is. Returns an error when the
// hostname is empty or when both address families fail to resolve.
func (c *Client) HostByName(hostname string) (string, error) {
	// ensure we have a hostname
	if strings.TrimSpace(hostname) == "" {
		return "", ErrEmptyHostname
	}

	// if hostname is an IP, return it as is.
	if ip := net.ParseIP(hostname); ip != nil {
		return ip.String(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	return c.lookupAddr(ctx, hostname)
}

// lookupAddr resolves A and AAAA records concurrently and returns a single
// address, preferring IPv4. It returns an aggregated error when *both*
// queries fail.
func (c *Client) lookupAddr(ctx context.Context, host string) (string, error) {
	grp, ctx := errgroup.WithContext(ctx)

	var (
		v4, v6 string
		errs   error
	)

	for _, qt := range [...]uint16{dns.TypeA, dns.TypeAAAA} {
		qt := qt // capture loop variable per Uber guidance

		grp.Go(func() error {
			addr, err := c.lookup(ctx, host, qt)
			c.mu.Lock()
			defer c.mu.Unlock()

			if err != nil {
				errs = multierr.Append(errs, err) // collect but don't cancel peer
				return nil
			}
			if qt == dns.TypeA {
				v4 = addr
			} else {
				v6 = addr
			}
			return nil
		})
	}

	// Wait for both goroutines.
	if err := grp.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}

	switch {
	case v4 != "":
		return v4, nil
	case v6 != "":
		return v6, nil
	}
	// Both lookups failed – return the aggregated error list.
	return "", fmt.Errorf("dns lookup for %q: %w", host, errs)
}

// lookup resolves qtype (A or AAAA) for host and returns the first parsed
// answer. It retries c.Retries additional times before giving up.
func (c *Client) lookup(ctx context.Context, host string, qtype uint16) (string, error) {
	var lastErr error
	for attempt := uint(0); attempt <= c.Retries; attempt++ {
		// check caller cancellation
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// Fresh request each attempt: ExchangeContext mutates *dns.Msg
		req := &dns.Msg{}
		req.SetQuestion(dns.Fqdn(host), qtype)

		resp, _, err := c.Client.ExchangeContext(ctx, req, c.getResolver())
		if err != nil {
			lastErr = err
			continue // retry
		}
		if resp == nil {
			return "", ErrEmptyMsg
		}

		addr, err := firstAddr(resp)
		if err != nil {
			lastErr = err
			continue // retry
		}
		return addr, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dns lookup failed for %q", host)
	}
	return "", lastErr
}

// firstAddr parses the DNS response and returns the first address answer.
func firstAddr(resp *dns.Msg) (string, error) {
	if resp == nil {
		return "", ErrEmptyMsg
	}

	for _, rr := range resp.Answer {
		switch record := rr.(type) {
		case *dns.A:
			return record.A.String(), nil
		case *dns.AAAA:
			return record.AAAA.String(), nil
		}
	}

	return "", ErrNoRecords
}

// getResolver returns a random resolver from the list of resolvers.
func (c *Client) getResolver() string {
	if len(c.Resolvers) == 0 {
		return _defaultResolver
	}

	// Use crypto/rand for secure random selection
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(c.Resolvers))))
	if err != nil {
		// Fall back to first resolver on error
		return c.Resolvers[0]
	}

	return c.Resolvers[n.Int64()]
}
