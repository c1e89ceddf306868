package lookup

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

var _ Backend = (*System)(nil)

// System resolves host names through the operating system's resolver, so
// /etc/hosts entries and NSS configuration are honored. It returns the
// first address the system reports.
type System struct {
	Resolver *net.Resolver
	Timeout  time.Duration
}

// NewSystem creates a System backend using net.DefaultResolver with the
// given per-lookup timeout.
func NewSystem(timeout time.Duration) *System {
	return &System{
		Resolver: net.DefaultResolver,
		Timeout:  timeout,
	}
}

// HostByName resolves a hostname to a single address string, blocking
// until the system resolver answers or the timeout elapses.
func (s *System) HostByName(hostname string) (string, error) {
	if strings.TrimSpace(hostname) == "" {
		return "", ErrEmptyHostname
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	addrs, err := s.Resolver.LookupHost(ctx, hostname)
	if err != nil {
		return "", fmt.Errorf("system lookup for %q: %w", hostname, err)
	}
	if len(addrs) == 0 {
		// Should be covered by the resolver error, but check defensively.
		return "", ErrNoRecords
	}

	return addrs[0], nil
}
