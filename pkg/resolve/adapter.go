package resolve

import (
	"context"
	"strings"
	"time"
)

// Family tags a resolved address as IPv4 or IPv6.
type Family int

// Address families.
const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// String returns the family tag for CLI and JSON rendering.
func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// SocketType is the endpoint's socket kind.
type SocketType int

// SocketStream is the only socket type the adapter produces.
const SocketStream SocketType = iota

func (SocketType) String() string { return "stream" }

// Protocol is the endpoint's transport protocol.
type Protocol int

// ProtocolTCP is the only protocol the adapter produces.
const ProtocolTCP Protocol = iota

func (Protocol) String() string { return "tcp" }

// HostPort is a connectable socket address.
type HostPort struct {
	Host string
	Port int
}

// EndpointInfo describes one resolved, connectable network endpoint. It is
// immutable once constructed; Family is derived deterministically from the
// address string's syntax, never guessed from context.
type EndpointInfo struct {
	Family        Family
	SocketType    SocketType
	Protocol      Protocol
	CanonicalName string
	Addr          HostPort
}

// HostResolver is the single-address capability the adapter wraps.
type HostResolver interface {
	GetHostByName(host string, timeout time.Duration) *Lookup
}

// AddrResolver is the capability the adapter provides: host and port to an
// ordered sequence of connectable endpoints.
type AddrResolver interface {
	GetAddrInfo(host string, port int) *AddrInfoLookup
}

var (
	_ HostResolver = (*Resolver)(nil)
	_ AddrResolver = (*Adapter)(nil)
)

const _defaultAdapterTimeout = 60 * time.Second

// Adapter presents a single-address resolver as a protocol-family-aware
// endpoint resolver. It performs no resolution itself: the wrapped
// resolver's address is classified syntactically and dressed with stream/TCP
// protocol metadata; its errors propagate unchanged.
type Adapter struct {
	inner   HostResolver
	timeout time.Duration
}

// AdapterOpt is a function option for configuring the Adapter.
type AdapterOpt func(a *Adapter)

// WithTimeout returns an option bounding the delegated lookup. Zero means
// the lookup is bounded only by the worker outcome.
func WithTimeout(timeout time.Duration) AdapterOpt {
	return func(a *Adapter) {
		a.timeout = timeout
	}
}

// NewAdapter wraps inner with a 60s delegate timeout unless overridden.
func NewAdapter(inner HostResolver, opts ...AdapterOpt) *Adapter {
	a := &Adapter{
		inner:   inner,
		timeout: _defaultAdapterTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// GetAddrInfo resolves host and produces an ordered sequence of endpoints
// for the given port. On success the sequence holds exactly one
// EndpointInfo: the classified family, stream socket type, TCP protocol, an
// empty canonical name, and socket address (addr, port). On failure the
// wrapped resolver's error is propagated unchanged; no partial result is
// produced.
func (a *Adapter) GetAddrInfo(host string, port int) *AddrInfoLookup {
	al := &AddrInfoLookup{
		host: host,
		port: port,
		done: make(chan struct{}),
	}

	a.inner.GetHostByName(host, a.timeout).OnComplete(func(addr string, err error) {
		if err != nil {
			al.settle(nil, err)
			return
		}
		al.settle([]EndpointInfo{{
			Family:     classifyFamily(addr),
			SocketType: SocketStream,
			Protocol:   ProtocolTCP,
			Addr:       HostPort{Host: addr, Port: port},
		}}, nil)
	})

	return al
}

// classifyFamily infers the address family from syntactic form alone:
// colon separators mean IPv6, dotted-decimal means IPv4.
func classifyFamily(addr string) Family {
	if strings.Contains(addr, ":") {
		return FamilyIPv6
	}
	return FamilyIPv4
}

// AddrInfoLookup is the future-like handle for one GetAddrInfo call.
type AddrInfoLookup struct {
	host string
	port int

	done chan struct{}
	eps  []EndpointInfo
	err  error
}

// Host returns the name being resolved.
func (l *AddrInfoLookup) Host() string { return l.host }

// Port returns the port the endpoints are built for.
func (l *AddrInfoLookup) Port() int { return l.port }

// Done returns a channel closed when the outcome has been delivered.
func (l *AddrInfoLookup) Done() <-chan struct{} { return l.done }

// Endpoints returns the outcome without blocking. Before delivery it
// returns ErrNotResolved.
func (l *AddrInfoLookup) Endpoints() ([]EndpointInfo, error) {
	select {
	case <-l.done:
		return l.eps, l.err
	default:
		return nil, ErrNotResolved
	}
}

// Wait blocks until the outcome is delivered or ctx ends.
func (l *AddrInfoLookup) Wait(ctx context.Context) ([]EndpointInfo, error) {
	select {
	case <-l.done:
		return l.eps, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle is single-shot by construction: it only runs from the wrapped
// lookup's OnComplete, which fires at most once.
func (l *AddrInfoLookup) settle(eps []EndpointInfo, err error) {
	l.eps = eps
	l.err = err
	close(l.done)
}
