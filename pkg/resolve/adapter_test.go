package resolve

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// fakeHostResolver settles every lookup immediately with a fixed outcome.
type fakeHostResolver struct {
	addr string
	err  error

	gotHost    string
	gotTimeout time.Duration
}

func (f *fakeHostResolver) GetHostByName(host string, timeout time.Duration) *Lookup {
	f.gotHost = host
	f.gotTimeout = timeout
	lk := newLookup(host)
	lk.settle(f.addr, f.err)
	return lk
}

type AdapterTestSuite struct {
	suite.Suite
}

func (s *AdapterTestSuite) TestGetAddrInfo() {
	testCases := []struct {
		name         string
		addr         string
		expectFamily Family
	}{
		{name: "IPv4 address", addr: "192.168.1.12", expectFamily: FamilyIPv4},
		{name: "IPv6 address", addr: "::1", expectFamily: FamilyIPv6},
		{name: "full IPv6 address", addr: "2606:2800:220:1:248:1893:25c8:1946", expectFamily: FamilyIPv6},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			inner := &fakeHostResolver{addr: tc.addr}
			adapter := NewAdapter(inner)

			al := adapter.GetAddrInfo("example.com", 1234)

			eps, err := al.Endpoints()
			s.Require().NoError(err)
			s.Require().Len(eps, 1)

			ep := eps[0]
			s.Equal(tc.expectFamily, ep.Family)
			s.Equal(SocketStream, ep.SocketType)
			s.Equal(ProtocolTCP, ep.Protocol)
			s.Empty(ep.CanonicalName)
			s.Equal(HostPort{Host: tc.addr, Port: 1234}, ep.Addr)

			s.Equal("example.com", inner.gotHost)
		})
	}
}

func (s *AdapterTestSuite) TestFailurePropagatesUnchanged() {
	cause := errors.New("resolution exploded")
	inner := &fakeHostResolver{err: cause}
	adapter := NewAdapter(inner)

	al := adapter.GetAddrInfo("example.com", 1234)

	eps, err := al.Endpoints()
	s.Nil(eps, "no partial result on failure")
	s.Same(cause, err, "wrapped resolver's error must propagate unchanged")
}

func (s *AdapterTestSuite) TestDelegateTimeout() {
	inner := &fakeHostResolver{addr: "192.0.2.1"}

	NewAdapter(inner).GetAddrInfo("example.com", 80)
	s.Equal(60*time.Second, inner.gotTimeout, "default delegate timeout")

	NewAdapter(inner, WithTimeout(5*time.Second)).GetAddrInfo("example.com", 80)
	s.Equal(5*time.Second, inner.gotTimeout)

	NewAdapter(inner, WithTimeout(0)).GetAddrInfo("example.com", 80)
	s.Equal(time.Duration(0), inner.gotTimeout, "zero disables the bound")
}

func (s *AdapterTestSuite) TestEnumRendering() {
	s.Equal("ipv4", FamilyIPv4.String())
	s.Equal("ipv6", FamilyIPv6.String())
	s.Equal("stream", SocketStream.String())
	s.Equal("tcp", ProtocolTCP.String())
}

func TestAdapterSuite(t *testing.T) {
	suite.Run(t, new(AdapterTestSuite))
}
