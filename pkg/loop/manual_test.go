package loop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ManualTestSuite struct {
	suite.Suite
	driver *Manual
}

func (s *ManualTestSuite) SetupTest() {
	s.driver = NewManual()
}

func (s *ManualTestSuite) TestAdvanceFiresInTimeOrder() {
	var order []string
	record := func(name string) Callback {
		return func(_ ...any) { order = append(order, name) }
	}

	_, err := s.driver.CallLater(3*time.Second, record("c"))
	s.Require().NoError(err)
	_, err = s.driver.CallLater(time.Second, record("a"))
	s.Require().NoError(err)
	_, err = s.driver.CallLater(2*time.Second, record("b"))
	s.Require().NoError(err)

	s.driver.Advance(5 * time.Second)
	s.Equal([]string{"a", "b", "c"}, order)
}

func (s *ManualTestSuite) TestFiresNoEarlierThanTarget() {
	testCases := []struct {
		name    string
		delay   time.Duration
		advance time.Duration
		fired   bool
	}{
		{name: "just before target", delay: time.Second, advance: 999 * time.Millisecond},
		{name: "exactly at target", delay: time.Second, advance: time.Second, fired: true},
		{name: "past target", delay: time.Second, advance: time.Minute, fired: true},
		{name: "zero delay", delay: 0, advance: 0, fired: true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.SetupTest()

			var firedAt time.Duration
			fired := false
			_, err := s.driver.CallLater(tc.delay, func(_ ...any) {
				fired = true
				firedAt = s.driver.Now()
			})
			s.Require().NoError(err)

			s.driver.Advance(tc.advance)
			s.Equal(tc.fired, fired)
			if tc.fired {
				s.GreaterOrEqual(firedAt, tc.delay, "call fired before its target")
			}
			s.Equal(tc.advance, s.driver.Now(), "clock should land on the advance target")
		})
	}
}

func (s *ManualTestSuite) TestCallbackObservesOwnTargetTime() {
	var at time.Duration
	_, err := s.driver.CallLater(2*time.Second, func(_ ...any) { at = s.driver.Now() })
	s.Require().NoError(err)

	s.driver.Advance(time.Hour)
	s.Equal(2*time.Second, at)
}

func (s *ManualTestSuite) TestCallbackMaySchedule() {
	fired := 0
	_, err := s.driver.CallLater(time.Second, func(_ ...any) {
		_, cerr := s.driver.CallLater(time.Second, func(_ ...any) { fired++ })
		s.NoError(cerr)
	})
	s.Require().NoError(err)

	// The chained call lands inside the same advance window.
	s.driver.Advance(3 * time.Second)
	s.Equal(1, fired)
}

func (s *ManualTestSuite) TestRunThreadCallsFIFO() {
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		s.Require().NoError(s.driver.CallFromThread(func() { order = append(order, i) }))
	}

	s.Equal(3, s.driver.RunThreadCalls())
	s.Equal([]int{1, 2, 3}, order)
	s.Equal(0, s.driver.RunThreadCalls(), "queue should be drained")
}

func (s *ManualTestSuite) TestPendingSnapshot() {
	dc1, err := s.driver.CallLater(2*time.Second, nothing)
	s.Require().NoError(err)
	dc2, err := s.driver.CallLater(time.Second, nothing)
	s.Require().NoError(err)

	pending := s.driver.Pending()
	s.Require().Len(pending, 2)
	s.Equal(dc2.ID(), pending[0].ID(), "snapshot should be in fire order")
	s.Equal(dc1.ID(), pending[1].ID())

	s.Require().NoError(dc2.Cancel())
	s.Len(s.driver.Pending(), 1)
}

func TestManualSuite(t *testing.T) {
	suite.Run(t, new(ManualTestSuite))
}
