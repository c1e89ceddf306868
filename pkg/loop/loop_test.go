package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

type LoopTestSuite struct {
	suite.Suite
	loop *Loop
}

func (s *LoopTestSuite) SetupTest() {
	s.loop = New()
	s.loop.Run(context.Background())
}

func (s *LoopTestSuite) TearDownTest() {
	s.loop.Close()
}

func (s *LoopTestSuite) TestCallLaterFires() {
	fired := make(chan time.Duration, 1)
	before := s.loop.Now()

	_, err := s.loop.CallLater(10*time.Millisecond, func(_ ...any) {
		fired <- s.loop.Now()
	})
	s.Require().NoError(err)

	select {
	case at := <-fired:
		s.GreaterOrEqual(at-before, 10*time.Millisecond, "call fired before its target")
	case <-time.After(5 * time.Second):
		s.Fail("call never fired")
	}
	s.Eventually(func() bool { return s.loop.PendingCalls() == 0 },
		time.Second, 10*time.Millisecond)
}

func (s *LoopTestSuite) TestCallFromThreadRunsOnLoop() {
	ran := make(chan struct{})
	s.Require().NoError(s.loop.CallFromThread(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		s.Fail("marshaled call never ran")
	}
}

func (s *LoopTestSuite) TestCallbacksNeverOverlap() {
	// Saturate the loop from several goroutines; the counter is mutated
	// without synchronization, so overlap would trip the race detector.
	done := make(chan struct{})
	count := 0
	for i := 0; i < 4; i++ {
		go func() {
			for j := 0; j < 25; j++ {
				s.NoError(s.loop.CallFromThread(func() {
					count++
					if count == 100 {
						close(done)
					}
				}))
			}
		}()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("marshaled calls did not all run")
	}
}

func (s *LoopTestSuite) TestCancelPreventsFire() {
	fired := make(chan struct{}, 1)
	dc, err := s.loop.CallLater(50*time.Millisecond, func(_ ...any) {
		fired <- struct{}{}
	})
	s.Require().NoError(err)
	s.Require().NoError(dc.Cancel())

	select {
	case <-fired:
		s.Fail("cancelled call fired")
	case <-time.After(150 * time.Millisecond):
	}
	s.Equal(0, s.loop.PendingCalls())
}

func (s *LoopTestSuite) TestClosedLoopRejectsWork() {
	lp := New()
	lp.Run(context.Background())
	lp.Close()

	_, err := lp.CallLater(time.Millisecond, nothing)
	s.ErrorIs(err, ErrClosed)
	s.ErrorIs(lp.CallFromThread(func() {}), ErrClosed)
}

func (s *LoopTestSuite) TestShutdownNeverDropsMarshaledCalls() {
	// Once the run context is cancelled and the loop goroutine has exited,
	// every CallFromThread must return ErrClosed; an accepted call that
	// never runs would leave its submitter waiting forever.
	lp := New()
	ctx, cancel := context.WithCancel(context.Background())
	lp.Run(ctx)
	cancel()
	<-lp.done

	var ran atomic.Int64
	for i := 0; i < 1000; i++ {
		err := lp.CallFromThread(func() { ran.Inc() })
		s.ErrorIs(err, ErrClosed)
	}
	lp.Close()
	s.Equal(int64(0), ran.Load())
}

func (s *LoopTestSuite) TestShutdownRaceRunsEveryAcceptedCall() {
	// Senders race the run context being cancelled. Each submission must
	// either run or be rejected with ErrClosed; after Close the executed
	// count has to match the accepted count exactly.
	lp := New()
	ctx, cancel := context.WithCancel(context.Background())
	lp.Run(ctx)

	var accepted, ran, badErr atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				switch err := lp.CallFromThread(func() { ran.Inc() }); err {
				case nil:
					accepted.Inc()
				case ErrClosed:
				default:
					badErr.Inc()
				}
			}
		}()
	}

	cancel()
	wg.Wait()
	lp.Close()

	s.Equal(int64(0), badErr.Load())
	s.Equal(accepted.Load(), ran.Load())
}

func (s *LoopTestSuite) TestStringSafeDuringReschedule() {
	// String and Delay read the fire target while the loop may be moving
	// it; unsynchronized reads here trip the race detector.
	dc, err := s.loop.CallLater(time.Hour, nothing)
	s.Require().NoError(err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = dc.String()
			}
		}
	}()

	for i := 0; i < 100; i++ {
		s.NoError(dc.Reset(time.Hour))
		s.NoError(dc.Delay(time.Minute))
	}
	close(stop)
	wg.Wait()
	s.NoError(dc.Cancel())
}

func TestLoopSuite(t *testing.T) {
	suite.Run(t, new(LoopTestSuite))
}
