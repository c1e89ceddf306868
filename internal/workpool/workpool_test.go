package workpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PoolTestSuite struct {
	suite.Suite
}

func (s *PoolTestSuite) TestRunsSubmittedTasks() {
	p := New(4, 16)
	defer p.Close()

	var (
		mu    sync.Mutex
		count int
	)
	done := make(chan struct{})

	for i := 0; i < 50; i++ {
		err := p.Submit(func() {
			mu.Lock()
			count++
			if count == 50 {
				close(done)
			}
			mu.Unlock()
		})
		s.Require().NoError(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("tasks did not all run")
	}
}

func (s *PoolTestSuite) TestCloseDrainsQueue() {
	p := New(2, 32)

	var (
		mu    sync.Mutex
		count int
	)
	for i := 0; i < 20; i++ {
		err := p.Submit(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
		s.Require().NoError(err)
	}

	p.Close()
	s.Equal(20, count, "queued tasks must run before Close returns")
}

func (s *PoolTestSuite) TestSubmitAfterClose() {
	p := New(1, 1)
	p.Close()

	s.ErrorIs(p.Submit(func() {}), ErrClosed)
	p.Close() // second close is a no-op
}

func (s *PoolTestSuite) TestPanicDoesNotKillWorker() {
	p := New(1, 4)
	defer p.Close()

	s.Require().NoError(p.Submit(func() { panic("boom") }))

	ran := make(chan struct{})
	s.Require().NoError(p.Submit(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		s.Fail("worker did not survive the panic")
	}
}

func (s *PoolTestSuite) TestStats() {
	p := New(3, 8)
	defer p.Close()

	s.Equal(3, p.Stats().Workers)

	started := make(chan struct{})
	release := make(chan struct{})
	s.Require().NoError(p.Submit(func() {
		close(started)
		<-release
	}))

	<-started
	s.Eventually(func() bool { return p.Stats().Active == 1 },
		time.Second, 10*time.Millisecond)
	close(release)

	s.Eventually(func() bool { return p.Stats().Active == 0 },
		time.Second, 10*time.Millisecond)
}

func (s *PoolTestSuite) TestMinimumWorkers() {
	p := New(0, -1)
	defer p.Close()

	s.Equal(1, p.Stats().Workers)

	done := make(chan struct{})
	s.Require().NoError(p.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("task did not run")
	}
}

func TestPoolSuite(t *testing.T) {
	suite.Run(t, new(PoolTestSuite))
}
