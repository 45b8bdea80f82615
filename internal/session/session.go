package session

import (
	"context"
	"sync"
	"time"

	"github.com/MithilSaiReddy/bujji/internal/agent"
)

// queueDepth bounds pending turns per session before Submit blocks.
const queueDepth = 32

// job is one unit of serialized work on a session: a turn or a control
// operation such as clearing history.
type job struct {
	ctx context.Context
	fn  func(ctx context.Context)
}

// Session pairs a conversation id with its agent loop and a FIFO worker.
// Every turn and every history mutation for the id runs on that worker,
// so at most one turn is in flight and turns execute in submission order.
type Session struct {
	ID        string
	CreatedAt time.Time

	loop  *agent.Loop
	queue chan job
	done  chan struct{}

	mu         sync.Mutex
	lastActive time.Time
	closed     bool
}

func newSession(id string, loop *agent.Loop, createdAt time.Time) *Session {
	s := &Session{
		ID:         id,
		CreatedAt:  createdAt,
		loop:       loop,
		queue:      make(chan job, queueDepth),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
	go s.work()
	return s
}

func (s *Session) work() {
	defer close(s.done)
	for j := range s.queue {
		j.fn(j.ctx)
	}
}

// enqueue adds j to the queue, blocking while it is full.
func (s *Session) enqueue(j job) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.lastActive = time.Now()
	// mu is held across the send so close never closes the queue mid-send.
	defer s.mu.Unlock()
	select {
	case s.queue <- j:
		return nil
	case <-j.ctx.Done():
		return j.ctx.Err()
	}
}

// close stops accepting work and waits for queued jobs to drain.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

// Loop exposes the session's agent loop.
func (s *Session) Loop() *agent.Loop { return s.loop }

// LastActive is when work was last submitted.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
