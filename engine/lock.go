package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/dialogmesh/core"
)

// TurnState is the scheduler state of one conversation.
type TurnState string

const (
	// StateIdle means no turn is running.
	StateIdle TurnState = "idle"
	// StateLocked means a turn holds the conversation.
	StateLocked TurnState = "locked"
	// StateFailed means the running turn failed and the scheduler is
	// re-reading the store before releasing the conversation.
	StateFailed TurnState = "failed"
)

// turnLocks serializes turns per conversation. Waiters queue in FIFO order
// up to depth; ownership is handed directly to the next waiter on release
// so no late arrival can overtake the queue.
type turnLocks struct {
	depth   int
	timeout time.Duration

	mu    sync.Mutex
	convs map[string]*turnQueue
}

type turnQueue struct {
	state   TurnState
	waiters []chan struct{}
}

func newTurnLocks(depth int, timeout time.Duration) *turnLocks {
	return &turnLocks{depth: depth, timeout: timeout, convs: map[string]*turnQueue{}}
}

// acquire blocks until the caller owns the conversation. It fails with
// core.ErrConversationBusy when the queue is full or the wait exceeds the
// queue timeout, and with ctx.Err() when ctx ends first.
func (l *turnLocks) acquire(ctx context.Context, id string) error {
	l.mu.Lock()
	q, ok := l.convs[id]
	if !ok {
		l.convs[id] = &turnQueue{state: StateLocked}
		l.mu.Unlock()
		return nil
	}
	if len(q.waiters) >= l.depth {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d turns queued", core.ErrConversationBusy, len(q.waiters))
	}
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.timeout > 0 {
		t := time.NewTimer(l.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ch:
		return nil
	case <-timeout:
		if l.abandon(id, ch) {
			return fmt.Errorf("%w: queued longer than %s", core.ErrConversationBusy, l.timeout)
		}
		return nil
	case <-ctx.Done():
		if l.abandon(id, ch) {
			return ctx.Err()
		}
		// Ownership was handed over concurrently; pass it on.
		l.release(id)
		return ctx.Err()
	}
}

// abandon removes ch from the queue. It reports false when ch was already
// signaled, in which case the caller owns the conversation.
func (l *turnLocks) abandon(id string, ch chan struct{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.convs[id]
	if q == nil {
		return false
	}
	i := slices.Index(q.waiters, ch)
	if i < 0 {
		return false
	}
	q.waiters = slices.Delete(q.waiters, i, i+1)
	return true
}

func (l *turnLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.convs[id]
	if q == nil {
		return
	}
	if len(q.waiters) == 0 {
		delete(l.convs, id)
		return
	}
	next := q.waiters[0]
	q.waiters = q.waiters[1:]
	q.state = StateLocked
	close(next)
}

func (l *turnLocks) setState(id string, s TurnState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q := l.convs[id]; q != nil {
		q.state = s
	}
}

func (l *turnLocks) state(id string) TurnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q := l.convs[id]; q != nil {
		return q.state
	}
	return StateIdle
}

func (l *turnLocks) queued(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q := l.convs[id]; q != nil {
		return len(q.waiters)
	}
	return 0
}
