package apiclient

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Latest.Finish and Latest.Do when a newer call
// started before this one finished. Its result has been discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Latest runs fetches where only the most recent one matters, such as
// loading the detail of whichever date was selected last. Starting a call
// cancels the one in flight.
type Latest[T any] struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Ticket identifies one call. Calls are ordered by when Start handed out
// their ticket, not by when they run.
type Ticket struct {
	seq    uint64
	cancel context.CancelFunc
}

// Start cancels the call in flight and returns the context and ticket for a
// new one. Call it in the order requests are issued; the work itself may
// then run on any goroutine and must end with Finish.
func (l *Latest[T]) Start(ctx context.Context) (context.Context, Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	return ctx, Ticket{seq: l.seq, cancel: cancel}
}

// Finish releases t and passes v and err through, unless a newer ticket was
// started in the meantime.
func (l *Latest[T]) Finish(t Ticket, v T, err error) (T, error) {
	t.cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	if t.seq != l.seq {
		var zero T
		return zero, ErrSuperseded
	}
	l.cancel = nil
	return v, err
}

func (l *Latest[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	ctx, t := l.Start(ctx)
	v, err := fn(ctx)
	return l.Finish(t, v, err)
}
