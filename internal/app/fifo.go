package app

import (
	"context"
	"sync"
)

// fifo admits one caller per key at a time, in arrival order. Each caller
// waits for the channel of the caller queued just before it.
type fifo struct {
	mu    sync.Mutex
	tails map[uint]chan struct{}
}

func newFIFO() *fifo {
	return &fifo{tails: make(map[uint]chan struct{})}
}

// enter blocks until every earlier caller for key has released. The returned
// release func must be called exactly once.
func (f *fifo) enter(ctx context.Context, key uint) (func(), error) {
	mine := make(chan struct{})
	f.mu.Lock()
	prev := f.tails[key]
	f.tails[key] = mine
	f.mu.Unlock()

	release := func() {
		close(mine)
		f.mu.Lock()
		if f.tails[key] == mine {
			delete(f.tails, key)
		}
		f.mu.Unlock()
	}

	if prev == nil {
		return release, nil
	}
	select {
	case <-prev:
		return release, nil
	case <-ctx.Done():
		// keep the chain intact for callers queued behind us
		go func() {
			<-prev
			release()
		}()
		return nil, ctx.Err()
	}
}
