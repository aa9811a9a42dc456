package importer

// limiter.go bounds concurrent import runs triggered through the web
// surface. Imports themselves are sequential per batch; the limiter only
// keeps a burst of simultaneous uploads from exhausting connections.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when every slot is occupied and the wait
// timeout expires. Callers should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, try again later")

// Limiter restricts parallel import runs with a semaphore.
type Limiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter allows at most maxConcurrent simultaneous runs; acquisition
// waits up to maxWait for a slot.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	return &Limiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting up to the configured timeout. The caller
// must Release exactly once per successful Acquire.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
}

// Release frees a previously acquired slot.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// Active returns the number of runs currently holding a slot.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}
