// Package lock provides the reentrant lock that serializes access to one
// dataset handle.
//
// Go has no goroutine identity, so ownership travels in the context: Lock
// returns a derived context carrying an owner token, and a nested Lock made
// with that context re-enters instead of blocking. Release happens when the
// depth returns to zero.
//
//	ctx, unlock, err := l.Lock(ctx)
//	if err != nil {
//		return err
//	}
//	defer unlock()
//	// calls that Lock(ctx) again re-enter here
//
// A derived context must not be used by two goroutines at the same time.
package lock

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// token identifies one acquisition. Zero means unowned.
type token uint64

// Reentrant is a context-scoped reentrant mutex.
type Reentrant struct {
	sem   *semaphore.Weighted
	gen   atomic.Uint64
	owner atomic.Uint64
	depth atomic.Int32
}

// New creates an unlocked Reentrant.
func New() *Reentrant {
	return &Reentrant{sem: semaphore.NewWeighted(1)}
}

// Lock acquires the lock, or re-enters it when ctx already carries the
// current owner token. Acquisition honors ctx cancellation. The returned
// unlock function is safe to call more than once; only the first call
// counts.
func (l *Reentrant) Lock(ctx context.Context) (context.Context, func(), error) {
	if l.Held(ctx) {
		l.depth.Add(1)
		return ctx, l.unlocker(), nil
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return ctx, func() {}, err
	}

	tok := token(l.gen.Add(1))
	l.owner.Store(uint64(tok))
	l.depth.Store(1)
	return context.WithValue(ctx, l, tok), l.unlocker(), nil
}

// Held reports whether ctx carries the current owner token. A context
// derived from an earlier, released acquisition is never held.
func (l *Reentrant) Held(ctx context.Context) bool {
	tok, ok := ctx.Value(l).(token)
	return ok && tok != 0 && uint64(tok) == l.owner.Load()
}

// Depth returns the current nesting depth (0 when unlocked).
func (l *Reentrant) Depth() int {
	return int(l.depth.Load())
}

func (l *Reentrant) unlocker() func() {
	var done atomic.Bool
	return func() {
		if done.Swap(true) {
			return
		}
		if l.depth.Add(-1) == 0 {
			l.owner.Store(0)
			l.sem.Release(1)
		}
	}
}
