package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Future holds the eventual outcome of a task started with Async.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Await blocks until the task finishes and returns its outcome.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// Async runs fn(ctx, param) in its own goroutine and returns a Future.
//
// A context canceled before the goroutine starts completes the future with
// ctx.Err() without calling fn. A panic inside fn is recovered and reported
// as an error wrapping ErrPanicked.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero U
				f.result = zero
				f.err = errors.Join(ErrPanicked, fmt.Errorf("%v", r))
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}

		f.result, f.err = fn(ctx, param)
	}()

	return f
}

// Outcome is the settled state of one future.
type Outcome[U any] struct {
	Value U
	Err   error
}

// Settle waits for every future and returns their outcomes in input order.
// It never stops early, so one failing task does not hide the results of its
// siblings.
func Settle[U any](futures ...*Future[U]) []Outcome[U] {
	out := make([]Outcome[U], len(futures))

	var wg sync.WaitGroup
	wg.Add(len(futures))
	for i, f := range futures {
		go func() {
			defer wg.Done()
			v, err := f.Await()
			out[i] = Outcome[U]{Value: v, Err: err}
		}()
	}
	wg.Wait()

	return out
}
