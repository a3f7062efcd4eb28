package realtime

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the full result of a watched query at one point in time. A
// snapshot carrying Err is the last one the subscription delivers.
type Snapshot[T any] struct {
	Data    T
	Err     error
	Version uint64
	At      time.Time
}

// Subscription yields snapshots of one query until cancelled.
type Subscription[T any] struct {
	snapshots chan Snapshot[T]
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

// Snapshots is closed when the subscription ends.
func (s *Subscription[T]) Snapshots() <-chan Snapshot[T] {
	return s.snapshots
}

// Done is closed once the subscription goroutine has exited.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the subscription. It is safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
}

// Watch loads the query immediately and again after each change to topic.
// Changes that arrive while a load is in flight collapse into one reload.
func Watch[T any](ctx context.Context, feed *Feed, topic string, load func(context.Context) (T, error)) *Subscription[T] {
	watchCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		snapshots: make(chan Snapshot[T], 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	signal, unregister := feed.watch(topic)

	go func() {
		defer close(sub.done)
		defer close(sub.snapshots)
		defer unregister()
		defer cancel()

		var version uint64
		for {
			data, err := load(watchCtx)
			if watchCtx.Err() != nil {
				return
			}
			version++
			snapshot := Snapshot[T]{Data: data, Err: err, Version: version, At: time.Now().UTC()}

			select {
			case sub.snapshots <- snapshot:
			case <-watchCtx.Done():
				return
			}
			if err != nil {
				return
			}

			select {
			case <-signal:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return sub
}
