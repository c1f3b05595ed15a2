package client

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// subscription adapts a blocking frame reader into contract.Subscription.
// The reader runs in one goroutine; Close cancels it and waits for it.
type subscription struct {
	frames    chan []byte
	finished  chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// startSubscription runs read until it fails or ctx is cancelled.
// read must push every frame through emit and stop when emit returns false.
func startSubscription(ctx context.Context, cancel context.CancelFunc,
	read func(ctx context.Context, emit func([]byte) bool) error) *subscription {
	s := &subscription{
		frames:   make(chan []byte),
		finished: make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer close(s.finished)

		emit := func(frame []byte) bool {
			select {
			case s.frames <- frame:
				return true
			case <-ctx.Done():
				return false
			}
		}
		err := read(ctx, emit)
		switch {
		case ctx.Err() != nil:
			// Ended by Close or by the owner's context: not a transport failure.
			err = nil
		case err == nil:
			err = fmt.Errorf("stream ended by server: %w", io.EOF)
		}

		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.frames)
	}()
	return s
}

func (s *subscription) Frames() <-chan []byte {
	return s.frames
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.finished
	})
	return nil
}
