package services

import (
	"dm-relay/repositories"
	"dm-relay/session"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := session.Load(repositories.NewSessionRepository(db, discard, "test"), discard)
	require.NoError(t, err)
	return s
}

// fakeSubscription is a push channel the test drives by hand.
type fakeSubscription struct {
	frames    chan []byte
	in        chan []byte
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newFakeSubscription() *fakeSubscription {
	f := &fakeSubscription{
		frames: make(chan []byte),
		in:     make(chan []byte, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go func() {
		defer close(f.frames)
		for {
			select {
			case <-f.closed:
				return
			case err := <-f.fail:
				f.mu.Lock()
				f.err = err
				f.mu.Unlock()
				return
			case b := <-f.in:
				select {
				case f.frames <- b:
				case <-f.closed:
					return
				}
			}
		}
	}()
	return f
}

// push behaves like the server writing one more event; it is dropped once closed.
func (f *fakeSubscription) push(frame string) {
	select {
	case f.in <- []byte(frame):
	case <-f.closed:
	}
}

func (f *fakeSubscription) breakWith(err error) {
	f.fail <- err
}

func (f *fakeSubscription) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeSubscription) Frames() <-chan []byte { return f.frames }

func (f *fakeSubscription) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeSubscription) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}
