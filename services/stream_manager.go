package services

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

type IStreamManager interface {
	Open(ctx context.Context, clientName string) (*StreamHandle, error)
	Active() *StreamHandle
	Close() error
}

// StreamManager owns the single inbound stream of a session.
type StreamManager struct {
	log     *slog.Logger
	channel contract.PushChannel
	display contract.Display

	mu     sync.Mutex
	active *StreamHandle
}

func NewStreamManager(log *slog.Logger, channel contract.PushChannel, display contract.Display) *StreamManager {
	return &StreamManager{log: log, channel: channel, display: display}
}

// Open subscribes to clientName's push channel. Opening the name that is
// already streaming returns the live handle; any other name must wait for
// Close, otherwise ErrStreamAlreadyOpen.
//
// The stream outlives ctx's cancellation: only Close ends it.
func (m *StreamManager) Open(ctx context.Context, clientName string) (*StreamHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && !m.active.isClosed() {
		if m.active.name == clientName {
			return m.active, nil
		}
		return nil, fmt.Errorf("%w: streaming %q, asked for %q", errors.ErrStreamAlreadyOpen, m.active.name, clientName)
	}

	sub, err := m.channel.Subscribe(context.WithoutCancel(ctx), clientName)
	if err != nil {
		m.log.Warn("Inbound stream failed to open", "client", clientName, "error", err)
		m.display.OnError(domain.KindStreamTransport, err.Error())
		return nil, fmt.Errorf("%w: %v", errors.ErrStreamTransport, err)
	}

	h := &StreamHandle{
		name:    clientName,
		sub:     sub,
		display: m.display,
		log:     m.log.With("client", clientName),
		done:    make(chan struct{}),
		onEnd:   m.release,
	}
	m.active = h
	go h.run()
	m.log.Info("Inbound stream opened", "client", clientName)
	return h, nil
}

// Active returns the open stream, or nil.
func (m *StreamManager) Active() *StreamHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.isClosed() {
		return nil
	}
	return m.active
}

// Close ends the active stream, if any. It is idempotent.
func (m *StreamManager) Close() error {
	m.mu.Lock()
	h := m.active
	m.active = nil
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Close()
}

func (m *StreamManager) release(h *StreamHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == h {
		m.active = nil
	}
}

// StreamHandle is one open inbound stream. Display callbacks run on the
// stream's own goroutine, one at a time; they must not call Close themselves.
type StreamHandle struct {
	name    string
	sub     contract.Subscription
	display contract.Display
	log     *slog.Logger
	onEnd   func(*StreamHandle)

	// mu orders message dispatch against Close: once Close holds it,
	// no further OnMessageReceived can start.
	mu     sync.Mutex
	closed bool
	err    error

	closeOnce sync.Once
	done      chan struct{}
}

func (h *StreamHandle) Name() string {
	return h.name
}

// Done is closed once the stream has fully stopped.
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Err wraps ErrStreamTransport when the stream died on its own; nil otherwise.
func (h *StreamHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close stops the stream and waits for its goroutine. Idempotent.
func (h *StreamHandle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		_ = h.sub.Close()
	})
	<-h.done
	return nil
}

func (h *StreamHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *StreamHandle) run() {
	defer close(h.done)
	defer h.onEnd(h)

	for frame := range h.sub.Frames() {
		h.dispatch(frame)
	}

	cause := h.sub.Err()
	h.mu.Lock()
	byTransport := !h.closed && cause != nil
	h.closed = true
	if byTransport {
		h.err = fmt.Errorf("%w: %v", errors.ErrStreamTransport, cause)
	}
	h.mu.Unlock()
	_ = h.sub.Close()

	if byTransport {
		h.log.Warn("Inbound stream lost", "error", cause)
		h.display.OnError(domain.KindStreamTransport, cause.Error())
		return
	}
	h.log.Info("Inbound stream closed")
}

func (h *StreamHandle) dispatch(frame []byte) {
	var e domain.InboundEvent
	if err := json.Unmarshal(frame, &e); err != nil || !e.Valid() {
		h.log.Warn("Skipping inbound event",
			"error", fmt.Errorf("%w: %q", errors.ErrStreamDecode, truncate(frame, 120)))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.display.OnMessageReceived(e.FromUser, e.Message)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
