package server

import (
	"dm-relay/domain"
	"sync"
)

// mailbox queues events for one client until a stream takes them.
// Several streams for the same client compete for the same queue.
type mailbox struct {
	mu     sync.Mutex
	queue  []domain.InboundEvent
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(e domain.InboundEvent) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (domain.InboundEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return domain.InboundEvent{}, false
	}
	e := m.queue[0]
	m.queue[0] = domain.InboundEvent{}
	m.queue = m.queue[1:]
	return e, true
}

// requeue puts back an event a stream took but could not write.
func (m *mailbox) requeue(e domain.InboundEvent) {
	m.mu.Lock()
	m.queue = append([]domain.InboundEvent{e}, m.queue...)
	m.mu.Unlock()
}
