// Package domain contains core concepts of the direct-messaging system.
// This file defines outgoing messages and inbound push events.
// Messages are ephemeral: nothing here is retained after a send resolves.
package domain

import "strings"

// Message is built right before a send and dropped once the send resolves.
type Message struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"message"`
}

// IsEmpty reports whether the body carries nothing worth sending.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Body) == ""
}

// InboundEvent is one message pushed by the delivery channel.
type InboundEvent struct {
	FromUser string `json:"from_user"`
	Message  string `json:"message"`
}

// Valid reports whether the event carries both a sender and a body.
func (e InboundEvent) Valid() bool {
	return e.FromUser != "" && e.Message != ""
}
