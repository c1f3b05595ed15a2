//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"dm-relay/domain"
)

// RegisterReply is the registry's answer to a registration.
// An empty ClientURI means the registry refused the name.
type RegisterReply struct {
	ClientURI string
	Error     string
}

// DeliveryReceipt is the delivery service's answer to a 2xx send.
// An empty Confirmation means the message was not accepted.
type DeliveryReceipt struct {
	Confirmation string
	Error        string
}

// Registry is the identity registry as seen by the client.
type Registry interface {
	// Register returns an error only for transport failures and non-2xx responses.
	Register(ctx context.Context, name string) (RegisterReply, error)
	// Validate returns nil only when the registry answered with a 2xx.
	Validate(ctx context.Context, name string) error
	Search(ctx context.Context, query string) ([]string, error)
}

// Delivery submits messages for routing to the addressee's stream.
type Delivery interface {
	// Send returns an error for transport failures and non-2xx responses.
	Send(ctx context.Context, msg domain.Message) (DeliveryReceipt, error)
}

// Subscription is a live push channel. Frames is closed when the channel ends,
// after which Err reports why (nil when ended by Close).
type Subscription interface {
	Frames() <-chan []byte
	Err() error
	// Close is idempotent.
	Close() error
}

// PushChannel opens one subscription per client name.
type PushChannel interface {
	Subscribe(ctx context.Context, clientName string) (Subscription, error)
}

// Display is the presentation collaborator the core reports to.
type Display interface {
	OnRegistered(identity domain.ClientIdentity)
	OnMessageSent(from, body string)
	OnMessageReceived(from, body string)
	OnError(kind domain.ErrorKind, detail string)
}

// SessionStore persists the session-scoped values.
type SessionStore interface {
	LoadIdentity() (domain.ClientIdentity, bool, error)
	SaveIdentity(identity domain.ClientIdentity) error
	LoadTarget() (string, bool, error)
	SaveTarget(peer string) error
	LoadPeers() ([]string, error)
	SavePeers(peers []string) error
	Clear() error
}
