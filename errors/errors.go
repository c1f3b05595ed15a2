package errors

import "fmt"

var (
	ErrInvalidName           = fmt.Errorf("invalid display name")
	ErrRegistrationRejected  = fmt.Errorf("registration rejected by registry")
	ErrRegistrationTransport = fmt.Errorf("registration transport error")
	ErrNoIdentity            = fmt.Errorf("no client identity in session")
	ErrIdentityNotLive       = fmt.Errorf("persisted identity is no longer registered")
	ErrNoTarget              = fmt.Errorf("no conversation target selected")
	ErrInvalidParty          = fmt.Errorf("sender or receiver is not registered")
	ErrSendExhausted         = fmt.Errorf("send retries exhausted")
	ErrSendUnconfirmed       = fmt.Errorf("delivery service did not confirm the message")
	ErrStreamDecode          = fmt.Errorf("malformed inbound event")
	ErrStreamTransport       = fmt.Errorf("inbound stream transport error")
	ErrStreamAlreadyOpen     = fmt.Errorf("an inbound stream is already open for another client")
	ErrUnexpectedStatus      = fmt.Errorf("unexpected response status")
)
