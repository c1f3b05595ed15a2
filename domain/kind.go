package domain

// ErrorKind tags a failure surfaced to the presentation layer.
type ErrorKind string

const (
	KindInvalidName           ErrorKind = "invalid_name"
	KindRegistrationRejected  ErrorKind = "registration_rejected"
	KindRegistrationTransport ErrorKind = "registration_transport"
	KindIdentityNotLive       ErrorKind = "identity_not_live"
	KindInvalidParty          ErrorKind = "invalid_party"
	KindSendExhausted         ErrorKind = "send_exhausted"
	KindSendUnconfirmed       ErrorKind = "send_unconfirmed"
	KindStreamTransport       ErrorKind = "stream_transport"
	KindSessionStorage        ErrorKind = "session_storage"
)
