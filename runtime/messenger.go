// Package runtime wires the messaging services around one client session.
// It owns lifecycle and teardown without containing business rules.
package runtime

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/errors"
	"dm-relay/services"
	"dm-relay/session"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

// Backends are the remote collaborators of a client.
type Backends struct {
	Registry contract.Registry
	Delivery contract.Delivery
	Channel  contract.PushChannel
}

type Messenger struct {
	log          *slog.Logger
	session      *session.Session
	registration services.IRegistrationService
	sender       services.ISendCoordinator
	streams      services.IStreamManager
	directory    *services.DirectoryService

	mu        sync.Mutex
	owned     []io.Closer
	closeOnce sync.Once
	closeErr  error
}

func NewMessenger(
	log *slog.Logger,
	backends Backends,
	store contract.SessionStore,
	display contract.Display,
	policy services.RetryPolicy,
	clk clock.Clock,
) (*Messenger, error) {
	sess, err := session.Load(store, log)
	if err != nil {
		return nil, err
	}
	validator := services.NewPresenceValidator(backends.Registry, log)
	streams := services.NewStreamManager(log, backends.Channel, display)

	return &Messenger{
		log:          log,
		session:      sess,
		registration: services.NewRegistrationService(log, backends.Registry, validator, streams, sess, display),
		sender:       services.NewSendCoordinator(log, validator, backends.Delivery, display, policy, clk),
		streams:      streams,
		directory:    services.NewDirectoryService(backends.Registry, sess),
	}, nil
}

// Own hands c to the messenger; it is closed after the stream on Close.
func (m *Messenger) Own(c io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owned = append(m.owned, c)
}

// Start resumes a previous session. Having nothing to resume is not an error.
func (m *Messenger) Start(ctx context.Context) error {
	identity, err := m.registration.Restore(ctx)
	switch {
	case stderrors.Is(err, errors.ErrNoIdentity):
		m.log.Info("No previous session")
		return nil
	case err != nil:
		return err
	}
	m.log.Info("Session resumed", "name", identity.Name)
	return nil
}

func (m *Messenger) Register(ctx context.Context, name string) (domain.ClientIdentity, error) {
	return m.registration.Register(ctx, name)
}

func (m *Messenger) Search(ctx context.Context, query string) ([]string, error) {
	return m.directory.Search(ctx, query)
}

// Select makes peer the conversation target for the following sends.
// Whether peer exists is checked at send time.
func (m *Messenger) Select(_ context.Context, peer string) error {
	peer, err := domain.NormalizeName(peer)
	if err != nil {
		return err
	}
	return m.session.SelectTarget(peer)
}

// Send delivers body from the session identity to the selected target.
func (m *Messenger) Send(ctx context.Context, body string) (services.SendOutcome, error) {
	identity, ok := m.session.Identity()
	if !ok {
		return services.SendOutcome{}, errors.ErrNoIdentity
	}
	target, ok := m.session.Target()
	if !ok {
		return services.SendOutcome{}, errors.ErrNoTarget
	}
	return m.sender.Send(ctx, identity.Name, target, body)
}

func (m *Messenger) Identity() (domain.ClientIdentity, bool) {
	return m.session.Identity()
}

func (m *Messenger) Target() (string, bool) {
	return m.session.Target()
}

func (m *Messenger) Peers() []string {
	return m.session.Peers()
}

// Streaming reports whether the inbound stream is open.
func (m *Messenger) Streaming() bool {
	return m.streams.Active() != nil
}

// Logout stops listening and forgets the session. The name stays taken in
// the registry.
func (m *Messenger) Logout() error {
	err := m.streams.Close()
	if clearErr := m.session.Clear(); clearErr != nil {
		err = multierr.Append(err, clearErr)
	}
	return err
}

// Close closes the inbound stream then every owned resource. It is safe to
// call more than once.
func (m *Messenger) Close() error {
	m.closeOnce.Do(func() {
		err := m.streams.Close()
		m.mu.Lock()
		owned := m.owned
		m.owned = nil
		m.mu.Unlock()
		for _, c := range owned {
			if cerr := c.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("close %T: %w", c, cerr))
			}
		}
		m.closeErr = err
		m.log.Info("Messenger closed")
	})
	return m.closeErr
}
