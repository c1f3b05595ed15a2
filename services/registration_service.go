package services

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/errors"
	"dm-relay/session"
	"fmt"
	"log/slog"
)

type IRegistrationService interface {
	Register(ctx context.Context, name string) (domain.ClientIdentity, error)
	Restore(ctx context.Context) (domain.ClientIdentity, error)
}

// RegistrationService obtains the session's identity and binds the inbound
// stream to it.
type RegistrationService struct {
	log       *slog.Logger
	registry  contract.Registry
	validator IPresenceValidator
	streams   IStreamManager
	session   *session.Session
	display   contract.Display
}

func NewRegistrationService(
	log *slog.Logger,
	registry contract.Registry,
	validator IPresenceValidator,
	streams IStreamManager,
	sess *session.Session,
	display contract.Display,
) *RegistrationService {
	return &RegistrationService{
		log:       log,
		registry:  registry,
		validator: validator,
		streams:   streams,
		session:   sess,
		display:   display,
	}
}

// Register claims name in the registry, persists it as the session identity
// and opens the inbound stream for it. A stream that fails to open is
// reported through the display but does not undo the registration.
func (s *RegistrationService) Register(ctx context.Context, name string) (domain.ClientIdentity, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		s.display.OnError(domain.KindInvalidName, err.Error())
		return domain.ClientIdentity{}, err
	}

	reply, err := s.registry.Register(ctx, name)
	if err != nil {
		s.log.Warn("Registration call failed", "name", name, "error", err)
		s.display.OnError(domain.KindRegistrationTransport, err.Error())
		return domain.ClientIdentity{}, fmt.Errorf("%w: %v", errors.ErrRegistrationTransport, err)
	}
	if reply.ClientURI == "" {
		detail := reply.Error
		if detail == "" {
			detail = fmt.Sprintf("name %q refused", name)
		}
		s.log.Info("Registration rejected", "name", name, "detail", detail)
		s.display.OnError(domain.KindRegistrationRejected, detail)
		return domain.ClientIdentity{}, fmt.Errorf("%w: %s", errors.ErrRegistrationRejected, detail)
	}

	identity := domain.ClientIdentity{Name: name, ClientURI: reply.ClientURI}
	if err := s.session.SetIdentity(identity); err != nil {
		s.log.Error("Registered name could not be stored", "name", name, "error", err)
		s.display.OnError(domain.KindSessionStorage, fmt.Sprintf("%q is registered but could not be saved: %v", name, err))
		return domain.ClientIdentity{}, err
	}
	s.log.Info("Client registered", "name", name, "uri", reply.ClientURI)

	s.bindStream(ctx, name)
	s.display.OnRegistered(identity)
	return identity, nil
}

// Restore revives the persisted identity after a restart. The identity only
// drives the stream again once the registry confirms it is still present.
func (s *RegistrationService) Restore(ctx context.Context) (domain.ClientIdentity, error) {
	identity, ok := s.session.Identity()
	if !ok {
		return domain.ClientIdentity{}, errors.ErrNoIdentity
	}
	if !s.validator.Validate(ctx, identity.Name) {
		detail := fmt.Sprintf("%q is no longer registered", identity.Name)
		s.log.Warn("Persisted identity not live", "name", identity.Name)
		s.display.OnError(domain.KindIdentityNotLive, detail)
		return identity, fmt.Errorf("%w: %s", errors.ErrIdentityNotLive, detail)
	}

	s.bindStream(ctx, identity.Name)
	s.display.OnRegistered(identity)
	return identity, nil
}

// bindStream closes a stream held by another name before opening this one.
func (s *RegistrationService) bindStream(ctx context.Context, name string) {
	if active := s.streams.Active(); active != nil && active.Name() != name {
		_ = s.streams.Close()
	}
	if _, err := s.streams.Open(ctx, name); err != nil {
		s.log.Warn("Registered without inbound stream", "name", name, "error", err)
	}
}
