package services

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/errors"
	"dm-relay/mocks"
	"dm-relay/session"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type registrationFixture struct {
	registry  *mocks.MockRegistry
	validator *mocks.MockIPresenceValidator
	channel   *mocks.MockPushChannel
	display   *mocks.MockDisplay
	streams   *StreamManager
}

func newRegistrationFixture(ctrl *gomock.Controller) *registrationFixture {
	f := &registrationFixture{
		registry:  mocks.NewMockRegistry(ctrl),
		validator: mocks.NewMockIPresenceValidator(ctrl),
		channel:   mocks.NewMockPushChannel(ctrl),
		display:   mocks.NewMockDisplay(ctrl),
	}
	f.streams = NewStreamManager(discard, f.channel, f.display)
	return f
}

func (f *registrationFixture) service(t *testing.T) (*RegistrationService, *registrationFixture) {
	sess := newSession(t)
	return NewRegistrationService(discard, f.registry, f.validator, f.streams, sess, f.display), f
}

func TestRegistrationService_Register(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newRegistrationFixture(ctrl)
	service, _ := f.service(t)
	sub := newFakeSubscription()

	f.registry.EXPECT().Register(gomock.Any(), "alice").
		Return(contract.RegisterReply{ClientURI: "dm://1@localhost"}, nil).Times(1)
	f.channel.EXPECT().Subscribe(gomock.Any(), "alice").Return(sub, nil).Times(1)
	f.display.EXPECT().OnRegistered(domain.ClientIdentity{Name: "alice", ClientURI: "dm://1@localhost"}).Times(1)

	identity, err := service.Register(context.Background(), "  alice ")
	req.NoError(err)
	req.Equal("alice", identity.Name)

	stored, ok := service.session.Identity()
	req.True(ok)
	req.Equal(identity, stored)
	req.Equal("alice", f.streams.Active().Name())
	req.NoError(f.streams.Close())
}

func TestRegistrationService_RegisterFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("should refuse an invalid name without calling the registry", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service, f := newRegistrationFixture(ctrl).service(t)
		f.display.EXPECT().OnError(domain.KindInvalidName, gomock.Any()).Times(2)

		_, err := service.Register(ctx, "   ")
		req.ErrorIs(err, errors.ErrInvalidName)
		_, err = service.Register(ctx, "two words")
		req.ErrorIs(err, errors.ErrInvalidName)
	})

	t.Run("should report a rejected name and keep no identity", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service, f := newRegistrationFixture(ctrl).service(t)
		f.registry.EXPECT().Register(gomock.Any(), "alice").
			Return(contract.RegisterReply{Error: "Name already registered"}, nil).Times(1)
		f.display.EXPECT().OnError(domain.KindRegistrationRejected, "Name already registered").Times(1)

		_, err := service.Register(ctx, "alice")
		req.ErrorIs(err, errors.ErrRegistrationRejected)
		_, ok := service.session.Identity()
		req.False(ok)
		req.Nil(f.streams.Active())
	})

	t.Run("should report a transport failure", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service, f := newRegistrationFixture(ctrl).service(t)
		f.registry.EXPECT().Register(gomock.Any(), "alice").
			Return(contract.RegisterReply{}, fmt.Errorf("connection refused")).Times(1)
		f.display.EXPECT().OnError(domain.KindRegistrationTransport, "connection refused").Times(1)

		_, err := service.Register(ctx, "alice")
		req.ErrorIs(err, errors.ErrRegistrationTransport)
		req.NotErrorIs(err, errors.ErrRegistrationRejected)
	})

	t.Run("should keep the identity when the stream cannot open", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service, f := newRegistrationFixture(ctrl).service(t)
		f.registry.EXPECT().Register(gomock.Any(), "alice").
			Return(contract.RegisterReply{ClientURI: "dm://1@localhost"}, nil).Times(1)
		f.channel.EXPECT().Subscribe(gomock.Any(), "alice").Return(nil, fmt.Errorf("404 Not Found")).Times(1)
		f.display.EXPECT().OnError(domain.KindStreamTransport, "404 Not Found").Times(1)
		f.display.EXPECT().OnRegistered(gomock.Any()).Times(1)

		_, err := service.Register(ctx, "alice")
		req.NoError(err)
		_, ok := service.session.Identity()
		req.True(ok)
	})
}

func TestRegistrationService_ReportsUnsavedIdentity(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newRegistrationFixture(ctrl)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().LoadIdentity().Return(domain.ClientIdentity{}, false, nil)
	store.EXPECT().LoadTarget().Return("", false, nil)
	store.EXPECT().LoadPeers().Return(nil, nil)
	sess, err := session.Load(store, discard)
	req.NoError(err)
	service := NewRegistrationService(discard, f.registry, f.validator, f.streams, sess, f.display)

	f.registry.EXPECT().Register(gomock.Any(), "alice").
		Return(contract.RegisterReply{ClientURI: "dm://1@localhost"}, nil).Times(1)
	store.EXPECT().SaveIdentity(gomock.Any()).Return(fmt.Errorf("disk full")).Times(1)
	f.display.EXPECT().OnError(domain.KindSessionStorage, gomock.Any()).Times(1)

	_, err = service.Register(context.Background(), "alice")
	req.ErrorContains(err, "disk full")
	_, ok := sess.Identity()
	req.False(ok)
	req.Nil(f.streams.Active())
}

func TestRegistrationService_ReRegisterRebindsStream(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, f := newRegistrationFixture(ctrl).service(t)
	first, second := newFakeSubscription(), newFakeSubscription()

	gomock.InOrder(
		f.registry.EXPECT().Register(gomock.Any(), "alice").Return(contract.RegisterReply{ClientURI: "dm://1@h"}, nil),
		f.registry.EXPECT().Register(gomock.Any(), "alicia").Return(contract.RegisterReply{ClientURI: "dm://2@h"}, nil),
	)
	gomock.InOrder(
		f.channel.EXPECT().Subscribe(gomock.Any(), "alice").Return(first, nil),
		f.channel.EXPECT().Subscribe(gomock.Any(), "alicia").Return(second, nil),
	)
	f.display.EXPECT().OnRegistered(gomock.Any()).Times(2)

	_, err := service.Register(context.Background(), "alice")
	req.NoError(err)
	_, err = service.Register(context.Background(), "alicia")
	req.NoError(err)

	req.True(first.isClosed())
	req.False(second.isClosed())
	req.Equal("alicia", f.streams.Active().Name())

	identity, _ := service.session.Identity()
	req.Equal("dm://2@h", identity.ClientURI)
	req.NoError(f.streams.Close())
}

func TestRegistrationService_Restore(t *testing.T) {
	ctx := context.Background()
	alice := domain.ClientIdentity{Name: "alice", ClientURI: "dm://1@localhost"}

	t.Run("should report a missing identity", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service, _ := newRegistrationFixture(ctrl).service(t)
		_, err := service.Restore(ctx)
		req.ErrorIs(err, errors.ErrNoIdentity)
	})

	t.Run("should reopen the stream for a live identity", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service, f := newRegistrationFixture(ctrl).service(t)
		req.NoError(service.session.SetIdentity(alice))

		f.validator.EXPECT().Validate(gomock.Any(), "alice").Return(true).Times(1)
		f.channel.EXPECT().Subscribe(gomock.Any(), "alice").Return(newFakeSubscription(), nil).Times(1)
		f.display.EXPECT().OnRegistered(alice).Times(1)

		identity, err := service.Restore(ctx)
		req.NoError(err)
		req.Equal(alice, identity)
		req.NotNil(f.streams.Active())
		req.NoError(f.streams.Close())
	})

	t.Run("should not open a stream for an identity the registry forgot", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service, f := newRegistrationFixture(ctrl).service(t)
		req.NoError(service.session.SetIdentity(alice))

		f.validator.EXPECT().Validate(gomock.Any(), "alice").Return(false).Times(1)
		f.display.EXPECT().OnError(domain.KindIdentityNotLive, gomock.Any()).Times(1)

		_, err := service.Restore(ctx)
		req.ErrorIs(err, errors.ErrIdentityNotLive)
		req.Nil(f.streams.Active())

		_, ok := service.session.Identity()
		req.True(ok)
	})
}
