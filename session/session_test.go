package session

import (
	"dm-relay/domain"
	"dm-relay/mocks"
	"dm-relay/repositories"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newBadgerSession(t *testing.T, db *badger.DB) *Session {
	t.Helper()
	s, err := Load(repositories.NewSessionRepository(db, slog.Default(), "test"), slog.Default())
	require.NoError(t, err)
	return s
}

func TestSession_SurvivesReload(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	first := newBadgerSession(t, db)
	req.NoError(first.SetIdentity(domain.ClientIdentity{Name: "alice", ClientURI: "dm://1"}))
	req.NoError(first.SelectTarget("bob"))
	req.NoError(first.SelectTarget("clara"))
	req.NoError(first.SelectTarget("bob"))

	// Given a fresh Session over the same store, like a page reload
	reloaded := newBadgerSession(t, db)

	identity, ok := reloaded.Identity()
	req.True(ok)
	req.Equal("alice", identity.Name)
	target, ok := reloaded.Target()
	req.True(ok)
	req.Equal("bob", target)
	req.Equal([]string{"bob", "clara"}, reloaded.Peers())
}

func TestSession_Clear(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	s := newBadgerSession(t, db)
	req.NoError(s.SetIdentity(domain.ClientIdentity{Name: "alice"}))
	req.NoError(s.SelectTarget("bob"))

	req.NoError(s.Clear())

	_, ok := s.Identity()
	req.False(ok)
	_, ok = s.Target()
	req.False(ok)
	req.Empty(s.Peers())

	_, ok = newBadgerSession(t, db).Identity()
	req.False(ok)
}

func TestSession_FailedWriteKeepsPreviousValue(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().LoadIdentity().Return(domain.ClientIdentity{Name: "alice"}, true, nil)
	store.EXPECT().LoadTarget().Return("", false, nil)
	store.EXPECT().LoadPeers().Return(nil, nil)
	store.EXPECT().SaveIdentity(gomock.Any()).Return(fmt.Errorf("disk full"))

	s, err := Load(store, slog.Default())
	req.NoError(err)

	err = s.SetIdentity(domain.ClientIdentity{Name: "mallory"})
	req.Error(err)

	identity, ok := s.Identity()
	req.True(ok)
	req.Equal("alice", identity.Name)
}
