// Package session holds the local client's session-scoped state: its
// registered identity, the selected conversation target and the peers
// selected so far. One Session is created per client and injected into
// every component that needs it.
//
// There is a single writer (user-driven actions). Values are swapped as whole
// snapshots through atomic pointers, so readers never observe a torn value.
package session

import (
	"dm-relay/contract"
	"dm-relay/domain"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/samber/lo"
)

type snapshot struct {
	identity *domain.ClientIdentity
	target   string
	peers    []string
}

type Session struct {
	store contract.SessionStore
	log   *slog.Logger
	state atomic.Pointer[snapshot]
}

// Load builds a Session from whatever the store already holds.
func Load(store contract.SessionStore, log *slog.Logger) (*Session, error) {
	s := &Session{store: store, log: log}
	snap := &snapshot{}

	identity, found, err := store.LoadIdentity()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if found {
		snap.identity = &identity
	}
	if snap.target, _, err = store.LoadTarget(); err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	if snap.peers, err = store.LoadPeers(); err != nil {
		return nil, fmt.Errorf("load peers: %w", err)
	}
	s.state.Store(snap)
	return s, nil
}

func (s *Session) current() snapshot {
	if snap := s.state.Load(); snap != nil {
		return *snap
	}
	return snapshot{}
}

// Identity returns the persisted identity, if any.
func (s *Session) Identity() (domain.ClientIdentity, bool) {
	snap := s.current()
	if snap.identity == nil {
		return domain.ClientIdentity{}, false
	}
	return *snap.identity, true
}

// SetIdentity persists the identity then publishes it.
func (s *Session) SetIdentity(identity domain.ClientIdentity) error {
	if err := s.store.SaveIdentity(identity); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	next := s.current()
	next.identity = &identity
	s.state.Store(&next)
	return nil
}

// Target returns the selected conversation peer.
func (s *Session) Target() (string, bool) {
	snap := s.current()
	return snap.target, snap.target != ""
}

// SelectTarget makes peer the single active conversation and remembers it.
func (s *Session) SelectTarget(peer string) error {
	next := s.current()
	next.target = peer
	if !lo.Contains(next.peers, peer) {
		next.peers = append(append([]string(nil), next.peers...), peer)
		if err := s.store.SavePeers(next.peers); err != nil {
			return fmt.Errorf("save peers: %w", err)
		}
	}
	if err := s.store.SaveTarget(peer); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	s.state.Store(&next)
	return nil
}

// Peers returns the peers selected during this session, oldest first.
func (s *Session) Peers() []string {
	return append([]string(nil), s.current().peers...)
}

// Clear destroys the session: identity, target and peers.
func (s *Session) Clear() error {
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.state.Store(&snapshot{})
	s.log.Info("Session cleared")
	return nil
}
