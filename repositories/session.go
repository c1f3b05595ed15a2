package repositories

import (
	"dm-relay/contract"
	"dm-relay/domain"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	identitySlot = "client_name"
	targetSlot   = "receiver"
	peersSlot    = "peers"
)

// SessionRepository stores session-scoped values in BadgerDB.
// Every key is namespaced as "session:{session_id}:{slot}" so several
// sessions can share one database and be cleared independently.
type SessionRepository struct {
	db        *badger.DB
	log       *slog.Logger
	sessionID string
}

func NewSessionRepository(db *badger.DB, log *slog.Logger, sessionID string) contract.SessionStore {
	return &SessionRepository{db: db, log: log, sessionID: sessionID}
}

// keyID escapes ':' (and anything else outside the unreserved set) so that
// one session's prefix can never match another session's keys.
func keyID(sessionID string) string {
	return url.QueryEscape(sessionID)
}

func (s *SessionRepository) key(slot string) []byte {
	return []byte(fmt.Sprintf("session:%s:%s", keyID(s.sessionID), slot))
}

func (s *SessionRepository) prefix() []byte {
	return []byte(fmt.Sprintf("session:%s:", keyID(s.sessionID)))
}

func (s *SessionRepository) LoadIdentity() (domain.ClientIdentity, bool, error) {
	var identity domain.ClientIdentity
	found, err := s.get(identitySlot, &identity)
	if err != nil || !found {
		return domain.ClientIdentity{}, false, err
	}
	return identity, true, nil
}

func (s *SessionRepository) SaveIdentity(identity domain.ClientIdentity) error {
	return s.set(identitySlot, identity)
}

func (s *SessionRepository) LoadTarget() (string, bool, error) {
	var peer string
	found, err := s.get(targetSlot, &peer)
	if err != nil || !found || peer == "" {
		return "", false, err
	}
	return peer, true, nil
}

func (s *SessionRepository) SaveTarget(peer string) error {
	return s.set(targetSlot, peer)
}

func (s *SessionRepository) LoadPeers() ([]string, error) {
	var peers []string
	if _, err := s.get(peersSlot, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

func (s *SessionRepository) SavePeers(peers []string) error {
	return s.set(peersSlot, peers)
}

// Clear drops every slot of this session, like clearing browser session storage.
func (s *SessionRepository) Clear() error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := s.prefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		s.log.Debug("Session cleared", "session", s.sessionID, "keys", len(keys))
	}
	return err
}

func (s *SessionRepository) get(slot string, v any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(slot))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session slot %s: %w", slot, err)
	}
	return true, nil
}

func (s *SessionRepository) set(slot string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(slot), data)
	})
}

// SessionEntry is one stored slot, as raw JSON.
type SessionEntry struct {
	SessionID string
	Slot      string
	Value     string
}

// ListSessionEntries scans every session kept in db, ordered by key.
func ListSessionEntries(db *badger.DB) ([]SessionEntry, error) {
	var entries []SessionEntry
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("session:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := strings.TrimPrefix(string(item.Key()), string(prefix))
			escaped, slot, ok := strings.Cut(rest, ":")
			if !ok {
				continue
			}
			sessionID, err := url.QueryUnescape(escaped)
			if err != nil {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, SessionEntry{
				SessionID: sessionID,
				Slot:      slot,
				Value:     string(value),
			})
		}
		return nil
	})
	return entries, err
}
