// Package store persists sessions and their action logs. One Pebble
// database holds session metadata under meta/<id> and actions under
// act/<id>/<seq>, with the sequence encoded big-endian so iteration
// returns actions in append order.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/logger"
	"github.com/formpilot/engine/internal/session"
)

const (
	metaPrefix   = "meta/"
	actionPrefix = "act/"
)

// Store is the durable session store
type Store struct {
	db  *pebble.DB
	log zerolog.Logger

	// mu guards seqs and locks; writes to one session serialize on its
	// entry in locks, so writers to different sessions stay independent
	mu    sync.Mutex
	seqs  map[string]uint64
	locks map[string]*sync.Mutex
}

// Open opens (or creates) the store under a data directory
func Open(dataDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(dataDir, "sessions"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return &Store{
		db:    db,
		log:   logger.WithComponent("store"),
		seqs:  make(map[string]uint64),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Create opens a new session in recording state, classifying the platform
// from the start URL once
func (s *Store) Create(ctx context.Context, startURL string) (*session.Session, error) {
	sess := &session.Session{
		ID:        uuid.NewString(),
		StartURL:  startURL,
		Platform:  session.ClassifyPlatform(startURL),
		Status:    session.StatusRecording,
		StartTime: time.Now(),
	}
	if err := s.putMeta(sess); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("session", sess.ID).
		Str("platform", string(sess.Platform)).
		Msg("Session created")
	return sess, nil
}

// Get loads a session and its full action log
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.getMeta(id)
	if err != nil {
		return nil, err
	}
	actions, err := s.loadActions(id)
	if err != nil {
		return nil, err
	}
	sess.Actions = actions
	return sess, nil
}

// List loads every stored session with its actions
func (s *Store) List(ctx context.Context) ([]*session.Session, error) {
	iter, err := s.db.NewIter(prefixBounds(metaPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key())[len(metaPrefix):])
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// AppendAction persists one action at the end of a session's log. Appends
// to the same session are serialized; the action is immutable afterwards.
func (s *Store) AppendAction(ctx context.Context, sessionID string, a action.Action) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.getMeta(sessionID); err != nil {
		return err
	}

	seq, err := s.nextSeq(sessionID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}
	if err := s.db.Set(actionKey(sessionID, seq), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write action: %w", err)
	}
	return nil
}

// UpdateStatus transitions a session's status, stamping the end time on
// terminal transitions
func (s *Store) UpdateStatus(ctx context.Context, sessionID string, status session.Status) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.getMeta(sessionID)
	if err != nil {
		return err
	}
	sess.Status = status
	if status.Terminal() && sess.EndTime == nil {
		now := time.Now()
		sess.EndTime = &now
	}
	return s.putMeta(sess)
}

// Delete removes a session and its action log
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.getMeta(sessionID); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete([]byte(metaPrefix+sessionID), nil); err != nil {
		return err
	}
	lower, upper := actionBounds(sessionID)
	if err := batch.DeleteRange(lower, upper, nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.mu.Lock()
	delete(s.seqs, sessionID)
	delete(s.locks, sessionID)
	s.mu.Unlock()

	return nil
}

func (s *Store) putMeta(sess *session.Session) error {
	meta := *sess
	meta.Actions = nil
	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.db.Set([]byte(metaPrefix+sess.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *Store) getMeta(id string) (*session.Session, error) {
	data, closer, err := s.db.Get([]byte(metaPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, SessionNotFoundError{SessionID: id}
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	defer closer.Close()

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *Store) loadActions(id string) ([]action.Action, error) {
	lower, upper := actionBounds(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}
	defer iter.Close()

	var actions []action.Action
	for iter.First(); iter.Valid(); iter.Next() {
		var a action.Action
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return actions, nil
}

// nextSeq returns the next append position, recovering the counter from
// the last stored key after a restart
func (s *Store) nextSeq(sessionID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.seqs[sessionID]; ok {
		s.seqs[sessionID] = seq + 1
		return seq + 1, nil
	}

	lower, upper := actionBounds(sessionID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var last uint64
	if iter.Last() && iter.Valid() {
		key := iter.Key()
		last = binary.BigEndian.Uint64(key[len(key)-8:])
	}
	s.seqs[sessionID] = last + 1
	return last + 1, nil
}

func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

func actionKey(sessionID string, seq uint64) []byte {
	key := make([]byte, 0, len(actionPrefix)+len(sessionID)+9)
	key = append(key, actionPrefix...)
	key = append(key, sessionID...)
	key = append(key, '/')
	return binary.BigEndian.AppendUint64(key, seq)
}

func actionBounds(sessionID string) (lower, upper []byte) {
	prefix := actionPrefix + sessionID + "/"
	lower = []byte(prefix)
	upper = keyUpperBound(lower)
	return lower, upper
}

func prefixBounds(prefix string) *pebble.IterOptions {
	lower := []byte(prefix)
	return &pebble.IterOptions{LowerBound: lower, UpperBound: keyUpperBound(lower)}
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix
func keyUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
