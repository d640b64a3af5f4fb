package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

// Store is an in-memory SessionStore. It is intended for tests and dev
// environments.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]types.AccessSession
	open     map[int64]int64 // member_id -> open session id
	now      func() time.Time
}

func New() *Store {
	return &Store{
		sessions: make(map[int64]types.AccessSession),
		open:     make(map[int64]int64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(_ context.Context, sess types.AccessSession) (types.AccessSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[sess.MemberID]; ok {
		return types.AccessSession{}, store.ErrOpenSessionExists
	}

	now := s.now()
	s.nextID++
	sess.ID = s.nextID
	sess.ExitTime = nil
	sess.Active = true
	sess.CreatedAt = now
	sess.UpdatedAt = now

	s.sessions[sess.ID] = sess
	s.open[sess.MemberID] = sess.ID
	return sess, nil
}

func (s *Store) Close(_ context.Context, id int64, exitAt time.Time, exitQRCode string) (types.AccessSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return types.AccessSession{}, store.ErrNotFound
	}
	if !sess.Active {
		return types.AccessSession{}, store.ErrSessionNotOpen
	}

	exit := exitAt.UTC()
	sess.ExitTime = &exit
	sess.ExitQRCode = exitQRCode
	sess.Active = false
	sess.UpdatedAt = s.now()

	s.sessions[id] = sess
	delete(s.open, sess.MemberID)
	return sess, nil
}

func (s *Store) FindByID(_ context.Context, id int64) (types.AccessSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return types.AccessSession{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) FindOpenByMember(_ context.Context, memberID int64) (types.AccessSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.open[memberID]
	if !ok {
		return types.AccessSession{}, false, nil
	}
	return s.sessions[id], true, nil
}

func (s *Store) FindByMember(_ context.Context, memberID int64) ([]types.AccessSession, error) {
	return s.filter(func(sess types.AccessSession) bool { return sess.MemberID == memberID }), nil
}

func (s *Store) FindByRange(_ context.Context, start, end time.Time) ([]types.AccessSession, error) {
	return s.filter(func(sess types.AccessSession) bool {
		return !sess.EntryTime.Before(start) && !sess.EntryTime.After(end)
	}), nil
}

func (s *Store) FindAllOpen(_ context.Context) ([]types.AccessSession, error) {
	return s.filter(func(sess types.AccessSession) bool { return sess.Active }), nil
}

func (s *Store) CountOpen(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.open)), nil
}

func (s *Store) FindRecent(_ context.Context, limit int) ([]types.AccessSession, error) {
	out := s.filter(func(types.AccessSession) bool { return true })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindByQRCode(_ context.Context, code string) ([]types.AccessSession, error) {
	code = strings.TrimSpace(code)
	return s.filter(func(sess types.AccessSession) bool {
		return sess.QRCode == code || sess.ExitQRCode == code
	}), nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, id)
	if openID, ok := s.open[sess.MemberID]; ok && openID == id {
		delete(s.open, sess.MemberID)
	}
	return nil
}

// filter returns matching sessions ordered by entry time, newest first.
func (s *Store) filter(keep func(types.AccessSession) bool) []types.AccessSession {
	s.mu.RLock()
	out := make([]types.AccessSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if keep(sess) {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].EntryTime.After(out[j].EntryTime)
	})
	return out
}
