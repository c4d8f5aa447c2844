package memory

import (
	"context"
	"sync"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// SyncSessionStore is an in-memory store.SyncSessionStore.
type SyncSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.SyncSession
}

// NewSyncSessionStore creates an empty in-memory sync session store.
func NewSyncSessionStore() *SyncSessionStore {
	return &SyncSessionStore{sessions: make(map[string]*types.SyncSession)}
}

func copySession(s *types.SyncSession) *types.SyncSession {
	out := *s
	out.Errors = append([]types.SyncError(nil), s.Errors...)
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return &out
}

func (s *SyncSessionStore) Create(ctx context.Context, session *types.SyncSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return store.ErrConflict
	}
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *SyncSessionStore) Get(ctx context.Context, id string) (*types.SyncSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copySession(session), nil
}

func (s *SyncSessionStore) Update(ctx context.Context, session *types.SyncSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return store.ErrNotFound
	}
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *SyncSessionStore) ListByUser(ctx context.Context, userID string) ([]*types.SyncSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.SyncSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, copySession(session))
		}
	}
	return out, nil
}
