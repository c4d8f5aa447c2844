package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// TelemetryStore is an in-memory store.TelemetryStore.
type TelemetryStore struct {
	mu       sync.Mutex
	sessions map[string]*types.AppSession
	crashes  []*types.CrashReport
	perf     []*types.PerformanceReport
}

// NewTelemetryStore creates an empty in-memory telemetry store.
func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{sessions: make(map[string]*types.AppSession)}
}

func copyAppSession(s *types.AppSession) *types.AppSession {
	out := *s
	out.Activities = append([]types.SessionActivity(nil), s.Activities...)
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return &out
}

func (s *TelemetryStore) CreateSession(ctx context.Context, session *types.AppSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionID]; ok {
		return store.ErrConflict
	}
	s.sessions[session.SessionID] = copyAppSession(session)
	return nil
}

func (s *TelemetryStore) GetSession(ctx context.Context, sessionID string) (*types.AppSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyAppSession(session), nil
}

func (s *TelemetryStore) UpdateSession(ctx context.Context, session *types.AppSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionID]; !ok {
		return store.ErrNotFound
	}
	s.sessions[session.SessionID] = copyAppSession(session)
	return nil
}

func (s *TelemetryStore) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]*types.AppSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.AppSession
	for _, session := range s.sessions {
		if userID != "" && session.UserID != userID {
			continue
		}
		if !from.IsZero() && session.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && session.StartTime.After(to) {
			continue
		}
		out = append(out, copyAppSession(session))
	}
	return out, nil
}

func (s *TelemetryStore) CreateCrashReport(ctx context.Context, c *types.CrashReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *c
	s.crashes = append(s.crashes, &rec)
	return nil
}

func (s *TelemetryStore) ListCrashReports(ctx context.Context, deviceID string, from, to time.Time) ([]*types.CrashReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.CrashReport
	for _, c := range s.crashes {
		if deviceID != "" && c.DeviceID != deviceID {
			continue
		}
		if !from.IsZero() && c.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && c.Timestamp.After(to) {
			continue
		}
		rec := *c
		out = append(out, &rec)
	}
	return out, nil
}

func (s *TelemetryStore) CreatePerformanceReport(ctx context.Context, p *types.PerformanceReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *p
	s.perf = append(s.perf, &rec)
	return nil
}

func (s *TelemetryStore) ListPerformanceReports(ctx context.Context, deviceID string, from, to time.Time) ([]*types.PerformanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.PerformanceReport
	for _, p := range s.perf {
		if deviceID != "" && p.DeviceID != deviceID {
			continue
		}
		if !from.IsZero() && p.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && p.CreatedAt.After(to) {
			continue
		}
		rec := *p
		out = append(out, &rec)
	}
	return out, nil
}
