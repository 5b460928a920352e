package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store with the same transition semantics as
// the Postgres repository. It backs the service and handler tests.
type MemStore struct {
	mu       sync.Mutex
	classes  map[string]MemClass
	sessions map[string]*Session
	records  []Record
}

// MemClass seeds a class row.
type MemClass struct {
	ID          string
	ProfessorID string
	Roster      map[string]string // roll number -> full name
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		classes:  make(map[string]MemClass),
		sessions: make(map[string]*Session),
	}
}

var _ Store = (*MemStore)(nil)

// AddClass registers a class.
func (m *MemStore) AddClass(c MemClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Roster == nil {
		c.Roster = make(map[string]string)
	}
	m.classes[c.ID] = c
}

func (m *MemStore) ClassProfessor(_ context.Context, classID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[classID]
	if !ok {
		return "", ErrClassNotFound
	}
	return c.ProfessorID, nil
}

func (m *MemStore) InsertSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := s
	m.sessions[s.ID] = &copied
	return nil
}

func (m *MemStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s, nil
}

func (m *MemStore) ActivateSession(_ context.Context, sessionID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for _, s := range m.sessions {
		if s.ClassID == target.ClassID && s.IsActive && s.ID != sessionID {
			s.Status = StatusExpired
			s.IsActive = false
		}
	}
	activatedAt := now
	target.Status = StatusActive
	target.IsActive = true
	target.CodeActivatedAt = &activatedAt
	return nil
}

func (m *MemStore) FindValidSession(_ context.Context, classID, code string, now time.Time, codeWindow time.Duration) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-codeWindow)
	for _, s := range m.sessions {
		if s.IsActive && s.CodeActivatedAt != nil && s.CodeActivatedAt.Before(cutoff) {
			s.Status = StatusExpired
			s.IsActive = false
		}
	}
	var matches []*Session
	for _, s := range m.sessions {
		if s.ClassID == classID && s.AttendanceCode == code && s.Status == StatusActive {
			matches = append(matches, s)
		}
	}
	if len(matches) != 1 {
		return Session{}, ErrWindowClosed
	}
	return *matches[0], nil
}

func (m *MemStore) InsertRecords(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		if rec.StudentID == nil {
			continue
		}
		for _, existing := range m.records {
			if existing.SessionID == rec.SessionID && existing.StudentID != nil && *existing.StudentID == *rec.StudentID {
				return ErrAlreadySubmitted
			}
		}
	}
	m.records = append(m.records, recs...)
	return nil
}

func (m *MemStore) ListRecords(_ context.Context, classID string) ([]RecordView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roster := map[string]string{}
	if c, ok := m.classes[classID]; ok {
		roster = c.Roster
	}
	var views []RecordView
	for _, rec := range m.records {
		if rec.ClassID != classID {
			continue
		}
		views = append(views, RecordView{
			RollNumber:         rec.RollNumber,
			Name:               roster[rec.RollNumber],
			Status:             rec.Status,
			VerificationStatus: rec.VerificationStatus,
			MarkedAt:           rec.MarkedAt,
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].MarkedAt.Before(views[j].MarkedAt) })
	return views, nil
}

func (m *MemStore) SetVerification(_ context.Context, sessionID, studentID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		rec := &m.records[i]
		if rec.SessionID == sessionID && rec.StudentID != nil && *rec.StudentID == studentID {
			rec.VerificationStatus = status
		}
	}
	return nil
}

// ActiveSessions reports the active sessions of a class; test helper for
// the single-active invariant.
func (m *MemStore) ActiveSessions(classID string) []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.ClassID == classID && s.IsActive {
			out = append(out, *s)
		}
	}
	return out
}

// Records returns a snapshot of all record rows; test helper.
func (m *MemStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
