package locking

import (
	"context"
	"sync"
	"time"

	"collab-notes-be/internal/access"
	"collab-notes-be/internal/dto"

	"github.com/google/uuid"
)

type lockRecord struct {
	holderId   uuid.UUID
	acquiredAt time.Time
	lastActive time.Time
}

// MemoryManager keeps locks in a map guarded by a single mutex. Lock
// volume is one record per note currently being edited, so a coarse
// mutex is enough; no operation under it blocks or does I/O.
type MemoryManager struct {
	mu      sync.Mutex
	locks   map[uuid.UUID]*lockRecord
	timeout time.Duration
	now     func() time.Time
}

func NewMemoryManager(timeout time.Duration) *MemoryManager {
	return &MemoryManager{
		locks:   make(map[uuid.UUID]*lockRecord),
		timeout: timeout,
		now:     time.Now,
	}
}

// stale reports whether a record's inactivity window has lapsed. Stale
// records are treated as absent; the sweeper deletes them eventually,
// but acquisition must not wait for the sweep.
func (m *MemoryManager) stale(rec *lockRecord, now time.Time) bool {
	return now.Sub(rec.lastActive) > m.timeout
}

func (m *MemoryManager) TryAcquire(ctx context.Context, noteId uuid.UUID, userId uuid.UUID, tier access.Tier) (*Lock, error) {
	if !tier.CanWrite() {
		return nil, ErrTierForbidden
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if rec, ok := m.locks[noteId]; ok && !m.stale(rec, now) {
		if rec.holderId == userId {
			// Re-entering one's own edit session: renew, keep AcquiredAt.
			rec.lastActive = now
			return &Lock{NoteId: noteId, HolderId: rec.holderId, AcquiredAt: rec.acquiredAt}, nil
		}
		return nil, &dto.LockConflictError{NoteId: noteId, HolderId: rec.holderId}
	}

	m.locks[noteId] = &lockRecord{
		holderId:   userId,
		acquiredAt: now,
		lastActive: now,
	}
	return &Lock{NoteId: noteId, HolderId: userId, AcquiredAt: now}, nil
}

func (m *MemoryManager) Refresh(ctx context.Context, noteId uuid.UUID, userId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec, ok := m.locks[noteId]
	if !ok || m.stale(rec, now) || rec.holderId != userId {
		return ErrNotHolder
	}
	rec.lastActive = now
	return nil
}

func (m *MemoryManager) Release(ctx context.Context, noteId uuid.UUID, userId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.locks[noteId]
	if !ok || m.stale(rec, m.now()) || rec.holderId != userId {
		return ErrNotHolder
	}
	delete(m.locks, noteId)
	return nil
}

func (m *MemoryManager) Get(ctx context.Context, noteId uuid.UUID) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.locks[noteId]
	if !ok || m.stale(rec, m.now()) {
		return nil, false
	}
	return &Lock{NoteId: noteId, HolderId: rec.holderId, AcquiredAt: rec.acquiredAt}, true
}

// ExpireStale removes every lock whose inactivity window has lapsed and
// returns them, so callers can notify watchers. Runs in the same
// critical section as acquire/release.
func (m *MemoryManager) ExpireStale() []Lock {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expired []Lock
	for noteId, rec := range m.locks {
		if m.stale(rec, now) {
			expired = append(expired, Lock{NoteId: noteId, HolderId: rec.holderId, AcquiredAt: rec.acquiredAt})
			delete(m.locks, noteId)
		}
	}
	return expired
}
