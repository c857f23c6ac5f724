package locking

import (
	"context"
	"errors"
	"time"

	"collab-notes-be/internal/access"

	"github.com/google/uuid"
)

var (
	// ErrTierForbidden rejects acquisition attempts below write tier.
	ErrTierForbidden = errors.New("tier does not permit editing")

	// ErrNotHolder rejects release/refresh by anyone but the current holder.
	ErrNotHolder = errors.New("caller does not hold the lock")
)

// Lock is the ephemeral edit token for a note. At most one exists per
// note at any instant. It lives in the Manager, never in the database.
type Lock struct {
	NoteId     uuid.UUID `json:"note_id"`
	HolderId   uuid.UUID `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Manager grants and releases the single mutual-exclusion edit lock per
// note. All state transitions for one note execute under a critical
// section; TryAcquire never waits, it returns the conflict immediately.
type Manager interface {
	// TryAcquire takes the lock for userId, or renews it idempotently if
	// userId already holds it. Fails with ErrTierForbidden for tiers below
	// write, or *dto.LockConflictError carrying the current holder.
	TryAcquire(ctx context.Context, noteId uuid.UUID, userId uuid.UUID, tier access.Tier) (*Lock, error)

	// Refresh extends the holder's inactivity window without changing
	// AcquiredAt. Fails with ErrNotHolder if userId is not the holder.
	Refresh(ctx context.Context, noteId uuid.UUID, userId uuid.UUID) error

	// Release drops the lock. Fails with ErrNotHolder if userId is not the
	// holder; it never releases someone else's lock.
	Release(ctx context.Context, noteId uuid.UUID, userId uuid.UUID) error

	// Get returns the current lock on a note, if any.
	Get(ctx context.Context, noteId uuid.UUID) (*Lock, bool)
}
