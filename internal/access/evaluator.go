package access

import (
	"collab-notes-be/internal/entity"

	"github.com/google/uuid"
)

// Tier is the access level a caller has on a note. It is derived per
// request from (note.OwnerId, note.Visibility, caller id) and never
// cached across requests, since visibility can change between them.
type Tier string

const (
	TierOwner Tier = "owner"
	TierWrite Tier = "write"
	TierRead  Tier = "read"
	TierNone  Tier = "none"
)

// Evaluate computes the caller's tier on a note. Owner beats everything;
// non-owners get the note's visibility; private notes yield TierNone,
// which callers must treat as the note not existing at all.
func Evaluate(userId uuid.UUID, note *entity.Note) Tier {
	if note.OwnerId == userId {
		return TierOwner
	}
	switch note.Visibility {
	case entity.VisibilityRead:
		return TierRead
	case entity.VisibilityWrite:
		return TierWrite
	default:
		return TierNone
	}
}

// CanRead reports whether the tier permits fetching the note at all.
func (t Tier) CanRead() bool {
	return t != TierNone
}

// CanWrite reports whether the tier permits mutation (editing, lock
// acquisition). Read visibility is display-only.
func (t Tier) CanWrite() bool {
	return t == TierOwner || t == TierWrite
}
