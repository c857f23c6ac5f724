package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"collab-notes-be/internal/entity"
)

// SharedWith matches notes another user has opened up: not owned by the
// given user and not private. Visibility is global per note, so "shared
// with me" means exactly "not mine and not private".
type SharedWith struct {
	UserID uuid.UUID
}

func (s SharedWith) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("owner_id <> ? AND visibility IN ?",
		s.UserID,
		[]string{string(entity.VisibilityRead), string(entity.VisibilityWrite)},
	)
}

// VisibleTo matches notes the given user may see at all: their own notes
// plus any note that is not private.
type VisibleTo struct {
	UserID uuid.UUID
}

func (s VisibleTo) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("owner_id = ? OR visibility IN ?",
		s.UserID,
		[]string{string(entity.VisibilityRead), string(entity.VisibilityWrite)},
	)
}
