package entity

import (
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityRead    Visibility = "read"
	VisibilityWrite   Visibility = "write"
)

// IsValid reports whether v is one of the three stored visibility values.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityRead, VisibilityWrite:
		return true
	}
	return false
}

type Note struct {
	Id         uuid.UUID
	OwnerId    uuid.UUID
	Title      string
	Content    string
	Visibility Visibility
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
