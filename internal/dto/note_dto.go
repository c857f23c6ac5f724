package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateNoteRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Content    string `json:"content" validate:"max=10000"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=private read write"`
}

type CreateNoteResponse struct {
	Id uuid.UUID `json:"id"`
}

// LockInfo is the lock state exposed to clients on a note view: whether a
// lock is held, by whom, and whether the holder is the caller.
type LockInfo struct {
	Locked bool       `json:"locked"`
	UserId *uuid.UUID `json:"user_id"`
	IsMe   bool       `json:"is_me"`
}

type NoteView struct {
	Id          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	OwnerName   string    `json:"owner_name"`
	IsOwner     bool      `json:"is_owner"`
	AccessLevel string    `json:"access_level"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Lock        LockInfo  `json:"lock"`
}

type NoteSummary struct {
	Id          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	OwnerName   string    `json:"owner_name"`
	IsOwner     bool      `json:"is_owner"`
	AccessLevel string    `json:"access_level"`
	Visibility  string    `json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListNotesResponse struct {
	Notes []NoteSummary `json:"notes"`
}

type UpdateNoteRequest struct {
	Id      uuid.UUID `json:"-"`
	Title   string    `json:"title" validate:"required,max=200"`
	Content string    `json:"content" validate:"max=10000"`
}

// NoteDetailView wraps a single note payload; detail and edit responses
// share this shape.
type NoteDetailView struct {
	Note NoteView `json:"note"`
}

type NoteEditView struct {
	Note NoteView `json:"note"`
}

// LockConflictError is a custom error that carries the competing holder
// so clients can show who is editing instead of a generic failure.
type LockConflictError struct {
	NoteId   uuid.UUID `json:"note_id"`
	HolderId uuid.UUID `json:"locked_by_user_id"`
}

func (e *LockConflictError) Error() string {
	return "note locked by another user"
}
