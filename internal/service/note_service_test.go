package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/locking"
	"collab-notes-be/internal/repository/unitofwork"
	"collab-notes-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteServiceEnv struct {
	svc   INoteService
	locks *locking.MemoryManager
	uow   unitofwork.RepositoryFactory
}

func newNoteServiceEnv(t *testing.T) *noteServiceEnv {
	t.Helper()

	db, err := database.NewGormDB("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	uowFactory := unitofwork.NewRepositoryFactory(db)
	locks := locking.NewMemoryManager(15 * time.Minute)

	return &noteServiceEnv{
		svc:   NewNoteService(uowFactory, locks, nil, nil),
		locks: locks,
		uow:   uowFactory,
	}
}

func (env *noteServiceEnv) seedUser(t *testing.T, displayName string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	user := &entity.User{
		Id:           uuid.New(),
		Username:     displayName + "-" + uuid.NewString()[:8],
		DisplayName:  displayName,
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, env.uow.NewUnitOfWork(ctx).UserRepository().Create(ctx, user))
	return user.Id
}

func (env *noteServiceEnv) seedNote(t *testing.T, owner uuid.UUID, title, visibility string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	res, err := env.svc.CreateNote(ctx, owner, &dto.CreateNoteRequest{
		Title:      title,
		Content:    "content of " + title,
		Visibility: visibility,
	})
	require.NoError(t, err)
	return res.Id
}

func TestCreateNoteDefaultsToPrivate(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")
	bob := env.seedUser(t, "Bob")

	noteId := env.seedNote(t, alice, "quiet thoughts", "")

	view, err := env.svc.ViewNote(ctx, alice, noteId)
	require.NoError(t, err)
	assert.True(t, view.IsOwner)
	assert.Equal(t, "owner", view.AccessLevel)
	assert.Equal(t, "Alice", view.OwnerName)

	// Private means invisible, not forbidden.
	_, err = env.svc.ViewNote(ctx, bob, noteId)
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestListNotesFiltersAndAnnotates(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")
	bob := env.seedUser(t, "Bob")

	env.seedNote(t, alice, "private one", "private")
	env.seedNote(t, alice, "readable one", "read")
	env.seedNote(t, alice, "writable one", "write")

	aliceList, err := env.svc.ListNotes(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, aliceList.Notes, 3)
	for _, n := range aliceList.Notes {
		assert.True(t, n.IsOwner)
		assert.Equal(t, "owner", n.AccessLevel)
	}

	bobList, err := env.svc.ListNotes(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobList.Notes, 2)

	levels := map[string]string{}
	for _, n := range bobList.Notes {
		assert.False(t, n.IsOwner)
		assert.Equal(t, "Alice", n.OwnerName)
		levels[n.Title] = n.AccessLevel
	}
	assert.Equal(t, "read", levels["readable one"])
	assert.Equal(t, "write", levels["writable one"])
}

func TestListNotesOrdersByLastUpdate(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")

	older := env.seedNote(t, alice, "older", "private")
	newer := env.seedNote(t, alice, "newer", "private")

	// Editing the older note bumps it to the top.
	_, err := env.svc.EnterEdit(ctx, alice, older)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = env.svc.SaveEdit(ctx, alice, &dto.UpdateNoteRequest{Id: older, Title: "older", Content: "revised"})
	require.NoError(t, err)

	list, err := env.svc.ListNotes(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list.Notes, 2)
	assert.Equal(t, older, list.Notes[0].Id)
	assert.Equal(t, newer, list.Notes[1].Id)
}

func TestEnterEditAccessChecks(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")
	bob := env.seedUser(t, "Bob")

	privateNote := env.seedNote(t, alice, "private", "private")
	readNote := env.seedNote(t, alice, "read-only", "read")
	writeNote := env.seedNote(t, alice, "shared", "write")

	// Invisible note: indistinguishable from absent.
	_, err := env.svc.EnterEdit(ctx, bob, privateNote)
	assert.ErrorIs(t, err, ErrNoteNotFound)

	// Visible but read-only: explicit refusal.
	_, err = env.svc.EnterEdit(ctx, bob, readNote)
	assert.ErrorIs(t, err, ErrEditForbidden)

	// Write visibility: lock granted.
	view, err := env.svc.EnterEdit(ctx, bob, writeNote)
	require.NoError(t, err)
	assert.True(t, view.Note.Lock.Locked)
	assert.True(t, view.Note.Lock.IsMe)

	// The owner now collides with bob's session.
	_, err = env.svc.EnterEdit(ctx, alice, writeNote)
	var conflict *dto.LockConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, bob, conflict.HolderId)
}

func TestSaveEditRequiresHeldLock(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")

	noteId := env.seedNote(t, alice, "draft", "private")

	// Saving without an edit session is rejected.
	_, err := env.svc.SaveEdit(ctx, alice, &dto.UpdateNoteRequest{Id: noteId, Title: "draft", Content: "new"})
	assert.ErrorIs(t, err, locking.ErrNotHolder)

	_, err = env.svc.EnterEdit(ctx, alice, noteId)
	require.NoError(t, err)

	saved, err := env.svc.SaveEdit(ctx, alice, &dto.UpdateNoteRequest{Id: noteId, Title: "draft v2", Content: "new"})
	require.NoError(t, err)
	assert.Equal(t, "draft v2", saved.Title)
	assert.Equal(t, "new", saved.Content)

	// Saving keeps the session open.
	assert.True(t, saved.Lock.Locked)
	assert.True(t, saved.Lock.IsMe)
}

func TestBlankTitleIsRejected(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")

	// Whitespace-only titles trim down to nothing and never persist.
	_, err := env.svc.CreateNote(ctx, alice, &dto.CreateNoteRequest{Title: "   ", Content: "body"})
	assert.ErrorIs(t, err, ErrTitleRequired)

	noteId := env.seedNote(t, alice, "kept", "private")
	_, err = env.svc.EnterEdit(ctx, alice, noteId)
	require.NoError(t, err)

	_, err = env.svc.SaveEdit(ctx, alice, &dto.UpdateNoteRequest{Id: noteId, Title: " \t ", Content: "body"})
	assert.ErrorIs(t, err, ErrTitleRequired)

	view, err := env.svc.ViewNote(ctx, alice, noteId)
	require.NoError(t, err)
	assert.Equal(t, "kept", view.Title)
}

func TestExitEditReleasesLock(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")
	bob := env.seedUser(t, "Bob")

	noteId := env.seedNote(t, alice, "shared", "write")

	_, err := env.svc.EnterEdit(ctx, alice, noteId)
	require.NoError(t, err)

	// Only the holder can end the session.
	assert.ErrorIs(t, env.svc.ExitEdit(ctx, bob, noteId), locking.ErrNotHolder)

	require.NoError(t, env.svc.ExitEdit(ctx, alice, noteId))

	view, err := env.svc.ViewNote(ctx, bob, noteId)
	require.NoError(t, err)
	assert.False(t, view.Lock.Locked)

	// The note is free for the next editor.
	_, err = env.svc.EnterEdit(ctx, bob, noteId)
	assert.NoError(t, err)
}

func TestViewNoteExposesForeignLock(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")
	bob := env.seedUser(t, "Bob")

	noteId := env.seedNote(t, alice, "shared", "write")

	_, err := env.svc.EnterEdit(ctx, alice, noteId)
	require.NoError(t, err)

	view, err := env.svc.ViewNote(ctx, bob, noteId)
	require.NoError(t, err)
	require.True(t, view.Lock.Locked)
	require.NotNil(t, view.Lock.UserId)
	assert.Equal(t, alice, *view.Lock.UserId)
	assert.False(t, view.Lock.IsMe)
}

func TestCreateNoteRejectsUnknownVisibility(t *testing.T) {
	ctx := context.Background()
	env := newNoteServiceEnv(t)
	alice := env.seedUser(t, "Alice")

	_, err := env.svc.CreateNote(ctx, alice, &dto.CreateNoteRequest{
		Title:      "bad",
		Visibility: "everyone",
	})
	assert.Error(t, err)
}
