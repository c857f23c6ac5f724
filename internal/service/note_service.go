// FILE: internal/service/note_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collab-notes-be/internal/access"
	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/locking"
	"collab-notes-be/internal/repository/specification"
	"collab-notes-be/internal/repository/unitofwork"

	"collab-notes-be/pkg/events"
	pktNats "collab-notes-be/pkg/nats"

	"github.com/google/uuid"
)

var (
	// ErrNoteNotFound is returned both when a note does not exist and
	// when the caller has no tier on it. The two cases must be
	// indistinguishable to the caller.
	ErrNoteNotFound = errors.New("note not found")

	// ErrEditForbidden is returned when the caller can see the note but
	// its tier does not permit editing.
	ErrEditForbidden = errors.New("write access required")

	// ErrTitleRequired rejects titles that are empty once surrounding
	// whitespace is stripped; the stored title is never blank.
	ErrTitleRequired = errors.New("title must not be blank")
)

type INoteService interface {
	ListNotes(ctx context.Context, userId uuid.UUID) (*dto.ListNotesResponse, error)
	CreateNote(ctx context.Context, userId uuid.UUID, req *dto.CreateNoteRequest) (*dto.CreateNoteResponse, error)
	ViewNote(ctx context.Context, userId uuid.UUID, noteId uuid.UUID) (*dto.NoteView, error)

	EnterEdit(ctx context.Context, userId uuid.UUID, noteId uuid.UUID) (*dto.NoteEditView, error)
	SaveEdit(ctx context.Context, userId uuid.UUID, req *dto.UpdateNoteRequest) (*dto.NoteView, error)
	ExitEdit(ctx context.Context, userId uuid.UUID, noteId uuid.UUID) error

	// HandleExpiredLocks fans sweep results out to watchers. Wired as the
	// sweeper's callback.
	HandleExpiredLocks(expired []locking.Lock)
}

type noteService struct {
	uowFactory     unitofwork.RepositoryFactory
	lockManager    locking.Manager
	eventPublisher IPublisherService
	syncPublisher  *pktNats.Publisher
}

func NewNoteService(
	uowFactory unitofwork.RepositoryFactory,
	lockManager locking.Manager,
	eventPublisher IPublisherService,
	syncPublisher *pktNats.Publisher,
) INoteService {
	return &noteService{
		uowFactory:     uowFactory,
		lockManager:    lockManager,
		eventPublisher: eventPublisher,
		syncPublisher:  syncPublisher,
	}
}

func (s *noteService) ListNotes(ctx context.Context, userId uuid.UUID) (*dto.ListNotesResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	notes, err := uow.NoteRepository().FindAll(ctx,
		specification.VisibleTo{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	names, err := s.resolveOwnerNames(ctx, uow, notes)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.NoteSummary, 0, len(notes))
	for _, note := range notes {
		tier := access.Evaluate(userId, note)
		summaries = append(summaries, dto.NoteSummary{
			Id:          note.Id,
			Title:       note.Title,
			OwnerName:   names[note.OwnerId],
			IsOwner:     tier == access.TierOwner,
			AccessLevel: string(tier),
			Visibility:  string(note.Visibility),
			CreatedAt:   note.CreatedAt,
			UpdatedAt:   note.UpdatedAt,
		})
	}

	return &dto.ListNotesResponse{Notes: summaries}, nil
}

func (s *noteService) CreateNote(ctx context.Context, userId uuid.UUID, req *dto.CreateNoteRequest) (*dto.CreateNoteResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	visibility := entity.Visibility(req.Visibility)
	if req.Visibility == "" {
		visibility = entity.VisibilityPrivate
	}
	if !visibility.IsValid() {
		return nil, fmt.Errorf("invalid visibility %q", req.Visibility)
	}

	now := time.Now()
	note := &entity.Note{
		Id:         uuid.New(),
		OwnerId:    userId,
		Title:      title,
		Content:    req.Content,
		Visibility: visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uow.NoteRepository().Create(ctx, note); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeNoteCreated, map[string]interface{}{
		"note_id":    note.Id.String(),
		"owner_id":   note.OwnerId.String(),
		"title":      note.Title,
		"visibility": string(note.Visibility),
	})
	s.publishSync(ctx, events.TypeNoteCreated, map[string]interface{}{
		"note_id":    note.Id.String(),
		"owner_id":   note.OwnerId.String(),
		"title":      note.Title,
		"content":    note.Content,
		"visibility": string(note.Visibility),
		"created_at": note.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": note.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})

	return &dto.CreateNoteResponse{Id: note.Id}, nil
}

func (s *noteService) ViewNote(ctx context.Context, userId uuid.UUID, noteId uuid.UUID) (*dto.NoteView, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	note, tier, err := s.loadVisible(ctx, uow, userId, noteId)
	if err != nil {
		return nil, err
	}

	return s.buildView(ctx, uow, userId, note, tier)
}

// EnterEdit acquires the edit lock and returns the note for editing.
// Check order matters: invisibility must surface as not-found before
// any tier or lock state leaks.
func (s *noteService) EnterEdit(ctx context.Context, userId uuid.UUID, noteId uuid.UUID) (*dto.NoteEditView, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	note, tier, err := s.loadVisible(ctx, uow, userId, noteId)
	if err != nil {
		return nil, err
	}
	if !tier.CanWrite() {
		return nil, ErrEditForbidden
	}

	lock, err := s.lockManager.TryAcquire(ctx, noteId, userId, tier)
	if err != nil {
		if errors.Is(err, locking.ErrTierForbidden) {
			return nil, ErrEditForbidden
		}
		return nil, err
	}

	s.publish(ctx, events.TypeLockAcquired, map[string]interface{}{
		"note_id":     lock.NoteId.String(),
		"holder_id":   lock.HolderId.String(),
		"acquired_at": lock.AcquiredAt.UTC().Format(time.RFC3339Nano),
	})

	view, err := s.buildView(ctx, uow, userId, note, tier)
	if err != nil {
		return nil, err
	}
	return &dto.NoteEditView{Note: *view}, nil
}

// SaveEdit persists new content while keeping the lock. Saving counts
// as activity, so the inactivity window restarts; the session stays
// open until ExitEdit or the sweeper ends it.
func (s *noteService) SaveEdit(ctx context.Context, userId uuid.UUID, req *dto.UpdateNoteRequest) (*dto.NoteView, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	note, tier, err := s.loadVisible(ctx, uow, userId, req.Id)
	if err != nil {
		return nil, err
	}
	if !tier.CanWrite() {
		return nil, ErrEditForbidden
	}

	// The save must ride on a held lock; a lapsed or foreign lock means
	// the edit session is gone and the write is rejected.
	if err := s.lockManager.Refresh(ctx, req.Id, userId); err != nil {
		return nil, err
	}

	note.Title = title
	note.Content = req.Content
	note.UpdatedAt = time.Now()

	if err := uow.NoteRepository().Update(ctx, note); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeNoteUpdated, map[string]interface{}{
		"note_id":  note.Id.String(),
		"owner_id": note.OwnerId.String(),
		"title":    note.Title,
	})
	s.publishSync(ctx, events.TypeNoteUpdated, map[string]interface{}{
		"note_id":    note.Id.String(),
		"title":      note.Title,
		"content":    note.Content,
		"updated_at": note.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})

	return s.buildView(ctx, uow, userId, note, tier)
}

func (s *noteService) ExitEdit(ctx context.Context, userId uuid.UUID, noteId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, _, err := s.loadVisible(ctx, uow, userId, noteId); err != nil {
		return err
	}

	if err := s.lockManager.Release(ctx, noteId, userId); err != nil {
		return err
	}

	s.publish(ctx, events.TypeLockReleased, map[string]interface{}{
		"note_id":   noteId.String(),
		"holder_id": userId.String(),
	})
	return nil
}

func (s *noteService) HandleExpiredLocks(expired []locking.Lock) {
	ctx := context.Background()
	for _, lock := range expired {
		s.publish(ctx, events.TypeLockExpired, map[string]interface{}{
			"note_id":   lock.NoteId.String(),
			"holder_id": lock.HolderId.String(),
		})
	}
}

// loadVisible fetches a note and the caller's tier on it. A missing
// note and an invisible note both come back as ErrNoteNotFound.
func (s *noteService) loadVisible(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, noteId uuid.UUID) (*entity.Note, access.Tier, error) {
	note, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: noteId})
	if err != nil {
		return nil, access.TierNone, err
	}
	if note == nil {
		return nil, access.TierNone, ErrNoteNotFound
	}

	tier := access.Evaluate(userId, note)
	if !tier.CanRead() {
		return nil, access.TierNone, ErrNoteNotFound
	}
	return note, tier, nil
}

func (s *noteService) buildView(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, note *entity.Note, tier access.Tier) (*dto.NoteView, error) {
	owner, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: note.OwnerId})
	if err != nil {
		return nil, err
	}

	ownerName := ""
	if owner != nil {
		ownerName = owner.DisplayName
	}

	lockInfo := dto.LockInfo{}
	if lock, held := s.lockManager.Get(ctx, note.Id); held {
		holderId := lock.HolderId
		lockInfo = dto.LockInfo{
			Locked: true,
			UserId: &holderId,
			IsMe:   holderId == userId,
		}
	}

	return &dto.NoteView{
		Id:          note.Id,
		Title:       note.Title,
		Content:     note.Content,
		OwnerName:   ownerName,
		IsOwner:     tier == access.TierOwner,
		AccessLevel: string(tier),
		CreatedAt:   note.CreatedAt,
		UpdatedAt:   note.UpdatedAt,
		Lock:        lockInfo,
	}, nil
}

func (s *noteService) resolveOwnerNames(ctx context.Context, uow unitofwork.UnitOfWork, notes []*entity.Note) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string)
	for _, note := range notes {
		if _, seen := names[note.OwnerId]; seen {
			continue
		}
		owner, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: note.OwnerId})
		if err != nil {
			return nil, err
		}
		if owner != nil {
			names[note.OwnerId] = owner.DisplayName
		}
	}
	return names, nil
}

func (s *noteService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		fmt.Printf("[WARN] Failed to publish %s event: %v\n", eventType, err)
	}
}

// publishSync forwards a state change to the replica stream. Only the
// master node carries a publisher; replicas leave it nil.
func (s *noteService) publishSync(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.syncPublisher == nil {
		return
	}
	evt := events.BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
	if err := s.syncPublisher.Publish(ctx, evt); err != nil {
		fmt.Printf("[WARN] Failed to publish sync event %s: %v\n", eventType, err)
	}
}
