// FILE: internal/service/sync_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/repository/specification"
	"collab-notes-be/internal/repository/unitofwork"

	"collab-notes-be/pkg/events"
	pktNats "collab-notes-be/pkg/nats"

	"github.com/google/uuid"
)

type ISyncService interface {
	Start() error
}

// syncService runs on replica nodes. It consumes the master's sync
// stream and applies each change with the ids the master assigned, so
// a replica serves the same rows under the same keys.
type syncService struct {
	subscriber *pktNats.Subscriber
	uowFactory unitofwork.RepositoryFactory
}

func NewSyncService(subscriber *pktNats.Subscriber, uowFactory unitofwork.RepositoryFactory) ISyncService {
	return &syncService{
		subscriber: subscriber,
		uowFactory: uowFactory,
	}
}

func (s *syncService) Start() error {
	return s.subscriber.Subscribe("sync.>", "replica-sync", s.apply)
}

func (s *syncService) apply(ctx context.Context, event events.Event) error {
	switch event.EventType() {
	case events.TypeUserRegistered:
		return s.applyUserRegistered(ctx, event.Payload())
	case events.TypeNoteCreated:
		return s.applyNoteCreated(ctx, event.Payload())
	case events.TypeNoteUpdated:
		return s.applyNoteUpdated(ctx, event.Payload())
	default:
		// Unknown types are acked, not retried; a newer master may emit
		// events this build does not know about.
		log.Printf("[WARN] Ignoring unknown sync event type %q", event.EventType())
		return nil
	}
}

func (s *syncService) applyUserRegistered(ctx context.Context, data map[string]interface{}) error {
	id, err := payloadUUID(data, "user_id")
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if existing != nil {
		// Redelivery; already applied.
		return nil
	}

	user := &entity.User{
		Id:           id,
		Username:     payloadString(data, "username"),
		DisplayName:  payloadString(data, "display_name"),
		PasswordHash: payloadString(data, "password_hash"),
		CreatedAt:    payloadTime(data, "created_at"),
	}
	return uow.UserRepository().Create(ctx, user)
}

func (s *syncService) applyNoteCreated(ctx context.Context, data map[string]interface{}) error {
	id, err := payloadUUID(data, "note_id")
	if err != nil {
		return err
	}
	ownerId, err := payloadUUID(data, "owner_id")
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	note := &entity.Note{
		Id:         id,
		OwnerId:    ownerId,
		Title:      payloadString(data, "title"),
		Content:    payloadString(data, "content"),
		Visibility: entity.Visibility(payloadString(data, "visibility")),
		CreatedAt:  payloadTime(data, "created_at"),
		UpdatedAt:  payloadTime(data, "updated_at"),
	}
	return uow.NoteRepository().Create(ctx, note)
}

func (s *syncService) applyNoteUpdated(ctx context.Context, data map[string]interface{}) error {
	id, err := payloadUUID(data, "note_id")
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	note, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if note == nil {
		// The create may still be in flight; fail so the message is
		// redelivered after it lands.
		return fmt.Errorf("note %s not yet replicated", id)
	}

	note.Title = payloadString(data, "title")
	note.Content = payloadString(data, "content")
	note.UpdatedAt = payloadTime(data, "updated_at")
	return uow.NoteRepository().Update(ctx, note)
}

func payloadString(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

func payloadUUID(data map[string]interface{}, key string) (uuid.UUID, error) {
	raw := payloadString(data, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("payload field %q is not a uuid: %w", key, err)
	}
	return id, nil
}

func payloadTime(data map[string]interface{}, key string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, payloadString(data, key)); err == nil {
		return t
	}
	return time.Now()
}
