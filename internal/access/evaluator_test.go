package access

import (
	"testing"

	"collab-notes-be/internal/entity"

	"github.com/google/uuid"
)

func TestEvaluate(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	tests := []struct {
		name       string
		caller     uuid.UUID
		visibility entity.Visibility
		want       Tier
	}{
		{
			name:       "owner on private note",
			caller:     owner,
			visibility: entity.VisibilityPrivate,
			want:       TierOwner,
		},
		{
			name:       "owner beats read visibility",
			caller:     owner,
			visibility: entity.VisibilityRead,
			want:       TierOwner,
		},
		{
			name:       "owner beats write visibility",
			caller:     owner,
			visibility: entity.VisibilityWrite,
			want:       TierOwner,
		},
		{
			name:       "stranger on private note",
			caller:     stranger,
			visibility: entity.VisibilityPrivate,
			want:       TierNone,
		},
		{
			name:       "stranger on read note",
			caller:     stranger,
			visibility: entity.VisibilityRead,
			want:       TierRead,
		},
		{
			name:       "stranger on write note",
			caller:     stranger,
			visibility: entity.VisibilityWrite,
			want:       TierWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := &entity.Note{
				Id:         uuid.New(),
				OwnerId:    owner,
				Visibility: tt.visibility,
			}
			got := Evaluate(tt.caller, note)
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTierPermissions(t *testing.T) {
	tests := []struct {
		tier         Tier
		wantCanRead  bool
		wantCanWrite bool
	}{
		{TierOwner, true, true},
		{TierWrite, true, true},
		{TierRead, true, false},
		{TierNone, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if got := tt.tier.CanRead(); got != tt.wantCanRead {
				t.Errorf("CanRead() = %v, want %v", got, tt.wantCanRead)
			}
			if got := tt.tier.CanWrite(); got != tt.wantCanWrite {
				t.Errorf("CanWrite() = %v, want %v", got, tt.wantCanWrite)
			}
		})
	}
}
