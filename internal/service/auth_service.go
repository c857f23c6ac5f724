// FILE: internal/service/auth_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/repository/memory"
	"collab-notes-be/internal/repository/specification"
	"collab-notes-be/internal/repository/unitofwork"

	"collab-notes-be/pkg/events"
	pktNats "collab-notes-be/pkg/nats"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both unknown username and wrong
	// password so login failures never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUsernameTaken rejects registration against an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, tokenId string, expiresAt time.Time) error
	GetProfile(ctx context.Context, userId uuid.UUID) (*dto.UserDTO, error)
}

type authService struct {
	uowFactory     unitofwork.RepositoryFactory
	denylist       *memory.TokenDenylist
	eventPublisher IPublisherService
	syncPublisher  *pktNats.Publisher
	jwtSecret      string
	tokenExpiry    time.Duration
}

func NewAuthService(
	uowFactory unitofwork.RepositoryFactory,
	denylist *memory.TokenDenylist,
	eventPublisher IPublisherService,
	syncPublisher *pktNats.Publisher,
	jwtSecret string,
	tokenExpiry time.Duration,
) IAuthService {
	return &authService{
		uowFactory:     uowFactory,
		denylist:       denylist,
		eventPublisher: eventPublisher,
		syncPublisher:  syncPublisher,
		jwtSecret:      jwtSecret,
		tokenExpiry:    tokenExpiry,
	}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	username := strings.TrimSpace(req.Username)

	// 1. Check for existing user
	existing, _ := uow.UserRepository().FindOne(ctx, specification.ByUsername{Username: username})
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	// 2. Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user := &entity.User{
		Id:           uuid.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: events.TypeUserRegistered,
			Data: map[string]interface{}{
				"user_id":  user.Id.String(),
				"username": user.Username,
			},
			OccurredAt: time.Now(),
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish USER_REGISTERED event: %v\n", err)
		}
	}

	// Replicas need the credential material to authenticate the same
	// users, so the sync payload carries the bcrypt hash. It never goes
	// on the in-process bus that feeds client websockets.
	if s.syncPublisher != nil {
		evt := events.BaseEvent{
			Type: events.TypeUserRegistered,
			Data: map[string]interface{}{
				"user_id":       user.Id.String(),
				"username":      user.Username,
				"display_name":  user.DisplayName,
				"password_hash": user.PasswordHash,
				"created_at":    user.CreatedAt.UTC().Format(time.RFC3339Nano),
			},
			OccurredAt: time.Now(),
		}
		if err := s.syncPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish sync event %s: %v\n", events.TypeUserRegistered, err)
		}
	}

	return &dto.RegisterResponse{Id: user.Id, Username: user.Username}, nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByUsername{Username: req.Username})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user.Id)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		AccessToken: token,
		User: dto.UserDTO{
			Id:          user.Id,
			Username:    user.Username,
			DisplayName: user.DisplayName,
		},
	}, nil
}

// Logout revokes the presented token by its jti for the remainder of
// its lifetime. Subsequent requests with the same token fail with 401.
func (s *authService) Logout(ctx context.Context, tokenId string, expiresAt time.Time) error {
	if tokenId == "" {
		return errors.New("token has no id claim")
	}
	s.denylist.Revoke(tokenId, expiresAt)
	return nil
}

func (s *authService) GetProfile(ctx context.Context, userId uuid.UUID) (*dto.UserDTO, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	return &dto.UserDTO{
		Id:          user.Id,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}, nil
}

func (s *authService) issueToken(userId uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userId.String(),
		"jti":     uuid.New().String(),
		"iat":     now.Unix(),
		"exp":     now.Add(s.tokenExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
