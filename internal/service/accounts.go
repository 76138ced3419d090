package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/auth"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

// Authenticator is the auth collaborator.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Identity, error)
	Register(ctx context.Context, email, password string) (*auth.Identity, error)
	SignOut(ctx context.Context) error
}

type RegisterInput struct {
	Username string     `json:"username" validate:"required,min=3,max=32"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	Avatar   *ImageFile `json:"-"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AccountService struct {
	auth      Authenticator
	users     *repository.UserRepository
	userChats *repository.UserChatsRepository
	session   *SessionState
	uploader  AvatarUploader
	log       *zap.SugaredLogger
}

func NewAccountService(a Authenticator, users *repository.UserRepository, userChats *repository.UserChatsRepository,
	session *SessionState, uploader AvatarUploader, log *zap.SugaredLogger) *AccountService {
	return &AccountService{
		auth:      a,
		users:     users,
		userChats: userChats,
		session:   session,
		uploader:  uploader,
		log:       utils.OrNop(log),
	}
}

// Register creates the auth account, the profile and an empty chat index.
// The writes are not transactional: a failure part way leaves the earlier
// ones behind.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.UserProfile, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := utils.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.JoinValidationErrors(err))
	}

	taken, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if len(taken) > 0 {
		return nil, ErrUsernameTaken
	}

	id, err := s.auth.Register(ctx, in.Email, in.Password)
	if err != nil {
		s.log.Warnw("register", "email", in.Email, "error", err)
		return nil, fmt.Errorf("register: %w", err)
	}

	profile := &models.UserProfile{
		ID:       id.UserID,
		Username: in.Username,
		Email:    in.Email,
		Blocked:  []string{},
	}
	if in.Avatar != nil && s.uploader != nil {
		url, err := s.uploader.UploadAvatar(ctx, id.UserID, in.Avatar.Name, in.Avatar.Data)
		if err != nil {
			return nil, fmt.Errorf("upload avatar: %w", err)
		}
		profile.Avatar = url
	}

	if err := s.users.Create(ctx, profile); err != nil {
		s.log.Errorw("create profile", "user_id", profile.ID, "error", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}
	if err := s.userChats.Init(ctx, profile.ID); err != nil {
		s.log.Errorw("create chat index", "user_id", profile.ID, "error", err)
		return nil, fmt.Errorf("create chat index: %w", err)
	}
	s.log.Infow("account created", "user_id", profile.ID, "username", profile.Username)

	if s.session != nil {
		s.session.SetIdentity(ctx, profile.ID)
	}
	return profile, nil
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (*auth.Identity, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := utils.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.JoinValidationErrors(err))
	}
	id, err := s.auth.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		s.log.Warnw("login", "email", in.Email, "error", err)
		return nil, fmt.Errorf("login: %w", err)
	}
	if s.session != nil {
		s.session.SetIdentity(ctx, id.UserID)
	}
	return id, nil
}

// Logout signs out and clears the session even when the auth call fails.
func (s *AccountService) Logout(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	if s.session != nil {
		s.session.SetIdentity(ctx, "")
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
