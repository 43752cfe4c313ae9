package service

import (
	"context"
	"errors"
	"strings"

	"subscribe/internal/model"
	"subscribe/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var ErrUserNotFound = errors.New("user not found")

// UnlimitedScans is reported as the remaining scan count of premium users.
const UnlimitedScans = -1

// ProfileSeed is the identity taken from the bearer token when a profile is
// first created.
type ProfileSeed struct {
	UserID string
	Email  string
	Name   string
}

// ProfileUpdate changes user-editable profile fields. Nil fields are left
// alone; an empty phone clears it.
type ProfileUpdate struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,e164"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

type UserService interface {
	GetOrCreate(ctx context.Context, seed ProfileSeed) (*model.UserProfile, error)
	Get(ctx context.Context, id string) (*model.UserProfile, error)
	Update(ctx context.Context, userID string, in *ProfileUpdate) (*model.UserProfile, error)
	ScansRemaining(u *model.UserProfile) int
}

type userService struct {
	userRepo      repository.UserRepository
	validate      *validator.Validate
	freeScanLimit int
	logger        zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, validate *validator.Validate, freeScanLimit int, logger zerolog.Logger) UserService {
	if freeScanLimit <= 0 {
		freeScanLimit = 1
	}
	return &userService{
		userRepo:      userRepo,
		validate:      validate,
		freeScanLimit: freeScanLimit,
		logger:        logger.With().Str("service", "UserService").Logger(),
	}
}

// GetOrCreate returns the caller's profile, creating a free-tier profile on
// first use.
func (s *userService) GetOrCreate(ctx context.Context, seed ProfileSeed) (*model.UserProfile, error) {
	u, err := s.userRepo.GetUserByID(ctx, seed.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", seed.UserID).Msg("Failed to fetch user")
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u = &model.UserProfile{UserID: seed.UserID, Email: seed.Email, Name: seed.Name}
	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("user_id", seed.UserID).Msg("Failed to create user profile")
		return nil, err
	}
	s.logger.Info().Str("user_id", u.UserID).Msg("User profile created")
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.UserProfile, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *userService) Update(ctx context.Context, userID string, in *ProfileUpdate) (*model.UserProfile, error) {
	clearPhone := false
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		in.Phone = &phone
		if phone == "" {
			// omitempty does not skip a pointer to "", so e164 would reject it.
			clearPhone = true
			in.Phone = nil
		}
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, ValidationErrorFrom(err)
	}

	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.AvatarURL != nil {
		u.AvatarURL = *in.AvatarURL
	}
	if clearPhone {
		u.Phone = nil
	} else if in.Phone != nil {
		u.Phone = in.Phone
	}

	if err := s.userRepo.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to update user profile")
		return nil, err
	}
	return u, nil
}

// ScansRemaining returns the free scans left, or UnlimitedScans for premium users.
func (s *userService) ScansRemaining(u *model.UserProfile) int {
	if u.IsPremium {
		return UnlimitedScans
	}
	return max(0, s.freeScanLimit-u.FreeScansUsed)
}
