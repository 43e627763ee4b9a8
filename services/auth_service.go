package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/sportsfinder/sports-finder/cache"
	"github.com/sportsfinder/sports-finder/geo"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/repositories"
	"github.com/sportsfinder/sports-finder/validation"
)

type RegisterInput struct {
	Username           string   `json:"username"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Email              string   `json:"email"`
	PhoneNumber        string   `json:"phone_number"`
	Password           string   `json:"password"`
	ConfirmPassword    string   `json:"confirm_password"`
	Birthday           string   `json:"birthday"`
	State              string   `json:"state"`
	City               string   `json:"city"`
	AdvancedSports     []string `json:"advanced_sports"`
	IntermediateSports []string `json:"intermediate_sports"`
	BeginnerSports     []string `json:"beginner_sports"`
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, credentials models.Credentials) (*models.User, error)
}

type authService struct {
	userRepo repositories.UserRepository
	geocoder geo.Geocoder
	cache    cache.Cache
	logger   *slog.Logger
}

func NewAuthService(
	userRepo repositories.UserRepository,
	geocoder geo.Geocoder,
	c cache.Cache,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo: userRepo,
		geocoder: geocoder,
		cache:    c,
		logger:   logger,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	user, err := buildUserFromRegistration(input)
	if err != nil {
		return nil, validationError(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashedPassword)

	coords, err := s.geocoder.Geocode(ctx, user.City, user.State)
	if err != nil {
		if errors.Is(err, geo.ErrNoResult) {
			return nil, validationError(fmt.Errorf("could not find coordinates for %s, %s", user.City, user.State))
		}
		return nil, fmt.Errorf("failed to geocode %s, %s: %w", user.City, user.State, err)
	}
	user.Latitude = coords.Latitude
	user.Longitude = coords.Longitude

	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserUsernameConflict):
			return nil, ErrUsernameConflict
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrEmailConflict
		case errors.Is(err, repositories.ErrUserPhoneConflict):
			return nil, ErrPhoneConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.UsersKey)
	user.PasswordHash = ""
	return user, nil
}

// Login deliberately collapses "no such user" and "wrong password" into one
// error so the response does not reveal which usernames exist.
func (s *authService) Login(ctx context.Context, credentials models.Credentials) (*models.User, error) {
	if credentials.Username == "" || credentials.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, credentials.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credentials.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

func buildUserFromRegistration(input RegisterInput) (*models.User, error) {
	username, err := validation.Username(input.Username)
	if err != nil {
		return nil, err
	}
	firstName, err := validation.Name(input.FirstName, "first name")
	if err != nil {
		return nil, err
	}
	lastName, err := validation.Name(input.LastName, "last name")
	if err != nil {
		return nil, err
	}
	email, err := validation.Email(input.Email)
	if err != nil {
		return nil, err
	}
	phone, err := validation.PhoneNumber(input.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if _, err := validation.Password(input.Password); err != nil {
		return nil, err
	}
	if err := validation.MatchingPasswords(input.Password, input.ConfirmPassword); err != nil {
		return nil, err
	}
	birthday, err := validation.Birthday(input.Birthday)
	if err != nil {
		return nil, err
	}
	if !models.ValidState(input.State) {
		return nil, fmt.Errorf("%s is not a supported state", input.State)
	}
	if !models.ValidCity(input.State, input.City) {
		return nil, fmt.Errorf("%s is not a supported city in %s", input.City, input.State)
	}
	if err := validateSportBuckets(input.AdvancedSports, input.IntermediateSports, input.BeginnerSports); err != nil {
		return nil, err
	}

	return &models.User{
		Username:           username,
		FirstName:          firstName,
		LastName:           lastName,
		Email:              email,
		PhoneNumber:        phone,
		Birthday:           birthday,
		State:              input.State,
		City:               input.City,
		AdvancedSports:     normalizeSports(input.AdvancedSports),
		IntermediateSports: normalizeSports(input.IntermediateSports),
		BeginnerSports:     normalizeSports(input.BeginnerSports),
	}, nil
}

func normalizeSports(sports []string) []string {
	if sports == nil {
		return []string{}
	}
	return sports
}
