package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sportsfinder/sports-finder/cache"
	"github.com/sportsfinder/sports-finder/geo"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/repositories"
	"github.com/sportsfinder/sports-finder/storage"
	"github.com/sportsfinder/sports-finder/validation"
)

type UpdateProfileInput struct {
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Email              string   `json:"email"`
	PhoneNumber        string   `json:"phone_number"`
	Birthday           string   `json:"birthday"`
	State              string   `json:"state"`
	City               string   `json:"city"`
	AdvancedSports     []string `json:"advanced_sports"`
	IntermediateSports []string `json:"intermediate_sports"`
	BeginnerSports     []string `json:"beginner_sports"`
}

// SearchUsersInput narrows the user listing. RadiusMiles measures from the
// caller's own stored location.
type SearchUsersInput struct {
	Name        string
	Sport       string
	SkillBucket string
	RadiusMiles float64
}

type UserService interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Search(ctx context.Context, callerID int, input SearchUsersInput) ([]models.User, error)
	UpdateProfile(ctx context.Context, callerID, id int, input UpdateProfileInput) (*models.User, error)
	Delete(ctx context.Context, callerID, id int) error
	UploadAvatar(ctx context.Context, callerID, id int, contentType string, file io.Reader) (*models.User, error)
}

type userService struct {
	db         *sql.DB
	userRepo   repositories.UserRepository
	teamRepo   repositories.TeamRepository
	inviteRepo repositories.InviteRepository
	gameRepo   repositories.GameRepository
	geocoder   geo.Geocoder
	uploader   storage.FileUploader
	cache      cache.Cache
	logger     *slog.Logger
}

func NewUserService(
	db *sql.DB,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	inviteRepo repositories.InviteRepository,
	gameRepo repositories.GameRepository,
	geocoder geo.Geocoder,
	uploader storage.FileUploader,
	c cache.Cache,
	logger *slog.Logger,
) UserService {
	return &userService{
		db:         db,
		userRepo:   userRepo,
		teamRepo:   teamRepo,
		inviteRepo: inviteRepo,
		gameRepo:   gameRepo,
		geocoder:   geocoder,
		uploader:   uploader,
		cache:      c,
		logger:     logger,
	}
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	key := cache.UserKey(id)
	var cached models.User
	if cacheLookup(ctx, s.cache, s.logger, key, &cached) {
		return &cached, nil
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	populateUserDetails(user, s.uploader)

	cacheStore(ctx, s.cache, s.logger, key, user)
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	var cached []models.User
	if cacheLookup(ctx, s.cache, s.logger, cache.UsersKey, &cached) {
		return cached, nil
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		populateUserDetails(&users[i], s.uploader)
	}

	cacheStore(ctx, s.cache, s.logger, cache.UsersKey, users)
	return users, nil
}

// Search bypasses the cache: filter combinations are too varied to key
// usefully.
func (s *userService) Search(ctx context.Context, callerID int, input SearchUsersInput) ([]models.User, error) {
	if input.Sport != "" && !models.ValidSport(input.Sport) {
		return nil, validationError(fmt.Errorf("%s is not a recognized sport", input.Sport))
	}
	if input.SkillBucket != "" && !models.ValidSkillBucket(input.SkillBucket) {
		return nil, validationError(fmt.Errorf("%s is not a recognized skill level", input.SkillBucket))
	}
	if input.RadiusMiles < 0 {
		return nil, validationError(fmt.Errorf("radius cannot be negative"))
	}

	filter := repositories.UserFilter{
		Name:        input.Name,
		Sport:       input.Sport,
		SkillBucket: input.SkillBucket,
		RadiusMiles: input.RadiusMiles,
	}
	if input.RadiusMiles > 0 {
		caller, err := s.userRepo.GetByID(ctx, callerID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to get caller %d: %w", callerID, err)
		}
		filter.Latitude = caller.Latitude
		filter.Longitude = caller.Longitude
	}

	users, err := s.userRepo.ListByFilters(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	for i := range users {
		populateUserDetails(&users[i], s.uploader)
	}
	return users, nil
}

func (s *userService) UpdateProfile(ctx context.Context, callerID, id int, input UpdateProfileInput) (*models.User, error) {
	if callerID != id {
		return nil, ErrForbiddenOperation
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	if err := applyProfileUpdate(user, input); err != nil {
		return nil, validationError(err)
	}

	// Location changes re-resolve coordinates; everything else keeps them.
	if user.City != input.City || user.State != input.State || user.Latitude == 0 && user.Longitude == 0 {
		coords, err := s.geocoder.Geocode(ctx, input.City, input.State)
		if err != nil {
			if errors.Is(err, geo.ErrNoResult) {
				return nil, validationError(fmt.Errorf("could not find coordinates for %s, %s", input.City, input.State))
			}
			return nil, fmt.Errorf("failed to geocode %s, %s: %w", input.City, input.State, err)
		}
		user.Latitude = coords.Latitude
		user.Longitude = coords.Longitude
	}
	user.State = input.State
	user.City = input.City

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrEmailConflict
		case errors.Is(err, repositories.ErrUserPhoneConflict):
			return nil, ErrPhoneConflict
		}
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}

	invalidate(ctx, s.cache, s.logger, cache.UserKey(id), cache.UsersKey)
	populateUserDetails(user, s.uploader)
	return user, nil
}

// Delete removes the account and everything hanging off it in one
// transaction: the owned team (with its games and invites), memberships,
// join requests, and received invites.
func (s *userService) Delete(ctx context.Context, callerID, id int) error {
	if callerID != id {
		return ErrForbiddenOperation
	}

	ownedTeam, err := s.teamRepo.GetByOwner(ctx, id)
	if err != nil && !errors.Is(err, repositories.ErrTeamNotFound) {
		return fmt.Errorf("failed to look up owned team of user %d: %w", id, err)
	}

	var ownedGames []models.Game
	if ownedTeam != nil {
		ownedGames, err = s.gameRepo.ListByTeam(ctx, ownedTeam.ID)
		if err != nil {
			return fmt.Errorf("failed to list games of team %d: %w", ownedTeam.ID, err)
		}
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if ownedTeam != nil {
			if err := s.gameRepo.DeleteByTeam(ctx, tx, ownedTeam.ID); err != nil {
				return fmt.Errorf("failed to delete games of team %d: %w", ownedTeam.ID, err)
			}
			if err := s.teamRepo.Delete(ctx, tx, ownedTeam.ID); err != nil && !errors.Is(err, repositories.ErrTeamNotFound) {
				return fmt.Errorf("failed to delete team %d: %w", ownedTeam.ID, err)
			}
		}
		if err := s.teamRepo.RemoveMemberFromAll(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to remove user %d from teams: %w", id, err)
		}
		if err := s.teamRepo.DeleteJoinRequestsByUser(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to delete join requests of user %d: %w", id, err)
		}
		if err := s.inviteRepo.DeleteByUser(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to delete invites of user %d: %w", id, err)
		}
		if err := s.userRepo.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to delete user %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	keys := []string{cache.UserKey(id), cache.UsersKey, cache.TeamsKey}
	if ownedTeam != nil {
		keys = append(keys, cache.TeamKey(ownedTeam.ID))
	}
	for _, game := range ownedGames {
		keys = append(keys, cache.GameKey(game.ID))
	}
	invalidate(ctx, s.cache, s.logger, keys...)
	return nil
}

func (s *userService) UploadAvatar(ctx context.Context, callerID, id int, contentType string, file io.Reader) (*models.User, error) {
	if callerID != id {
		return nil, ErrForbiddenOperation
	}
	uploader := s.uploader
	if uploader == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, validationError(err)
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	key := fmt.Sprintf("avatars/%d/%s%s", id, uuid.NewString(), ext)
	if _, err := uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	oldKey := user.AvatarKey
	if err := s.userRepo.UpdateAvatarKey(ctx, id, &key); err != nil {
		return nil, fmt.Errorf("failed to store avatar key: %w", err)
	}
	if oldKey != nil && *oldKey != "" {
		if err := uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous avatar",
				slog.String("key", *oldKey), slog.Any("error", err))
		}
	}

	user.AvatarKey = &key
	invalidate(ctx, s.cache, s.logger, cache.UserKey(id), cache.UsersKey)
	populateUserDetails(user, uploader)
	return user, nil
}

func applyProfileUpdate(user *models.User, input UpdateProfileInput) error {
	firstName, err := validation.Name(input.FirstName, "first name")
	if err != nil {
		return err
	}
	lastName, err := validation.Name(input.LastName, "last name")
	if err != nil {
		return err
	}
	email, err := validation.Email(input.Email)
	if err != nil {
		return err
	}
	phone, err := validation.PhoneNumber(input.PhoneNumber)
	if err != nil {
		return err
	}
	birthday, err := validation.Birthday(input.Birthday)
	if err != nil {
		return err
	}
	if !models.ValidState(input.State) {
		return fmt.Errorf("%s is not a supported state", input.State)
	}
	if !models.ValidCity(input.State, input.City) {
		return fmt.Errorf("%s is not a supported city in %s", input.City, input.State)
	}
	if err := validateSportBuckets(input.AdvancedSports, input.IntermediateSports, input.BeginnerSports); err != nil {
		return err
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.Email = email
	user.PhoneNumber = phone
	user.Birthday = birthday
	user.AdvancedSports = normalizeSports(input.AdvancedSports)
	user.IntermediateSports = normalizeSports(input.IntermediateSports)
	user.BeginnerSports = normalizeSports(input.BeginnerSports)
	return nil
}
