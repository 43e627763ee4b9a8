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

type TeamInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	State           string   `json:"state"`
	City            string   `json:"city"`
	PreferredSports []string `json:"preferred_sports"`
	Experience      string   `json:"experience"`
}

// SearchTeamsInput narrows the team listing; criteria are ANDed.
type SearchTeamsInput struct {
	Name       string
	Sport      string
	Experience string
}

type TeamService interface {
	Create(ctx context.Context, ownerID int, input TeamInput) (*models.Team, error)
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByOwner(ctx context.Context, ownerID int) (*models.Team, error)
	List(ctx context.Context) ([]models.Team, error)
	Search(ctx context.Context, input SearchTeamsInput) ([]models.Team, error)
	ListByMember(ctx context.Context, userID int) ([]models.Team, error)
	Update(ctx context.Context, callerID, teamID int, input TeamInput) (*models.Team, error)
	Delete(ctx context.Context, callerID, teamID int) error

	SendJoinRequest(ctx context.Context, userID, teamID int) error
	RemoveJoinRequest(ctx context.Context, callerID, teamID, userID int) error
	AddMember(ctx context.Context, callerID, teamID, userID int) error
	RemoveMember(ctx context.Context, callerID, teamID, userID int) error
	IsMember(ctx context.Context, teamID, userID int) (bool, error)

	UploadLogo(ctx context.Context, callerID, teamID int, contentType string, file io.Reader) (*models.Team, error)
}

type teamService struct {
	db               *sql.DB
	teamRepo         repositories.TeamRepository
	userRepo         repositories.UserRepository
	inviteRepo       repositories.InviteRepository
	gameRepo         repositories.GameRepository
	notificationRepo repositories.NotificationRepository
	geocoder         geo.Geocoder
	uploader         storage.FileUploader
	cache            cache.Cache
	logger           *slog.Logger
}

func NewTeamService(
	db *sql.DB,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	inviteRepo repositories.InviteRepository,
	gameRepo repositories.GameRepository,
	notificationRepo repositories.NotificationRepository,
	geocoder geo.Geocoder,
	uploader storage.FileUploader,
	c cache.Cache,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		db:               db,
		teamRepo:         teamRepo,
		userRepo:         userRepo,
		inviteRepo:       inviteRepo,
		gameRepo:         gameRepo,
		notificationRepo: notificationRepo,
		geocoder:         geocoder,
		uploader:         uploader,
		cache:            c,
		logger:           logger,
	}
}

func (s *teamService) Create(ctx context.Context, ownerID int, input TeamInput) (*models.Team, error) {
	team, err := buildTeam(input)
	if err != nil {
		return nil, validationError(err)
	}
	team.OwnerID = ownerID

	coords, err := s.geocoder.Geocode(ctx, team.City, team.State)
	if err != nil {
		if errors.Is(err, geo.ErrNoResult) {
			return nil, validationError(fmt.Errorf("could not find coordinates for %s, %s", team.City, team.State))
		}
		return nil, fmt.Errorf("failed to geocode %s, %s: %w", team.City, team.State, err)
	}
	team.Latitude = coords.Latitude
	team.Longitude = coords.Longitude

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.teamRepo.Create(ctx, tx, team)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamOwnerConflict):
			return nil, ErrOwnerHasTeam
		case errors.Is(err, repositories.ErrTeamUserInvalid):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.TeamsKey)
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	key := cache.TeamKey(id)
	var cached models.Team
	if cacheLookup(ctx, s.cache, s.logger, key, &cached) {
		return &cached, nil
	}

	team, err := s.getTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	populateTeamDetails(team, s.uploader)

	cacheStore(ctx, s.cache, s.logger, key, team)
	return team, nil
}

func (s *teamService) GetByOwner(ctx context.Context, ownerID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team owned by user %d: %w", ownerID, err)
	}
	populateTeamDetails(team, s.uploader)
	return team, nil
}

func (s *teamService) List(ctx context.Context) ([]models.Team, error) {
	var cached []models.Team
	if cacheLookup(ctx, s.cache, s.logger, cache.TeamsKey, &cached) {
		return cached, nil
	}

	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	for i := range teams {
		populateTeamDetails(&teams[i], s.uploader)
	}

	cacheStore(ctx, s.cache, s.logger, cache.TeamsKey, teams)
	return teams, nil
}

func (s *teamService) Search(ctx context.Context, input SearchTeamsInput) ([]models.Team, error) {
	if input.Sport != "" && !models.ValidSport(input.Sport) {
		return nil, validationError(fmt.Errorf("%s is not a recognized sport", input.Sport))
	}
	if input.Experience != "" && !models.ValidSkillLevel(input.Experience) {
		return nil, validationError(fmt.Errorf("%s is not a recognized experience level", input.Experience))
	}

	teams, err := s.teamRepo.ListByFilters(ctx, repositories.TeamFilter{
		Name:       input.Name,
		Sport:      input.Sport,
		Experience: input.Experience,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search teams: %w", err)
	}
	for i := range teams {
		populateTeamDetails(&teams[i], s.uploader)
	}
	return teams, nil
}

func (s *teamService) ListByMember(ctx context.Context, userID int) ([]models.Team, error) {
	teams, err := s.teamRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams of user %d: %w", userID, err)
	}
	for i := range teams {
		populateTeamDetails(&teams[i], s.uploader)
	}
	return teams, nil
}

func (s *teamService) Update(ctx context.Context, callerID, teamID int, input TeamInput) (*models.Team, error) {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OwnerID != callerID {
		return nil, ErrOwnerActionForbidden
	}

	updated, err := buildTeam(input)
	if err != nil {
		return nil, validationError(err)
	}

	if team.City != updated.City || team.State != updated.State {
		coords, err := s.geocoder.Geocode(ctx, updated.City, updated.State)
		if err != nil {
			if errors.Is(err, geo.ErrNoResult) {
				return nil, validationError(fmt.Errorf("could not find coordinates for %s, %s", updated.City, updated.State))
			}
			return nil, fmt.Errorf("failed to geocode %s, %s: %w", updated.City, updated.State, err)
		}
		team.Latitude = coords.Latitude
		team.Longitude = coords.Longitude
	}

	team.Name = updated.Name
	team.Description = updated.Description
	team.State = updated.State
	team.City = updated.City
	team.PreferredSports = updated.PreferredSports
	team.Experience = updated.Experience

	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to update team %d: %w", teamID, err)
	}

	invalidate(ctx, s.cache, s.logger, cache.TeamKey(teamID), cache.TeamsKey)
	populateTeamDetails(team, s.uploader)
	return team, nil
}

// Delete removes the team together with its games and pending invites; the
// member and join-request rows go with it through the schema.
func (s *teamService) Delete(ctx context.Context, callerID, teamID int) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID != callerID {
		return ErrOwnerActionForbidden
	}

	// Collected up front so the cascaded games can be invalidated after the
	// commit.
	games, err := s.gameRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return fmt.Errorf("failed to list games of team %d: %w", teamID, err)
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.gameRepo.DeleteByTeam(ctx, tx, teamID); err != nil {
			return fmt.Errorf("failed to delete games of team %d: %w", teamID, err)
		}
		if err := s.inviteRepo.DeleteByTeam(ctx, tx, teamID); err != nil {
			return fmt.Errorf("failed to delete invites of team %d: %w", teamID, err)
		}
		if err := s.teamRepo.Delete(ctx, tx, teamID); err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return fmt.Errorf("failed to delete team %d: %w", teamID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	keys := []string{cache.TeamKey(teamID), cache.TeamsKey}
	for _, game := range games {
		keys = append(keys, cache.GameKey(game.ID))
	}
	invalidate(ctx, s.cache, s.logger, keys...)
	return nil
}

func (s *teamService) SendJoinRequest(ctx context.Context, userID, teamID int) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}

	member, err := s.teamRepo.IsMember(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if member {
		return ErrUserAlreadyMember
	}

	requester, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.teamRepo.CreateJoinRequest(ctx, tx, teamID, userID); err != nil {
			return err
		}
		return s.notificationRepo.Create(ctx, tx, &models.Notification{
			ID:         uuid.NewString(),
			UserID:     team.OwnerID,
			Type:       models.NotificationJoinRequest,
			TeamID:     teamID,
			FromUserID: userID,
			Message:    fmt.Sprintf("%s requested to join %s", requester.Username, team.Name),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrJoinRequestExists):
			return ErrJoinRequestConflict
		case errors.Is(err, repositories.ErrTeamNotFound):
			return ErrTeamNotFound
		case errors.Is(err, repositories.ErrTeamUserInvalid):
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create join request: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.TeamKey(teamID))
	return nil
}

// RemoveJoinRequest withdraws a pending request. The requester can withdraw
// their own; the owner can decline anyone's.
func (s *teamService) RemoveJoinRequest(ctx context.Context, callerID, teamID, userID int) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if callerID != userID && callerID != team.OwnerID {
		return ErrForbiddenOperation
	}

	if err := s.teamRepo.DeleteJoinRequest(ctx, s.db, teamID, userID); err != nil {
		if errors.Is(err, repositories.ErrJoinRequestNotFound) {
			return ErrJoinRequestNotFound
		}
		return fmt.Errorf("failed to delete join request: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.TeamKey(teamID))
	return nil
}

// AddMember accepts a pending join request: the membership row, the join
// request removal, and the notification commit together.
func (s *teamService) AddMember(ctx context.Context, callerID, teamID, userID int) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID != callerID {
		return ErrOwnerActionForbidden
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.teamRepo.AddMember(ctx, tx, teamID, userID); err != nil {
			return err
		}
		err := s.teamRepo.DeleteJoinRequest(ctx, tx, teamID, userID)
		if err != nil && !errors.Is(err, repositories.ErrJoinRequestNotFound) {
			return fmt.Errorf("failed to delete join request: %w", err)
		}
		return s.notificationRepo.Create(ctx, tx, &models.Notification{
			ID:         uuid.NewString(),
			UserID:     userID,
			Type:       models.NotificationMemberAdded,
			TeamID:     teamID,
			FromUserID: callerID,
			Message:    fmt.Sprintf("You have been added to %s", team.Name),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamMemberExists):
			return ErrUserAlreadyMember
		case errors.Is(err, repositories.ErrTeamFull):
			return ErrTeamFull
		case errors.Is(err, repositories.ErrTeamUserInvalid):
			return ErrUserNotFound
		case errors.Is(err, ErrTeamNotFound), errors.Is(err, repositories.ErrTeamNotFound):
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.TeamKey(teamID), cache.TeamsKey)
	return nil
}

// RemoveMember removes a member: the owner can remove anyone, a member can
// leave on their own. The owner cannot be removed at all; they delete the
// team instead.
func (s *teamService) RemoveMember(ctx context.Context, callerID, teamID, userID int) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if callerID != userID && callerID != team.OwnerID {
		return ErrForbiddenOperation
	}
	if userID == team.OwnerID {
		return ErrOwnerCannotLeave
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.teamRepo.RemoveMember(ctx, tx, teamID, userID); err != nil {
			return err
		}
		if callerID == userID {
			// Leaving on your own does not notify anyone.
			return nil
		}
		return s.notificationRepo.Create(ctx, tx, &models.Notification{
			ID:         uuid.NewString(),
			UserID:     userID,
			Type:       models.NotificationMemberRemoved,
			TeamID:     teamID,
			FromUserID: callerID,
			Message:    fmt.Sprintf("You have been removed from %s", team.Name),
		})
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return ErrUserNotMember
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.TeamKey(teamID), cache.TeamsKey)
	return nil
}

func (s *teamService) IsMember(ctx context.Context, teamID, userID int) (bool, error) {
	return s.teamRepo.IsMember(ctx, teamID, userID)
}

func (s *teamService) UploadLogo(ctx context.Context, callerID, teamID int, contentType string, file io.Reader) (*models.Team, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}

	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OwnerID != callerID {
		return nil, ErrOwnerActionForbidden
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, validationError(err)
	}

	key := fmt.Sprintf("logos/%d/%s%s", teamID, uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload logo: %w", err)
	}

	oldKey := team.LogoKey
	if err := s.teamRepo.UpdateLogoKey(ctx, teamID, &key); err != nil {
		return nil, fmt.Errorf("failed to store logo key: %w", err)
	}
	if oldKey != nil && *oldKey != "" {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous logo",
				slog.String("key", *oldKey), slog.Any("error", err))
		}
	}

	team.LogoKey = &key
	invalidate(ctx, s.cache, s.logger, cache.TeamKey(teamID), cache.TeamsKey)
	populateTeamDetails(team, s.uploader)
	return team, nil
}

func (s *teamService) getTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}
	return team, nil
}

func buildTeam(input TeamInput) (*models.Team, error) {
	name, err := validation.TeamName(input.Name)
	if err != nil {
		return nil, err
	}
	description, err := validation.Description(input.Description)
	if err != nil {
		return nil, err
	}
	if !models.ValidState(input.State) {
		return nil, fmt.Errorf("%s is not a supported state", input.State)
	}
	if !models.ValidCity(input.State, input.City) {
		return nil, fmt.Errorf("%s is not a supported city in %s", input.City, input.State)
	}
	if len(input.PreferredSports) == 0 {
		return nil, fmt.Errorf("a team needs at least one preferred sport")
	}
	for _, sport := range input.PreferredSports {
		if !models.ValidSport(sport) {
			return nil, fmt.Errorf("%s is not a recognized sport", sport)
		}
	}
	if !models.ValidSkillLevel(input.Experience) {
		return nil, fmt.Errorf("%s is not a recognized experience level", input.Experience)
	}

	return &models.Team{
		Name:            name,
		Description:     description,
		State:           input.State,
		City:            input.City,
		PreferredSports: input.PreferredSports,
		Experience:      input.Experience,
	}, nil
}
