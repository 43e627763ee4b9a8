package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sportsfinder/sports-finder/cache"
	"github.com/sportsfinder/sports-finder/geo"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/repositories"
	"github.com/sportsfinder/sports-finder/validation"
)

type CreateGameInput struct {
	Team1ID    int    `json:"team1_id"`
	Team2ID    int    `json:"team2_id"`
	Team1Score *int   `json:"team1_score"`
	Team2Score *int   `json:"team2_score"`
	Sport      string `json:"sport"`
	State      string `json:"state"`
	City       string `json:"city"`
	Date       string `json:"date"`
}

// UpdateGameInput carries everything but the participant team identities,
// which are immutable after creation.
type UpdateGameInput struct {
	Team1Score *int   `json:"team1_score"`
	Team2Score *int   `json:"team2_score"`
	Sport      string `json:"sport"`
	State      string `json:"state"`
	City       string `json:"city"`
	Date       string `json:"date"`
}

// GameService guards every game mutation with the same rule: the caller must
// own at least one of the participant teams.
type GameService interface {
	Create(ctx context.Context, callerID int, input CreateGameInput) (*models.Game, error)
	GetByID(ctx context.Context, id int) (*models.Game, error)
	List(ctx context.Context, callerID int) ([]models.Game, error)
	ListByTeam(ctx context.Context, teamID int) ([]models.Game, error)
	ListUpcomingByTeam(ctx context.Context, teamID int) ([]models.Game, error)
	Update(ctx context.Context, callerID, gameID int, input UpdateGameInput) (*models.Game, error)
	Delete(ctx context.Context, callerID, gameID int) error

	// CanChat reports whether the user belongs to either participant team.
	CanChat(ctx context.Context, userID, gameID int) (bool, error)
}

type gameService struct {
	gameRepo repositories.GameRepository
	teamRepo repositories.TeamRepository
	geocoder geo.Geocoder
	cache    cache.Cache
	logger   *slog.Logger
}

func NewGameService(
	gameRepo repositories.GameRepository,
	teamRepo repositories.TeamRepository,
	geocoder geo.Geocoder,
	c cache.Cache,
	logger *slog.Logger,
) GameService {
	return &gameService{
		gameRepo: gameRepo,
		teamRepo: teamRepo,
		geocoder: geocoder,
		cache:    c,
		logger:   logger,
	}
}

func (s *gameService) Create(ctx context.Context, callerID int, input CreateGameInput) (*models.Game, error) {
	if input.Team1ID == input.Team2ID {
		return nil, ErrSameTeam
	}
	if !models.ValidSport(input.Sport) {
		return nil, validationError(fmt.Errorf("%s is not a recognized sport", input.Sport))
	}
	if !models.ValidState(input.State) {
		return nil, validationError(fmt.Errorf("%s is not a supported state", input.State))
	}
	if !models.ValidCity(input.State, input.City) {
		return nil, validationError(fmt.Errorf("%s is not a supported city in %s", input.City, input.State))
	}
	date, err := validation.Date(input.Date)
	if err != nil {
		return nil, validationError(err)
	}
	if err := validation.Score(input.Team1Score); err != nil {
		return nil, validationError(err)
	}
	if err := validation.Score(input.Team2Score); err != nil {
		return nil, validationError(err)
	}

	team1, team2, err := s.fetchTeams(ctx, input.Team1ID, input.Team2ID)
	if err != nil {
		return nil, err
	}
	if team1.OwnerID != callerID && team2.OwnerID != callerID {
		return nil, ErrForbiddenOperation
	}

	coords, err := s.geocoder.Geocode(ctx, input.City, input.State)
	if err != nil {
		if errors.Is(err, geo.ErrNoResult) {
			return nil, validationError(fmt.Errorf("could not find coordinates for %s, %s", input.City, input.State))
		}
		return nil, fmt.Errorf("failed to geocode %s, %s: %w", input.City, input.State, err)
	}

	game := &models.Game{
		Team1:     models.GameTeam{ID: team1.ID, Name: team1.Name, Score: input.Team1Score},
		Team2:     models.GameTeam{ID: team2.ID, Name: team2.Name, Score: input.Team2Score},
		Sport:     input.Sport,
		State:     input.State,
		City:      input.City,
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Date:      date,
	}
	if err := s.gameRepo.Create(ctx, game); err != nil {
		if errors.Is(err, repositories.ErrGameTeamInvalid) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.GamesKey(callerID))
	return game, nil
}

func (s *gameService) GetByID(ctx context.Context, id int) (*models.Game, error) {
	key := cache.GameKey(id)
	var cached models.Game
	if cacheLookup(ctx, s.cache, s.logger, key, &cached) {
		return &cached, nil
	}

	game, err := s.getGame(ctx, id)
	if err != nil {
		return nil, err
	}

	cacheStore(ctx, s.cache, s.logger, key, game)
	return game, nil
}

// List returns every game, flagged with whether the caller may edit or
// delete it. The listing is cached per caller because the flags are the
// caller's own.
func (s *gameService) List(ctx context.Context, callerID int) ([]models.Game, error) {
	key := cache.GamesKey(callerID)
	var cached []models.Game
	if cacheLookup(ctx, s.cache, s.logger, key, &cached) {
		return cached, nil
	}

	games, err := s.gameRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	ownedTeam, err := s.teamRepo.GetByOwner(ctx, callerID)
	if err != nil && !errors.Is(err, repositories.ErrTeamNotFound) {
		return nil, fmt.Errorf("failed to look up owned team of user %d: %w", callerID, err)
	}
	for i := range games {
		flag := ownedTeam != nil &&
			(games[i].Team1.ID == ownedTeam.ID || games[i].Team2.ID == ownedTeam.ID)
		games[i].CanEditOrDelete = &flag
	}

	cacheStore(ctx, s.cache, s.logger, key, games)
	return games, nil
}

func (s *gameService) ListByTeam(ctx context.Context, teamID int) ([]models.Game, error) {
	games, err := s.gameRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games of team %d: %w", teamID, err)
	}
	return games, nil
}

func (s *gameService) ListUpcomingByTeam(ctx context.Context, teamID int) ([]models.Game, error) {
	games, err := s.gameRepo.ListUpcomingByTeam(ctx, teamID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming games of team %d: %w", teamID, err)
	}
	return games, nil
}

func (s *gameService) Update(ctx context.Context, callerID, gameID int, input UpdateGameInput) (*models.Game, error) {
	if !models.ValidSport(input.Sport) {
		return nil, validationError(fmt.Errorf("%s is not a recognized sport", input.Sport))
	}
	if !models.ValidState(input.State) {
		return nil, validationError(fmt.Errorf("%s is not a supported state", input.State))
	}
	if !models.ValidCity(input.State, input.City) {
		return nil, validationError(fmt.Errorf("%s is not a supported city in %s", input.City, input.State))
	}
	date, err := validation.Date(input.Date)
	if err != nil {
		return nil, validationError(err)
	}
	if err := validation.Score(input.Team1Score); err != nil {
		return nil, validationError(err)
	}
	if err := validation.Score(input.Team2Score); err != nil {
		return nil, validationError(err)
	}

	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	team1, team2, err := s.fetchTeams(ctx, game.Team1.ID, game.Team2.ID)
	if err != nil {
		return nil, err
	}
	if team1.OwnerID != callerID && team2.OwnerID != callerID {
		return nil, ErrForbiddenOperation
	}

	if game.City != input.City || game.State != input.State {
		coords, err := s.geocoder.Geocode(ctx, input.City, input.State)
		if err != nil {
			if errors.Is(err, geo.ErrNoResult) {
				return nil, validationError(fmt.Errorf("could not find coordinates for %s, %s", input.City, input.State))
			}
			return nil, fmt.Errorf("failed to geocode %s, %s: %w", input.City, input.State, err)
		}
		game.Latitude = coords.Latitude
		game.Longitude = coords.Longitude
	}

	// Name snapshots follow the current team names on every update.
	game.Team1.Name = team1.Name
	game.Team1.Score = input.Team1Score
	game.Team2.Name = team2.Name
	game.Team2.Score = input.Team2Score
	game.Sport = input.Sport
	game.State = input.State
	game.City = input.City
	game.Date = date

	if err := s.gameRepo.Update(ctx, game); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to update game %d: %w", gameID, err)
	}

	invalidate(ctx, s.cache, s.logger, cache.GameKey(gameID), cache.GamesKey(callerID))
	return game, nil
}

func (s *gameService) Delete(ctx context.Context, callerID, gameID int) error {
	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return err
	}

	team1, team2, err := s.fetchTeams(ctx, game.Team1.ID, game.Team2.ID)
	if err != nil {
		return err
	}
	if team1.OwnerID != callerID && team2.OwnerID != callerID {
		return ErrForbiddenOperation
	}

	if err := s.gameRepo.Delete(ctx, gameID); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to delete game %d: %w", gameID, err)
	}

	invalidate(ctx, s.cache, s.logger, cache.GameKey(gameID), cache.GamesKey(callerID))
	return nil
}

func (s *gameService) CanChat(ctx context.Context, userID, gameID int) (bool, error) {
	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return false, err
	}

	for _, teamID := range []int{game.Team1.ID, game.Team2.ID} {
		member, err := s.teamRepo.IsMember(ctx, teamID, userID)
		if err != nil {
			return false, fmt.Errorf("failed to check membership: %w", err)
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}

func (s *gameService) getGame(ctx context.Context, id int) (*models.Game, error) {
	game, err := s.gameRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return game, nil
}

// fetchTeams loads both participant teams concurrently.
func (s *gameService) fetchTeams(ctx context.Context, team1ID, team2ID int) (*models.Team, *models.Team, error) {
	var team1, team2 *models.Team

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		team1, err = s.teamRepo.GetByID(gctx, team1ID)
		return err
	})
	g.Go(func() error {
		var err error
		team2, err = s.teamRepo.GetByID(gctx, team2ID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, nil, ErrTeamNotFound
		}
		return nil, nil, fmt.Errorf("failed to load participant teams: %w", err)
	}
	return team1, team2, nil
}
