package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sportsfinder/sports-finder/cache"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/repositories"
)

type InviteService interface {
	// Send invites a user to the caller's team. Only the team owner can
	// invite.
	Send(ctx context.Context, callerID, userID, teamID int) (*models.TeamInvite, error)
	ListForUser(ctx context.Context, userID int) ([]models.TeamInvite, error)
	// Remove withdraws a pending invite: the invitee declining it, or the
	// owner taking it back.
	Remove(ctx context.Context, callerID, userID, teamID int) error
	// Accept turns an invite into a membership. The membership row, the
	// invite removal, the join-request cleanup, and the owner's notification
	// commit as one transaction.
	Accept(ctx context.Context, userID, teamID int) error
}

type inviteService struct {
	db               *sql.DB
	inviteRepo       repositories.InviteRepository
	teamRepo         repositories.TeamRepository
	userRepo         repositories.UserRepository
	notificationRepo repositories.NotificationRepository
	cache            cache.Cache
	logger           *slog.Logger
}

func NewInviteService(
	db *sql.DB,
	inviteRepo repositories.InviteRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	notificationRepo repositories.NotificationRepository,
	c cache.Cache,
	logger *slog.Logger,
) InviteService {
	return &inviteService{
		db:               db,
		inviteRepo:       inviteRepo,
		teamRepo:         teamRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		cache:            c,
		logger:           logger,
	}
}

func (s *inviteService) Send(ctx context.Context, callerID, userID, teamID int) (*models.TeamInvite, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	if team.OwnerID != callerID {
		return nil, ErrOwnerActionForbidden
	}

	member, err := s.teamRepo.IsMember(ctx, teamID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if member {
		return nil, ErrUserAlreadyMember
	}

	owner, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", callerID, err)
	}

	invite := &models.TeamInvite{UserID: userID, TeamID: teamID}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.inviteRepo.Create(ctx, tx, invite); err != nil {
			return err
		}
		return s.notificationRepo.Create(ctx, tx, &models.Notification{
			ID:         uuid.NewString(),
			UserID:     userID,
			Type:       models.NotificationTeamInvite,
			TeamID:     teamID,
			FromUserID: callerID,
			Message:    fmt.Sprintf("%s invited you to join %s", owner.Username, team.Name),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInviteExists):
			return nil, ErrInviteAlreadySent
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	invite.Team = team
	return invite, nil
}

func (s *inviteService) ListForUser(ctx context.Context, userID int) ([]models.TeamInvite, error) {
	invites, err := s.inviteRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites of user %d: %w", userID, err)
	}
	return invites, nil
}

func (s *inviteService) Remove(ctx context.Context, callerID, userID, teamID int) error {
	if callerID != userID {
		team, err := s.teamRepo.GetByID(ctx, teamID)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return fmt.Errorf("failed to get team %d: %w", teamID, err)
		}
		if team.OwnerID != callerID {
			return ErrForbiddenOperation
		}
	}

	if err := s.inviteRepo.Delete(ctx, s.db, userID, teamID); err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return nil
}

func (s *inviteService) Accept(ctx context.Context, userID, teamID int) error {
	exists, err := s.inviteRepo.Exists(ctx, userID, teamID)
	if err != nil {
		return fmt.Errorf("failed to check invite: %w", err)
	}
	if !exists {
		return ErrInviteNotFound
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to get team %d: %w", teamID, err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.teamRepo.AddMember(ctx, tx, teamID, userID); err != nil {
			return err
		}
		if err := s.inviteRepo.Delete(ctx, tx, userID, teamID); err != nil {
			return err
		}
		// A pending join request to the same team is fulfilled by joining.
		err := s.teamRepo.DeleteJoinRequest(ctx, tx, teamID, userID)
		if err != nil && !errors.Is(err, repositories.ErrJoinRequestNotFound) {
			return fmt.Errorf("failed to delete join request: %w", err)
		}
		return s.notificationRepo.Create(ctx, tx, &models.Notification{
			ID:         uuid.NewString(),
			UserID:     team.OwnerID,
			Type:       models.NotificationMemberAdded,
			TeamID:     teamID,
			FromUserID: userID,
			Message:    fmt.Sprintf("%s accepted your invite to %s", user.Username, team.Name),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamMemberExists):
			return ErrUserAlreadyMember
		case errors.Is(err, repositories.ErrTeamFull):
			return ErrTeamFull
		case errors.Is(err, repositories.ErrInviteNotFound):
			// Another accept or a withdrawal won the race.
			return ErrInviteNotFound
		}
		return fmt.Errorf("failed to accept invite: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, cache.TeamKey(teamID), cache.TeamsKey)
	return nil
}
