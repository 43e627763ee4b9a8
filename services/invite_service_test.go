package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsfinder/sports-finder/models"
)

type inviteServiceFixture struct {
	svc           InviteService
	userRepo      *fakeUserRepo
	teamRepo      *fakeTeamRepo
	inviteRepo    *fakeInviteRepo
	notifications *fakeNotificationRepo

	owner   *models.User
	invitee *models.User
	team    *models.Team
}

func newInviteServiceFixture(t *testing.T) *inviteServiceFixture {
	f := &inviteServiceFixture{
		userRepo:      newFakeUserRepo(),
		teamRepo:      newFakeTeamRepo(),
		inviteRepo:    newFakeInviteRepo(),
		notifications: &fakeNotificationRepo{},
	}
	f.svc = NewInviteService(
		testDB(t),
		f.inviteRepo,
		f.teamRepo,
		f.userRepo,
		f.notifications,
		nil,
		testLogger(),
	)
	f.owner = f.userRepo.add(models.User{Username: "owner"})
	f.invitee = f.userRepo.add(models.User{Username: "invitee"})
	f.team = f.teamRepo.add(models.Team{Name: "Hoboken Hawks", OwnerID: f.owner.ID})
	return f
}

func TestSendInvite(t *testing.T) {
	f := newInviteServiceFixture(t)

	invite, err := f.svc.Send(context.Background(), f.owner.ID, f.invitee.ID, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, f.invitee.ID, invite.UserID)
	assert.Equal(t, f.team.ID, invite.TeamID)

	require.Len(t, f.notifications.created, 1)
	n := f.notifications.created[0]
	assert.Equal(t, models.NotificationTeamInvite, n.Type)
	assert.Equal(t, f.invitee.ID, n.UserID)
	assert.Equal(t, f.owner.ID, n.FromUserID)

	// The same pair cannot be invited twice.
	_, err = f.svc.Send(context.Background(), f.owner.ID, f.invitee.ID, f.team.ID)
	assert.ErrorIs(t, err, ErrInviteAlreadySent)
}

func TestSendInviteOwnerOnly(t *testing.T) {
	f := newInviteServiceFixture(t)

	_, err := f.svc.Send(context.Background(), f.invitee.ID, f.invitee.ID, f.team.ID)
	assert.ErrorIs(t, err, ErrOwnerActionForbidden)
}

func TestSendInviteToExistingMember(t *testing.T) {
	f := newInviteServiceFixture(t)

	_, err := f.svc.Send(context.Background(), f.owner.ID, f.owner.ID, f.team.ID)
	assert.ErrorIs(t, err, ErrUserAlreadyMember)
}

// Accepting must atomically add the membership, consume the invite, and
// consume any join request the invitee had pending for the same team.
func TestAcceptInvite(t *testing.T) {
	f := newInviteServiceFixture(t)

	_, err := f.svc.Send(context.Background(), f.owner.ID, f.invitee.ID, f.team.ID)
	require.NoError(t, err)
	require.NoError(t, f.teamRepo.CreateJoinRequest(context.Background(), nil, f.team.ID, f.invitee.ID))

	require.NoError(t, f.svc.Accept(context.Background(), f.invitee.ID, f.team.ID))

	member, err := f.teamRepo.IsMember(context.Background(), f.team.ID, f.invitee.ID)
	require.NoError(t, err)
	assert.True(t, member)

	exists, err := f.inviteRepo.Exists(context.Background(), f.invitee.ID, f.team.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	team, err := f.teamRepo.GetByID(context.Background(), f.team.ID)
	require.NoError(t, err)
	assert.Empty(t, team.JoinRequests)

	last := f.notifications.created[len(f.notifications.created)-1]
	assert.Equal(t, models.NotificationMemberAdded, last.Type)
	assert.Equal(t, f.owner.ID, last.UserID)
	assert.Equal(t, f.invitee.ID, last.FromUserID)
}

func TestAcceptInviteWithoutInvite(t *testing.T) {
	f := newInviteServiceFixture(t)

	err := f.svc.Accept(context.Background(), f.invitee.ID, f.team.ID)
	assert.ErrorIs(t, err, ErrInviteNotFound)
}

func TestRemoveInvite(t *testing.T) {
	f := newInviteServiceFixture(t)
	stranger := f.userRepo.add(models.User{Username: "stranger"})

	_, err := f.svc.Send(context.Background(), f.owner.ID, f.invitee.ID, f.team.ID)
	require.NoError(t, err)

	// Neither a third party nor a non-owner may withdraw someone else's
	// invite.
	err = f.svc.Remove(context.Background(), stranger.ID, f.invitee.ID, f.team.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	// The invitee declining their own invite is allowed.
	require.NoError(t, f.svc.Remove(context.Background(), f.invitee.ID, f.invitee.ID, f.team.ID))
	exists, err := f.inviteRepo.Exists(context.Background(), f.invitee.ID, f.team.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}
