package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsfinder/sports-finder/cache"
	"github.com/sportsfinder/sports-finder/geo"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/repositories"
)

type userServiceFixture struct {
	svc        UserService
	userRepo   *fakeUserRepo
	teamRepo   *fakeTeamRepo
	inviteRepo *fakeInviteRepo
	gameRepo   *fakeGameRepo
	cache      *fakeCache
}

func newUserServiceFixture(t *testing.T) *userServiceFixture {
	f := &userServiceFixture{
		userRepo:   newFakeUserRepo(),
		teamRepo:   newFakeTeamRepo(),
		inviteRepo: newFakeInviteRepo(),
		gameRepo:   newFakeGameRepo(),
		cache:      &fakeCache{},
	}
	f.svc = NewUserService(
		testDB(t),
		f.userRepo,
		f.teamRepo,
		f.inviteRepo,
		f.gameRepo,
		&fakeGeocoder{coords: geo.Coordinates{Latitude: 41.88, Longitude: -87.63}},
		nil,
		f.cache,
		testLogger(),
	)
	return f
}

func validProfileUpdate() UpdateProfileInput {
	return UpdateProfileInput{
		FirstName:      "Jordan",
		LastName:       "Rivera",
		Email:          "jordan@example.com",
		PhoneNumber:    "201-555-0142",
		Birthday:       "1995-06-15",
		State:          "IL",
		City:           "Chicago",
		AdvancedSports: []string{"Soccer"},
	}
}

func TestUpdateProfileSelfOnly(t *testing.T) {
	f := newUserServiceFixture(t)
	user := f.userRepo.add(models.User{Username: "jordan", State: "NJ", City: "Hoboken"})
	other := f.userRepo.add(models.User{Username: "other"})

	_, err := f.svc.UpdateProfile(context.Background(), other.ID, user.ID, validProfileUpdate())
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestUpdateProfileRegeocodesOnMove(t *testing.T) {
	f := newUserServiceFixture(t)
	user := f.userRepo.add(models.User{
		Username: "jordan", State: "NJ", City: "Hoboken",
		Latitude: 40.74, Longitude: -74.03,
	})

	updated, err := f.svc.UpdateProfile(context.Background(), user.ID, user.ID, validProfileUpdate())
	require.NoError(t, err)
	assert.Equal(t, "IL", updated.State)
	assert.Equal(t, "Chicago", updated.City)
	assert.InDelta(t, 41.88, updated.Latitude, 0.001)
	assert.InDelta(t, -87.63, updated.Longitude, 0.001)
}

func TestUpdateProfileValidation(t *testing.T) {
	f := newUserServiceFixture(t)
	user := f.userRepo.add(models.User{Username: "jordan", State: "NJ", City: "Hoboken"})

	input := validProfileUpdate()
	input.Birthday = time.Now().AddDate(-17, 0, 0).Format("2006-01-02")
	_, err := f.svc.UpdateProfile(context.Background(), user.ID, user.ID, input)
	assert.ErrorIs(t, err, ErrValidationFailed)

	// Emptying every skill bucket must be rejected too.
	input = validProfileUpdate()
	input.AdvancedSports = nil
	_, err = f.svc.UpdateProfile(context.Background(), user.ID, user.ID, input)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

// Deleting an account must take its owned team, its memberships, its join
// requests, and its pending invites along with it.
func TestDeleteUserCascades(t *testing.T) {
	f := newUserServiceFixture(t)
	user := f.userRepo.add(models.User{Username: "jordan"})
	otherOwner := f.userRepo.add(models.User{Username: "other"})

	ownTeam := f.teamRepo.add(models.Team{Name: "Hawks", OwnerID: user.ID})
	otherTeam := f.teamRepo.add(models.Team{Name: "Owls", OwnerID: otherOwner.ID})
	thirdTeam := f.teamRepo.add(models.Team{Name: "Crows", OwnerID: otherOwner.ID + 100})

	require.NoError(t, f.teamRepo.AddMember(context.Background(), nil, otherTeam.ID, user.ID))
	require.NoError(t, f.teamRepo.CreateJoinRequest(context.Background(), nil, thirdTeam.ID, user.ID))
	require.NoError(t, f.inviteRepo.Create(context.Background(), nil,
		&models.TeamInvite{UserID: user.ID, TeamID: thirdTeam.ID}))
	game := &models.Game{Team1: models.GameTeam{ID: ownTeam.ID}, Team2: models.GameTeam{ID: otherTeam.ID}}
	require.NoError(t, f.gameRepo.Create(context.Background(), game))

	require.NoError(t, f.svc.Delete(context.Background(), user.ID, user.ID))

	_, err := f.userRepo.GetByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	_, err = f.teamRepo.GetByOwner(context.Background(), user.ID)
	assert.ErrorIs(t, err, repositories.ErrTeamNotFound)

	stillMember, err := f.teamRepo.IsMember(context.Background(), otherTeam.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, stillMember)

	third, err := f.teamRepo.GetByID(context.Background(), thirdTeam.ID)
	require.NoError(t, err)
	assert.Empty(t, third.JoinRequests)

	invites, err := f.inviteRepo.ListByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, invites)

	games, err := f.gameRepo.ListByTeam(context.Background(), ownTeam.ID)
	require.NoError(t, err)
	assert.Empty(t, games, "games of the owned team must be deleted")

	// The cascaded team and its games must leave the cache too.
	assert.Contains(t, f.cache.deleted, cache.TeamKey(ownTeam.ID))
	assert.Contains(t, f.cache.deleted, cache.GameKey(game.ID))
}

func TestDeleteUserSelfOnly(t *testing.T) {
	f := newUserServiceFixture(t)
	user := f.userRepo.add(models.User{Username: "jordan"})
	other := f.userRepo.add(models.User{Username: "other"})

	assert.ErrorIs(t, f.svc.Delete(context.Background(), other.ID, user.ID), ErrForbiddenOperation)
}

func TestSearchValidatesFilters(t *testing.T) {
	f := newUserServiceFixture(t)
	user := f.userRepo.add(models.User{Username: "jordan"})

	_, err := f.svc.Search(context.Background(), user.ID, SearchUsersInput{Sport: "Cricket"})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.svc.Search(context.Background(), user.ID, SearchUsersInput{RadiusMiles: -5})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.svc.Search(context.Background(), user.ID, SearchUsersInput{SkillBucket: "expert"})
	assert.ErrorIs(t, err, ErrValidationFailed)
}
