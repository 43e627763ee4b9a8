package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsfinder/sports-finder/geo"
	"github.com/sportsfinder/sports-finder/models"
)

type gameServiceFixture struct {
	svc      GameService
	userRepo *fakeUserRepo
	teamRepo *fakeTeamRepo
	gameRepo *fakeGameRepo

	owner1 *models.User
	owner2 *models.User
	team1  *models.Team
	team2  *models.Team
}

func newGameServiceFixture(t *testing.T) *gameServiceFixture {
	t.Helper()
	f := &gameServiceFixture{
		userRepo: newFakeUserRepo(),
		teamRepo: newFakeTeamRepo(),
		gameRepo: newFakeGameRepo(),
	}
	f.svc = NewGameService(
		f.gameRepo,
		f.teamRepo,
		&fakeGeocoder{coords: geo.Coordinates{Latitude: 40.74, Longitude: -74.03}},
		nil,
		testLogger(),
	)
	f.owner1 = f.userRepo.add(models.User{Username: "owner1"})
	f.owner2 = f.userRepo.add(models.User{Username: "owner2"})
	f.team1 = f.teamRepo.add(models.Team{Name: "Hawks", OwnerID: f.owner1.ID})
	f.team2 = f.teamRepo.add(models.Team{Name: "Owls", OwnerID: f.owner2.ID})
	return f
}

func (f *gameServiceFixture) validGame() CreateGameInput {
	return CreateGameInput{
		Team1ID: f.team1.ID,
		Team2ID: f.team2.ID,
		Sport:   "Basketball",
		State:   "NJ",
		City:    "Hoboken",
		Date:    "2027-03-14",
	}
}

func TestCreateGame(t *testing.T) {
	f := newGameServiceFixture(t)

	game, err := f.svc.Create(context.Background(), f.owner1.ID, f.validGame())
	require.NoError(t, err)
	assert.NotZero(t, game.ID)
	assert.Equal(t, "Hawks", game.Team1.Name)
	assert.Equal(t, "Owls", game.Team2.Name)
	assert.InDelta(t, 40.74, game.Latitude, 0.001)
}

func TestCreateGameRequiresParticipantOwnership(t *testing.T) {
	f := newGameServiceFixture(t)
	bystander := f.userRepo.add(models.User{Username: "bystander"})

	_, err := f.svc.Create(context.Background(), bystander.ID, f.validGame())
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestCreateGameSameTeam(t *testing.T) {
	f := newGameServiceFixture(t)

	input := f.validGame()
	input.Team2ID = input.Team1ID
	_, err := f.svc.Create(context.Background(), f.owner1.ID, input)
	assert.ErrorIs(t, err, ErrSameTeam)
}

func TestCreateGameNegativeScore(t *testing.T) {
	f := newGameServiceFixture(t)

	negative := -3
	input := f.validGame()
	input.Team1Score = &negative
	_, err := f.svc.Create(context.Background(), f.owner1.ID, input)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

// The listing flag and the mutation guard must agree: a caller may edit or
// delete a game exactly when they own one of its teams.
func TestListSetsCanEditOrDelete(t *testing.T) {
	f := newGameServiceFixture(t)

	_, err := f.svc.Create(context.Background(), f.owner1.ID, f.validGame())
	require.NoError(t, err)

	owner3 := f.userRepo.add(models.User{Username: "owner3"})
	team3 := f.teamRepo.add(models.Team{Name: "Crows", OwnerID: owner3.ID})
	input := f.validGame()
	input.Team1ID = team3.ID
	_, err = f.svc.Create(context.Background(), owner3.ID, input)
	require.NoError(t, err)

	games, err := f.svc.List(context.Background(), f.owner1.ID)
	require.NoError(t, err)
	require.Len(t, games, 2)

	for _, game := range games {
		require.NotNil(t, game.CanEditOrDelete)
		owns := game.Team1.ID == f.team1.ID || game.Team2.ID == f.team1.ID
		assert.Equal(t, owns, *game.CanEditOrDelete)
	}
}

func TestUpdateGameRefreshesTeamNameSnapshots(t *testing.T) {
	f := newGameServiceFixture(t)

	game, err := f.svc.Create(context.Background(), f.owner1.ID, f.validGame())
	require.NoError(t, err)

	renamed := *f.teamRepo.teams[f.team1.ID]
	renamed.Name = "Hoboken Hawks"
	require.NoError(t, f.teamRepo.Update(context.Background(), &renamed))

	score1, score2 := 21, 18
	updated, err := f.svc.Update(context.Background(), f.owner1.ID, game.ID, UpdateGameInput{
		Team1Score: &score1,
		Team2Score: &score2,
		Sport:      "Basketball",
		State:      "NJ",
		City:       "Hoboken",
		Date:       "2027-03-14",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hoboken Hawks", updated.Team1.Name)
	assert.Equal(t, 21, *updated.Team1.Score)
	assert.Equal(t, 18, *updated.Team2.Score)
}

func TestUpdateGameForbiddenForNonOwner(t *testing.T) {
	f := newGameServiceFixture(t)
	bystander := f.userRepo.add(models.User{Username: "bystander"})

	game, err := f.svc.Create(context.Background(), f.owner1.ID, f.validGame())
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), bystander.ID, game.ID, UpdateGameInput{
		Sport: "Basketball",
		State: "NJ",
		City:  "Hoboken",
		Date:  "2027-03-14",
	})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestDeleteGame(t *testing.T) {
	f := newGameServiceFixture(t)
	bystander := f.userRepo.add(models.User{Username: "bystander"})

	game, err := f.svc.Create(context.Background(), f.owner1.ID, f.validGame())
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), bystander.ID, game.ID), ErrForbiddenOperation)

	// Either participant owner may delete, not just the creator.
	require.NoError(t, f.svc.Delete(context.Background(), f.owner2.ID, game.ID))
	assert.ErrorIs(t, f.svc.Delete(context.Background(), f.owner2.ID, game.ID), ErrGameNotFound)
}

func TestCanChat(t *testing.T) {
	f := newGameServiceFixture(t)
	member := f.userRepo.add(models.User{Username: "member"})
	outsider := f.userRepo.add(models.User{Username: "outsider"})
	require.NoError(t, f.teamRepo.AddMember(context.Background(), nil, f.team2.ID, member.ID))

	game, err := f.svc.Create(context.Background(), f.owner1.ID, f.validGame())
	require.NoError(t, err)

	can, err := f.svc.CanChat(context.Background(), member.ID, game.ID)
	require.NoError(t, err)
	assert.True(t, can)

	can, err = f.svc.CanChat(context.Background(), outsider.ID, game.ID)
	require.NoError(t, err)
	assert.False(t, can)
}
