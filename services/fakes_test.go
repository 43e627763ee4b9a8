package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sportsfinder/sports-finder/geo"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/repositories"
)

// The fake repositories below ignore the SQL executor arguments, so the
// transactions the services open only need a driver whose Begin, Commit and
// Rollback succeed.

type noopDriver struct{}

func (noopDriver) Open(string) (driver.Conn, error) { return noopConn{}, nil }

type noopConn struct{}

func (noopConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (noopConn) Close() error                        { return nil }
func (noopConn) Begin() (driver.Tx, error)           { return noopTx{}, nil }

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

func init() {
	sql.Register("servicetest", noopDriver{})
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("servicetest", "")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGeocoder struct {
	coords geo.Coordinates
	err    error
}

func (g *fakeGeocoder) Geocode(context.Context, string, string) (geo.Coordinates, error) {
	if g.err != nil {
		return geo.Coordinates{}, g.err
	}
	return g.coords, nil
}

// --- users ---

type fakeUserRepo struct {
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]*models.User{}}
}

func (r *fakeUserRepo) add(user models.User) *models.User {
	if user.ID == 0 {
		user.ID = r.nextID
	}
	if user.ID >= r.nextID {
		r.nextID = user.ID + 1
	}
	user.CreatedAt = time.Now()
	stored := user
	r.users[user.ID] = &stored
	return &stored
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, existing := range r.users {
		switch {
		case strings.EqualFold(existing.Username, user.Username):
			return repositories.ErrUserUsernameConflict
		case strings.EqualFold(existing.Email, user.Email):
			return repositories.ErrUserEmailConflict
		case existing.PhoneNumber == user.PhoneNumber:
			return repositories.ErrUserPhoneConflict
		}
	}
	stored := r.add(*user)
	user.ID = stored.ID
	user.CreatedAt = stored.CreatedAt
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) List(context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (r *fakeUserRepo) ListByFilters(ctx context.Context, _ repositories.UserFilter) ([]models.User, error) {
	return r.List(ctx)
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) UpdateAvatarKey(_ context.Context, id int, key *string) error {
	user, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.AvatarKey = key
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// --- teams ---

type memberKey struct{ teamID, userID int }

type fakeTeamRepo struct {
	nextID       int
	teams        map[int]*models.Team
	members      map[memberKey]time.Time
	joinRequests map[memberKey]time.Time
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{
		nextID:       1,
		teams:        map[int]*models.Team{},
		members:      map[memberKey]time.Time{},
		joinRequests: map[memberKey]time.Time{},
	}
}

func (r *fakeTeamRepo) add(team models.Team) *models.Team {
	if team.ID == 0 {
		team.ID = r.nextID
	}
	if team.ID >= r.nextID {
		r.nextID = team.ID + 1
	}
	team.CreatedAt = time.Now()
	stored := team
	r.teams[team.ID] = &stored
	r.members[memberKey{team.ID, team.OwnerID}] = stored.CreatedAt
	return &stored
}

func (r *fakeTeamRepo) memberCount(teamID int) int {
	count := 0
	for key := range r.members {
		if key.teamID == teamID {
			count++
		}
	}
	return count
}

func (r *fakeTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, team *models.Team) error {
	for _, existing := range r.teams {
		if existing.OwnerID == team.OwnerID {
			return repositories.ErrTeamOwnerConflict
		}
	}
	stored := r.add(*team)
	team.ID = stored.ID
	team.CreatedAt = stored.CreatedAt
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *team
	copied.Members = nil
	for key, addedAt := range r.members {
		if key.teamID == id {
			copied.Members = append(copied.Members, models.TeamMember{TeamID: id, UserID: key.userID, AddedAt: addedAt})
		}
	}
	copied.JoinRequests = nil
	for key, requestedAt := range r.joinRequests {
		if key.teamID == id {
			copied.JoinRequests = append(copied.JoinRequests, models.JoinRequest{TeamID: id, UserID: key.userID, RequestedAt: requestedAt})
		}
	}
	return &copied, nil
}

func (r *fakeTeamRepo) GetByOwner(ctx context.Context, ownerID int) (*models.Team, error) {
	for id, team := range r.teams {
		if team.OwnerID == ownerID {
			return r.GetByID(ctx, id)
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *fakeTeamRepo) List(context.Context) ([]models.Team, error) {
	teams := make([]models.Team, 0, len(r.teams))
	for _, team := range r.teams {
		teams = append(teams, *team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (r *fakeTeamRepo) ListByFilters(ctx context.Context, _ repositories.TeamFilter) ([]models.Team, error) {
	return r.List(ctx)
}

func (r *fakeTeamRepo) ListByMember(_ context.Context, userID int) ([]models.Team, error) {
	teams := make([]models.Team, 0)
	for key := range r.members {
		if key.userID == userID {
			if team, ok := r.teams[key.teamID]; ok {
				teams = append(teams, *team)
			}
		}
	}
	return teams, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, team *models.Team) error {
	if _, ok := r.teams[team.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	copied := *team
	r.teams[team.ID] = &copied
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(_ context.Context, id int, key *string) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.LogoKey = key
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	for key := range r.members {
		if key.teamID == id {
			delete(r.members, key)
		}
	}
	for key := range r.joinRequests {
		if key.teamID == id {
			delete(r.joinRequests, key)
		}
	}
	return nil
}

func (r *fakeTeamRepo) IsMember(_ context.Context, teamID, userID int) (bool, error) {
	_, ok := r.members[memberKey{teamID, userID}]
	return ok, nil
}

func (r *fakeTeamRepo) AddMember(_ context.Context, _ repositories.SQLExecutor, teamID, userID int) error {
	if _, ok := r.members[memberKey{teamID, userID}]; ok {
		return repositories.ErrTeamMemberExists
	}
	if r.memberCount(teamID) >= models.MaxTeamMembers {
		return repositories.ErrTeamFull
	}
	r.members[memberKey{teamID, userID}] = time.Now()
	return nil
}

func (r *fakeTeamRepo) RemoveMember(_ context.Context, _ repositories.SQLExecutor, teamID, userID int) error {
	key := memberKey{teamID, userID}
	if _, ok := r.members[key]; !ok {
		return repositories.ErrTeamMemberNotFound
	}
	delete(r.members, key)
	return nil
}

func (r *fakeTeamRepo) RemoveMemberFromAll(_ context.Context, _ repositories.SQLExecutor, userID int) error {
	for key := range r.members {
		if key.userID == userID {
			delete(r.members, key)
		}
	}
	return nil
}

func (r *fakeTeamRepo) CreateJoinRequest(_ context.Context, _ repositories.SQLExecutor, teamID, userID int) error {
	key := memberKey{teamID, userID}
	if _, ok := r.joinRequests[key]; ok {
		return repositories.ErrJoinRequestExists
	}
	if _, ok := r.teams[teamID]; !ok {
		return repositories.ErrTeamNotFound
	}
	r.joinRequests[key] = time.Now()
	return nil
}

func (r *fakeTeamRepo) DeleteJoinRequest(_ context.Context, _ repositories.SQLExecutor, teamID, userID int) error {
	key := memberKey{teamID, userID}
	if _, ok := r.joinRequests[key]; !ok {
		return repositories.ErrJoinRequestNotFound
	}
	delete(r.joinRequests, key)
	return nil
}

func (r *fakeTeamRepo) DeleteJoinRequestsByUser(_ context.Context, _ repositories.SQLExecutor, userID int) error {
	for key := range r.joinRequests {
		if key.userID == userID {
			delete(r.joinRequests, key)
		}
	}
	return nil
}

// --- invites ---

type inviteKey struct{ userID, teamID int }

type fakeInviteRepo struct {
	invites map[inviteKey]time.Time
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{invites: map[inviteKey]time.Time{}}
}

func (r *fakeInviteRepo) Create(_ context.Context, _ repositories.SQLExecutor, invite *models.TeamInvite) error {
	key := inviteKey{invite.UserID, invite.TeamID}
	if _, ok := r.invites[key]; ok {
		return repositories.ErrInviteExists
	}
	invite.RequestedAt = time.Now()
	r.invites[key] = invite.RequestedAt
	return nil
}

func (r *fakeInviteRepo) Exists(_ context.Context, userID, teamID int) (bool, error) {
	_, ok := r.invites[inviteKey{userID, teamID}]
	return ok, nil
}

func (r *fakeInviteRepo) ListByUser(_ context.Context, userID int) ([]models.TeamInvite, error) {
	invites := make([]models.TeamInvite, 0)
	for key, requestedAt := range r.invites {
		if key.userID == userID {
			invites = append(invites, models.TeamInvite{UserID: key.userID, TeamID: key.teamID, RequestedAt: requestedAt})
		}
	}
	return invites, nil
}

func (r *fakeInviteRepo) Delete(_ context.Context, _ repositories.SQLExecutor, userID, teamID int) error {
	key := inviteKey{userID, teamID}
	if _, ok := r.invites[key]; !ok {
		return repositories.ErrInviteNotFound
	}
	delete(r.invites, key)
	return nil
}

func (r *fakeInviteRepo) DeleteByTeam(_ context.Context, _ repositories.SQLExecutor, teamID int) error {
	for key := range r.invites {
		if key.teamID == teamID {
			delete(r.invites, key)
		}
	}
	return nil
}

func (r *fakeInviteRepo) DeleteByUser(_ context.Context, _ repositories.SQLExecutor, userID int) error {
	for key := range r.invites {
		if key.userID == userID {
			delete(r.invites, key)
		}
	}
	return nil
}

// --- games ---

type fakeGameRepo struct {
	nextID int
	games  map[int]*models.Game
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{nextID: 1, games: map[int]*models.Game{}}
}

func (r *fakeGameRepo) Create(_ context.Context, game *models.Game) error {
	game.ID = r.nextID
	r.nextID++
	game.CreatedAt = time.Now()
	stored := *game
	r.games[game.ID] = &stored
	return nil
}

func (r *fakeGameRepo) GetByID(_ context.Context, id int) (*models.Game, error) {
	game, ok := r.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	copied := *game
	return &copied, nil
}

func (r *fakeGameRepo) List(context.Context) ([]models.Game, error) {
	games := make([]models.Game, 0, len(r.games))
	for _, game := range r.games {
		games = append(games, *game)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (r *fakeGameRepo) ListByTeam(_ context.Context, teamID int) ([]models.Game, error) {
	games := make([]models.Game, 0)
	for _, game := range r.games {
		if game.Team1.ID == teamID || game.Team2.ID == teamID {
			games = append(games, *game)
		}
	}
	return games, nil
}

func (r *fakeGameRepo) ListUpcomingByTeam(ctx context.Context, teamID int, after time.Time) ([]models.Game, error) {
	all, _ := r.ListByTeam(ctx, teamID)
	games := make([]models.Game, 0)
	for _, game := range all {
		if !game.Date.Before(after) {
			games = append(games, game)
		}
	}
	return games, nil
}

func (r *fakeGameRepo) Update(_ context.Context, game *models.Game) error {
	if _, ok := r.games[game.ID]; !ok {
		return repositories.ErrGameNotFound
	}
	copied := *game
	r.games[game.ID] = &copied
	return nil
}

func (r *fakeGameRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.games[id]; !ok {
		return repositories.ErrGameNotFound
	}
	delete(r.games, id)
	return nil
}

func (r *fakeGameRepo) DeleteByTeam(_ context.Context, _ repositories.SQLExecutor, teamID int) error {
	for id, game := range r.games {
		if game.Team1.ID == teamID || game.Team2.ID == teamID {
			delete(r.games, id)
		}
	}
	return nil
}

// --- notifications ---

type fakeNotificationRepo struct {
	created []models.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, _ repositories.SQLExecutor, n *models.Notification) error {
	n.CreatedAt = time.Now()
	r.created = append(r.created, *n)
	return nil
}

func (r *fakeNotificationRepo) ListUndelivered(_ context.Context, limit int) ([]models.Notification, error) {
	pending := make([]models.Notification, 0)
	for _, n := range r.created {
		if n.DeliveredAt == nil {
			pending = append(pending, n)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (r *fakeNotificationRepo) MarkDelivered(_ context.Context, id string, at time.Time) error {
	for i := range r.created {
		if r.created[i].ID == id && r.created[i].DeliveredAt == nil {
			r.created[i].DeliveredAt = &at
			return nil
		}
	}
	return repositories.ErrNotificationNotFound
}

type broadcastCall struct {
	room        string
	messageType string
	payload     interface{}
}

type fakeBroadcaster struct {
	calls []broadcastCall
}

func (b *fakeBroadcaster) BroadcastToRoom(room string, messageType string, payload interface{}) {
	b.calls = append(b.calls, broadcastCall{room, messageType, payload})
}

// fakeCache only records invalidations; reads always miss.
type fakeCache struct {
	deleted []string
}

func (c *fakeCache) GetJSON(context.Context, string, interface{}) (bool, error) { return false, nil }

func (c *fakeCache) SetJSON(context.Context, string, interface{}) error { return nil }

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	return nil
}
