package cache

import "fmt"

// Key builders. Singular entries are keyed by resource id; the game listing
// is caller-scoped because its can_edit_or_delete flags depend on who asks.

func UserKey(id int) string { return fmt.Sprintf("user_id:%d", id) }

func TeamKey(id int) string { return fmt.Sprintf("team_id:%d", id) }

func GameKey(id int) string { return fmt.Sprintf("game_id:%d", id) }

func GamesKey(callerID int) string { return fmt.Sprintf("games:%d", callerID) }

const (
	UsersKey = "users"
	TeamsKey = "teams"
)
