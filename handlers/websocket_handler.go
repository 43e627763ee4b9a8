package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sportsfinder/sports-finder/chat"
	"github.com/sportsfinder/sports-finder/middleware"
	"github.com/sportsfinder/sports-finder/services"
)

var errMessagingSelf = errors.New("cannot open a direct message with yourself")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The session cookie is the access control; cross-origin browser
	// clients are expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades authenticated requests into chat room clients.
type WebSocketHandler struct {
	hub         *chat.Hub
	userService services.UserService
	teamService services.TeamService
	gameService services.GameService
	logger      *slog.Logger
}

func NewWebSocketHandler(
	hub *chat.Hub,
	userService services.UserService,
	teamService services.TeamService,
	gameService services.GameService,
	logger *slog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		teamService: teamService,
		gameService: gameService,
		logger:      logger,
	}
}

// DirectMessage joins the private room shared by the caller and one other
// user.
func (h *WebSocketHandler) DirectMessage(w http.ResponseWriter, r *http.Request) {
	callerID, username, ok := h.session(w, r)
	if !ok {
		return
	}
	otherID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if otherID == callerID {
		badRequestResponse(w, errMessagingSelf)
		return
	}
	if _, err := h.userService.GetByID(r.Context(), otherID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.serve(w, r, chat.DMRoom(callerID, otherID), callerID, username, true)
}

// TeamChat joins the team room; only members may.
func (h *WebSocketHandler) TeamChat(w http.ResponseWriter, r *http.Request) {
	callerID, username, ok := h.session(w, r)
	if !ok {
		return
	}
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	isMember, err := h.teamService.IsMember(r.Context(), teamID, callerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !isMember {
		forbiddenResponse(w, "only team members can join this chat")
		return
	}

	h.serve(w, r, chat.TeamRoom(teamID), callerID, username, true)
}

// GameChat joins the game room; members of either participant team may.
func (h *WebSocketHandler) GameChat(w http.ResponseWriter, r *http.Request) {
	callerID, username, ok := h.session(w, r)
	if !ok {
		return
	}
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	canChat, err := h.gameService.CanChat(r.Context(), callerID, gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !canChat {
		forbiddenResponse(w, "only players of the participating teams can join this chat")
		return
	}

	h.serve(w, r, chat.GameRoom(gameID), callerID, username, true)
}

// Notifications joins the caller's private push channel. The server is the
// only writer; client frames are ignored.
func (h *WebSocketHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	callerID, username, ok := h.session(w, r)
	if !ok {
		return
	}

	h.serve(w, r, chat.UserRoom(callerID), callerID, username, false)
}

func (h *WebSocketHandler) session(w http.ResponseWriter, r *http.Request) (int, string, bool) {
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return 0, "", false
	}
	username, err := middleware.GetUsernameFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return 0, "", false
	}
	return callerID, username, true
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string, userID int, username string, canPost bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		h.logger.Error("websocket upgrade failed",
			slog.String("room", room), slog.Int("user_id", userID), slog.Any("error", err))
		return
	}

	h.logger.Info("websocket client connected",
		slog.String("room", room), slog.Int("user_id", userID))
	chat.NewClient(h.hub, conn, room, userID, username, canPost).Start()
}
