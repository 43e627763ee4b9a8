package handlers

import (
	"net/http"

	"github.com/sportsfinder/sports-finder/middleware"
	"github.com/sportsfinder/sports-finder/services"
)

type InviteHandler struct {
	inviteService services.InviteService
}

func NewInviteHandler(inviteService services.InviteService) *InviteHandler {
	return &InviteHandler{inviteService: inviteService}
}

// Send invites a user to the caller's team.
func (h *InviteHandler) Send(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	var input struct {
		UserID int `json:"user_id"`
		TeamID int `json:"team_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	invite, err := h.inviteService.Send(r.Context(), callerID, input.UserID, input.TeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"invite": invite}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine returns the caller's pending invites.
func (h *InviteHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	invites, err := h.inviteService.ListForUser(r.Context(), callerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"invites": invites}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Accept turns the caller's pending invite into a membership.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.inviteService.Accept(r.Context(), callerID, teamID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"message": "invite accepted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Remove withdraws a pending invite: the invitee declining it, or the owner
// taking it back.
func (h *InviteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.inviteService.Remove(r.Context(), callerID, userID, teamID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
