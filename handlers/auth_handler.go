package handlers

import (
	"net/http"
	"time"

	"github.com/sportsfinder/sports-finder/middleware"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/services"
)

type AuthHandler struct {
	authService services.AuthService
	jwtSecret   string
}

func NewAuthHandler(authService services.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{authService: authService, jwtSecret: jwtSecret}
}

// Signup registers a new account and logs it in right away.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	user, err := h.authService.Register(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := h.setSessionCookie(w, user); err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var credentials models.Credentials
	if err := readJSON(w, r, &credentials); err != nil {
		badRequestResponse(w, err)
		return
	}

	user, err := h.authService.Login(r.Context(), credentials)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := h.setSessionCookie(w, user); err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, user *models.User) error {
	token, err := middleware.CreateToken(models.Session{UserID: user.ID, Username: user.Username}, h.jwtSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(middleware.SessionDuration),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
