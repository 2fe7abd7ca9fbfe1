package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kouriin1/Servicio-Comunitario/internal/identity"
	"github.com/Kouriin1/Servicio-Comunitario/internal/middleware"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/session"
)

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type signUpRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	FirstName       string `json:"firstName" binding:"required,max=100"`
	LastName        string `json:"lastName" binding:"required,max=100"`
	FacultyID       *int64 `json:"facultyId"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type passwordRequest struct {
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type sessionView struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Recovery    bool      `json:"recovery"`
}

type stateResponse struct {
	Session *sessionView `json:"session"`
	User    *models.User `json:"user"`
	Loading bool         `json:"loading"`
}

type redirectResponse struct {
	Redirect             string        `json:"redirect"`
	ConfirmationRequired bool          `json:"confirmationRequired,omitempty"`
	State                stateResponse `json:"state"`
}

// The refresh token stays with the device workspace and is never returned.
func toStateResponse(state session.State) stateResponse {
	resp := stateResponse{User: state.User, Loading: state.Loading}
	if state.Session != nil {
		resp.Session = &sessionView{
			AccessToken: state.Session.AccessToken,
			ExpiresAt:   state.Session.ExpiresAt,
			Recovery:    state.Session.Recovery,
		}
	}
	return resp
}

func (h HandlerSet) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := middleware.CurrentWorkspace(c)
	redirect, err := w.Session.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusOK, redirectResponse{Redirect: redirect, State: toStateResponse(w.Session.State())})
}

func (h HandlerSet) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := session.ValidateNewPassword(req.Password, req.ConfirmPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := middleware.CurrentWorkspace(c)
	redirect, err := w.Session.SignUp(c.Request.Context(), session.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		FacultyID: req.FacultyID,
	})
	if err != nil {
		h.authError(c, err)
		return
	}

	status := http.StatusCreated
	if redirect == session.RedirectNone {
		status = http.StatusAccepted
	}
	c.JSON(status, redirectResponse{
		Redirect:             redirect,
		ConfirmationRequired: redirect == session.RedirectNone,
		State:                toStateResponse(w.Session.State()),
	})
}

func (h HandlerSet) SignOut(c *gin.Context) {
	w := middleware.CurrentWorkspace(c)
	if err := w.Session.SignOut(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Str("device_id", w.DeviceID).Msg("sign-out reported an error")
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) RequestRecovery(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := middleware.CurrentWorkspace(c)
	if err := w.Session.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.authError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h HandlerSet) VerifyRecovery(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := middleware.CurrentWorkspace(c)
	if err := w.Session.VerifyRecovery(c.Request.Context(), req.Token); err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStateResponse(w.Session.State()))
}

func (h HandlerSet) ConfirmEmail(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := middleware.CurrentWorkspace(c)
	redirect, err := w.Session.ConfirmEmail(c.Request.Context(), req.Token)
	if err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusOK, redirectResponse{Redirect: redirect, State: toStateResponse(w.Session.State())})
}

// UpdatePassword completes a password reset started from a recovery link.
func (h HandlerSet) UpdatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := session.ValidateNewPassword(req.Password, req.ConfirmPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := middleware.CurrentWorkspace(c)
	if err := w.Session.CompletePasswordReset(c.Request.Context(), req.Password); err != nil {
		h.authError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// State reports the device's session, refreshing an expired access token.
func (h HandlerSet) State(c *gin.Context) {
	w := middleware.CurrentWorkspace(c)
	if _, err := w.Auth.GetSession(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Str("device_id", w.DeviceID).Msg("session refresh failed")
	}
	c.JSON(http.StatusOK, toStateResponse(w.Session.State()))
}

func (h HandlerSet) authError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	code := "auth_service_error"
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, identity.ErrEmailTaken):
		status, code = http.StatusConflict, "email_taken"
	case errors.Is(err, session.ErrWeakPassword), errors.Is(err, identity.ErrWeakPassword):
		status, code = http.StatusBadRequest, "weak_password"
	case errors.Is(err, identity.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, identity.ErrInvalidToken):
		status, code = http.StatusBadRequest, "invalid_token"
	case errors.Is(err, session.ErrNoRecoverySession), errors.Is(err, identity.ErrNoSession):
		status, code = http.StatusUnauthorized, "no_recovery_session"
	case errors.Is(err, session.ErrRecovery), errors.Is(err, session.ErrRegistration):
		status, code = http.StatusBadRequest, "request_failed"
	}
	if status >= 500 {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("auth request failed")
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
