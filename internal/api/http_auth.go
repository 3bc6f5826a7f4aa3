package api

import (
	"gatekeeper/internal/entity"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) Register(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.accounts.Register(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		serviceError(c, err, "register")
		return
	}

	c.JSON(http.StatusCreated, entity.RegisterResponse{
		User:                 makeUserSummary(user),
		ConfirmationRequired: user.Status == entity.UserStatusUnconfirmedEmail,
	})
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	token, expiresAt, user, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		logrus.WithError(err).WithField("email", req.Email).Warn("login attempt failed")
		serviceError(c, err, "login")
		return
	}

	c.JSON(http.StatusOK, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	})
}

// ConfirmEmail redeems an activation or email-change key.
func (h *HTTPHandler) ConfirmEmail(c *gin.Context) {
	var req entity.ConfirmEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		MissingField(c, "key")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.accounts.ConfirmEmail(ctx, req.Key)
	if err != nil {
		serviceError(c, err, "confirm email")
		return
	}
	c.JSON(http.StatusOK, makeUserSummary(user))
}

// ForgotPassword always answers 202 so the response does not reveal
// whether the email is registered.
func (h *HTTPHandler) ForgotPassword(c *gin.Context) {
	var req entity.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.accounts.RequestPasswordReset(ctx, req.Email); err != nil {
		serviceError(c, err, "request password reset")
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *HTTPHandler) ResetPassword(c *gin.Context) {
	var req entity.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.accounts.ResetPassword(ctx, req.Key, req.Password); err != nil {
		serviceError(c, err, "reset password")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) RequestEmailChange(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.EmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.accounts.RequestEmailChange(ctx, user.ID, req.Email); err != nil {
		serviceError(c, err, "request email change")
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *HTTPHandler) Me(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	dbUser, err := h.users.GetUserByID(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load user profile")
		InternalError(c, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, makeUserSummary(dbUser))
}
