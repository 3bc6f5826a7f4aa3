package api

import (
	"errors"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/entity"
	"gatekeeper/internal/service"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// serviceError 将服务层错误映射为统一的 API 错误响应
func serviceError(c *gin.Context, err error, action string) {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationFailed(c, verr)
	case errors.Is(err, service.ErrRoleNotFound):
		NotFound(c, ErrCodeRoleNotFound, "role not found")
	case errors.Is(err, service.ErrUserNotFound):
		NotFound(c, ErrCodeUserNotFound, "user not found")
	case errors.Is(err, service.ErrUserKeyNotFound):
		NotFound(c, ErrCodeKeyNotFound, "user key not found")
	case errors.Is(err, service.ErrKeyNotActive):
		BadRequest(c, ErrCodeKeyNotActive, err.Error())
	case errors.Is(err, service.ErrInvalidUserKey), errors.Is(err, service.ErrEmailUnchanged):
		BadRequest(c, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		ErrorResponse(c, http.StatusConflict, ErrCodeEmailExists, err.Error())
	case errors.Is(err, service.ErrRegistrationClosed):
		ErrorResponse(c, http.StatusForbidden, ErrCodeRegistrationClosed, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, err.Error())
	case errors.Is(err, service.ErrEmailUnconfirmed):
		ErrorResponse(c, http.StatusForbidden, ErrCodeEmailUnconfirmed, err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		ErrorResponse(c, http.StatusForbidden, ErrCodeUserDisabled, err.Error())
	case errors.Is(err, auth.ErrEmptyPassword), errors.Is(err, auth.ErrPasswordTooShort):
		BadRequest(c, ErrCodeInvalidRequest, err.Error())
	default:
		logrus.WithError(err).Error(action + " failed")
		InternalError(c, action+" failed")
	}
}

// parseIDParam 解析路径中的数字 ID
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	value := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func makeUserSummary(user *entity.User) entity.UserSummary {
	if user == nil {
		return entity.UserSummary{}
	}
	return entity.UserSummary{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		RoleID:      user.RoleID,
		Status:      user.Status.String(),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}
