package api

import (
	"encoding/json"
	"errors"
	"gatekeeper/internal/entity"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *HTTPHandler) ListRoles(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	roles, err := h.roles.List(ctx)
	if err != nil {
		serviceError(c, err, "list roles")
		return
	}
	response := make([]entity.RoleResponse, 0, len(roles))
	for idx := range roles {
		response = append(response, entity.NewRoleResponse(&roles[idx]))
	}
	c.JSON(http.StatusOK, response)
}

func (h *HTTPHandler) CreateRole(c *gin.Context) {
	var req entity.RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		roleBindError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	role, err := h.roles.Create(ctx, req.Name, req.CanAdmin)
	if err != nil {
		serviceError(c, err, "create role")
		return
	}
	c.JSON(http.StatusCreated, entity.NewRoleResponse(role))
}

func (h *HTTPHandler) GetRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	role, err := h.roles.Get(ctx, id)
	if err != nil {
		serviceError(c, err, "load role")
		return
	}
	c.JSON(http.StatusOK, entity.NewRoleResponse(role))
}

func (h *HTTPHandler) UpdateRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req entity.RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		roleBindError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	role, err := h.roles.Update(ctx, id, entity.RoleUpdates{Name: req.Name, CanAdmin: req.CanAdmin})
	if err != nil {
		serviceError(c, err, "update role")
		return
	}
	c.JSON(http.StatusOK, entity.NewRoleResponse(role))
}

// RoleDropdown returns role id => name for selection lists.
func (h *HTTPHandler) RoleDropdown(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	dropdown, err := h.roles.Dropdown(ctx)
	if err != nil {
		serviceError(c, err, "load role dropdown")
		return
	}
	c.JSON(http.StatusOK, dropdown)
}

// RefreshRoleDropdown drops the cached dropdown and returns a fresh one.
func (h *HTTPHandler) RefreshRoleDropdown(c *gin.Context) {
	h.roles.InvalidateDropdown()
	h.RoleDropdown(c)
}

func (h *HTTPHandler) ListRoleUsers(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var query entity.UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	users, meta, err := h.roles.Users(ctx, id, query)
	if err != nil {
		serviceError(c, err, "list role users")
		return
	}

	response := entity.UserListResponse{
		Users: make([]entity.UserSummary, 0, len(users)),
		Meta:  meta,
	}
	for idx := range users {
		response.Users = append(response.Users, makeUserSummary(&users[idx]))
	}
	c.JSON(http.StatusOK, response)
}

// CheckRolePermission reports whether a role holds one permission.
func (h *HTTPHandler) CheckRolePermission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	permission, err := entity.ParsePermission(c.Param("permission"))
	if err != nil {
		BadRequest(c, ErrCodeInvalidPermission, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	allowed, err := h.roles.CheckPermission(ctx, id, permission)
	if err != nil {
		serviceError(c, err, "check permission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role_id": id, "permission": permission, "allowed": allowed})
}

// roleBindError reports a non-integer can_admin as a field validation
// failure and everything else as a bad payload.
func roleBindError(c *gin.Context, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "can_admin" {
		ValidationFailed(c, &entity.ValidationError{Fields: []entity.FieldError{{Field: "can_admin", Rule: "integer"}}})
		return
	}
	InvalidPayload(c)
}
