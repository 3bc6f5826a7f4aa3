package api

import (
	"errors"
	"gatekeeper/internal/entity"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var allUserKeyTypes = []entity.UserKeyType{
	entity.UserKeyTypeEmailActivate,
	entity.UserKeyTypeEmailChange,
	entity.UserKeyTypePasswordReset,
}

// GenerateUserKey issues (or regenerates) a key for a user. The key value is
// only returned here.
func (h *HTTPHandler) GenerateUserKey(c *gin.Context) {
	var req entity.UserKeyGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.users.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeUserNotFound, "user not found")
			return
		}
		serviceError(c, err, "load user")
		return
	}

	key, err := h.keys.Generate(ctx, req.UserID, req.Type, req.ExpireTime)
	if err != nil {
		serviceError(c, err, "generate user key")
		return
	}
	c.JSON(http.StatusCreated, entity.NewUserKeyResponse(key, h.keys.Now(), true))
}

// FindActiveUserKey looks up the active key by value or by user. Without
// a type filter every type matches.
func (h *HTTPHandler) FindActiveUserKey(c *gin.Context) {
	var query entity.UserKeyLookupQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	keyValue := strings.TrimSpace(query.Key)
	if keyValue == "" && query.UserID == 0 {
		MissingField(c, "key")
		return
	}

	types := allUserKeyTypes
	if len(query.Types) > 0 {
		types = make([]entity.UserKeyType, 0, len(query.Types))
		for _, raw := range query.Types {
			t := entity.UserKeyType(raw)
			if !t.Valid() {
				BadRequest(c, ErrCodeInvalidRequest, "invalid key type")
				return
			}
			types = append(types, t)
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		key *entity.UserKey
		err error
	)
	if keyValue != "" {
		key, err = h.keys.FindActiveByKey(ctx, keyValue, types...)
	} else {
		key, err = h.keys.FindActiveByUser(ctx, query.UserID, types...)
	}
	if err != nil {
		serviceError(c, err, "find user key")
		return
	}
	if key == nil {
		NotFound(c, ErrCodeKeyNotFound, "no active key")
		return
	}
	c.JSON(http.StatusOK, entity.NewUserKeyResponse(key, h.keys.Now(), false))
}

func (h *HTTPHandler) GetUserKey(c *gin.Context) {
	key, ok := h.loadUserKey(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entity.NewUserKeyResponse(key, h.keys.Now(), false))
}

func (h *HTTPHandler) ConsumeUserKey(c *gin.Context) {
	key, ok := h.loadUserKey(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.keys.Consume(ctx, key); err != nil {
		serviceError(c, err, "consume user key")
		return
	}
	c.JSON(http.StatusOK, entity.NewUserKeyResponse(key, h.keys.Now(), false))
}

func (h *HTTPHandler) ExpireUserKey(c *gin.Context) {
	key, ok := h.loadUserKey(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.keys.Expire(ctx, key); err != nil {
		serviceError(c, err, "expire user key")
		return
	}
	c.JSON(http.StatusOK, entity.NewUserKeyResponse(key, h.keys.Now(), false))
}

func (h *HTTPHandler) loadUserKey(c *gin.Context) (*entity.UserKey, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	key, err := h.keys.Get(ctx, id)
	if err != nil {
		serviceError(c, err, "load user key")
		return nil, false
	}
	return key, true
}
