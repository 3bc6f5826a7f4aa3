package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"gatekeeper/internal/config"
	"gatekeeper/internal/entity"
	"gatekeeper/internal/model"
	"gatekeeper/internal/service"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "admin-password"
)

// HTTPHandlerTestSuite 基于 SQLite 的路由集成测试
type HTTPHandlerTestSuite struct {
	suite.Suite
	router *gin.Engine
	repo   model.Repository

	mu   sync.Mutex
	keys []*entity.UserKey
}

func (s *HTTPHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		DBType:               model.DBTypeSQLite,
		DBPath:               filepath.Join(s.T().TempDir(), "gatekeeper.db"),
		JWTSecret:            "http-test-secret",
		JWTIssuer:            "gatekeeper-test",
		JWTExpirationMinutes: 60,
		PasswordResetKeyTTL:  time.Hour,
		RegistrationEnabled:  true,
		EmailConfirmation:    true,
		RoleDropdownCache:    true,
		AdminEmail:           testAdminEmail,
		AdminPassword:        testAdminPassword,
	}

	repo, err := model.InitRepository(&cfg)
	s.Require().NoError(err)
	ctx := context.Background()
	s.Require().NoError(model.SeedDefaultRoles(ctx, repo))
	s.Require().NoError(model.SeedDefaultAdmin(ctx, repo, cfg))
	s.repo = repo

	s.keys = nil
	notifier := service.NotifierFunc(func(_ context.Context, _ *entity.User, key *entity.UserKey) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		copied := *key
		s.keys = append(s.keys, &copied)
		return nil
	})

	handler, err := NewHTTPHandler(cfg, repo, notifier)
	s.Require().NoError(err)

	s.router = gin.New()
	handler.RegisterRoutes(s.router)
}

func (s *HTTPHandlerTestSuite) lastKey() *entity.UserKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().NotEmpty(s.keys)
	return s.keys[len(s.keys)-1]
}

func (s *HTTPHandlerTestSuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HTTPHandlerTestSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *HTTPHandlerTestSuite) errorCode(w *httptest.ResponseRecorder) string {
	var apiErr APIError
	s.decode(w, &apiErr)
	return apiErr.Code
}

func (s *HTTPHandlerTestSuite) login(email, password string) string {
	w := s.do(http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp entity.AuthResponse
	s.decode(w, &resp)
	s.Require().NotEmpty(resp.Token)
	return resp.Token
}

func (s *HTTPHandlerTestSuite) adminToken() string {
	return s.login(testAdminEmail, testAdminPassword)
}

// registerActive 注册并激活一个普通用户
func (s *HTTPHandlerTestSuite) registerActive(email string) entity.UserSummary {
	w := s.do(http.MethodPost, "/api/auth/register", gin.H{"email": email, "password": "member-password"}, "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/confirm", gin.H{"key": s.lastKey().Key}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var user entity.UserSummary
	s.decode(w, &user)
	return user
}

func (s *HTTPHandlerTestSuite) TestAdminRoutesRequireAuth() {
	w := s.do(http.MethodGet, "/api/roles", nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(ErrCodeUnauthorized, s.errorCode(w))

	w = s.do(http.MethodGet, "/api/roles", nil, "not-a-token")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(ErrCodeSessionExpired, s.errorCode(w))
}

func (s *HTTPHandlerTestSuite) TestAdminRoutesRequirePermission() {
	s.registerActive("member@example.com")
	token := s.login("member@example.com", "member-password")

	w := s.do(http.MethodGet, "/api/roles", nil, token)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(ErrCodeForbidden, s.errorCode(w))

	w = s.do(http.MethodGet, "/api/auth/me", nil, token)
	s.Equal(http.StatusOK, w.Code)
	var me entity.UserSummary
	s.decode(w, &me)
	s.Equal("member@example.com", me.Email)
	s.Equal(entity.RoleUser, me.RoleID)
}

func (s *HTTPHandlerTestSuite) TestRoleLifecycle() {
	token := s.adminToken()

	w := s.do(http.MethodPost, "/api/roles", gin.H{"name": "Editors", "can_admin": 0}, token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created entity.RoleResponse
	s.decode(w, &created)
	s.NotZero(created.ID)
	s.NotNil(created.CreateTime)
	s.Nil(created.UpdateTime)
	s.False(created.Permissions[entity.PermissionAdmin])

	w = s.do(http.MethodGet, "/api/roles/dropdown", nil, token)
	s.Require().Equal(http.StatusOK, w.Code)
	var dropdown map[string]string
	s.decode(w, &dropdown)
	s.Equal(map[string]string{"1": "Admin", "2": "User", fmt.Sprint(created.ID): "Editors"}, dropdown)

	path := fmt.Sprintf("/api/roles/%d", created.ID)
	w = s.do(http.MethodPatch, path, gin.H{"name": "Writers", "can_admin": 1}, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated entity.RoleResponse
	s.decode(w, &updated)
	s.Equal("Writers", updated.Name)
	s.NotNil(updated.UpdateTime)
	s.True(updated.Permissions[entity.PermissionAdmin])

	w = s.do(http.MethodGet, "/api/roles/dropdown", nil, token)
	s.decode(w, &dropdown)
	s.Equal("Writers", dropdown[fmt.Sprint(created.ID)])

	w = s.do(http.MethodGet, path+"/permissions/admin", nil, token)
	s.Require().Equal(http.StatusOK, w.Code)
	var check struct {
		Allowed bool `json:"allowed"`
	}
	s.decode(w, &check)
	s.True(check.Allowed)

	w = s.do(http.MethodGet, "/api/roles", nil, token)
	s.Require().Equal(http.StatusOK, w.Code)
	var roles []entity.RoleResponse
	s.decode(w, &roles)
	s.Len(roles, 3)
}

func (s *HTTPHandlerTestSuite) TestRoleValidationErrors() {
	token := s.adminToken()

	w := s.do(http.MethodPost, "/api/roles", gin.H{"name": ""}, token)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	var apiErr struct {
		Code    string `json:"code"`
		Details struct {
			Fields []entity.FieldError `json:"fields"`
		} `json:"details"`
	}
	s.decode(w, &apiErr)
	s.Equal(ErrCodeValidationFailed, apiErr.Code)
	s.Require().Len(apiErr.Details.Fields, 1)
	s.Equal("name", apiErr.Details.Fields[0].Field)

	w = s.do(http.MethodPost, "/api/roles", `{"name":"Odd","can_admin":"yes"}`, token)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal(ErrCodeValidationFailed, s.errorCode(w))

	w = s.do(http.MethodGet, "/api/roles/999", nil, token)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(ErrCodeRoleNotFound, s.errorCode(w))

	w = s.do(http.MethodGet, "/api/roles/abc", nil, token)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/roles/1/permissions/root", nil, token)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(ErrCodeInvalidPermission, s.errorCode(w))
}

func (s *HTTPHandlerTestSuite) TestRoleUsers() {
	token := s.adminToken()
	s.registerActive("one@example.com")
	s.registerActive("two@example.com")

	w := s.do(http.MethodGet, "/api/roles/2/users?page_size=1", nil, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp entity.UserListResponse
	s.decode(w, &resp)
	s.Len(resp.Users, 1)
	s.EqualValues(2, resp.Meta.Total)

	w = s.do(http.MethodGet, "/api/roles/1/users", nil, token)
	s.decode(w, &resp)
	s.Require().Len(resp.Users, 1)
	s.Equal(testAdminEmail, resp.Users[0].Email)
}

func (s *HTTPHandlerTestSuite) TestUserKeyLifecycle() {
	token := s.adminToken()
	admin, err := s.repo.GetUserByEmail(context.Background(), testAdminEmail)
	s.Require().NoError(err)

	w := s.do(http.MethodPost, "/api/user-keys", gin.H{"user_id": admin.ID, "type": 3}, token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var first entity.UserKeyResponse
	s.decode(w, &first)
	s.Len(first.Key, 43)
	s.Equal(entity.UserKeyStateActive, first.State)
	s.Nil(first.ExpireTime)

	w = s.do(http.MethodPost, "/api/user-keys", gin.H{"user_id": admin.ID, "type": 3}, token)
	s.Require().Equal(http.StatusCreated, w.Code)
	var second entity.UserKeyResponse
	s.decode(w, &second)
	s.Equal(first.ID, second.ID)
	s.NotEqual(first.Key, second.Key)

	w = s.do(http.MethodGet, "/api/user-keys/active?key="+second.Key, nil, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var found entity.UserKeyResponse
	s.decode(w, &found)
	s.Equal(second.ID, found.ID)
	s.Empty(found.Key)

	w = s.do(http.MethodGet, "/api/user-keys/active?key="+first.Key, nil, token)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(ErrCodeKeyNotFound, s.errorCode(w))

	w = s.do(http.MethodGet, fmt.Sprintf("/api/user-keys/active?user_id=%d&type=3", admin.ID), nil, token)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/user-keys/active?user_id=%d&type=1", admin.ID), nil, token)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/user-keys/%d/consume", second.ID), nil, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var consumed entity.UserKeyResponse
	s.decode(w, &consumed)
	s.Equal(entity.UserKeyStateConsumed, consumed.State)
	s.NotNil(consumed.ConsumeTime)

	w = s.do(http.MethodGet, "/api/user-keys/active?key="+second.Key, nil, token)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/user-keys/%d", second.ID), nil, token)
	s.Require().Equal(http.StatusOK, w.Code)
	var loaded entity.UserKeyResponse
	s.decode(w, &loaded)
	s.Equal(entity.UserKeyStateConsumed, loaded.State)
}

func (s *HTTPHandlerTestSuite) TestUserKeyExpire() {
	token := s.adminToken()
	admin, err := s.repo.GetUserByEmail(context.Background(), testAdminEmail)
	s.Require().NoError(err)

	w := s.do(http.MethodPost, "/api/user-keys", gin.H{"user_id": admin.ID, "type": 2, "expire_time": "2099-01-01T00:00:00Z"}, token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var key entity.UserKeyResponse
	s.decode(w, &key)
	s.Require().NotNil(key.ExpireTime)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/user-keys/%d/expire", key.ID), nil, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var expired entity.UserKeyResponse
	s.decode(w, &expired)
	s.Require().NotNil(expired.ExpireTime)
	s.True(expired.ExpireTime.Before(*key.ExpireTime))
}

func (s *HTTPHandlerTestSuite) TestUserKeyBadRequests() {
	token := s.adminToken()

	w := s.do(http.MethodPost, "/api/user-keys", gin.H{"user_id": 999, "type": 3}, token)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(ErrCodeUserNotFound, s.errorCode(w))

	w = s.do(http.MethodPost, "/api/user-keys", gin.H{"user_id": 1, "type": 7}, token)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/user-keys/active", nil, token)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(ErrCodeMissingField, s.errorCode(w))

	w = s.do(http.MethodGet, "/api/user-keys/active?user_id=1&type=9", nil, token)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/user-keys/12345", nil, token)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(ErrCodeKeyNotFound, s.errorCode(w))
}

func (s *HTTPHandlerTestSuite) TestRegisterConfirmAndLogin() {
	w := s.do(http.MethodPost, "/api/auth/register", gin.H{"email": "New@Example.com", "password": "member-password", "display_name": "New"}, "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var registered entity.RegisterResponse
	s.decode(w, &registered)
	s.True(registered.ConfirmationRequired)
	s.Equal("new@example.com", registered.User.Email)

	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "new@example.com", "password": "member-password"}, "")
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(ErrCodeEmailUnconfirmed, s.errorCode(w))

	w = s.do(http.MethodPost, "/api/auth/register", gin.H{"email": "new@example.com", "password": "member-password"}, "")
	s.Equal(http.StatusConflict, w.Code)
	s.Equal(ErrCodeEmailExists, s.errorCode(w))

	w = s.do(http.MethodPost, "/api/auth/confirm", gin.H{}, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(ErrCodeMissingField, s.errorCode(w))

	w = s.do(http.MethodPost, "/api/auth/confirm", gin.H{"key": "bogus"}, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(ErrCodeKeyNotActive, s.errorCode(w))

	w = s.do(http.MethodPost, "/api/auth/confirm", gin.H{"key": s.lastKey().Key}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	s.login("new@example.com", "member-password")
}

func (s *HTTPHandlerTestSuite) TestPasswordResetOverHTTP() {
	s.registerActive("forgetful@example.com")

	w := s.do(http.MethodPost, "/api/auth/forgot", gin.H{"email": "nobody@example.com"}, "")
	s.Equal(http.StatusAccepted, w.Code)

	w = s.do(http.MethodPost, "/api/auth/forgot", gin.H{"email": "forgetful@example.com"}, "")
	s.Require().Equal(http.StatusAccepted, w.Code)
	key := s.lastKey()
	s.Equal(entity.UserKeyTypePasswordReset, key.Type)

	w = s.do(http.MethodPost, "/api/auth/reset", gin.H{"key": key.Key, "password": "brand-new-password"}, "")
	s.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())

	s.login("forgetful@example.com", "brand-new-password")

	w = s.do(http.MethodPost, "/api/auth/reset", gin.H{"key": key.Key, "password": "another-password"}, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(ErrCodeKeyNotActive, s.errorCode(w))
}

func (s *HTTPHandlerTestSuite) TestEmailChangeOverHTTP() {
	s.registerActive("mover@example.com")
	token := s.login("mover@example.com", "member-password")

	w := s.do(http.MethodPost, "/api/auth/email-change", gin.H{"email": "mover@example.com"}, token)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/email-change", gin.H{"email": testAdminEmail}, token)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/email-change", gin.H{"email": "moved@example.com"}, token)
	s.Require().Equal(http.StatusAccepted, w.Code, w.Body.String())
	key := s.lastKey()
	s.Equal(entity.UserKeyTypeEmailChange, key.Type)

	w = s.do(http.MethodPost, "/api/auth/confirm", gin.H{"key": key.Key}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var user entity.UserSummary
	s.decode(w, &user)
	s.Equal("moved@example.com", user.Email)

	s.login("moved@example.com", "member-password")
}

func TestHTTPHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HTTPHandlerTestSuite))
}
