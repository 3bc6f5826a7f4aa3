package api

import (
	"context"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/config"
	"gatekeeper/internal/model"
	"gatekeeper/internal/service"
	"time"

	"github.com/gin-gonic/gin"
)

// requestTimeout bounds the storage work of one request.
const requestTimeout = 5 * time.Second

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg         config.Config
	users       service.UserFinder
	authManager *auth.Manager

	// 服务层
	roles    *service.RoleService
	keys     *service.UserKeyService
	accounts *service.AccountService
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, notifier service.KeyNotifier) (*HTTPHandler, error) {
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry())
	if err != nil {
		return nil, err
	}

	var dropdownCache *service.DropdownCache
	if cfg.RoleDropdownCache {
		dropdownCache = service.NewDropdownCache()
	}

	keys := service.NewUserKeyService(repo, repo)
	accounts := service.NewAccountService(repo, keys, authManager, notifier, service.AccountOptions{
		RegistrationEnabled: cfg.RegistrationEnabled,
		EmailConfirmation:   cfg.EmailConfirmation,
		Lifetimes: service.KeyLifetimes{
			EmailActivate: cfg.ActivationKeyTTL,
			EmailChange:   cfg.EmailChangeKeyTTL,
			PasswordReset: cfg.PasswordResetKeyTTL,
		},
	})

	return &HTTPHandler{
		cfg:         cfg,
		users:       repo,
		authManager: authManager,
		roles:       service.NewRoleService(repo, repo, dropdownCache),
		keys:        keys,
		accounts:    accounts,
	}, nil
}

// RegisterRoutes 注册全部 API 路由
func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/confirm", h.ConfirmEmail)
	authGroup.POST("/forgot", h.ForgotPassword)
	authGroup.POST("/reset", h.ResetPassword)
	authGroup.GET("/me", h.AuthMiddleware(), h.Me)
	authGroup.POST("/email-change", h.AuthMiddleware(), h.RequestEmailChange)

	admin := apiGroup.Group("")
	admin.Use(h.AuthMiddleware(), h.RequirePermission(adminPermission))

	roles := admin.Group("/roles")
	roles.GET("", h.ListRoles)
	roles.POST("", h.CreateRole)
	roles.GET("/dropdown", h.RoleDropdown)
	roles.POST("/dropdown/refresh", h.RefreshRoleDropdown)
	roles.GET("/:id", h.GetRole)
	roles.PATCH("/:id", h.UpdateRole)
	roles.GET("/:id/users", h.ListRoleUsers)
	roles.GET("/:id/permissions/:permission", h.CheckRolePermission)

	keys := admin.Group("/user-keys")
	keys.POST("", h.GenerateUserKey)
	keys.GET("/active", h.FindActiveUserKey)
	keys.GET("/:id", h.GetUserKey)
	keys.POST("/:id/consume", h.ConsumeUserKey)
	keys.POST("/:id/expire", h.ExpireUserKey)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}
