package main

import (
	"context"
	"fmt"
	"gatekeeper/internal/api"
	"gatekeeper/internal/config"
	"gatekeeper/internal/model"
	"gatekeeper/internal/service"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(level)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logger.WithError(err).Error("failed to initialise repository")
		return
	}

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := model.SeedDefaultRoles(seedCtx, repo); err != nil {
		logger.WithError(err).Warn("failed to seed default roles")
	}
	if err := model.SeedDefaultAdmin(seedCtx, repo, cfg); err != nil {
		logger.WithError(err).Warn("failed to seed admin account")
	}
	cancel()

	httpHandler, err := api.NewHTTPHandler(cfg, repo, service.LogNotifier{Logger: logger})
	if err != nil {
		logger.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	httpHandler.RegisterRoutes(r)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("服务器启动失败")
	}
}
