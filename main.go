package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/handler"
	"github.com/mahdichowdhury714-hub/passportkit/middleware"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/mahdichowdhury714-hub/passportkit/service"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"github.com/mahdichowdhury714-hub/passportkit/vision"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.New()
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			fmt.Println("Set GEMINI_API_KEY (or PASSPORTKIT_GEMINI_API_KEY) or use background.provider=grabcut")
		}
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode, &cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting PassportKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化Redis，连接失败时不使用缓存
	var cache service.ReplacementCache
	if cfg.Redis.Enabled {
		redisService := service.NewRedisService(&cfg.Redis)
		if err := redisService.Ping(ctx); err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			utils.Logger.Info("redis connected successfully")
			cache = redisService
		}
		defer redisService.Close()
	}

	// 主体定位：优先人脸检测，失败时用 smartcrop
	var locator service.SubjectLocator = service.NewSmartcropLocator()
	detector := vision.NewPortraitDetector(&cfg.Detect, locator)
	if cfg.Detect.Enabled {
		locator = detector
	}

	// 背景替换服务
	var replacer service.BackgroundReplacer
	switch cfg.Background.Provider {
	case config.ProviderGemini:
		gemini, err := service.NewGeminiReplacer(ctx, &cfg.Gemini)
		if err != nil {
			utils.Fatal("failed to create gemini client", zap.Error(err))
		}
		replacer = gemini
	case config.ProviderGrabCut:
		replacer = vision.NewGrabCutReplacer(&cfg.GrabCut, detector)
	}
	utils.Logger.Info("background replacement ready", zap.String("provider", cfg.Background.Provider))

	defaultColor, err := model.ParseBackgroundColor(cfg.Photo.DefaultBackground)
	if err != nil {
		utils.Fatal("invalid default background color", zap.Error(err))
	}

	composer := service.NewComposer(&cfg.Photo)
	store := service.NewSessionStore(&service.Editor{
		Composer:     composer,
		Replacer:     service.NewCachedReplacer(replacer, cache),
		Locator:      locator,
		AllowedTypes: cfg.Upload.AllowedTypes,
		DefaultColor: defaultColor,
	}, cfg.Session.TTL)
	go store.Run(ctx, cfg.Session.CleanupInterval)

	// 初始化Handler
	sessionHandler := handler.NewSessionHandler(cfg, store, composer)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"version":  Version,
			"sessions": store.Len(),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	sessionHandler.Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	// 启动服务器
	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
	utils.Logger.Info("server stopped")
}
