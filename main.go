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

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TIANLI0/StrokeCut/config"
	"github.com/TIANLI0/StrokeCut/handler"
	"github.com/TIANLI0/StrokeCut/middleware"
	"github.com/TIANLI0/StrokeCut/service"
	"github.com/TIANLI0/StrokeCut/utils"
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
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting StrokeCut server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.Int("line_width", cfg.GrabCut.LineWidth),
		zap.Int("iterations", cfg.GrabCut.Iterations),
		zap.Bool("debug_masks", cfg.GrabCut.Debug))

	// 抠图输出目录
	fileStore, err := service.NewFileStore(cfg.GrabCut.OutputDir)
	if err != nil {
		utils.Logger.Fatal("failed to create output directory", zap.Error(err))
	}
	stores := []service.ArtifactStore{fileStore}
	loaders := []handler.ArtifactLoader{fileStore}

	// 初始化Redis
	redisService := service.NewRedisService(&cfg.Redis)
	ctx := context.Background()
	var cache *service.RedisService
	if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
		cache = redisService
		stores = append(stores, redisService)
		loaders = append([]handler.ArtifactLoader{redisService}, loaders...)
	}
	defer redisService.Close()

	// 初始化抠图流水线
	pipeline := service.NewPipeline(service.OptionsFromConfig(&cfg.GrabCut), service.NewGrabCutOracle(), stores...)
	if cache != nil {
		pipeline.WithResultStore(cache)
	}

	sessions := service.NewSessionManager(service.AnimatorOptionsFromConfig(&cfg.Animator), clock.New())
	defer sessions.Close()

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "ok",
			"version":  Version,
			"sessions": sessions.Len(),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	handler.Register(r.Group("/api/v1"),
		handler.NewSessionHandler(cfg, sessions, pipeline),
		handler.NewCutoutHandler(cache, loaders...))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
}
