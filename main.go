package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/between2058/Phidias/config"
	"github.com/between2058/Phidias/handler"
	"github.com/between2058/Phidias/middleware"
	"github.com/between2058/Phidias/service"
	"github.com/between2058/Phidias/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
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

	utils.Logger.Info("starting Phidias studio server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.Bool("dry_run", cfg.DryRun))

	// 确保制品目录存在
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		utils.Logger.Fatal("failed to create data directory", zap.Error(err))
	}

	// 初始化Redis（生成结果缓存，连不上则停用缓存继续运行）
	redisService := service.NewRedisService(&cfg.Redis)
	ctx := context.Background()
	if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
	}
	defer redisService.Close()

	// 初始化后端客户端与服务
	segmentBackend := service.NewHTTPSegmentBackend(&cfg.Backends)
	seg3dBackend := service.NewHTTPSegment3DBackend(&cfg.Backends)
	generateBackend := service.NewHTTPGenerateBackend(&cfg.Backends)
	sam3dBackend := service.NewHTTPSAM3DBackend(&cfg.Backends)

	sessionStore := service.NewSessionStore()
	segmentService := service.NewSegmentService(cfg, sessionStore, segmentBackend, seg3dBackend)
	generateService := service.NewGenerateService(cfg, generateBackend, sam3dBackend, redisService)
	assistService := service.NewAssistService(&cfg.OpenAI)

	// 初始化Handler
	segmentHandler := handler.NewSegmentHandler(cfg, segmentService)
	generateHandler := handler.NewGenerateHandler(generateService)
	assistHandler := handler.NewAssistHandler(assistService)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		modelLoaded := cfg.DryRun || segmentService.Healthy(c.Request.Context())
		c.JSON(200, gin.H{
			"status":          "ok",
			"model_loaded":    modelLoaded,
			"active_sessions": segmentService.ActiveSessions(),
			"version":         Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// 生成路由
	r.POST("/generate/text3d", generateHandler.Text3D)
	r.POST("/generate/image3d", generateHandler.Image3D)
	r.POST("/generate/sam3d", generateHandler.SAM3D)
	r.POST("/generate/sam3d/batch", generateHandler.SAM3DBatch)

	// 分割路由
	seg := r.Group("/segment")
	{
		seg.POST("/2d/set_image", segmentHandler.SetImage)
		seg.POST("/2d/predict", segmentHandler.Predict)
		seg.POST("/2d/predict_and_apply", segmentHandler.PredictAndApply)
		seg.DELETE("/2d/session/:id", segmentHandler.DeleteSession)
		seg.GET("/2d/download/:id/:name", segmentHandler.Download)
		seg.POST("/3d", segmentHandler.Segment3D)
	}

	// AI 辅助路由
	assist := r.Group("/assist")
	{
		assist.POST("/rename", assistHandler.Rename)
		assist.POST("/classify", assistHandler.Classify)
		assist.POST("/analyze", assistHandler.Analyze)
		assist.POST("/group", assistHandler.Group)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// 退出时清理全部会话与制品目录
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	utils.Logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Warn("server shutdown error", zap.Error(err))
	}

	segmentService.Wipe()
	if err := os.RemoveAll(cfg.Storage.DataDir); err != nil {
		utils.Logger.Warn("failed to remove data directory", zap.Error(err))
	}

	utils.Logger.Info("server shut down gracefully")
}
