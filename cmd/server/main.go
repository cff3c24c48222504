package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lukehsiao/find-the-password/api"
	"github.com/lukehsiao/find-the-password/internal/platform/backup"
	"github.com/lukehsiao/find-the-password/internal/platform/config"
	"github.com/lukehsiao/find-the-password/internal/platform/database"
	"github.com/lukehsiao/find-the-password/internal/platform/health"
	"github.com/lukehsiao/find-the-password/internal/platform/shutdown"
	"github.com/lukehsiao/find-the-password/internal/platform/startup"
	"github.com/lukehsiao/find-the-password/pkg/lifecycle"
	"github.com/lukehsiao/find-the-password/pkg/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}

	token.ConfigureRegistrationKey(cfg.Challenge.RegistrationKey)
	if token.RegistrationRequired() {
		fmt.Println("注册门禁已启用，创建用户需要注册票据。")
	}

	database.InitDB(cfg.Database.Sqlite)
	database.InitRedis(cfg.Database.Redis)

	// 1. 阻塞式获取初始Run ID
	health.InitializeRunID()

	// 2. 执行应用首次启动初始化流程（恢复注册表、账本，预热镜像）
	svc, ledger, mirror, err := startup.InitializeApplication(cfg)
	if err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 3. 创建生命周期管理器并启动后台服务
	gracefulMgr := lifecycle.NewManager()
	forcefulMgr := lifecycle.NewManager()

	mirrorGraceful, err := gracefulMgr.NewServiceHandle("redis-mirror")
	if err != nil {
		panic(err)
	}
	mirrorForceful, err := forcefulMgr.NewServiceHandle("redis-mirror")
	if err != nil {
		panic(err)
	}
	go mirror.Start(mirrorGraceful, mirrorForceful)

	snapshotHandle, err := gracefulMgr.NewServiceHandle("snapshot-scheduler")
	if err != nil {
		panic(err)
	}
	go backup.StartSnapshotScheduler(snapshotHandle, svc, ledger, cfg.Challenge.SnapshotInterval)

	healthHandle, err := gracefulMgr.NewServiceHandle("redis-health-check")
	if err != nil {
		panic(err)
	}
	go health.StartRedisHealthCheck(healthHandle)

	// 4. 创建Gin引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r, svc, ledger)

	// 5. 启动HTTP服务器并等待停机信号
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}
	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic("Failed to start server: " + err.Error())
		}
	}()

	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr, svc, ledger)
	coordinator.ListenForSignalsAndShutdown(server)
}
