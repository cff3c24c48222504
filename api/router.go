package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukehsiao/find-the-password/internal/leaderboard"
	"github.com/lukehsiao/find-the-password/internal/user"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, svc *user.Service, ledger *leaderboard.Ledger) {
	userHandler := user.NewHandler(svc)
	leaderboardHandler := leaderboard.NewHandler(ledger)

	// 健康检查（进程存活探针，不依赖任何外部服务）
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	api := router.Group("/api")
	{
		// 用户相关的路由组 /api/u
		userRoutes := api.Group("/u")
		{
			userRoutes.POST("/:username", userHandler.CreateUser)
			userRoutes.GET("/:username", userHandler.GetUser)
			userRoutes.DELETE("/:username", userHandler.DeleteUser)
			userRoutes.GET("/:username/passwords.txt", userHandler.GetPasswords)
			userRoutes.GET("/:username/check/:password", userHandler.CheckPassword)
		}

		// 排行榜与状态页
		api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		api.GET("/status", userHandler.GetStatus)
	}
}
