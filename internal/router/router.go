package router

import (
	"github.com/gin-gonic/gin"
	"github.com/glamtrainer/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API) *gin.Engine {
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/today", api.Today)
		apiGroup.POST("/schedule/regenerate", api.RegenerateSchedule)

		apiGroup.POST("/units/:id/complete", api.CompleteUnit)
		apiGroup.DELETE("/units/:id", api.DeleteUnit)
		apiGroup.GET("/units/:id/exercise", api.UnitExercise)

		apiGroup.GET("/goals", api.ListGoals)
		apiGroup.POST("/goals/:id/toggle", api.ToggleGoal)

		apiGroup.GET("/log", api.ListLog)

		apiGroup.GET("/settings", api.GetSettings)
		apiGroup.PUT("/settings", api.UpdateSettings)
		apiGroup.POST("/settings/daymode", api.SetDayMode)

		apiGroup.POST("/catalog/reload", api.ReloadCatalog)

		apiGroup.GET("/tasks/categories", api.ListTaskCategories)
		apiGroup.GET("/tasks", api.ListTasks)
		apiGroup.POST("/tasks/push", api.PushTask)
		apiGroup.POST("/push/test", api.TestPush)
	}

	return r
}
