package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/glamtrainer/internal/config"
	"github.com/glamtrainer/internal/db"
	"github.com/glamtrainer/internal/handler"
	"github.com/glamtrainer/internal/router"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	api := handler.NewAPI(db.DB, cfg.CatalogDir, cfg.NtfyBaseURL)

	// 启动时尽力导入目录并生成今日计划，失败不阻塞服务
	if summary, err := api.Catalog().LoadFromDir(cfg.CatalogDir); err != nil {
		log.Printf("catalog load failed: %v", err)
	} else {
		log.Printf("catalog loaded: %d goals, %d exercises, %d tasks",
			summary.Goals, summary.Exercises, summary.Tasks)
	}
	if _, err := api.Schedules().RegenerateIfNeeded(true); err != nil {
		log.Printf("initial schedule generation failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.Push().StartPolling(ctx)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
