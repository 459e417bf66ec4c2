package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr   string
	Port         string
	DatabasePath string
	GinMode      string
	CatalogDir   string
	NtfyBaseURL  string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "glamtrainer.db"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	catalogDir := strings.TrimSpace(os.Getenv("CATALOG_DIR"))
	if catalogDir == "" {
		catalogDir = "catalog"
	}

	ntfyBaseURL := strings.TrimSpace(os.Getenv("NTFY_BASE_URL"))
	if ntfyBaseURL == "" {
		ntfyBaseURL = "https://ntfy.sh"
	}

	return AppConfig{
		ListenAddr:   listenAddr,
		Port:         port,
		DatabasePath: databasePath,
		GinMode:      ginMode,
		CatalogDir:   catalogDir,
		NtfyBaseURL:  ntfyBaseURL,
	}
}
