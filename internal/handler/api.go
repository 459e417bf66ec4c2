package handler

import (
	"github.com/glamtrainer/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	goals      *service.GoalService
	quotas     *service.QuotaService
	schedules  *service.ScheduleService
	logs       *service.LogService
	exercises  *service.ExerciseService
	tasks      *service.TaskService
	settings   *service.SettingsService
	catalog    *service.CatalogService
	push       *service.PushService
	catalogDir string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, catalogDir, ntfyBaseURL string) *API {
	settingsService := service.NewSettingsService(gdb)
	quotaService := service.NewQuotaService(gdb)
	progressionService := service.NewProgressionService(gdb)
	scheduleService := service.NewScheduleService(gdb, quotaService, settingsService, progressionService)

	return &API{
		db:         gdb,
		goals:      service.NewGoalService(gdb),
		quotas:     quotaService,
		schedules:  scheduleService,
		logs:       service.NewLogService(gdb),
		exercises:  service.NewExerciseService(gdb),
		tasks:      service.NewTaskService(gdb),
		settings:   settingsService,
		catalog:    service.NewCatalogService(gdb),
		push:       service.NewPushService(gdb, settingsService, scheduleService, ntfyBaseURL),
		catalogDir: catalogDir,
	}
}

// Schedules exposes the schedule service for startup wiring.
func (a *API) Schedules() *service.ScheduleService {
	return a.schedules
}

// Push exposes the push service for startup wiring.
func (a *API) Push() *service.PushService {
	return a.push
}

// Catalog exposes the catalog service for startup wiring.
func (a *API) Catalog() *service.CatalogService {
	return a.catalog
}
