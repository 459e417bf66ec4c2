package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/glamtrainer/internal/service"
)

type settingsPayload struct {
	DayMode           string `json:"day_mode"`
	MinGapGoalsMin    int    `json:"min_gap_goals_min"`
	MinGapTasksMin    int    `json:"min_gap_tasks_min"`
	MaxUnitsPerBundle int    `json:"max_units_per_bundle"`
	TickSeconds       int    `json:"tick_seconds"`
	NtfyGoalsTopic    string `json:"ntfy_goals_topic"`
	NtfyTasksTopic    string `json:"ntfy_tasks_topic"`
	NtfyToken         string `json:"ntfy_token"`
	AllowRecomplete   bool   `json:"allow_recomplete"`
}

func settingsToPayload(s service.SchedulerSettings) settingsPayload {
	return settingsPayload{
		DayMode:           s.DayMode,
		MinGapGoalsMin:    s.MinGapGoalsMin,
		MinGapTasksMin:    s.MinGapTasksMin,
		MaxUnitsPerBundle: s.MaxUnitsPerBundle,
		TickSeconds:       s.TickSeconds,
		NtfyGoalsTopic:    s.NtfyGoalsTopic,
		NtfyTasksTopic:    s.NtfyTasksTopic,
		NtfyToken:         s.NtfyToken,
		AllowRecomplete:   s.AllowRecomplete,
	}
}

// GetSettings 返回当前调度设置。
func (a *API) GetSettings(c *gin.Context) {
	settings, err := a.settings.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取设置失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settingsToPayload(settings)})
}

// UpdateSettings 保存调度设置。
func (a *API) UpdateSettings(c *gin.Context) {
	var payload settingsPayload
	if !bindJSON(c, &payload, "无效的设置数据") {
		return
	}

	saved, err := a.settings.UpdateSettings(service.SchedulerSettingsInput{
		DayMode:           payload.DayMode,
		MinGapGoalsMin:    payload.MinGapGoalsMin,
		MinGapTasksMin:    payload.MinGapTasksMin,
		MaxUnitsPerBundle: payload.MaxUnitsPerBundle,
		TickSeconds:       payload.TickSeconds,
		NtfyGoalsTopic:    payload.NtfyGoalsTopic,
		NtfyTasksTopic:    payload.NtfyTasksTopic,
		NtfyToken:         payload.NtfyToken,
		AllowRecomplete:   payload.AllowRecomplete,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settingsToPayload(saved)})
}

type dayModePayload struct {
	DayMode string `json:"day_mode"`
}

// SetDayMode 快速切换日模式并强制重建今日计划。
func (a *API) SetDayMode(c *gin.Context) {
	var payload dayModePayload
	if !bindJSON(c, &payload, "无效的模式数据") {
		return
	}

	if service.NormalizeDayMode(payload.DayMode) == "" {
		respondError(c, http.StatusBadRequest, "不支持的日模式")
		return
	}

	settings, err := a.settings.SetDayMode(payload.DayMode)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "切换日模式失败")
		return
	}

	if _, err := a.schedules.RegenerateIfNeeded(true); err != nil {
		respondError(c, http.StatusInternalServerError, "重建计划失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settingsToPayload(settings)})
}

// ReloadCatalog 重新读取 CSV 目录并强制重建今日计划。
func (a *API) ReloadCatalog(c *gin.Context) {
	summary, err := a.catalog.LoadFromDir(a.catalogDir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "重新加载目录失败")
		return
	}

	if _, err := a.schedules.RegenerateIfNeeded(true); err != nil {
		respondError(c, http.StatusInternalServerError, "重建计划失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"goals":     summary.Goals,
		"exercises": summary.Exercises,
		"tasks":     summary.Tasks,
	})
}
