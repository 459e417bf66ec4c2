package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/glamtrainer/internal/db"
	"github.com/glamtrainer/internal/service"
)

func goalPayload(g db.Goal, quota *service.GoalQuota) gin.H {
	payload := gin.H{
		"goal_id":     g.GoalID,
		"name":        g.Name,
		"active":      g.Active,
		"level":       g.Level,
		"max_level":   g.MaxLevel,
		"period":      g.Period,
		"min":         g.MinPerPeriod,
		"max":         g.MaxPerPeriod,
		"mode":        g.Mode,
		"window_from": g.WindowFrom,
		"window_to":   g.WindowTo,
		"fixed_time":  g.FixedTime,
		"weight":      g.Weight,
	}
	if quota != nil {
		payload["quota"] = gin.H{
			"period": quota.Period,
			"min":    quota.Min,
			"max":    quota.Max,
			"done":   quota.Done,
		}
	}
	return payload
}

// ListGoals 返回目标列表及各自的周期配额状态。
func (a *API) ListGoals(c *gin.Context) {
	goals, err := a.goals.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取目标列表失败")
		return
	}

	items := make([]gin.H, 0, len(goals))
	for _, goal := range goals {
		quota, err := a.quotas.ComputeQuota(goal)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "统计配额失败")
			return
		}
		items = append(items, goalPayload(goal, &quota))
	}

	c.JSON(http.StatusOK, gin.H{"goals": items})
}

// ToggleGoal 切换目标启停并强制重建今日计划。
func (a *API) ToggleGoal(c *gin.Context) {
	goal, err := a.goals.ToggleActive(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrGoalNotFound) {
			respondError(c, http.StatusNotFound, "目标不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "切换目标状态失败")
		return
	}

	if _, err := a.schedules.RegenerateIfNeeded(true); err != nil {
		respondError(c, http.StatusInternalServerError, "重建计划失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalPayload(*goal, nil)})
}
