package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glamtrainer/internal/db"
	"github.com/glamtrainer/internal/service"
)

type outcomePayload struct {
	Status    string `json:"status"`
	Feedback  string `json:"feedback"`
	Enjoyment *int   `json:"enjoyment"`
	Note      string `json:"note"`
	Exercise  string `json:"exercise"`
}

func unitPayload(u db.Unit) gin.H {
	payload := gin.H{
		"unit_id":       u.UnitID,
		"type":          u.TypeTag,
		"goal_id":       u.GoalID,
		"goal_name":     u.GoalName,
		"level":         u.Level,
		"planned_label": u.PlannedLabel,
		"status":        u.Status,
	}
	if u.PlannedAt != nil {
		payload["planned_at"] = u.PlannedAt.Format(time.RFC3339)
	}
	if u.DoneAt != nil {
		payload["done_at"] = u.DoneAt.Format(time.RFC3339)
	}
	return payload
}

// Today 返回今天的计划，必要时先生成；按到期与待办拆分。
func (a *API) Today(c *gin.Context) {
	schedule, err := a.schedules.RegenerateIfNeeded(false)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取今日计划失败")
		return
	}

	now := time.Now()
	due := make([]gin.H, 0)
	upcoming := make([]gin.H, 0)
	done := make([]gin.H, 0)
	for _, u := range schedule.Units {
		switch {
		case u.Status != service.StatusPlanned:
			done = append(done, unitPayload(u))
		case u.PlannedAt != nil && !u.PlannedAt.After(now):
			due = append(due, unitPayload(u))
		default:
			upcoming = append(upcoming, unitPayload(u))
		}
	}

	payload := gin.H{
		"day_key":  schedule.DayKey,
		"due":      due,
		"upcoming": upcoming,
		"finished": done,
	}
	if schedule.LastPushAt != nil {
		payload["last_push_at"] = schedule.LastPushAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, payload)
}

// RegenerateSchedule 强制重建今天的计划。
func (a *API) RegenerateSchedule(c *gin.Context) {
	schedule, err := a.schedules.RegenerateIfNeeded(true)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "重建计划失败")
		return
	}

	units := make([]gin.H, 0, len(schedule.Units))
	for _, u := range schedule.Units {
		units = append(units, unitPayload(u))
	}
	c.JSON(http.StatusOK, gin.H{"day_key": schedule.DayKey, "units": units})
}

// CompleteUnit 记录单元的终态结果。
func (a *API) CompleteUnit(c *gin.Context) {
	var payload outcomePayload
	if !bindJSON(c, &payload, "无效的打卡数据") {
		return
	}

	change, updated, err := a.schedules.CompleteUnit(c.Param("id"), service.UnitOutcome{
		Status:       payload.Status,
		Feedback:     payload.Feedback,
		Enjoyment:    payload.Enjoyment,
		Note:         payload.Note,
		ExerciseText: payload.Exercise,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOutcomeStatus):
			respondError(c, http.StatusBadRequest, "状态必须是 done 或 aborted")
		case errors.Is(err, service.ErrUnitAlreadyDone):
			respondError(c, http.StatusConflict, "单元已打卡，当前设置不允许重复打卡")
		default:
			respondError(c, http.StatusInternalServerError, "打卡失败")
		}
		return
	}

	result := gin.H{"updated": updated}
	if change != nil {
		result["level_change"] = change
		if change.Promoted() {
			result["notice"] = "Nächste Stufe freigeschaltet."
		} else {
			result["notice"] = "Eine Stufe zurück (sanft)."
		}
	}
	c.JSON(http.StatusOK, result)
}

// DeleteUnit 从今天的计划移除单元，不产生日志。
func (a *API) DeleteUnit(c *gin.Context) {
	if err := a.schedules.DeleteUnit(c.Param("id")); err != nil {
		respondError(c, http.StatusInternalServerError, "删除单元失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// UnitExercise 为单元在其等级下随机挑选一条训练内容。
func (a *API) UnitExercise(c *gin.Context) {
	schedule, err := a.schedules.TodaySchedule()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取今日计划失败")
		return
	}

	var unit *db.Unit
	if schedule != nil {
		for i := range schedule.Units {
			if schedule.Units[i].UnitID == c.Param("id") {
				unit = &schedule.Units[i]
				break
			}
		}
	}
	if unit == nil {
		respondError(c, http.StatusNotFound, "单元不存在")
		return
	}

	exercise, err := a.exercises.PickForGoal(unit.GoalID, unit.Level)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "挑选训练内容失败")
		return
	}
	if exercise == nil {
		c.JSON(http.StatusOK, gin.H{"exercise": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"exercise": gin.H{
		"goal_id":     exercise.GoalID,
		"level":       exercise.Level,
		"title":       exercise.Title,
		"class":       exercise.Class,
		"exercise_id": exercise.ExerciseID,
	}})
}
