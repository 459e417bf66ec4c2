package service

import (
	"fmt"
	"time"

	"github.com/glamtrainer/internal/db"
	"gorm.io/gorm"
)

// GoalQuota 描述一个目标在当前周期内的配额状态。
type GoalQuota struct {
	Period string
	Min    int
	Max    int
	Done   int
}

// QuotaService 基于打卡日志统计周期内的完成数，纯读取。
type QuotaService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQuotaService 构造 QuotaService。
func NewQuotaService(gdb *gorm.DB) *QuotaService {
	return &QuotaService{db: gdb, now: time.Now}
}

// SetNow 替换时间来源，主要面向测试场景。
func (s *QuotaService) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// DayKey 返回某时刻所在的本地日期键（YYYY-MM-DD）。
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// StartOfWeek 返回某时刻所在周的起点：本地周一 00:00。
func StartOfWeek(t time.Time) time.Time {
	weekday := (int(t.Weekday()) + 6) % 7 // Mon=0
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -weekday)
}

// CountCompleted 统计某目标在当前周期内状态为 done 的日志数。
// DAY 按日志的日期键匹配今天；WEEK 按创建时间落入 [本周一 00:00, 下周一 00:00)。
func (s *QuotaService) CountCompleted(goalID, period string) (int, error) {
	gid := NormalizeGoalID(goalID)
	now := s.now()

	query := s.db.Model(&db.LogEntry{}).
		Where("type_tag = ?", TypeTagGoal).
		Where("goal_id = ?", gid).
		Where("status = ?", StatusDone)

	if period == PeriodWeek {
		start := StartOfWeek(now)
		end := start.AddDate(0, 0, 7)
		query = query.Where("created_at >= ? AND created_at < ?", start, end)
	} else {
		query = query.Where("day_key = ?", DayKey(now))
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count completed units: %w", err)
	}
	return int(count), nil
}

// ComputeQuota 汇总一个目标的周期配额与已完成数。
func (s *QuotaService) ComputeQuota(goal db.Goal) (GoalQuota, error) {
	period := normalizePeriod(goal.Period)
	done, err := s.CountCompleted(goal.GoalID, period)
	if err != nil {
		return GoalQuota{}, err
	}
	return GoalQuota{
		Period: period,
		Min:    goal.MinPerPeriod,
		Max:    goal.MaxPerPeriod,
		Done:   done,
	}, nil
}
