package service

import (
	"fmt"
	"strings"

	"github.com/glamtrainer/internal/db"
	"gorm.io/gorm"
)

// LogFilter 描述日志查询条件。
type LogFilter struct {
	TypeTag string
	GoalID  string
	Limit   int
}

// LogService 提供打卡日志的只读查询，日志本身由打卡流程独占写入。
type LogService struct {
	db *gorm.DB
}

// NewLogService 构造 LogService。
func NewLogService(gdb *gorm.DB) *LogService {
	return &LogService{db: gdb}
}

// List 返回日志集合，按新到旧排列。
func (s *LogService) List(filter LogFilter) ([]db.LogEntry, error) {
	query := s.db.Model(&db.LogEntry{})

	if tag := strings.TrimSpace(filter.TypeTag); tag != "" {
		query = query.Where("type_tag = ?", tag)
	}
	if gid := NormalizeGoalID(filter.GoalID); gid != "" {
		query = query.Where("goal_id = ?", gid)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []db.LogEntry
	if err := query.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return entries, nil
}
