package service

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/glamtrainer/internal/db"
	"gorm.io/gorm"
)

// ErrGoalNotFound 在指定目标不存在时返回
var ErrGoalNotFound = errors.New("goal not found")

// GoalService 负责目标定义的查询与启停
type GoalService struct {
	db *gorm.DB
}

// NewGoalService 构造 GoalService。
func NewGoalService(gdb *gorm.DB) *GoalService {
	return &GoalService{db: gdb}
}

// List 返回全部目标，按标识排序。
func (s *GoalService) List() ([]db.Goal, error) {
	var goals []db.Goal
	if err := s.db.Order("goal_id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// Get 根据规范化标识获取目标。
func (s *GoalService) Get(goalID string) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.Where("goal_id = ?", NormalizeGoalID(goalID)).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

// ToggleActive 切换目标的启用状态并同步原始目录行。
func (s *GoalService) ToggleActive(goalID string) (*db.Goal, error) {
	goal, err := s.Get(goalID)
	if err != nil {
		return nil, err
	}

	goal.Active = !goal.Active
	if goal.Raw != nil {
		goal.Raw["aktiv"] = strconv.FormatBool(goal.Active)
	}
	if err := s.db.Save(goal).Error; err != nil {
		return nil, fmt.Errorf("toggle goal: %w", err)
	}
	return goal, nil
}
