package service

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/glamtrainer/internal/db"
	"gorm.io/gorm"
)

const (
	consecutiveAbortWindow = 2
	recentAbortWindow      = 7
	recentAbortLimit       = 3
	promotionMinSuccesses  = 5
	promotionMinScore      = 6
)

// LevelChange 描述一次等级变动，供界面展示提示。
type LevelChange struct {
	GoalID   string `json:"goal_id"`
	GoalName string `json:"goal_name"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

// Promoted 表示这次变动是否为升级。
func (c LevelChange) Promoted() bool {
	return c.To > c.From
}

// ProgressionService 在每次目标打卡后评估等级升降。
type ProgressionService struct {
	db *gorm.DB
}

// NewProgressionService 构造 ProgressionService。
func NewProgressionService(gdb *gorm.DB) *ProgressionService {
	return &ProgressionService{db: gdb}
}

// NextLevel 根据日志历史计算新的等级，纯函数。
// history 按新到旧排列。降级优先于升级：
//   - 降级：最近 2 条全部中止，或最近 7 条内中止 >= 3
//   - 升级：当前等级上的完成数 >= 5 且得分 >= 6（easy=2 / ok=1 / hard=0）
//
// 结果收敛到 [1, maxLevel]。
func NextLevel(history []db.LogEntry, currentLevel, maxLevel int) int {
	if maxLevel < 1 {
		maxLevel = 1
	}
	current := clampInt(currentLevel, 1, maxLevel)

	consecutiveAbort := len(history) >= consecutiveAbortWindow
	for i := 0; i < consecutiveAbortWindow && i < len(history); i++ {
		if history[i].Status != StatusAborted {
			consecutiveAbort = false
			break
		}
	}

	recentAborts := 0
	for i := 0; i < recentAbortWindow && i < len(history); i++ {
		if history[i].Status == StatusAborted {
			recentAborts++
		}
	}

	if consecutiveAbort || recentAborts >= recentAbortLimit {
		return clampInt(current-1, 1, maxLevel)
	}

	successes := 0
	score := 0
	for _, entry := range history {
		if entry.Level != current || entry.Status != StatusDone {
			continue
		}
		successes++
		switch entry.Feedback {
		case FeedbackEasy:
			score += 2
		case FeedbackOK:
			score++
		}
	}

	if successes >= promotionMinSuccesses && score >= promotionMinScore {
		return clampInt(current+1, 1, maxLevel)
	}

	return current
}

// ApplyProgression 读取目标的日志历史并在必要时回写新的等级。
// 目标不存在时静默返回（对过期引用幂等）；等级未变时返回 nil。
func (s *ProgressionService) ApplyProgression(goalID string) (*LevelChange, error) {
	gid := NormalizeGoalID(goalID)

	var goal db.Goal
	if err := s.db.Where("goal_id = ?", gid).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load goal: %w", err)
	}

	var history []db.LogEntry
	if err := s.db.
		Where("type_tag = ?", TypeTagGoal).
		Where("goal_id = ?", gid).
		Order("created_at DESC, id DESC").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("load goal history: %w", err)
	}

	current := clampInt(goal.Level, 1, goal.MaxLevel)
	next := NextLevel(history, current, goal.MaxLevel)
	if next == current {
		return nil, nil
	}

	goal.Level = next
	if goal.Raw != nil {
		// 原始目录行同步更新，重导出时等级不回退
		goal.Raw["aktuelle_stufe"] = strconv.Itoa(next)
	}
	if err := s.db.Save(&goal).Error; err != nil {
		return nil, fmt.Errorf("persist goal level: %w", err)
	}

	return &LevelChange{GoalID: gid, GoalName: goal.Name, From: current, To: next}, nil
}
