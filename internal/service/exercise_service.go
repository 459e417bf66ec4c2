package service

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/glamtrainer/internal/db"
	"gorm.io/gorm"
)

// ExerciseService 按目标和等级挑选训练内容。
type ExerciseService struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewExerciseService 构造 ExerciseService。
func NewExerciseService(gdb *gorm.DB) *ExerciseService {
	return &ExerciseService{db: gdb, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// SetRand 替换随机源，主要面向测试场景。
func (s *ExerciseService) SetRand(rng *rand.Rand) {
	if rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		return
	}
	s.rng = rng
}

// PickForGoal 在目标的当前等级下随机挑一条训练内容，没有匹配时返回 nil。
func (s *ExerciseService) PickForGoal(goalID string, level int) (*db.Exercise, error) {
	if level < 1 {
		level = 1
	}

	var candidates []db.Exercise
	if err := s.db.
		Where("goal_id = ?", NormalizeGoalID(goalID)).
		Where("level = ?", level).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("load exercises: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	pick := candidates[s.rng.Intn(len(candidates))]
	return &pick, nil
}

// TaskService 提供附加任务的浏览与随机挑选，不参与调度与进阶。
type TaskService struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewTaskService 构造 TaskService。
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{db: gdb, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// SetRand 替换随机源，主要面向测试场景。
func (s *TaskService) SetRand(rng *rand.Rand) {
	if rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		return
	}
	s.rng = rng
}

// Categories 返回去重后的任务分类，按名称排序。
func (s *TaskService) Categories() ([]string, error) {
	var categories []string
	if err := s.db.Model(&db.TaskOption{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, fmt.Errorf("list task categories: %w", err)
	}
	return categories, nil
}

// ListByCategory 返回某分类下的全部任务。
func (s *TaskService) ListByCategory(category string) ([]db.TaskOption, error) {
	var tasks []db.TaskOption
	if err := s.db.
		Where("category = ?", category).
		Order("title ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// RandomTask 在某分类下随机挑一条任务，分类为空或无任务时返回 nil。
func (s *TaskService) RandomTask(category string) (*db.TaskOption, error) {
	tasks, err := s.ListByCategory(category)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	pick := tasks[s.rng.Intn(len(tasks))]
	return &pick, nil
}
