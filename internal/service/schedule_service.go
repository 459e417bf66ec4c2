package service

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/glamtrainer/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// TypeTagGoal 标记来自训练目标的单元。
	TypeTagGoal = "goal"
	// TypeTagTask 标记来自附加任务的单元。
	TypeTagTask = "task"

	// StatusPlanned 表示单元已排入计划，等待执行。
	StatusPlanned = "planned"
	// StatusDone 表示单元已完成（终态）。
	StatusDone = "done"
	// StatusAborted 表示单元被中止（终态）。
	StatusAborted = "aborted"

	// FeedbackEasy / FeedbackOK / FeedbackHard 为完成后的难度反馈。
	FeedbackEasy = "easy"
	FeedbackOK   = "ok"
	FeedbackHard = "hard"
)

const (
	// 排时的最小软间隔下限（分钟）与冲突重试预算。
	minSoftGapMinutes = 10
	placementRetries  = 12
)

// ErrUnitAlreadyDone 在禁止重复打卡且单元已处于终态时返回。
var ErrUnitAlreadyDone = errors.New("unit already completed")

// ErrInvalidOutcomeStatus 在打卡状态不是 done/aborted 时返回。
var ErrInvalidOutcomeStatus = errors.New("invalid outcome status")

// UnitOutcome 描述一次打卡的结果。
type UnitOutcome struct {
	Status       string
	Feedback     string
	Enjoyment    *int
	Note         string
	ExerciseText string
}

// ScheduleService 负责当天计划的生成、排时与打卡。
type ScheduleService struct {
	db       *gorm.DB
	quotas   *QuotaService
	settings *SettingsService
	progress *ProgressionService
	rng      *rand.Rand
	now      func() time.Time
}

// NewScheduleService 构造 ScheduleService。
func NewScheduleService(gdb *gorm.DB, quotas *QuotaService, settings *SettingsService, progress *ProgressionService) *ScheduleService {
	return &ScheduleService{
		db:       gdb,
		quotas:   quotas,
		settings: settings,
		progress: progress,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// SetNow 替换时间来源，主要面向测试场景。
func (s *ScheduleService) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// SetRand 替换随机源，主要面向测试场景。
func (s *ScheduleService) SetRand(rng *rand.Rand) {
	if rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		return
	}
	s.rng = rng
}

// randIntInclusive 返回 [min, max] 内的均匀随机整数，参数顺序不敏感。
func (s *ScheduleService) randIntInclusive(min, max int) int {
	if min > max {
		min, max = max, min
	}
	return min + s.rng.Intn(max-min+1)
}

// parseClockToday 将 HH:MM 解析为今天的本地时刻，失败返回 nil。
func parseClockToday(hhmm string, now time.Time) *time.Time {
	parsed, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return nil
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	return &t
}

// pickRandomTimeBetween 在 [from, to) 内均匀取一个今天的时刻。
// 窗口无效（结束不晚于开始）或不可解析时返回 nil。
func (s *ScheduleService) pickRandomTimeBetween(fromHHMM, toHHMM string, now time.Time) *time.Time {
	from := parseClockToday(fromHHMM, now)
	to := parseClockToday(toHHMM, now)
	if from == nil || to == nil || !to.After(*from) {
		return nil
	}
	span := to.Sub(*from)
	t := from.Add(time.Duration(s.rng.Int63n(int64(span))))
	return &t
}

func ensureMinGap(placed []time.Time, candidate time.Time, gap time.Duration) bool {
	for _, p := range placed {
		diff := p.Sub(candidate)
		if diff < 0 {
			diff = -diff
		}
		if diff < gap {
			return false
		}
	}
	return true
}

// GenerateUnitsForToday 根据配额与日模式生成今天的训练单元并完成排时。
// 返回的列表按计划时间升序；suspended 模式直接返回空。
func (s *ScheduleService) GenerateUnitsForToday() ([]db.Unit, error) {
	settings, err := s.settings.GetSettings()
	if err != nil {
		return nil, err
	}
	if settings.DayMode == DayModeSuspended {
		return nil, nil
	}

	var goals []db.Goal
	if err := s.db.Where("active = ?", true).Where("goal_id <> ''").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("load active goals: %w", err)
	}

	now := s.now()
	units := make([]db.Unit, 0, len(goals))

	for _, goal := range goals {
		quota, err := s.quotas.ComputeQuota(goal)
		if err != nil {
			return nil, err
		}

		// 上限已达成则本周期不再生成
		if quota.Max > 0 && quota.Done >= quota.Max {
			continue
		}

		want := 0
		if quota.Period == PeriodDay {
			minAdj := quota.Min
			if settings.DayMode == DayModeGentle && minAdj > 1 {
				minAdj = 1
			}

			baseMax := quota.Max
			if baseMax == 0 {
				baseMax = quota.Min
			}
			if baseMax == 0 {
				baseMax = 1
			}
			maxAdj := baseMax
			if settings.DayMode == DayModeGentle && maxAdj > 1 {
				maxAdj = 1
			}

			minUse := minAdj
			if minUse < 0 {
				minUse = 0
			}
			maxUse := maxAdj
			if maxUse < minUse {
				maxUse = minUse
			}

			if minUse != 0 || maxUse != 0 {
				want = s.randIntInclusive(minUse, maxUse)
			}
		} else {
			// WEEK：先确定性补足下限，再按模式概率追加
			if quota.Done < quota.Min {
				want = 1
			} else if quota.Max > 0 && quota.Done < quota.Max {
				p := 0.4
				switch settings.DayMode {
				case DayModeGentle:
					p = 0.25
				case DayModeChallenging:
					p = 0.55
				}
				if s.rng.Float64() < p {
					want = 1
				}
			}
		}

		for i := 0; i < want; i++ {
			units = append(units, db.Unit{
				UnitID:   uuid.NewString(),
				TypeTag:  TypeTagGoal,
				GoalID:   goal.GoalID,
				GoalName: goal.Name,
				Level:    clampInt(goal.Level, 1, goal.MaxLevel),
				Status:   StatusPlanned,
			})
		}
	}

	s.placeUnits(units, goals, settings, now)

	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].PlannedAt, units[j].PlannedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})

	return units, nil
}

// placeUnits 为每个单元确定计划时间，并保证与已排时间的软间隔。
// 冲突时向后推 8-22 分钟随机量，最多重试 placementRetries 次，
// 预算耗尽后接受当前候选时间（尽力而为，从不失败）。
func (s *ScheduleService) placeUnits(units []db.Unit, goals []db.Goal, settings SchedulerSettings, now time.Time) {
	byID := make(map[string]db.Goal, len(goals))
	for _, g := range goals {
		byID[g.GoalID] = g
	}

	softGap := settings.MinGapGoalsMin / 2
	if softGap < minSoftGapMinutes {
		softGap = minSoftGapMinutes
	}
	gap := time.Duration(softGap) * time.Minute

	var placed []time.Time
	for i := range units {
		goal, ok := byID[units[i].GoalID]
		if !ok {
			continue
		}

		var candidate time.Time
		if goal.Mode == ModeRitualized {
			if t := parseClockToday(goal.FixedTime, now); t != nil {
				candidate = *t
			} else {
				candidate = now
			}
		} else {
			if t := s.pickRandomTimeBetween(goal.WindowFrom, goal.WindowTo, now); t != nil {
				candidate = *t
			} else {
				candidate = now
			}
		}

		tries := 0
		for tries < placementRetries && !ensureMinGap(placed, candidate, gap) {
			candidate = candidate.Add(time.Duration(s.randIntInclusive(8, 22)) * time.Minute)
			tries++
		}

		placed = append(placed, candidate)
		sort.Slice(placed, func(a, b int) bool { return placed[a].Before(placed[b]) })

		at := candidate
		units[i].PlannedAt = &at
		units[i].PlannedLabel = at.Format("15:04")
	}
}

// TodaySchedule 返回今天的计划记录，不存在时返回 nil。
func (s *ScheduleService) TodaySchedule() (*db.Schedule, error) {
	return s.scheduleForDay(DayKey(s.now()))
}

func (s *ScheduleService) scheduleForDay(dayKey string) (*db.Schedule, error) {
	var schedule db.Schedule
	err := s.db.Preload("Units", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("planned_at ASC")
	}).Where("day_key = ?", dayKey).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return &schedule, nil
}

// RegenerateIfNeeded 确保今天的计划存在；force 为真时整体重建单元列表。
// 同日重建保留 LastPushAt（限流状态不因设置变更而重置），跨日自然作废。
func (s *ScheduleService) RegenerateIfNeeded(force bool) (*db.Schedule, error) {
	today := DayKey(s.now())

	existing, err := s.scheduleForDay(today)
	if err != nil {
		return nil, err
	}
	if existing != nil && !force {
		return existing, nil
	}

	units, err := s.GenerateUnitsForToday()
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if existing == nil {
			schedule := db.Schedule{DayKey: today, Units: units}
			return tx.Create(&schedule).Error
		}

		if err := tx.Unscoped().Where("schedule_id = ?", existing.ID).Delete(&db.Unit{}).Error; err != nil {
			return err
		}
		for i := range units {
			units[i].ScheduleID = existing.ID
		}
		if len(units) == 0 {
			return nil
		}
		return tx.Create(&units).Error
	})
	if err != nil {
		return nil, fmt.Errorf("regenerate schedule: %w", err)
	}

	return s.scheduleForDay(today)
}

func normalizeOutcomeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusDone, "erledigt":
		return StatusDone
	case StatusAborted, "abgebrochen":
		return StatusAborted
	}
	return ""
}

// NormalizeFeedback 折算难度反馈取值，未命中返回空串。
func NormalizeFeedback(feedback string) string {
	switch strings.ToLower(strings.TrimSpace(feedback)) {
	case FeedbackEasy, "leicht":
		return FeedbackEasy
	case FeedbackOK, "okay":
		return FeedbackOK
	case FeedbackHard, "schwer":
		return FeedbackHard
	}
	return ""
}

// CompleteUnit 为单元记录终态结果并追加日志；目标单元随后触发进阶评估。
// 单元不在今天的计划里时静默返回（对过期引用幂等），第二个返回值标记是否实际打卡。
func (s *ScheduleService) CompleteUnit(unitID string, outcome UnitOutcome) (*LevelChange, bool, error) {
	status := normalizeOutcomeStatus(outcome.Status)
	if status == "" {
		return nil, false, ErrInvalidOutcomeStatus
	}

	schedule, err := s.TodaySchedule()
	if err != nil {
		return nil, false, err
	}
	if schedule == nil {
		return nil, false, nil
	}

	var unit *db.Unit
	for i := range schedule.Units {
		if schedule.Units[i].UnitID == unitID {
			unit = &schedule.Units[i]
			break
		}
	}
	if unit == nil {
		return nil, false, nil
	}

	settings, err := s.settings.GetSettings()
	if err != nil {
		return nil, false, err
	}
	if unit.Status != StatusPlanned && !settings.AllowRecomplete {
		return nil, false, ErrUnitAlreadyDone
	}

	now := s.now()
	unit.Status = status
	unit.DoneAt = &now
	if err := s.db.Save(unit).Error; err != nil {
		return nil, false, fmt.Errorf("save unit outcome: %w", err)
	}

	var enjoyment *int
	if outcome.Enjoyment != nil {
		rated := clampInt(*outcome.Enjoyment, 1, 5)
		enjoyment = &rated
	}

	entry := db.LogEntry{
		EntryID:      uuid.NewString(),
		TypeTag:      unit.TypeTag,
		DayKey:       schedule.DayKey,
		GoalID:       unit.GoalID,
		GoalName:     unit.GoalName,
		Level:        unit.Level,
		Exercise:     strings.TrimSpace(outcome.ExerciseText),
		Status:       status,
		Feedback:     NormalizeFeedback(outcome.Feedback),
		Enjoyment:    enjoyment,
		Note:         strings.TrimSpace(outcome.Note),
		PlannedLabel: unit.PlannedLabel,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, false, fmt.Errorf("append log entry: %w", err)
	}

	if unit.TypeTag == TypeTagGoal {
		change, err := s.progress.ApplyProgression(unit.GoalID)
		return change, true, err
	}
	return nil, true, nil
}

// DeleteUnit 从今天的计划中移除单元，不写日志、不影响配额与进阶。
// 单元不存在时为无操作，可安全重复调用。
func (s *ScheduleService) DeleteUnit(unitID string) error {
	schedule, err := s.TodaySchedule()
	if err != nil {
		return err
	}
	if schedule == nil {
		return nil
	}

	if err := s.db.Unscoped().
		Where("schedule_id = ? AND unit_id = ?", schedule.ID, unitID).
		Delete(&db.Unit{}).Error; err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	return nil
}
