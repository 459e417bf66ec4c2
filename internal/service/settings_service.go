package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glamtrainer/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DayModeSuspended 表示当天完全暂停，不生成任何单元。
	DayModeSuspended = "suspended"
	// DayModeGentle 表示温和模式，配额取下限。
	DayModeGentle = "gentle"
	// DayModeNormal 表示默认强度。
	DayModeNormal = "normal"
	// DayModeChallenging 表示挑战模式，周目标补充概率更高。
	DayModeChallenging = "challenging"
)

var supportedDayModes = []string{DayModeSuspended, DayModeGentle, DayModeNormal, DayModeChallenging}

// 历史数据里可能出现德语模式名，读取时折算到对应的英文值。
var dayModeAliases = map[string]string{
	"aussetzen":      DayModeSuspended,
	"sanft":          DayModeGentle,
	"herausfordernd": DayModeChallenging,
}

const (
	defaultMinGapGoalsMin    = 90
	defaultMinGapTasksMin    = 45
	defaultMaxUnitsPerBundle = 5
	defaultTickSeconds       = 20
)

// SchedulerSettings 描述调度与推送的可配置项。
type SchedulerSettings struct {
	DayMode           string
	MinGapGoalsMin    int
	MinGapTasksMin    int
	MaxUnitsPerBundle int
	TickSeconds       int
	NtfyGoalsTopic    string
	NtfyTasksTopic    string
	NtfyToken         string
	AllowRecomplete   bool
}

// SchedulerSettingsInput 用于更新调度设置。
type SchedulerSettingsInput struct {
	DayMode           string
	MinGapGoalsMin    int
	MinGapTasksMin    int
	MaxUnitsPerBundle int
	TickSeconds       int
	NtfyGoalsTopic    string
	NtfyTasksTopic    string
	NtfyToken         string
	AllowRecomplete   bool
}

// SettingsService 提供调度设置的读取与更新能力。
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService 构造 SettingsService。
func NewSettingsService(gdb *gorm.DB) *SettingsService {
	return &SettingsService{db: gdb}
}

var settingKeys = []string{
	db.SettingKeyDayMode,
	db.SettingKeyMinGapGoalsMin,
	db.SettingKeyMinGapTasksMin,
	db.SettingKeyMaxUnitsPerBundle,
	db.SettingKeyTickSeconds,
	db.SettingKeyNtfyGoalsTopic,
	db.SettingKeyNtfyTasksTopic,
	db.SettingKeyNtfyToken,
	db.SettingKeyAllowRecomplete,
}

// DefaultSettings 返回未配置时使用的默认值。
func DefaultSettings() SchedulerSettings {
	return SchedulerSettings{
		DayMode:           DayModeNormal,
		MinGapGoalsMin:    defaultMinGapGoalsMin,
		MinGapTasksMin:    defaultMinGapTasksMin,
		MaxUnitsPerBundle: defaultMaxUnitsPerBundle,
		TickSeconds:       defaultTickSeconds,
		AllowRecomplete:   true,
	}
}

// GetSettings 读取调度设置，如未设置将返回默认值。
func (s *SettingsService) GetSettings() (SchedulerSettings, error) {
	result := DefaultSettings()

	var records []db.SystemSetting
	if err := s.db.Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load scheduler settings: %w", err)
	}

	for _, record := range records {
		value := strings.TrimSpace(record.Value)
		switch record.Key {
		case db.SettingKeyDayMode:
			if mode := NormalizeDayMode(value); mode != "" {
				result.DayMode = mode
			}
		case db.SettingKeyMinGapGoalsMin:
			if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
				result.MinGapGoalsMin = parsed
			}
		case db.SettingKeyMinGapTasksMin:
			if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
				result.MinGapTasksMin = parsed
			}
		case db.SettingKeyMaxUnitsPerBundle:
			if parsed, err := strconv.Atoi(value); err == nil && parsed >= 1 {
				result.MaxUnitsPerBundle = parsed
			}
		case db.SettingKeyTickSeconds:
			if parsed, err := strconv.Atoi(value); err == nil && parsed >= 1 {
				result.TickSeconds = parsed
			}
		case db.SettingKeyNtfyGoalsTopic:
			result.NtfyGoalsTopic = value
		case db.SettingKeyNtfyTasksTopic:
			result.NtfyTasksTopic = value
		case db.SettingKeyNtfyToken:
			result.NtfyToken = value
		case db.SettingKeyAllowRecomplete:
			result.AllowRecomplete = value != "false"
		}
	}

	return result, nil
}

// UpdateSettings 保存调度设置，非法数值回退默认值。
func (s *SettingsService) UpdateSettings(input SchedulerSettingsInput) (SchedulerSettings, error) {
	mode := NormalizeDayMode(input.DayMode)
	if mode == "" {
		mode = DayModeNormal
	}

	sanitized := SchedulerSettings{
		DayMode:           mode,
		MinGapGoalsMin:    input.MinGapGoalsMin,
		MinGapTasksMin:    input.MinGapTasksMin,
		MaxUnitsPerBundle: input.MaxUnitsPerBundle,
		TickSeconds:       input.TickSeconds,
		NtfyGoalsTopic:    strings.TrimSpace(input.NtfyGoalsTopic),
		NtfyTasksTopic:    strings.TrimSpace(input.NtfyTasksTopic),
		NtfyToken:         strings.TrimSpace(input.NtfyToken),
		AllowRecomplete:   input.AllowRecomplete,
	}

	if sanitized.MinGapGoalsMin < 0 {
		sanitized.MinGapGoalsMin = defaultMinGapGoalsMin
	}
	if sanitized.MinGapTasksMin < 0 {
		sanitized.MinGapTasksMin = defaultMinGapTasksMin
	}
	if sanitized.MaxUnitsPerBundle < 1 {
		sanitized.MaxUnitsPerBundle = defaultMaxUnitsPerBundle
	}
	if sanitized.TickSeconds < 1 {
		sanitized.TickSeconds = defaultTickSeconds
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		values := map[string]string{
			db.SettingKeyDayMode:           sanitized.DayMode,
			db.SettingKeyMinGapGoalsMin:    strconv.Itoa(sanitized.MinGapGoalsMin),
			db.SettingKeyMinGapTasksMin:    strconv.Itoa(sanitized.MinGapTasksMin),
			db.SettingKeyMaxUnitsPerBundle: strconv.Itoa(sanitized.MaxUnitsPerBundle),
			db.SettingKeyTickSeconds:       strconv.Itoa(sanitized.TickSeconds),
			db.SettingKeyNtfyGoalsTopic:    sanitized.NtfyGoalsTopic,
			db.SettingKeyNtfyTasksTopic:    sanitized.NtfyTasksTopic,
			db.SettingKeyNtfyToken:         sanitized.NtfyToken,
			db.SettingKeyAllowRecomplete:   strconv.FormatBool(sanitized.AllowRecomplete),
		}
		for key, value := range values {
			if err := upsertSetting(tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SchedulerSettings{}, fmt.Errorf("update scheduler settings: %w", err)
	}

	return sanitized, nil
}

// SetDayMode 仅更新日模式，供快速切换使用。
func (s *SettingsService) SetDayMode(mode string) (SchedulerSettings, error) {
	normalized := NormalizeDayMode(mode)
	if normalized == "" {
		return SchedulerSettings{}, fmt.Errorf("unsupported day mode: %s", mode)
	}

	if err := upsertSetting(s.db, db.SettingKeyDayMode, normalized); err != nil {
		return SchedulerSettings{}, err
	}

	return s.GetSettings()
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// NormalizeDayMode 将输入折算到受支持的模式值，未命中返回空串。
func NormalizeDayMode(mode string) string {
	trimmed := strings.ToLower(strings.TrimSpace(mode))
	if mapped, ok := dayModeAliases[trimmed]; ok {
		return mapped
	}
	for _, candidate := range supportedDayModes {
		if trimmed == candidate {
			return candidate
		}
	}
	return ""
}
