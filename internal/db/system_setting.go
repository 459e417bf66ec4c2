package db

import "gorm.io/gorm"

// SystemSetting 存储可配置的系统级键值对。
type SystemSetting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (SystemSetting) TableName() string {
	return "system_settings"
}

const (
	// SettingKeyDayMode 表示当天的调度强度模式。
	SettingKeyDayMode = "day_mode"
	// SettingKeyMinGapGoalsMin 表示目标推送之间的最小间隔（分钟）。
	SettingKeyMinGapGoalsMin = "min_gap_goals_min"
	// SettingKeyMinGapTasksMin 表示任务推送之间的最小间隔（分钟）。
	SettingKeyMinGapTasksMin = "min_gap_tasks_min"
	// SettingKeyMaxUnitsPerBundle 表示单条推送最多列出的单元数量。
	SettingKeyMaxUnitsPerBundle = "max_units_per_bundle"
	// SettingKeyTickSeconds 表示推送轮询间隔（秒）。
	SettingKeyTickSeconds = "tick_seconds"
	// SettingKeyNtfyGoalsTopic 表示目标提醒使用的 ntfy 主题。
	SettingKeyNtfyGoalsTopic = "ntfy_goals_topic"
	// SettingKeyNtfyTasksTopic 表示任务推送使用的 ntfy 主题。
	SettingKeyNtfyTasksTopic = "ntfy_tasks_topic"
	// SettingKeyNtfyToken 表示 ntfy 的访问令牌（可选）。
	SettingKeyNtfyToken = "ntfy_token"
	// SettingKeyAllowRecomplete 控制是否允许对终态单元重复打卡。
	SettingKeyAllowRecomplete = "allow_recomplete"
)
