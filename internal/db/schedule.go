package db

import (
	"time"

	"gorm.io/gorm"
)

// Schedule 表示某一天的训练计划，DayKey 为本地日期（YYYY-MM-DD）。
// 每个日期最多存在一条记录；重新生成会整体替换 Units 列表。
// LastPushAt 供推送限流使用，同日强制重建时保留，跨日不保留。
type Schedule struct {
	gorm.Model
	DayKey     string `gorm:"size:10;uniqueIndex;not null"`
	LastPushAt *time.Time
	Units      []Unit `gorm:"constraint:OnDelete:CASCADE"`
}

// Unit 表示计划中的单个训练单元。
// Level 是创建时刻的目标等级快照；PlannedAt 在排时完成前为空。
// Status 从 planned 流转到终态 done 或 aborted。
type Unit struct {
	gorm.Model
	ScheduleID   uint   `gorm:"index"`
	UnitID       string `gorm:"size:64;uniqueIndex;not null"`
	TypeTag      string `gorm:"size:20"`
	GoalID       string `gorm:"size:100;index"`
	GoalName     string
	Level        int
	PlannedAt    *time.Time
	PlannedLabel string `gorm:"size:5"`
	Status       string `gorm:"size:20"`
	DoneAt       *time.Time
}
