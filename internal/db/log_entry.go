package db

import "gorm.io/gorm"

// LogEntry 记录一次训练单元的终态结果，写入后不再修改或删除。
// 配额统计与等级进阶都只读取这张表。
// Feedback 取值 easy/ok/hard，Enjoyment 为可选的 1-5 评分。
type LogEntry struct {
	gorm.Model
	EntryID      string `gorm:"size:64;uniqueIndex;not null"`
	TypeTag      string `gorm:"size:20"`
	DayKey       string `gorm:"size:10;index"`
	GoalID       string `gorm:"size:100;index"`
	GoalName     string
	Level        int
	Exercise     string
	Status       string `gorm:"size:20"`
	Feedback     string `gorm:"size:10"`
	Enjoyment    *int
	Note         string
	PlannedLabel string `gorm:"size:5"`
}

// TableName 自定义表名以保持命名一致。
func (LogEntry) TableName() string {
	return "log_entries"
}
