package db

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Goal 定义了训练目标模型，由目录导入时规范化写入。
// GoalID 为规范化后的唯一键（大写、去空白），Level/MaxLevel 满足 1 <= Level <= MaxLevel。
// MinPerPeriod/MaxPerPeriod 描述每个周期内的配额，MaxPerPeriod=0 表示不设上限。
// Mode 区分 ritualisiert（固定时间）与 flexibel（时间窗口）。
// Raw 保留导入时的原始目录行，便于回写等级时不丢失未知列。
type Goal struct {
	gorm.Model
	GoalID       string `gorm:"size:100;uniqueIndex;not null"`
	Name         string
	Active       bool
	Level        int
	MaxLevel     int
	MinPerPeriod int
	MaxPerPeriod int
	Period       string `gorm:"size:10"`
	Mode         string `gorm:"size:20"`
	WindowFrom   string `gorm:"size:5"`
	WindowTo     string `gorm:"size:5"`
	FixedTime    string `gorm:"size:5"`
	Weight       int
	Raw          datatypes.JSONMap
}

// Exercise 表示某个目标在特定等级下可选的训练内容。
type Exercise struct {
	gorm.Model
	GoalID     string `gorm:"size:100;index"`
	Level      int
	Title      string
	Class      string
	ExerciseID string
}

// TaskOption 表示可随性挑选的附加任务，不参与进度与配额。
type TaskOption struct {
	gorm.Model
	Category string `gorm:"size:100;index"`
	Title    string
	Class    string
}
