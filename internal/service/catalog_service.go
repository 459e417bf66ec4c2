package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/glamtrainer/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// PeriodDay 表示按天计算配额。
	PeriodDay = "DAY"
	// PeriodWeek 表示按周（周一起始）计算配额。
	PeriodWeek = "WEEK"

	// ModeRitualized 表示固定时间的目标。
	ModeRitualized = "ritualisiert"
	// ModeFlexible 表示在时间窗口内随机安排的目标。
	ModeFlexible = "flexibel"
)

const (
	defaultMaxLevel   = 5
	defaultWindowFrom = "14:00"
	defaultWindowTo   = "20:00"
	defaultFixedTime  = "09:00"
)

// 目录表头的别名表。CSV 来源多样（德语/英语、Excel 导出），
// 按序匹配第一个非空字段。
var (
	goalIDAliases    = []string{"ziel_id", "id", "ziel", "zielid", "goal_id"}
	goalNameAliases  = []string{"ziel_name", "name", "titel", "zielname"}
	activeAliases    = []string{"aktiv", "active"}
	levelAliases     = []string{"aktuelle_stufe", "stufe", "level"}
	maxLevelAliases  = []string{"max_stufe", "maxlevel", "stufen_max", "stufe_max", "max_level"}
	minAliases       = []string{"min", "min_pro_zeitraum", "min_zeitraum"}
	maxAliases       = []string{"max", "max_pro_zeitraum", "max_zeitraum"}
	periodAliases    = []string{"zeitraum", "periode", "period"}
	modeAliases      = []string{"modus", "mode"}
	fromAliases      = []string{"zeit_von", "von", "from"}
	toAliases        = []string{"zeit_bis", "bis", "to"}
	fixedAliases     = []string{"feste_zeit", "uhrzeit", "fix"}
	weightAliases    = []string{"gewichtung", "weight"}
	exTitleAliases   = []string{"titel", "uebung", "title", "name"}
	exClassAliases   = []string{"klasse", "class"}
	exIDAliases      = []string{"uebung_id", "exercise_id", "id_uebung"}
	taskCatAliases   = []string{"rubrik", "category"}
	taskTitleAliases = []string{"titel", "title"}
)

// CatalogSummary 汇总一次目录导入的行数。
type CatalogSummary struct {
	Goals     int
	Exercises int
	Tasks     int
}

// CatalogService 负责读取 CSV 目录并规范化写入数据库。
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService 构造 CatalogService。
func NewCatalogService(gdb *gorm.DB) *CatalogService {
	return &CatalogService{db: gdb}
}

// ParseCatalogCSV 解析目录文本：容忍 BOM、CRLF，分隔符 ; 或 ,，
// 不支持带引号的分隔符（目录为私人维护的简单表格）。
func ParseCatalogCSV(text string) []map[string]string {
	cleaned := strings.TrimPrefix(text, "\ufeff")
	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	sep := ","
	if strings.Contains(lines[0], ";") {
		sep = ";"
	}

	header := strings.Split(lines[0], sep)
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		parts := strings.Split(line, sep)
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(parts) {
				row[key] = strings.TrimSpace(parts[i])
			} else {
				row[key] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func fieldByAlias(row map[string]string, aliases []string, fallback string) string {
	for _, alias := range aliases {
		for key, value := range row {
			if strings.EqualFold(strings.TrimSpace(key), alias) && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	return fallback
}

func normalizeCatalogBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "ja", "1", "y", "yes":
		return true
	}
	return false
}

// NormalizeGoalID 统一目标标识：去空白并转大写。
func NormalizeGoalID(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// atoiOr 解析整数，解析失败或为 0 时返回默认值（沿用目录中 0 视为未填写的约定）。
func atoiOr(v string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || parsed == 0 {
		return fallback
	}
	return parsed
}

func normalizePeriod(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "WOCHE", PeriodWeek:
		return PeriodWeek
	}
	return PeriodDay
}

func normalizeMode(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case ModeRitualized, "ritualized", "fixed":
		return ModeRitualized
	}
	return ModeFlexible
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeGoalRow 把一行原始目录数据规范化成 Goal。
// 缺失或畸形的字段回退到文档化默认值，等级收敛到 [1, MaxLevel]。
func NormalizeGoalRow(raw map[string]string) db.Goal {
	goalID := NormalizeGoalID(fieldByAlias(raw, goalIDAliases, ""))
	name := fieldByAlias(raw, goalNameAliases, "")
	if name == "" {
		name = goalID
	}

	maxLevel := atoiOr(fieldByAlias(raw, maxLevelAliases, ""), defaultMaxLevel)
	if maxLevel < 1 {
		maxLevel = 1
	}
	level := clampInt(atoiOr(fieldByAlias(raw, levelAliases, ""), 1), 1, maxLevel)

	minCount := atoiOr(fieldByAlias(raw, minAliases, ""), 0)
	if minCount < 0 {
		minCount = 0
	}
	maxCount := atoiOr(fieldByAlias(raw, maxAliases, ""), 0)
	if maxCount < 0 {
		maxCount = 0
	}

	rawCopy := make(datatypes.JSONMap, len(raw))
	for key, value := range raw {
		rawCopy[key] = value
	}

	return db.Goal{
		GoalID:       goalID,
		Name:         name,
		Active:       normalizeCatalogBool(fieldByAlias(raw, activeAliases, "false")),
		Level:        level,
		MaxLevel:     maxLevel,
		MinPerPeriod: minCount,
		MaxPerPeriod: maxCount,
		Period:       normalizePeriod(fieldByAlias(raw, periodAliases, PeriodDay)),
		Mode:         normalizeMode(fieldByAlias(raw, modeAliases, ModeFlexible)),
		WindowFrom:   fieldByAlias(raw, fromAliases, defaultWindowFrom),
		WindowTo:     fieldByAlias(raw, toAliases, defaultWindowTo),
		FixedTime:    fieldByAlias(raw, fixedAliases, defaultFixedTime),
		Weight:       atoiOr(fieldByAlias(raw, weightAliases, ""), 1),
		Raw:          rawCopy,
	}
}

// ImportGoals 整体替换目标定义表，跳过缺少标识的行。
func (s *CatalogService) ImportGoals(rows []map[string]string) (int, error) {
	goals := make([]db.Goal, 0, len(rows))
	for _, raw := range rows {
		goal := NormalizeGoalRow(raw)
		if goal.GoalID == "" {
			continue
		}
		goals = append(goals, goal)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&db.Goal{}).Error; err != nil {
			return err
		}
		if len(goals) == 0 {
			return nil
		}
		return tx.Create(&goals).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import goals: %w", err)
	}

	return len(goals), nil
}

// ImportExercises 整体替换训练内容表。
func (s *CatalogService) ImportExercises(rows []map[string]string) (int, error) {
	exercises := make([]db.Exercise, 0, len(rows))
	for _, raw := range rows {
		exercise := db.Exercise{
			GoalID:     NormalizeGoalID(fieldByAlias(raw, goalIDAliases, "")),
			Level:      atoiOr(fieldByAlias(raw, levelAliases, ""), 1),
			Title:      fieldByAlias(raw, exTitleAliases, ""),
			Class:      fieldByAlias(raw, exClassAliases, ""),
			ExerciseID: fieldByAlias(raw, exIDAliases, ""),
		}
		if exercise.GoalID == "" || exercise.Title == "" {
			continue
		}
		exercises = append(exercises, exercise)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&db.Exercise{}).Error; err != nil {
			return err
		}
		if len(exercises) == 0 {
			return nil
		}
		return tx.Create(&exercises).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import exercises: %w", err)
	}

	return len(exercises), nil
}

// ImportTasks 整体替换附加任务表。
func (s *CatalogService) ImportTasks(rows []map[string]string) (int, error) {
	tasks := make([]db.TaskOption, 0, len(rows))
	for _, raw := range rows {
		task := db.TaskOption{
			Category: fieldByAlias(raw, taskCatAliases, ""),
			Title:    fieldByAlias(raw, taskTitleAliases, ""),
			Class:    fieldByAlias(raw, exClassAliases, ""),
		}
		if task.Category == "" || task.Title == "" {
			continue
		}
		tasks = append(tasks, task)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&db.TaskOption{}).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		return tx.Create(&tasks).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import tasks: %w", err)
	}

	return len(tasks), nil
}

// LoadFromDir 从目录读取三个 CSV 文件并导入，单个文件缺失不算失败。
// 文件名沿用既有目录：goals.csv、goal_uebungen.csv、tasks.csv。
func (s *CatalogService) LoadFromDir(dir string) (CatalogSummary, error) {
	var summary CatalogSummary

	readRows := func(name string) []map[string]string {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil
		}
		return ParseCatalogCSV(string(content))
	}

	if rows := readRows("goals.csv"); rows != nil {
		count, err := s.ImportGoals(rows)
		if err != nil {
			return summary, err
		}
		summary.Goals = count
	}

	if rows := readRows("goal_uebungen.csv"); rows != nil {
		count, err := s.ImportExercises(rows)
		if err != nil {
			return summary, err
		}
		summary.Exercises = count
	}

	if rows := readRows("tasks.csv"); rows != nil {
		count, err := s.ImportTasks(rows)
		if err != nil {
			return summary, err
		}
		summary.Tasks = count
	}

	return summary, nil
}
