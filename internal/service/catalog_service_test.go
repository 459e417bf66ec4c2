package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glamtrainer/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCatalogTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.Goal{}, &db.Exercise{}, &db.TaskOption{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestParseCatalogCSVHandlesBOMAndSeparators(t *testing.T) {
	// Excel 导出常见形态：BOM 前缀、分号分隔、CRLF 行尾
	text := "\ufeffziel_id;ziel_name;aktiv\r\nLAUFEN;Laufen;ja\r\n\r\nDEHNEN;Dehnen;nein\r\n"
	rows := ParseCatalogCSV(text)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["ziel_id"] != "LAUFEN" || rows[0]["ziel_name"] != "Laufen" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1]["aktiv"] != "nein" {
		t.Fatalf("unexpected second row: %v", rows[1])
	}
}

func TestParseCatalogCSVCommaSeparated(t *testing.T) {
	rows := ParseCatalogCSV("id,name\nLAUFEN,Laufen\n")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["name"] != "Laufen" {
		t.Fatalf("unexpected row: %v", rows[0])
	}
}

func TestParseCatalogCSVEmpty(t *testing.T) {
	if rows := ParseCatalogCSV(""); rows != nil {
		t.Fatalf("expected nil for empty input, got %v", rows)
	}
	if rows := ParseCatalogCSV("ziel_id;ziel_name\n"); len(rows) != 0 {
		t.Fatalf("expected no rows for header-only input, got %v", rows)
	}
}

func TestNormalizeGoalRowDefaults(t *testing.T) {
	goal := NormalizeGoalRow(map[string]string{"ziel_id": " laufen "})

	if goal.GoalID != "LAUFEN" {
		t.Fatalf("expected normalized goal id LAUFEN, got %s", goal.GoalID)
	}
	if goal.Name != "LAUFEN" {
		t.Fatalf("expected name to fall back to goal id, got %s", goal.Name)
	}
	if goal.Active {
		t.Fatal("expected inactive by default")
	}
	if goal.Level != 1 || goal.MaxLevel != 5 {
		t.Fatalf("expected level 1 of 5, got %d of %d", goal.Level, goal.MaxLevel)
	}
	if goal.Period != PeriodDay || goal.Mode != ModeFlexible {
		t.Fatalf("expected DAY/flexibel defaults, got %s/%s", goal.Period, goal.Mode)
	}
	if goal.WindowFrom != "14:00" || goal.WindowTo != "20:00" || goal.FixedTime != "09:00" {
		t.Fatalf("unexpected time defaults: %s %s %s", goal.WindowFrom, goal.WindowTo, goal.FixedTime)
	}
	if goal.Weight != 1 {
		t.Fatalf("expected default weight 1, got %d", goal.Weight)
	}
}

func TestNormalizeGoalRowAliasesAndClamping(t *testing.T) {
	goal := NormalizeGoalRow(map[string]string{
		"ID":             "dehnen",
		"Titel":          "Dehnen",
		"Active":         "TRUE",
		"Stufe":          "9",
		"max_stufe":      "4",
		"Min":            "2",
		"Max":            "3",
		"Periode":        "woche",
		"Modus":          "ritualized",
		"Von":            "07:00",
		"Bis":            "09:00",
		"Uhrzeit":        "07:30",
		"Gewichtung":     "2",
		"unbekannt_feld": "bleibt",
	})

	if goal.GoalID != "DEHNEN" || goal.Name != "Dehnen" {
		t.Fatalf("unexpected identity: %s / %s", goal.GoalID, goal.Name)
	}
	if !goal.Active {
		t.Fatal("expected active goal")
	}
	if goal.Level != 4 {
		t.Fatalf("expected level clamped to max 4, got %d", goal.Level)
	}
	if goal.MinPerPeriod != 2 || goal.MaxPerPeriod != 3 {
		t.Fatalf("unexpected quota bounds: %d/%d", goal.MinPerPeriod, goal.MaxPerPeriod)
	}
	if goal.Period != PeriodWeek {
		t.Fatalf("expected WOCHE alias to map to WEEK, got %s", goal.Period)
	}
	if goal.Mode != ModeRitualized {
		t.Fatalf("expected ritualized alias to map to ritualisiert, got %s", goal.Mode)
	}
	if goal.FixedTime != "07:30" || goal.Weight != 2 {
		t.Fatalf("unexpected fixed time or weight: %s / %d", goal.FixedTime, goal.Weight)
	}
	if goal.Raw["unbekannt_feld"] != "bleibt" {
		t.Fatal("expected unknown columns to survive in raw row")
	}
}

func TestNormalizeGoalRowZeroMeansUnset(t *testing.T) {
	// 目录约定 0 视为未填写，等级与权重回退默认值
	goal := NormalizeGoalRow(map[string]string{
		"ziel_id":    "LAUFEN",
		"stufe":      "0",
		"gewichtung": "0",
	})
	if goal.Level != 1 {
		t.Fatalf("expected level fallback 1, got %d", goal.Level)
	}
	if goal.Weight != 1 {
		t.Fatalf("expected weight fallback 1, got %d", goal.Weight)
	}
}

func TestNormalizeCatalogBool(t *testing.T) {
	cases := map[string]bool{
		"true": true, "JA": true, "1": true, "y": true, "yes": true,
		"false": false, "nein": false, "0": false, "": false,
	}
	for input, want := range cases {
		if got := normalizeCatalogBool(input); got != want {
			t.Fatalf("normalizeCatalogBool(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestImportGoalsReplacesTable(t *testing.T) {
	cleanup := setupCatalogTestDB(t)
	defer cleanup()

	catalog := NewCatalogService(db.DB)

	count, err := catalog.ImportGoals([]map[string]string{
		{"ziel_id": "LAUFEN", "ziel_name": "Laufen", "aktiv": "ja"},
		{"ziel_id": "DEHNEN", "ziel_name": "Dehnen", "aktiv": "ja"},
		{"ziel_id": "", "ziel_name": "kaputt"},
	})
	if err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 imported goals, got %d", count)
	}

	count, err = catalog.ImportGoals([]map[string]string{
		{"ziel_id": "SCHWIMMEN", "ziel_name": "Schwimmen", "aktiv": "ja"},
	})
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 imported goal, got %d", count)
	}

	var goals []db.Goal
	if err := db.DB.Find(&goals).Error; err != nil {
		t.Fatalf("failed to load goals: %v", err)
	}
	if len(goals) != 1 || goals[0].GoalID != "SCHWIMMEN" {
		t.Fatalf("expected table to be replaced, got %+v", goals)
	}
}

func TestImportExercisesSkipsIncompleteRows(t *testing.T) {
	cleanup := setupCatalogTestDB(t)
	defer cleanup()

	catalog := NewCatalogService(db.DB)

	count, err := catalog.ImportExercises([]map[string]string{
		{"ziel_id": "laufen", "stufe": "2", "titel": "Intervalle", "klasse": "Ausdauer"},
		{"ziel_id": "laufen", "titel": ""},
		{"ziel_id": "", "titel": "verwaist"},
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 imported exercise, got %d", count)
	}

	var exercise db.Exercise
	if err := db.DB.First(&exercise).Error; err != nil {
		t.Fatalf("failed to load exercise: %v", err)
	}
	if exercise.GoalID != "LAUFEN" || exercise.Level != 2 || exercise.Title != "Intervalle" {
		t.Fatalf("unexpected exercise: %+v", exercise)
	}
}

func TestLoadFromDirToleratesMissingFiles(t *testing.T) {
	cleanup := setupCatalogTestDB(t)
	defer cleanup()

	dir := t.TempDir()
	goalsCSV := "ziel_id;ziel_name;aktiv;min;max\nLAUFEN;Laufen;ja;1;2\n"
	if err := os.WriteFile(filepath.Join(dir, "goals.csv"), []byte(goalsCSV), 0644); err != nil {
		t.Fatalf("failed to write goals.csv: %v", err)
	}
	tasksCSV := "rubrik;titel\nHaushalt;Küche aufräumen\n"
	if err := os.WriteFile(filepath.Join(dir, "tasks.csv"), []byte(tasksCSV), 0644); err != nil {
		t.Fatalf("failed to write tasks.csv: %v", err)
	}

	catalog := NewCatalogService(db.DB)
	summary, err := catalog.LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir returned error: %v", err)
	}
	if summary.Goals != 1 || summary.Tasks != 1 || summary.Exercises != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var goal db.Goal
	if err := db.DB.First(&goal).Error; err != nil {
		t.Fatalf("failed to load imported goal: %v", err)
	}
	if goal.GoalID != "LAUFEN" || goal.MinPerPeriod != 1 || goal.MaxPerPeriod != 2 || !goal.Active {
		t.Fatalf("unexpected imported goal: %+v", goal)
	}
}
