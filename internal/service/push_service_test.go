package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glamtrainer/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPushTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.Goal{}, &db.Schedule{}, &db.Unit{}, &db.LogEntry{}, &db.SystemSetting{}); err != nil {
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

type pushFixture struct {
	push      *PushService
	settings  *SettingsService
	schedules *ScheduleService
	now       time.Time
}

func newPushFixture(t *testing.T, now time.Time, baseURL string) *pushFixture {
	t.Helper()

	settings := NewSettingsService(db.DB)
	quotas := NewQuotaService(db.DB)
	quotas.SetNow(func() time.Time { return now })
	progress := NewProgressionService(db.DB)
	schedules := NewScheduleService(db.DB, quotas, settings, progress)
	schedules.SetNow(func() time.Time { return now })

	push := NewPushService(db.DB, settings, schedules, baseURL)
	push.SetNow(func() time.Time { return now })

	return &pushFixture{push: push, settings: settings, schedules: schedules, now: now}
}

func (f *pushFixture) configure(t *testing.T, mutate func(*SchedulerSettingsInput)) {
	t.Helper()
	input := baseSettingsInput()
	input.NtfyGoalsTopic = "glam-goals"
	if mutate != nil {
		mutate(&input)
	}
	if _, err := f.settings.UpdateSettings(input); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}
}

// seedSchedule 直接写入今天的计划与到期单元，绕过随机生成。
func seedSchedule(t *testing.T, now time.Time, lastPushAt *time.Time, units []db.Unit) db.Schedule {
	t.Helper()
	schedule := db.Schedule{DayKey: DayKey(now), LastPushAt: lastPushAt, Units: units}
	if err := db.DB.Create(&schedule).Error; err != nil {
		t.Fatalf("failed to seed schedule: %v", err)
	}
	return schedule
}

func dueUnit(id, name string, level int, plannedAt time.Time) db.Unit {
	at := plannedAt
	return db.Unit{UnitID: id, TypeTag: TypeTagGoal, GoalID: strings.ToUpper(name), GoalName: name, Level: level, Status: StatusPlanned, PlannedAt: &at}
}

func TestMaybeDispatchSendsBundledMessage(t *testing.T) {
	cleanup := setupPushTestDB(t)
	defer cleanup()

	var gotPath, gotTitle, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	f := newPushFixture(t, now, server.URL)
	f.configure(t, func(input *SchedulerSettingsInput) {
		input.MaxUnitsPerBundle = 2
		input.NtfyToken = "secret-token"
	})

	units := []db.Unit{
		dueUnit("u1", "Laufen", 2, now.Add(-30*time.Minute)),
		dueUnit("u2", "Dehnen", 1, now.Add(-20*time.Minute)),
		dueUnit("u3", "Atmen", 3, now.Add(-10*time.Minute)),
		dueUnit("u4", "Lesen", 1, now.Add(-5*time.Minute)),
		dueUnit("u5", "Gehen", 1, now.Add(-1*time.Minute)),
	}
	schedule := seedSchedule(t, now, nil, units)

	sent, err := f.push.MaybeDispatch(context.Background())
	if err != nil {
		t.Fatalf("MaybeDispatch returned error: %v", err)
	}
	if !sent {
		t.Fatal("expected a push to be sent")
	}

	if gotPath != "/glam-goals" {
		t.Fatalf("expected topic path /glam-goals, got %s", gotPath)
	}
	if gotTitle != "Training fällig" {
		t.Fatalf("unexpected title: %s", gotTitle)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("unexpected authorization header: %s", gotAuth)
	}

	if !strings.Contains(gotBody, "Trainingseinheiten fällig: 5") {
		t.Fatalf("expected due count in body, got %q", gotBody)
	}
	if strings.Count(gotBody, "• ") != 2 {
		t.Fatalf("expected exactly 2 bundled lines, got %q", gotBody)
	}
	if !strings.Contains(gotBody, "… +3 weitere") {
		t.Fatalf("expected overflow line, got %q", gotBody)
	}
	if !strings.Contains(gotBody, "Öffne die App.") {
		t.Fatalf("expected call to action, got %q", gotBody)
	}

	var reloaded db.Schedule
	if err := db.DB.First(&reloaded, schedule.ID).Error; err != nil {
		t.Fatalf("failed to reload schedule: %v", err)
	}
	if reloaded.LastPushAt == nil {
		t.Fatal("expected last push time to be stamped after success")
	}
}

func TestMaybeDispatchRespectsRateLimit(t *testing.T) {
	cleanup := setupPushTestDB(t)
	defer cleanup()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	f := newPushFixture(t, now, server.URL)
	f.configure(t, nil)

	// 默认间隔 90 分钟，10 分钟前刚推送过
	lastPush := now.Add(-10 * time.Minute)
	seedSchedule(t, now, &lastPush, []db.Unit{dueUnit("u1", "Laufen", 2, now.Add(-30*time.Minute))})

	sent, err := f.push.MaybeDispatch(context.Background())
	if err != nil {
		t.Fatalf("MaybeDispatch returned error: %v", err)
	}
	if sent || calls != 0 {
		t.Fatalf("expected rate limit to suppress the push, sent=%v calls=%d", sent, calls)
	}
}

func TestMaybeDispatchSkipsWithoutTopic(t *testing.T) {
	cleanup := setupPushTestDB(t)
	defer cleanup()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	f := newPushFixture(t, now, server.URL)
	f.configure(t, func(input *SchedulerSettingsInput) {
		input.NtfyGoalsTopic = ""
	})

	seedSchedule(t, now, nil, []db.Unit{dueUnit("u1", "Laufen", 2, now.Add(-30*time.Minute))})

	sent, err := f.push.MaybeDispatch(context.Background())
	if err != nil {
		t.Fatalf("MaybeDispatch returned error: %v", err)
	}
	if sent || calls != 0 {
		t.Fatalf("expected empty topic to be a no-op, sent=%v calls=%d", sent, calls)
	}
}

func TestMaybeDispatchSkipsWithoutDueUnits(t *testing.T) {
	cleanup := setupPushTestDB(t)
	defer cleanup()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	f := newPushFixture(t, now, server.URL)
	f.configure(t, nil)

	// 一个未来的单元和一个已终态的单元，都不算到期
	future := dueUnit("u1", "Laufen", 2, now.Add(2*time.Hour))
	finished := dueUnit("u2", "Dehnen", 1, now.Add(-30*time.Minute))
	finished.Status = StatusDone
	seedSchedule(t, now, nil, []db.Unit{future, finished})

	sent, err := f.push.MaybeDispatch(context.Background())
	if err != nil {
		t.Fatalf("MaybeDispatch returned error: %v", err)
	}
	if sent || calls != 0 {
		t.Fatalf("expected no push without due units, sent=%v calls=%d", sent, calls)
	}
}

func TestMaybeDispatchFailureKeepsRateLimitOpen(t *testing.T) {
	cleanup := setupPushTestDB(t)
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	defer server.Close()

	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	f := newPushFixture(t, now, server.URL)
	f.configure(t, nil)

	schedule := seedSchedule(t, now, nil, []db.Unit{dueUnit("u1", "Laufen", 2, now.Add(-30*time.Minute))})

	sent, err := f.push.MaybeDispatch(context.Background())
	if err == nil {
		t.Fatal("expected an error from the failing endpoint")
	}
	if sent {
		t.Fatal("expected sent=false on failure")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status code in error, got %v", err)
	}

	var reloaded db.Schedule
	if err := db.DB.First(&reloaded, schedule.ID).Error; err != nil {
		t.Fatalf("failed to reload schedule: %v", err)
	}
	if reloaded.LastPushAt != nil {
		t.Fatalf("expected last push time to stay empty after failure, got %v", reloaded.LastPushAt)
	}
}

func TestSendNtfyEmptyTopicIsNoop(t *testing.T) {
	cleanup := setupPushTestDB(t)
	defer cleanup()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	f := newPushFixture(t, now, server.URL)

	if err := f.push.SendNtfy(context.Background(), "  ", "", "msg", "title"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no request, got %d", calls)
	}
}

func TestComposeDueMessage(t *testing.T) {
	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	due := []db.Unit{
		dueUnit("u1", "Laufen", 2, now),
		dueUnit("u2", "Dehnen", 1, now),
	}

	message := ComposeDueMessage(due, 5)
	want := "Trainingseinheiten fällig: 2\n\n• Laufen – Stufe 2\n• Dehnen – Stufe 1\n\nÖffne die App."
	if message != want {
		t.Fatalf("unexpected message:\n%q\nwant:\n%q", message, want)
	}

	truncated := ComposeDueMessage(due, 1)
	if !strings.Contains(truncated, "… +1 weitere") {
		t.Fatalf("expected overflow line, got %q", truncated)
	}
	if strings.Contains(truncated, "Dehnen") {
		t.Fatalf("expected second goal to be truncated, got %q", truncated)
	}
}

func TestTestPushUsesGoalsTopic(t *testing.T) {
	cleanup := setupPushTestDB(t)
	defer cleanup()

	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.Local)
	f := newPushFixture(t, now, server.URL)
	f.configure(t, nil)

	if err := f.push.TestPush(context.Background()); err != nil {
		t.Fatalf("TestPush returned error: %v", err)
	}
	if gotPath != "/glam-goals" {
		t.Fatalf("expected goals topic, got %s", gotPath)
	}
	if gotBody != "Test vom Glam Trainer (Ziele)" {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}
