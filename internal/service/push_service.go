package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/glamtrainer/internal/db"
	"gorm.io/gorm"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PushService 周期性检查到期单元并通过 ntfy 发送打包提醒。
type PushService struct {
	db         *gorm.DB
	settings   *SettingsService
	schedules  *ScheduleService
	httpClient httpDoer
	baseURL    string
	now        func() time.Time
}

// NewPushService 构造 PushService。baseURL 为空时使用 ntfy.sh。
func NewPushService(gdb *gorm.DB, settings *SettingsService, schedules *ScheduleService, baseURL string) *PushService {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://ntfy.sh"
	}
	return &PushService{
		db:         gdb,
		settings:   settings,
		schedules:  schedules,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    base,
		now:        time.Now,
	}
}

// SetHTTPClient 替换用于访问 ntfy 的 HTTP 客户端，主要面向测试场景。
func (s *PushService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.httpClient = &http.Client{Timeout: 10 * time.Second}
		return
	}
	s.httpClient = client
}

// SetBaseURL 覆盖 ntfy 的基础地址，便于测试或自建实例。
func (s *PushService) SetBaseURL(base string) {
	s.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// SetNow 替换时间来源，主要面向测试场景。
func (s *PushService) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// SendNtfy 向指定主题发送一条纯文本通知。
// 主题为空表示推送未启用，按无操作处理而非报错。
func (s *PushService) SendNtfy(ctx context.Context, topic, token, message, title string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}

	endpoint := s.baseURL + "/" + url.PathEscape(topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}

	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", title)
	req.Header.Set("Priority", "default")
	req.Header.Set("Tags", "bell")
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 140))
		detail := strings.TrimSpace(string(body))
		if detail != "" {
			return fmt.Errorf("push failed (%d): %s", resp.StatusCode, detail)
		}
		return fmt.Errorf("push failed (%d)", resp.StatusCode)
	}
	return nil
}

func canSendPush(last *time.Time, now time.Time, minGapMinutes int) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= time.Duration(minGapMinutes)*time.Minute
}

// ComposeDueMessage 生成打包提醒正文：到期总数、逐条目标与等级、
// 超出打包上限的数量、以及行动提示。
func ComposeDueMessage(due []db.Unit, maxPerBundle int) string {
	show := due
	if maxPerBundle > 0 && len(show) > maxPerBundle {
		show = show[:maxPerBundle]
	}
	more := len(due) - len(show)

	lines := []string{fmt.Sprintf("Trainingseinheiten fällig: %d", len(due)), ""}
	for _, u := range show {
		lines = append(lines, fmt.Sprintf("• %s – Stufe %d", u.GoalName, u.Level))
	}
	if more > 0 {
		lines = append(lines, fmt.Sprintf("… +%d weitere", more))
	}
	lines = append(lines, "", "Öffne die App.")
	return strings.Join(lines, "\n")
}

// MaybeDispatch 检查今天的到期单元并在限流窗口允许时发送一条打包推送。
// 返回是否实际发送。到期单元不会被标记为已提醒：
// 窗口重新打开后同一批单元会再次进入打包，提醒是尽力而为而非恰好一次。
func (s *PushService) MaybeDispatch(ctx context.Context) (bool, error) {
	schedule, err := s.schedules.TodaySchedule()
	if err != nil {
		return false, err
	}
	if schedule == nil {
		return false, nil
	}

	settings, err := s.settings.GetSettings()
	if err != nil {
		return false, err
	}
	if settings.NtfyGoalsTopic == "" {
		return false, nil
	}

	now := s.now()
	var due []db.Unit
	for _, u := range schedule.Units {
		if u.Status == StatusPlanned && u.PlannedAt != nil && !u.PlannedAt.After(now) {
			due = append(due, u)
		}
	}
	if len(due) == 0 {
		return false, nil
	}

	if !canSendPush(schedule.LastPushAt, now, settings.MinGapGoalsMin) {
		return false, nil
	}

	message := ComposeDueMessage(due, settings.MaxUnitsPerBundle)
	if err := s.SendNtfy(ctx, settings.NtfyGoalsTopic, settings.NtfyToken, message, "Training fällig"); err != nil {
		// 发送失败不更新限流时间戳，下一轮轮询自然重试
		return false, err
	}

	if err := s.db.Model(&db.Schedule{}).
		Where("id = ?", schedule.ID).
		Update("last_push_at", now).Error; err != nil {
		return true, fmt.Errorf("persist last push time: %w", err)
	}
	return true, nil
}

// TestPush 发送一条测试消息到目标主题，供设置页验证配置。
func (s *PushService) TestPush(ctx context.Context) error {
	settings, err := s.settings.GetSettings()
	if err != nil {
		return err
	}
	return s.SendNtfy(ctx, settings.NtfyGoalsTopic, settings.NtfyToken, "Test vom Glam Trainer (Ziele)", "Push-Test")
}

// StartPolling 启动推送轮询。间隔每轮重新读取设置，失败只记日志。
// 轮询无抖动、失败后不退避：请求量很低，同间隔重试足够。
func (s *PushService) StartPolling(ctx context.Context) {
	go func() {
		for {
			tick := defaultTickSeconds
			if settings, err := s.settings.GetSettings(); err == nil && settings.TickSeconds > 0 {
				tick = settings.TickSeconds
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(tick) * time.Second):
				if _, err := s.MaybeDispatch(ctx); err != nil {
					log.Printf("push dispatch: %v", err)
				}
			}
		}
	}()
}
