package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glamtrainer/internal/service"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	noteEngine = goldmark.New(
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	noteSanitizer = bluemonday.UGCPolicy()
)

// renderNote 把备注的 Markdown 渲染为净化后的 HTML，渲染失败时返回空串。
func renderNote(note string) string {
	if strings.TrimSpace(note) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := noteEngine.Convert([]byte(note), &buf); err != nil {
		return ""
	}
	return noteSanitizer.Sanitize(buf.String())
}

// ListLog 返回打卡日志，按新到旧排列，支持类型过滤。
func (a *API) ListLog(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := a.logs.List(service.LogFilter{
		TypeTag: c.Query("type"),
		GoalID:  c.Query("goal_id"),
		Limit:   limit,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取日志失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		item := gin.H{
			"entry_id":      entry.EntryID,
			"type":          entry.TypeTag,
			"day_key":       entry.DayKey,
			"created_at":    entry.CreatedAt.Format(time.RFC3339),
			"goal_id":       entry.GoalID,
			"goal_name":     entry.GoalName,
			"level":         entry.Level,
			"exercise":      entry.Exercise,
			"status":        entry.Status,
			"feedback":      entry.Feedback,
			"note":          entry.Note,
			"note_html":     renderNote(entry.Note),
			"planned_label": entry.PlannedLabel,
		}
		if entry.Enjoyment != nil {
			item["enjoyment"] = *entry.Enjoyment
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"entries": items})
}
