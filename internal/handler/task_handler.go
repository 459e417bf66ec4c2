package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/glamtrainer/internal/db"
)

func taskPayload(t db.TaskOption) gin.H {
	return gin.H{
		"category": t.Category,
		"title":    t.Title,
		"class":    t.Class,
	}
}

// ListTaskCategories 返回附加任务的全部分类。
func (a *API) ListTaskCategories(c *gin.Context) {
	categories, err := a.tasks.Categories()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取任务分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListTasks 返回某分类下的任务；random=1 时只随机返回一条。
func (a *API) ListTasks(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		respondError(c, http.StatusBadRequest, "缺少 category 参数")
		return
	}

	if c.Query("random") == "1" {
		task, err := a.tasks.RandomTask(category)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "挑选任务失败")
			return
		}
		if task == nil {
			c.JSON(http.StatusOK, gin.H{"task": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"task": taskPayload(*task)})
		return
	}

	tasks, err := a.tasks.ListByCategory(category)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取任务列表失败")
		return
	}

	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskPayload(task))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": items})
}

type taskPushPayload struct {
	Category string `json:"category"`
	Title    string `json:"title"`
}

// PushTask 将选中的任务推送到任务主题。
func (a *API) PushTask(c *gin.Context) {
	var payload taskPushPayload
	if !bindJSON(c, &payload, "无效的任务数据") {
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		respondError(c, http.StatusBadRequest, "缺少任务标题")
		return
	}

	settings, err := a.settings.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取设置失败")
		return
	}

	message := fmt.Sprintf("Aufgabe\nRubrik: %s\n\n%s", payload.Category, payload.Title)
	if err := a.push.SendNtfy(c.Request.Context(), settings.NtfyTasksTopic, settings.NtfyToken, message, "Aufgabe"); err != nil {
		respondError(c, http.StatusBadGateway, "推送失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// TestPush 向目标主题发送一条测试消息。
func (a *API) TestPush(c *gin.Context) {
	if err := a.push.TestPush(c.Request.Context()); err != nil {
		respondError(c, http.StatusBadGateway, "推送失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}
