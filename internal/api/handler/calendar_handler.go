package handler

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/service"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

const contentTypeICS = "text/calendar; charset=utf-8"

// CalendarHandler 客户日程与日历事件 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// ── 日程读取 ──

// GetSchedule 合并后的排班与事件
// GET /api/v1/clients/:id/schedule
func (h *CalendarHandler) GetSchedule(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.ScheduleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	items, err := h.calendarSvc.GetSchedule(c.Request.Context(), caller, c.Param("id"), &q)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// CalendarFeed 日历组件数据源，直接返回数组
// GET /api/v1/clients/:id/calendar-feed
func (h *CalendarHandler) CalendarFeed(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	items, err := h.calendarSvc.CalendarFeed(c.Request.Context(), caller, c.Param("id"), &q)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, items)
}

// ExportICS 导出 iCalendar
// GET /api/v1/clients/:id/calendar.ics
func (h *CalendarHandler) ExportICS(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	clientID := c.Param("id")
	ics, err := h.calendarSvc.ExportICS(c.Request.Context(), caller, clientID, &q)
	if err != nil {
		handleError(c, err)
		return
	}

	writeAttachment(c, "client-"+clientID+"-schedule.ics", contentTypeICS, []byte(ics))
}

// CheckConflicts 冲突检测（仅提示）
// POST /api/v1/clients/:id/events/check-conflicts
func (h *CalendarHandler) CheckConflicts(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CheckConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.calendarSvc.CheckConflicts(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// ListDeletedEvents 已删除事件
// GET /api/v1/clients/:id/events/deleted
func (h *CalendarHandler) ListDeletedEvents(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, err := h.calendarSvc.ListDeletedEvents(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ── 事件写入 ──

// CreateEvent 创建事件，响应中附带冲突提示
// POST /api/v1/clients/:id/events
func (h *CalendarHandler) CreateEvent(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	event, err := h.calendarSvc.CreateEvent(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, event)
}

// ImportEvents 从 ICS 文件导入事件
// 支持 multipart 字段 file，或以 text/calendar 作为请求体
// POST /api/v1/clients/:id/events/import
func (h *CalendarHandler) ImportEvents(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			bindFailed(c, err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			bindFailed(c, err)
			return
		}
		defer f.Close()
		body = f
	}

	result, err := h.calendarSvc.ImportICS(c.Request.Context(), caller, c.Param("id"), body, &q)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateEvent 更新事件（乐观锁）
// PUT /api/v1/events/:id
func (h *CalendarHandler) UpdateEvent(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	event, err := h.calendarSvc.UpdateEvent(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, event)
}

// DeleteEvent 软删除事件
// DELETE /api/v1/events/:id
func (h *CalendarHandler) DeleteEvent(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.calendarSvc.DeleteEvent(c.Request.Context(), caller, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// RestoreEvent 恢复已删除事件
// POST /api/v1/events/:id/restore
func (h *CalendarHandler) RestoreEvent(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	event, err := h.calendarSvc.RestoreEvent(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, event)
}

// PurgeEvent 物理删除事件
// DELETE /api/v1/events/:id/purge
func (h *CalendarHandler) PurgeEvent(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.calendarSvc.PurgeEvent(c.Request.Context(), caller, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ── 附件 ──

// AddAttachment 登记附件元数据
// POST /api/v1/events/:id/attachments
func (h *CalendarHandler) AddAttachment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.AddAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	attachment, err := h.calendarSvc.AddAttachment(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, attachment)
}

// ListAttachments 事件附件列表
// GET /api/v1/events/:id/attachments
func (h *CalendarHandler) ListAttachments(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, err := h.calendarSvc.ListAttachments(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}
