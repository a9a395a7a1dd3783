package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/service"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

// SummaryHandler 周工时汇总 HTTP 处理器
type SummaryHandler struct {
	summarySvc service.SummaryService
}

// NewSummaryHandler 创建 SummaryHandler
func NewSummaryHandler(summarySvc service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summarySvc: summarySvc}
}

// GetWeekly 指定周的汇总；caregiver_id 缺省为本人，week_start 缺省为本周
// GET /api/v1/summaries/weekly
func (h *SummaryHandler) GetWeekly(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.WeeklySummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}
	caregiverID := q.CaregiverID
	if caregiverID == "" {
		caregiverID = caller.UserID
	}

	summary, err := h.summarySvc.GetWeekly(c.Request.Context(), caller, caregiverID, q.WeekStart)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, summary)
}

// ListForCaregiver 护工近期各周汇总
// GET /api/v1/summaries/caregivers/:id
func (h *SummaryHandler) ListForCaregiver(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, err := h.summarySvc.ListForCaregiver(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}
