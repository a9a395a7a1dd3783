package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/service"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

// VisitHandler 出勤模块 HTTP 处理器
type VisitHandler struct {
	visitSvc service.VisitService
}

// NewVisitHandler 创建 VisitHandler
func NewVisitHandler(visitSvc service.VisitService) *VisitHandler {
	return &VisitHandler{visitSvc: visitSvc}
}

// ClockIn 签到
// POST /api/v1/visits/clock-in
func (h *VisitHandler) ClockIn(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ClockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	visit, err := h.visitSvc.ClockIn(c.Request.Context(), caller, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, visit)
}

// ClockOut 签退
// POST /api/v1/visits/:id/clock-out
func (h *VisitHandler) ClockOut(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ClockOutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	visit, err := h.visitSvc.ClockOut(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, visit)
}

// AddMileage 护工补录本人出勤里程
// POST /api/v1/visits/:id/mileage
func (h *VisitHandler) AddMileage(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.MileageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	visit, err := h.visitSvc.AddMileage(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, visit)
}

// GetActive 当前进行中的出勤；无则 data 为 null
// GET /api/v1/visits/active
func (h *VisitHandler) GetActive(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	visit, err := h.visitSvc.GetActive(c.Request.Context(), caller)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, visit)
}

// GetVisit 出勤详情
// GET /api/v1/visits/:id
func (h *VisitHandler) GetVisit(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	visit, err := h.visitSvc.GetVisit(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, visit)
}

// ListVisits 出勤列表（护工仅本人）
// GET /api/v1/visits
func (h *VisitHandler) ListVisits(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.VisitListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.visitSvc.ListVisits(c.Request.Context(), caller, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// UpdateVisit 管理员修正出勤
// PUT /api/v1/visits/:id
func (h *VisitHandler) UpdateVisit(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	visit, err := h.visitSvc.UpdateVisit(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, visit)
}

// DeleteVisit 管理员删除出勤
// DELETE /api/v1/visits/:id
func (h *VisitHandler) DeleteVisit(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.visitSvc.DeleteVisit(c.Request.Context(), caller, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// AddComment 添加出勤备注
// POST /api/v1/visits/:id/comments
func (h *VisitHandler) AddComment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	comment, err := h.visitSvc.AddComment(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, comment)
}

// ListComments 出勤备注列表
// GET /api/v1/visits/:id/comments
func (h *VisitHandler) ListComments(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	comments, err := h.visitSvc.ListComments(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": comments})
}
