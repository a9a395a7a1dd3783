package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/service"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

// AuditHandler 审计日志 HTTP 处理器
type AuditHandler struct {
	auditSvc service.AuditService
}

// NewAuditHandler 创建 AuditHandler
func NewAuditHandler(auditSvc service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List 审计日志分页查询
// GET /api/v1/audit-logs
func (h *AuditHandler) List(c *gin.Context) {
	var req dto.AuditLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.auditSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
