package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/service"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// PayrollHandler 工资报表 HTTP 处理器
type PayrollHandler struct {
	payrollSvc service.PayrollService
}

// NewPayrollHandler 创建 PayrollHandler
func NewPayrollHandler(payrollSvc service.PayrollService) *PayrollHandler {
	return &PayrollHandler{payrollSvc: payrollSvc}
}

// Report 工资报表（含上一周/下一周导航）
// GET /api/v1/payroll
func (h *PayrollHandler) Report(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.PayrollQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	report, err := h.payrollSvc.Report(c.Request.Context(), caller, &q)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, report)
}

// ExportCSV 导出 CSV
// GET /api/v1/payroll/export.csv
func (h *PayrollHandler) ExportCSV(c *gin.Context) {
	h.export(c, h.payrollSvc.ExportCSV, contentTypeCSV)
}

// ExportXLSX 导出 Excel
// GET /api/v1/payroll/export.xlsx
func (h *PayrollHandler) ExportXLSX(c *gin.Context) {
	h.export(c, h.payrollSvc.ExportXLSX, contentTypeXLSX)
}

type exportFunc func(ctx context.Context, caller service.Caller, q *dto.PayrollQuery) (*bytes.Buffer, string, error)

func (h *PayrollHandler) export(c *gin.Context, fn exportFunc, contentType string) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.PayrollQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	buf, filename, err := fn(c.Request.Context(), caller, &q)
	if err != nil {
		handleError(c, err)
		return
	}

	writeAttachment(c, filename, contentType, buf.Bytes())
}

// writeAttachment 以附件形式返回文件内容
func writeAttachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
