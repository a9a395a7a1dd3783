package handler

import "github.com/hcunanan79/COREcare-access/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth     *AuthHandler
	Visit    *VisitHandler
	Summary  *SummaryHandler
	Shift    *ShiftHandler
	Payroll  *PayrollHandler
	Calendar *CalendarHandler
	Audit    *AuditHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(svc.Auth),
		Visit:    NewVisitHandler(svc.Visit),
		Summary:  NewSummaryHandler(svc.Summary),
		Shift:    NewShiftHandler(svc.Shift),
		Payroll:  NewPayrollHandler(svc.Payroll),
		Calendar: NewCalendarHandler(svc.Calendar),
		Audit:    NewAuditHandler(svc.Audit),
	}
}
