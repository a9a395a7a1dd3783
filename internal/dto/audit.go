package dto

import "encoding/json"

// AuditLogListRequest 审计日志查询参数
type AuditLogListRequest struct {
	Action  string `form:"action"`
	ActorID string `form:"actor_id" binding:"omitempty,uuid"`
	VisitID string `form:"visit_id" binding:"omitempty,uuid"`
	PaginationRequest
}

// AuditLogResponse 审计日志响应
type AuditLogResponse struct {
	ID        string          `json:"id"`
	ActorID   string          `json:"actor_id,omitempty"`
	Action    string          `json:"action"`
	VisitID   string          `json:"visit_id,omitempty"`
	ShiftID   string          `json:"shift_id,omitempty"`
	ClientID  string          `json:"client_id,omitempty"`
	Detail    json.RawMessage `json:"detail"`
	IP        string          `json:"ip"`
	CreatedAt string          `json:"created_at"`
}
