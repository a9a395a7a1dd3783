package model

import (
	"time"

	"gorm.io/datatypes"
)

// 审计动作
const (
	AuditClockIn          = "clock_in"
	AuditClockOut         = "clock_out"
	AuditVisitUpdate      = "visit_update"
	AuditVisitDelete      = "visit_delete"
	AuditVisitComment     = "visit_comment"
	AuditPermissionDenied = "permission_denied"
	AuditShiftCreate      = "shift_create"
	AuditShiftUpdate      = "shift_update"
	AuditEventCreate      = "event_create"
	AuditEventUpdate      = "event_update"
	AuditEventDelete      = "event_delete"
	AuditEventRestore     = "event_restore"
	AuditEventPurge       = "event_purge"
	AuditEventImport      = "event_import"
)

// AuditLog 审计日志 — 对应 audit_logs，只追加不修改
type AuditLog struct {
	AuditID   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"audit_id"`
	ActorID   *string        `gorm:"type:uuid"                                      json:"actor_id,omitempty"`
	Action    string         `gorm:"type:varchar(50);not null"                      json:"action"`
	VisitID   *string        `gorm:"type:uuid"                                      json:"visit_id,omitempty"`
	ShiftID   *string        `gorm:"type:uuid"                                      json:"shift_id,omitempty"`
	ClientID  *string        `gorm:"type:uuid"                                      json:"client_id,omitempty"`
	Detail    datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"               json:"detail"`
	IP        string         `gorm:"type:varchar(64);not null;default:''"           json:"ip"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (AuditLog) TableName() string { return "audit_logs" }
