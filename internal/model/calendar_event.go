package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// EventStatus 日历事件状态
type EventStatus string

const (
	EventStatusActive  EventStatus = "active"
	EventStatusDeleted EventStatus = "deleted"
)

// 事件类型
const (
	EventTypeMedical = "medical"
	EventTypeSocial  = "social"
	EventTypeTherapy = "therapy"
	EventTypeFamily  = "family"
	EventTypeOther   = "other"
)

var eventTypeIcons = map[string]string{
	EventTypeMedical: "🩺",
	EventTypeSocial:  "👥",
	EventTypeTherapy: "💆",
	EventTypeFamily:  "👨‍👩‍👧",
	EventTypeOther:   "📅",
}

var eventTypeLabels = map[string]string{
	EventTypeMedical: "Medical Appointment",
	EventTypeSocial:  "Social Activity",
	EventTypeTherapy: "Therapy",
	EventTypeFamily:  "Family Visit",
	EventTypeOther:   "Other",
}

// ValidEventType 是否为已知事件类型
func ValidEventType(t string) bool {
	_, ok := eventTypeIcons[t]
	return ok
}

const maxEventTitleLen = 200

// CalendarEvent 客户日历事件 — 对应 calendar_events
// 软删除通过 Status 显式表达
type CalendarEvent struct {
	EventID     string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	ClientID    string      `gorm:"type:uuid;not null"                             json:"client_id"`
	Title       string      `gorm:"type:varchar(200);not null"                     json:"title"`
	EventType   string      `gorm:"type:varchar(20);not null;default:'other'"      json:"event_type"`
	StartTime   time.Time   `gorm:"not null"                                       json:"start_time"`
	EndTime     time.Time   `gorm:"not null"                                       json:"end_time"`
	Location    string      `gorm:"type:varchar(255);not null;default:''"          json:"location"`
	Description string      `gorm:"type:text;not null;default:''"                  json:"description"`
	CreatedBy   *string     `gorm:"type:uuid"                                      json:"created_by,omitempty"`
	Status      EventStatus `gorm:"type:varchar(10);not null;default:'active'"     json:"status"`
	DeletedAt   *time.Time  `                                                      json:"deleted_at,omitempty"`
	Version     int         `gorm:"not null;default:1"                             json:"version"`
	BaseModel

	// 关联
	Creator     *User             `gorm:"foreignKey:CreatedBy;references:UserID" json:"creator,omitempty"`
	Attachments []EventAttachment `gorm:"foreignKey:EventID;references:EventID"  json:"attachments,omitempty"`
}

// TableName 指定表名
func (CalendarEvent) TableName() string { return "calendar_events" }

// IsDeleted 是否已软删除
func (e *CalendarEvent) IsDeleted() bool { return e.Status == EventStatusDeleted }

// Icon 事件类型图标
func (e *CalendarEvent) Icon() string {
	if icon, ok := eventTypeIcons[e.EventType]; ok {
		return icon
	}
	return eventTypeIcons[EventTypeOther]
}

// TypeLabel 事件类型展示名
func (e *CalendarEvent) TypeLabel() string {
	if label, ok := eventTypeLabels[e.EventType]; ok {
		return label
	}
	return eventTypeLabels[EventTypeOther]
}

// Overlaps 半开区间重叠判断
func (e *CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.StartTime.Before(end) && e.EndTime.After(start)
}

// Normalize 去除首尾空白并补全默认类型
func (e *CalendarEvent) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Location = strings.TrimSpace(e.Location)
	if e.EventType == "" {
		e.EventType = EventTypeOther
	}
	if e.Status == "" {
		e.Status = EventStatusActive
	}
}

// Validate 校验标题、类型与时间区间（结束必须严格晚于开始）
func (e *CalendarEvent) Validate() error {
	if e.Title == "" {
		return pkgerrors.Validation("title is required")
	}
	if utf8.RuneCountInString(e.Title) > maxEventTitleLen {
		return pkgerrors.Validation(fmt.Sprintf("title cannot exceed %d characters", maxEventTitleLen))
	}
	if !ValidEventType(e.EventType) {
		return pkgerrors.Validation(fmt.Sprintf("unknown event type %q", e.EventType))
	}
	if !e.EndTime.After(e.StartTime) {
		return pkgerrors.Validation("end time must be after start time")
	}
	return nil
}

// EventAttachment 事件附件元数据 — 对应 event_attachments
// 文件内容由外部存储负责，此处仅记录元数据
type EventAttachment struct {
	AttachmentID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"attachment_id"`
	EventID          string    `gorm:"type:uuid;not null"                             json:"event_id"`
	OriginalFilename string    `gorm:"type:varchar(255);not null"                     json:"original_filename"`
	ContentType      string    `gorm:"type:varchar(100);not null;default:''"          json:"content_type"`
	SizeBytes        int64     `gorm:"not null;default:0"                             json:"size_bytes"`
	StorageKey       string    `gorm:"type:varchar(500);not null"                     json:"storage_key"`
	UploadedBy       *string   `gorm:"type:uuid"                                      json:"uploaded_by,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (EventAttachment) TableName() string { return "event_attachments" }

// FileIcon 按扩展名返回图标
func (a *EventAttachment) FileIcon() string {
	switch strings.ToLower(filepath.Ext(a.OriginalFilename)) {
	case ".pdf":
		return "📄"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic":
		return "🖼️"
	case ".doc", ".docx", ".txt", ".rtf":
		return "📝"
	default:
		return "📎"
	}
}

// HumanSize 可读文件大小
func (a *EventAttachment) HumanSize() string {
	size := float64(a.SizeBytes)
	for _, unit := range []string{"B", "KB", "MB"} {
		if size < 1024 {
			if unit == "B" {
				return fmt.Sprintf("%d %s", a.SizeBytes, unit)
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f GB", size)
}
