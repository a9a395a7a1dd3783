package dto

// ── 日程与日历事件 DTO ──

// ScheduleQuery 日程查询参数；Include* 缺省为 true
type ScheduleQuery struct {
	DateRangeQuery
	IncludeShifts *bool `form:"include_shifts"`
	IncludeEvents *bool `form:"include_events"`
}

// ScheduleItem 合并后的日程条目（排班或事件）
type ScheduleItem struct {
	Type       string                 `json:"type"` // shift / event
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	StartTime  string                 `json:"start_time"`
	EndTime    string                 `json:"end_time"`
	Location   string                 `json:"location"`
	Icon       string                 `json:"icon"`
	ColorClass string                 `json:"color_class"`
	Details    map[string]interface{} `json:"details"`
}

// CalendarFeedItem 日历组件数据源条目
type CalendarFeedItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Type      string `json:"type"`
	ClassName string `json:"className"`
	Editable  bool   `json:"editable"`
}

// CheckConflictsRequest 冲突检测请求
type CheckConflictsRequest struct {
	StartTime      string `json:"start_time" binding:"required"` // RFC3339
	EndTime        string `json:"end_time"   binding:"required"`
	ExcludeEventID string `json:"exclude_event_id" binding:"omitempty,uuid"`
}

// ConflictItem 冲突项
type ConflictItem struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ConflictsResponse 冲突检测结果（仅提示，不阻止保存）
type ConflictsResponse struct {
	HasConflicts bool           `json:"has_conflicts"`
	Conflicts    []ConflictItem `json:"conflicts"`
}

// CreateEventRequest 创建事件请求
type CreateEventRequest struct {
	Title       string `json:"title"       binding:"required"`
	EventType   string `json:"event_type"`
	StartTime   string `json:"start_time"  binding:"required"` // RFC3339
	EndTime     string `json:"end_time"    binding:"required"`
	Location    string `json:"location"    binding:"max=255"`
	Description string `json:"description" binding:"max=4000"`
}

// UpdateEventRequest 更新事件请求，Version 为读取时的版本号
type UpdateEventRequest struct {
	Title       *string `json:"title"`
	EventType   *string `json:"event_type"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	Version     int     `json:"version" binding:"required,min=1"`
}

// EventResponse 事件响应
type EventResponse struct {
	ID          string               `json:"id"`
	ClientID    string               `json:"client_id"`
	Title       string               `json:"title"`
	EventType   string               `json:"event_type"`
	TypeLabel   string               `json:"type_label"`
	Icon        string               `json:"icon"`
	StartTime   string               `json:"start_time"`
	EndTime     string               `json:"end_time"`
	Location    string               `json:"location"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	CreatedBy   *UserBrief           `json:"created_by,omitempty"`
	DeletedAt   *string              `json:"deleted_at,omitempty"`
	Version     int                  `json:"version"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	Conflicts   []ConflictItem       `json:"conflicts,omitempty"`
}

// AddAttachmentRequest 附件元数据登记请求
type AddAttachmentRequest struct {
	OriginalFilename string `json:"original_filename" binding:"required,max=255"`
	ContentType      string `json:"content_type"      binding:"max=100"`
	SizeBytes        int64  `json:"size_bytes"        binding:"min=0"`
	StorageKey       string `json:"storage_key"       binding:"required,max=500"`
}

// AttachmentResponse 附件响应
type AttachmentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Icon        string `json:"icon"`
	Size        string `json:"size"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedAt   string `json:"created_at"`
}

// ImportEventsResponse ICS 导入结果
type ImportEventsResponse struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}
