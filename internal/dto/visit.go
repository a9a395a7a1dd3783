package dto

import (
	"encoding/json"
	"strings"
)

// ── 出勤模块 DTO ──

// GeoPointRequest 打卡定位
type GeoPointRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

// ClockInRequest 签到请求
// 提供 ShiftID 时 ClientID 可省略，默认取排班的客户
type ClockInRequest struct {
	ClientID string           `json:"client_id" binding:"omitempty,uuid"`
	ShiftID  string           `json:"shift_id"  binding:"omitempty,uuid"`
	Location *GeoPointRequest `json:"location"`
	Notes    string           `json:"notes"     binding:"max=2000"`
}

// ClockOutRequest 签退请求
// Mileage 接受 JSON 数字或字符串，由服务层严格解析
type ClockOutRequest struct {
	Mileage  json.RawMessage  `json:"mileage"`
	Location *GeoPointRequest `json:"location"`
	Notes    string           `json:"notes" binding:"max=2000"`
}

// MileageText 返回里程原始文本；未提供或 null 时为空串
func (r *ClockOutRequest) MileageText() string {
	raw := strings.TrimSpace(string(r.Mileage))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Mileage, &s); err == nil {
		return s
	}
	return raw
}

// MileageRequest 护工补录里程
type MileageRequest struct {
	Mileage json.RawMessage `json:"mileage"`
}

// MileageText 同 ClockOutRequest.MileageText
func (r *MileageRequest) MileageText() string {
	c := ClockOutRequest{Mileage: r.Mileage}
	return c.MileageText()
}

// UpdateVisitRequest 管理员修正出勤
// 字段为 nil 表示不修改；ClearShift 为 true 时解除排班关联
type UpdateVisitRequest struct {
	ClockIn    *string         `json:"clock_in"`  // RFC3339
	ClockOut   *string         `json:"clock_out"` // RFC3339
	Mileage    json.RawMessage `json:"mileage"`
	ShiftID    *string         `json:"shift_id"   binding:"omitempty,uuid"`
	ClearShift bool            `json:"clear_shift"`
	Notes      *string         `json:"notes"`
}

// MileageText 同 ClockOutRequest.MileageText；返回 false 表示未提供
func (r *UpdateVisitRequest) MileageText() (string, bool) {
	if len(r.Mileage) == 0 {
		return "", false
	}
	c := ClockOutRequest{Mileage: r.Mileage}
	return c.MileageText(), true
}

// VisitListRequest 出勤列表查询参数
type VisitListRequest struct {
	CaregiverID string `form:"caregiver_id" binding:"omitempty,uuid"`
	DateRangeQuery
	PaginationRequest
}

// CommentRequest 添加备注请求
type CommentRequest struct {
	Text string `json:"text" binding:"max=4000"`
}

// ── 响应 ──

// VisitResponse 出勤记录响应
type VisitResponse struct {
	ID            string           `json:"id"`
	CaregiverID   string           `json:"caregiver_id"`
	ClientID      string           `json:"client_id"`
	ClientName    string           `json:"client_name,omitempty"`
	ShiftID       string           `json:"shift_id,omitempty"`
	ClockIn       string           `json:"clock_in"`
	ClockOut      *string          `json:"clock_out"`
	DurationHours *string          `json:"duration_hours"`
	Mileage       *string          `json:"mileage"`
	ClockInGeo    *GeoPointRequest `json:"clock_in_location,omitempty"`
	ClockOutGeo   *GeoPointRequest `json:"clock_out_location,omitempty"`
	Notes         string           `json:"notes"`
	Active        bool             `json:"active"`
}

// VisitCommentResponse 出勤备注响应
type VisitCommentResponse struct {
	ID        string     `json:"id"`
	VisitID   string     `json:"visit_id"`
	Author    *UserBrief `json:"author,omitempty"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"created_at"`
}

// WeeklySummaryResponse 周汇总响应
type WeeklySummaryResponse struct {
	CaregiverID string `json:"caregiver_id"`
	WeekStart   string `json:"week_start"`
	WeekEnd     string `json:"week_end"`
	TotalHours  string `json:"total_hours"`
	TotalVisits int    `json:"total_visits"`
}

// WeeklySummaryQuery 周汇总查询参数
type WeeklySummaryQuery struct {
	CaregiverID string `form:"caregiver_id" binding:"omitempty,uuid"`
	WeekStart   string `form:"week_start"`
}
