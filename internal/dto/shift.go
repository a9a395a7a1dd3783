package dto

// ── 排班模块 DTO ──

// CreateShiftRequest 创建排班请求；费率为十进制字符串，可省略
type CreateShiftRequest struct {
	CaregiverID string `json:"caregiver_id" binding:"required,uuid"`
	ClientID    string `json:"client_id"    binding:"required,uuid"`
	StartTime   string `json:"start_time"   binding:"required"` // RFC3339
	EndTime     string `json:"end_time"     binding:"required"` // RFC3339
	PayRate     string `json:"pay_rate"`
	BillRate    string `json:"bill_rate"`
	Notes       string `json:"notes"        binding:"max=2000"`
}

// UpdateShiftRequest 更新排班请求，Version 为读取时的版本号
type UpdateShiftRequest struct {
	CaregiverID *string `json:"caregiver_id" binding:"omitempty,uuid"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	PayRate     *string `json:"pay_rate"`
	BillRate    *string `json:"bill_rate"`
	Notes       *string `json:"notes"`
	Version     int     `json:"version" binding:"required,min=1"`
}

// ShiftListRequest 排班列表查询参数
type ShiftListRequest struct {
	CaregiverID string `form:"caregiver_id" binding:"omitempty,uuid"`
	ClientID    string `form:"client_id"    binding:"omitempty,uuid"`
	DateRangeQuery
	PaginationRequest
}

// ShiftResponse 排班响应
type ShiftResponse struct {
	ID            string     `json:"id"`
	Caregiver     *UserBrief `json:"caregiver,omitempty"`
	CaregiverID   string     `json:"caregiver_id"`
	ClientID      string     `json:"client_id"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	PayRate       *string    `json:"pay_rate"`
	BillRate      *string    `json:"bill_rate"`
	DurationHours *string    `json:"duration_hours"`
	TotalPay      *string    `json:"total_pay"`
	TotalBill     *string    `json:"total_bill"`
	Notes         string     `json:"notes"`
	Version       int        `json:"version"`
}
