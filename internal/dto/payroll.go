package dto

// ── 工资报表 DTO ──

// PayrollQuery 报表查询参数；Shift 取 prev / next 时整体平移一周
type PayrollQuery struct {
	DateRangeQuery
	Shift string `form:"shift" binding:"omitempty,oneof=prev next"`
}

// PayrollRow 单个护工的工时汇总
type PayrollRow struct {
	CaregiverID string `json:"caregiver_id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	TotalHours  string `json:"total_hours"`
	VisitCount  int    `json:"visit_count"`
}

// PayrollReport 工资报表
type PayrollReport struct {
	StartDate  string       `json:"start_date"`
	EndDate    string       `json:"end_date"`
	PrevStart  string       `json:"prev_start"`
	PrevEnd    string       `json:"prev_end"`
	NextStart  string       `json:"next_start"`
	NextEnd    string       `json:"next_end"`
	Rows       []PayrollRow `json:"rows"`
	TotalHours string       `json:"total_hours"`
}
