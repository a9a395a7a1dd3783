package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// WeeklySummary 护工周工时汇总 — 对应 weekly_summaries
// 完全派生，(caregiver_id, week_start) 唯一，week_start 恒为周一
type WeeklySummary struct {
	SummaryID   string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"summary_id"`
	CaregiverID string          `gorm:"type:uuid;not null"                             json:"caregiver_id"`
	WeekStart   datatypes.Date  `gorm:"type:date;not null"                             json:"week_start"`
	TotalHours  decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0"           json:"total_hours"`
	TotalVisits int             `gorm:"not null;default:0"                             json:"total_visits"`
	BaseModel
}

// TableName 指定表名
func (WeeklySummary) TableName() string { return "weekly_summaries" }

// SummaryDate 将本地日期转为 UTC 零点的 date 值，避免写入 date 列时受会话时区影响
func SummaryDate(day time.Time) datatypes.Date {
	y, m, d := day.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// WeekStartOf 返回 t 所在周的周一（loc 时区下的零点）
func WeekStartOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7 // Monday=0
	return time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
}
