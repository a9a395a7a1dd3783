package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseModel 通用时间戳字段
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// VersionedModel 支持乐观锁与操作人审计的模型
type VersionedModel struct {
	BaseModel
	CreatedBy *string `gorm:"type:uuid"          json:"created_by,omitempty"`
	UpdatedBy *string `gorm:"type:uuid"          json:"updated_by,omitempty"`
	Version   int     `gorm:"not null;default:1" json:"version"`
}

// ── 工时换算 ──

var secondsPerHour = decimal.NewFromInt(3600)

// HoursBetween 计算两个时间点之间的小时数，四舍五入保留 2 位小数
// 使用十进制运算，避免浮点截断造成的薪资误差
func HoursBetween(start, end time.Time) decimal.Decimal {
	seconds := decimal.New(end.Sub(start).Nanoseconds(), -9)
	return seconds.Div(secondsPerHour).Round(2)
}
