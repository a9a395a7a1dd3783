package model

import (
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// Shift 排班 — 对应 shifts
// 计划内的护工-客户服务时段，保存时派生时长与费用
type Shift struct {
	ShiftID       string              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"shift_id"`
	CaregiverID   string              `gorm:"type:uuid;not null"                             json:"caregiver_id"`
	ClientID      string              `gorm:"type:uuid;not null"                             json:"client_id"`
	StartTime     time.Time           `gorm:"not null"                                       json:"start_time"`
	EndTime       time.Time           `gorm:"not null"                                       json:"end_time"`
	PayRate       decimal.NullDecimal `gorm:"type:numeric(8,2)"                              json:"pay_rate"`
	BillRate      decimal.NullDecimal `gorm:"type:numeric(8,2)"                              json:"bill_rate"`
	DurationHours decimal.NullDecimal `gorm:"type:numeric(6,2)"                              json:"duration_hours"`
	TotalPay      decimal.NullDecimal `gorm:"type:numeric(10,2)"                             json:"total_pay"`
	TotalBill     decimal.NullDecimal `gorm:"type:numeric(10,2)"                             json:"total_bill"`
	Notes         string              `gorm:"type:text;not null;default:''"                  json:"notes"`
	VersionedModel

	// 关联
	Caregiver *User   `gorm:"foreignKey:CaregiverID;references:UserID" json:"caregiver,omitempty"`
	Client    *Client `gorm:"foreignKey:ClientID;references:ClientID"  json:"client,omitempty"`
}

// TableName 指定表名
func (Shift) TableName() string { return "shifts" }

var (
	errShiftTimeRange   = pkgerrors.Validation("end time must be after start time")
	errNegativePayRate  = pkgerrors.Validation("pay rate cannot be negative")
	errNegativeBillRate = pkgerrors.Validation("bill rate cannot be negative")
)

// Validate 校验时间区间与费率
func (s *Shift) Validate() error {
	if !s.EndTime.After(s.StartTime) {
		return errShiftTimeRange
	}
	if s.PayRate.Valid && s.PayRate.Decimal.IsNegative() {
		return errNegativePayRate
	}
	if s.BillRate.Valid && s.BillRate.Decimal.IsNegative() {
		return errNegativeBillRate
	}
	return nil
}

// Derive 重新计算时长、应付与应收金额
// 未设置费率时对应金额为空
func (s *Shift) Derive() {
	hours := HoursBetween(s.StartTime, s.EndTime)
	s.DurationHours = decimal.NewNullDecimal(hours)

	s.TotalPay = decimal.NullDecimal{}
	if s.PayRate.Valid {
		s.TotalPay = decimal.NewNullDecimal(hours.Mul(s.PayRate.Decimal).Round(2))
	}
	s.TotalBill = decimal.NullDecimal{}
	if s.BillRate.Valid {
		s.TotalBill = decimal.NewNullDecimal(hours.Mul(s.BillRate.Decimal).Round(2))
	}
}

// Overlaps 半开区间重叠判断：[start, end) 与本排班相交
func (s *Shift) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}
