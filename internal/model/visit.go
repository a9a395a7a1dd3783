package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// MaxMileage 单次出勤允许的最大里程（含边界）
var MaxMileage = decimal.NewFromInt(500)

// Visit 出勤记录 — 对应 visits
// ClockOut 为空表示进行中
type Visit struct {
	VisitID          string              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"visit_id"`
	CaregiverID      *string             `gorm:"type:uuid"                                      json:"caregiver_id"`
	ClientID         string              `gorm:"type:uuid;not null"                             json:"client_id"`
	ShiftID          *string             `gorm:"type:uuid"                                      json:"shift_id,omitempty"`
	ClockIn          time.Time           `gorm:"not null"                                       json:"clock_in"`
	ClockOut         *time.Time          `                                                      json:"clock_out,omitempty"`
	DurationHours    decimal.NullDecimal `gorm:"type:numeric(6,2)"                              json:"duration_hours"`
	Mileage          decimal.NullDecimal `gorm:"type:numeric(6,1)"                              json:"mileage"`
	ClockInLat       *float64            `                                                      json:"clock_in_lat,omitempty"`
	ClockInLng       *float64            `                                                      json:"clock_in_lng,omitempty"`
	ClockInAccuracy  *float64            `                                                      json:"clock_in_accuracy,omitempty"`
	ClockOutLat      *float64            `                                                      json:"clock_out_lat,omitempty"`
	ClockOutLng      *float64            `                                                      json:"clock_out_lng,omitempty"`
	ClockOutAccuracy *float64            `                                                      json:"clock_out_accuracy,omitempty"`
	Notes            string              `gorm:"type:text;not null;default:''"                  json:"notes"`
	BaseModel

	// 关联
	Client *Client `gorm:"foreignKey:ClientID;references:ClientID" json:"client,omitempty"`
	Shift  *Shift  `gorm:"foreignKey:ShiftID;references:ShiftID"   json:"shift,omitempty"`
}

// TableName 指定表名
func (Visit) TableName() string { return "visits" }

// IsActive 是否仍在进行中
func (v *Visit) IsActive() bool { return v.ClockOut == nil }

// BelongsTo 是否归属指定护工
func (v *Visit) BelongsTo(caregiverID string) bool {
	return v.CaregiverID != nil && *v.CaregiverID == caregiverID
}

// ComputeDuration 根据打卡时间重算时长；未签退时清空
func (v *Visit) ComputeDuration() {
	if v.ClockOut == nil {
		v.DurationHours = decimal.NullDecimal{}
		return
	}
	v.DurationHours = decimal.NewNullDecimal(HoursBetween(v.ClockIn, *v.ClockOut))
}

// SetClockInLocation 记录签到定位
func (v *Visit) SetClockInLocation(p *GeoPoint) {
	if p == nil {
		return
	}
	v.ClockInLat, v.ClockInLng, v.ClockInAccuracy = p.Latitude, p.Longitude, p.Accuracy
}

// SetClockOutLocation 记录签退定位
func (v *Visit) SetClockOutLocation(p *GeoPoint) {
	if p == nil {
		return
	}
	v.ClockOutLat, v.ClockOutLng, v.ClockOutAccuracy = p.Latitude, p.Longitude, p.Accuracy
}

// Validate 校验里程、定位与打卡顺序；排班归属需由调用方结合 Shift 校验
func (v *Visit) Validate() error {
	if v.Mileage.Valid {
		if err := ValidateMileage(v.Mileage.Decimal); err != nil {
			return err
		}
	}
	for _, p := range []GeoPoint{
		{v.ClockInLat, v.ClockInLng, v.ClockInAccuracy},
		{v.ClockOutLat, v.ClockOutLng, v.ClockOutAccuracy},
	} {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if v.ClockOut != nil && v.ClockOut.Before(v.ClockIn) {
		return pkgerrors.Validation("clock out must not be before clock in")
	}
	return nil
}

// CheckShiftLinkage 关联排班时，排班护工必须与出勤护工一致
func (v *Visit) CheckShiftLinkage(s *Shift) error {
	if v.ShiftID == nil || s == nil {
		return nil
	}
	if v.CaregiverID == nil || s.CaregiverID != *v.CaregiverID {
		return pkgerrors.Validation("shift is assigned to another caregiver")
	}
	return nil
}

// ── 里程 ──

// ValidateMileage 校验里程范围 [0, 500]
func ValidateMileage(m decimal.Decimal) error {
	if m.IsNegative() {
		return pkgerrors.Validation("mileage cannot be negative")
	}
	if m.GreaterThan(MaxMileage) {
		return pkgerrors.Validation("mileage cannot exceed 500")
	}
	return nil
}

// ParseMileage 严格解析里程输入
// 空串视为未填写；无法解析或越界均返回校验错误
func ParseMileage(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	m, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, pkgerrors.Validation("mileage must be a number")
	}
	if err := ValidateMileage(m); err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(m.Round(1)), nil
}

// ── 定位 ──

// GeoPoint 打卡定位
type GeoPoint struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

// Validate 经纬度需成对出现且在合法范围内
func (p GeoPoint) Validate() error {
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return pkgerrors.Validation("latitude and longitude must be provided together")
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return pkgerrors.Validation("latitude must be between -90 and 90")
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return pkgerrors.Validation("longitude must be between -180 and 180")
	}
	if p.Accuracy != nil && *p.Accuracy < 0 {
		return pkgerrors.Validation("accuracy cannot be negative")
	}
	return nil
}

// VisitComment 出勤备注 — 对应 visit_comments，创建后不可修改
type VisitComment struct {
	CommentID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"comment_id"`
	VisitID   string    `gorm:"type:uuid;not null"                             json:"visit_id"`
	AuthorID  *string   `gorm:"type:uuid"                                      json:"author_id"`
	Text      string    `gorm:"type:text;not null"                             json:"text"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	Author *User `gorm:"foreignKey:AuthorID;references:UserID" json:"author,omitempty"`
}

// TableName 指定表名
func (VisitComment) TableName() string { return "visit_comments" }
