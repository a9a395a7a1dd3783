package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

// ═══════════════════════════════════════════════════════════
// 工时换算
// ═══════════════════════════════════════════════════════════

func TestHoursBetween(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		end  time.Time
		want string
	}{
		{"整段 8.5 小时", base.Add(8*time.Hour + 30*time.Minute), "8.5"},
		{"零时长", base, "0"},
		{"半分位向上舍入", base.Add(18 * time.Second), "0.01"}, // 0.005
		{"不足半分位舍去", base.Add(17 * time.Second), "0"},    // 0.00472
		{"20 分钟", base.Add(20 * time.Minute), "0.33"},
		{"40 分钟", base.Add(40 * time.Minute), "0.67"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HoursBetween(base, tt.end)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("期望 %s，实际 %s", tt.want, got)
			}
		})
	}
}

func TestVisit_ComputeDuration(t *testing.T) {
	in := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	v := &Visit{ClockIn: in}
	v.ComputeDuration()
	if v.DurationHours.Valid {
		t.Error("未签退时不应有时长")
	}

	out := time.Date(2026, 1, 5, 17, 30, 0, 0, time.UTC)
	v.ClockOut = &out
	v.ComputeDuration()
	if v.DurationHours.Decimal.StringFixed(2) != "8.50" {
		t.Errorf("期望 8.50，实际 %s", v.DurationHours.Decimal.StringFixed(2))
	}
}

// ═══════════════════════════════════════════════════════════
// 里程
// ═══════════════════════════════════════════════════════════

func TestParseMileage(t *testing.T) {
	tests := []struct {
		raw     string
		valid   bool
		want    string
		wantErr string
	}{
		{"", false, "", ""},
		{"  ", false, "", ""},
		{"0", true, "0", ""},
		{"500", true, "500", ""},
		{"12.34", true, "12.3", ""},
		{"501", false, "", "mileage cannot exceed 500"},
		{"500.01", false, "", "mileage cannot exceed 500"},
		{"-0.1", false, "", "mileage cannot be negative"},
		{"ten", false, "", "mileage must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMileage(tt.raw)
			if tt.wantErr != "" {
				if !errors.Is(err, pkgerrors.ErrValidation) || pkgerrors.Message(err) != tt.wantErr {
					t.Fatalf("期望错误 %q，实际 %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("意外错误: %v", err)
			}
			if got.Valid != tt.valid {
				t.Fatalf("Valid=%v，期望 %v", got.Valid, tt.valid)
			}
			if tt.valid && !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("期望 %s，实际 %s", tt.want, got.Decimal)
			}
		})
	}
}

func TestVisit_Validate(t *testing.T) {
	in := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	before := in.Add(-time.Minute)

	tests := []struct {
		name    string
		visit   Visit
		wantErr bool
	}{
		{"合法", Visit{ClockIn: in, Mileage: decimal.NewNullDecimal(decimal.NewFromInt(500))}, false},
		{"里程越界", Visit{ClockIn: in, Mileage: decimal.NewNullDecimal(decimal.NewFromInt(501))}, true},
		{"纬度越界", Visit{ClockIn: in, ClockInLat: ptr(91.0), ClockInLng: ptr(0.0)}, true},
		{"经度缺失", Visit{ClockIn: in, ClockOutLat: ptr(45.0)}, true},
		{"精度为负", Visit{ClockIn: in, ClockInLat: ptr(45.0), ClockInLng: ptr(-122.0), ClockInAccuracy: ptr(-1.0)}, true},
		{"签退早于签到", Visit{ClockIn: in, ClockOut: &before}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.visit.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("err=%v，wantErr=%v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, pkgerrors.ErrValidation) {
				t.Errorf("应为校验错误，实际 %v", err)
			}
		})
	}
}

func TestVisit_CheckShiftLinkage(t *testing.T) {
	shift := &Shift{ShiftID: "s1", CaregiverID: "cg-a"}
	tests := []struct {
		name    string
		visit   Visit
		shift   *Shift
		wantErr bool
	}{
		{"未关联排班", Visit{CaregiverID: ptr("cg-b")}, nil, false},
		{"同一护工", Visit{CaregiverID: ptr("cg-a"), ShiftID: ptr("s1")}, shift, false},
		{"其他护工", Visit{CaregiverID: ptr("cg-b"), ShiftID: ptr("s1")}, shift, true},
		{"护工已删除", Visit{ShiftID: ptr("s1")}, shift, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.visit.CheckShiftLinkage(tt.shift)
			if (err != nil) != tt.wantErr {
				t.Errorf("err=%v，wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// 排班
// ═══════════════════════════════════════════════════════════

func TestShift_DeriveAndValidate(t *testing.T) {
	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	s := &Shift{
		StartTime: start,
		EndTime:   start.Add(7*time.Hour + 20*time.Minute),
		PayRate:   decimal.NewNullDecimal(decimal.RequireFromString("21.50")),
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("意外错误: %v", err)
	}
	s.Derive()
	if s.DurationHours.Decimal.StringFixed(2) != "7.33" {
		t.Errorf("期望时长 7.33，实际 %s", s.DurationHours.Decimal)
	}
	if s.TotalPay.Decimal.StringFixed(2) != "157.60" {
		t.Errorf("期望应付 157.60，实际 %s", s.TotalPay.Decimal)
	}
	if s.TotalBill.Valid {
		t.Error("未设置 bill_rate 时不应有应收金额")
	}

	s.EndTime = start
	if err := s.Validate(); pkgerrors.Message(err) != "end time must be after start time" {
		t.Errorf("期望时间区间错误，实际 %v", err)
	}

	s.EndTime = start.Add(time.Hour)
	s.BillRate = decimal.NewNullDecimal(decimal.NewFromInt(-1))
	if err := s.Validate(); pkgerrors.Message(err) != "bill rate cannot be negative" {
		t.Errorf("期望费率错误，实际 %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// 日历事件
// ═══════════════════════════════════════════════════════════

func TestCalendarEvent_Validate(t *testing.T) {
	start := time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC)

	e := &CalendarEvent{Title: " Doctor ", StartTime: start, EndTime: start.Add(-time.Hour)}
	e.Normalize()
	if e.EventType != EventTypeOther || e.Status != EventStatusActive || e.Title != "Doctor" {
		t.Errorf("Normalize 结果不符: %+v", e)
	}
	if err := e.Validate(); pkgerrors.Message(err) != "end time must be after start time" {
		t.Errorf("期望时间区间错误，实际 %v", err)
	}

	e.EndTime = start
	if err := e.Validate(); err == nil {
		t.Error("零时长事件应被拒绝")
	}

	e.EndTime = start.Add(time.Hour)
	e.EventType = "party"
	if err := e.Validate(); err == nil {
		t.Error("未知类型应被拒绝")
	}

	e.EventType = EventTypeMedical
	e.Title = ""
	if err := e.Validate(); pkgerrors.Message(err) != "title is required" {
		t.Errorf("期望标题必填错误，实际 %v", err)
	}
}

func TestCalendarEvent_Icon(t *testing.T) {
	tests := map[string]string{
		EventTypeMedical: "🩺",
		EventTypeSocial:  "👥",
		EventTypeTherapy: "💆",
		"unknown":        "📅",
	}
	for typ, want := range tests {
		e := &CalendarEvent{EventType: typ}
		if got := e.Icon(); got != want {
			t.Errorf("%s: 期望 %s，实际 %s", typ, want, got)
		}
	}
}

func TestEventAttachment_Display(t *testing.T) {
	a := &EventAttachment{OriginalFilename: "Report.PDF", SizeBytes: 2560}
	if a.FileIcon() != "📄" {
		t.Errorf("PDF 图标不符: %s", a.FileIcon())
	}
	if a.HumanSize() != "2.5 KB" {
		t.Errorf("期望 2.5 KB，实际 %s", a.HumanSize())
	}
	a.SizeBytes = 300
	if a.HumanSize() != "300 B" {
		t.Errorf("期望 300 B，实际 %s", a.HumanSize())
	}
}

// ═══════════════════════════════════════════════════════════
// 周起始
// ═══════════════════════════════════════════════════════════

func TestWeekStartOf(t *testing.T) {
	loc, _ := time.LoadLocation("America/Los_Angeles")
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"周一", time.Date(2026, 1, 5, 12, 0, 0, 0, loc), "2026-01-05"},
		{"周日", time.Date(2026, 1, 11, 23, 59, 0, 0, loc), "2026-01-05"},
		{"周三", time.Date(2026, 1, 7, 0, 0, 0, 0, loc), "2026-01-05"},
		// UTC 周一凌晨在洛杉矶仍属上周日
		{"跨时区", time.Date(2026, 1, 12, 3, 0, 0, 0, time.UTC), "2026-01-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStartOf(tt.in, loc)
			if got.Format("2006-01-02") != tt.want || got.Weekday() != time.Monday {
				t.Errorf("期望 %s，实际 %s", tt.want, got.Format("2006-01-02"))
			}
		})
	}
}

func TestUser_Names(t *testing.T) {
	u := &User{Username: "jcare", FirstName: "Jane", LastName: "Caregiver"}
	if u.ShortName() != "Jane C." {
		t.Errorf("期望 Jane C.，实际 %s", u.ShortName())
	}
	if (&User{Username: "solo"}).FullName() != "solo" {
		t.Error("缺少姓名时应回退为用户名")
	}
}
