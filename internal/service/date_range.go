package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/hcunanan79/COREcare-access/internal/model"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

const dateLayout = "2006-01-02"

// DateRange 闭区间日期范围，Start/End 为所在时区的零点
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Bounds 转为半开时间区间 [Start 00:00, End+1 00:00)
func (r DateRange) Bounds() (time.Time, time.Time) {
	return r.Start, r.End.AddDate(0, 0, 1)
}

// Days 区间天数（含首尾）
func (r DateRange) Days() int {
	days := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// Navigate 按方向整体平移 7 天，保持区间长度；未知方向原样返回
func (r DateRange) Navigate(direction string) DateRange {
	switch direction {
	case "prev":
		return DateRange{Start: r.Start.AddDate(0, 0, -7), End: r.End.AddDate(0, 0, -7)}
	case "next":
		return DateRange{Start: r.Start.AddDate(0, 0, 7), End: r.End.AddDate(0, 0, 7)}
	default:
		return r
	}
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

// startOfDay 返回 t 在 loc 时区的当日零点
func startOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// currentWeek 当前自然周（周一至周日）
func currentWeek(now time.Time, loc *time.Location) DateRange {
	start := model.WeekStartOf(now, loc)
	return DateRange{Start: start, End: start.AddDate(0, 0, 6)}
}

// upcomingWindow 今天起 days 天
func upcomingWindow(now time.Time, loc *time.Location, days int) DateRange {
	today := startOfDay(now, loc)
	return DateRange{Start: today, End: today.AddDate(0, 0, days)}
}

// parseDate 解析 YYYY-MM-DD
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, pkgerrors.Validation(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return t, nil
}

// parseTimestamp 解析 RFC3339 时间戳
func parseTimestamp(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, pkgerrors.Validation(fmt.Sprintf("invalid %s %q, expected RFC3339", field, raw))
	}
	return t, nil
}

// resolveRange 按查询参数解析日期范围
// 均缺省时使用 def；仅给出起始日时沿用 def 的区间长度
func resolveRange(startRaw, endRaw string, loc *time.Location, def DateRange) (DateRange, error) {
	r := def
	if startRaw != "" {
		start, err := parseDate(startRaw, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.Start = start
		r.End = start.AddDate(0, 0, def.Days()-1)
	}
	if endRaw != "" {
		end, err := parseDate(endRaw, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.End = end
	}
	if r.End.Before(r.Start) {
		return DateRange{}, pkgerrors.Validation("end date must not be before start date")
	}
	return r, nil
}
