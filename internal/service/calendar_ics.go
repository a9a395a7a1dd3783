package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// ── iCalendar 导入导出 ──────────────────────────────────────
//
// 导出：合并日程（排班 + 有效事件）→ VCALENDAR，事件写入 CATEGORIES 以便回导
// 导入：VEVENT → CalendarEvent
//   - DTSTART/DTEND（或 DURATION）确定起止，支持 TZID 与 UTC
//   - RRULE 仅展开 DAILY / WEEKLY，限定在导入窗口内
//   - EXDATE 按机构时区日期排除
//   - STATUS:CANCELLED 跳过
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize       = 5 * 1024 * 1024 // 5MB
	icsMaxOccurrences    = 500             // 单个 VEVENT 最多展开次数
	icsProductID         = "-//COREcare//Client Schedule//EN"
	icsDefaultEventHours = 1
)

func (s *calendarService) ExportICS(ctx context.Context, caller Caller, clientID string, q *dto.DateRangeQuery) (string, error) {
	if err := s.checkAccess(ctx, caller, clientID); err != nil {
		return "", err
	}
	client, err := s.repo.Client.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrClientNotFound
		}
		s.logger.Error("查询客户失败", zap.Error(err))
		return "", err
	}
	r, err := resolveRange(q.Start, q.End, s.loc, s.defaultWindow())
	if err != nil {
		return "", err
	}
	items, err := s.mergedSchedule(ctx, clientID, r, true, true)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(fmt.Sprintf("%s schedule", client.FullName()))

	stamp := s.now().UTC()
	for _, it := range items {
		start, err1 := time.Parse(time.RFC3339, it.StartTime)
		end, err2 := time.Parse(time.RFC3339, it.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		evt := cal.AddEvent(fmt.Sprintf("%s_%s@corecare", it.Type, it.ID))
		evt.SetDtStampTime(stamp)
		evt.SetStartAt(start.UTC())
		evt.SetEndAt(end.UTC())
		evt.SetSummary(it.Title)
		if it.Location != "" {
			evt.SetLocation(it.Location)
		}
		if it.Type == itemTypeEvent {
			if desc, _ := it.Details["description"].(string); desc != "" {
				evt.SetDescription(desc)
			}
			if et, _ := it.Details["event_type"].(string); et != "" {
				evt.AddProperty(ics.ComponentPropertyCategories, strings.ToUpper(et))
			}
		}
	}
	return cal.Serialize(), nil
}

func (s *calendarService) ImportICS(ctx context.Context, caller Caller, clientID string, reader io.Reader, q *dto.DateRangeQuery) (*dto.ImportEventsResponse, error) {
	if err := s.authorizeClient(ctx, caller, clientID); err != nil {
		return nil, err
	}
	window, err := resolveRange(q.Start, q.End, s.loc, s.defaultWindow())
	if err != nil {
		return nil, err
	}

	parsed, warnings, err := parseICSEvents(io.LimitReader(reader, icsMaxFileSize), window, s.loc)
	if err != nil {
		return nil, err
	}

	resp := &dto.ImportEventsResponse{Warnings: warnings}
	events := make([]model.CalendarEvent, 0, len(parsed))
	for _, p := range parsed {
		event := model.CalendarEvent{
			ClientID:    clientID,
			Title:       p.Summary,
			EventType:   p.EventType,
			StartTime:   p.Start.UTC(),
			EndTime:     p.End.UTC(),
			Location:    p.Location,
			Description: p.Description,
			CreatedBy:   strPtr(caller.UserID),
			Version:     1,
		}
		event.Normalize()
		if err := event.Validate(); err != nil {
			resp.Skipped++
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%q: %s", p.Summary, pkgerrors.Message(err)))
			continue
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return resp, nil
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.CalendarEvent.BatchCreate(ctx, events); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditEventImport, auditRef{ClientID: clientID},
			map[string]interface{}{"imported": len(events), "window": window.String()})
	})
	if err != nil {
		s.logger.Error("导入日历事件失败", zap.String("client_id", clientID), zap.Error(err))
		return nil, err
	}
	resp.Imported = len(events)

	s.logger.Info("ICS 导入完成",
		zap.String("client_id", clientID),
		zap.Int("imported", resp.Imported),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

// ── 解析 ──

// importedEvent ICS 解析后的单次事件
type importedEvent struct {
	Summary     string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	EventType   string
}

// parseICSEvents 解析 VEVENT 并在 window 内展开重复规则
func parseICSEvents(reader io.Reader, window DateRange, loc *time.Location) ([]importedEvent, []string, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, nil, pkgerrors.Validation("invalid iCalendar file: " + err.Error())
	}
	from, to := window.Bounds()

	var (
		result   []importedEvent
		warnings []string
	)
	for _, evt := range cal.Events() {
		summary := propValue(evt, ics.ComponentPropertySummary)
		if summary == "" {
			warnings = append(warnings, "skipped event without SUMMARY")
			continue
		}
		if strings.EqualFold(propValue(evt, ics.ComponentPropertyStatus), "CANCELLED") {
			continue
		}

		start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%q: %v", summary, err))
			continue
		}
		length, err := eventLength(evt, start, loc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%q: %v", summary, err))
			continue
		}

		base := importedEvent{
			Summary:     summary,
			Location:    propValue(evt, ics.ComponentPropertyLocation),
			Description: unescapeICSText(propValue(evt, ics.ComponentPropertyDescription)),
			EventType:   eventTypeFromCategories(propValue(evt, ics.ComponentPropertyCategories)),
		}

		var starts []time.Time
		if prop := evt.GetProperty(ics.ComponentPropertyRrule); prop != nil {
			rule := parseRRule(prop.Value)
			if rule.freq != "WEEKLY" && rule.freq != "DAILY" {
				warnings = append(warnings, fmt.Sprintf("%q: unsupported RRULE frequency %s, imported first occurrence only", summary, rule.freq))
				starts = []time.Time{start}
			} else {
				var truncated bool
				// 与窗口起点重叠的实例也需展开
				starts, truncated = expandOccurrences(start, rule, parseExDates(evt, loc), from.Add(-length), to, loc)
				if truncated {
					warnings = append(warnings, fmt.Sprintf("%q: recurrence truncated to %d occurrences", summary, icsMaxOccurrences))
				}
			}
		} else {
			starts = []time.Time{start}
		}

		for _, st := range starts {
			end := st.Add(length)
			// 半开区间窗口过滤
			if !st.Before(to) || !end.After(from) {
				continue
			}
			occ := base
			occ.Start, occ.End = st, end
			result = append(result, occ)
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, warnings, nil
}

// eventLength 由 DTEND 或 DURATION 计算时长，均缺失时取默认值
func eventLength(evt *ics.VEvent, start time.Time, loc *time.Location) (time.Duration, error) {
	if end, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc); err == nil {
		return end.Sub(start), nil
	}
	if raw := propValue(evt, ics.ComponentProperty("DURATION")); raw != "" {
		d, err := parseICSDuration(raw)
		if err != nil {
			return 0, err
		}
		return d, nil
	}
	return icsDefaultEventHours * time.Hour, nil
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
	byDay    []time.Weekday
}

var icsWeekdays = map[string]time.Weekday{
	"MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday, "TH": time.Thursday,
	"FR": time.Friday, "SA": time.Saturday, "SU": time.Sunday,
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;BYDAY=MO,WE）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(kv[1]); err == nil {
				r.count = n
			}
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				// 仅日期的 UNTIL 包含当天
				if t, err = time.Parse("20060102", kv[1]); err == nil {
					t = t.Add(24*time.Hour - time.Second)
				}
			}
			r.until = t
		case "BYDAY":
			for _, d := range strings.Split(kv[1], ",") {
				d = strings.ToUpper(strings.TrimSpace(d))
				if len(d) > 2 {
					d = d[len(d)-2:]
				}
				if wd, ok := icsWeekdays[d]; ok {
					r.byDay = append(r.byDay, wd)
				}
			}
		}
	}
	return r
}

// expandOccurrences 展开 DAILY / WEEKLY 规则，返回起点落在 [from, to) 内的实例
// COUNT 从 DTSTART 起计数，窗口之前与被 EXDATE 排除的实例同样计入；
// icsMaxOccurrences 只限制窗口内的实例数，超出时第二个返回值为 true
func expandOccurrences(start time.Time, rule rruleParams, exDates map[string]bool, from, to time.Time, loc *time.Location) ([]time.Time, bool) {
	var (
		result    []time.Time
		series    int
		truncated bool
	)
	emit := func(t time.Time) bool {
		if t.Before(start) {
			return true
		}
		if !rule.until.IsZero() && t.After(rule.until) {
			return false
		}
		if rule.count > 0 && series >= rule.count {
			return false
		}
		if !t.Before(to) {
			return false
		}
		series++
		if t.Before(from) || exDates[t.In(loc).Format("20060102")] {
			return true
		}
		if len(result) >= icsMaxOccurrences {
			truncated = true
			return false
		}
		result = append(result, t)
		return true
	}

	if rule.freq == "DAILY" {
		for t := start; emit(t); t = t.AddDate(0, 0, rule.interval) {
		}
		return result, truncated
	}

	days := rule.byDay
	if len(days) == 0 {
		days = []time.Weekday{start.Weekday()}
	}
	sort.Slice(days, func(i, j int) bool { return isoWeekday(days[i]) < isoWeekday(days[j]) })

	// 以 DTSTART 所在周的周一为基准，保留原时区内的钟点
	monday := start.AddDate(0, 0, -(isoWeekday(start.Weekday()) - 1))
	for week := 0; ; week += rule.interval {
		for _, wd := range days {
			t := monday.AddDate(0, 0, week*7+isoWeekday(wd)-1)
			if !emit(t) {
				return result, truncated
			}
		}
	}
}

// isoWeekday 1=Monday … 7=Sunday
func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// parseExDates 解析事件中所有 EXDATE（支持逗号分隔多值）
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		tzLoc := loc
		if tzid := paramValue(prop.ICalParameters, "TZID"); tzid != "" {
			if l, err := time.LoadLocation(tzid); err == nil {
				tzLoc = l
			}
		}
		for _, v := range strings.Split(prop.Value, ",") {
			if t, err := parseICSValue(strings.TrimSpace(v), tzLoc); err == nil {
				exDates[t.In(loc).Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，优先 TZID，其次机构时区
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing %s", propName)
	}
	tzLoc := loc
	if tzid := paramValue(prop.ICalParameters, "TZID"); tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			tzLoc = l
		}
	}
	return parseICSValue(prop.Value, tzLoc)
}

// parseICSValue 支持 UTC、浮动时间与全天日期三种格式
func parseICSValue(val string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t, nil
	}
	for _, layout := range []string{"20060102T150405", "20060102"} {
		if t, err := time.ParseInLocation(layout, val, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", val)
}

// parseICSDuration 解析 RFC 5545 DURATION，如 PT1H30M、P1D、P2W
func parseICSDuration(raw string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid DURATION %q", raw)
	}
	s = s[1:]

	var (
		total  time.Duration
		num    strings.Builder
		inTime bool
	)
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			num.WriteRune(c)
			continue
		case c == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return 0, fmt.Errorf("invalid DURATION %q", raw)
		}
		num.Reset()
		switch {
		case c == 'W' && !inTime:
			total += time.Duration(n) * 7 * 24 * time.Hour
		case c == 'D' && !inTime:
			total += time.Duration(n) * 24 * time.Hour
		case c == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case c == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case c == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("invalid DURATION %q", raw)
		}
	}
	if num.Len() > 0 || total <= 0 {
		return 0, fmt.Errorf("invalid DURATION %q", raw)
	}
	if neg {
		total = -total
	}
	return total, nil
}

// eventTypeFromCategories 取第一个可识别的分类作为事件类型
func eventTypeFromCategories(raw string) string {
	for _, c := range strings.Split(raw, ",") {
		t := strings.ToLower(strings.TrimSpace(c))
		if model.ValidEventType(t) {
			return t
		}
	}
	return model.EventTypeOther
}

func propValue(evt *ics.VEvent, name ics.ComponentProperty) string {
	if p := evt.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func paramValue(params map[string][]string, key string) string {
	for k, v := range params {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

var icsTextUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeICSText(s string) string {
	return icsTextUnescaper.Replace(s)
}
