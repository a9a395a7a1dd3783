package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// ── 日程模块业务错误 ──

var (
	ErrClientNotFound      = pkgerrors.NotFound("client not found")
	ErrEventNotFound       = pkgerrors.NotFound("event not found")
	ErrEventConflict       = pkgerrors.Conflict("event was modified by another request, reload and retry")
	ErrEventDeleted        = pkgerrors.Conflict("event has been deleted, restore it before editing")
	ErrEventAlreadyDeleted = pkgerrors.Conflict("event is already deleted")
	ErrEventNotDeleted     = pkgerrors.Conflict("event is not deleted")
	ErrInvalidTimeRange    = pkgerrors.Validation("end time must be after start time")
)

const (
	msgNoSchedulePermission = "You do not have permission to view this schedule."
	msgNoCalendarAccess     = "You do not have access to this client's calendar."
)

const (
	itemTypeShift = "shift"
	itemTypeEvent = "event"

	shiftIcon       = "👤"
	shiftColorClass = "schedule-item-shift"
)

// CalendarService 客户日程接口：排班与日历事件合并视图、冲突检测、事件维护
//
// 所有入口先做访问控制，包括只读数据源、ICS 导出与冲突检测
type CalendarService interface {
	GetSchedule(ctx context.Context, caller Caller, clientID string, q *dto.ScheduleQuery) ([]dto.ScheduleItem, error)
	CalendarFeed(ctx context.Context, caller Caller, clientID string, q *dto.DateRangeQuery) ([]dto.CalendarFeedItem, error)
	// CheckConflicts 仅提示，不阻止保存
	CheckConflicts(ctx context.Context, caller Caller, clientID string, req *dto.CheckConflictsRequest) (*dto.ConflictsResponse, error)

	CreateEvent(ctx context.Context, caller Caller, clientID string, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	UpdateEvent(ctx context.Context, caller Caller, eventID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error)
	DeleteEvent(ctx context.Context, caller Caller, eventID string) error
	RestoreEvent(ctx context.Context, caller Caller, eventID string) (*dto.EventResponse, error)
	// PurgeEvent 物理删除（仅管理员），附件元数据一并删除
	PurgeEvent(ctx context.Context, caller Caller, eventID string) error
	ListDeletedEvents(ctx context.Context, caller Caller, clientID string) ([]dto.EventResponse, error)

	AddAttachment(ctx context.Context, caller Caller, eventID string, req *dto.AddAttachmentRequest) (*dto.AttachmentResponse, error)
	ListAttachments(ctx context.Context, caller Caller, eventID string) ([]dto.AttachmentResponse, error)

	// ExportICS 导出日程为 iCalendar 文本
	ExportICS(ctx context.Context, caller Caller, clientID string, q *dto.DateRangeQuery) (string, error)
	// ImportICS 将外部日历中的预约导入为事件
	ImportICS(ctx context.Context, caller Caller, clientID string, r io.Reader, q *dto.DateRangeQuery) (*dto.ImportEventsResponse, error)
}

type calendarService struct {
	repo       *repository.Repository
	guard      *accessGuard
	loc        *time.Location
	windowDays int
	now        func() time.Time
	logger     *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, loc *time.Location, windowDays int, logger *zap.Logger) CalendarService {
	return &calendarService{
		repo:       repo,
		guard:      &accessGuard{repo: repo, logger: logger},
		loc:        loc,
		windowDays: windowDays,
		now:        time.Now,
		logger:     logger,
	}
}

// ════════════════════════════════════════════════════════════
// 访问控制
// ════════════════════════════════════════════════════════════

// checkAccess 管理员直接放行；家属需已核验的关联且具备查看日程权限；其余角色拒绝
func (s *calendarService) checkAccess(ctx context.Context, caller Caller, clientID string) error {
	if caller.IsStaff() {
		return nil
	}
	ref := auditRef{ClientID: clientID}
	if caller.Role != model.RoleFamily {
		return s.guard.deny(ctx, caller, ref, msgNoCalendarAccess, nil)
	}

	link, err := s.repo.FamilyLink.Get(ctx, clientID, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.guard.deny(ctx, caller, ref, msgNoCalendarAccess, nil)
		}
		s.logger.Error("查询家属关联失败", zap.Error(err))
		return err
	}
	if !link.IsVerified() {
		return s.guard.deny(ctx, caller, ref, msgNoCalendarAccess, map[string]interface{}{"link": "unverified"})
	}
	if !link.CanViewSchedule {
		return s.guard.deny(ctx, caller, ref, msgNoSchedulePermission, nil)
	}
	return nil
}

// authorizeClient 访问控制 + 客户存在性
func (s *calendarService) authorizeClient(ctx context.Context, caller Caller, clientID string) error {
	if err := s.checkAccess(ctx, caller, clientID); err != nil {
		return err
	}
	if _, err := s.repo.Client.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		s.logger.Error("查询客户失败", zap.Error(err))
		return err
	}
	return nil
}

// authorizeEvent 读取事件（不区分状态）并校验其客户的访问权限
func (s *calendarService) authorizeEvent(ctx context.Context, caller Caller, eventID string) (*model.CalendarEvent, error) {
	event, err := s.repo.CalendarEvent.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return nil, err
	}
	if err := s.checkAccess(ctx, caller, event.ClientID); err != nil {
		return nil, err
	}
	return event, nil
}

// ════════════════════════════════════════════════════════════
// 日程合并视图
// ════════════════════════════════════════════════════════════

// scheduleEntry 合并排序用的中间结构
type scheduleEntry struct {
	start time.Time
	item  dto.ScheduleItem
}

func (s *calendarService) defaultWindow() DateRange {
	return upcomingWindow(s.now(), s.loc, s.windowDays)
}

func (s *calendarService) GetSchedule(ctx context.Context, caller Caller, clientID string, q *dto.ScheduleQuery) ([]dto.ScheduleItem, error) {
	if err := s.authorizeClient(ctx, caller, clientID); err != nil {
		return nil, err
	}
	r, err := resolveRange(q.Start, q.End, s.loc, s.defaultWindow())
	if err != nil {
		return nil, err
	}
	return s.mergedSchedule(ctx, clientID, r, boolOr(q.IncludeShifts, true), boolOr(q.IncludeEvents, true))
}

// mergedSchedule 先排班后事件拼接，再按开始时间稳定排序
func (s *calendarService) mergedSchedule(ctx context.Context, clientID string, r DateRange, withShifts, withEvents bool) ([]dto.ScheduleItem, error) {
	from, to := r.Bounds()
	var entries []scheduleEntry

	if withShifts {
		shifts, err := s.repo.Shift.ListOverlapping(ctx, clientID, from, to)
		if err != nil {
			s.logger.Error("查询客户排班失败", zap.Error(err))
			return nil, err
		}
		for i := range shifts {
			entries = append(entries, scheduleEntry{start: shifts[i].StartTime, item: s.shiftItem(&shifts[i])})
		}
	}
	if withEvents {
		events, err := s.repo.CalendarEvent.ListActive(ctx, clientID, from, to)
		if err != nil {
			s.logger.Error("查询客户日历事件失败", zap.Error(err))
			return nil, err
		}
		for i := range events {
			entries = append(entries, scheduleEntry{start: events[i].StartTime, item: s.eventItem(&events[i])})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].start.Before(entries[j].start)
	})

	items := make([]dto.ScheduleItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.item)
	}
	return items, nil
}

func (s *calendarService) shiftItem(sh *model.Shift) dto.ScheduleItem {
	title, name := "Caregiver: Unassigned", ""
	if sh.Caregiver != nil {
		title = "Caregiver: " + sh.Caregiver.ShortName()
		name = strings.TrimSpace(sh.Caregiver.FirstName + " " + sh.Caregiver.LastName)
	}
	return dto.ScheduleItem{
		Type:       itemTypeShift,
		ID:         sh.ShiftID,
		Title:      title,
		StartTime:  sh.StartTime.In(s.loc).Format(time.RFC3339),
		EndTime:    sh.EndTime.In(s.loc).Format(time.RFC3339),
		Icon:       shiftIcon,
		ColorClass: shiftColorClass,
		Details: map[string]interface{}{
			"caregiver_id":   sh.CaregiverID,
			"caregiver_name": name,
		},
	}
}

func (s *calendarService) eventItem(e *model.CalendarEvent) dto.ScheduleItem {
	creator := ""
	if e.Creator != nil {
		creator = e.Creator.FullName()
	}
	attachments := make([]map[string]interface{}, 0, len(e.Attachments))
	for i := range e.Attachments {
		a := &e.Attachments[i]
		attachments = append(attachments, map[string]interface{}{
			"id":   a.AttachmentID,
			"name": a.OriginalFilename,
			"icon": a.FileIcon(),
			"size": a.HumanSize(),
		})
	}
	return dto.ScheduleItem{
		Type:       itemTypeEvent,
		ID:         e.EventID,
		Title:      e.Title,
		StartTime:  e.StartTime.In(s.loc).Format(time.RFC3339),
		EndTime:    e.EndTime.In(s.loc).Format(time.RFC3339),
		Location:   e.Location,
		Icon:       e.Icon(),
		ColorClass: "schedule-item-event schedule-item-" + e.EventType,
		Details: map[string]interface{}{
			"event_type":         e.EventType,
			"event_type_display": e.TypeLabel(),
			"description":        e.Description,
			"created_by":         creator,
			"attachment_count":   len(e.Attachments),
			"attachments":        attachments,
		},
	}
}

func (s *calendarService) CalendarFeed(ctx context.Context, caller Caller, clientID string, q *dto.DateRangeQuery) ([]dto.CalendarFeedItem, error) {
	if err := s.authorizeClient(ctx, caller, clientID); err != nil {
		return nil, err
	}
	r, err := resolveRange(q.Start, q.End, s.loc, s.defaultWindow())
	if err != nil {
		return nil, err
	}
	items, err := s.mergedSchedule(ctx, clientID, r, true, true)
	if err != nil {
		return nil, err
	}

	feed := make([]dto.CalendarFeedItem, 0, len(items))
	for _, it := range items {
		feed = append(feed, dto.CalendarFeedItem{
			ID:        it.Type + "_" + it.ID,
			Title:     it.Icon + " " + it.Title,
			Start:     it.StartTime,
			End:       it.EndTime,
			Type:      it.Type,
			ClassName: it.ColorClass,
			Editable:  it.Type == itemTypeEvent,
		})
	}
	return feed, nil
}

// ════════════════════════════════════════════════════════════
// 冲突检测
// ════════════════════════════════════════════════════════════

func (s *calendarService) CheckConflicts(ctx context.Context, caller Caller, clientID string, req *dto.CheckConflictsRequest) (*dto.ConflictsResponse, error) {
	if err := s.authorizeClient(ctx, caller, clientID); err != nil {
		return nil, err
	}
	start, err := parseTimestamp("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTimestamp("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, ErrInvalidTimeRange
	}

	conflicts, err := s.findConflicts(ctx, clientID, start, end, req.ExcludeEventID)
	if err != nil {
		return nil, err
	}
	return &dto.ConflictsResponse{HasConflicts: len(conflicts) > 0, Conflicts: conflicts}, nil
}

// findConflicts 半开区间：existing.start < end && existing.end > start
func (s *calendarService) findConflicts(ctx context.Context, clientID string, start, end time.Time, excludeEventID string) ([]dto.ConflictItem, error) {
	shifts, err := s.repo.Shift.ListOverlapping(ctx, clientID, start, end)
	if err != nil {
		s.logger.Error("冲突检测查询排班失败", zap.Error(err))
		return nil, err
	}
	events, err := s.repo.CalendarEvent.ListActiveOverlapping(ctx, clientID, start, end, excludeEventID)
	if err != nil {
		s.logger.Error("冲突检测查询事件失败", zap.Error(err))
		return nil, err
	}

	conflicts := make([]dto.ConflictItem, 0, len(shifts)+len(events))
	for i := range shifts {
		item := s.shiftItem(&shifts[i])
		conflicts = append(conflicts, dto.ConflictItem{
			Type: itemTypeShift, ID: item.ID, Title: item.Title,
			StartTime: item.StartTime, EndTime: item.EndTime,
		})
	}
	for i := range events {
		e := &events[i]
		conflicts = append(conflicts, dto.ConflictItem{
			Type:      itemTypeEvent,
			ID:        e.EventID,
			Title:     e.Title,
			StartTime: e.StartTime.In(s.loc).Format(time.RFC3339),
			EndTime:   e.EndTime.In(s.loc).Format(time.RFC3339),
		})
	}
	return conflicts, nil
}

// ════════════════════════════════════════════════════════════
// 事件维护
// ════════════════════════════════════════════════════════════

func (s *calendarService) CreateEvent(ctx context.Context, caller Caller, clientID string, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	if err := s.authorizeClient(ctx, caller, clientID); err != nil {
		return nil, err
	}
	start, err := parseTimestamp("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTimestamp("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}

	event := &model.CalendarEvent{
		ClientID:    clientID,
		Title:       req.Title,
		EventType:   req.EventType,
		StartTime:   start.UTC(),
		EndTime:     end.UTC(),
		Location:    req.Location,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   strPtr(caller.UserID),
		Version:     1,
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.CalendarEvent.Create(ctx, event); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditEventCreate, auditRef{ClientID: clientID},
			map[string]interface{}{"event_id": event.EventID, "title": event.Title})
	})
	if err != nil {
		s.logger.Error("创建日历事件失败", zap.Error(err))
		return nil, err
	}

	resp := s.toEventResponse(event)
	// 冲突仅作提示
	conflicts, err := s.findConflicts(ctx, clientID, event.StartTime, event.EndTime, event.EventID)
	if err != nil {
		s.logger.Warn("创建后冲突检测失败", zap.String("event_id", event.EventID), zap.Error(err))
	} else {
		resp.Conflicts = conflicts
	}
	return &resp, nil
}

func (s *calendarService) UpdateEvent(ctx context.Context, caller Caller, eventID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error) {
	event, err := s.authorizeEvent(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsDeleted() {
		return nil, ErrEventDeleted
	}
	if event.Version != req.Version {
		return nil, ErrEventConflict
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.EventType != nil {
		event.EventType = *req.EventType
	}
	if req.StartTime != nil {
		t, err := parseTimestamp("start_time", *req.StartTime)
		if err != nil {
			return nil, err
		}
		event.StartTime = t.UTC()
	}
	if req.EndTime != nil {
		t, err := parseTimestamp("end_time", *req.EndTime)
		if err != nil {
			return nil, err
		}
		event.EndTime = t.UTC()
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.Description != nil {
		event.Description = strings.TrimSpace(*req.Description)
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.CalendarEvent.Update(ctx, event); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditEventUpdate, auditRef{ClientID: event.ClientID},
			map[string]interface{}{"event_id": event.EventID, "version": event.Version})
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrEventConflict
		}
		s.logger.Error("更新日历事件失败", zap.Error(err))
		return nil, err
	}

	resp := s.toEventResponse(event)
	if conflicts, err := s.findConflicts(ctx, event.ClientID, event.StartTime, event.EndTime, event.EventID); err == nil {
		resp.Conflicts = conflicts
	}
	return &resp, nil
}

func (s *calendarService) DeleteEvent(ctx context.Context, caller Caller, eventID string) error {
	event, err := s.authorizeEvent(ctx, caller, eventID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return s.transition(ctx, caller, event, model.EventStatusActive, model.EventStatusDeleted, &now,
		model.AuditEventDelete, ErrEventAlreadyDeleted)
}

func (s *calendarService) RestoreEvent(ctx context.Context, caller Caller, eventID string) (*dto.EventResponse, error) {
	event, err := s.authorizeEvent(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, caller, event, model.EventStatusDeleted, model.EventStatusActive, nil,
		model.AuditEventRestore, ErrEventNotDeleted); err != nil {
		return nil, err
	}
	event.Status = model.EventStatusActive
	event.DeletedAt = nil
	event.Version++
	resp := s.toEventResponse(event)
	return &resp, nil
}

// transition 条件状态切换：当前状态不是 from 时返回 stateErr
func (s *calendarService) transition(ctx context.Context, caller Caller, event *model.CalendarEvent,
	from, to model.EventStatus, deletedAt *time.Time, action string, stateErr error) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		changed, err := tx.CalendarEvent.TransitionStatus(ctx, event.EventID, from, to, deletedAt)
		if err != nil {
			return err
		}
		if !changed {
			return stateErr
		}
		return writeAudit(ctx, tx, caller, action, auditRef{ClientID: event.ClientID},
			map[string]interface{}{"event_id": event.EventID, "title": event.Title})
	})
	if err != nil && pkgerrors.KindOf(err) == nil {
		s.logger.Error("切换日历事件状态失败", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return err
}

func (s *calendarService) PurgeEvent(ctx context.Context, caller Caller, eventID string) error {
	if !caller.IsStaff() {
		return s.guard.deny(ctx, caller, auditRef{}, msgStaffOnly, map[string]interface{}{"event_id": eventID})
	}
	event, err := s.authorizeEvent(ctx, caller, eventID)
	if err != nil {
		return err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.EventAttachment.DeleteByEvent(ctx, eventID); err != nil {
			return err
		}
		if err := tx.CalendarEvent.Delete(ctx, eventID); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditEventPurge, auditRef{ClientID: event.ClientID},
			map[string]interface{}{"event_id": eventID, "title": event.Title, "attachments": len(event.Attachments)})
	})
	if err != nil {
		s.logger.Error("清除日历事件失败", zap.String("event_id", eventID), zap.Error(err))
		return err
	}
	s.logger.Info("日历事件已清除", zap.String("event_id", eventID), zap.String("operator", caller.UserID))
	return nil
}

func (s *calendarService) ListDeletedEvents(ctx context.Context, caller Caller, clientID string) ([]dto.EventResponse, error) {
	if err := s.authorizeClient(ctx, caller, clientID); err != nil {
		return nil, err
	}
	events, err := s.repo.CalendarEvent.ListAll(ctx, clientID, model.EventStatusDeleted)
	if err != nil {
		s.logger.Error("查询已删除事件失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		result = append(result, s.toEventResponse(&events[i]))
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// 附件
// ════════════════════════════════════════════════════════════

func (s *calendarService) AddAttachment(ctx context.Context, caller Caller, eventID string, req *dto.AddAttachmentRequest) (*dto.AttachmentResponse, error) {
	event, err := s.authorizeEvent(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsDeleted() {
		return nil, ErrEventDeleted
	}

	attachment := &model.EventAttachment{
		EventID:          event.EventID,
		OriginalFilename: strings.TrimSpace(req.OriginalFilename),
		ContentType:      req.ContentType,
		SizeBytes:        req.SizeBytes,
		StorageKey:       req.StorageKey,
		UploadedBy:       strPtr(caller.UserID),
	}
	if attachment.OriginalFilename == "" {
		return nil, pkgerrors.Validation("filename is required")
	}
	if err := s.repo.EventAttachment.Create(ctx, attachment); err != nil {
		s.logger.Error("登记事件附件失败", zap.Error(err))
		return nil, err
	}
	resp := toAttachmentResponse(attachment)
	return &resp, nil
}

func (s *calendarService) ListAttachments(ctx context.Context, caller Caller, eventID string) ([]dto.AttachmentResponse, error) {
	if _, err := s.authorizeEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}
	attachments, err := s.repo.EventAttachment.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("查询事件附件失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		result = append(result, toAttachmentResponse(&attachments[i]))
	}
	return result, nil
}

// ── 转换 ──

func (s *calendarService) toEventResponse(e *model.CalendarEvent) dto.EventResponse {
	resp := dto.EventResponse{
		ID:          e.EventID,
		ClientID:    e.ClientID,
		Title:       e.Title,
		EventType:   e.EventType,
		TypeLabel:   e.TypeLabel(),
		Icon:        e.Icon(),
		StartTime:   e.StartTime.In(s.loc).Format(time.RFC3339),
		EndTime:     e.EndTime.In(s.loc).Format(time.RFC3339),
		Location:    e.Location,
		Description: e.Description,
		Status:      string(e.Status),
		Version:     e.Version,
	}
	if e.Creator != nil {
		resp.CreatedBy = &dto.UserBrief{ID: e.Creator.UserID, Name: e.Creator.FullName()}
	}
	if e.DeletedAt != nil {
		at := e.DeletedAt.Format(time.RFC3339)
		resp.DeletedAt = &at
	}
	for i := range e.Attachments {
		resp.Attachments = append(resp.Attachments, toAttachmentResponse(&e.Attachments[i]))
	}
	return resp
}

func toAttachmentResponse(a *model.EventAttachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:          a.AttachmentID,
		Name:        a.OriginalFilename,
		ContentType: a.ContentType,
		Icon:        a.FileIcon(),
		Size:        a.HumanSize(),
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
