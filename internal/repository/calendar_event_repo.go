package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hcunanan79/COREcare-access/internal/model"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// CalendarEventRepository 客户日历事件数据访问接口
//
// 查询分两类：
//   - Active* 仅返回 status=active 的事件
//   - 其余方法不区分状态
type CalendarEventRepository interface {
	Create(ctx context.Context, event *model.CalendarEvent) error
	BatchCreate(ctx context.Context, events []model.CalendarEvent) error
	// GetByID 不区分状态
	GetByID(ctx context.Context, id string) (*model.CalendarEvent, error)
	// Update 乐观锁更新，版本不匹配返回 pkgerrors.ErrOptimisticLock
	Update(ctx context.Context, event *model.CalendarEvent) error
	// TransitionStatus 仅当当前状态为 from 时切换为 to，返回是否发生变更
	TransitionStatus(ctx context.Context, id string, from, to model.EventStatus, deletedAt *time.Time) (bool, error)
	// ListActive 客户在 [from, to) 内有交集的有效事件，按开始时间升序
	ListActive(ctx context.Context, clientID string, from, to time.Time) ([]model.CalendarEvent, error)
	// ListActiveOverlapping 冲突检测用，excludeID 非空时排除该事件
	ListActiveOverlapping(ctx context.Context, clientID string, start, end time.Time, excludeID string) ([]model.CalendarEvent, error)
	// ListAll 客户全部事件；status 为空时不过滤
	ListAll(ctx context.Context, clientID string, status model.EventStatus) ([]model.CalendarEvent, error)
	Delete(ctx context.Context, id string) error
}

// EventAttachmentRepository 事件附件元数据访问接口
type EventAttachmentRepository interface {
	Create(ctx context.Context, attachment *model.EventAttachment) error
	ListByEvent(ctx context.Context, eventID string) ([]model.EventAttachment, error)
	DeleteByEvent(ctx context.Context, eventID string) error
}

// ── CalendarEvent Repository 实现 ──

type calendarEventRepo struct {
	db *gorm.DB
}

func NewCalendarEventRepo(db *gorm.DB) CalendarEventRepository {
	return &calendarEventRepo{db: db}
}

func (r *calendarEventRepo) Create(ctx context.Context, event *model.CalendarEvent) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(event).Error
}

func (r *calendarEventRepo) BatchCreate(ctx context.Context, events []model.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).CreateInBatches(events, 100).Error
}

func (r *calendarEventRepo) GetByID(ctx context.Context, id string) (*model.CalendarEvent, error) {
	var event model.CalendarEvent
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Attachments").
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *calendarEventRepo) Update(ctx context.Context, event *model.CalendarEvent) error {
	oldVersion := event.Version
	result := r.db.WithContext(ctx).
		Model(&model.CalendarEvent{}).
		Where("event_id = ? AND version = ?", event.EventID, oldVersion).
		Updates(map[string]interface{}{
			"title":       event.Title,
			"event_type":  event.EventType,
			"start_time":  event.StartTime,
			"end_time":    event.EndTime,
			"location":    event.Location,
			"description": event.Description,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	event.Version = oldVersion + 1
	return nil
}

func (r *calendarEventRepo) TransitionStatus(ctx context.Context, id string, from, to model.EventStatus, deletedAt *time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.CalendarEvent{}).
		Where("event_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"deleted_at": deletedAt,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *calendarEventRepo) ListActive(ctx context.Context, clientID string, from, to time.Time) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("client_id = ? AND status = ? AND start_time < ? AND end_time > ?",
			clientID, model.EventStatusActive, to, from).
		Order("start_time ASC").
		Find(&events).Error
	return events, err
}

func (r *calendarEventRepo) ListActiveOverlapping(ctx context.Context, clientID string, start, end time.Time, excludeID string) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	db := r.db.WithContext(ctx).
		Where("client_id = ? AND status = ? AND start_time < ? AND end_time > ?",
			clientID, model.EventStatusActive, end, start)
	if excludeID != "" {
		db = db.Where("event_id <> ?", excludeID)
	}
	err := db.Order("start_time ASC").Find(&events).Error
	return events, err
}

func (r *calendarEventRepo) ListAll(ctx context.Context, clientID string, status model.EventStatus) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	db := r.db.WithContext(ctx).Where("client_id = ?", clientID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("start_time DESC").Find(&events).Error
	return events, err
}

func (r *calendarEventRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("event_id = ?", id).Delete(&model.CalendarEvent{}).Error
}

// ── EventAttachment Repository 实现 ──

type eventAttachmentRepo struct {
	db *gorm.DB
}

func NewEventAttachmentRepo(db *gorm.DB) EventAttachmentRepository {
	return &eventAttachmentRepo{db: db}
}

func (r *eventAttachmentRepo) Create(ctx context.Context, attachment *model.EventAttachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *eventAttachmentRepo) ListByEvent(ctx context.Context, eventID string) ([]model.EventAttachment, error) {
	var attachments []model.EventAttachment
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}

func (r *eventAttachmentRepo) DeleteByEvent(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&model.EventAttachment{}).Error
}
