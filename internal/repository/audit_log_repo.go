package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/model"
)

// AuditLogFilter 审计日志筛选条件
type AuditLogFilter struct {
	Action  string
	ActorID string
	VisitID string
}

// AuditLogRepository 审计日志数据访问接口
// 只提供追加与查询，不提供修改与删除
type AuditLogRepository interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter, offset, limit int) ([]model.AuditLog, int64, error)
}

type auditLogRepo struct {
	db *gorm.DB
}

func NewAuditLogRepo(db *gorm.DB) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepo) List(ctx context.Context, filter AuditLogFilter, offset, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if filter.Action != "" {
		db = db.Where("action = ?", filter.Action)
	}
	if filter.ActorID != "" {
		db = db.Where("actor_id = ?", filter.ActorID)
	}
	if filter.VisitID != "" {
		db = db.Where("visit_id = ?", filter.VisitID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
