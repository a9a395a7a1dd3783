package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hcunanan79/COREcare-access/internal/model"
)

// ActiveVisitConstraint 进行中出勤的部分唯一索引名
const ActiveVisitConstraint = "uk_visits_active_caregiver"

// VisitRepository 出勤记录数据访问接口
type VisitRepository interface {
	Create(ctx context.Context, visit *model.Visit) error
	GetByID(ctx context.Context, id string) (*model.Visit, error)
	// GetByIDForUpdate 行级锁读取，需在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.Visit, error)
	// GetActiveByCaregiver 查询护工进行中的出勤，不存在时返回 gorm.ErrRecordNotFound
	GetActiveByCaregiver(ctx context.Context, caregiverID string) (*model.Visit, error)
	Update(ctx context.Context, visit *model.Visit) error
	Delete(ctx context.Context, id string) error
	// ListCompleted 列出 clock_in ∈ [from, to) 且已有时长的出勤，按签到时间升序
	ListCompleted(ctx context.Context, caregiverID string, from, to time.Time) ([]model.Visit, error)
	// ExistsForShiftWithOtherCaregiver 是否存在关联该排班但护工不是 caregiverID 的出勤
	ExistsForShiftWithOtherCaregiver(ctx context.Context, shiftID, caregiverID string) (bool, error)
	// ListByCaregiver 分页列出 clock_in ∈ [from, to) 的全部出勤，按签到时间倒序
	ListByCaregiver(ctx context.Context, caregiverID string, from, to time.Time, offset, limit int) ([]model.Visit, int64, error)
}

// VisitCommentRepository 出勤备注数据访问接口（只追加）
type VisitCommentRepository interface {
	Create(ctx context.Context, comment *model.VisitComment) error
	ListByVisit(ctx context.Context, visitID string) ([]model.VisitComment, error)
}

// ── Visit Repository 实现 ──

type visitRepo struct {
	db *gorm.DB
}

func NewVisitRepo(db *gorm.DB) VisitRepository {
	return &visitRepo{db: db}
}

func (r *visitRepo) Create(ctx context.Context, visit *model.Visit) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(visit).Error
}

func (r *visitRepo) GetByID(ctx context.Context, id string) (*model.Visit, error) {
	var visit model.Visit
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Shift").
		Where("visit_id = ?", id).
		First(&visit).Error
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

func (r *visitRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Visit, error) {
	var visit model.Visit
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("visit_id = ?", id).
		First(&visit).Error
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

func (r *visitRepo) GetActiveByCaregiver(ctx context.Context, caregiverID string) (*model.Visit, error) {
	var visit model.Visit
	err := r.db.WithContext(ctx).
		Preload("Client").
		Where("caregiver_id = ? AND clock_out IS NULL", caregiverID).
		First(&visit).Error
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

func (r *visitRepo) Update(ctx context.Context, visit *model.Visit) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(visit).Error
}

func (r *visitRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("visit_id = ?", id).Delete(&model.Visit{}).Error
}

func (r *visitRepo) ListCompleted(ctx context.Context, caregiverID string, from, to time.Time) ([]model.Visit, error) {
	var visits []model.Visit
	err := r.db.WithContext(ctx).
		Where("caregiver_id = ? AND clock_in >= ? AND clock_in < ? AND duration_hours IS NOT NULL", caregiverID, from, to).
		Order("clock_in ASC").
		Find(&visits).Error
	return visits, err
}

func (r *visitRepo) ListByCaregiver(ctx context.Context, caregiverID string, from, to time.Time, offset, limit int) ([]model.Visit, int64, error) {
	var visits []model.Visit
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Visit{}).
		Where("caregiver_id = ? AND clock_in >= ? AND clock_in < ?", caregiverID, from, to)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("Client").
		Order("clock_in DESC").
		Offset(offset).Limit(limit).
		Find(&visits).Error; err != nil {
		return nil, 0, err
	}
	return visits, total, nil
}

func (r *visitRepo) ExistsForShiftWithOtherCaregiver(ctx context.Context, shiftID, caregiverID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Visit{}).
		Where("shift_id = ? AND caregiver_id IS DISTINCT FROM ?", shiftID, caregiverID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// ── VisitComment Repository 实现 ──

type visitCommentRepo struct {
	db *gorm.DB
}

func NewVisitCommentRepo(db *gorm.DB) VisitCommentRepository {
	return &visitCommentRepo{db: db}
}

func (r *visitCommentRepo) Create(ctx context.Context, comment *model.VisitComment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

func (r *visitCommentRepo) ListByVisit(ctx context.Context, visitID string) ([]model.VisitComment, error) {
	var comments []model.VisitComment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("visit_id = ?", visitID).
		Order("created_at DESC").
		Find(&comments).Error
	return comments, err
}
