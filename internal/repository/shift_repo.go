package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hcunanan79/COREcare-access/internal/model"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// ShiftFilter 排班列表筛选条件
type ShiftFilter struct {
	CaregiverID string
	ClientID    string
	From        *time.Time
	To          *time.Time
}

// ShiftRepository 排班数据访问接口
type ShiftRepository interface {
	Create(ctx context.Context, shift *model.Shift) error
	GetByID(ctx context.Context, id string) (*model.Shift, error)
	// GetByIDForUpdate 行级锁读取，需在事务内调用；签到与改派由此串行化
	GetByIDForUpdate(ctx context.Context, id string) (*model.Shift, error)
	// Update 乐观锁更新，版本不匹配返回 pkgerrors.ErrOptimisticLock
	Update(ctx context.Context, shift *model.Shift) error
	// ListOverlapping 列出客户在 [from, to) 内有交集的排班，按开始时间升序
	ListOverlapping(ctx context.Context, clientID string, from, to time.Time) ([]model.Shift, error)
	List(ctx context.Context, filter ShiftFilter, offset, limit int) ([]model.Shift, int64, error)
}

type shiftRepo struct {
	db *gorm.DB
}

func NewShiftRepo(db *gorm.DB) ShiftRepository {
	return &shiftRepo{db: db}
}

func (r *shiftRepo) Create(ctx context.Context, shift *model.Shift) error {
	return r.db.WithContext(ctx).Create(shift).Error
}

func (r *shiftRepo) GetByID(ctx context.Context, id string) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Preload("Caregiver").
		Where("shift_id = ?", id).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_id = ?", id).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) Update(ctx context.Context, shift *model.Shift) error {
	oldVersion := shift.Version
	result := r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("shift_id = ? AND version = ?", shift.ShiftID, oldVersion).
		Updates(map[string]interface{}{
			"caregiver_id":   shift.CaregiverID,
			"client_id":      shift.ClientID,
			"start_time":     shift.StartTime,
			"end_time":       shift.EndTime,
			"pay_rate":       shift.PayRate,
			"bill_rate":      shift.BillRate,
			"duration_hours": shift.DurationHours,
			"total_pay":      shift.TotalPay,
			"total_bill":     shift.TotalBill,
			"notes":          shift.Notes,
			"updated_by":     shift.UpdatedBy,
			"version":        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	shift.Version = oldVersion + 1
	return nil
}

func (r *shiftRepo) ListOverlapping(ctx context.Context, clientID string, from, to time.Time) ([]model.Shift, error) {
	var shifts []model.Shift
	err := r.db.WithContext(ctx).
		Preload("Caregiver").
		Where("client_id = ? AND start_time < ? AND end_time > ?", clientID, to, from).
		Order("start_time ASC").
		Find(&shifts).Error
	return shifts, err
}

func (r *shiftRepo) List(ctx context.Context, filter ShiftFilter, offset, limit int) ([]model.Shift, int64, error) {
	var shifts []model.Shift
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Shift{})
	if filter.CaregiverID != "" {
		db = db.Where("caregiver_id = ?", filter.CaregiverID)
	}
	if filter.ClientID != "" {
		db = db.Where("client_id = ?", filter.ClientID)
	}
	if filter.From != nil {
		db = db.Where("end_time > ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("start_time < ?", *filter.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Caregiver").Preload("Client").
		Order("start_time ASC").
		Offset(offset).Limit(limit).
		Find(&shifts).Error; err != nil {
		return nil, 0, err
	}

	return shifts, total, nil
}
