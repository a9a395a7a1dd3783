package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hcunanan79/COREcare-access/internal/model"
)

// WeeklySummaryRepository 周汇总数据访问接口
type WeeklySummaryRepository interface {
	// Upsert 按 (caregiver_id, week_start) 整行覆盖写入
	Upsert(ctx context.Context, summary *model.WeeklySummary) error
	// Get 不存在时返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, caregiverID string, weekStart time.Time) (*model.WeeklySummary, error)
	ListByCaregiver(ctx context.Context, caregiverID string, limit int) ([]model.WeeklySummary, error)
}

type weeklySummaryRepo struct {
	db *gorm.DB
}

func NewWeeklySummaryRepo(db *gorm.DB) WeeklySummaryRepository {
	return &weeklySummaryRepo{db: db}
}

func (r *weeklySummaryRepo) Upsert(ctx context.Context, summary *model.WeeklySummary) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "caregiver_id"}, {Name: "week_start"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_hours", "total_visits", "updated_at"}),
		}).
		Create(summary).Error
}

func (r *weeklySummaryRepo) Get(ctx context.Context, caregiverID string, weekStart time.Time) (*model.WeeklySummary, error) {
	var summary model.WeeklySummary
	err := r.db.WithContext(ctx).
		Where("caregiver_id = ? AND week_start = ?", caregiverID, weekStart.Format("2006-01-02")).
		First(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *weeklySummaryRepo) ListByCaregiver(ctx context.Context, caregiverID string, limit int) ([]model.WeeklySummary, error) {
	var summaries []model.WeeklySummary
	err := r.db.WithContext(ctx).
		Where("caregiver_id = ?", caregiverID).
		Order("week_start DESC").
		Limit(limit).
		Find(&summaries).Error
	return summaries, err
}
