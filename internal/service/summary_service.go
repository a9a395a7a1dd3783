package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
)

// SummaryService 护工周汇总接口
//
// 汇总行完全由出勤记录派生：
//   - 出勤写入路径在同一事务内调用 weeklyCalculator 重算
//   - 此处提供读取与离线回填
type SummaryService interface {
	// Recompute 重算 day 所在周的汇总并返回结果（幂等）
	Recompute(ctx context.Context, caregiverID string, day time.Time) (*dto.WeeklySummaryResponse, error)
	// RecomputeRange 回填 [from, to] 覆盖的每一周，返回处理的周数
	RecomputeRange(ctx context.Context, caregiverID string, from, to time.Time) (int, error)
	GetWeekly(ctx context.Context, caller Caller, caregiverID string, weekStart string) (*dto.WeeklySummaryResponse, error)
	ListForCaregiver(ctx context.Context, caller Caller, caregiverID string) ([]dto.WeeklySummaryResponse, error)
}

type summaryService struct {
	repo   *repository.Repository
	calc   weeklyCalculator
	guard  *accessGuard
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewSummaryService 创建 SummaryService 实例
func NewSummaryService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) SummaryService {
	return &summaryService{
		repo:   repo,
		calc:   weeklyCalculator{loc: loc},
		guard:  &accessGuard{repo: repo, logger: logger},
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

const summaryListLimit = 52

func (s *summaryService) Recompute(ctx context.Context, caregiverID string, day time.Time) (*dto.WeeklySummaryResponse, error) {
	var summary *model.WeeklySummary
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		summary, err = s.calc.recompute(ctx, tx, caregiverID, day)
		return err
	})
	if err != nil {
		s.logger.Error("重算周汇总失败", zap.String("caregiver_id", caregiverID), zap.Error(err))
		return nil, err
	}
	resp := toSummaryResponse(summary)
	return &resp, nil
}

func (s *summaryService) RecomputeRange(ctx context.Context, caregiverID string, from, to time.Time) (int, error) {
	weeks := 0
	last := model.WeekStartOf(to, s.loc)
	for week := model.WeekStartOf(from, s.loc); !week.After(last); week = week.AddDate(0, 0, 7) {
		if _, err := s.Recompute(ctx, caregiverID, week); err != nil {
			return weeks, err
		}
		weeks++
	}
	return weeks, nil
}

func (s *summaryService) GetWeekly(ctx context.Context, caller Caller, caregiverID string, weekStart string) (*dto.WeeklySummaryResponse, error) {
	if caregiverID == "" {
		caregiverID = caller.UserID
	}
	if err := s.checkOwner(ctx, caller, caregiverID); err != nil {
		return nil, err
	}

	day := s.now()
	if weekStart != "" {
		parsed, err := parseDate(weekStart, s.loc)
		if err != nil {
			return nil, err
		}
		day = parsed
	}
	monday := model.WeekStartOf(day, s.loc)

	summary, err := s.repo.WeeklySummary.Get(ctx, caregiverID, monday)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询周汇总失败", zap.Error(err))
			return nil, err
		}
		// 无出勤的周不落库，按零值返回
		summary = &model.WeeklySummary{
			CaregiverID: caregiverID,
			WeekStart:   model.SummaryDate(monday),
			TotalHours:  decimal.Zero,
		}
	}
	resp := toSummaryResponse(summary)
	return &resp, nil
}

func (s *summaryService) ListForCaregiver(ctx context.Context, caller Caller, caregiverID string) ([]dto.WeeklySummaryResponse, error) {
	if err := s.checkOwner(ctx, caller, caregiverID); err != nil {
		return nil, err
	}
	summaries, err := s.repo.WeeklySummary.ListByCaregiver(ctx, caregiverID, summaryListLimit)
	if err != nil {
		s.logger.Error("查询周汇总列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.WeeklySummaryResponse, 0, len(summaries))
	for i := range summaries {
		result = append(result, toSummaryResponse(&summaries[i]))
	}
	return result, nil
}

// checkOwner 护工仅能查看本人汇总
func (s *summaryService) checkOwner(ctx context.Context, caller Caller, caregiverID string) error {
	if caller.IsStaff() || caller.UserID == caregiverID {
		return nil
	}
	return s.guard.deny(ctx, caller, auditRef{}, "You do not have permission to view this summary.",
		map[string]interface{}{"caregiver_id": caregiverID})
}

// ── 周汇总计算 ──

// weeklyCalculator 从出勤记录整周重算汇总，整行覆盖写入
type weeklyCalculator struct {
	loc *time.Location
}

// recompute 使用传入的 repo 执行，调用方负责事务边界
func (c weeklyCalculator) recompute(ctx context.Context, repo *repository.Repository, caregiverID string, day time.Time) (*model.WeeklySummary, error) {
	weekStart := model.WeekStartOf(day, c.loc)
	visits, err := repo.Visit.ListCompleted(ctx, caregiverID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	total, count := sumHours(visits)
	summary := &model.WeeklySummary{
		CaregiverID: caregiverID,
		WeekStart:   model.SummaryDate(weekStart),
		TotalHours:  total,
		TotalVisits: count,
	}
	if err := repo.WeeklySummary.Upsert(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// sumHours 累加已完成出勤的时长
func sumHours(visits []model.Visit) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for i := range visits {
		if !visits[i].DurationHours.Valid {
			continue
		}
		total = total.Add(visits[i].DurationHours.Decimal)
		count++
	}
	return total, count
}

func toSummaryResponse(s *model.WeeklySummary) dto.WeeklySummaryResponse {
	start := time.Time(s.WeekStart)
	return dto.WeeklySummaryResponse{
		CaregiverID: s.CaregiverID,
		WeekStart:   start.Format(dateLayout),
		WeekEnd:     start.AddDate(0, 0, 6).Format(dateLayout),
		TotalHours:  s.TotalHours.StringFixed(2),
		TotalVisits: s.TotalVisits,
	}
}
