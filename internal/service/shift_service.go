package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

var (
	ErrShiftNotFound  = pkgerrors.NotFound("shift not found")
	ErrShiftConflict  = pkgerrors.Conflict("shift was modified by another request, reload and retry")
	ErrCaregiverRole  = pkgerrors.Validation("assigned user is not an active caregiver")
	ErrShiftHasVisits = pkgerrors.Conflict("this shift already has visits recorded by its caregiver and cannot be reassigned")
)

// 护工"我的排班"默认展示未来天数
const upcomingShiftDays = 14

// ShiftService 排班业务接口
type ShiftService interface {
	Create(ctx context.Context, caller Caller, req *dto.CreateShiftRequest) (*dto.ShiftResponse, error)
	Update(ctx context.Context, caller Caller, shiftID string, req *dto.UpdateShiftRequest) (*dto.ShiftResponse, error)
	Get(ctx context.Context, caller Caller, shiftID string) (*dto.ShiftResponse, error)
	List(ctx context.Context, caller Caller, req *dto.ShiftListRequest) ([]dto.ShiftResponse, int64, error)
	// ListMine 调用者即将开始的排班
	ListMine(ctx context.Context, caller Caller) ([]dto.ShiftResponse, error)
}

type shiftService struct {
	repo   *repository.Repository
	guard  *accessGuard
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewShiftService 创建 ShiftService 实例
func NewShiftService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) ShiftService {
	return &shiftService{
		repo:   repo,
		guard:  &accessGuard{repo: repo, logger: logger},
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

func (s *shiftService) Create(ctx context.Context, caller Caller, req *dto.CreateShiftRequest) (*dto.ShiftResponse, error) {
	if !caller.IsStaff() {
		return nil, s.guard.deny(ctx, caller, auditRef{ClientID: req.ClientID}, msgStaffOnly, nil)
	}

	start, err := parseTimestamp("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTimestamp("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	payRate, err := parseRate("pay_rate", req.PayRate)
	if err != nil {
		return nil, err
	}
	billRate, err := parseRate("bill_rate", req.BillRate)
	if err != nil {
		return nil, err
	}

	caregiver, err := s.checkCaregiver(ctx, req.CaregiverID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Client.GetByID(ctx, req.ClientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		s.logger.Error("查询客户失败", zap.Error(err))
		return nil, err
	}

	shift := &model.Shift{
		CaregiverID: req.CaregiverID,
		ClientID:    req.ClientID,
		StartTime:   start.UTC(),
		EndTime:     end.UTC(),
		PayRate:     payRate,
		BillRate:    billRate,
		Notes:       strings.TrimSpace(req.Notes),
	}
	shift.CreatedBy = strPtr(caller.UserID)
	shift.UpdatedBy = strPtr(caller.UserID)
	if err := shift.Validate(); err != nil {
		return nil, err
	}
	shift.Derive()

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Shift.Create(ctx, shift); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditShiftCreate,
			auditRef{ShiftID: shift.ShiftID, ClientID: shift.ClientID},
			map[string]interface{}{
				"caregiver_id": shift.CaregiverID,
				"start_time":   shift.StartTime.Format(time.RFC3339),
				"end_time":     shift.EndTime.Format(time.RFC3339),
			})
	})
	if err != nil {
		s.logger.Error("创建排班失败", zap.Error(err))
		return nil, err
	}
	shift.Caregiver = caregiver

	s.logger.Info("排班已创建",
		zap.String("shift_id", shift.ShiftID),
		zap.String("caregiver_id", shift.CaregiverID),
		zap.String("operator", caller.UserID),
	)
	resp := toShiftResponse(shift)
	return &resp, nil
}

func (s *shiftService) Update(ctx context.Context, caller Caller, shiftID string, req *dto.UpdateShiftRequest) (*dto.ShiftResponse, error) {
	if !caller.IsStaff() {
		return nil, s.guard.deny(ctx, caller, auditRef{ShiftID: shiftID}, msgStaffOnly, nil)
	}

	shift, err := s.repo.Shift.GetByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		s.logger.Error("查询排班失败", zap.Error(err))
		return nil, err
	}
	if shift.Version != req.Version {
		return nil, ErrShiftConflict
	}

	oldCaregiverID := shift.CaregiverID
	reassigned := req.CaregiverID != nil && *req.CaregiverID != shift.CaregiverID
	if reassigned {
		caregiver, err := s.checkCaregiver(ctx, *req.CaregiverID)
		if err != nil {
			return nil, err
		}
		shift.CaregiverID = caregiver.UserID
		shift.Caregiver = caregiver
	}
	if req.StartTime != nil {
		t, err := parseTimestamp("start_time", *req.StartTime)
		if err != nil {
			return nil, err
		}
		shift.StartTime = t.UTC()
	}
	if req.EndTime != nil {
		t, err := parseTimestamp("end_time", *req.EndTime)
		if err != nil {
			return nil, err
		}
		shift.EndTime = t.UTC()
	}
	if req.PayRate != nil {
		if shift.PayRate, err = parseRate("pay_rate", *req.PayRate); err != nil {
			return nil, err
		}
	}
	if req.BillRate != nil {
		if shift.BillRate, err = parseRate("bill_rate", *req.BillRate); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		shift.Notes = strings.TrimSpace(*req.Notes)
	}
	shift.UpdatedBy = strPtr(caller.UserID)

	if err := shift.Validate(); err != nil {
		return nil, err
	}
	shift.Derive()

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		locked, err := tx.Shift.GetByIDForUpdate(ctx, shift.ShiftID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShiftNotFound
			}
			return err
		}
		if locked.Version != shift.Version {
			return ErrShiftConflict
		}
		// 已关联出勤的排班只能分配给记录这些出勤的护工
		if reassigned {
			conflict, err := tx.Visit.ExistsForShiftWithOtherCaregiver(ctx, shift.ShiftID, shift.CaregiverID)
			if err != nil {
				return err
			}
			if conflict {
				return ErrShiftHasVisits
			}
		}
		if err := tx.Shift.Update(ctx, shift); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrShiftConflict
			}
			return err
		}
		detail := map[string]interface{}{
			"caregiver_id": shift.CaregiverID,
			"start_time":   shift.StartTime.Format(time.RFC3339),
			"end_time":     shift.EndTime.Format(time.RFC3339),
			"version":      shift.Version,
		}
		if reassigned {
			detail["old_caregiver_id"] = oldCaregiverID
		}
		return writeAudit(ctx, tx, caller, model.AuditShiftUpdate,
			auditRef{ShiftID: shift.ShiftID, ClientID: shift.ClientID}, detail)
	})
	if err != nil {
		if pkgerrors.KindOf(err) == nil {
			s.logger.Error("更新排班失败", zap.Error(err))
		}
		return nil, err
	}

	resp := toShiftResponse(shift)
	return &resp, nil
}

func (s *shiftService) Get(ctx context.Context, caller Caller, shiftID string) (*dto.ShiftResponse, error) {
	shift, err := s.repo.Shift.GetByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		s.logger.Error("查询排班失败", zap.Error(err))
		return nil, err
	}
	if !caller.IsStaff() && shift.CaregiverID != caller.UserID {
		return nil, s.guard.deny(ctx, caller, auditRef{ShiftID: shiftID, ClientID: shift.ClientID},
			"You do not have permission to view this shift.", nil)
	}
	resp := toShiftResponse(shift)
	return &resp, nil
}

func (s *shiftService) List(ctx context.Context, caller Caller, req *dto.ShiftListRequest) ([]dto.ShiftResponse, int64, error) {
	filter := repository.ShiftFilter{CaregiverID: req.CaregiverID, ClientID: req.ClientID}
	if !caller.IsStaff() {
		if req.CaregiverID != "" && req.CaregiverID != caller.UserID {
			return nil, 0, s.guard.deny(ctx, caller, auditRef{}, "You do not have permission to view these shifts.",
				map[string]interface{}{"caregiver_id": req.CaregiverID})
		}
		filter.CaregiverID = caller.UserID
	}
	if req.Start != "" || req.End != "" {
		r, err := resolveRange(req.Start, req.End, s.loc, currentWeek(s.now(), s.loc))
		if err != nil {
			return nil, 0, err
		}
		from, to := r.Bounds()
		filter.From, filter.To = &from, &to
	}

	shifts, total, err := s.repo.Shift.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询排班列表失败", zap.Error(err))
		return nil, 0, err
	}
	return toShiftResponses(shifts), total, nil
}

func (s *shiftService) ListMine(ctx context.Context, caller Caller) ([]dto.ShiftResponse, error) {
	from := s.now()
	to := from.AddDate(0, 0, upcomingShiftDays)
	shifts, _, err := s.repo.Shift.List(ctx, repository.ShiftFilter{
		CaregiverID: caller.UserID,
		From:        &from,
		To:          &to,
	}, 0, 100)
	if err != nil {
		s.logger.Error("查询我的排班失败", zap.Error(err))
		return nil, err
	}
	return toShiftResponses(shifts), nil
}

// checkCaregiver 被分配用户必须是在职护工
func (s *shiftService) checkCaregiver(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询护工失败", zap.Error(err))
		return nil, err
	}
	if !user.IsActive || user.Role != model.RoleCaregiver {
		return nil, ErrCaregiverRole
	}
	return user, nil
}

// parseRate 费率为空表示未设置，负数直接拒绝
func parseRate(field, raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, pkgerrors.Validation(fmt.Sprintf("%s must be a number", field))
	}
	// 舍入前判断符号
	if d.IsNegative() {
		return decimal.NullDecimal{}, pkgerrors.Validation(fmt.Sprintf("%s cannot be negative", strings.ReplaceAll(field, "_", " ")))
	}
	return decimal.NewNullDecimal(d.Round(2)), nil
}

func toShiftResponse(s *model.Shift) dto.ShiftResponse {
	resp := dto.ShiftResponse{
		ID:            s.ShiftID,
		CaregiverID:   s.CaregiverID,
		ClientID:      s.ClientID,
		StartTime:     s.StartTime.Format(time.RFC3339),
		EndTime:       s.EndTime.Format(time.RFC3339),
		PayRate:       nullDecimalString(s.PayRate, 2),
		BillRate:      nullDecimalString(s.BillRate, 2),
		DurationHours: nullDecimalString(s.DurationHours, 2),
		TotalPay:      nullDecimalString(s.TotalPay, 2),
		TotalBill:     nullDecimalString(s.TotalBill, 2),
		Notes:         s.Notes,
		Version:       s.Version,
	}
	if s.Caregiver != nil {
		resp.Caregiver = &dto.UserBrief{ID: s.Caregiver.UserID, Name: s.Caregiver.FullName()}
	}
	return resp
}

func toShiftResponses(shifts []model.Shift) []dto.ShiftResponse {
	result := make([]dto.ShiftResponse, 0, len(shifts))
	for i := range shifts {
		result = append(result, toShiftResponse(&shifts[i]))
	}
	return result
}
