package service

import (
	"context"
	"errors"
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

// ── 出勤模块业务错误 ──

var (
	ErrVisitNotFound       = pkgerrors.NotFound("visit not found")
	ErrAlreadyClockedIn    = pkgerrors.Conflict("You are already clocked into another visit. Please clock out first.")
	ErrAlreadyClockedOut   = pkgerrors.Conflict("this visit has already been clocked out")
	ErrClockInInProgress   = pkgerrors.Conflict("a clock-in request is already being processed")
	ErrClientRequired      = pkgerrors.Validation("client is required")
	ErrShiftClientMismatch = pkgerrors.Validation("client does not match the shift's client")
	ErrEmptyComment        = pkgerrors.Validation("comment text cannot be empty")
	ErrMileageRequired     = pkgerrors.Validation("mileage is required")
)

const (
	msgShiftOtherCaregiver = "You cannot clock into a shift assigned to another caregiver."
	msgVisitOtherCaregiver = "You cannot modify a visit that belongs to another caregiver."
	msgVisitNoAccess       = "You do not have permission to view this visit."
	msgFamilyClock         = "Only caregivers can clock in or out."
	msgStaffOnly           = "Only administrators can perform this action."
)

// VisitService 出勤业务接口
//
// 所有写入在单个事务内完成：出勤行、周汇总重算、审计日志同提交同回滚
type VisitService interface {
	ClockIn(ctx context.Context, caller Caller, req *dto.ClockInRequest) (*dto.VisitResponse, error)
	ClockOut(ctx context.Context, caller Caller, visitID string, req *dto.ClockOutRequest) (*dto.VisitResponse, error)
	// GetActive 当前进行中的出勤，无则返回 nil
	GetActive(ctx context.Context, caller Caller) (*dto.VisitResponse, error)
	GetVisit(ctx context.Context, caller Caller, visitID string) (*dto.VisitResponse, error)
	ListVisits(ctx context.Context, caller Caller, req *dto.VisitListRequest) ([]dto.VisitResponse, int64, error)
	// AddMileage 护工为本人出勤补录里程，签到中或已签退均可
	AddMileage(ctx context.Context, caller Caller, visitID string, req *dto.MileageRequest) (*dto.VisitResponse, error)
	// UpdateVisit 管理员修正
	UpdateVisit(ctx context.Context, caller Caller, visitID string, req *dto.UpdateVisitRequest) (*dto.VisitResponse, error)
	DeleteVisit(ctx context.Context, caller Caller, visitID string) error
	AddComment(ctx context.Context, caller Caller, visitID string, req *dto.CommentRequest) (*dto.VisitCommentResponse, error)
	ListComments(ctx context.Context, caller Caller, visitID string) ([]dto.VisitCommentResponse, error)
}

type visitService struct {
	repo    *repository.Repository
	locker  ClockLocker
	lockTTL time.Duration
	calc    weeklyCalculator
	guard   *accessGuard
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

// NewVisitService 创建 VisitService 实例；locker 可为 nil
func NewVisitService(repo *repository.Repository, locker ClockLocker, loc *time.Location, lockTTL time.Duration, logger *zap.Logger) VisitService {
	return &visitService{
		repo:    repo,
		locker:  locker,
		lockTTL: lockTTL,
		calc:    weeklyCalculator{loc: loc},
		guard:   &accessGuard{repo: repo, logger: logger},
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
}

// ════════════════════════════════════════════════════════════
// ClockIn — 签到
// ════════════════════════════════════════════════════════════

func (s *visitService) ClockIn(ctx context.Context, caller Caller, req *dto.ClockInRequest) (*dto.VisitResponse, error) {
	if caller.Role == model.RoleFamily {
		return nil, s.guard.deny(ctx, caller, auditRef{ClientID: req.ClientID}, msgFamilyClock, nil)
	}

	geo := toGeoPoint(req.Location)
	if geo != nil {
		if err := geo.Validate(); err != nil {
			return nil, err
		}
	}

	// 1. 排班归属与客户
	clientID := req.ClientID
	var shift *model.Shift
	if req.ShiftID != "" {
		var err error
		shift, err = s.repo.Shift.GetByID(ctx, req.ShiftID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrShiftNotFound
			}
			s.logger.Error("查询排班失败", zap.Error(err))
			return nil, err
		}
		if shift.CaregiverID != caller.UserID {
			return nil, s.guard.deny(ctx, caller, auditRef{ShiftID: shift.ShiftID, ClientID: shift.ClientID},
				msgShiftOtherCaregiver, map[string]interface{}{"shift_caregiver_id": shift.CaregiverID})
		}
		if clientID == "" {
			clientID = shift.ClientID
		} else if clientID != shift.ClientID {
			return nil, ErrShiftClientMismatch
		}
	}
	if clientID == "" {
		return nil, ErrClientRequired
	}
	if _, err := s.repo.Client.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		s.logger.Error("查询客户失败", zap.Error(err))
		return nil, err
	}

	// 2. 防重复提交
	release, err := s.acquireClockLock(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	visit := &model.Visit{
		CaregiverID: strPtr(caller.UserID),
		ClientID:    clientID,
		ShiftID:     strPtr(req.ShiftID),
		ClockIn:     s.now().UTC(),
		Notes:       strings.TrimSpace(req.Notes),
	}
	visit.SetClockInLocation(geo)

	// 3. 事务：锁定护工行 → 检查进行中出勤 → 写入 → 重算 → 审计
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.User.GetByIDForUpdate(ctx, caller.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		active, err := tx.Visit.GetActiveByCaregiver(ctx, caller.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if active != nil {
			return ErrAlreadyClockedIn
		}

		// 锁定排班后复核归属，与排班改派串行
		if shift != nil {
			locked, err := tx.Shift.GetByIDForUpdate(ctx, shift.ShiftID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrShiftNotFound
				}
				return err
			}
			if locked.CaregiverID != caller.UserID {
				return s.guard.deny(ctx, caller, auditRef{ShiftID: locked.ShiftID, ClientID: locked.ClientID},
					msgShiftOtherCaregiver, map[string]interface{}{"shift_caregiver_id": locked.CaregiverID})
			}
			shift = locked
		}
		if err := validateVisit(visit, shift); err != nil {
			return err
		}
		if err := tx.Visit.Create(ctx, visit); err != nil {
			if repository.IsUniqueViolation(err, repository.ActiveVisitConstraint) {
				return ErrAlreadyClockedIn
			}
			return err
		}
		if _, err := s.calc.recompute(ctx, tx, caller.UserID, visit.ClockIn); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditClockIn,
			auditRef{VisitID: visit.VisitID, ShiftID: req.ShiftID, ClientID: clientID},
			map[string]interface{}{"clock_in": visit.ClockIn.Format(time.RFC3339)})
	})
	if err != nil {
		s.logFailure("签到失败", caller, err)
		return nil, err
	}

	s.logger.Info("护工签到",
		zap.String("caregiver_id", caller.UserID),
		zap.String("visit_id", visit.VisitID),
		zap.String("client_id", clientID),
	)
	resp := toVisitResponse(visit)
	return &resp, nil
}

// acquireClockLock 获取打卡锁；Redis 不可用时降级为仅依赖数据库行锁
func (s *visitService) acquireClockLock(ctx context.Context, userID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	key := "clock:" + userID
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		s.logger.Warn("获取打卡锁失败，降级处理", zap.String("user_id", userID), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, ErrClockInInProgress
	}
	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("释放打卡锁失败", zap.String("user_id", userID), zap.Error(err))
		}
	}, nil
}

// ════════════════════════════════════════════════════════════
// ClockOut — 签退
// ════════════════════════════════════════════════════════════

func (s *visitService) ClockOut(ctx context.Context, caller Caller, visitID string, req *dto.ClockOutRequest) (*dto.VisitResponse, error) {
	mileage, err := model.ParseMileage(req.MileageText())
	if err != nil {
		return nil, err
	}
	geo := toGeoPoint(req.Location)
	if geo != nil {
		if err := geo.Validate(); err != nil {
			return nil, err
		}
	}

	// 归属检查在事务外完成，拒绝审计不随事务回滚
	existing, err := s.repo.Visit.GetByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitNotFound
		}
		s.logger.Error("查询出勤失败", zap.Error(err))
		return nil, err
	}
	if !existing.BelongsTo(caller.UserID) {
		return nil, s.guard.deny(ctx, caller, auditRef{VisitID: visitID, ClientID: existing.ClientID}, msgVisitOtherCaregiver, nil)
	}

	var visit *model.Visit
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		visit, err = tx.Visit.GetByIDForUpdate(ctx, visitID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVisitNotFound
			}
			return err
		}
		if !visit.IsActive() {
			return ErrAlreadyClockedOut
		}

		now := s.now().UTC()
		visit.ClockOut = &now
		visit.ComputeDuration()
		if mileage.Valid {
			visit.Mileage = mileage
		}
		visit.SetClockOutLocation(geo)
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			visit.Notes = notes
		}
		if err := visit.Validate(); err != nil {
			return err
		}
		if err := tx.Visit.Update(ctx, visit); err != nil {
			return err
		}
		if _, err := s.calc.recompute(ctx, tx, caller.UserID, visit.ClockIn); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditClockOut,
			auditRef{VisitID: visit.VisitID, ShiftID: derefStr(visit.ShiftID), ClientID: visit.ClientID},
			map[string]interface{}{
				"duration_hours": visit.DurationHours.Decimal.StringFixed(2),
				"mileage":        nullDecimalString(visit.Mileage, 1),
			})
	})
	if err != nil {
		s.logFailure("签退失败", caller, err)
		return nil, err
	}

	s.logger.Info("护工签退",
		zap.String("caregiver_id", caller.UserID),
		zap.String("visit_id", visit.VisitID),
		zap.String("duration_hours", visit.DurationHours.Decimal.StringFixed(2)),
	)
	visit.Client = existing.Client
	resp := toVisitResponse(visit)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// AddMileage — 补录里程
// ════════════════════════════════════════════════════════════

func (s *visitService) AddMileage(ctx context.Context, caller Caller, visitID string, req *dto.MileageRequest) (*dto.VisitResponse, error) {
	mileage, err := model.ParseMileage(req.MileageText())
	if err != nil {
		return nil, err
	}
	if !mileage.Valid {
		return nil, ErrMileageRequired
	}

	existing, err := s.repo.Visit.GetByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitNotFound
		}
		s.logger.Error("查询出勤失败", zap.Error(err))
		return nil, err
	}
	if !existing.BelongsTo(caller.UserID) {
		return nil, s.guard.deny(ctx, caller, auditRef{VisitID: visitID, ClientID: existing.ClientID}, msgVisitOtherCaregiver, nil)
	}

	var visit *model.Visit
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		visit, err = tx.Visit.GetByIDForUpdate(ctx, visitID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVisitNotFound
			}
			return err
		}
		old := nullDecimalString(visit.Mileage, 1)
		visit.Mileage = mileage
		if err := visit.Validate(); err != nil {
			return err
		}
		if err := tx.Visit.Update(ctx, visit); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditVisitUpdate,
			auditRef{VisitID: visit.VisitID, ShiftID: derefStr(visit.ShiftID), ClientID: visit.ClientID},
			map[string]interface{}{
				"old_mileage": old,
				"mileage":     nullDecimalString(visit.Mileage, 1),
			})
	})
	if err != nil {
		s.logFailure("补录里程失败", caller, err)
		return nil, err
	}

	s.logger.Info("里程已补录",
		zap.String("visit_id", visitID),
		zap.String("caregiver_id", caller.UserID),
		zap.String("mileage", visit.Mileage.Decimal.StringFixed(1)),
	)
	visit.Client = existing.Client
	resp := toVisitResponse(visit)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *visitService) GetActive(ctx context.Context, caller Caller) (*dto.VisitResponse, error) {
	visit, err := s.repo.Visit.GetActiveByCaregiver(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询进行中出勤失败", zap.Error(err))
		return nil, err
	}
	resp := toVisitResponse(visit)
	return &resp, nil
}

func (s *visitService) GetVisit(ctx context.Context, caller Caller, visitID string) (*dto.VisitResponse, error) {
	visit, err := s.loadVisit(ctx, caller, visitID)
	if err != nil {
		return nil, err
	}
	resp := toVisitResponse(visit)
	return &resp, nil
}

func (s *visitService) ListVisits(ctx context.Context, caller Caller, req *dto.VisitListRequest) ([]dto.VisitResponse, int64, error) {
	caregiverID := caller.UserID
	if req.CaregiverID != "" && req.CaregiverID != caller.UserID {
		if !caller.IsStaff() {
			return nil, 0, s.guard.deny(ctx, caller, auditRef{}, msgVisitNoAccess,
				map[string]interface{}{"caregiver_id": req.CaregiverID})
		}
		caregiverID = req.CaregiverID
	}

	r, err := resolveRange(req.Start, req.End, s.loc, currentWeek(s.now(), s.loc))
	if err != nil {
		return nil, 0, err
	}
	from, to := r.Bounds()

	visits, total, err := s.repo.Visit.ListByCaregiver(ctx, caregiverID, from, to, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询出勤列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.VisitResponse, 0, len(visits))
	for i := range visits {
		result = append(result, toVisitResponse(&visits[i]))
	}
	return result, total, nil
}

// loadVisit 读取出勤并校验可见性：本人或管理员
func (s *visitService) loadVisit(ctx context.Context, caller Caller, visitID string) (*model.Visit, error) {
	visit, err := s.repo.Visit.GetByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitNotFound
		}
		s.logger.Error("查询出勤失败", zap.Error(err))
		return nil, err
	}
	if !caller.IsStaff() && !visit.BelongsTo(caller.UserID) {
		return nil, s.guard.deny(ctx, caller, auditRef{VisitID: visitID, ClientID: visit.ClientID}, msgVisitNoAccess, nil)
	}
	return visit, nil
}

// ════════════════════════════════════════════════════════════
// 管理员修正
// ════════════════════════════════════════════════════════════

func (s *visitService) UpdateVisit(ctx context.Context, caller Caller, visitID string, req *dto.UpdateVisitRequest) (*dto.VisitResponse, error) {
	if !caller.IsStaff() {
		return nil, s.guard.deny(ctx, caller, auditRef{VisitID: visitID}, msgStaffOnly, nil)
	}

	// 先解析全部输入，任何一项不合法都不落库
	var (
		clockIn, clockOut *time.Time
		mileage           decimal.NullDecimal
	)
	if req.ClockIn != nil {
		t, err := parseTimestamp("clock_in", *req.ClockIn)
		if err != nil {
			return nil, err
		}
		clockIn = &t
	}
	if req.ClockOut != nil {
		t, err := parseTimestamp("clock_out", *req.ClockOut)
		if err != nil {
			return nil, err
		}
		clockOut = &t
	}
	mileageText, mileageSet := req.MileageText()
	if mileageSet {
		m, err := model.ParseMileage(mileageText)
		if err != nil {
			return nil, err
		}
		mileage = m
	}

	var visit *model.Visit
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		visit, err = tx.Visit.GetByIDForUpdate(ctx, visitID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVisitNotFound
			}
			return err
		}
		oldClockIn := visit.ClockIn

		if clockIn != nil {
			visit.ClockIn = clockIn.UTC()
		}
		if clockOut != nil {
			out := clockOut.UTC()
			visit.ClockOut = &out
		}
		if mileageSet {
			visit.Mileage = mileage
		}
		if req.Notes != nil {
			visit.Notes = strings.TrimSpace(*req.Notes)
		}

		var shift *model.Shift
		switch {
		case req.ClearShift:
			visit.ShiftID = nil
		case req.ShiftID != nil:
			visit.ShiftID = strPtr(*req.ShiftID)
		}
		if visit.ShiftID != nil {
			shift, err = tx.Shift.GetByID(ctx, *visit.ShiftID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrShiftNotFound
				}
				return err
			}
		}

		visit.ComputeDuration()
		if err := validateVisit(visit, shift); err != nil {
			return err
		}
		if err := tx.Visit.Update(ctx, visit); err != nil {
			if repository.IsUniqueViolation(err, repository.ActiveVisitConstraint) {
				return ErrAlreadyClockedIn
			}
			return err
		}

		if visit.CaregiverID != nil {
			if _, err := s.calc.recompute(ctx, tx, *visit.CaregiverID, visit.ClockIn); err != nil {
				return err
			}
			// 跨周修正时旧周也需重算
			if !model.WeekStartOf(oldClockIn, s.loc).Equal(model.WeekStartOf(visit.ClockIn, s.loc)) {
				if _, err := s.calc.recompute(ctx, tx, *visit.CaregiverID, oldClockIn); err != nil {
					return err
				}
			}
		}

		return writeAudit(ctx, tx, caller, model.AuditVisitUpdate,
			auditRef{VisitID: visit.VisitID, ShiftID: derefStr(visit.ShiftID), ClientID: visit.ClientID},
			map[string]interface{}{
				"old_clock_in":   oldClockIn.Format(time.RFC3339),
				"clock_in":       visit.ClockIn.Format(time.RFC3339),
				"duration_hours": nullDecimalString(visit.DurationHours, 2),
				"mileage":        nullDecimalString(visit.Mileage, 1),
			})
	})
	if err != nil {
		s.logFailure("修正出勤失败", caller, err)
		return nil, err
	}

	s.logger.Info("出勤已修正", zap.String("visit_id", visitID), zap.String("operator", caller.UserID))
	resp := toVisitResponse(visit)
	return &resp, nil
}

func (s *visitService) DeleteVisit(ctx context.Context, caller Caller, visitID string) error {
	if !caller.IsStaff() {
		return s.guard.deny(ctx, caller, auditRef{VisitID: visitID}, msgStaffOnly, nil)
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		visit, err := tx.Visit.GetByIDForUpdate(ctx, visitID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVisitNotFound
			}
			return err
		}
		if err := tx.Visit.Delete(ctx, visitID); err != nil {
			return err
		}
		if visit.CaregiverID != nil {
			if _, err := s.calc.recompute(ctx, tx, *visit.CaregiverID, visit.ClockIn); err != nil {
				return err
			}
		}
		// 出勤行已删除，审计仅在 detail 中保留编号
		return writeAudit(ctx, tx, caller, model.AuditVisitDelete,
			auditRef{ShiftID: derefStr(visit.ShiftID), ClientID: visit.ClientID},
			map[string]interface{}{
				"visit_id":     visitID,
				"caregiver_id": derefStr(visit.CaregiverID),
				"clock_in":     visit.ClockIn.Format(time.RFC3339),
			})
	})
	if err != nil {
		s.logFailure("删除出勤失败", caller, err)
		return err
	}
	s.logger.Info("出勤已删除", zap.String("visit_id", visitID), zap.String("operator", caller.UserID))
	return nil
}

// ════════════════════════════════════════════════════════════
// 备注
// ════════════════════════════════════════════════════════════

func (s *visitService) AddComment(ctx context.Context, caller Caller, visitID string, req *dto.CommentRequest) (*dto.VisitCommentResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	visit, err := s.loadVisit(ctx, caller, visitID)
	if err != nil {
		return nil, err
	}

	comment := &model.VisitComment{
		VisitID:  visit.VisitID,
		AuthorID: strPtr(caller.UserID),
		Text:     text,
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.VisitComment.Create(ctx, comment); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller, model.AuditVisitComment,
			auditRef{VisitID: visit.VisitID, ClientID: visit.ClientID},
			map[string]interface{}{"comment_id": comment.CommentID})
	})
	if err != nil {
		s.logFailure("添加出勤备注失败", caller, err)
		return nil, err
	}
	resp := toCommentResponse(comment)
	return &resp, nil
}

func (s *visitService) ListComments(ctx context.Context, caller Caller, visitID string) ([]dto.VisitCommentResponse, error) {
	if _, err := s.loadVisit(ctx, caller, visitID); err != nil {
		return nil, err
	}
	comments, err := s.repo.VisitComment.ListByVisit(ctx, visitID)
	if err != nil {
		s.logger.Error("查询出勤备注失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.VisitCommentResponse, 0, len(comments))
	for i := range comments {
		result = append(result, toCommentResponse(&comments[i]))
	}
	return result, nil
}

// logFailure 业务错误不记 Error 级日志
func (s *visitService) logFailure(msg string, caller Caller, err error) {
	if pkgerrors.KindOf(err) != nil {
		return
	}
	s.logger.Error(msg, zap.String("user_id", caller.UserID), zap.Error(err))
}

// ── 校验与转换 ──

// validateVisit 出勤通用校验：里程、定位、时间顺序与排班归属
func validateVisit(v *model.Visit, shift *model.Shift) error {
	if err := v.Validate(); err != nil {
		return err
	}
	return v.CheckShiftLinkage(shift)
}

func toGeoPoint(req *dto.GeoPointRequest) *model.GeoPoint {
	if req == nil {
		return nil
	}
	return &model.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude, Accuracy: req.Accuracy}
}

func geoResponse(lat, lng, acc *float64) *dto.GeoPointRequest {
	if lat == nil && lng == nil {
		return nil
	}
	return &dto.GeoPointRequest{Latitude: lat, Longitude: lng, Accuracy: acc}
}

func nullDecimalString(d decimal.NullDecimal, places int32) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(places)
	return &s
}

func toVisitResponse(v *model.Visit) dto.VisitResponse {
	resp := dto.VisitResponse{
		ID:            v.VisitID,
		CaregiverID:   derefStr(v.CaregiverID),
		ClientID:      v.ClientID,
		ShiftID:       derefStr(v.ShiftID),
		ClockIn:       v.ClockIn.Format(time.RFC3339),
		DurationHours: nullDecimalString(v.DurationHours, 2),
		Mileage:       nullDecimalString(v.Mileage, 1),
		ClockInGeo:    geoResponse(v.ClockInLat, v.ClockInLng, v.ClockInAccuracy),
		ClockOutGeo:   geoResponse(v.ClockOutLat, v.ClockOutLng, v.ClockOutAccuracy),
		Notes:         v.Notes,
		Active:        v.IsActive(),
	}
	if v.ClockOut != nil {
		out := v.ClockOut.Format(time.RFC3339)
		resp.ClockOut = &out
	}
	if v.Client != nil {
		resp.ClientName = v.Client.FullName()
	}
	return resp
}

func toCommentResponse(c *model.VisitComment) dto.VisitCommentResponse {
	resp := dto.VisitCommentResponse{
		ID:        c.CommentID,
		VisitID:   c.VisitID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
	if c.Author != nil {
		resp.Author = &dto.UserBrief{ID: c.Author.UserID, Name: c.Author.FullName()}
	}
	return resp
}
