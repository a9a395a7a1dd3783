package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// 路由角色守卫拒绝时的提示
const msgRoleDenied = "You do not have permission to perform this action."

// AuditService 审计日志查询接口（业务写入由各业务服务完成）
type AuditService interface {
	List(ctx context.Context, req *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error)
	// RecordDenial 记录路由层角色守卫的拒绝
	RecordDenial(ctx context.Context, userID, role, ip, route string)
}

type auditService struct {
	repo   *repository.Repository
	guard  *accessGuard
	logger *zap.Logger
}

// NewAuditService 创建 AuditService 实例
func NewAuditService(repo *repository.Repository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		guard:  &accessGuard{repo: repo, logger: logger},
		logger: logger,
	}
}

func (s *auditService) RecordDenial(ctx context.Context, userID, role, ip, route string) {
	caller := Caller{UserID: userID, Role: role, IP: ip}
	_ = s.guard.deny(ctx, caller, auditRef{}, msgRoleDenied, map[string]interface{}{"route": route, "role": role})
}

func (s *auditService) List(ctx context.Context, req *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error) {
	logs, total, err := s.repo.AuditLog.List(ctx, repository.AuditLogFilter{
		Action:  req.Action,
		ActorID: req.ActorID,
		VisitID: req.VisitID,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询审计日志失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AuditLogResponse, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		result = append(result, dto.AuditLogResponse{
			ID:        l.AuditID,
			ActorID:   derefStr(l.ActorID),
			Action:    l.Action,
			VisitID:   derefStr(l.VisitID),
			ShiftID:   derefStr(l.ShiftID),
			ClientID:  derefStr(l.ClientID),
			Detail:    json.RawMessage(l.Detail),
			IP:        l.IP,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

// ── 审计写入 ──

// auditRef 审计条目关联的业务对象
type auditRef struct {
	VisitID  string
	ShiftID  string
	ClientID string
}

// writeAudit 追加一条审计日志；传入事务内的 repo 时与业务写入同提交同回滚
func writeAudit(ctx context.Context, repo *repository.Repository, caller Caller, action string, ref auditRef, detail map[string]interface{}) error {
	if detail == nil {
		detail = map[string]interface{}{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	return repo.AuditLog.Create(ctx, &model.AuditLog{
		ActorID:  strPtr(caller.UserID),
		Action:   action,
		VisitID:  strPtr(ref.VisitID),
		ShiftID:  strPtr(ref.ShiftID),
		ClientID: strPtr(ref.ClientID),
		Detail:   datatypes.JSON(raw),
		IP:       caller.IP,
	})
}

// accessGuard 统一的权限拒绝出口：记录审计后返回权限错误
type accessGuard struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// deny 在事务之外写入拒绝记录，写入失败仅记日志，不影响拒绝结果
func (g *accessGuard) deny(ctx context.Context, caller Caller, ref auditRef, message string, detail map[string]interface{}) error {
	if detail == nil {
		detail = map[string]interface{}{}
	}
	detail["reason"] = message
	if err := writeAudit(ctx, g.repo, caller, model.AuditPermissionDenied, ref, detail); err != nil {
		g.logger.Error("写入权限拒绝审计失败",
			zap.String("user_id", caller.UserID),
			zap.Error(err),
		)
	}
	g.logger.Warn("权限拒绝",
		zap.String("user_id", caller.UserID),
		zap.String("role", caller.Role),
		zap.String("reason", message),
	)
	return pkgerrors.Authorization(message)
}
