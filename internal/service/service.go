package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hcunanan79/COREcare-access/config"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	"github.com/hcunanan79/COREcare-access/pkg/jwt"
	"github.com/hcunanan79/COREcare-access/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth      AuthService
	Visit     VisitService
	Summary   SummaryService
	Shift     ShiftService
	Payroll   PayrollService
	Calendar  CalendarService
	Audit     AuditService
	Directory DirectoryService
}

// NewService 创建 Service 聚合
// rdb 可为 nil：此时打卡锁与 Token 黑名单降级为不可用
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	var (
		locker    ClockLocker
		blacklist TokenBlacklist
	)
	if rdb != nil {
		locker = rdb
		blacklist = rdb
	}

	loc := cfg.Agency.Location()
	return &Service{
		Auth:      NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		Visit:     NewVisitService(repo, locker, loc, cfg.Agency.ClockLockTTL, logger),
		Summary:   NewSummaryService(repo, loc, logger),
		Shift:     NewShiftService(repo, loc, logger),
		Payroll:   NewPayrollService(repo, loc, logger),
		Calendar:  NewCalendarService(repo, loc, cfg.Agency.ScheduleWindowDays, logger),
		Audit:     NewAuditService(repo, logger),
		Directory: NewDirectoryService(repo, loc, logger),
	}
}

// Caller 当前请求的调用方身份，由 Handler 从认证上下文中构造
type Caller struct {
	UserID string
	Role   string
	IP     string
}

// IsStaff 是否为管理类角色
func (c Caller) IsStaff() bool { return model.IsStaffRole(c.Role) }

// ClockLocker 打卡分布式锁
type ClockLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// TokenBlacklist Token 黑名单
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
