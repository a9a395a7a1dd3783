package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User            UserRepository
	Client          ClientRepository
	FamilyLink      FamilyLinkRepository
	Shift           ShiftRepository
	Visit           VisitRepository
	VisitComment    VisitCommentRepository
	WeeklySummary   WeeklySummaryRepository
	CalendarEvent   CalendarEventRepository
	EventAttachment EventAttachmentRepository
	AuditLog        AuditLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:              db,
		User:            NewUserRepo(db),
		Client:          NewClientRepo(db),
		FamilyLink:      NewFamilyLinkRepo(db),
		Shift:           NewShiftRepo(db),
		Visit:           NewVisitRepo(db),
		VisitComment:    NewVisitCommentRepo(db),
		WeeklySummary:   NewWeeklySummaryRepo(db),
		CalendarEvent:   NewCalendarEventRepo(db),
		EventAttachment: NewEventAttachmentRepo(db),
		AuditLog:        NewAuditLogRepo(db),
	}
}

// BeginTx 开启事务；db 为空（单元测试注入 mock）时返回 nil
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 基于事务连接构造新的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个事务中执行 fn，fn 返回错误或 panic 时回滚
// 无底层连接时直接在当前聚合上执行
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) (err error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	if tx == nil {
		return fn(r)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(r.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// ── PostgreSQL 错误识别 ──

const pgUniqueViolation = "23505"

// IsUniqueViolation 是否违反唯一约束；constraint 非空时需同时匹配约束名
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.Is(err, gorm.ErrDuplicatedKey)
	}
	if pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
