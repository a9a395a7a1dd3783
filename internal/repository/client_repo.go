package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/model"
)

// FamilyLinkConstraint 同一客户与用户仅允许一条关联
const FamilyLinkConstraint = "uk_family_client_user"

// ClientRepository 客户数据访问接口
type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	GetByID(ctx context.Context, id string) (*model.Client, error)
}

// FamilyLinkRepository 家属关联数据访问接口
type FamilyLinkRepository interface {
	Create(ctx context.Context, link *model.ClientFamilyMember) error
	// Get 查询指定客户与用户的关联，不存在时返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, clientID, userID string) (*model.ClientFamilyMember, error)
}

// ── Client Repository 实现 ──

type clientRepo struct {
	db *gorm.DB
}

func NewClientRepo(db *gorm.DB) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) Create(ctx context.Context, client *model.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (*model.Client, error) {
	var client model.Client
	if err := r.db.WithContext(ctx).Where("client_id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// ── FamilyLink Repository 实现 ──

type familyLinkRepo struct {
	db *gorm.DB
}

func NewFamilyLinkRepo(db *gorm.DB) FamilyLinkRepository {
	return &familyLinkRepo{db: db}
}

func (r *familyLinkRepo) Create(ctx context.Context, link *model.ClientFamilyMember) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *familyLinkRepo) Get(ctx context.Context, clientID, userID string) (*model.ClientFamilyMember, error) {
	var link model.ClientFamilyMember
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND user_id = ?", clientID, userID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}
