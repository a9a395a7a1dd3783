package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

const minPasswordLen = 8

var (
	ErrUsernameTaken     = pkgerrors.Conflict("username already exists")
	ErrFamilyLinkExists  = pkgerrors.Conflict("this family member is already linked to the client")
	ErrNotFamilyAccount  = pkgerrors.Validation("only family accounts can be linked to a client")
	ErrPasswordTooShort  = pkgerrors.Validation("password must be at least 8 characters")
	ErrClientNameMissing = pkgerrors.Validation("client first and last name are required")
)

var knownRoles = map[string]bool{
	model.RoleAdmin:     true,
	model.RoleStaff:     true,
	model.RoleCaregiver: true,
	model.RoleFamily:    true,
}

// DirectoryService 账号、客户与家属关联的维护（管理命令使用）
type DirectoryService interface {
	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	// SetUserActive 启用或停用账号；停用后无法登录，历史出勤保留
	SetUserActive(ctx context.Context, username string, active bool) (*dto.UserResponse, error)
	CreateClient(ctx context.Context, req *dto.CreateClientRequest) (*dto.ClientResponse, error)
	LinkFamily(ctx context.Context, req *dto.LinkFamilyRequest) (*dto.FamilyLinkResponse, error)
}

type directoryService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewDirectoryService 创建 DirectoryService 实例
func NewDirectoryService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) DirectoryService {
	return &directoryService{repo: repo, loc: loc, logger: logger, now: time.Now}
}

func (s *directoryService) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || utf8.RuneCountInString(username) > 150 {
		return nil, pkgerrors.Validation("username is required and cannot exceed 150 characters")
	}
	role := req.Role
	if role == "" {
		role = model.RoleCaregiver
	}
	if !knownRoles[role] {
		return nil, pkgerrors.Validation("unknown role " + role)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Username:     username,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err, repository.UsernameConstraint) {
			return nil, ErrUsernameTaken
		}
		s.logger.Error("创建用户失败", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户已创建", zap.String("user_id", user.UserID), zap.String("role", role))
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *directoryService) SetUserActive(ctx context.Context, username string, active bool) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.IsActive = active
	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新用户状态失败", zap.String("user_id", user.UserID), zap.Error(err))
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *directoryService) CreateClient(ctx context.Context, req *dto.CreateClientRequest) (*dto.ClientResponse, error) {
	client := &model.Client{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Street:    strings.TrimSpace(req.Street),
		City:      strings.TrimSpace(req.City),
		State:     strings.TrimSpace(req.State),
		ZipCode:   strings.TrimSpace(req.ZipCode),
		Diagnosis: req.Diagnosis,
		CarePlan:  req.CarePlan,
		Active:    true,
	}
	if client.FirstName == "" || client.LastName == "" {
		return nil, ErrClientNameMissing
	}
	if req.DateOfBirth != "" {
		dob, err := parseDate(req.DateOfBirth, s.loc)
		if err != nil {
			return nil, err
		}
		if dob.After(s.now()) {
			return nil, pkgerrors.Validation("date of birth cannot be in the future")
		}
		d := model.SummaryDate(dob)
		client.DateOfBirth = &d
	}

	if err := s.repo.Client.Create(ctx, client); err != nil {
		s.logger.Error("创建客户失败", zap.Error(err))
		return nil, err
	}
	return toClientResponse(client), nil
}

func (s *directoryService) LinkFamily(ctx context.Context, req *dto.LinkFamilyRequest) (*dto.FamilyLinkResponse, error) {
	if _, err := s.repo.Client.GetByID(ctx, req.ClientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	user, err := s.repo.User.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Role != model.RoleFamily {
		return nil, ErrNotFamilyAccount
	}

	link := &model.ClientFamilyMember{
		ClientID:        req.ClientID,
		UserID:          user.UserID,
		Relationship:    strings.TrimSpace(req.Relationship),
		CanViewSchedule: req.CanViewSchedule,
	}
	if req.Verified {
		now := s.now().UTC()
		link.VerifiedAt = &now
	}
	if err := s.repo.FamilyLink.Create(ctx, link); err != nil {
		if repository.IsUniqueViolation(err, repository.FamilyLinkConstraint) {
			return nil, ErrFamilyLinkExists
		}
		s.logger.Error("创建家属关联失败", zap.Error(err))
		return nil, err
	}

	return &dto.FamilyLinkResponse{
		ID:              link.LinkID,
		ClientID:        link.ClientID,
		UserID:          link.UserID,
		Relationship:    link.Relationship,
		CanViewSchedule: link.CanViewSchedule,
		Verified:        link.IsVerified(),
	}, nil
}

func toClientResponse(c *model.Client) *dto.ClientResponse {
	resp := &dto.ClientResponse{
		ID:      c.ClientID,
		Name:    c.FullName(),
		Address: c.FullAddress(),
		Active:  c.Active,
	}
	if c.DateOfBirth != nil {
		resp.DateOfBirth = time.Time(*c.DateOfBirth).Format(dateLayout)
	}
	return resp
}
