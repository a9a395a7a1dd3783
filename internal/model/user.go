package model

import "strings"

// 用户角色
const (
	RoleAdmin     = "admin"
	RoleStaff     = "staff"
	RoleCaregiver = "caregiver"
	RoleFamily    = "family"
)

// IsStaffRole 管理类角色（admin / staff）
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// User 用户表 — 对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string `gorm:"type:varchar(150);not null;uniqueIndex"         json:"username"`
	FirstName    string `gorm:"type:varchar(150);not null;default:''"          json:"first_name"`
	LastName     string `gorm:"type:varchar(150);not null;default:''"          json:"last_name"`
	Email        string `gorm:"type:varchar(255);not null;default:''"          json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'caregiver'"  json:"role"`
	IsActive     bool   `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// FullName 姓名，缺失时回退为用户名
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// ShortName 名 + 姓首字母，如 "Jane C."
func (u *User) ShortName() string {
	initial := ""
	if u.LastName != "" {
		initial = string([]rune(u.LastName)[0])
	}
	return strings.TrimSpace(u.FirstName+" "+initial) + "."
}
