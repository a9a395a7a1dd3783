package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Client 服务对象 — 对应 clients
type Client struct {
	ClientID    string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"client_id"`
	FirstName   string          `gorm:"type:varchar(100);not null;default:''"          json:"first_name"`
	LastName    string          `gorm:"type:varchar(100);not null;default:''"          json:"last_name"`
	DateOfBirth *datatypes.Date `gorm:"type:date"                                      json:"date_of_birth,omitempty"`
	Street      string          `gorm:"type:varchar(255);not null;default:''"          json:"street"`
	City        string          `gorm:"type:varchar(100);not null;default:''"          json:"city"`
	State       string          `gorm:"type:varchar(50);not null;default:''"           json:"state"`
	ZipCode     string          `gorm:"type:varchar(20);not null;default:''"           json:"zip_code"`
	Diagnosis   string          `gorm:"type:text;not null;default:''"                  json:"diagnosis"`
	CarePlan    string          `gorm:"type:text;not null;default:''"                  json:"care_plan"`
	Active      bool            `gorm:"not null;default:true"                          json:"active"`
	BaseModel
}

// TableName 指定表名
func (Client) TableName() string { return "clients" }

// FullName 客户姓名
func (c *Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// FullAddress 拼接地址，忽略空字段
func (c *Client) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.Street, c.City, c.State, c.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ClientFamilyMember 家属与客户的关联 — 对应 client_family_members
type ClientFamilyMember struct {
	LinkID          string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"link_id"`
	ClientID        string     `gorm:"type:uuid;not null"                             json:"client_id"`
	UserID          string     `gorm:"type:uuid;not null"                             json:"user_id"`
	Relationship    string     `gorm:"type:varchar(50);not null;default:''"           json:"relationship"`
	CanViewSchedule bool       `gorm:"not null"                                       json:"can_view_schedule"`
	VerifiedAt      *time.Time `                                                      json:"verified_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (ClientFamilyMember) TableName() string { return "client_family_members" }

// IsVerified 关联是否已核验
func (l *ClientFamilyMember) IsVerified() bool { return l.VerifiedAt != nil }
