package dto

// ── 用户、客户与家属关联（管理命令使用）──

// CreateUserRequest 创建用户
type CreateUserRequest struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// CreateClientRequest 创建客户
type CreateClientRequest struct {
	FirstName   string
	LastName    string
	DateOfBirth string // YYYY-MM-DD，可为空
	Street      string
	City        string
	State       string
	ZipCode     string
	Diagnosis   string
	CarePlan    string
}

// ClientResponse 客户信息
type ClientResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Active      bool   `json:"active"`
}

// LinkFamilyRequest 关联家属与客户
type LinkFamilyRequest struct {
	ClientID        string
	Username        string
	Relationship    string
	CanViewSchedule bool
	Verified        bool
}

// FamilyLinkResponse 家属关联信息
type FamilyLinkResponse struct {
	ID              string `json:"id"`
	ClientID        string `json:"client_id"`
	UserID          string `json:"user_id"`
	Relationship    string `json:"relationship"`
	CanViewSchedule bool   `json:"can_view_schedule"`
	Verified        bool   `json:"verified"`
}
