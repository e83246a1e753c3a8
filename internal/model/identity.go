package model

import "github.com/google/uuid"

// Role is an organization-wide role carrying a numeric seniority level.
// Levels are compared against ApprovalStep.OverrideMinLevel when an actor
// attempts to respond to a step bound to a different role.
type Role struct {
	BaseModel
	Name            string `gorm:"type:varchar(100);column:name;not null;uniqueIndex" json:"name"`
	Description     string `gorm:"type:text;column:description" json:"description"`
	Level           int    `gorm:"column:level;not null" json:"level"`
	IsAdministrator bool   `gorm:"column:is_administrator;not null;default:false" json:"isAdministrator"`
}

func (r *Role) TableName() string {
	return "roles"
}

// BusinessUnit scopes users and properties for multi-tenant deployments.
type BusinessUnit struct {
	BaseModel
	Name     string `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Code     string `gorm:"type:varchar(50);column:code;not null;uniqueIndex" json:"code"`
	IsActive bool   `gorm:"column:is_active;not null;default:true" json:"isActive"`
}

func (bu *BusinessUnit) TableName() string {
	return "business_units"
}

type User struct {
	BaseModel
	Email          string    `gorm:"type:varchar(255);column:email;not null;uniqueIndex" json:"email"`
	FullName       string    `gorm:"type:varchar(255);column:full_name;not null" json:"fullName"`
	RoleID         uuid.UUID `gorm:"type:uuid;column:role_id;not null" json:"roleId"`
	BusinessUnitID uuid.UUID `gorm:"type:uuid;column:business_unit_id;not null" json:"businessUnitId"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`

	// Relationships
	Role         Role         `gorm:"foreignKey:RoleID;references:ID" json:"role"`
	BusinessUnit BusinessUnit `gorm:"foreignKey:BusinessUnitID;references:ID" json:"-"`
}

func (u *User) TableName() string {
	return "users"
}

// Actor is the resolved identity every mutating workflow operation receives.
// It is built once by the auth middleware and passed explicitly so the core
// never reads ambient session state.
type Actor struct {
	UserID          uuid.UUID `json:"userId"`
	RoleID          uuid.UUID `json:"roleId"`
	RoleName        string    `json:"roleName"`
	RoleLevel       int       `json:"roleLevel"`
	IsAdministrator bool      `json:"isAdministrator"`
	BusinessUnitID  uuid.UUID `json:"businessUnitId"`
}

// ActorForUser builds an Actor from a loaded user and their role.
func ActorForUser(u *User) Actor {
	return Actor{
		UserID:          u.ID,
		RoleID:          u.RoleID,
		RoleName:        u.Role.Name,
		RoleLevel:       u.Role.Level,
		IsAdministrator: u.Role.IsAdministrator,
		BusinessUnitID:  u.BusinessUnitID,
	}
}
