package models

import "time"

// Role names, strongest first.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleModerator   Role = "moderator"
	RoleContributor Role = "contributor"
	RoleReader      Role = "reader"
)

// RolePriority orders roles strongest-first for primary-role resolution.
var RolePriority = []Role{RoleSuperAdmin, RoleModerator, RoleContributor, RoleReader}

// IsKnownRole reports whether the name is one of the four role names.
func IsKnownRole(r Role) bool {
	for _, known := range RolePriority {
		if r == known {
			return true
		}
	}
	return false
}

// UserModel represents a wiki account. Accounts normally originate from the
// WorkOS identity sync; Password is only set for the local owner fallback.
type UserModel struct {
	Base
	WorkOSUserID *string    `json:"workos_user_id,omitempty" gorm:"column:workos_user_id;uniqueIndex"`
	Email        string     `json:"email"           gorm:"uniqueIndex;not null"`
	DisplayName  string     `json:"display_name"`
	AvatarURL    string     `json:"avatar_url"`
	Password     string     `json:"-"`
	LastSeenAt   *time.Time `json:"last_seen_at"`

	Roles []RoleAssignmentModel `json:"roles,omitempty" gorm:"foreignKey:UserID"`
}

func (UserModel) TableName() string { return "users" }

// ProfileModel carries public contributor metadata.
type ProfileModel struct {
	Base
	UserID            string      `json:"-"                  gorm:"uniqueIndex;not null"`
	Bio               string      `json:"bio"`
	Reputation        int         `json:"reputation"         gorm:"default:0"`
	ContributionCount int         `json:"contribution_count" gorm:"default:0"`
	Socials           JSONMap     `json:"socials,omitempty"  gorm:"serializer:json"`
	ExpertiseTags     StringSlice `json:"expertise_tags"     gorm:"type:json;serializer:json"`
}

func (ProfileModel) TableName() string { return "profiles" }

// RoleAssignmentModel maps a user to one role; a user may hold several.
type RoleAssignmentModel struct {
	Base
	UserID     string     `json:"user_id"     gorm:"index;not null"`
	Role       Role       `json:"role"        gorm:"index;not null"`
	AssignedBy *string    `json:"assigned_by"`
	AssignedAt time.Time  `json:"assigned_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

func (RoleAssignmentModel) TableName() string { return "role_assignments" }
