package models

import "time"

// Role is a global or per-project permission level.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is an account known to the board. Credentials live elsewhere.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Name      string    `gorm:"size:128" json:"name"`
	Role      Role      `gorm:"size:16;default:MEMBER" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectMembership grants a user a role within one project.
type ProjectMembership struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"user_id"`
	ProjectID string    `gorm:"primaryKey;size:36;index" json:"project_id"`
	Role      Role      `gorm:"size:16;default:MEMBER" json:"role"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}
