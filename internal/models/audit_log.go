package models

import "time"

// AuditLog is an append-only record of a user action within a project.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:36;index" json:"user_id"`
	ProjectID string    `gorm:"size:36;index" json:"project_id"`
	Action    string    `gorm:"size:32;not null" json:"action"`
	Entity    string    `gorm:"size:32;not null" json:"entity"`
	EntityID  string    `gorm:"size:36" json:"entity_id"`
	Details   string    `gorm:"type:json" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
