package models

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectIdle   ProjectStatus = "IDLE"
	ProjectActive ProjectStatus = "ACTIVE"
	ProjectPaused ProjectStatus = "PAUSED"
	ProjectClosed ProjectStatus = "CLOSED"
)

// MovementMode controls which card moves a project allows.
type MovementMode string

const (
	MovementFree        MovementMode = "FREE"
	MovementForwardOnly MovementMode = "FORWARD_ONLY"
)

// Valid reports whether m is a known movement mode.
func (m MovementMode) Valid() bool {
	return m == MovementFree || m == MovementForwardOnly
}

// Project is a kanban board with a lifecycle and paused-time accounting.
// PausedAt is set iff Status is PAUSED; ClosedAt is set iff Status is CLOSED.
type Project struct {
	ID               string        `gorm:"primaryKey;size:36" json:"id"`
	Name             string        `gorm:"size:128;not null" json:"name"`
	Description      string        `gorm:"type:text" json:"description"`
	CreatorID        string        `gorm:"size:36;index" json:"creator_id"`
	Status           ProjectStatus `gorm:"size:16;default:IDLE;index" json:"status"`
	CardMovementMode MovementMode  `gorm:"size:16;default:FREE" json:"card_movement_mode"`
	StartedAt        *time.Time    `json:"started_at"`
	PausedAt         *time.Time    `json:"paused_at"`
	ClosedAt         *time.Time    `json:"closed_at"`
	TotalPausedMs    int64         `gorm:"not null;default:0" json:"total_paused_ms,string"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	Columns []Column `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"columns,omitempty"`
}
