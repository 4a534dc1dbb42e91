package models

import "time"

// Column is a board lane. Order is an admin-assigned sort key within the
// project; it is not required to be contiguous.
type Column struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"size:36;not null;index" json:"project_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Cards []Card `gorm:"foreignKey:ColumnID" json:"cards,omitempty"`
}
