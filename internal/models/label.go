package models

import "time"

// Label is a colored tag scoped to a project.
type Label struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"size:36;not null;index" json:"project_id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Color     string    `gorm:"size:7;not null" json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Priority is a weighted urgency level scoped to a project.
type Priority struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"size:36;not null;index" json:"project_id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Weight    int       `gorm:"not null;default:1" json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}
