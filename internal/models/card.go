package models

import "time"

// CardStatus is the open/closed state of a card.
type CardStatus string

const (
	CardOpen   CardStatus = "OPEN"
	CardClosed CardStatus = "CLOSED"
)

// Card is a work item positioned inside a column. For a column holding N
// cards the orders are exactly 0..N-1.
type Card struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string     `gorm:"size:36;not null;index" json:"project_id"`
	ColumnID    string     `gorm:"size:36;not null;index:idx_card_column_order" json:"column_id"`
	Order       int        `gorm:"column:sort_order;not null;default:0;index:idx_card_column_order" json:"order"`
	Name        string     `gorm:"size:256;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Status      CardStatus `gorm:"size:16;default:OPEN;index" json:"status"`
	AssigneeID  *string    `gorm:"size:36" json:"assignee_id"`
	PriorityID  *string    `gorm:"size:36" json:"priority_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at"`

	Assignee *User     `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Priority *Priority `gorm:"foreignKey:PriorityID" json:"priority,omitempty"`
	Labels   []Label   `gorm:"many2many:card_labels" json:"labels,omitempty"`
}

// CardMovementLog is an append-only record of a card entering a column.
// FromColumnID is nil for the creation entry.
type CardMovementLog struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID       string    `gorm:"size:36;not null;index:idx_movement_card_time" json:"card_id"`
	FromColumnID *string   `gorm:"size:36" json:"from_column_id"`
	ToColumnID   string    `gorm:"size:36;not null" json:"to_column_id"`
	MovedAt      time.Time `gorm:"not null;index:idx_movement_card_time" json:"moved_at"`
	MovedByID    string    `gorm:"size:36" json:"moved_by_id"`
}
