// Package audit records and lists the append-only activity log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// Audit actions.
const (
	ActionCreate         = "CREATE"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionMove           = "MOVE"
	ActionProjectStarted = "PROJECT_STARTED"
	ActionProjectPaused  = "PROJECT_PAUSED"
	ActionProjectResumed = "PROJECT_RESUMED"
	ActionProjectClosed  = "PROJECT_CLOSED"
	ActionMemberAdded    = "MEMBER_ADDED"
)

// Audited entity kinds.
const (
	EntityProject         = "PROJECT"
	EntityProjectSettings = "PROJECT_SETTINGS"
	EntityColumn          = "COLUMN"
	EntityCard            = "CARD"
	EntityLabel           = "LABEL"
	EntityPriority        = "PRIORITY"
	EntityMember          = "MEMBER"
)

// DefaultLimit caps List when the filter sets no limit.
const DefaultLimit = 100

// Entry is one audit row before it is stored. Details is marshaled to JSON.
type Entry struct {
	UserID    string
	ProjectID string
	Action    string
	Entity    string
	EntityID  string
	Details   any
	At        time.Time
}

// Filter narrows List.
type Filter struct {
	ProjectID string
	AfterID   uint
	Limit     int
}

// Record inserts one audit row. Callers pass their transaction handle so the
// row commits or rolls back with the change it describes.
func Record(tx *gorm.DB, e Entry) (*models.AuditLog, error) {
	if e.Action == "" || e.Entity == "" {
		return nil, fmt.Errorf("audit: action and entity are required")
	}
	details := "{}"
	if e.Details != nil {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("audit: marshal details for %s %s: %w", e.Action, e.Entity, err)
		}
		details = string(data)
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	row := models.AuditLog{
		UserID:    e.UserID,
		ProjectID: e.ProjectID,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Details:   details,
		CreatedAt: at,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("audit: record %s %s: %w", e.Action, e.Entity, err)
	}
	return &row, nil
}

// List returns audit rows matching f in id order.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{})
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.AfterID > 0 {
		q = q.Where("id > ?", f.AfterID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var logs []models.AuditLog
	if err := q.Order("id ASC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return logs, nil
}

// LatestID returns the highest audit id, or 0 when the log is empty.
func LatestID(ctx context.Context, db *gorm.DB) (uint, error) {
	var id uint
	if err := db.WithContext(ctx).Model(&models.AuditLog{}).Select("COALESCE(MAX(id), 0)").Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("audit: latest id: %w", err)
	}
	return id, nil
}

// DecodeDetails unmarshals a row's details into v.
func DecodeDetails(row models.AuditLog, v any) error {
	if row.Details == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(row.Details), v); err != nil {
		return fmt.Errorf("audit: decode details of %d: %w", row.ID, err)
	}
	return nil
}
