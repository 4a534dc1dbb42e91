// Package project manages projects and the settings, members, labels and
// priorities that hang off them.
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/audit"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// DefaultColumns are created, in order, with every new project.
var DefaultColumns = []string{"To Do", "In Progress", "Done"}

// MinNameLength is the shortest accepted project name.
const MinNameLength = 3

// DefaultPageSize is used by List when no limit is given.
const DefaultPageSize = 20

// CreateOpts holds parameters for creating a project.
type CreateOpts struct {
	Name        string
	Description string
	CreatorID   string
	Now         time.Time
}

// ListOpts selects a page of projects visible to a user.
type ListOpts struct {
	UserID  string
	IsAdmin bool // admins see every project
	Page    int  // 1-based
	Limit   int
}

// Page is one page of List results.
type Page struct {
	Projects   []models.Project `json:"projects"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// SettingsOpts holds optional settings changes.
type SettingsOpts struct {
	Name             *string
	Description      *string
	CardMovementMode *models.MovementMode
	ActorID          string
	Now              time.Time
}

// Create stores a new IDLE project with the default columns and makes the
// creator its admin.
func Create(ctx context.Context, db *gorm.DB, opts CreateOpts) (*models.Project, error) {
	name := strings.TrimSpace(opts.Name)
	if len(name) < MinNameLength {
		return nil, fmt.Errorf("project: name must be at least %d characters: %w", MinNameLength, apperr.ErrValidation)
	}
	if opts.CreatorID == "" {
		return nil, fmt.Errorf("project: creator is required: %w", apperr.ErrValidation)
	}
	now := opts.Now.Truncate(time.Millisecond)

	p := models.Project{
		ID:               models.NewID(),
		Name:             name,
		Description:      opts.Description,
		CreatorID:        opts.CreatorID,
		Status:           models.ProjectIdle,
		CardMovementMode: models.MovementFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Columns").Create(&p).Error; err != nil {
			return fmt.Errorf("project: create: %w", err)
		}
		if err := tx.Create(&models.ProjectMembership{
			UserID:    opts.CreatorID,
			ProjectID: p.ID,
			Role:      models.RoleAdmin,
			CreatedAt: now,
		}).Error; err != nil {
			return fmt.Errorf("project: add creator membership: %w", err)
		}
		cols := make([]models.Column, len(DefaultColumns))
		for i, name := range DefaultColumns {
			cols[i] = models.Column{
				ID:        models.NewID(),
				ProjectID: p.ID,
				Name:      name,
				Order:     i,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}
		if err := tx.Create(&cols).Error; err != nil {
			return fmt.Errorf("project: create default columns: %w", err)
		}
		p.Columns = cols
		_, err := audit.Record(tx, audit.Entry{
			UserID:    opts.CreatorID,
			ProjectID: p.ID,
			Action:    audit.ActionCreate,
			Entity:    audit.EntityProject,
			EntityID:  p.ID,
			Details:   map[string]string{"name": p.Name},
			At:        now,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return &p, nil
}

// Get retrieves a project with its columns by order.
func Get(ctx context.Context, db *gorm.DB, id string) (*models.Project, error) {
	var p models.Project
	err := db.WithContext(ctx).
		Preload("Columns", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project: %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("project: get %s: %w", id, err)
	}
	return &p, nil
}

// List returns a page of projects, newest first. Non-admins only see
// projects they are members of.
func List(ctx context.Context, db *gorm.DB, opts ListOpts) (*Page, error) {
	page, limit := opts.Page, opts.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	q := db.WithContext(ctx).Model(&models.Project{})
	if !opts.IsAdmin {
		q = q.Where("id IN (?)", db.Model(&models.ProjectMembership{}).Select("project_id").Where("user_id = ?", opts.UserID))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("project: count: %w", err)
	}
	var projects []models.Project
	if err := q.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	return &Page{
		Projects:   projects,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// Delete removes a project and everything it owns.
func Delete(ctx context.Context, db *gorm.DB, id string) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("project: check %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("project: %s: %w", id, apperr.ErrNotFound)
		}

		cards := func() *gorm.DB { return tx.Model(&models.Card{}).Select("id").Where("project_id = ?", id) }
		steps := []struct {
			what string
			run  func() error
		}{
			{"card labels", func() error { return tx.Exec("DELETE FROM card_labels WHERE card_id IN (?)", cards()).Error }},
			{"movement logs", func() error { return tx.Where("card_id IN (?)", cards()).Delete(&models.CardMovementLog{}).Error }},
			{"cards", func() error { return tx.Where("project_id = ?", id).Delete(&models.Card{}).Error }},
			{"columns", func() error { return tx.Where("project_id = ?", id).Delete(&models.Column{}).Error }},
			{"labels", func() error { return tx.Where("project_id = ?", id).Delete(&models.Label{}).Error }},
			{"priorities", func() error { return tx.Where("project_id = ?", id).Delete(&models.Priority{}).Error }},
			{"memberships", func() error { return tx.Where("project_id = ?", id).Delete(&models.ProjectMembership{}).Error }},
			{"audit log", func() error { return tx.Where("project_id = ?", id).Delete(&models.AuditLog{}).Error }},
			{"project", func() error { return tx.Delete(&models.Project{}, "id = ?", id).Error }},
		}
		for _, s := range steps {
			if err := s.run(); err != nil {
				return fmt.Errorf("project: delete %s of %s: %w", s.what, id, err)
			}
		}
		return nil
	})
	return apperr.Classify(err)
}

// UpdateSettings changes a project's name, description or card movement
// mode and records the change.
func UpdateSettings(ctx context.Context, db *gorm.DB, id string, opts SettingsOpts) (*models.Project, error) {
	updates := map[string]interface{}{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if len(name) < MinNameLength {
			return nil, fmt.Errorf("project: name must be at least %d characters: %w", MinNameLength, apperr.ErrValidation)
		}
		updates["name"] = name
	}
	if opts.Description != nil {
		updates["description"] = *opts.Description
	}
	if opts.CardMovementMode != nil {
		if !opts.CardMovementMode.Valid() {
			return nil, fmt.Errorf("project: unknown card movement mode %q: %w", *opts.CardMovementMode, apperr.ErrValidation)
		}
		updates["card_movement_mode"] = *opts.CardMovementMode
	}
	now := opts.Now.Truncate(time.Millisecond)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("project: check %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("project: %s: %w", id, apperr.ErrNotFound)
		}
		if len(updates) == 0 {
			return nil
		}
		details := make(map[string]interface{}, len(updates))
		for k, v := range updates {
			details[k] = v
		}
		updates["updated_at"] = now
		if err := tx.Model(&models.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("project: update settings of %s: %w", id, err)
		}
		_, err := audit.Record(tx, audit.Entry{
			UserID:    opts.ActorID,
			ProjectID: id,
			Action:    audit.ActionUpdate,
			Entity:    audit.EntityProjectSettings,
			EntityID:  id,
			Details:   details,
			At:        now,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return Get(ctx, db, id)
}
