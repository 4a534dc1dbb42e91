package board

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

// CreateColumnOpts holds parameters for creating a column. A nil Order
// places the column after the last one.
type CreateColumnOpts struct {
	ProjectID string
	Name      string
	Order     *int
	ActorID   string
	Now       time.Time
}

// UpdateColumnOpts holds optional column changes.
type UpdateColumnOpts struct {
	Name    *string
	Order   *int
	ActorID string
	Now     time.Time
}

// CreateColumn adds a column to a project.
func CreateColumn(ctx context.Context, gdb *gorm.DB, opts CreateColumnOpts) (*models.Column, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, fmt.Errorf("board: column name is required: %w", apperr.ErrValidation)
	}
	now := opts.Now.Truncate(time.Millisecond)

	var col models.Column
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadProject(tx, opts.ProjectID); err != nil {
			return err
		}
		order := 0
		if opts.Order != nil {
			order = *opts.Order
		} else {
			var last int
			if err := tx.Model(&models.Column{}).Where("project_id = ?", opts.ProjectID).
				Select("COALESCE(MAX(sort_order), -1)").Scan(&last).Error; err != nil {
				return fmt.Errorf("board: last column order of %s: %w", opts.ProjectID, err)
			}
			order = last + 1
		}

		col = models.Column{
			ID:        models.NewID(),
			ProjectID: opts.ProjectID,
			Name:      name,
			Order:     order,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&col).Error; err != nil {
			return fmt.Errorf("board: create column: %w", err)
		}
		_, err := audit.Record(tx, audit.Entry{
			UserID:    opts.ActorID,
			ProjectID: opts.ProjectID,
			Action:    audit.ActionCreate,
			Entity:    audit.EntityColumn,
			EntityID:  col.ID,
			Details:   map[string]interface{}{"name": col.Name, "order": col.Order},
			At:        now,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return &col, nil
}

// GetColumn retrieves a column by id.
func GetColumn(ctx context.Context, gdb *gorm.DB, columnID string) (*models.Column, error) {
	var col models.Column
	if err := gdb.WithContext(ctx).Where("id = ?", columnID).First(&col).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("board: column %s: %w", columnID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("board: get column %s: %w", columnID, err)
	}
	return &col, nil
}

// ListColumns returns a project's columns by order.
func ListColumns(ctx context.Context, gdb *gorm.DB, projectID string) ([]models.Column, error) {
	var cols []models.Column
	if err := gdb.WithContext(ctx).Where("project_id = ?", projectID).
		Order("sort_order ASC, created_at ASC").Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("board: list columns of %s: %w", projectID, err)
	}
	return cols, nil
}

// UpdateColumn renames or reorders a column. Reordering does not revisit
// moves already made under a forward-only policy.
func UpdateColumn(ctx context.Context, gdb *gorm.DB, columnID string, opts UpdateColumnOpts) (*models.Column, error) {
	now := opts.Now.Truncate(time.Millisecond)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols, err := lockColumns(tx, columnID)
		if err != nil {
			return err
		}
		col, ok := cols[columnID]
		if !ok {
			return fmt.Errorf("board: column %s: %w", columnID, apperr.ErrNotFound)
		}

		updates := map[string]interface{}{}
		if opts.Name != nil {
			name := strings.TrimSpace(*opts.Name)
			if name == "" {
				return fmt.Errorf("board: column name is required: %w", apperr.ErrValidation)
			}
			updates["name"] = name
		}
		if opts.Order != nil {
			updates["sort_order"] = *opts.Order
		}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = now
		if err := tx.Model(&models.Column{}).Where("id = ?", col.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("board: update column %s: %w", col.ID, err)
		}
		_, err = audit.Record(tx, audit.Entry{
			UserID:    opts.ActorID,
			ProjectID: col.ProjectID,
			Action:    audit.ActionUpdate,
			Entity:    audit.EntityColumn,
			EntityID:  col.ID,
			Details:   updates,
			At:        now,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return GetColumn(ctx, gdb, columnID)
}

// DeleteColumn removes an empty column. A column that still holds cards is
// refused with ErrConflict.
func DeleteColumn(ctx context.Context, gdb *gorm.DB, columnID, actorID string, now time.Time) error {
	now = now.Truncate(time.Millisecond)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols, err := lockColumns(tx, columnID)
		if err != nil {
			return err
		}
		col, ok := cols[columnID]
		if !ok {
			return fmt.Errorf("board: column %s: %w", columnID, apperr.ErrNotFound)
		}
		n, err := cardCount(tx, col.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("board: column %q still holds %d cards: %w", col.Name, n, apperr.ErrConflict)
		}
		if err := tx.Delete(&models.Column{}, "id = ?", col.ID).Error; err != nil {
			return fmt.Errorf("board: delete column %s: %w", col.ID, err)
		}
		_, err = audit.Record(tx, audit.Entry{
			UserID:    actorID,
			ProjectID: col.ProjectID,
			Action:    audit.ActionDelete,
			Entity:    audit.EntityColumn,
			EntityID:  col.ID,
			Details:   map[string]string{"name": col.Name},
			At:        now,
		})
		return err
	})
	return apperr.Classify(err)
}
