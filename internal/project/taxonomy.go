package project

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/audit"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Priority weight bounds.
const (
	MinWeight = 1
	MaxWeight = 10
)

// CreateLabel adds a label to a project. Colors are #RRGGBB.
func CreateLabel(ctx context.Context, db *gorm.DB, projectID, name, color, actorID string, now time.Time) (*models.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project: label name is required: %w", apperr.ErrValidation)
	}
	if !colorPattern.MatchString(color) {
		return nil, fmt.Errorf("project: label color %q must be #RRGGBB: %w", color, apperr.ErrValidation)
	}
	l := models.Label{ID: models.NewID(), ProjectID: projectID, Name: name, Color: color, CreatedAt: now.Truncate(time.Millisecond)}
	if err := createOwned(ctx, db, projectID, &l, audit.EntityLabel, l.ID, actorID, map[string]string{"name": name, "color": color}, now); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLabels returns a project's labels by name.
func ListLabels(ctx context.Context, db *gorm.DB, projectID string) ([]models.Label, error) {
	var labels []models.Label
	if err := db.WithContext(ctx).Where("project_id = ?", projectID).Order("name ASC").Find(&labels).Error; err != nil {
		return nil, fmt.Errorf("project: list labels of %s: %w", projectID, err)
	}
	return labels, nil
}

// DeleteLabel removes a label and detaches it from every card.
func DeleteLabel(ctx context.Context, db *gorm.DB, projectID, labelID, actorID string, now time.Time) error {
	return deleteOwned(ctx, db, projectID, labelID, &models.Label{}, audit.EntityLabel, actorID, now, func(tx *gorm.DB) error {
		return tx.Exec("DELETE FROM card_labels WHERE label_id = ?", labelID).Error
	})
}

// CreatePriority adds a priority with a weight between MinWeight and
// MaxWeight.
func CreatePriority(ctx context.Context, db *gorm.DB, projectID, name string, weight int, actorID string, now time.Time) (*models.Priority, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project: priority name is required: %w", apperr.ErrValidation)
	}
	if weight < MinWeight || weight > MaxWeight {
		return nil, fmt.Errorf("project: priority weight %d out of range %d..%d: %w", weight, MinWeight, MaxWeight, apperr.ErrValidation)
	}
	p := models.Priority{ID: models.NewID(), ProjectID: projectID, Name: name, Weight: weight, CreatedAt: now.Truncate(time.Millisecond)}
	if err := createOwned(ctx, db, projectID, &p, audit.EntityPriority, p.ID, actorID, map[string]interface{}{"name": name, "weight": weight}, now); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPriorities returns a project's priorities, heaviest first.
func ListPriorities(ctx context.Context, db *gorm.DB, projectID string) ([]models.Priority, error) {
	var prios []models.Priority
	if err := db.WithContext(ctx).Where("project_id = ?", projectID).Order("weight DESC, name ASC").Find(&prios).Error; err != nil {
		return nil, fmt.Errorf("project: list priorities of %s: %w", projectID, err)
	}
	return prios, nil
}

// DeletePriority removes a priority and clears it from every card.
func DeletePriority(ctx context.Context, db *gorm.DB, projectID, priorityID, actorID string, now time.Time) error {
	return deleteOwned(ctx, db, projectID, priorityID, &models.Priority{}, audit.EntityPriority, actorID, now, func(tx *gorm.DB) error {
		return tx.Model(&models.Card{}).Where("priority_id = ?", priorityID).Update("priority_id", nil).Error
	})
}

func createOwned(ctx context.Context, db *gorm.DB, projectID string, row interface{}, entity, entityID, actorID string, details interface{}, now time.Time) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Count(&n).Error; err != nil {
			return fmt.Errorf("project: check %s: %w", projectID, err)
		}
		if n == 0 {
			return fmt.Errorf("project: %s: %w", projectID, apperr.ErrNotFound)
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("project: create %s: %w", strings.ToLower(entity), err)
		}
		_, err := audit.Record(tx, audit.Entry{
			UserID:    actorID,
			ProjectID: projectID,
			Action:    audit.ActionCreate,
			Entity:    entity,
			EntityID:  entityID,
			Details:   details,
			At:        now.Truncate(time.Millisecond),
		})
		return err
	})
	return apperr.Classify(err)
}

func deleteOwned(ctx context.Context, db *gorm.DB, projectID, id string, model interface{}, entity, actorID string, now time.Time, detach func(*gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND project_id = ?", id, projectID).Delete(model)
		if res.Error != nil {
			return fmt.Errorf("project: delete %s %s: %w", strings.ToLower(entity), id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("project: %s %s: %w", strings.ToLower(entity), id, apperr.ErrNotFound)
		}
		if err := detach(tx); err != nil {
			return fmt.Errorf("project: detach %s %s: %w", strings.ToLower(entity), id, err)
		}
		_, err := audit.Record(tx, audit.Entry{
			UserID:    actorID,
			ProjectID: projectID,
			Action:    audit.ActionDelete,
			Entity:    entity,
			EntityID:  id,
			At:        now.Truncate(time.Millisecond),
		})
		return err
	})
	return apperr.Classify(err)
}
