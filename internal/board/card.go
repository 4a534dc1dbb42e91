// Package board keeps cards densely ordered inside their columns and moves
// them between columns.
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

// CreateCardOpts holds parameters for creating a card.
type CreateCardOpts struct {
	ProjectID   string
	ColumnID    string
	Name        string
	Description string
	AssigneeID  *string
	PriorityID  *string
	LabelIDs    []string
	ActorID     string
	Now         time.Time
}

// UpdateCardOpts holds optional card field changes. Nil fields are left
// unchanged; an empty string clears AssigneeID or PriorityID.
type UpdateCardOpts struct {
	Name        *string
	Description *string
	AssigneeID  *string
	PriorityID  *string
	LabelIDs    *[]string
	Status      *models.CardStatus
	ActorID     string
	Now         time.Time
}

// CreateDetails is the audit payload of a card CREATE entry.
type CreateDetails struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

// CreateCard appends a card to the bottom of its column. The card, its
// creation movement log row and an audit entry are written atomically.
func CreateCard(ctx context.Context, gdb *gorm.DB, opts CreateCardOpts) (*models.Card, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, fmt.Errorf("board: card name is required: %w", apperr.ErrValidation)
	}
	now := opts.Now.Truncate(time.Millisecond)

	var created models.Card
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadProject(tx, opts.ProjectID); err != nil {
			return err
		}
		cols, err := lockColumns(tx, opts.ColumnID)
		if err != nil {
			return err
		}
		col, ok := cols[opts.ColumnID]
		if !ok {
			return fmt.Errorf("board: column %s: %w", opts.ColumnID, apperr.ErrNotFound)
		}
		if col.ProjectID != opts.ProjectID {
			return fmt.Errorf("board: column %s does not belong to project %s: %w", col.ID, opts.ProjectID, apperr.ErrValidation)
		}
		if err := checkRefs(tx, opts.ProjectID, opts.AssigneeID, opts.PriorityID); err != nil {
			return err
		}
		labels, err := loadLabels(tx, opts.ProjectID, opts.LabelIDs)
		if err != nil {
			return err
		}

		n, err := cardCount(tx, col.ID)
		if err != nil {
			return err
		}
		card := models.Card{
			ID:          models.NewID(),
			ProjectID:   opts.ProjectID,
			ColumnID:    col.ID,
			Order:       n,
			Name:        name,
			Description: opts.Description,
			Status:      models.CardOpen,
			AssigneeID:  nonEmpty(opts.AssigneeID),
			PriorityID:  nonEmpty(opts.PriorityID),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Omit("Labels", "Assignee", "Priority").Create(&card).Error; err != nil {
			return fmt.Errorf("board: create card: %w", err)
		}
		if len(labels) > 0 {
			if err := tx.Model(&card).Association("Labels").Append(labels); err != nil {
				return fmt.Errorf("board: label card %s: %w", card.ID, err)
			}
		}

		if err := tx.Create(&models.CardMovementLog{
			CardID:     card.ID,
			ToColumnID: col.ID,
			MovedAt:    now,
			MovedByID:  opts.ActorID,
		}).Error; err != nil {
			return fmt.Errorf("board: log creation of card %s: %w", card.ID, err)
		}

		if _, err := audit.Record(tx, audit.Entry{
			UserID:    opts.ActorID,
			ProjectID: opts.ProjectID,
			Action:    audit.ActionCreate,
			Entity:    audit.EntityCard,
			EntityID:  card.ID,
			Details:   CreateDetails{Name: card.Name, Column: col.Name},
			At:        now,
		}); err != nil {
			return err
		}
		created = card
		created.Labels = labels
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return &created, nil
}

// GetCard retrieves a card with its assignee, priority and labels.
func GetCard(ctx context.Context, gdb *gorm.DB, cardID string) (*models.Card, error) {
	var card models.Card
	err := gdb.WithContext(ctx).
		Preload("Assignee").Preload("Priority").Preload("Labels").
		Where("id = ?", cardID).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("board: card %s: %w", cardID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("board: get card %s: %w", cardID, err)
	}
	return &card, nil
}

// SetCardStatus opens or closes a card. Closing stamps closedAt; reopening
// clears it.
func SetCardStatus(ctx context.Context, gdb *gorm.DB, cardID string, status models.CardStatus, actorID string, now time.Time) (*models.Card, error) {
	return UpdateCard(ctx, gdb, cardID, UpdateCardOpts{Status: &status, ActorID: actorID, Now: now})
}

// UpdateCard applies the non-nil fields of opts to a card and records one
// audit entry listing the changed fields.
func UpdateCard(ctx context.Context, gdb *gorm.DB, cardID string, opts UpdateCardOpts) (*models.Card, error) {
	now := opts.Now.Truncate(time.Millisecond)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := loadCard(tx, cardID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		var changed []string
		if opts.Name != nil {
			name := strings.TrimSpace(*opts.Name)
			if name == "" {
				return fmt.Errorf("board: card name is required: %w", apperr.ErrValidation)
			}
			updates["name"] = name
			changed = append(changed, "name")
		}
		if opts.Description != nil {
			updates["description"] = *opts.Description
			changed = append(changed, "description")
		}
		if opts.AssigneeID != nil || opts.PriorityID != nil {
			if err := checkRefs(tx, card.ProjectID, opts.AssigneeID, opts.PriorityID); err != nil {
				return err
			}
		}
		if opts.AssigneeID != nil {
			updates["assignee_id"] = nonEmpty(opts.AssigneeID)
			changed = append(changed, "assignee")
		}
		if opts.PriorityID != nil {
			updates["priority_id"] = nonEmpty(opts.PriorityID)
			changed = append(changed, "priority")
		}
		if opts.Status != nil {
			switch *opts.Status {
			case models.CardOpen:
				updates["closed_at"] = nil
			case models.CardClosed:
				if card.Status != models.CardClosed {
					updates["closed_at"] = now
				}
			default:
				return fmt.Errorf("board: unknown card status %q: %w", *opts.Status, apperr.ErrValidation)
			}
			updates["status"] = *opts.Status
			changed = append(changed, "status")
		}

		if opts.LabelIDs != nil {
			labels, err := loadLabels(tx, card.ProjectID, *opts.LabelIDs)
			if err != nil {
				return err
			}
			assoc := tx.Model(card).Association("Labels")
			if len(labels) == 0 {
				err = assoc.Clear()
			} else {
				err = assoc.Replace(labels)
			}
			if err != nil {
				return fmt.Errorf("board: relabel card %s: %w", card.ID, err)
			}
			changed = append(changed, "labels")
		}

		if len(changed) == 0 {
			return nil
		}
		updates["updated_at"] = now
		if err := tx.Model(&models.Card{}).Where("id = ?", card.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("board: update card %s: %w", card.ID, err)
		}

		_, err = audit.Record(tx, audit.Entry{
			UserID:    opts.ActorID,
			ProjectID: card.ProjectID,
			Action:    audit.ActionUpdate,
			Entity:    audit.EntityCard,
			EntityID:  card.ID,
			Details:   map[string]interface{}{"fields": changed, "status": updates["status"]},
			At:        now,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return GetCard(ctx, gdb, cardID)
}

// DeleteCard removes a card with its movement log and closes the gap it
// leaves in its column.
func DeleteCard(ctx context.Context, gdb *gorm.DB, cardID, actorID string, now time.Time) error {
	now = now.Truncate(time.Millisecond)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, _, err := lockCard(tx, cardID)
		if err != nil {
			return err
		}
		if err := tx.Model(card).Association("Labels").Clear(); err != nil {
			return fmt.Errorf("board: unlabel card %s: %w", card.ID, err)
		}
		if err := tx.Where("card_id = ?", card.ID).Delete(&models.CardMovementLog{}).Error; err != nil {
			return fmt.Errorf("board: delete movement log of card %s: %w", card.ID, err)
		}
		if err := tx.Delete(&models.Card{}, "id = ?", card.ID).Error; err != nil {
			return fmt.Errorf("board: delete card %s: %w", card.ID, err)
		}
		if err := shiftOrders(tx, card.ColumnID, card.Order+1, -1, -1, ""); err != nil {
			return err
		}
		_, err = audit.Record(tx, audit.Entry{
			UserID:    actorID,
			ProjectID: card.ProjectID,
			Action:    audit.ActionDelete,
			Entity:    audit.EntityCard,
			EntityID:  card.ID,
			Details:   map[string]string{"name": card.Name},
			At:        now,
		})
		return err
	})
	return apperr.Classify(err)
}

// checkRefs verifies that an assignee exists and a priority belongs to the
// project. Nil or empty ids are skipped.
func checkRefs(tx *gorm.DB, projectID string, assigneeID, priorityID *string) error {
	if id := nonEmpty(assigneeID); id != nil {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", *id).Count(&n).Error; err != nil {
			return fmt.Errorf("board: check assignee %s: %w", *id, err)
		}
		if n == 0 {
			return fmt.Errorf("board: assignee %s: %w", *id, apperr.ErrValidation)
		}
	}
	if id := nonEmpty(priorityID); id != nil {
		var n int64
		if err := tx.Model(&models.Priority{}).Where("id = ? AND project_id = ?", *id, projectID).Count(&n).Error; err != nil {
			return fmt.Errorf("board: check priority %s: %w", *id, err)
		}
		if n == 0 {
			return fmt.Errorf("board: priority %s is not defined in project %s: %w", *id, projectID, apperr.ErrValidation)
		}
	}
	return nil
}

// loadLabels returns the labels with the given ids, all of which must belong
// to the project.
func loadLabels(tx *gorm.DB, projectID string, ids []string) ([]models.Label, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var labels []models.Label
	if err := tx.Where("id IN ? AND project_id = ?", ids, projectID).Find(&labels).Error; err != nil {
		return nil, fmt.Errorf("board: load labels: %w", err)
	}
	if len(labels) != len(uniq(ids)) {
		return nil, fmt.Errorf("board: unknown label for project %s: %w", projectID, apperr.ErrValidation)
	}
	return labels, nil
}

func uniq(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
