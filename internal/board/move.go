package board

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/audit"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// SameColumn is recorded as the move origin for in-column reorders.
const SameColumn = "SAME_COLUMN"

// MoveOpts holds parameters for moving a card.
type MoveOpts struct {
	CardID         string
	TargetColumnID string
	TargetOrder    int
	ActorID        string
	Now            time.Time
}

// MoveCard moves a card to TargetOrder in TargetColumnID. All reads happen
// inside the transaction after the affected columns are locked, so a retried
// move is validated against the current board.
//
// Within one column the cards between the old and new positions shift by one
// toward the vacated slot. Across columns the source gap is closed, a slot is
// opened in the target and a movement log row is appended. Either way each
// column keeps orders 0..N-1.
func MoveCard(ctx context.Context, gdb *gorm.DB, opts MoveOpts) (*models.Card, error) {
	if opts.TargetOrder < 0 {
		return nil, fmt.Errorf("board: target order %d must not be negative: %w", opts.TargetOrder, apperr.ErrValidation)
	}
	now := opts.Now.Truncate(time.Millisecond)

	var moved models.Card
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, cols, err := lockCard(tx, opts.CardID, opts.TargetColumnID)
		if err != nil {
			return err
		}
		source, ok := cols[card.ColumnID]
		if !ok {
			return fmt.Errorf("board: column %s of card %s: %w", card.ColumnID, card.ID, apperr.ErrNotFound)
		}
		target, ok := cols[opts.TargetColumnID]
		if !ok {
			return fmt.Errorf("board: target column %s: %w", opts.TargetColumnID, apperr.ErrNotFound)
		}
		if target.ProjectID != card.ProjectID {
			return fmt.Errorf("board: column %s does not belong to project %s: %w", target.ID, card.ProjectID, apperr.ErrValidation)
		}

		project, err := loadProject(tx, card.ProjectID)
		if err != nil {
			return err
		}

		sameColumn := source.ID == target.ID
		if !sameColumn && project.CardMovementMode == models.MovementForwardOnly && target.Order < source.Order {
			return fmt.Errorf("board: project %s only allows forward moves; %q precedes %q: %w",
				project.ID, target.Name, source.Name, apperr.ErrForbiddenTransition)
		}

		n, err := cardCount(tx, target.ID)
		if err != nil {
			return err
		}
		maxOrder := n
		if sameColumn {
			maxOrder = n - 1
		}
		if opts.TargetOrder > maxOrder {
			return fmt.Errorf("board: target order %d out of range 0..%d: %w", opts.TargetOrder, maxOrder, apperr.ErrValidation)
		}

		oldOrder := card.Order
		if sameColumn {
			switch {
			case opts.TargetOrder == oldOrder:
				return fmt.Errorf("board: card %s is already at order %d: %w", card.ID, oldOrder, apperr.ErrConflict)
			case opts.TargetOrder > oldOrder:
				err = shiftOrders(tx, source.ID, oldOrder+1, opts.TargetOrder, -1, card.ID)
			default:
				err = shiftOrders(tx, source.ID, opts.TargetOrder, oldOrder-1, +1, card.ID)
			}
			if err != nil {
				return err
			}
		} else {
			if err := shiftOrders(tx, source.ID, oldOrder+1, -1, -1, card.ID); err != nil {
				return err
			}
			if err := shiftOrders(tx, target.ID, opts.TargetOrder, -1, +1, card.ID); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Card{}).Where("id = ?", card.ID).Updates(map[string]interface{}{
			"column_id":  target.ID,
			"sort_order": opts.TargetOrder,
			"updated_at": now,
		}).Error; err != nil {
			return fmt.Errorf("board: update card %s: %w", card.ID, err)
		}

		details := MoveDetails{From: SameColumn, To: target.ID, Order: opts.TargetOrder, ToName: target.Name}
		if !sameColumn {
			details.From, details.FromName = source.ID, source.Name
			fromID := source.ID
			if err := tx.Create(&models.CardMovementLog{
				CardID:       card.ID,
				FromColumnID: &fromID,
				ToColumnID:   target.ID,
				MovedAt:      now,
				MovedByID:    opts.ActorID,
			}).Error; err != nil {
				return fmt.Errorf("board: log move of card %s: %w", card.ID, err)
			}
		}

		if _, err := audit.Record(tx, audit.Entry{
			UserID:    opts.ActorID,
			ProjectID: card.ProjectID,
			Action:    audit.ActionMove,
			Entity:    audit.EntityCard,
			EntityID:  card.ID,
			Details:   details,
			At:        now,
		}); err != nil {
			return err
		}

		updated, err := loadCard(tx, card.ID)
		if err != nil {
			return err
		}
		moved = *updated
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return &moved, nil
}

// MoveDetails is the audit payload of a MOVE entry. From and To are column
// ids, with From set to SameColumn for reorders. The names are the column
// names at the time of the move.
type MoveDetails struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Order    int    `json:"order"`
	FromName string `json:"from_name,omitempty"`
	ToName   string `json:"to_name"`
}
