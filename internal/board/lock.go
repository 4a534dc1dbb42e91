package board

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// lockColumns locks the given column rows in id order and returns them keyed
// by id. Every operation that changes card orders takes these locks first, so
// two writers touching the same columns always queue in the same order.
func lockColumns(tx *gorm.DB, ids ...string) (map[string]models.Column, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var cols []models.Column
	if err := db.ForUpdate(tx).Where("id IN ?", sorted).Order("id ASC").Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("board: lock columns: %w", err)
	}
	byID := make(map[string]models.Column, len(cols))
	for _, c := range cols {
		byID[c.ID] = c
	}
	return byID, nil
}

func loadCard(tx *gorm.DB, cardID string) (*models.Card, error) {
	var card models.Card
	if err := tx.Where("id = ?", cardID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("board: card %s: %w", cardID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("board: load card %s: %w", cardID, err)
	}
	return &card, nil
}

func loadProject(tx *gorm.DB, projectID string) (*models.Project, error) {
	var p models.Project
	if err := tx.Where("id = ?", projectID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("board: project %s: %w", projectID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("board: load project %s: %w", projectID, err)
	}
	return &p, nil
}

// lockedCard reads a card with a locking read. On MySQL a plain read inside
// a REPEATABLE READ transaction returns the snapshot taken at the first read;
// a locking read always returns the latest committed row.
func lockedCard(tx *gorm.DB, cardID string) (*models.Card, error) {
	return loadCard(db.ForUpdate(tx), cardID)
}

// lockCard reads a card and locks its column. The card is read again with a
// locking read after the column lock, so the returned row reflects the latest
// committed move. A card that changed column between the two reads fails with
// ErrTransactionFailed.
func lockCard(tx *gorm.DB, cardID string, extraColumns ...string) (*models.Card, map[string]models.Column, error) {
	card, err := loadCard(tx, cardID)
	if err != nil {
		return nil, nil, err
	}
	cols, err := lockColumns(tx, append([]string{card.ColumnID}, extraColumns...)...)
	if err != nil {
		return nil, nil, err
	}
	fresh, err := lockedCard(tx, cardID)
	if err != nil {
		return nil, nil, err
	}
	if fresh.ColumnID != card.ColumnID {
		return nil, nil, fmt.Errorf("board: card %s moved concurrently: %w", cardID, apperr.ErrTransactionFailed)
	}
	return fresh, cols, nil
}

// cardCount returns the number of cards in a column. It is a locking read so
// the count is current once the column lock is held.
func cardCount(tx *gorm.DB, columnID string) (int, error) {
	var n int64
	if err := db.ForUpdate(tx).Model(&models.Card{}).Where("column_id = ?", columnID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("board: count cards in column %s: %w", columnID, err)
	}
	return int(n), nil
}

// shiftOrders adds delta to the order of every card in columnID whose order
// lies in [lo, hi], skipping exceptID. hi < 0 means unbounded.
func shiftOrders(tx *gorm.DB, columnID string, lo, hi, delta int, exceptID string) error {
	q := tx.Model(&models.Card{}).Where("column_id = ? AND sort_order >= ?", columnID, lo)
	if hi >= 0 {
		q = q.Where("sort_order <= ?", hi)
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.UpdateColumn("sort_order", gorm.Expr("sort_order + ?", delta)).Error; err != nil {
		return fmt.Errorf("board: shift orders in column %s: %w", columnID, err)
	}
	return nil
}
