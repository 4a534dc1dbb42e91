package board

import (
	"context"
	"fmt"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// VerifyDense checks that the cards of a column hold orders 0..N-1 exactly
// once each.
func VerifyDense(ctx context.Context, gdb *gorm.DB, columnID string) error {
	var orders []int
	if err := gdb.WithContext(ctx).Model(&models.Card{}).
		Where("column_id = ?", columnID).
		Order("sort_order ASC").
		Pluck("sort_order", &orders).Error; err != nil {
		return fmt.Errorf("board: read orders of column %s: %w", columnID, err)
	}
	for i, o := range orders {
		if o != i {
			return fmt.Errorf("board: column %s orders are not dense: got %v", columnID, orders)
		}
	}
	return nil
}

// VerifyProject runs VerifyDense over every column of a project and returns
// the problems found, keyed by column id.
func VerifyProject(ctx context.Context, gdb *gorm.DB, projectID string) (map[string]error, error) {
	cols, err := ListColumns(ctx, gdb, projectID)
	if err != nil {
		return nil, err
	}
	problems := map[string]error{}
	for _, c := range cols {
		if err := VerifyDense(ctx, gdb, c.ID); err != nil {
			problems[c.ID] = err
		}
	}
	return problems, nil
}
