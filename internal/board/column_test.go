package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
)

func TestCreateColumn_AppendsAfterLast(t *testing.T) {
	f := newFixture(t, models.MovementFree)
	ctx := context.Background()

	col, err := CreateColumn(ctx, f.db, CreateColumnOpts{ProjectID: f.project.ID, Name: "Review", ActorID: f.actor, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, 3, col.Order)

	explicit := 10
	col, err = CreateColumn(ctx, f.db, CreateColumnOpts{ProjectID: f.project.ID, Name: "Archive", Order: &explicit, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, 10, col.Order)

	cols, err := ListColumns(ctx, f.db, f.project.ID)
	require.NoError(t, err)
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"To Do", "In Progress", "Done", "Review", "Archive"}, names)
}

func TestCreateColumn_FirstInEmptyProject(t *testing.T) {
	gdb := testDB(t)
	p := seedProject(t, gdb, models.MovementFree)
	col, err := CreateColumn(context.Background(), gdb, CreateColumnOpts{ProjectID: p.ID, Name: "Only", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, 0, col.Order)
}

func TestCreateColumn_Validation(t *testing.T) {
	f := newFixture(t, models.MovementFree)
	_, err := CreateColumn(context.Background(), f.db, CreateColumnOpts{ProjectID: f.project.ID, Name: " "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = CreateColumn(context.Background(), f.db, CreateColumnOpts{ProjectID: "ghost", Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateColumn(t *testing.T) {
	f := newFixture(t, models.MovementFree)
	ctx := context.Background()
	order := 7

	col, err := UpdateColumn(ctx, f.db, f.cols[0].ID, UpdateColumnOpts{Name: ptr("Backlog"), Order: &order, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, "Backlog", col.Name)
	assert.Equal(t, 7, col.Order)

	_, err = UpdateColumn(ctx, f.db, f.cols[0].ID, UpdateColumnOpts{Name: ptr("")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = UpdateColumn(ctx, f.db, "ghost", UpdateColumnOpts{Name: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteColumn(t *testing.T) {
	f := newFixture(t, models.MovementFree)
	ctx := context.Background()
	f.addCards(t, f.cols[0], "a")

	err := DeleteColumn(ctx, f.db, f.cols[0].ID, f.actor, t0)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, DeleteColumn(ctx, f.db, f.cols[2].ID, f.actor, t0))
	_, err = GetColumn(ctx, f.db, f.cols[2].ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, DeleteColumn(ctx, f.db, f.cols[2].ID, f.actor, t0), apperr.ErrNotFound)
}
