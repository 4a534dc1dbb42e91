package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	project *models.Project
	cols    []models.Column // To Do(0), In Progress(1), Done(2)
	actor   string
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

func newFixture(t *testing.T, mode models.MovementMode) *fixture {
	t.Helper()
	gdb := testDB(t)
	f := &fixture{db: gdb, actor: "actor-1"}
	f.project = seedProject(t, gdb, mode)
	for i, name := range []string{"To Do", "In Progress", "Done"} {
		f.cols = append(f.cols, seedColumn(t, gdb, f.project.ID, name, i))
	}
	return f
}

func seedProject(t *testing.T, gdb *gorm.DB, mode models.MovementMode) *models.Project {
	t.Helper()
	p := models.Project{
		ID:               models.NewID(),
		Name:             "Board",
		Status:           models.ProjectActive,
		CardMovementMode: mode,
		CreatedAt:        t0,
		UpdatedAt:        t0,
	}
	require.NoError(t, gdb.Create(&p).Error)
	return &p
}

func seedColumn(t *testing.T, gdb *gorm.DB, projectID, name string, order int) models.Column {
	t.Helper()
	c := models.Column{ID: models.NewID(), ProjectID: projectID, Name: name, Order: order}
	require.NoError(t, gdb.Create(&c).Error)
	return c
}

// addCards creates named cards at the bottom of a column, one second apart.
func (f *fixture) addCards(t *testing.T, col models.Column, names ...string) []*models.Card {
	t.Helper()
	var cards []*models.Card
	for i, name := range names {
		c, err := CreateCard(context.Background(), f.db, CreateCardOpts{
			ProjectID: f.project.ID,
			ColumnID:  col.ID,
			Name:      name,
			ActorID:   f.actor,
			Now:       t0.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		cards = append(cards, c)
	}
	return cards
}

// namesInOrder returns the card names of a column sorted by order.
func (f *fixture) namesInOrder(t *testing.T, col models.Column) []string {
	t.Helper()
	var names []string
	require.NoError(t, f.db.Model(&models.Card{}).Where("column_id = ?", col.ID).
		Order("sort_order ASC").Pluck("name", &names).Error)
	return names
}

func (f *fixture) requireDense(t *testing.T) {
	t.Helper()
	for _, c := range f.cols {
		require.NoError(t, VerifyDense(context.Background(), f.db, c.ID))
	}
}

func count(t *testing.T, gdb *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(model).Count(&n).Error)
	return n
}
