package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

func TestRecord_MarshalsDetails(t *testing.T) {
	gdb := testDB(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	row, err := Record(gdb, Entry{
		UserID:    "u1",
		ProjectID: "p1",
		Action:    ActionProjectStarted,
		Entity:    EntityProject,
		EntityID:  "p1",
		Details:   map[string]string{"fromStatus": "IDLE", "toStatus": "ACTIVE"},
		At:        at,
	})
	require.NoError(t, err)
	assert.NotZero(t, row.ID)
	assert.JSONEq(t, `{"fromStatus":"IDLE","toStatus":"ACTIVE"}`, row.Details)

	var stored models.AuditLog
	require.NoError(t, gdb.First(&stored, row.ID).Error)
	assert.Equal(t, ActionProjectStarted, stored.Action)
	assert.True(t, stored.CreatedAt.Equal(at))

	var details struct {
		FromStatus string `json:"fromStatus"`
		ToStatus   string `json:"toStatus"`
	}
	require.NoError(t, DecodeDetails(stored, &details))
	assert.Equal(t, "IDLE", details.FromStatus)
	assert.Equal(t, "ACTIVE", details.ToStatus)
}

func TestRecord_NilDetails(t *testing.T) {
	gdb := testDB(t)
	row, err := Record(gdb, Entry{Action: ActionDelete, Entity: EntityCard, EntityID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "{}", row.Details)
	assert.False(t, row.CreatedAt.IsZero())
}

func TestRecord_RequiresActionAndEntity(t *testing.T) {
	gdb := testDB(t)
	_, err := Record(gdb, Entry{Entity: EntityCard})
	require.Error(t, err)
	_, err = Record(gdb, Entry{Action: ActionMove})
	require.Error(t, err)
}

func TestRecord_RollsBackWithTransaction(t *testing.T) {
	gdb := testDB(t)
	_ = gdb.Transaction(func(tx *gorm.DB) error {
		_, err := Record(tx, Entry{Action: ActionCreate, Entity: EntityCard})
		require.NoError(t, err)
		return assert.AnError
	})

	var count int64
	gdb.Model(&models.AuditLog{}).Count(&count)
	assert.Zero(t, count)
}

func TestList_FiltersAndOrder(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()
	for i, pid := range []string{"p1", "p2", "p1", "p1"} {
		_, err := Record(gdb, Entry{ProjectID: pid, Action: ActionCreate, Entity: EntityCard, EntityID: string(rune('a' + i))})
		require.NoError(t, err)
	}

	all, err := List(ctx, gdb, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	p1, err := List(ctx, gdb, Filter{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Len(t, p1, 3)

	after, err := List(ctx, gdb, Filter{ProjectID: "p1", AfterID: p1[0].ID})
	require.NoError(t, err)
	assert.Len(t, after, 2)

	limited, err := List(ctx, gdb, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLatestID(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()

	id, err := LatestID(ctx, gdb)
	require.NoError(t, err)
	assert.Zero(t, id)

	var last *models.AuditLog
	for i := 0; i < 3; i++ {
		last, err = Record(gdb, Entry{Action: ActionCreate, Entity: EntityCard})
		require.NoError(t, err)
	}
	id, err = LatestID(ctx, gdb)
	require.NoError(t, err)
	assert.Equal(t, last.ID, id)
}
