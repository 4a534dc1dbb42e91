package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dryRunMySQL opens a MySQL-dialect handle that renders statements without
// connecting, and records every query it builds.
func dryRunMySQL(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	gdb, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "switchyard:secret@tcp(127.0.0.1:3306)/switchyard?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	require.NoError(t, err)

	var queries []string
	require.NoError(t, gdb.Callback().Query().After("gorm:query").Register("test:capture", func(d *gorm.DB) {
		queries = append(queries, d.Statement.SQL.String())
	}))
	return gdb, &queries
}

func TestOrderingReadsLockRowsOnMySQL(t *testing.T) {
	gdb, queries := dryRunMySQL(t)
	tx := gdb.Session(&gorm.Session{})

	_, _ = lockColumns(tx, "col-2", "col-1")
	_, _ = lockedCard(tx, "card-1")
	_, _ = cardCount(tx, "col-1")

	require.Len(t, *queries, 3)
	for _, q := range *queries {
		assert.Contains(t, q, "FOR UPDATE")
	}
	assert.Contains(t, (*queries)[1], "`cards`")
	assert.Contains(t, (*queries)[2], "count(*)")
}

func TestOrderingReadsSkipLockingOnSQLite(t *testing.T) {
	f := newFixture(t, models.MovementFree)
	cards := f.addCards(t, f.cols[0], "a", "b")

	n, err := cardCount(f.db, f.cols[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, err := lockedCard(f.db, cards[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Order)
}
