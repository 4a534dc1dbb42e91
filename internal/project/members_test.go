package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
)

func TestCreateUser(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, gdb, "  Dev@Example.com ", "Dev", "")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", u.Email)
	assert.Equal(t, models.RoleMember, u.Role)

	_, err = CreateUser(ctx, gdb, "dev@example.com", "Again", models.RoleMember)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = CreateUser(ctx, gdb, "not-an-email", "", models.RoleMember)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = CreateUser(ctx, gdb, "x@example.com", "", models.Role("OWNER"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	found, err := GetUserByEmail(ctx, gdb, "DEV@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	_, err = GetUserByEmail(ctx, gdb, "ghost@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddMember_Upserts(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()
	owner := mustUser(t, gdb, "owner@example.com", models.RoleMember)
	dev := mustUser(t, gdb, "dev@example.com", models.RoleMember)
	p := mustProject(t, gdb, "Team", owner.ID, t0)

	m, err := AddMember(ctx, gdb, p.ID, "dev@example.com", models.RoleMember, owner.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, dev.ID, m.UserID)

	_, err = AddMember(ctx, gdb, p.ID, "dev@example.com", models.RoleAdmin, owner.ID, t0)
	require.NoError(t, err)

	members, err := ListMembers(ctx, gdb, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	roles := map[string]models.Role{}
	for _, m := range members {
		roles[m.User.Email] = m.Role
	}
	assert.Equal(t, models.RoleAdmin, roles["dev@example.com"])

	_, err = AddMember(ctx, gdb, p.ID, "ghost@example.com", models.RoleMember, owner.ID, t0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = AddMember(ctx, gdb, "ghost", "dev@example.com", models.RoleMember, owner.ID, t0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = AddMember(ctx, gdb, p.ID, "dev@example.com", models.Role("GUEST"), owner.ID, t0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
