// Package access answers who a caller is and what they may do in a project.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// Authorizer resolves a user's role within a project.
type Authorizer interface {
	// RoleOf returns the user's effective role in the project. ok is false
	// when the user has no access at all.
	RoleOf(ctx context.Context, userID, projectID string) (role models.Role, ok bool, err error)
	// CanManage reports whether the user may administer the project.
	CanManage(ctx context.Context, userID, projectID string) (bool, error)
}

// DBAuthorizer answers role checks from the users and memberships tables.
// A global ADMIN is an admin of every project.
type DBAuthorizer struct {
	DB *gorm.DB
}

// NewDBAuthorizer returns a DBAuthorizer backed by db.
func NewDBAuthorizer(db *gorm.DB) *DBAuthorizer {
	return &DBAuthorizer{DB: db}
}

// RoleOf implements Authorizer.
func (a *DBAuthorizer) RoleOf(ctx context.Context, userID, projectID string) (models.Role, bool, error) {
	q := a.DB.WithContext(ctx)

	var user models.User
	if err := q.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("access: load user %s: %w", userID, err)
	}
	if user.Role == models.RoleAdmin {
		return models.RoleAdmin, true, nil
	}

	var m models.ProjectMembership
	if err := q.Where("user_id = ? AND project_id = ?", userID, projectID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("access: load membership of %s in %s: %w", userID, projectID, err)
	}
	return m.Role, true, nil
}

// CanManage implements Authorizer.
func (a *DBAuthorizer) CanManage(ctx context.Context, userID, projectID string) (bool, error) {
	role, ok, err := a.RoleOf(ctx, userID, projectID)
	if err != nil || !ok {
		return false, err
	}
	return role == models.RoleAdmin, nil
}
