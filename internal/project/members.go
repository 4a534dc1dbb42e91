package project

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
	"gorm.io/gorm/clause"
)

// CreateUser stores a new user. Emails are unique and compared lowercase.
func CreateUser(ctx context.Context, db *gorm.DB, email, name string, role models.Role) (*models.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("project: invalid email %q: %w", email, apperr.ErrValidation)
	}
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, fmt.Errorf("project: unknown role %q: %w", role, apperr.ErrValidation)
	}

	var n int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("project: check user %s: %w", email, err)
	}
	if n > 0 {
		return nil, fmt.Errorf("project: user %s already exists: %w", email, apperr.ErrConflict)
	}
	u := models.User{ID: models.NewID(), Email: email, Name: name, Role: role}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("project: create user %s: %w", email, err)
	}
	return &u, nil
}

// GetUserByEmail looks a user up by email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	email = normalizeEmail(email)
	var u models.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project: user %s: %w", email, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("project: get user %s: %w", email, err)
	}
	return &u, nil
}

// AddMember grants the user with the given email a role in the project,
// replacing any role they already hold there.
func AddMember(ctx context.Context, db *gorm.DB, projectID, email string, role models.Role, actorID string, now time.Time) (*models.ProjectMembership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("project: unknown role %q: %w", role, apperr.ErrValidation)
	}
	now = now.Truncate(time.Millisecond)

	var m models.ProjectMembership
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Count(&n).Error; err != nil {
			return fmt.Errorf("project: check %s: %w", projectID, err)
		}
		if n == 0 {
			return fmt.Errorf("project: %s: %w", projectID, apperr.ErrNotFound)
		}
		user, err := GetUserByEmail(ctx, tx, email)
		if err != nil {
			return err
		}

		m = models.ProjectMembership{UserID: user.ID, ProjectID: projectID, Role: role, CreatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).Omit("User").Create(&m).Error; err != nil {
			return fmt.Errorf("project: add member %s to %s: %w", user.Email, projectID, err)
		}
		m.User = *user

		_, err = audit.Record(tx, audit.Entry{
			UserID:    actorID,
			ProjectID: projectID,
			Action:    audit.ActionMemberAdded,
			Entity:    audit.EntityMember,
			EntityID:  user.ID,
			Details:   map[string]string{"email": user.Email, "role": string(role)},
			At:        now,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return &m, nil
}

// ListMembers returns the project's memberships with their users.
func ListMembers(ctx context.Context, db *gorm.DB, projectID string) ([]models.ProjectMembership, error) {
	var members []models.ProjectMembership
	if err := db.WithContext(ctx).Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("project: list members of %s: %w", projectID, err)
	}
	return members, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
