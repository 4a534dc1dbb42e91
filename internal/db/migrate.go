package db

import (
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model, parents before children.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.ProjectMembership{},
		&models.Column{},
		&models.Label{},
		&models.Priority{},
		&models.Card{},
		&models.CardMovementLog{},
		&models.AuditLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every table, children first.
func DropAll(db *gorm.DB) error {
	all := AllModels()
	tables := make([]interface{}, 0, len(all)+1)
	tables = append(tables, "card_labels")
	for i := len(all) - 1; i >= 0; i-- {
		tables = append(tables, all[i])
	}
	if err := db.Migrator().DropTable(tables...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedUser upserts a user by email and returns the stored row.
func SeedUser(db *gorm.DB, email, name string, role models.Role) (*models.User, error) {
	u := models.User{
		ID:        models.NewID(),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: time.Now(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role"}),
	}).Create(&u)
	if result.Error != nil {
		return nil, fmt.Errorf("db: seed user %q: %w", email, result.Error)
	}
	var stored models.User
	if err := db.Where("email = ?", email).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("db: reload user %q: %w", email, err)
	}
	return &stored, nil
}
