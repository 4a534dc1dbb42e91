package db

import (
	"strings"
	"testing"

	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, Name: "switchyard", User: "root"},
			want: "root@tcp(127.0.0.1:3306)/switchyard?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, Name: "boards", User: "sy", Password: "pw"},
			want: "sy:pw@tcp(10.0.0.5:3307)/boards?parseTime=true",
		},
		{
			name: "explicit dsn wins",
			cfg:  config.DatabaseConfig{DSN: "u@unix(/tmp/mysql.sock)/x", Host: "ignored"},
			want: "u@unix(/tmp/mysql.sock)/x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "localhost", Port: 3306, Name: "test", User: "root"})
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), `unknown driver "oracle"`) {
		t.Errorf("error = %q", err)
	}
}

func TestConnect_SQLiteMemory(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("DB(): %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
	if gdb.Dialector.Name() != "sqlite" {
		t.Errorf("dialector = %q, want sqlite", gdb.Dialector.Name())
	}
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	gdb, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, table := range []string{
		"users", "projects", "project_memberships", "columns", "labels",
		"priorities", "cards", "card_labels", "card_movement_logs", "audit_logs",
	} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("table %q missing after AutoMigrate", table)
		}
	}
	if !gdb.Migrator().HasColumn(&models.Card{}, "sort_order") {
		t.Error("cards.sort_order missing")
	}
	if !gdb.Migrator().HasIndex(&models.Card{}, "idx_card_column_order") {
		t.Error("cards index idx_card_column_order missing")
	}
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	gdb, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := AutoMigrate(gdb); err != nil {
			t.Fatalf("AutoMigrate run %d: %v", i+1, err)
		}
	}
}

func TestDropAll(t *testing.T) {
	gdb, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := DropAll(gdb); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	for _, table := range []string{"cards", "projects", "card_labels"} {
		if gdb.Migrator().HasTable(table) {
			t.Errorf("table %q still present after DropAll", table)
		}
	}
}

func TestSeedUser_Upsert(t *testing.T) {
	gdb, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	first, err := SeedUser(gdb, "admin@example.com", "Admin", models.RoleAdmin)
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	second, err := SeedUser(gdb, "admin@example.com", "Renamed", models.RoleMember)
	if err != nil {
		t.Fatalf("SeedUser again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("upsert changed id: %q -> %q", first.ID, second.ID)
	}
	if second.Name != "Renamed" || second.Role != models.RoleMember {
		t.Errorf("upsert did not update fields: %+v", second)
	}

	var count int64
	gdb.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("users = %d, want 1", count)
	}
}
