package db

import (
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/sprintdeck/sprintdeck/internal/config"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			cfg: config.DatabaseConfig{
				Host: "127.0.0.1", Port: 3306, Name: "sprintdeck", User: "root",
			},
			want: "root@tcp(127.0.0.1:3306)/sprintdeck?parseTime=true",
		},
		{
			name: "custom host and port",
			cfg: config.DatabaseConfig{
				Host: "10.0.0.5", Port: 3307, Name: "sprintdeck_prod", User: "deck",
			},
			want: "deck@tcp(10.0.0.5:3307)/sprintdeck_prod?parseTime=true",
		},
		{
			name: "with password",
			cfg: config.DatabaseConfig{
				Host: "db.vpc.internal", Port: 3306, Name: "sprintdeck",
				User: "deck", Password: "secret",
			},
			want: "deck:secret@tcp(db.vpc.internal:3306)/sprintdeck?parseTime=true",
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

func TestConnect_Sqlite(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("sqlite MaxOpenConnections = %d, want 1", got)
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unknown driver")
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 10 {
		t.Errorf("AllModels() returned %d models, want 10", got)
	}
}

func TestAutoMigrate(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// Running twice is a no-op.
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate (2nd): %v", err)
	}

	for _, model := range AllModels() {
		if !gdb.Migrator().HasTable(model) {
			t.Errorf("table for %T missing after migrate", model)
		}
	}
}

func TestSerializable_Commit(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	err = Serializable(gdb, func(tx *gorm.DB) error {
		entry := models.AuditLog{ActorID: "alice", Action: "test", WorkspaceID: "ws1", Metadata: "{}"}
		return tx.Create(&entry).Error
	})
	if err != nil {
		t.Fatalf("Serializable: %v", err)
	}
	var count int64
	gdb.Model(&models.AuditLog{}).Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestSerializable_RollbackOnError(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	boom := errors.New("boom")
	err = Serializable(gdb, func(tx *gorm.DB) error {
		entry := models.AuditLog{ActorID: "alice", Action: "test", WorkspaceID: "ws1", Metadata: "{}"}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	var count int64
	gdb.Model(&models.AuditLog{}).Count(&count)
	if count != 0 {
		t.Errorf("rows = %d after rollback, want 0", count)
	}
}

func TestSerializable_RetriesConflicts(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Fails twice with a retryable error, then succeeds.
	attempts := 0
	err = Serializable(gdb, func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Serializable: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	// A conflict on every attempt surfaces ErrTxConflict.
	err = Serializable(gdb, func(tx *gorm.DB) error {
		return errors.New("SQLITE_BUSY: locked")
	})
	if !errors.Is(err, ErrTxConflict) {
		t.Fatalf("err = %v, want ErrTxConflict", err)
	}

	// Logical failures are never retried.
	attempts = 0
	boom := errors.New("boom")
	err = Serializable(gdb, func(tx *gorm.DB) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) || attempts != 1 {
		t.Errorf("err = %v after %d attempts, want boom after 1", err, attempts)
	}
}

func TestIsSerializationFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql syntax error", &mysql.MySQLError{Number: 1064}, false},
		{"sqlite locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"wrapped sqlite busy", errors.New("step: SQLITE_BUSY"), true},
		{"driver error", driver.ErrBadConn, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isSerializationFailure(tc.err); got != tc.want {
				t.Errorf("isSerializationFailure(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
