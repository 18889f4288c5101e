package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// Migrator handles database migrations
type Migrator struct {
	db *Connection
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *Connection) *Migrator {
	return &Migrator{db: db}
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	return m.db.AutoMigrate(
		&models.Tenant{},
		&models.Profile{},
		&models.CachedDocument{},
		&models.DocumentUsageRecord{},
		&models.SyncIntent{},
		&models.Folder{},
		&models.Organization{},
		&models.OrganizationMember{},
	)
}

// TableStatus reports whether a model's table exists
type TableStatus struct {
	Table  string
	Exists bool
}

// Status lists the managed tables and whether each one exists
func (m *Migrator) Status() ([]TableStatus, error) {
	tables := []interface{}{
		&models.Tenant{},
		&models.Profile{},
		&models.CachedDocument{},
		&models.DocumentUsageRecord{},
		&models.SyncIntent{},
		&models.Folder{},
		&models.Organization{},
		&models.OrganizationMember{},
	}

	statuses := make([]TableStatus, 0, len(tables))
	for _, table := range tables {
		stmt := &gorm.Statement{DB: m.db.DB}
		if err := stmt.Parse(table); err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", table, err)
		}
		statuses = append(statuses, TableStatus{
			Table:  stmt.Schema.Table,
			Exists: m.db.Migrator().HasTable(table),
		})
	}
	return statuses, nil
}

// Down rolls back all migrations (for testing purposes)
func (m *Migrator) Down() error {
	return m.db.Migrator().DropTable(
		&models.OrganizationMember{},
		&models.Organization{},
		&models.Folder{},
		&models.SyncIntent{},
		&models.DocumentUsageRecord{},
		&models.CachedDocument{},
		&models.Profile{},
		&models.Tenant{},
	)
}
