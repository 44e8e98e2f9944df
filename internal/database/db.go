package database

import (
	"fmt"

	"gestion-locative/internal/config"
	"gestion-locative/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to postgres and runs the migrations.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connexion base: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("base de données prête", zap.String("dialect", db.Dialector.Name()))
	return db, nil
}

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.AuditLog{},
		&models.Owner{},
		&models.Building{},
		&models.Apartment{},
		&models.Tenant{},
		&models.Lease{},
		&models.TenancyMembership{},
		&models.ExpenseType{},
		&models.Expense{},
		&models.ExpenseAllocation{},
		&models.Payment{},
		&models.Receipt{},
	}
}

// Migrate runs AutoMigrate and adds the constraints gorm tags cannot
// express. Safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	// at most one active principal per lease
	principal := `CREATE UNIQUE INDEX IF NOT EXISTS idx_membership_one_principal
		ON tenancy_memberships (lease_id) WHERE principal AND exit_date IS NULL`
	if err := db.Exec(principal).Error; err != nil {
		return fmt.Errorf("index principal: %w", err)
	}

	// sqlite cannot add constraints to an existing table
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	checks := []struct {
		model any
		name  string
		expr  string
	}{
		{&models.Lease{}, "chk_lease_billing_day", "billing_day BETWEEN 1 AND 31"},
		{&models.TenancyMembership{}, "chk_membership_order", "sort_order > 0"},
	}
	for _, c := range checks {
		if db.Migrator().HasConstraint(c.model, c.name) {
			continue
		}
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(c.model); err != nil {
			return err
		}
		sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", stmt.Schema.Table, c.name, c.expr)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("contrainte %s: %w", c.name, err)
		}
	}
	return nil
}
