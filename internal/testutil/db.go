// Package testutil provides an in-memory database for service tests.
package testutil

import (
	"testing"
	"time"

	"gestion-locative/internal/database"
	"gestion-locative/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database, migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_fk=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NullMoney(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func Building(t *testing.T, db *gorm.DB, name string) models.Building {
	t.Helper()
	b := models.Building{
		Name:                name,
		Address:             "12 rue des Lilas",
		City:                "Lyon",
		PostalCode:          "69003",
		AnnualCommonCharges: decimal.Zero,
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

// Apartment creates an apartment; surface "" and milliemes 0 leave the
// basis null.
func Apartment(t *testing.T, db *gorm.DB, buildingID uint, number, surface string, milliemes int) models.Apartment {
	t.Helper()
	a := models.Apartment{BuildingID: buildingID, Number: number}
	if surface != "" {
		a.Surface = NullMoney(surface)
	}
	if milliemes > 0 {
		a.Milliemes = &milliemes
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func Tenant(t *testing.T, db *gorm.DB, first, last string) models.Tenant {
	t.Helper()
	tn := models.Tenant{
		FirstName: first,
		LastName:  last,
		Email:     uuid.NewString() + "@example.fr",
		Phone:     "+33 6 12 34 56 78",
		Active:    true,
	}
	require.NoError(t, db.Create(&tn).Error)
	return tn
}

// Lease creates an active lease on a fresh apartment.
func Lease(t *testing.T, db *gorm.DB, start time.Time, rent, charges string, billingDay int) models.Lease {
	t.Helper()
	b := Building(t, db, "Résidence "+uuid.NewString()[:8])
	a := Apartment(t, db, b.ID, "1A", "45", 0)
	l := models.Lease{
		ApartmentID: a.ID,
		StartDate:   start,
		BillingDay:  billingDay,
		Active:      true,
	}
	if rent != "" {
		l.MonthlyRent = NullMoney(rent)
	}
	if charges != "" {
		l.MonthlyCharges = NullMoney(charges)
	}
	require.NoError(t, db.Create(&l).Error)
	return l
}
