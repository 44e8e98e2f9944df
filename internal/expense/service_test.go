package expense

import (
	"errors"
	"testing"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"
	"gestion-locative/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, models.ExpenseType) {
	db := testutil.NewDB(t)
	n, err := SeedDefaultTypes(db)
	require.NoError(t, err)
	require.Equal(t, len(DefaultTypes), n)
	var typ models.ExpenseType
	require.NoError(t, db.Where("name = ?", "Taxe foncière").First(&typ).Error)
	return NewService(db, zap.NewNop()), db, typ
}

func TestSeedDefaultTypesIsIdempotent(t *testing.T) {
	_, db, _ := setup(t)
	n, err := SeedDefaultTypes(db)
	require.NoError(t, err)
	assert.Zero(t, n)

	var works models.ExpenseType
	require.NoError(t, db.Where("name = ?", "Travaux de peinture").First(&works).Error)
	assert.False(t, works.Recurring)
	assert.True(t, works.TaxDeductible)
}

func TestVATFromRate(t *testing.T) {
	assert.Equal(t, "20.00", VATFromRate(testutil.Money("100"), testutil.Money("20")).StringFixed(2))
	assert.Equal(t, "5.50", VATFromRate(testutil.Money("100"), testutil.Money("5.5")).StringFixed(2))
	assert.Equal(t, "16.67", VATFromRate(testutil.Money("83.33"), testutil.Money("20")).StringFixed(2))
}

func TestCreateComputesTTC(t *testing.T) {
	svc, _, typ := setup(t)

	e, err := svc.Create(Input{
		TypeID:      typ.ID,
		Designation: "Taxe foncière 2024",
		AmountHT:    testutil.Money("1000"),
		VAT:         testutil.Money("200"),
		ExpenseDate: testutil.Date(2024, 10, 15),
	})
	require.NoError(t, err)
	assert.Equal(t, "1200.00", e.AmountTTC.StringFixed(2))
	assert.Equal(t, models.ExpenseToPay, e.Status)
	assert.True(t, e.TaxDeductible)

	// explicit override wins
	e, err = svc.Create(Input{
		TypeID:      typ.ID,
		Designation: "Taxe foncière rectificative",
		AmountHT:    testutil.Money("1000"),
		VAT:         testutil.Money("200"),
		AmountTTC:   decimal.NewNullDecimal(testutil.Money("1210")),
		ExpenseDate: testutil.Date(2024, 11, 15),
	})
	require.NoError(t, err)
	assert.Equal(t, "1210.00", e.AmountTTC.StringFixed(2))
}

func TestCreateRejectsTTCBelowHT(t *testing.T) {
	svc, _, typ := setup(t)
	_, err := svc.Create(Input{
		TypeID:      typ.ID,
		Designation: "Erreur de saisie",
		AmountHT:    testutil.Money("100"),
		AmountTTC:   decimal.NewNullDecimal(testutil.Money("90")),
		ExpenseDate: testutil.Date(2024, 10, 15),
	})
	assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))
}

func TestUpdateBelowAllocatedTotal(t *testing.T) {
	svc, db, typ := setup(t)
	b := testutil.Building(t, db, "Les Tilleuls")
	a := testutil.Apartment(t, db, b.ID, "1A", "50", 0)

	e, err := svc.Create(Input{
		BuildingID:  &b.ID,
		TypeID:      typ.ID,
		Designation: "Taxe foncière",
		AmountHT:    testutil.Money("100"),
		ExpenseDate: testutil.Date(2024, 10, 15),
		Allocatable: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ExpenseAllocation{
		ExpenseID:   e.ID,
		ApartmentID: a.ID,
		Amount:      testutil.Money("80"),
		Mode:        models.ModeCustom,
	}).Error)

	in := Input{
		BuildingID:  &b.ID,
		TypeID:      typ.ID,
		Designation: "Taxe foncière",
		AmountHT:    testutil.Money("50"),
		ExpenseDate: testutil.Date(2024, 10, 15),
		Allocatable: true,
	}
	_, err = svc.Update(e.ID, in)
	assert.True(t, errors.Is(err, apperr.ErrOverAllocation))

	in.AmountHT = testutil.Money("80")
	updated, err := svc.Update(e.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.Allocated)

	remaining, err := svc.Remaining(e.ID)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
}

func TestMarkPaid(t *testing.T) {
	svc, _, typ := setup(t)
	e, err := svc.Create(Input{
		TypeID:      typ.ID,
		Designation: "Taxe foncière",
		AmountHT:    testutil.Money("100"),
		ExpenseDate: testutil.Date(2024, 10, 15),
	})
	require.NoError(t, err)

	paid, err := svc.MarkPaid(e.ID, testutil.Date(2024, 10, 20), models.ModeTransfer)
	require.NoError(t, err)
	assert.Equal(t, models.ExpensePaid, paid.Status)

	got, err := svc.Get(e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PaymentDate)
	assert.Equal(t, testutil.Date(2024, 10, 20), *got.PaymentDate)

	list, err := svc.List(Filter{Status: models.ExpensePaid})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
