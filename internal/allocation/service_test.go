package allocation

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

func nd(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return testutil.NullMoney(s)
}

func amounts(p Plan) []string {
	out := make([]string, 0, len(p.Shares))
	for _, s := range p.Shares {
		out = append(out, s.Amount.StringFixed(2))
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		mode    models.AllocationMode
		bases   []string
		want    []string
		skipped []uint
	}{
		{"surface proportional", "1000", models.ModeSurface, []string{"50", "30", "20"}, []string{"500.00", "300.00", "200.00"}, nil},
		{"null surface skipped", "1000", models.ModeSurface, []string{"50", "", "50"}, []string{"500.00", "500.00"}, []uint{2}},
		{"tantieme", "1200", models.ModeTantieme, []string{"250", "250", "500"}, []string{"300.00", "300.00", "600.00"}, nil},
		{"equal split", "300", models.ModeFlat, []string{"", "", ""}, []string{"100.00", "100.00", "100.00"}, nil},
		{"equal residue on first", "100", models.ModeFlat, []string{"", "", ""}, []string{"33.34", "33.33", "33.33"}, nil},
		{"residue on largest", "100", models.ModeSurface, []string{"10", "20", "40"}, []string{"14.29", "28.57", "57.14"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bases := make([]Basis, 0, len(tt.bases))
			for i, v := range tt.bases {
				bases = append(bases, Basis{ApartmentID: uint(i + 1), Value: nd(v)})
			}
			plan, err := Compute(testutil.Money(tt.total), tt.mode, bases)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amounts(plan))
			assert.Equal(t, tt.skipped, plan.Skipped)
			assert.True(t, plan.Total().Equal(testutil.Money(tt.total)), "sum %s", plan.Total())
		})
	}
}

func TestComputeResidueSettlesOnLargestShare(t *testing.T) {
	// 100 over 1/1/1 surfaces gives 33.33 each, the extra cent goes to the first
	plan, err := Compute(testutil.Money("100"), models.ModeSurface, []Basis{
		{ApartmentID: 1, Value: nd("1")},
		{ApartmentID: 2, Value: nd("1")},
		{ApartmentID: 3, Value: nd("1")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"33.34", "33.33", "33.33"}, amounts(plan))
	assert.Equal(t, "0.333333", plan.Shares[0].Coefficient.StringFixed(6))
}

func TestComputeErrors(t *testing.T) {
	_, err := Compute(testutil.Money("100"), models.ModeSurface, nil)
	assert.True(t, errors.Is(err, apperr.ErrEmptyTarget))

	_, err = Compute(testutil.Money("100"), models.ModeTantieme, []Basis{{ApartmentID: 1}, {ApartmentID: 2}})
	assert.True(t, errors.Is(err, apperr.ErrMissingBasis))

	_, err = Compute(testutil.Money("100"), models.ModeCustom, []Basis{{ApartmentID: 1}})
	require.Error(t, err)
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	building models.Building
	apts     []models.Apartment
	expense  models.Expense
}

func newFixture(t *testing.T, ttc string, allocatable bool) fixture {
	db := testutil.NewDB(t)
	b := testutil.Building(t, db, "Les Tilleuls")
	apts := []models.Apartment{
		testutil.Apartment(t, db, b.ID, "1A", "50", 500),
		testutil.Apartment(t, db, b.ID, "1B", "30", 300),
		testutil.Apartment(t, db, b.ID, "2A", "20", 200),
	}
	typ := models.ExpenseType{Name: "Taxe foncière", Category: models.CategoryTax, Recurring: true, TaxDeductible: true}
	require.NoError(t, db.Create(&typ).Error)
	e := models.Expense{
		BuildingID:  &b.ID,
		TypeID:      typ.ID,
		Designation: "Taxe foncière",
		AmountHT:    testutil.Money(ttc),
		VAT:         decimal.Zero,
		AmountTTC:   testutil.Money(ttc),
		ExpenseDate: testutil.Date(2024, 10, 15),
		Status:      models.ExpenseToPay,
		Allocatable: allocatable,
	}
	require.NoError(t, db.Create(&e).Error)
	return fixture{db: db, svc: NewService(db, zap.NewNop()), building: b, apts: apts, expense: e}
}

func (f fixture) reload(t *testing.T) models.Expense {
	var e models.Expense
	require.NoError(t, f.db.First(&e, f.expense.ID).Error)
	return e
}

func TestSplitDefaultsToBuildingApartments(t *testing.T) {
	f := newFixture(t, "1000", true)

	res, err := f.svc.Split(f.expense.ID, models.ModeSurface, nil)
	require.NoError(t, err)
	require.Len(t, res.Allocations, 3)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, "500.00", res.Allocations[0].Amount.StringFixed(2))
	assert.Equal(t, "50.00", res.Allocations[0].Basis.Decimal.StringFixed(2))
	assert.True(t, f.reload(t).Allocated)
}

func TestSplitReplacesPreviousAllocations(t *testing.T) {
	f := newFixture(t, "300", true)

	_, err := f.svc.Split(f.expense.ID, models.ModeSurface, nil)
	require.NoError(t, err)
	res, err := f.svc.Split(f.expense.ID, models.ModeFlat, []uint{f.apts[0].ID, f.apts[1].ID, f.apts[2].ID})
	require.NoError(t, err)
	require.Len(t, res.Allocations, 3)

	as, err := f.svc.ForExpense(f.expense.ID)
	require.NoError(t, err)
	require.Len(t, as, 3)
	for _, a := range as {
		assert.Equal(t, "100.00", a.Amount.StringFixed(2))
		assert.Equal(t, models.ModeFlat, a.Mode)
	}
}

func TestSplitReportsSkippedApartments(t *testing.T) {
	f := newFixture(t, "1000", true)
	bare := testutil.Apartment(t, f.db, f.building.ID, "3A", "", 0)

	res, err := f.svc.Split(f.expense.ID, models.ModeTantieme, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{bare.ID}, res.Skipped)
	assert.Len(t, res.Allocations, 3)
}

func TestSplitPreconditions(t *testing.T) {
	f := newFixture(t, "1000", false)
	_, err := f.svc.Split(f.expense.ID, models.ModeSurface, nil)
	assert.True(t, errors.Is(err, apperr.ErrNotAllocatable))

	g := newFixture(t, "1000", true)
	bare := testutil.Apartment(t, g.db, g.building.ID, "3A", "", 0)
	_, err = g.svc.Split(g.expense.ID, models.ModeSurface, []uint{bare.ID})
	assert.True(t, errors.Is(err, apperr.ErrMissingBasis))
	assert.False(t, g.reload(t).Allocated)
}

func TestAddManualOverAllocation(t *testing.T) {
	f := newFixture(t, "100", true)

	_, err := f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[0].ID, Amount: testutil.Money("80")}, 0)
	require.NoError(t, err)
	assert.False(t, f.reload(t).Allocated)

	_, err = f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[1].ID, Amount: testutil.Money("25")}, 0)
	assert.True(t, errors.Is(err, apperr.ErrOverAllocation))

	_, err = f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[1].ID, Amount: testutil.Money("20")}, 0)
	require.NoError(t, err)
	assert.True(t, f.reload(t).Allocated)
}

func TestAddManualRejectsSecondAllocation(t *testing.T) {
	f := newFixture(t, "100", true)

	first, err := f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[0].ID, Amount: testutil.Money("80")}, 0)
	require.NoError(t, err)

	_, err = f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[0].ID, Amount: testutil.Money("25")}, 0)
	assert.True(t, errors.Is(err, apperr.ErrDuplicateAllocation))
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindConflict, appErr.Kind)

	var rows []models.ExpenseAllocation
	require.NoError(t, f.db.Where("expense_id = ?", f.expense.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, "80.00", rows[0].Amount.StringFixed(2))

	// moving another allocation onto the taken apartment is refused too
	second, err := f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[1].ID, Amount: testutil.Money("10")}, 0)
	require.NoError(t, err)
	_, err = f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[0].ID, Amount: testutil.Money("10")}, second.ID)
	assert.True(t, errors.Is(err, apperr.ErrDuplicateAllocation))
}

func TestAllocationPairUniqueInStorage(t *testing.T) {
	f := newFixture(t, "100", true)
	row := func() *models.ExpenseAllocation {
		return &models.ExpenseAllocation{ExpenseID: f.expense.ID, ApartmentID: f.apts[0].ID, Amount: testutil.Money("10"), Mode: models.ModeCustom}
	}
	require.NoError(t, f.db.Create(row()).Error)

	err := f.db.Create(row()).Error
	require.Error(t, err)
	assert.True(t, apperr.IsUniqueViolation(err))

	err = saveAllocation(f.db, row())
	assert.True(t, errors.Is(err, apperr.ErrDuplicateAllocation))
}

func TestAddManualEditExcludesOwnAmount(t *testing.T) {
	f := newFixture(t, "100", true)

	a, err := f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[0].ID, Amount: testutil.Money("80")}, 0)
	require.NoError(t, err)

	edited, err := f.svc.AddManual(f.expense.ID, ManualInput{ApartmentID: f.apts[0].ID, Amount: testutil.Money("100")}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, edited.ID)
	assert.True(t, f.reload(t).Allocated)

	var count int64
	require.NoError(t, f.db.Model(&models.ExpenseAllocation{}).Where("expense_id = ?", f.expense.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteResetsAllocatedFlag(t *testing.T) {
	f := newFixture(t, "100", true)
	res, err := f.svc.Split(f.expense.ID, models.ModeSurface, nil)
	require.NoError(t, err)
	require.True(t, f.reload(t).Allocated)

	_, err = f.svc.Delete(res.Allocations[2].ID)
	require.NoError(t, err)
	assert.False(t, f.reload(t).Allocated)

	_, err = f.svc.Delete(res.Allocations[2].ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMarkInvoicedAndApartmentLines(t *testing.T) {
	f := newFixture(t, "1000", true)
	res, err := f.svc.Split(f.expense.ID, models.ModeSurface, nil)
	require.NoError(t, err)

	a, err := f.svc.MarkInvoiced(res.Allocations[0].ID, testutil.Date(2024, 11, 2))
	require.NoError(t, err)
	assert.True(t, a.InvoicedToTenant)

	from := testutil.Date(2024, 1, 1)
	to := testutil.Date(2024, 12, 31)
	lines, err := f.svc.ForApartment(f.apts[0].ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Taxe foncière", lines[0].Designation)
	assert.True(t, lines[0].InvoicedToTenant)

	later := testutil.Date(2025, 1, 1)
	lines, err = f.svc.ForApartment(f.apts[0].ID, &later, nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
