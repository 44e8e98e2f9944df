package payment

import (
	"errors"
	"testing"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"
	"gestion-locative/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var today = testutil.Date(2024, 6, 15)

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewDB(t)
	svc := NewService(db, zap.NewNop()).WithClock(func() time.Time { return today })
	return svc, db
}

func TestDueDateClampsToMonthEnd(t *testing.T) {
	l := models.Lease{BillingDay: 31}
	assert.Equal(t, testutil.Date(2024, 2, 29), DueDate(l, testutil.Date(2024, 2, 1)))
	assert.Equal(t, testutil.Date(2023, 2, 28), DueDate(l, testutil.Date(2023, 2, 1)))
	assert.Equal(t, testutil.Date(2024, 4, 30), DueDate(l, testutil.Date(2024, 4, 1)))

	l.BillingDay = 5
	assert.Equal(t, testutil.Date(2024, 2, 5), DueDate(l, testutil.Date(2024, 2, 1)))
}

func TestIsLate(t *testing.T) {
	due := testutil.Date(2024, 3, 10)
	tests := []struct {
		name     string
		p        models.Payment
		late     bool
		lateDays int
	}{
		{"on due date", models.Payment{Month: testutil.Date(2024, 3, 1), PaymentDate: due, DueDate: &due}, false, 0},
		{"after due date", models.Payment{Month: testutil.Date(2024, 3, 1), PaymentDate: testutil.Date(2024, 3, 14), DueDate: &due}, true, 4},
		{"fallback on the 5th", models.Payment{Month: testutil.Date(2024, 3, 1), PaymentDate: testutil.Date(2024, 3, 6)}, true, 1},
		{"fallback in time", models.Payment{Month: testutil.Date(2024, 3, 1), PaymentDate: testutil.Date(2024, 3, 5)}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.late, IsLate(tt.p))
			assert.Equal(t, tt.lateDays, LateDays(tt.p))
		})
	}
}

func TestExpectedAmountAndCompleteness(t *testing.T) {
	l := models.Lease{MonthlyRent: testutil.NullMoney("450"), MonthlyCharges: testutil.NullMoney("50")}
	assert.Equal(t, "500.00", ExpectedAmount(l).StringFixed(2))
	assert.True(t, IsComplete(models.Payment{Rent: testutil.Money("450"), Charges: testutil.Money("50")}, l))
	assert.False(t, IsComplete(models.Payment{Rent: testutil.Money("400")}, l))

	assert.True(t, ExpectedAmount(models.Lease{}).IsZero())
}

func TestRecordDerivesDueDate(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "450", "50", 31)

	res, err := svc.Record(Input{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 2, 17),
		Rent:        testutil.Money("450"),
		Charges:     testutil.Money("50"),
		PaymentDate: testutil.Date(2024, 2, 3),
		Mode:        models.ModeTransfer,
	})
	require.NoError(t, err)
	p := res.Payment
	assert.Equal(t, testutil.Date(2024, 2, 1), p.Month)
	require.NotNil(t, p.DueDate)
	assert.Equal(t, testutil.Date(2024, 2, 29), *p.DueDate)
	assert.Equal(t, models.PaymentReceived, p.Status)
	assert.Empty(t, res.Warnings)
	assert.False(t, IsLate(*p))
}

func TestRecordForcesPartialStatus(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)

	res, err := svc.Record(Input{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 3, 1),
		Rent:        testutil.Money("400"),
		PaymentDate: testutil.Date(2024, 3, 4),
		Mode:        models.ModeCheque,
		Status:      models.PaymentValidated,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartial, res.Payment.Status)
	assert.Len(t, res.Warnings, 2)

	var stored models.Payment
	require.NoError(t, db.First(&stored, res.Payment.ID).Error)
	assert.Equal(t, models.PaymentPartial, stored.Status)
}

func TestRecordFullPaymentKeepsStatus(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)

	res, err := svc.Record(Input{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 3, 1),
		Rent:        testutil.Money("500"),
		PaymentDate: testutil.Date(2024, 3, 4),
		Mode:        models.ModeCheque,
		Status:      models.PaymentValidated,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentValidated, res.Payment.Status)
	assert.Empty(t, res.Warnings)
}

func TestVarianceWarningDoesNotBlock(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)

	res, err := svc.Record(Input{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 3, 1),
		Rent:        testutil.Money("520"),
		PaymentDate: testutil.Date(2024, 3, 4),
		Mode:        models.ModeTransfer,
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "520.00")
	assert.Equal(t, models.PaymentReceived, res.Payment.Status)
}

func TestDuplicatePeriodRejected(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
	in := Input{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 3, 1),
		Rent:        testutil.Money("500"),
		PaymentDate: testutil.Date(2024, 3, 4),
		Mode:        models.ModeTransfer,
	}
	first, err := svc.Record(in)
	require.NoError(t, err)

	in.Month = testutil.Date(2024, 3, 20)
	_, err = svc.Record(in)
	assert.True(t, errors.Is(err, apperr.ErrDuplicatePaymentPeriod))

	// editing the same record is not a duplicate
	in.Reference = "VIR 0324"
	res, err := svc.Update(first.Payment.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "VIR 0324", res.Payment.Reference)
	assert.Equal(t, first.Payment.ID, res.Payment.ID)

	// moving another payment onto the taken month is
	in.Month = testutil.Date(2024, 4, 1)
	in.PaymentDate = testutil.Date(2024, 4, 2)
	april, err := svc.Record(in)
	require.NoError(t, err)
	in.Month = testutil.Date(2024, 3, 1)
	_, err = svc.Update(april.Payment.ID, in)
	assert.True(t, errors.Is(err, apperr.ErrDuplicatePaymentPeriod))
}

func TestRecordRejections(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
	base := Input{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 3, 1),
		Rent:        testutil.Money("500"),
		PaymentDate: testutil.Date(2024, 3, 4),
		Mode:        models.ModeTransfer,
	}

	in := base
	in.Month = testutil.Date(2024, 7, 1)
	_, err := svc.Record(in)
	assert.True(t, errors.Is(err, apperr.ErrFutureDate))

	in = base
	in.PaymentDate = testutil.Date(2024, 6, 16)
	_, err = svc.Record(in)
	assert.True(t, errors.Is(err, apperr.ErrFutureDate))

	in = base
	in.Rent = decimal.Zero
	_, err = svc.Record(in)
	assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))

	in = base
	in.LeaseID = 9999
	_, err = svc.Record(in)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRecordQuickAndListLate(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "450", "50", 5)

	res, err := svc.RecordQuick(l.ID, testutil.Date(2024, 4, 1), testutil.Date(2024, 4, 3), models.ModeTransfer, "VIR")
	require.NoError(t, err)
	assert.Equal(t, "500.00", res.Payment.Total().StringFixed(2))
	assert.Equal(t, models.PaymentReceived, res.Payment.Status)

	_, err = svc.RecordQuick(l.ID, testutil.Date(2024, 5, 1), testutil.Date(2024, 5, 20), models.ModeCheque, "")
	require.NoError(t, err)

	all, err := svc.List(Filter{LeaseID: l.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	late, err := svc.List(Filter{LeaseID: l.ID, LateOnly: true})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, testutil.Date(2024, 5, 1), late[0].Month)
	assert.Equal(t, 15, LateDays(late[0]))
}

func TestValidateAndDelete(t *testing.T) {
	svc, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
	res, err := svc.RecordQuick(l.ID, testutil.Date(2024, 4, 1), testutil.Date(2024, 4, 3), models.ModeTransfer, "")
	require.NoError(t, err)

	p, err := svc.Validate(res.Payment.ID)
	require.NoError(t, err)
	assert.True(t, p.Validated)
	assert.Equal(t, models.PaymentValidated, p.Status)

	_, err = svc.Delete(p.ID)
	require.NoError(t, err)
	_, err = svc.Get(p.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestPaymentPeriodUniqueInStorage(t *testing.T) {
	_, db := newService(t)
	l := testutil.Lease(t, db, testutil.Date(2024, 1, 1), "500", "50", 5)
	row := func() *models.Payment {
		return &models.Payment{
			LeaseID:     l.ID,
			Month:       testutil.Date(2024, 3, 1),
			Rent:        testutil.Money("500"),
			Charges:     testutil.Money("50"),
			Other:       decimal.Zero,
			PaymentDate: testutil.Date(2024, 3, 4),
			Mode:        models.ModeTransfer,
			Status:      models.PaymentReceived,
		}
	}
	require.NoError(t, db.Create(row()).Error)

	err := db.Create(row()).Error
	require.Error(t, err)
	assert.True(t, apperr.IsUniqueViolation(err))

	// the write path maps the index violation to the domain error
	err = store(db, row())
	assert.True(t, errors.Is(err, apperr.ErrDuplicatePaymentPeriod))

	var n int64
	require.NoError(t, db.Model(&models.Payment{}).Where("lease_id = ?", l.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
