package report

import (
	"testing"
	"time"

	"gestion-locative/internal/models"
	"gestion-locative/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRevenueChartKeepsEmptyMonths(t *testing.T) {
	svc, db := fixture(t)
	require.NoError(t, db.Model(&models.Payment{}).Where("status = ?", models.PaymentReceived).
		Update("validated", true).Error)

	chart, err := svc.RevenueChart(testutil.Date(2024, 3, 20), 3)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", chart.From)
	assert.Equal(t, "2024-03-31", chart.To)
	require.Len(t, chart.Points, 3)
	assert.Equal(t, "2024-01", chart.Points[0].Label)
	assert.True(t, chart.Points[0].Total.IsZero())

	// the partial payment is not validated
	mar := chart.Points[2]
	assert.Equal(t, "2024-03", mar.Label)
	assert.Equal(t, "500.00", mar.Rent.StringFixed(2))
	assert.Equal(t, "50.00", mar.Charges.StringFixed(2))
	assert.Equal(t, "550.00", chart.GrandTotals.Total.StringFixed(2))
}

func TestDashboard(t *testing.T) {
	svc, db := fixture(t)
	now := time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)

	var leases []models.Lease
	require.NoError(t, db.Order("id").Find(&leases).Error)
	require.Len(t, leases, 3)
	full, partial, unpaid := leases[0], leases[1], leases[2]

	require.NoError(t, db.Model(&models.Payment{}).Where("lease_id = ?", full.ID).Update("validated", true).Error)
	jan := models.Payment{
		LeaseID:     full.ID,
		Month:       testutil.Date(2024, 1, 1),
		Rent:        testutil.Money("500"),
		Charges:     testutil.Money("50"),
		Other:       testutil.Money("0"),
		PaymentDate: testutil.Date(2024, 1, 4),
		Mode:        models.ModeTransfer,
		Status:      models.PaymentValidated,
		Validated:   true,
	}
	require.NoError(t, db.Create(&jan).Error)

	require.NoError(t, db.Model(&models.Apartment{}).
		Where("id IN ?", []uint{full.ApartmentID, partial.ApartmentID}).Update("rented", true).Error)
	require.NoError(t, db.Model(&models.Lease{}).Where("id = ?", partial.ID).
		Update("end_date", testutil.Date(2024, 5, 1)).Error)
	require.NoError(t, db.Model(&models.Lease{}).Where("id = ?", unpaid.ID).
		Update("end_date", testutil.Date(2024, 12, 31)).Error)

	d, err := svc.Dashboard(now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20", d.Date)

	assert.EqualValues(t, 3, d.Occupancy.Apartments)
	assert.EqualValues(t, 2, d.Occupancy.Rented)
	assert.Equal(t, "66.7", d.Occupancy.Rate.StringFixed(1))

	assert.Equal(t, "550.00", d.CurrentMonth.Total.StringFixed(2))
	assert.Equal(t, 1, d.Missing)
	assert.Equal(t, "700.00", d.Outstanding.StringFixed(2))

	require.Len(t, d.Revenue.Points, 12)
	assert.Equal(t, "2023-04", d.Revenue.Points[0].Label)
	assert.Equal(t, "1100.00", d.Revenue.GrandTotals.Total.StringFixed(2))

	// only the lease ending within 90 days
	require.Len(t, d.EndingSoon, 1)
	assert.Equal(t, partial.ID, d.EndingSoon[0].LeaseID)
	assert.Equal(t, "2024-05-01", d.EndingSoon[0].EndDate)
	assert.Equal(t, 42, d.EndingSoon[0].DaysLeft)

	assert.NotEmpty(t, d.Activity)
	for _, a := range d.Activity {
		assert.Equal(t, "paiement", a.Kind)
	}
}

func TestDashboardEmptyDatabase(t *testing.T) {
	db := testutil.NewDB(t)
	d, err := NewService(db, zap.NewNop()).Dashboard(testutil.Date(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, d.Occupancy.Rate.IsZero())
	assert.Empty(t, d.EndingSoon)
	assert.Len(t, d.Revenue.Points, 12)
}
