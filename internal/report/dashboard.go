package report

import (
	"fmt"
	"sort"
	"time"

	"gestion-locative/internal/lease"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/shopspring/decimal"
)

const (
	revenueMonths   = 12
	endingHorizon   = 90 // days
	endingLimit     = 5
	activityWindow  = 7 // days
	activityPerKind = 5
	activityLimit   = 10
)

type Occupancy struct {
	Buildings     int64           `json:"buildings"`
	Apartments    int64           `json:"apartments"`
	Rented        int64           `json:"rented"`
	ActiveTenants int64           `json:"active_tenants"`
	Rate          decimal.Decimal `json:"rate"` // percent, one decimal
}

type RevenuePoint struct {
	Label   string          `json:"label"` // YYYY-MM
	Rent    decimal.Decimal `json:"rent"`
	Charges decimal.Decimal `json:"charges"`
	Total   decimal.Decimal `json:"total"`
}

type RevenueTotals struct {
	Rent    decimal.Decimal `json:"rent"`
	Charges decimal.Decimal `json:"charges"`
	Total   decimal.Decimal `json:"total"`
}

func (t *RevenueTotals) add(rent, charges decimal.Decimal) {
	t.Rent = t.Rent.Add(rent)
	t.Charges = t.Charges.Add(charges)
	t.Total = t.Rent.Add(t.Charges)
}

type RevenueChart struct {
	From        string         `json:"from"`
	To          string         `json:"to"`
	Points      []RevenuePoint `json:"points"`
	GrandTotals RevenueTotals  `json:"grand_totals"`
}

type EndingLease struct {
	LeaseID   uint   `json:"lease_id"`
	Apartment string `json:"apartment"`
	Tenants   string `json:"tenants"`
	EndDate   string `json:"end_date"`
	DaysLeft  int    `json:"days_left"`
}

type Activity struct {
	Kind        string    `json:"kind"` // paiement | quittance
	ID          uint      `json:"id"`
	At          time.Time `json:"at"`
	Description string    `json:"description"`
}

type Dashboard struct {
	Date         string          `json:"date"`
	Occupancy    Occupancy       `json:"occupancy"`
	CurrentMonth RevenueTotals   `json:"current_month"`
	Missing      int             `json:"missing"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	EndingSoon   []EndingLease   `json:"ending_soon"`
	Activity     []Activity      `json:"activity"`
	Revenue      RevenueChart    `json:"revenue"`
}

func zeroTotals() RevenueTotals {
	return RevenueTotals{Rent: decimal.Zero, Charges: decimal.Zero, Total: decimal.Zero}
}

// Dashboard gathers the home page figures as of now. Revenue only counts
// validated payments.
func (s *Service) Dashboard(now time.Time) (*Dashboard, error) {
	today := period.Day(now)
	month := period.MonthStart(today)

	occ, err := s.occupancy()
	if err != nil {
		return nil, err
	}
	chart, err := s.RevenueChart(month, revenueMonths)
	if err != nil {
		return nil, err
	}
	sum, err := s.MonthlySummary(month)
	if err != nil {
		return nil, err
	}
	ending, err := s.endingSoon(today)
	if err != nil {
		return nil, err
	}
	activity, err := s.recentActivity(now)
	if err != nil {
		return nil, err
	}

	current := zeroTotals()
	if n := len(chart.Points); n > 0 {
		last := chart.Points[n-1]
		current.add(last.Rent, last.Charges)
	}
	return &Dashboard{
		Date:         period.Format(today),
		Occupancy:    *occ,
		CurrentMonth: current,
		Missing:      sum.Missing,
		Outstanding:  sum.Outstanding,
		EndingSoon:   ending,
		Activity:     activity,
		Revenue:      *chart,
	}, nil
}

func (s *Service) occupancy() (*Occupancy, error) {
	var o Occupancy
	counts := []struct {
		model any
		where string
		out   *int64
	}{
		{&models.Building{}, "", &o.Buildings},
		{&models.Apartment{}, "", &o.Apartments},
		{&models.Apartment{}, "rented = ?", &o.Rented},
		{&models.Tenant{}, "active = ?", &o.ActiveTenants},
	}
	for _, c := range counts {
		q := s.db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, true)
		}
		if err := q.Count(c.out).Error; err != nil {
			return nil, fmt.Errorf("taux d'occupation: %w", err)
		}
	}
	o.Rate = decimal.Zero
	if o.Apartments > 0 {
		o.Rate = decimal.NewFromInt(o.Rented * 100).Div(decimal.NewFromInt(o.Apartments)).Round(1)
	}
	return &o, nil
}

// RevenueChart sums the validated rents and charges of the count months
// ending with last. Months without payment are kept as zero points.
func (s *Service) RevenueChart(last time.Time, count int) (*RevenueChart, error) {
	if count <= 0 {
		count = revenueMonths
	}
	last = period.MonthStart(last)
	first := last.AddDate(0, -(count - 1), 0)

	var payments []models.Payment
	err := s.db.Where("validated = ? AND month >= ? AND month <= ?", true, first, last).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("revenus %s: %w", last.Format(period.MonthLayout), err)
	}

	buckets := make(map[string]*RevenueTotals, count)
	for _, p := range payments {
		key := period.MonthStart(p.Month).Format(period.MonthLayout)
		b, ok := buckets[key]
		if !ok {
			t := zeroTotals()
			b = &t
			buckets[key] = b
		}
		b.add(p.Rent, p.Charges)
	}

	chart := &RevenueChart{
		From:        period.Format(first),
		To:          period.Format(last.AddDate(0, 1, -1)),
		Points:      make([]RevenuePoint, 0, count),
		GrandTotals: zeroTotals(),
	}
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		label := m.Format(period.MonthLayout)
		b := zeroTotals()
		if got, ok := buckets[label]; ok {
			b = *got
		}
		chart.Points = append(chart.Points, RevenuePoint{Label: label, Rent: b.Rent, Charges: b.Charges, Total: b.Total})
		chart.GrandTotals.add(b.Rent, b.Charges)
	}
	return chart, nil
}

func (s *Service) endingSoon(today time.Time) ([]EndingLease, error) {
	var leases []models.Lease
	err := s.db.Model(&models.Lease{}).
		Where("active = ? AND end_date >= ? AND end_date <= ?", true, today, today.AddDate(0, 0, endingHorizon)).
		Preload("Apartment.Building").
		Preload("Memberships.Tenant").
		Order("end_date, id").
		Limit(endingLimit).
		Find(&leases).Error
	if err != nil {
		return nil, fmt.Errorf("baux arrivant à échéance: %w", err)
	}
	out := make([]EndingLease, 0, len(leases))
	for _, l := range leases {
		e := EndingLease{
			LeaseID:  l.ID,
			Tenants:  lease.DisplayNameOf(l.Memberships, lease.DefaultSeparator),
			EndDate:  period.Format(*l.EndDate),
			DaysLeft: period.DaysBetween(today, *l.EndDate),
		}
		if l.Apartment != nil {
			e.Apartment = l.Apartment.Label()
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Service) recentActivity(now time.Time) ([]Activity, error) {
	since := now.AddDate(0, 0, -activityWindow)

	var payments []models.Payment
	err := s.db.Where("created_at >= ?", since).
		Preload("Lease.Memberships.Tenant").
		Order("created_at DESC, id DESC").
		Limit(activityPerKind).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("paiements récents: %w", err)
	}
	var receipts []models.Receipt
	err = s.db.Where("generated_at >= ?", since).
		Preload("Lease.Memberships.Tenant").
		Order("generated_at DESC, id DESC").
		Limit(activityPerKind).
		Find(&receipts).Error
	if err != nil {
		return nil, fmt.Errorf("quittances récentes: %w", err)
	}

	names := func(l *models.Lease) string {
		if l == nil {
			return ""
		}
		return lease.DisplayNameOf(l.Memberships, lease.DefaultSeparator)
	}
	out := make([]Activity, 0, len(payments)+len(receipts))
	for _, p := range payments {
		out = append(out, Activity{
			Kind:        "paiement",
			ID:          p.ID,
			At:          p.CreatedAt,
			Description: fmt.Sprintf("Paiement de %s - %s €", names(p.Lease), p.Total().StringFixed(2)),
		})
	}
	for _, r := range receipts {
		out = append(out, Activity{
			Kind:        "quittance",
			ID:          r.ID,
			At:          r.GeneratedAt,
			Description: fmt.Sprintf("Quittance %s générée pour %s", r.Number, names(r.Lease)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if len(out) > activityLimit {
		out = out[:activityLimit]
	}
	return out, nil
}
