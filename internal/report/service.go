// Package report builds the monthly rent follow-up and the spreadsheet
// exports.
package report

import (
	"fmt"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/lease"
	"gestion-locative/internal/models"
	"gestion-locative/internal/payment"
	"gestion-locative/internal/period"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// LeaseLine is one lease of the monthly follow-up.
type LeaseLine struct {
	LeaseID       uint                 `json:"lease_id"`
	Apartment     string               `json:"apartment"`
	Tenants       string               `json:"tenants"`
	Expected      decimal.Decimal      `json:"expected"`
	Received      decimal.Decimal      `json:"received"`
	PaymentID     *uint                `json:"payment_id"`
	PaymentDate   *string              `json:"payment_date"`
	Status        models.PaymentStatus `json:"status"`
	Missing       bool                 `json:"missing"`
	Partial       bool                 `json:"partial"`
	Late          bool                 `json:"late"`
	LateDays      int                  `json:"late_days"`
	ReceiptNumber string               `json:"receipt_number"`
}

type MonthlySummary struct {
	Month       string          `json:"month"`
	Lines       []LeaseLine     `json:"lines"`
	Expected    decimal.Decimal `json:"expected"`
	Received    decimal.Decimal `json:"received"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Missing     int             `json:"missing"`
	Partial     int             `json:"partial"`
	Late        int             `json:"late"`
}

func (s *Service) leasesFor(month time.Time) ([]models.Lease, error) {
	var leases []models.Lease
	err := lease.ActiveForMonth(s.db, month).
		Preload("Apartment.Building").
		Preload("Memberships.Tenant").
		Order("leases.id").
		Find(&leases).Error
	if err != nil {
		return nil, fmt.Errorf("baux actifs %s: %w", month.Format(period.MonthLayout), err)
	}
	return leases, nil
}

// MonthlySummary compares, for every lease running in month, what was
// expected with what was received.
func (s *Service) MonthlySummary(month time.Time) (*MonthlySummary, error) {
	month = period.MonthStart(month)
	leases, err := s.leasesFor(month)
	if err != nil {
		return nil, err
	}

	var payments []models.Payment
	if err := s.db.Where("month = ?", month).Find(&payments).Error; err != nil {
		return nil, err
	}
	paid := make(map[uint]models.Payment, len(payments))
	for _, p := range payments {
		paid[p.LeaseID] = p
	}
	var receipts []models.Receipt
	if err := s.db.Where("month = ?", month).Find(&receipts).Error; err != nil {
		return nil, err
	}
	numbers := make(map[uint]string, len(receipts))
	for _, r := range receipts {
		numbers[r.LeaseID] = r.Number
	}

	sum := &MonthlySummary{
		Month:    month.Format(period.MonthLayout),
		Lines:    make([]LeaseLine, 0, len(leases)),
		Expected: decimal.Zero,
		Received: decimal.Zero,
	}
	for _, l := range leases {
		line := LeaseLine{
			LeaseID:       l.ID,
			Tenants:       lease.DisplayNameOf(l.Memberships, lease.DefaultSeparator),
			Expected:      payment.ExpectedAmount(l),
			Received:      decimal.Zero,
			ReceiptNumber: numbers[l.ID],
		}
		if l.Apartment != nil {
			line.Apartment = l.Apartment.Label()
		}
		if p, ok := paid[l.ID]; ok {
			id := p.ID
			line.PaymentID = &id
			line.PaymentDate = period.FormatOptional(&p.PaymentDate)
			line.Received = p.Total()
			line.Status = p.Status
			line.Partial = !payment.IsComplete(p, l)
			line.Late = payment.IsLate(p)
			line.LateDays = payment.LateDays(p)
		} else {
			line.Missing = true
		}

		sum.Expected = sum.Expected.Add(line.Expected)
		sum.Received = sum.Received.Add(line.Received)
		if line.Missing {
			sum.Missing++
		}
		if line.Partial {
			sum.Partial++
		}
		if line.Late {
			sum.Late++
		}
		sum.Lines = append(sum.Lines, line)
	}
	sum.Expected = sum.Expected.Round(2)
	sum.Received = sum.Received.Round(2)
	sum.Outstanding = decimal.Max(sum.Expected.Sub(sum.Received), decimal.Zero)
	return sum, nil
}

func (s *Service) expenseWithAllocations(id uint) (*models.Expense, error) {
	var e models.Expense
	err := s.db.Preload("Type").Preload("Building").
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("apartment_id") }).
		Preload("Allocations.Apartment.Building").
		First(&e, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "dépense", id)
	}
	return &e, nil
}
