// Package payment reconciles tenant payments with the terms of their lease.
package payment

import (
	"fmt"
	"strings"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var varianceTolerance = decimal.New(1, -2)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

// WithClock replaces the clock used for the future-date checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ExpectedAmount is what the lease asks for each month.
func ExpectedAmount(l models.Lease) decimal.Decimal {
	return l.TotalRent()
}

// DueDate is the billing day of the lease in month, clamped to the end of
// the month.
func DueDate(l models.Lease, month time.Time) time.Time {
	return period.ClampDay(month, l.BillingDay)
}

func dueOf(p models.Payment) time.Time {
	if p.DueDate != nil {
		return *p.DueDate
	}
	return period.ClampDay(p.Month, models.DefaultBillingDay)
}

// IsLate compares the payment date with the due date, or with the 5th of
// the month when the payment has none.
func IsLate(p models.Payment) bool {
	return period.Day(p.PaymentDate).After(dueOf(p))
}

func LateDays(p models.Payment) int {
	if !IsLate(p) {
		return 0
	}
	return period.DaysBetween(dueOf(p), p.PaymentDate)
}

func IsComplete(p models.Payment, l models.Lease) bool {
	return p.Total().GreaterThanOrEqual(ExpectedAmount(l))
}

type Input struct {
	LeaseID     uint
	Month       time.Time
	Rent        decimal.Decimal
	Charges     decimal.Decimal
	Other       decimal.Decimal
	PaymentDate time.Time
	DueDate     *time.Time // derived from the lease when nil
	Mode        models.PaymentMode
	Reference   string
	Status      models.PaymentStatus // recu when empty
	Validated   bool
	Notes       string
}

// Result carries the saved payment and the non-blocking remarks raised
// while saving it.
type Result struct {
	Payment  *models.Payment `json:"payment"`
	Warnings []string        `json:"warnings"`
}

func (s *Service) checkInput(in *Input) error {
	today := period.Day(s.now())
	in.Month = period.MonthStart(in.Month)
	in.PaymentDate = period.Day(in.PaymentDate)
	if in.Month.After(period.MonthStart(today)) {
		return apperr.Validation(apperr.CodeFutureDate, "le mois %s est dans le futur", in.Month.Format(period.MonthLayout))
	}
	if in.PaymentDate.After(today) {
		return apperr.Validation(apperr.CodeFutureDate, "la date de paiement %s est dans le futur", period.Format(in.PaymentDate))
	}
	if in.Rent.IsNegative() || in.Charges.IsNegative() || in.Other.IsNegative() {
		return apperr.Validation(apperr.CodeInvalidAmount, "les montants ne peuvent pas être négatifs")
	}
	if !in.Rent.Add(in.Charges).Add(in.Other).IsPositive() {
		return apperr.Validation(apperr.CodeInvalidAmount, "le montant total doit être positif")
	}
	if !in.Mode.Valid() {
		return apperr.Validation(apperr.CodeInvalidInput, "mode de paiement %q inconnu", in.Mode)
	}
	if in.Status == "" {
		in.Status = models.PaymentReceived
	}
	if !in.Status.Valid() {
		return apperr.Validation(apperr.CodeInvalidInput, "statut %q inconnu", in.Status)
	}
	in.Reference = strings.TrimSpace(in.Reference)
	return nil
}

// reconcile fills the derived fields of p against the lease terms and
// returns the warnings to report.
func reconcile(p *models.Payment, in Input, l models.Lease) []string {
	p.LeaseID = in.LeaseID
	p.Month = in.Month
	p.Rent = in.Rent.Round(2)
	p.Charges = in.Charges.Round(2)
	p.Other = in.Other.Round(2)
	p.PaymentDate = in.PaymentDate
	p.Mode = in.Mode
	p.Reference = in.Reference
	p.Status = in.Status
	p.Validated = in.Validated
	p.Notes = in.Notes
	if in.DueDate != nil {
		due := period.Day(*in.DueDate)
		p.DueDate = &due
	} else {
		due := DueDate(l, in.Month)
		p.DueDate = &due
	}

	var warnings []string
	expected := ExpectedAmount(l)
	if p.Total().LessThan(expected) {
		if p.Status != models.PaymentPartial {
			warnings = append(warnings, fmt.Sprintf("statut forcé à %q : %s € reçus pour %s € attendus",
				models.PaymentPartial, p.Total().StringFixed(2), expected.StringFixed(2)))
		}
		p.Status = models.PaymentPartial
	}
	if diff := p.Rent.Add(p.Charges).Sub(expected).Abs(); diff.GreaterThan(varianceTolerance) {
		warnings = append(warnings, fmt.Sprintf("loyer + charges (%s €) différent du montant du bail (%s €)",
			p.Rent.Add(p.Charges).StringFixed(2), expected.StringFixed(2)))
	}
	return warnings
}

func lockLease(tx *gorm.DB, id uint) (*models.Lease, error) {
	var l models.Lease
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
		return nil, apperr.FromDB(err, "bail", id)
	}
	return &l, nil
}

func duplicatePeriod(month time.Time) error {
	return apperr.Conflict(apperr.CodeDuplicatePaymentPeriod, "un paiement existe déjà pour %s", month.Format(period.MonthLayout))
}

// save runs the duplicate check and the write under the lease lock.
// store writes p. The (lease, month) unique index backs the count check in
// save when two writers race.
func store(tx *gorm.DB, p *models.Payment) error {
	if err := tx.Save(p).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return duplicatePeriod(p.Month)
		}
		return fmt.Errorf("enregistrement paiement: %w", err)
	}
	return nil
}

func (s *Service) save(in Input, id uint) (*Result, error) {
	if err := s.checkInput(&in); err != nil {
		return nil, err
	}
	var res Result
	err := s.db.Transaction(func(tx *gorm.DB) error {
		l, err := lockLease(tx, in.LeaseID)
		if err != nil {
			return err
		}
		var p models.Payment
		if id > 0 {
			if err := tx.First(&p, id).Error; err != nil {
				return apperr.FromDB(err, "paiement", id)
			}
		}
		var count int64
		err = tx.Model(&models.Payment{}).
			Where("lease_id = ? AND month = ? AND id <> ?", in.LeaseID, in.Month, id).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return duplicatePeriod(in.Month)
		}

		res.Warnings = reconcile(&p, in, *l)
		if err := store(tx, &p); err != nil {
			return err
		}
		res.Payment = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(res.Warnings) > 0 {
		s.log.Info("paiement enregistré avec remarques",
			zap.Uint("payment_id", res.Payment.ID), zap.Strings("warnings", res.Warnings))
	}
	return &res, nil
}

func (s *Service) Record(in Input) (*Result, error) {
	return s.save(in, 0)
}

func (s *Service) Update(id uint, in Input) (*Result, error) {
	if id == 0 {
		return nil, apperr.NotFound("paiement", id)
	}
	return s.save(in, id)
}

// RecordQuick records a full payment of the lease terms for month.
func (s *Service) RecordQuick(leaseID uint, month, date time.Time, mode models.PaymentMode, reference string) (*Result, error) {
	var l models.Lease
	if err := s.db.First(&l, leaseID).Error; err != nil {
		return nil, apperr.FromDB(err, "bail", leaseID)
	}
	return s.Record(Input{
		LeaseID:     leaseID,
		Month:       month,
		Rent:        l.MonthlyRent.Decimal,
		Charges:     l.MonthlyCharges.Decimal,
		Other:       decimal.Zero,
		PaymentDate: date,
		Mode:        mode,
		Reference:   reference,
		Status:      models.PaymentReceived,
	})
}

func (s *Service) Get(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.Preload("Lease.Apartment.Building").First(&p, id).Error; err != nil {
		return nil, apperr.FromDB(err, "paiement", id)
	}
	return &p, nil
}

// Validate marks the payment as checked against the bank statement.
func (s *Service) Validate(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, apperr.FromDB(err, "paiement", id)
	}
	p.Validated = true
	if p.Status == models.PaymentReceived {
		p.Status = models.PaymentValidated
	}
	if err := s.db.Model(&p).Updates(map[string]any{"validated": true, "status": p.Status}).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Delete(id uint) (*models.Payment, error) {
	var p models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return apperr.FromDB(err, "paiement", id)
		}
		if err := tx.Model(&models.Receipt{}).Where("payment_id = ?", id).Update("payment_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type Filter struct {
	LeaseID  uint
	From, To *time.Time // months, inclusive
	Status   models.PaymentStatus
	Mode     models.PaymentMode
	LateOnly bool
}

func (s *Service) List(f Filter) ([]models.Payment, error) {
	q := s.db.Model(&models.Payment{}).Preload("Lease.Apartment.Building")
	if f.LeaseID > 0 {
		q = q.Where("lease_id = ?", f.LeaseID)
	}
	if f.From != nil {
		q = q.Where("month >= ?", period.MonthStart(*f.From))
	}
	if f.To != nil {
		q = q.Where("month <= ?", period.MonthStart(*f.To))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Mode != "" {
		q = q.Where("mode = ?", f.Mode)
	}
	var ps []models.Payment
	if err := q.Order("month DESC, lease_id").Find(&ps).Error; err != nil {
		return nil, err
	}
	if !f.LateOnly {
		return ps, nil
	}
	late := ps[:0]
	for _, p := range ps {
		if IsLate(p) {
			late = append(late, p)
		}
	}
	return late, nil
}
