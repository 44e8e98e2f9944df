package lease

import (
	"fmt"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	defaultBillingDay int
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log, defaultBillingDay: models.DefaultBillingDay}
}

// WithDefaultBillingDay sets the billing day used when a lease omits it.
func (s *Service) WithDefaultBillingDay(day int) *Service {
	if day >= 1 && day <= 31 {
		s.defaultBillingDay = day
	}
	return s
}

type Terms struct {
	ApartmentID     uint
	StartDate       time.Time
	EndDate         *time.Time
	MonthlyRent     decimal.NullDecimal
	MonthlyCharges  decimal.NullDecimal
	Deposit         decimal.NullDecimal
	ReferenceIndex  decimal.NullDecimal
	RevisionDate    *time.Time
	BillingDay      int // 0 means the default
	ContractFile    string
	EntryReportFile string
	ExitReportFile  string
	Notes           string
}

func (s *Service) checkTerms(t *Terms) error {
	if t.BillingDay == 0 {
		t.BillingDay = s.defaultBillingDay
	}
	if t.BillingDay < 1 || t.BillingDay > 31 {
		return apperr.Validation(apperr.CodeInvalidBillingDay, "le jour d'échéance doit être entre 1 et 31 (reçu %d)", t.BillingDay)
	}
	t.StartDate = period.Day(t.StartDate)
	if t.EndDate != nil {
		end := period.Day(*t.EndDate)
		if end.Before(t.StartDate) {
			return apperr.Validation(apperr.CodeDateOrder, "la date de fin précède la date de début")
		}
		t.EndDate = &end
	}
	for name, v := range map[string]decimal.NullDecimal{
		"loyer":    t.MonthlyRent,
		"charges":  t.MonthlyCharges,
		"garantie": t.Deposit,
	} {
		if v.Valid && v.Decimal.IsNegative() {
			return apperr.Validation(apperr.CodeInvalidAmount, "montant %s négatif", name)
		}
	}
	return nil
}

func (t Terms) apply(l *models.Lease) {
	l.ApartmentID = t.ApartmentID
	l.StartDate = t.StartDate
	l.EndDate = t.EndDate
	l.MonthlyRent = t.MonthlyRent
	l.MonthlyCharges = t.MonthlyCharges
	l.Deposit = t.Deposit
	l.ReferenceIndex = t.ReferenceIndex
	l.RevisionDate = t.RevisionDate
	l.BillingDay = t.BillingDay
	l.ContractFile = t.ContractFile
	l.EntryReportFile = t.EntryReportFile
	l.ExitReportFile = t.ExitReportFile
	l.Notes = t.Notes
}

// Create stores an active lease and flags the apartment as rented.
func (s *Service) Create(t Terms) (*models.Lease, error) {
	if err := s.checkTerms(&t); err != nil {
		return nil, err
	}
	l := models.Lease{Active: true}
	t.apply(&l)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var apt models.Apartment
		if err := tx.First(&apt, t.ApartmentID).Error; err != nil {
			return apperr.FromDB(err, "appartement", t.ApartmentID)
		}
		if err := tx.Create(&l).Error; err != nil {
			return fmt.Errorf("création bail: %w", err)
		}
		return tx.Model(&apt).Update("rented", true).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bail créé", zap.Uint("lease_id", l.ID), zap.Uint("apartment_id", l.ApartmentID))
	return &l, nil
}

func (s *Service) Update(id uint, t Terms) (*models.Lease, error) {
	if err := s.checkTerms(&t); err != nil {
		return nil, err
	}
	var l models.Lease
	if err := s.db.First(&l, id).Error; err != nil {
		return nil, apperr.FromDB(err, "bail", id)
	}
	t.apply(&l)
	if err := s.db.Save(&l).Error; err != nil {
		return nil, fmt.Errorf("mise à jour bail %d: %w", id, err)
	}
	return &l, nil
}

// Get loads a lease with its apartment, building and memberships.
func (s *Service) Get(id uint) (*models.Lease, error) {
	return load(s.db, id)
}

func load(db *gorm.DB, id uint) (*models.Lease, error) {
	var l models.Lease
	err := db.
		Preload("Apartment.Building").
		Preload("Memberships", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order, id")
		}).
		Preload("Memberships.Tenant").
		First(&l, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "bail", id)
	}
	return &l, nil
}

type ListFilter struct {
	ActiveOnly  bool
	BuildingID  uint
	ApartmentID uint
	TenantID    uint
}

func (s *Service) List(f ListFilter) ([]models.Lease, error) {
	q := s.db.Model(&models.Lease{}).
		Preload("Apartment.Building").
		Preload("Memberships", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order, id")
		}).
		Preload("Memberships.Tenant")
	if f.ActiveOnly {
		q = q.Where("leases.active = ?", true)
	}
	if f.ApartmentID > 0 {
		q = q.Where("leases.apartment_id = ?", f.ApartmentID)
	}
	if f.BuildingID > 0 {
		q = q.Where("leases.apartment_id IN (?)",
			s.db.Model(&models.Apartment{}).Select("id").Where("building_id = ?", f.BuildingID))
	}
	if f.TenantID > 0 {
		q = q.Where("leases.id IN (?)",
			s.db.Model(&models.TenancyMembership{}).Select("lease_id").Where("tenant_id = ?", f.TenantID))
	}
	var leases []models.Lease
	if err := q.Order("leases.start_date DESC, leases.id DESC").Find(&leases).Error; err != nil {
		return nil, err
	}
	return leases, nil
}

// Terminate ends the lease on date and frees the apartment.
func (s *Service) Terminate(id uint, date time.Time) (*models.Lease, error) {
	date = period.Day(date)
	var l models.Lease
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
			return apperr.FromDB(err, "bail", id)
		}
		if date.Before(l.StartDate) {
			return apperr.Validation(apperr.CodeDateOrder, "la fin effective précède le début du bail")
		}
		l.Active = false
		l.EffectiveEndDate = &date
		if err := tx.Save(&l).Error; err != nil {
			return err
		}
		return tx.Model(&models.Apartment{}).Where("id = ?", l.ApartmentID).Update("rented", false).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bail résilié", zap.Uint("lease_id", id), zap.Time("date", date))
	return &l, nil
}

func (s *Service) RecordNotice(id uint, date time.Time) (*models.Lease, error) {
	date = period.Day(date)
	var l models.Lease
	if err := s.db.First(&l, id).Error; err != nil {
		return nil, apperr.FromDB(err, "bail", id)
	}
	l.NoticeGiven = true
	l.NoticeDate = &date
	if err := s.db.Save(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// Delete removes a lease without financial history.
func (s *Service) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var l models.Lease
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
			return apperr.FromDB(err, "bail", id)
		}
		var payments, receipts int64
		if err := tx.Model(&models.Payment{}).Where("lease_id = ?", id).Count(&payments).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Receipt{}).Where("lease_id = ?", id).Count(&receipts).Error; err != nil {
			return err
		}
		if payments+receipts > 0 {
			return apperr.Precondition(apperr.CodeLeaseHasHistory,
				"le bail %d a %d paiement(s) et %d quittance(s), résiliez-le plutôt", id, payments, receipts)
		}
		if err := tx.Where("lease_id = ?", id).Delete(&models.TenancyMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&l).Error; err != nil {
			return err
		}
		if l.Active {
			return tx.Model(&models.Apartment{}).Where("id = ?", l.ApartmentID).Update("rented", false).Error
		}
		return nil
	})
}

// ActiveForMonth lists leases running during the month starting at m:
// active, started on or before m, no end or ending on or after m.
func ActiveForMonth(db *gorm.DB, m time.Time) *gorm.DB {
	m = period.MonthStart(m)
	return db.Model(&models.Lease{}).
		Where("leases.active = ? AND leases.start_date <= ?", true, m).
		Where("leases.end_date IS NULL OR leases.end_date >= ?", m)
}
