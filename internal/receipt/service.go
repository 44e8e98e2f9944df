// Package receipt issues the monthly rent receipts (quittances).
package receipt

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/lease"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const numberAttempts = 3

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	renderer Renderer
	store    Store
	now      func() time.Time
}

// NewService builds the receipt service. A nil renderer or store turns
// document publishing off.
func NewService(db *gorm.DB, log *zap.Logger, renderer Renderer, store Store) *Service {
	return &Service{db: db, log: log, renderer: renderer, store: store, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NextNumber returns the next free number of the month, Q<yyyy><mm><nnnn>.
// The sequence widens past 9999, so the last number is the longest one.
func NextNumber(db *gorm.DB, month time.Time) (string, error) {
	prefix := "Q" + period.Prefix(month)
	var last []string
	err := db.Model(&models.Receipt{}).
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &last).Error
	if err != nil {
		return "", fmt.Errorf("numéro quittance %s: %w", prefix, err)
	}
	next := 1
	if len(last) == 1 {
		if n, err := strconv.Atoi(strings.TrimPrefix(last[0], prefix)); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

// Generate issues the receipt of leaseID for month. An existing receipt is
// returned untouched unless force is set. Amounts come from the payment
// when given, else from the existing receipt, else from the lease terms.
// Publishing the document happens after commit and never fails the call.
func (s *Service) Generate(ctx context.Context, leaseID uint, month time.Time, paymentID *uint, force bool) (*models.Receipt, error) {
	month = period.MonthStart(month)
	var (
		r       *models.Receipt
		created bool
		err     error
	)
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		r, created, err = s.generate(leaseID, month, paymentID, force)
		if err == nil || !apperr.IsUniqueViolation(err) {
			break
		}
		s.log.Warn("collision numéro de quittance, nouvel essai",
			zap.Uint("lease_id", leaseID), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	if created || force {
		s.publish(ctx, r)
	}
	return r, nil
}

func (s *Service) generate(leaseID uint, month time.Time, paymentID *uint, force bool) (*models.Receipt, bool, error) {
	var (
		r       models.Receipt
		created bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var l models.Lease
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, leaseID).Error; err != nil {
			return apperr.FromDB(err, "bail", leaseID)
		}

		found := tx.Where("lease_id = ? AND month = ?", leaseID, month).Limit(1).Find(&r)
		if found.Error != nil {
			return found.Error
		}
		exists := found.RowsAffected > 0
		if exists && !force {
			return nil
		}

		var p *models.Payment
		if paymentID != nil {
			p = &models.Payment{}
			if err := tx.First(p, *paymentID).Error; err != nil {
				return apperr.FromDB(err, "paiement", *paymentID)
			}
			if p.LeaseID != leaseID || !p.Month.Equal(month) {
				return apperr.Validation(apperr.CodeInvalidInput, "le paiement %d ne correspond pas au bail %d pour %s",
					p.ID, leaseID, month.Format(period.MonthLayout))
			}
		}

		switch {
		case p != nil:
			r.Rent, r.Charges = p.Rent, p.Charges
			r.PaymentID = &p.ID
		case exists:
		default:
			r.Rent, r.Charges = l.MonthlyRent.Decimal, l.MonthlyCharges.Decimal
		}
		r.Rent = r.Rent.Round(2)
		r.Charges = r.Charges.Round(2)
		r.Total = r.Rent.Add(r.Charges)

		if !exists {
			number, err := NextNumber(tx, month)
			if err != nil {
				return err
			}
			r.LeaseID = leaseID
			r.Month = month
			r.Number = number
			created = true
		}
		if err := tx.Save(&r).Error; err != nil {
			return err
		}
		if p != nil {
			if err := tx.Model(p).Update("receipt_id", r.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &r, created, nil
}

// GenerateFromPayment issues the receipt matching a recorded payment.
func (s *Service) GenerateFromPayment(ctx context.Context, paymentID uint) (*models.Receipt, error) {
	var p models.Payment
	if err := s.db.First(&p, paymentID).Error; err != nil {
		return nil, apperr.FromDB(err, "paiement", paymentID)
	}
	return s.Generate(ctx, p.LeaseID, p.Month, &p.ID, false)
}

// Snapshot rebuilds what the receipt prints from the current database
// state.
func (s *Service) Snapshot(id uint) (*Snapshot, error) {
	var r models.Receipt
	if err := s.db.First(&r, id).Error; err != nil {
		return nil, apperr.FromDB(err, "quittance", id)
	}
	var l models.Lease
	err := s.db.Preload("Apartment.Building").Preload("Apartment.Owner").
		Preload("Memberships.Tenant").
		First(&l, r.LeaseID).Error
	if err != nil {
		return nil, apperr.FromDB(err, "bail", r.LeaseID)
	}
	snap := NewSnapshot(r, l, s.now())
	return &snap, nil
}

func (s *Service) publish(ctx context.Context, r *models.Receipt) {
	if s.renderer == nil || s.store == nil {
		return
	}
	log := s.log.With(zap.Uint("receipt_id", r.ID), zap.String("number", r.Number))
	snap, err := s.Snapshot(r.ID)
	if err != nil {
		log.Error("lecture quittance pour le PDF", zap.Error(err))
		return
	}
	data, err := s.renderer.Render(*snap)
	if err != nil {
		log.Error("génération PDF échouée, quittance conservée", zap.Error(err))
		return
	}
	key := DocumentKey(r.Month, r.Number)
	if err := s.store.Put(ctx, key, data); err != nil {
		log.Error("stockage PDF échoué, quittance conservée", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.db.Model(r).Update("document_key", key).Error; err != nil {
		log.Error("enregistrement du document", zap.Error(err))
		return
	}
	r.DocumentKey = key
}

type BatchError struct {
	LeaseID uint   `json:"lease_id"`
	Error   string `json:"error"`
}

type BatchResult struct {
	Month     string           `json:"month"`
	Leases    int              `json:"leases"`
	Generated []models.Receipt `json:"generated"`
	Errors    []BatchError     `json:"errors"`
}

// GenerateMonth issues the receipts of every lease running in month,
// optionally restricted to some buildings and to leases with a received
// payment. A failing lease is reported and does not stop the batch.
func (s *Service) GenerateMonth(ctx context.Context, month time.Time, buildingIDs []uint, onlyPaid bool) (*BatchResult, error) {
	month = period.MonthStart(month)
	q := lease.ActiveForMonth(s.db, month)
	if len(buildingIDs) > 0 {
		q = q.Joins("JOIN apartments ON apartments.id = leases.apartment_id").
			Where("apartments.building_id IN ?", buildingIDs)
	}
	var leases []models.Lease
	if err := q.Order("leases.id").Find(&leases).Error; err != nil {
		return nil, fmt.Errorf("baux actifs %s: %w", month.Format(period.MonthLayout), err)
	}

	var payments []models.Payment
	if len(leases) > 0 {
		ids := make([]uint, len(leases))
		for i, l := range leases {
			ids[i] = l.ID
		}
		if err := s.db.Where("lease_id IN ? AND month = ?", ids, month).Find(&payments).Error; err != nil {
			return nil, err
		}
	}
	byLease := make(map[uint]models.Payment, len(payments))
	for _, p := range payments {
		byLease[p.LeaseID] = p
	}

	res := &BatchResult{Month: month.Format(period.MonthLayout), Generated: []models.Receipt{}, Errors: []BatchError{}}
	for _, l := range leases {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var paymentID *uint
		p, paid := byLease[l.ID]
		if paid {
			paymentID = &p.ID
		}
		if onlyPaid && (!paid || (p.Status != models.PaymentReceived && p.Status != models.PaymentValidated)) {
			continue
		}
		res.Leases++
		r, err := s.Generate(ctx, l.ID, month, paymentID, false)
		if err != nil {
			res.Errors = append(res.Errors, BatchError{LeaseID: l.ID, Error: err.Error()})
			continue
		}
		res.Generated = append(res.Generated, *r)
	}
	s.log.Info("génération mensuelle des quittances",
		zap.String("month", res.Month), zap.Int("leases", res.Leases),
		zap.Int("generated", len(res.Generated)), zap.Int("errors", len(res.Errors)))
	return res, nil
}

// Regenerate recomputes and republishes an existing receipt.
func (s *Service) Regenerate(ctx context.Context, id uint) (*models.Receipt, error) {
	var r models.Receipt
	if err := s.db.First(&r, id).Error; err != nil {
		return nil, apperr.FromDB(err, "quittance", id)
	}
	return s.Generate(ctx, r.LeaseID, r.Month, r.PaymentID, true)
}

func (s *Service) MarkSent(id uint, mode models.SendMode) (*models.Receipt, error) {
	if !mode.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "mode d'envoi %q inconnu", mode)
	}
	var r models.Receipt
	if err := s.db.First(&r, id).Error; err != nil {
		return nil, apperr.FromDB(err, "quittance", id)
	}
	sentAt := s.now()
	r.Sent = true
	r.SentAt = &sentAt
	r.SendMode = mode
	if err := s.db.Model(&r).Updates(map[string]any{"sent": true, "sent_at": sentAt, "send_mode": mode}).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) Get(id uint) (*models.Receipt, error) {
	var r models.Receipt
	if err := s.db.Preload("Lease.Apartment.Building").First(&r, id).Error; err != nil {
		return nil, apperr.FromDB(err, "quittance", id)
	}
	return &r, nil
}

type Filter struct {
	LeaseID uint
	Month   *time.Time
	Sent    *bool
}

func (s *Service) List(f Filter) ([]models.Receipt, error) {
	q := s.db.Preload("Lease.Apartment.Building")
	if f.LeaseID > 0 {
		q = q.Where("lease_id = ?", f.LeaseID)
	}
	if f.Month != nil {
		q = q.Where("month = ?", period.MonthStart(*f.Month))
	}
	if f.Sent != nil {
		q = q.Where("sent = ?", *f.Sent)
	}
	var rs []models.Receipt
	err := q.Order("month DESC, number DESC").Find(&rs).Error
	return rs, err
}

// Document opens the stored PDF of the receipt.
func (s *Service) Document(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	var r models.Receipt
	if err := s.db.First(&r, id).Error; err != nil {
		return nil, "", apperr.FromDB(err, "quittance", id)
	}
	if r.DocumentKey == "" || s.store == nil {
		return nil, "", apperr.Precondition(apperr.CodeNotFound, "aucun document pour la quittance %s", r.Number)
	}
	rc, err := s.store.Open(ctx, r.DocumentKey)
	if err != nil {
		return nil, "", fmt.Errorf("ouverture %s: %w", r.DocumentKey, err)
	}
	return rc, "quittance_" + r.Number + ".pdf", nil
}
