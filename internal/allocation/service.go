package allocation

import (
	"fmt"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/expense"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

func lockExpense(tx *gorm.DB, id uint) (*models.Expense, error) {
	var e models.Expense
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, id).Error; err != nil {
		return nil, apperr.FromDB(err, "dépense", id)
	}
	return &e, nil
}

func basisOf(a models.Apartment, mode models.AllocationMode) decimal.NullDecimal {
	switch mode {
	case models.ModeSurface:
		return a.Surface
	case models.ModeTantieme:
		if a.Milliemes != nil {
			return decimal.NewNullDecimal(decimal.NewFromInt(int64(*a.Milliemes)))
		}
	}
	return decimal.NullDecimal{}
}

type SplitResult struct {
	Allocations []models.ExpenseAllocation `json:"allocations"`
	Skipped     []uint                     `json:"skipped_apartment_ids"`
}

// Split replaces every allocation of the expense with a computed split over
// apartmentIDs, or over every apartment of the expense's building when
// apartmentIDs is empty.
func (s *Service) Split(expenseID uint, mode models.AllocationMode, apartmentIDs []uint) (*SplitResult, error) {
	var res SplitResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := lockExpense(tx, expenseID)
		if err != nil {
			return err
		}
		if !e.Allocatable {
			return apperr.Precondition(apperr.CodeNotAllocatable, "la dépense %q n'est pas répartissable", e.Designation)
		}

		var apartments []models.Apartment
		q := tx.Order("id")
		switch {
		case len(apartmentIDs) > 0:
			q = q.Where("id IN ?", apartmentIDs)
		case e.BuildingID != nil:
			q = q.Where("building_id = ?", *e.BuildingID)
		default:
			return apperr.Validation(apperr.CodeEmptyTarget, "aucun appartement à répartir")
		}
		if err := q.Find(&apartments).Error; err != nil {
			return err
		}
		if len(apartmentIDs) > 0 && len(apartments) != len(uniq(apartmentIDs)) {
			return apperr.Validation(apperr.CodeInvalidInput, "appartement inconnu dans la sélection")
		}

		bases := make([]Basis, 0, len(apartments))
		for _, a := range apartments {
			bases = append(bases, Basis{ApartmentID: a.ID, Value: basisOf(a, mode)})
		}
		plan, err := Compute(e.AmountTTC, mode, bases)
		if err != nil {
			return err
		}

		if err := tx.Where("expense_id = ?", e.ID).Delete(&models.ExpenseAllocation{}).Error; err != nil {
			return err
		}
		for _, sh := range plan.Shares {
			a := models.ExpenseAllocation{
				ExpenseID:   e.ID,
				ApartmentID: sh.ApartmentID,
				Amount:      sh.Amount,
				Mode:        mode,
				Basis:       sh.Basis,
				Coefficient: decimal.NewNullDecimal(sh.Coefficient),
			}
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("répartition appartement %d: %w", sh.ApartmentID, err)
			}
			res.Allocations = append(res.Allocations, a)
		}
		res.Skipped = plan.Skipped
		return tx.Model(e).Update("allocated", true).Error
	})
	if err != nil {
		return nil, err
	}
	if len(res.Skipped) > 0 {
		s.log.Warn("appartements sans base de répartition ignorés",
			zap.Uint("expense_id", expenseID), zap.String("mode", string(mode)), zap.Uints("apartment_ids", res.Skipped))
	}
	return &res, nil
}

func uniq(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type ManualInput struct {
	ApartmentID uint
	Amount      decimal.Decimal
	Notes       string
}

func duplicateAllocation(apartmentID uint) error {
	return apperr.Conflict(apperr.CodeDuplicateAllocation,
		"l'appartement %d a déjà une répartition sur cette dépense, modifiez-la", apartmentID)
}

func saveAllocation(tx *gorm.DB, a *models.ExpenseAllocation) error {
	if err := tx.Save(a).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return duplicateAllocation(a.ApartmentID)
		}
		return err
	}
	return nil
}

// AddManual allocates a fixed amount to one apartment. editingID names the
// allocation being edited, its amount is left out of the running total.
// Adding a second allocation for an apartment is a conflict.
func (s *Service) AddManual(expenseID uint, in ManualInput, editingID uint) (*models.ExpenseAllocation, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation(apperr.CodeInvalidAmount, "le montant doit être positif")
	}
	amount := in.Amount.Round(2)

	var a models.ExpenseAllocation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := lockExpense(tx, expenseID)
		if err != nil {
			return err
		}
		if !e.Allocatable {
			return apperr.Precondition(apperr.CodeNotAllocatable, "la dépense %q n'est pas répartissable", e.Designation)
		}
		var count int64
		if err := tx.Model(&models.Apartment{}).Where("id = ?", in.ApartmentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.NotFound("appartement", in.ApartmentID)
		}

		if editingID > 0 {
			if err := tx.Where("id = ? AND expense_id = ?", editingID, expenseID).First(&a).Error; err != nil {
				return apperr.FromDB(err, "répartition", editingID)
			}
		}
		var taken int64
		err = tx.Model(&models.ExpenseAllocation{}).
			Where("expense_id = ? AND apartment_id = ? AND id <> ?", expenseID, in.ApartmentID, a.ID).
			Count(&taken).Error
		if err != nil {
			return err
		}
		if taken > 0 {
			return duplicateAllocation(in.ApartmentID)
		}

		others, err := expense.AllocatedTotal(tx, expenseID, a.ID)
		if err != nil {
			return err
		}
		remaining := e.AmountTTC.Sub(others)
		if amount.GreaterThan(remaining) {
			return apperr.Validation(apperr.CodeOverAllocation,
				"le montant %s dépasse le reste à répartir (%s)", amount.StringFixed(2), remaining.StringFixed(2))
		}

		a.ExpenseID = expenseID
		a.ApartmentID = in.ApartmentID
		a.Amount = amount
		a.Mode = models.ModeCustom
		a.Basis = decimal.NullDecimal{}
		a.Coefficient = decimal.NullDecimal{}
		a.Notes = in.Notes
		if err := saveAllocation(tx, &a); err != nil {
			return err
		}
		return tx.Model(e).Update("allocated", others.Add(amount).GreaterThanOrEqual(e.AmountTTC)).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Delete removes an allocation; the expense stays marked allocated only
// while the remaining allocations still cover its total.
func (s *Service) Delete(allocationID uint) (*models.ExpenseAllocation, error) {
	var a models.ExpenseAllocation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, allocationID).Error; err != nil {
			return apperr.FromDB(err, "répartition", allocationID)
		}
		e, err := lockExpense(tx, a.ExpenseID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&a).Error; err != nil {
			return err
		}
		rest, err := expense.AllocatedTotal(tx, e.ID, 0)
		if err != nil {
			return err
		}
		covered := rest.IsPositive() && rest.GreaterThanOrEqual(e.AmountTTC)
		return tx.Model(e).Update("allocated", covered).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkInvoiced flags the allocation as passed on to the tenant.
func (s *Service) MarkInvoiced(allocationID uint, date time.Time) (*models.ExpenseAllocation, error) {
	var a models.ExpenseAllocation
	if err := s.db.First(&a, allocationID).Error; err != nil {
		return nil, apperr.FromDB(err, "répartition", allocationID)
	}
	day := period.Day(date)
	a.InvoicedToTenant = true
	a.InvoicedAt = &day
	if err := s.db.Model(&a).Updates(map[string]any{"invoiced_to_tenant": true, "invoiced_at": day}).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) ForExpense(expenseID uint) ([]models.ExpenseAllocation, error) {
	var count int64
	if err := s.db.Model(&models.Expense{}).Where("id = ?", expenseID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperr.NotFound("dépense", expenseID)
	}
	var as []models.ExpenseAllocation
	err := s.db.Preload("Apartment.Building").
		Where("expense_id = ?", expenseID).
		Order("apartment_id").
		Find(&as).Error
	return as, err
}

// ApartmentLine is an allocation seen from the apartment side.
type ApartmentLine struct {
	models.ExpenseAllocation
	ExpenseDate time.Time `json:"expense_date"`
	Designation string    `json:"designation"`
}

// ForApartment lists the allocations of an apartment whose expense date
// falls in [from, to]; nil bounds are open.
func (s *Service) ForApartment(apartmentID uint, from, to *time.Time) ([]ApartmentLine, error) {
	q := s.db.Table("expense_allocations").
		Select("expense_allocations.*, expenses.expense_date, expenses.designation").
		Joins("JOIN expenses ON expenses.id = expense_allocations.expense_id").
		Where("expense_allocations.apartment_id = ?", apartmentID)
	if from != nil {
		q = q.Where("expenses.expense_date >= ?", period.Day(*from))
	}
	if to != nil {
		q = q.Where("expenses.expense_date <= ?", period.Day(*to))
	}
	var lines []ApartmentLine
	err := q.Order("expenses.expense_date, expense_allocations.id").Scan(&lines).Error
	return lines, err
}
