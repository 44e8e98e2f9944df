package expense

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

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

type Input struct {
	BuildingID    *uint
	ApartmentID   *uint
	TypeID        uint
	Designation   string
	Description   string
	AmountHT      decimal.Decimal
	VAT           decimal.Decimal
	AmountTTC     decimal.NullDecimal // HT + VAT when not set
	ExpenseDate   time.Time
	PaymentDate   *time.Time
	DueDate       *time.Time
	SupplierName  string
	SupplierInfo  string
	InvoiceNumber string
	PaymentMode   models.PaymentMode
	Status        models.ExpenseStatus // a_payer when empty
	Allocatable   bool
	TaxDeductible *bool // taken from the type when nil
	InvoiceFile   string
	ReceiptFile   string
}

// VATFromRate returns the VAT for a rate in percent, rounded to cents.
func VATFromRate(ht, rate decimal.Decimal) decimal.Decimal {
	return ht.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// TTC applies the default total when no override is given.
func TTC(ht, vat decimal.Decimal, override decimal.NullDecimal) decimal.Decimal {
	if override.Valid {
		return override.Decimal
	}
	return ht.Add(vat)
}

func checkInput(in *Input) error {
	in.Designation = strings.TrimSpace(in.Designation)
	if in.Designation == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "la désignation est obligatoire")
	}
	if in.AmountHT.IsNegative() || in.VAT.IsNegative() {
		return apperr.Validation(apperr.CodeInvalidAmount, "les montants HT et TVA doivent être positifs")
	}
	ttc := TTC(in.AmountHT, in.VAT, in.AmountTTC)
	if ttc.LessThan(in.AmountHT) {
		return apperr.Validation(apperr.CodeInvalidAmount, "le montant TTC (%s) est inférieur au HT (%s)", ttc.StringFixed(2), in.AmountHT.StringFixed(2))
	}
	if in.Status == "" {
		in.Status = models.ExpenseToPay
	}
	if !in.Status.Valid() {
		return apperr.Validation(apperr.CodeInvalidInput, "statut %q inconnu", in.Status)
	}
	if in.PaymentMode != "" && !in.PaymentMode.Valid() {
		return apperr.Validation(apperr.CodeInvalidInput, "mode de paiement %q inconnu", in.PaymentMode)
	}
	in.ExpenseDate = period.Day(in.ExpenseDate)
	return nil
}

func (in Input) apply(e *models.Expense, t *models.ExpenseType) {
	e.BuildingID = in.BuildingID
	e.ApartmentID = in.ApartmentID
	e.TypeID = in.TypeID
	e.Designation = in.Designation
	e.Description = in.Description
	e.AmountHT = in.AmountHT.Round(2)
	e.VAT = in.VAT.Round(2)
	e.AmountTTC = TTC(in.AmountHT, in.VAT, in.AmountTTC).Round(2)
	e.ExpenseDate = in.ExpenseDate
	e.PaymentDate = in.PaymentDate
	e.DueDate = in.DueDate
	e.SupplierName = in.SupplierName
	e.SupplierInfo = in.SupplierInfo
	e.InvoiceNumber = in.InvoiceNumber
	e.PaymentMode = in.PaymentMode
	e.Status = in.Status
	e.Allocatable = in.Allocatable
	e.TaxDeductible = t.TaxDeductible
	if in.TaxDeductible != nil {
		e.TaxDeductible = *in.TaxDeductible
	}
	e.InvoiceFile = in.InvoiceFile
	e.ReceiptFile = in.ReceiptFile
}

func (s *Service) Create(in Input) (*models.Expense, error) {
	if err := checkInput(&in); err != nil {
		return nil, err
	}
	var t models.ExpenseType
	if err := s.db.First(&t, in.TypeID).Error; err != nil {
		return nil, apperr.FromDB(err, "type de dépense", in.TypeID)
	}
	var e models.Expense
	in.apply(&e, &t)
	if err := s.db.Create(&e).Error; err != nil {
		return nil, fmt.Errorf("création dépense: %w", err)
	}
	s.log.Info("dépense enregistrée", zap.Uint("expense_id", e.ID), zap.String("ttc", e.AmountTTC.StringFixed(2)))
	return &e, nil
}

// Update rewrites the expense. A total below what is already allocated is
// rejected, the allocated flag follows the new total.
func (s *Service) Update(id uint, in Input) (*models.Expense, error) {
	if err := checkInput(&in); err != nil {
		return nil, err
	}
	var e models.Expense
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, id).Error; err != nil {
			return apperr.FromDB(err, "dépense", id)
		}
		var t models.ExpenseType
		if err := tx.First(&t, in.TypeID).Error; err != nil {
			return apperr.FromDB(err, "type de dépense", in.TypeID)
		}
		in.apply(&e, &t)

		allocated, err := AllocatedTotal(tx, id, 0)
		if err != nil {
			return err
		}
		if allocated.GreaterThan(e.AmountTTC) {
			return apperr.Validation(apperr.CodeOverAllocation,
				"le montant TTC (%s) est inférieur au total déjà réparti (%s)", e.AmountTTC.StringFixed(2), allocated.StringFixed(2))
		}
		e.Allocated = allocated.IsPositive() && allocated.GreaterThanOrEqual(e.AmountTTC)
		return tx.Save(&e).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Service) Get(id uint) (*models.Expense, error) {
	var e models.Expense
	err := s.db.Preload("Type").Preload("Building").Preload("Apartment").
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("apartment_id") }).
		Preload("Allocations.Apartment").
		First(&e, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "dépense", id)
	}
	return &e, nil
}

// Delete removes the expense and its allocations.
func (s *Service) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var e models.Expense
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, id).Error; err != nil {
			return apperr.FromDB(err, "dépense", id)
		}
		if err := tx.Where("expense_id = ?", id).Delete(&models.ExpenseAllocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&e).Error
	})
}

// MarkPaid records the settlement of the expense.
func (s *Service) MarkPaid(id uint, date time.Time, mode models.PaymentMode) (*models.Expense, error) {
	if !mode.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "mode de paiement %q inconnu", mode)
	}
	date = period.Day(date)
	var e models.Expense
	if err := s.db.First(&e, id).Error; err != nil {
		return nil, apperr.FromDB(err, "dépense", id)
	}
	if e.Status == models.ExpenseCancelled {
		return nil, apperr.Precondition(apperr.CodeInvalidInput, "dépense annulée")
	}
	err := s.db.Model(&e).Updates(map[string]any{
		"status":       models.ExpensePaid,
		"payment_date": date,
		"payment_mode": mode,
	}).Error
	if err != nil {
		return nil, err
	}
	e.Status = models.ExpensePaid
	e.PaymentDate = &date
	e.PaymentMode = mode
	return &e, nil
}

type Filter struct {
	BuildingID  uint
	ApartmentID uint
	TypeID      uint
	Status      models.ExpenseStatus
	From, To    *time.Time
	Allocatable *bool
}

func (s *Service) List(f Filter) ([]models.Expense, error) {
	q := s.db.Model(&models.Expense{}).Preload("Type")
	if f.BuildingID > 0 {
		q = q.Where("building_id = ?", f.BuildingID)
	}
	if f.ApartmentID > 0 {
		q = q.Where("apartment_id = ?", f.ApartmentID)
	}
	if f.TypeID > 0 {
		q = q.Where("type_id = ?", f.TypeID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("expense_date >= ?", period.Day(*f.From))
	}
	if f.To != nil {
		q = q.Where("expense_date <= ?", period.Day(*f.To))
	}
	if f.Allocatable != nil {
		q = q.Where("allocatable = ?", *f.Allocatable)
	}
	var es []models.Expense
	err := q.Order("expense_date DESC, id DESC").Find(&es).Error
	return es, err
}

// AllocatedTotal sums the allocations of an expense, leaving out
// excludeID (the allocation being edited) when non-zero.
func AllocatedTotal(db *gorm.DB, expenseID, excludeID uint) (decimal.Decimal, error) {
	q := db.Model(&models.ExpenseAllocation{}).Where("expense_id = ?", expenseID)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var amounts []decimal.Decimal
	if err := q.Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, fmt.Errorf("total réparti dépense %d: %w", expenseID, err)
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total.Round(2), nil
}

// Remaining is what is left to allocate on the expense.
func (s *Service) Remaining(id uint) (decimal.Decimal, error) {
	var e models.Expense
	if err := s.db.First(&e, id).Error; err != nil {
		return decimal.Zero, apperr.FromDB(err, "dépense", id)
	}
	allocated, err := AllocatedTotal(s.db, id, 0)
	if err != nil {
		return decimal.Zero, err
	}
	return e.AmountTTC.Sub(allocated), nil
}

func (s *Service) ListTypes() ([]models.ExpenseType, error) {
	var ts []models.ExpenseType
	err := s.db.Order("category, name").Find(&ts).Error
	return ts, err
}

func (s *Service) CreateType(t *models.ExpenseType) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "le nom est obligatoire")
	}
	if err := s.db.Create(t).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return apperr.Conflict(apperr.CodeInvalidInput, "le type %q existe déjà", t.Name)
		}
		return err
	}
	return nil
}
