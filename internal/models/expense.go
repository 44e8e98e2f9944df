package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseCategory string

const (
	CategoryMaintenance ExpenseCategory = "entretien"
	CategoryCharges     ExpenseCategory = "charges"
	CategoryTax         ExpenseCategory = "taxe"
	CategoryInsurance   ExpenseCategory = "assurance"
	CategoryWorks       ExpenseCategory = "travaux"
	CategoryOther       ExpenseCategory = "autre"
)

// ExpenseType - type de dépense
type ExpenseType struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Category      ExpenseCategory `gorm:"size:20;not null" json:"category"`
	Recurring     bool            `gorm:"not null" json:"recurring"`
	TaxDeductible bool            `gorm:"not null" json:"tax_deductible"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ExpenseStatus string

const (
	ExpenseToPay     ExpenseStatus = "a_payer"
	ExpensePaid      ExpenseStatus = "payee"
	ExpensePending   ExpenseStatus = "en_attente"
	ExpenseCancelled ExpenseStatus = "annulee"
)

func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpenseToPay, ExpensePaid, ExpensePending, ExpenseCancelled:
		return true
	}
	return false
}

// Expense - dépense propriétaire. Allocatable marks the expense as eligible
// for splitting across apartments, Allocated is set once allocations cover
// AmountTTC.
type Expense struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BuildingID    *uint           `gorm:"index" json:"building_id"`
	Building      *Building       `gorm:"constraint:OnDelete:RESTRICT" json:"building,omitempty"`
	ApartmentID   *uint           `gorm:"index" json:"apartment_id"`
	Apartment     *Apartment      `gorm:"constraint:OnDelete:RESTRICT" json:"apartment,omitempty"`
	TypeID        uint            `gorm:"index;not null" json:"type_id"`
	Type          *ExpenseType    `gorm:"constraint:OnDelete:RESTRICT" json:"type,omitempty"`
	Designation   string          `gorm:"size:200;not null" json:"designation"`
	Description   string          `gorm:"type:text" json:"description"`
	AmountHT      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount_ht"`
	VAT           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"vat"`
	AmountTTC     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount_ttc"`
	ExpenseDate   time.Time       `gorm:"type:date;not null;index" json:"expense_date"`
	PaymentDate   *time.Time      `gorm:"type:date" json:"payment_date"`
	DueDate       *time.Time      `gorm:"type:date" json:"due_date"`
	SupplierName  string          `gorm:"size:200" json:"supplier_name"`
	SupplierInfo  string          `gorm:"type:text" json:"supplier_info"`
	InvoiceNumber string          `gorm:"size:50" json:"invoice_number"`
	PaymentMode   PaymentMode     `gorm:"size:20" json:"payment_mode"`
	Status        ExpenseStatus   `gorm:"size:20;not null;index" json:"status"`
	Allocatable   bool            `gorm:"not null" json:"allocatable"`
	Allocated     bool            `gorm:"not null" json:"allocated"`
	TaxDeductible bool            `gorm:"not null" json:"tax_deductible"`
	InvoiceFile   string          `gorm:"size:255" json:"invoice_file"`
	ReceiptFile   string          `gorm:"size:255" json:"receipt_file"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Allocations []ExpenseAllocation `gorm:"constraint:OnDelete:CASCADE" json:"allocations,omitempty"`
}

type AllocationMode string

const (
	ModeSurface  AllocationMode = "surface"
	ModeTantieme AllocationMode = "tantieme"
	ModeFlat     AllocationMode = "forfait"
	ModeCustom   AllocationMode = "personnalise"
)

func (m AllocationMode) Valid() bool {
	switch m {
	case ModeSurface, ModeTantieme, ModeFlat, ModeCustom:
		return true
	}
	return false
}

// ExpenseAllocation - répartition d'une dépense sur un appartement.
// Basis keeps the raw surface or milliemes used, Coefficient the ratio.
type ExpenseAllocation struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	ExpenseID        uint                `gorm:"not null;uniqueIndex:idx_allocation_expense_apartment,priority:1" json:"expense_id"`
	ApartmentID      uint                `gorm:"not null;uniqueIndex:idx_allocation_expense_apartment,priority:2;index" json:"apartment_id"`
	Apartment        *Apartment          `gorm:"constraint:OnDelete:RESTRICT" json:"apartment,omitempty"`
	Amount           decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"amount"`
	Mode             AllocationMode      `gorm:"size:20;not null" json:"mode"`
	Basis            decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"basis"`
	Coefficient      decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"coefficient"`
	InvoicedToTenant bool                `gorm:"not null" json:"invoiced_to_tenant"`
	InvoicedAt       *time.Time          `gorm:"type:date" json:"invoiced_at"`
	Notes            string              `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}
