package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	ModeTransfer    PaymentMode = "virement"
	ModeCheque      PaymentMode = "cheque"
	ModeCash        PaymentMode = "especes"
	ModeCard        PaymentMode = "carte"
	ModeDirectDebit PaymentMode = "prelevement"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case ModeTransfer, ModeCheque, ModeCash, ModeCard, ModeDirectDebit:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "en_attente"
	PaymentReceived  PaymentStatus = "recu"
	PaymentValidated PaymentStatus = "valide"
	PaymentRejected  PaymentStatus = "rejete"
	PaymentPartial   PaymentStatus = "partiel"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentReceived, PaymentValidated, PaymentRejected, PaymentPartial:
		return true
	}
	return false
}

// Payment - paiement locataire for one rent period. Month is always the
// first day of the period.
type Payment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	LeaseID     uint            `gorm:"not null;uniqueIndex:idx_payment_lease_month,priority:1" json:"lease_id"`
	Lease       *Lease          `gorm:"constraint:OnDelete:RESTRICT" json:"lease,omitempty"`
	Month       time.Time       `gorm:"type:date;not null;uniqueIndex:idx_payment_lease_month,priority:2;index" json:"month"`
	Rent        decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"rent"`
	Charges     decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"charges"`
	Other       decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"other"`
	PaymentDate time.Time       `gorm:"type:date;not null;index" json:"payment_date"`
	DueDate     *time.Time      `gorm:"type:date" json:"due_date"`
	Mode        PaymentMode     `gorm:"size:20;not null" json:"mode"`
	Reference   string          `gorm:"size:100" json:"reference"`
	Status      PaymentStatus   `gorm:"size:20;not null;index" json:"status"`
	Validated   bool            `gorm:"not null" json:"validated"`
	ReceiptID   *uint           `json:"receipt_id"`
	Notes       string          `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Payment) Total() decimal.Decimal {
	return p.Rent.Add(p.Charges).Add(p.Other)
}
