package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SendMode string

const (
	SendEmail  SendMode = "email"
	SendPost   SendMode = "courrier"
	SendByHand SendMode = "remise_main"
	SendPortal SendMode = "portail"
)

func (m SendMode) Valid() bool {
	switch m {
	case SendEmail, SendPost, SendByHand, SendPortal:
		return true
	}
	return false
}

// Receipt - quittance de loyer. Number follows Q<yyyy><mm><nnnn>.
type Receipt struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	LeaseID     uint            `gorm:"not null;uniqueIndex:idx_receipt_lease_month,priority:1" json:"lease_id"`
	Lease       *Lease          `gorm:"constraint:OnDelete:RESTRICT" json:"lease,omitempty"`
	Month       time.Time       `gorm:"type:date;not null;uniqueIndex:idx_receipt_lease_month,priority:2;index" json:"month"`
	Number      string          `gorm:"size:20;not null;uniqueIndex" json:"number"`
	Rent        decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"rent"`
	Charges     decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"charges"`
	Total       decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"total"`
	GeneratedAt time.Time       `gorm:"autoCreateTime" json:"generated_at"`
	Sent        bool            `gorm:"not null;index" json:"sent"`
	SentAt      *time.Time      `json:"sent_at"`
	SendMode    SendMode        `gorm:"size:20" json:"send_mode"`
	PaymentID   *uint           `gorm:"uniqueIndex" json:"payment_id"`
	Payment     *Payment        `gorm:"constraint:OnDelete:SET NULL" json:"payment,omitempty"`
	DocumentKey string          `gorm:"size:255" json:"document_key"`
	Notes       string          `gorm:"type:text" json:"notes"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
