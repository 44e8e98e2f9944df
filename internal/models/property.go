package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Building - immeuble
type Building struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Name                string          `gorm:"size:200;not null" json:"name"`
	Address             string          `gorm:"size:500;not null" json:"address"`
	City                string          `gorm:"size:100;not null" json:"city"`
	PostalCode          string          `gorm:"size:10;not null" json:"postal_code"`
	AnnualCommonCharges decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"annual_common_charges"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Apartments []Apartment `gorm:"constraint:OnDelete:RESTRICT" json:"apartments,omitempty"`
}

// Apartment - appartement. Surface and Milliemes are the allocation bases,
// both optional.
type Apartment struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	BuildingID     uint                `gorm:"index;not null" json:"building_id"`
	Building       *Building           `json:"building,omitempty"`
	Number         string              `gorm:"size:10;not null" json:"number"`
	OwnerID        *uint               `gorm:"index" json:"owner_id"`
	Owner          *Owner              `gorm:"constraint:OnDelete:SET NULL" json:"owner,omitempty"`
	Floor          int                 `gorm:"not null" json:"floor"`
	Rented         bool                `gorm:"not null" json:"rented"`
	BaseRent       decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"base_rent"`
	MonthlyCharges decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"monthly_charges"`
	Surface        decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"surface"`
	Milliemes      *int                `json:"milliemes"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// Label is the short form used on documents and exports.
func (a Apartment) Label() string {
	if a.Building != nil {
		return a.Building.Name + " - App : " + a.Number
	}
	return "App : " + a.Number
}
