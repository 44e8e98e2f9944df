package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultBillingDay = 5

// Lease - contrat de bail. Tenants are attached through TenancyMembership.
type Lease struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	ApartmentID      uint                `gorm:"index;not null" json:"apartment_id"`
	Apartment        *Apartment          `gorm:"constraint:OnDelete:RESTRICT" json:"apartment,omitempty"`
	StartDate        time.Time           `gorm:"type:date;not null;index" json:"start_date"`
	EndDate          *time.Time          `gorm:"type:date" json:"end_date"`
	EffectiveEndDate *time.Time          `gorm:"type:date" json:"effective_end_date"`
	MonthlyRent      decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"monthly_rent"`
	MonthlyCharges   decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"monthly_charges"`
	BillingDay       int                 `gorm:"not null" json:"billing_day"`
	Deposit          decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"deposit"`
	ReferenceIndex   decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"reference_index"` // IRL
	RevisionDate     *time.Time          `gorm:"type:date" json:"revision_date"`
	Active           bool                `gorm:"not null;index" json:"active"`
	NoticeGiven      bool                `gorm:"not null" json:"notice_given"`
	NoticeDate       *time.Time          `gorm:"type:date" json:"notice_date"`
	ContractFile     string              `gorm:"size:255" json:"contract_file"`
	EntryReportFile  string              `gorm:"size:255" json:"entry_report_file"`
	ExitReportFile   string              `gorm:"size:255" json:"exit_report_file"`
	Notes            string              `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	Memberships []TenancyMembership `gorm:"constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
}

// TotalRent is rent plus charges, a missing amount counting as zero.
func (l Lease) TotalRent() decimal.Decimal {
	total := decimal.Zero
	if l.MonthlyRent.Valid {
		total = total.Add(l.MonthlyRent.Decimal)
	}
	if l.MonthlyCharges.Valid {
		total = total.Add(l.MonthlyCharges.Decimal)
	}
	return total
}

// DurationMonths approximates the contract length with 30-day months.
// nil when the lease has no planned end.
func (l Lease) DurationMonths() *int {
	if l.EndDate == nil {
		return nil
	}
	days := int(l.EndDate.Sub(l.StartDate).Hours() / 24)
	months := days / 30
	return &months
}

type TenancyRole string

const (
	RoleHolder    TenancyRole = "titulaire"
	RoleCoHolder  TenancyRole = "cotitulaire"
	RoleGuarantor TenancyRole = "garant"
)

func (r TenancyRole) Valid() bool {
	switch r {
	case RoleHolder, RoleCoHolder, RoleGuarantor:
		return true
	}
	return false
}

// TenancyMembership - one tenant's presence on one lease.
// A nil ExitDate means the tenant is still on the lease.
type TenancyMembership struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	LeaseID   uint        `gorm:"not null;uniqueIndex:idx_membership_lease_tenant,priority:1;index:idx_membership_lease_principal,priority:1" json:"lease_id"`
	TenantID  uint        `gorm:"not null;uniqueIndex:idx_membership_lease_tenant,priority:2;index:idx_membership_tenant_exit,priority:1" json:"tenant_id"`
	Tenant    *Tenant     `gorm:"constraint:OnDelete:RESTRICT" json:"tenant,omitempty"`
	Principal bool        `gorm:"not null;index:idx_membership_lease_principal,priority:2" json:"principal"`
	Order     int         `gorm:"column:sort_order;not null" json:"order"`
	EntryDate time.Time   `gorm:"type:date;not null" json:"entry_date"`
	ExitDate  *time.Time  `gorm:"type:date;index:idx_membership_tenant_exit,priority:2" json:"exit_date"`
	Role      TenancyRole `gorm:"size:20;not null" json:"role"`
	Notes     string      `gorm:"type:text" json:"notes"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m TenancyMembership) IsActive() bool {
	return m.ExitDate == nil
}
