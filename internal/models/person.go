package models

import "time"

// Owner - propriétaire
type Owner struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CompanyName string    `gorm:"size:50" json:"company_name"`
	LastName    string    `gorm:"size:50;not null" json:"last_name"`
	FirstName   string    `gorm:"size:50;not null" json:"first_name"`
	Email       string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Phone       string    `gorm:"size:20;not null" json:"phone"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o Owner) DisplayName() string {
	if o.CompanyName != "" {
		return o.CompanyName
	}
	return o.LastName + " " + o.FirstName
}

// Tenant - locataire
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LastName  string    `gorm:"size:100;not null;index:idx_tenant_name,priority:1" json:"last_name"`
	FirstName string    `gorm:"size:100;not null;index:idx_tenant_name,priority:2" json:"first_name"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Phone     string    `gorm:"size:20;not null" json:"phone"`
	Notes     string    `gorm:"type:text" json:"notes"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FullName is "prénom nom", the form printed on leases and receipts.
func (t Tenant) FullName() string {
	return t.FirstName + " " + t.LastName
}
