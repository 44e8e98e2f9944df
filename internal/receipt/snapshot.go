package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gestion-locative/internal/lease"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
)

var monthNames = [...]string{"", "Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre"}

// Snapshot is everything printed on a receipt, frozen at generation time.
type Snapshot struct {
	Number       string          `json:"number"`
	Month        time.Time       `json:"month"`
	IssuedAt     time.Time       `json:"issued_at"`
	DisplayName  string          `json:"display_name"`
	ReceiptNames string          `json:"receipt_names"`
	Tenants      []string        `json:"tenants"`
	Principal    string          `json:"principal"`
	OwnerName    string          `json:"owner_name"`
	OwnerPhone   string          `json:"owner_phone"`
	OwnerEmail   string          `json:"owner_email"`
	Building     string          `json:"building"`
	Address      string          `json:"address"`
	City         string          `json:"city"`
	Apartment    string          `json:"apartment"`
	Floor        int             `json:"floor"`
	Rent         decimal.Decimal `json:"rent"`
	Charges      decimal.Decimal `json:"charges"`
	Total        decimal.Decimal `json:"total"`
}

// NewSnapshot reads the receipt together with its lease. The lease needs
// Apartment.Building, Apartment.Owner and Memberships.Tenant loaded.
func NewSnapshot(r models.Receipt, l models.Lease, issuedAt time.Time) Snapshot {
	s := Snapshot{
		Number:       r.Number,
		Month:        r.Month,
		IssuedAt:     period.Day(issuedAt),
		DisplayName:  lease.DisplayNameOf(l.Memberships, lease.DefaultSeparator),
		ReceiptNames: lease.ReceiptNamesOf(l.Memberships),
		Rent:         r.Rent,
		Charges:      r.Charges,
		Total:        r.Total,
	}
	for _, t := range lease.TenantsOf(l.Memberships) {
		s.Tenants = append(s.Tenants, t.FullName())
	}
	if p := lease.PrincipalOf(l.Memberships); p != nil {
		s.Principal = p.FullName()
	}
	if a := l.Apartment; a != nil {
		s.Apartment = a.Number
		s.Floor = a.Floor
		if b := a.Building; b != nil {
			s.Building = b.Name
			s.Address = strings.TrimSpace(b.Address + ", " + b.PostalCode + " " + b.City)
			s.City = b.City
		}
		if o := a.Owner; o != nil {
			s.OwnerName = o.DisplayName()
			s.OwnerPhone = o.Phone
			s.OwnerEmail = o.Email
		}
	}
	return s
}

// PeriodLabel is the month in French, "Février 2024".
func (s Snapshot) PeriodLabel() string {
	return monthNames[s.Month.Month()] + " " + strconv.Itoa(s.Month.Year())
}

func (s Snapshot) PeriodEnd() time.Time {
	return now.With(s.Month).EndOfMonth()
}

// Acknowledgement is the legal sentence of the receipt.
func (s Snapshot) Acknowledgement() string {
	from := "du locataire"
	if len(s.Tenants) > 0 {
		from = "de " + lease.FormatNames(s.Tenants, lease.DefaultSeparator)
	}
	return fmt.Sprintf("Je soussigné(e), propriétaire du logement désigné ci-dessus, reconnais avoir reçu %s, "+
		"la somme de %s euros pour le paiement du loyer et des charges de la période du %s au %s, "+
		"dont le détail figure ci-dessus.",
		from, s.Total.StringFixed(2), s.Month.Format("02/01/2006"), s.PeriodEnd().Format("02/01/2006"))
}
