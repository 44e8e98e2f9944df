package lease

import (
	"sort"
	"strings"

	"gestion-locative/internal/models"
)

const (
	DefaultSeparator = " et "
	NoTenantLabel    = "Aucun locataire"
)

// FormatNames joins names as "A", "A et B", "A, B et C".
func FormatNames(names []string, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	switch len(names) {
	case 0:
		return NoTenantLabel
	case 1:
		return names[0]
	}
	last := len(names) - 1
	return strings.Join(names[:last], ", ") + sep + names[last]
}

// activeSorted keeps the active memberships ordered by sort order then id.
func activeSorted(ms []models.TenancyMembership) []models.TenancyMembership {
	out := make([]models.TenancyMembership, 0, len(ms))
	for _, m := range ms {
		if m.IsActive() {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PrincipalOf picks the active principal, else the active membership with
// the lowest order, else nil. Memberships must have Tenant loaded.
func PrincipalOf(ms []models.TenancyMembership) *models.Tenant {
	active := activeSorted(ms)
	for _, m := range active {
		if m.Principal {
			return m.Tenant
		}
	}
	if len(active) > 0 {
		return active[0].Tenant
	}
	return nil
}

// TenantsOf returns the tenants of the active memberships in order.
func TenantsOf(ms []models.TenancyMembership) []models.Tenant {
	active := activeSorted(ms)
	out := make([]models.Tenant, 0, len(active))
	for _, m := range active {
		if m.Tenant != nil {
			out = append(out, *m.Tenant)
		}
	}
	return out
}

func namesOf(tenants []models.Tenant) []string {
	names := make([]string, len(tenants))
	for i, t := range tenants {
		names[i] = t.FullName()
	}
	return names
}

func DisplayNameOf(ms []models.TenancyMembership, sep string) string {
	return FormatNames(namesOf(TenantsOf(ms)), sep)
}

// ReceiptNamesOf lists one tenant per line, as printed on receipts.
func ReceiptNamesOf(ms []models.TenancyMembership) string {
	return strings.Join(namesOf(TenantsOf(ms)), "\n")
}
