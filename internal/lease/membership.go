package lease

import (
	"errors"
	"fmt"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AddTenantOptions struct {
	Principal bool
	Role      models.TenancyRole // cotitulaire when empty
	Order     int                // max+1 when zero
	Notes     string
}

func lockLease(tx *gorm.DB, id uint) (*models.Lease, error) {
	var l models.Lease
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
		return nil, apperr.FromDB(err, "bail", id)
	}
	return &l, nil
}

func duplicateMembership(leaseID, tenantID uint) error {
	return apperr.Conflict(apperr.CodeDuplicateMembership,
		"le locataire %d est déjà rattaché au bail %d", tenantID, leaseID)
}

func insertMembership(tx *gorm.DB, m *models.TenancyMembership) error {
	if err := tx.Create(m).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return duplicateMembership(m.LeaseID, m.TenantID)
		}
		return fmt.Errorf("ajout locataire: %w", err)
	}
	return nil
}

// AddTenant attaches a tenant to a lease, entering on the lease start date.
func (s *Service) AddTenant(leaseID, tenantID uint, opts AddTenantOptions) (*models.TenancyMembership, error) {
	role := opts.Role
	if role == "" {
		role = models.RoleCoHolder
	}
	if !role.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "rôle %q inconnu", role)
	}
	if opts.Order < 0 {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "l'ordre doit être positif")
	}

	var m models.TenancyMembership
	err := s.db.Transaction(func(tx *gorm.DB) error {
		l, err := lockLease(tx, leaseID)
		if err != nil {
			return err
		}
		var tenant models.Tenant
		if err := tx.First(&tenant, tenantID).Error; err != nil {
			return apperr.FromDB(err, "locataire", tenantID)
		}

		var existing int64
		if err := tx.Model(&models.TenancyMembership{}).
			Where("lease_id = ? AND tenant_id = ?", leaseID, tenantID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return duplicateMembership(leaseID, tenantID)
		}

		order := opts.Order
		if order == 0 {
			var max int
			if err := tx.Model(&models.TenancyMembership{}).
				Where("lease_id = ?", leaseID).
				Select("COALESCE(MAX(sort_order), 0)").
				Scan(&max).Error; err != nil {
				return err
			}
			order = max + 1
		}

		m = models.TenancyMembership{
			LeaseID:   leaseID,
			TenantID:  tenantID,
			Order:     order,
			EntryDate: l.StartDate,
			Role:      role,
			Notes:     opts.Notes,
		}
		if err := insertMembership(tx, &m); err != nil {
			return err
		}
		m.Tenant = &tenant

		if opts.Principal {
			if err := setPrincipal(tx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("locataire ajouté",
		zap.Uint("lease_id", leaseID),
		zap.Uint("tenant_id", tenantID),
		zap.Int("order", m.Order),
		zap.Bool("principal", m.Principal))
	return &m, nil
}

// RemoveTenant sets the exit date of the tenant's active membership. It
// reports false when there was no active membership to close.
func (s *Service) RemoveTenant(leaseID, tenantID uint, exitDate time.Time) (bool, error) {
	exitDate = period.Day(exitDate)
	removed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockLease(tx, leaseID); err != nil {
			return err
		}
		var m models.TenancyMembership
		err := tx.Where("lease_id = ? AND tenant_id = ? AND exit_date IS NULL", leaseID, tenantID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if exitDate.Before(m.EntryDate) {
			return apperr.Validation(apperr.CodeDateOrder, "la date de sortie précède la date d'entrée")
		}
		if err := tx.Model(&m).Update("exit_date", exitDate).Error; err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info("locataire sorti", zap.Uint("lease_id", leaseID), zap.Uint("tenant_id", tenantID))
	}
	return removed, nil
}

// SetPrincipal makes the membership the only principal of its lease.
func (s *Service) SetPrincipal(membershipID uint) (*models.TenancyMembership, error) {
	var m models.TenancyMembership
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, membershipID).Error; err != nil {
			return apperr.FromDB(err, "rattachement", membershipID)
		}
		if _, err := lockLease(tx, m.LeaseID); err != nil {
			return err
		}
		if !m.IsActive() {
			return apperr.Precondition(apperr.CodeInactiveMembership, "un locataire sorti ne peut pas être principal")
		}
		return setPrincipal(tx, &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// setPrincipal clears the flag on the other memberships of the lease before
// setting it on m. The caller holds the lease lock.
func setPrincipal(tx *gorm.DB, m *models.TenancyMembership) error {
	if err := tx.Model(&models.TenancyMembership{}).
		Where("lease_id = ? AND id <> ?", m.LeaseID, m.ID).
		Update("principal", false).Error; err != nil {
		return fmt.Errorf("désignation principal: %w", err)
	}
	if err := tx.Model(m).Update("principal", true).Error; err != nil {
		return fmt.Errorf("désignation principal: %w", err)
	}
	m.Principal = true
	return nil
}

type MembershipChanges struct {
	Role      *models.TenancyRole
	Order     *int
	EntryDate *time.Time
	ExitDate  *time.Time
	ClearExit bool
	Notes     *string
}

// UpdateMembership edits role, order, dates and notes. Principal changes
// go through SetPrincipal.
func (s *Service) UpdateMembership(membershipID uint, ch MembershipChanges) (*models.TenancyMembership, error) {
	var m models.TenancyMembership
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, membershipID).Error; err != nil {
			return apperr.FromDB(err, "rattachement", membershipID)
		}
		if _, err := lockLease(tx, m.LeaseID); err != nil {
			return err
		}
		if ch.Role != nil {
			if !ch.Role.Valid() {
				return apperr.Validation(apperr.CodeInvalidInput, "rôle %q inconnu", *ch.Role)
			}
			m.Role = *ch.Role
		}
		if ch.Order != nil {
			if *ch.Order < 1 {
				return apperr.Validation(apperr.CodeInvalidInput, "l'ordre doit être positif")
			}
			m.Order = *ch.Order
		}
		if ch.EntryDate != nil {
			m.EntryDate = period.Day(*ch.EntryDate)
		}
		if ch.ClearExit {
			m.ExitDate = nil
		} else if ch.ExitDate != nil {
			d := period.Day(*ch.ExitDate)
			m.ExitDate = &d
		}
		if m.ExitDate != nil && m.ExitDate.Before(m.EntryDate) {
			return apperr.Validation(apperr.CodeDateOrder, "la date de sortie précède la date d'entrée")
		}
		if ch.Notes != nil {
			m.Notes = *ch.Notes
		}
		if ch.ClearExit && m.Principal {
			// reactivating a former principal must not give two principals
			var others int64
			if err := tx.Model(&models.TenancyMembership{}).
				Where("lease_id = ? AND id <> ? AND principal = ? AND exit_date IS NULL", m.LeaseID, m.ID, true).
				Count(&others).Error; err != nil {
				return err
			}
			if others > 0 {
				m.Principal = false
			}
		}
		return tx.Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ResolvePrincipal returns the contact tenant of the lease, or nil when no
// tenant is active.
func (s *Service) ResolvePrincipal(leaseID uint) (*models.Tenant, error) {
	ms, err := s.activeMemberships(leaseID)
	if err != nil {
		return nil, err
	}
	return PrincipalOf(ms), nil
}

// ActiveTenants lists the current tenants by ascending order.
func (s *Service) ActiveTenants(leaseID uint) ([]models.Tenant, error) {
	ms, err := s.activeMemberships(leaseID)
	if err != nil {
		return nil, err
	}
	return TenantsOf(ms), nil
}

func (s *Service) DisplayName(leaseID uint, sep string) (string, error) {
	ms, err := s.activeMemberships(leaseID)
	if err != nil {
		return "", err
	}
	return DisplayNameOf(ms, sep), nil
}

func (s *Service) ReceiptNames(leaseID uint) (string, error) {
	ms, err := s.activeMemberships(leaseID)
	if err != nil {
		return "", err
	}
	return ReceiptNamesOf(ms), nil
}

// Memberships lists every membership of the lease, exited ones included.
func (s *Service) Memberships(leaseID uint) ([]models.TenancyMembership, error) {
	var ms []models.TenancyMembership
	err := s.db.Preload("Tenant").
		Where("lease_id = ?", leaseID).
		Order("sort_order, id").
		Find(&ms).Error
	return ms, err
}

func (s *Service) activeMemberships(leaseID uint) ([]models.TenancyMembership, error) {
	var count int64
	if err := s.db.Model(&models.Lease{}).Where("id = ?", leaseID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperr.NotFound("bail", leaseID)
	}
	var ms []models.TenancyMembership
	err := s.db.Preload("Tenant").
		Where("lease_id = ? AND exit_date IS NULL", leaseID).
		Order("sort_order, id").
		Find(&ms).Error
	return ms, err
}

// AvailableTenants lists active tenants not yet attached to the lease.
func (s *Service) AvailableTenants(leaseID uint) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.
		Where("active = ?", true).
		Where("id NOT IN (?)", s.db.Model(&models.TenancyMembership{}).Select("tenant_id").Where("lease_id = ?", leaseID)).
		Order("last_name, first_name").
		Find(&tenants).Error
	return tenants, err
}
