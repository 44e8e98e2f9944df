// Package property manages the reference data leases and expenses point
// to: owners, buildings, apartments and tenants.
package property

import (
	"fmt"
	"strings"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) CreateBuilding(b *models.Building) error {
	b.Name = strings.TrimSpace(b.Name)
	if err := s.db.Create(b).Error; err != nil {
		return fmt.Errorf("création immeuble: %w", err)
	}
	return nil
}

func (s *Service) UpdateBuilding(id uint, in models.Building) (*models.Building, error) {
	var b models.Building
	if err := s.db.First(&b, id).Error; err != nil {
		return nil, apperr.FromDB(err, "immeuble", id)
	}
	b.Name = strings.TrimSpace(in.Name)
	b.Address = in.Address
	b.City = in.City
	b.PostalCode = in.PostalCode
	b.AnnualCommonCharges = in.AnnualCommonCharges
	if err := s.db.Save(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) GetBuilding(id uint) (*models.Building, error) {
	var b models.Building
	err := s.db.Preload("Apartments", func(db *gorm.DB) *gorm.DB {
		return db.Order("floor, number")
	}).First(&b, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "immeuble", id)
	}
	return &b, nil
}

func (s *Service) ListBuildings() ([]models.Building, error) {
	var bs []models.Building
	err := s.db.Order("name").Find(&bs).Error
	return bs, err
}

func (s *Service) CreateApartment(a *models.Apartment) error {
	var count int64
	if err := s.db.Model(&models.Building{}).Where("id = ?", a.BuildingID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("immeuble", a.BuildingID)
	}
	if err := checkBases(a); err != nil {
		return err
	}
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("création appartement: %w", err)
	}
	return nil
}

func checkBases(a *models.Apartment) error {
	if a.Surface.Valid && !a.Surface.Decimal.IsPositive() {
		return apperr.Validation(apperr.CodeInvalidInput, "la surface doit être positive")
	}
	if a.Milliemes != nil && (*a.Milliemes <= 0 || *a.Milliemes > 1000) {
		return apperr.Validation(apperr.CodeInvalidInput, "les millièmes doivent être entre 1 et 1000")
	}
	return nil
}

func (s *Service) UpdateApartment(id uint, in models.Apartment) (*models.Apartment, error) {
	var a models.Apartment
	if err := s.db.First(&a, id).Error; err != nil {
		return nil, apperr.FromDB(err, "appartement", id)
	}
	a.Number = in.Number
	a.OwnerID = in.OwnerID
	a.Floor = in.Floor
	a.BaseRent = in.BaseRent
	a.MonthlyCharges = in.MonthlyCharges
	a.Surface = in.Surface
	a.Milliemes = in.Milliemes
	if err := checkBases(&a); err != nil {
		return nil, err
	}
	if err := s.db.Save(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) GetApartment(id uint) (*models.Apartment, error) {
	var a models.Apartment
	if err := s.db.Preload("Building").Preload("Owner").First(&a, id).Error; err != nil {
		return nil, apperr.FromDB(err, "appartement", id)
	}
	return &a, nil
}

func (s *Service) ListApartments(buildingID uint) ([]models.Apartment, error) {
	q := s.db.Preload("Building").Preload("Owner")
	if buildingID > 0 {
		q = q.Where("building_id = ?", buildingID)
	}
	var as []models.Apartment
	err := q.Order("building_id, floor, number").Find(&as).Error
	return as, err
}

func (s *Service) CreateOwner(o *models.Owner) error {
	o.Email = strings.TrimSpace(strings.ToLower(o.Email))
	o.Active = true
	if err := s.db.Create(o).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return apperr.Conflict(apperr.CodeInvalidInput, "un propriétaire %s existe déjà", o.Email)
		}
		return fmt.Errorf("création propriétaire: %w", err)
	}
	return nil
}

func (s *Service) ListOwners() ([]models.Owner, error) {
	var owners []models.Owner
	err := s.db.Order("last_name, first_name").Find(&owners).Error
	return owners, err
}

func (s *Service) CreateTenant(t *models.Tenant) error {
	t.Email = strings.TrimSpace(strings.ToLower(t.Email))
	t.Active = true
	if err := s.db.Create(t).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return apperr.Conflict(apperr.CodeInvalidInput, "un locataire %s existe déjà", t.Email)
		}
		return fmt.Errorf("création locataire: %w", err)
	}
	s.log.Info("locataire créé", zap.Uint("tenant_id", t.ID))
	return nil
}

func (s *Service) UpdateTenant(id uint, in models.Tenant) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, apperr.FromDB(err, "locataire", id)
	}
	t.LastName = in.LastName
	t.FirstName = in.FirstName
	t.Email = strings.TrimSpace(strings.ToLower(in.Email))
	t.Phone = in.Phone
	t.Notes = in.Notes
	t.Active = in.Active
	if err := s.db.Save(&t).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict(apperr.CodeInvalidInput, "un locataire %s existe déjà", t.Email)
		}
		return nil, err
	}
	return &t, nil
}

func (s *Service) GetTenant(id uint) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, apperr.FromDB(err, "locataire", id)
	}
	return &t, nil
}

// ListTenants filters on name or email when q is set.
func (s *Service) ListTenants(q string, activeOnly bool) ([]models.Tenant, error) {
	query := s.db.Model(&models.Tenant{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(last_name) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var ts []models.Tenant
	err := query.Order("last_name, first_name").Find(&ts).Error
	return ts, err
}
