package lease

import (
	"gestion-locative/internal/audit"
	"gestion-locative/internal/httpx"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LeaseRequest struct {
	ApartmentID     uint                `json:"apartment_id" validate:"required"`
	StartDate       string              `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         *string             `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	MonthlyRent     decimal.NullDecimal `json:"monthly_rent"`
	MonthlyCharges  decimal.NullDecimal `json:"monthly_charges"`
	Deposit         decimal.NullDecimal `json:"deposit"`
	ReferenceIndex  decimal.NullDecimal `json:"reference_index"`
	RevisionDate    *string             `json:"revision_date" validate:"omitempty,datetime=2006-01-02"`
	BillingDay      int                 `json:"billing_day"`
	ContractFile    string              `json:"contract_file" validate:"max=255"`
	EntryReportFile string              `json:"entry_report_file" validate:"max=255"`
	ExitReportFile  string              `json:"exit_report_file" validate:"max=255"`
	Notes           string              `json:"notes"`
}

func (r LeaseRequest) terms() (Terms, error) {
	start, err := period.Parse(r.StartDate)
	if err != nil {
		return Terms{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	end, err := period.ParseOptional(r.EndDate)
	if err != nil {
		return Terms{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	revision, err := period.ParseOptional(r.RevisionDate)
	if err != nil {
		return Terms{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return Terms{
		ApartmentID:     r.ApartmentID,
		StartDate:       start,
		EndDate:         end,
		MonthlyRent:     r.MonthlyRent,
		MonthlyCharges:  r.MonthlyCharges,
		Deposit:         r.Deposit,
		ReferenceIndex:  r.ReferenceIndex,
		RevisionDate:    revision,
		BillingDay:      r.BillingDay,
		ContractFile:    r.ContractFile,
		EntryReportFile: r.EntryReportFile,
		ExitReportFile:  r.ExitReportFile,
		Notes:           r.Notes,
	}, nil
}

type TenantSummary struct {
	MembershipID uint               `json:"membership_id"`
	TenantID     uint               `json:"tenant_id"`
	FullName     string             `json:"full_name"`
	Role         models.TenancyRole `json:"role"`
	Principal    bool               `json:"principal"`
	Order        int                `json:"order"`
	EntryDate    string             `json:"entry_date"`
	ExitDate     *string            `json:"exit_date"`
	Active       bool               `json:"active"`
}

type LeaseResponse struct {
	ID               uint                `json:"id"`
	ApartmentID      uint                `json:"apartment_id"`
	Apartment        string              `json:"apartment"`
	StartDate        string              `json:"start_date"`
	EndDate          *string             `json:"end_date"`
	EffectiveEndDate *string             `json:"effective_end_date"`
	MonthlyRent      decimal.NullDecimal `json:"monthly_rent"`
	MonthlyCharges   decimal.NullDecimal `json:"monthly_charges"`
	TotalRent        decimal.Decimal     `json:"total_rent"`
	Deposit          decimal.NullDecimal `json:"deposit"`
	BillingDay       int                 `json:"billing_day"`
	DurationMonths   *int                `json:"duration_months"`
	Active           bool                `json:"active"`
	NoticeGiven      bool                `json:"notice_given"`
	NoticeDate       *string             `json:"notice_date"`
	TenantsDisplay   string              `json:"tenants_display"`
	PrincipalTenant  *string             `json:"principal_tenant"`
	Tenants          []TenantSummary     `json:"tenants"`
	Notes            string              `json:"notes"`
}

func toMembershipSummary(m models.TenancyMembership) TenantSummary {
	ts := TenantSummary{
		MembershipID: m.ID,
		TenantID:     m.TenantID,
		Role:         m.Role,
		Principal:    m.Principal,
		Order:        m.Order,
		EntryDate:    period.Format(m.EntryDate),
		ExitDate:     period.FormatOptional(m.ExitDate),
		Active:       m.IsActive(),
	}
	if m.Tenant != nil {
		ts.FullName = m.Tenant.FullName()
	}
	return ts
}

func toLeaseResponse(l *models.Lease) LeaseResponse {
	resp := LeaseResponse{
		ID:               l.ID,
		ApartmentID:      l.ApartmentID,
		StartDate:        period.Format(l.StartDate),
		EndDate:          period.FormatOptional(l.EndDate),
		EffectiveEndDate: period.FormatOptional(l.EffectiveEndDate),
		MonthlyRent:      l.MonthlyRent,
		MonthlyCharges:   l.MonthlyCharges,
		TotalRent:        l.TotalRent(),
		Deposit:          l.Deposit,
		BillingDay:       l.BillingDay,
		DurationMonths:   l.DurationMonths(),
		Active:           l.Active,
		NoticeGiven:      l.NoticeGiven,
		NoticeDate:       period.FormatOptional(l.NoticeDate),
		TenantsDisplay:   DisplayNameOf(l.Memberships, DefaultSeparator),
		Tenants:          make([]TenantSummary, 0, len(l.Memberships)),
		Notes:            l.Notes,
	}
	if l.Apartment != nil {
		resp.Apartment = l.Apartment.Label()
	}
	if p := PrincipalOf(l.Memberships); p != nil {
		name := p.FullName()
		resp.PrincipalTenant = &name
	}
	for _, m := range l.Memberships {
		resp.Tenants = append(resp.Tenants, toMembershipSummary(m))
	}
	return resp
}

// POST /api/leases
func CreateLeaseHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LeaseRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		t, err := body.terms()
		if err != nil {
			return err
		}
		l, err := svc.Create(t)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "lease",
			EntityID:    l.ID,
			Action:      models.AuditActionCreate,
			Description: "bail créé",
			After:       l,
		})
		full, err := svc.Get(l.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toLeaseResponse(full))
	}
}

// PUT /api/leases/:id
func UpdateLeaseHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body LeaseRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		t, err := body.terms()
		if err != nil {
			return err
		}
		before, err := svc.Get(id)
		if err != nil {
			return err
		}
		if _, err := svc.Update(id, t); err != nil {
			return err
		}
		after, err := svc.Get(id)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "lease",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "bail modifié",
			Before:      before,
			After:       after,
		})
		return c.JSON(toLeaseResponse(after))
	}
}

// GET /api/leases?active=true&building_id=1&tenant_id=2
func ListLeasesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		leases, err := svc.List(ListFilter{
			ActiveOnly:  c.QueryBool("active"),
			BuildingID:  uint(c.QueryInt("building_id")),
			ApartmentID: uint(c.QueryInt("apartment_id")),
			TenantID:    uint(c.QueryInt("tenant_id")),
		})
		if err != nil {
			return err
		}
		resp := make([]LeaseResponse, 0, len(leases))
		for i := range leases {
			resp = append(resp, toLeaseResponse(&leases[i]))
		}
		return c.JSON(resp)
	}
}

func GetLeaseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		l, err := svc.Get(id)
		if err != nil {
			return err
		}
		return c.JSON(toLeaseResponse(l))
	}
}

type DateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// POST /api/leases/:id/terminate
func TerminateLeaseHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body DateRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		date, err := period.Parse(body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		l, err := svc.Terminate(id, date)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "lease",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "bail résilié au " + body.Date,
			After:       l,
		})
		return c.JSON(fiber.Map{"id": l.ID, "active": l.Active, "effective_end_date": body.Date})
	}
}

// POST /api/leases/:id/notice
func RecordNoticeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body DateRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		date, err := period.Parse(body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, err := svc.RecordNotice(id, date); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id, "notice_given": true, "notice_date": body.Date})
	}
}

// DELETE /api/leases/:id
func DeleteLeaseHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		before, err := svc.Get(id)
		if err != nil {
			return err
		}
		if err := svc.Delete(id); err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "lease",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "bail supprimé",
			Before:      before,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type AddTenantRequest struct {
	TenantID  uint               `json:"tenant_id" validate:"required"`
	Principal bool               `json:"principal"`
	Role      models.TenancyRole `json:"role" validate:"omitempty,oneof=titulaire cotitulaire garant"`
	Order     int                `json:"order" validate:"gte=0"`
	Notes     string             `json:"notes"`
}

// POST /api/leases/:id/tenants
func AddTenantHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body AddTenantRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		m, err := svc.AddTenant(id, body.TenantID, AddTenantOptions{
			Principal: body.Principal,
			Role:      body.Role,
			Order:     body.Order,
			Notes:     body.Notes,
		})
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "membership",
			EntityID:    m.ID,
			Action:      models.AuditActionCreate,
			Description: "locataire ajouté au bail",
			After:       m,
		})
		return c.Status(fiber.StatusCreated).JSON(toMembershipSummary(*m))
	}
}

type RemoveTenantRequest struct {
	ExitDate string `json:"exit_date" validate:"required,datetime=2006-01-02"`
}

// POST /api/leases/:id/tenants/:tenantId/exit
func RemoveTenantHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		tenantID, err := httpx.ParamID(c, "tenantId")
		if err != nil {
			return err
		}
		var body RemoveTenantRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		exit, err := period.Parse(body.ExitDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		removed, err := svc.RemoveTenant(id, tenantID, exit)
		if err != nil {
			return err
		}
		if removed {
			audit.Record(c, db, log, audit.LogOptions{
				EntityType:  "lease",
				EntityID:    id,
				Action:      models.AuditActionUpdate,
				Description: "sortie locataire au " + body.ExitDate,
				After:       fiber.Map{"tenant_id": tenantID, "exit_date": body.ExitDate},
			})
		}
		return c.JSON(fiber.Map{"removed": removed})
	}
}

// POST /api/memberships/:id/principal
func SetPrincipalHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		m, err := svc.SetPrincipal(id)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "membership",
			EntityID:    m.ID,
			Action:      models.AuditActionUpdate,
			Description: "locataire principal",
			After:       m,
		})
		return c.JSON(toMembershipSummary(*m))
	}
}

type UpdateMembershipRequest struct {
	Role      *models.TenancyRole `json:"role" validate:"omitempty,oneof=titulaire cotitulaire garant"`
	Order     *int                `json:"order" validate:"omitempty,gte=1"`
	EntryDate *string             `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	ExitDate  *string             `json:"exit_date" validate:"omitempty,datetime=2006-01-02"`
	ClearExit bool                `json:"clear_exit"`
	Notes     *string             `json:"notes"`
}

// PUT /api/memberships/:id
func UpdateMembershipHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateMembershipRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		entry, err := period.ParseOptional(body.EntryDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		exit, err := period.ParseOptional(body.ExitDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m, err := svc.UpdateMembership(id, MembershipChanges{
			Role:      body.Role,
			Order:     body.Order,
			EntryDate: entry,
			ExitDate:  exit,
			ClearExit: body.ClearExit,
			Notes:     body.Notes,
		})
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "membership",
			EntityID:    m.ID,
			Action:      models.AuditActionUpdate,
			Description: "rattachement modifié",
			After:       m,
		})
		return c.JSON(toMembershipSummary(*m))
	}
}

// GET /api/leases/:id/tenants/available
func AvailableTenantsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		tenants, err := svc.AvailableTenants(id)
		if err != nil {
			return err
		}
		return c.JSON(tenants)
	}
}
