package property

import (
	"gestion-locative/internal/httpx"
	"gestion-locative/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BuildingRequest struct {
	Name                string          `json:"name" validate:"required,max=200"`
	Address             string          `json:"address" validate:"required,max=500"`
	City                string          `json:"city" validate:"required,max=100"`
	PostalCode          string          `json:"postal_code" validate:"required,max=10"`
	AnnualCommonCharges decimal.Decimal `json:"annual_common_charges"`
}

func (r BuildingRequest) model() models.Building {
	return models.Building{
		Name:                r.Name,
		Address:             r.Address,
		City:                r.City,
		PostalCode:          r.PostalCode,
		AnnualCommonCharges: r.AnnualCommonCharges,
	}
}

type ApartmentRequest struct {
	BuildingID     uint                `json:"building_id" validate:"required"`
	Number         string              `json:"number" validate:"required,max=10"`
	OwnerID        *uint               `json:"owner_id"`
	Floor          int                 `json:"floor"`
	BaseRent       decimal.NullDecimal `json:"base_rent"`
	MonthlyCharges decimal.NullDecimal `json:"monthly_charges"`
	Surface        decimal.NullDecimal `json:"surface"`
	Milliemes      *int                `json:"milliemes"`
}

func (r ApartmentRequest) model() models.Apartment {
	return models.Apartment{
		BuildingID:     r.BuildingID,
		Number:         r.Number,
		OwnerID:        r.OwnerID,
		Floor:          r.Floor,
		BaseRent:       r.BaseRent,
		MonthlyCharges: r.MonthlyCharges,
		Surface:        r.Surface,
		Milliemes:      r.Milliemes,
	}
}

type OwnerRequest struct {
	CompanyName string `json:"company_name" validate:"max=50"`
	LastName    string `json:"last_name" validate:"required,max=50"`
	FirstName   string `json:"first_name" validate:"required,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,phone,max=20"`
}

type TenantRequest struct {
	LastName  string `json:"last_name" validate:"required,max=100"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone,max=20"`
	Notes     string `json:"notes"`
	Active    *bool  `json:"active"`
}

type ApartmentResponse struct {
	ID             uint                `json:"id"`
	BuildingID     uint                `json:"building_id"`
	Label          string              `json:"label"`
	Number         string              `json:"number"`
	Floor          int                 `json:"floor"`
	Rented         bool                `json:"rented"`
	Owner          string              `json:"owner"`
	BaseRent       decimal.NullDecimal `json:"base_rent"`
	MonthlyCharges decimal.NullDecimal `json:"monthly_charges"`
	Surface        decimal.NullDecimal `json:"surface"`
	Milliemes      *int                `json:"milliemes"`
}

func toApartmentResponse(a *models.Apartment) ApartmentResponse {
	resp := ApartmentResponse{
		ID:             a.ID,
		BuildingID:     a.BuildingID,
		Label:          a.Label(),
		Number:         a.Number,
		Floor:          a.Floor,
		Rented:         a.Rented,
		BaseRent:       a.BaseRent,
		MonthlyCharges: a.MonthlyCharges,
		Surface:        a.Surface,
		Milliemes:      a.Milliemes,
	}
	if a.Owner != nil {
		resp.Owner = a.Owner.DisplayName()
	}
	return resp
}

// ----------------------------------------
// IMMEUBLES
// ----------------------------------------

func CreateBuildingHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BuildingRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		b := body.model()
		if err := svc.CreateBuilding(&b); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

func UpdateBuildingHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body BuildingRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		b, err := svc.UpdateBuilding(id, body.model())
		if err != nil {
			return err
		}
		return c.JSON(b)
	}
}

func ListBuildingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bs, err := svc.ListBuildings()
		if err != nil {
			return err
		}
		return c.JSON(bs)
	}
}

func GetBuildingHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		b, err := svc.GetBuilding(id)
		if err != nil {
			return err
		}
		return c.JSON(b)
	}
}

// ----------------------------------------
// APPARTEMENTS
// ----------------------------------------

func CreateApartmentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ApartmentRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		a := body.model()
		if err := svc.CreateApartment(&a); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toApartmentResponse(&a))
	}
}

func UpdateApartmentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ApartmentRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		a, err := svc.UpdateApartment(id, body.model())
		if err != nil {
			return err
		}
		return c.JSON(toApartmentResponse(a))
	}
}

func ListApartmentsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		as, err := svc.ListApartments(uint(c.QueryInt("building_id")))
		if err != nil {
			return err
		}
		resp := make([]ApartmentResponse, 0, len(as))
		for i := range as {
			resp = append(resp, toApartmentResponse(&as[i]))
		}
		return c.JSON(resp)
	}
}

func GetApartmentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		a, err := svc.GetApartment(id)
		if err != nil {
			return err
		}
		return c.JSON(toApartmentResponse(a))
	}
}

// ----------------------------------------
// PROPRIÉTAIRES / LOCATAIRES
// ----------------------------------------

func CreateOwnerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body OwnerRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		o := models.Owner{
			CompanyName: body.CompanyName,
			LastName:    body.LastName,
			FirstName:   body.FirstName,
			Email:       body.Email,
			Phone:       body.Phone,
		}
		if err := svc.CreateOwner(&o); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(o)
	}
}

func ListOwnersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owners, err := svc.ListOwners()
		if err != nil {
			return err
		}
		return c.JSON(owners)
	}
}

func CreateTenantHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TenantRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		t := models.Tenant{
			LastName:  body.LastName,
			FirstName: body.FirstName,
			Email:     body.Email,
			Phone:     body.Phone,
			Notes:     body.Notes,
		}
		if err := svc.CreateTenant(&t); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	}
}

func UpdateTenantHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body TenantRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		active := true
		if body.Active != nil {
			active = *body.Active
		}
		t, err := svc.UpdateTenant(id, models.Tenant{
			LastName:  body.LastName,
			FirstName: body.FirstName,
			Email:     body.Email,
			Phone:     body.Phone,
			Notes:     body.Notes,
			Active:    active,
		})
		if err != nil {
			return err
		}
		return c.JSON(t)
	}
}

// GET /api/tenants?q=martin&active=true
func ListTenantsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ts, err := svc.ListTenants(c.Query("q"), c.QueryBool("active"))
		if err != nil {
			return err
		}
		return c.JSON(ts)
	}
}

func GetTenantHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		t, err := svc.GetTenant(id)
		if err != nil {
			return err
		}
		return c.JSON(t)
	}
}
