package allocation

import (
	"fmt"

	"gestion-locative/internal/audit"
	"gestion-locative/internal/httpx"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SplitRequest struct {
	Mode         models.AllocationMode `json:"mode" validate:"required,oneof=surface tantieme forfait"`
	ApartmentIDs []uint                `json:"apartment_ids"`
}

type ManualRequest struct {
	ApartmentID uint            `json:"apartment_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
}

type InvoicedRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type AllocationResponse struct {
	ID               uint                  `json:"id"`
	ExpenseID        uint                  `json:"expense_id"`
	ApartmentID      uint                  `json:"apartment_id"`
	Apartment        string                `json:"apartment,omitempty"`
	Amount           decimal.Decimal       `json:"amount"`
	Mode             models.AllocationMode `json:"mode"`
	Basis            decimal.NullDecimal   `json:"basis"`
	Coefficient      decimal.NullDecimal   `json:"coefficient"`
	InvoicedToTenant bool                  `json:"invoiced_to_tenant"`
	InvoicedAt       *string               `json:"invoiced_at"`
	Notes            string                `json:"notes"`
}

func toResponse(a *models.ExpenseAllocation) AllocationResponse {
	resp := AllocationResponse{
		ID:               a.ID,
		ExpenseID:        a.ExpenseID,
		ApartmentID:      a.ApartmentID,
		Amount:           a.Amount,
		Mode:             a.Mode,
		Basis:            a.Basis,
		Coefficient:      a.Coefficient,
		InvoicedToTenant: a.InvoicedToTenant,
		InvoicedAt:       period.FormatOptional(a.InvoicedAt),
		Notes:            a.Notes,
	}
	if a.Apartment != nil {
		resp.Apartment = a.Apartment.Label()
	}
	return resp
}

// POST /api/expenses/:id/split
func SplitHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		expenseID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body SplitRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		res, err := svc.Split(expenseID, body.Mode, body.ApartmentIDs)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "expense",
			EntityID:    expenseID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("répartition %s sur %d appartement(s)", body.Mode, len(res.Allocations)),
			After:       res,
		})

		items := make([]AllocationResponse, 0, len(res.Allocations))
		for i := range res.Allocations {
			items = append(items, toResponse(&res.Allocations[i]))
		}
		skipped := res.Skipped
		if skipped == nil {
			skipped = []uint{}
		}
		return c.JSON(fiber.Map{
			"allocations":           items,
			"skipped_apartment_ids": skipped,
		})
	}
}

// POST /api/expenses/:id/allocations
func AddManualHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		expenseID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ManualRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		a, err := svc.AddManual(expenseID, ManualInput{ApartmentID: body.ApartmentID, Amount: body.Amount, Notes: body.Notes}, 0)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "expense_allocation",
			EntityID:    a.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("répartition manuelle de %s €", a.Amount.StringFixed(2)),
			After:       a,
		})
		return c.Status(fiber.StatusCreated).JSON(toResponse(a))
	}
}

// PUT /api/allocations/:id
func UpdateManualHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ManualRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		var before models.ExpenseAllocation
		if err := db.First(&before, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "répartition introuvable")
		}
		a, err := svc.AddManual(before.ExpenseID, ManualInput{ApartmentID: body.ApartmentID, Amount: body.Amount, Notes: body.Notes}, id)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "expense_allocation",
			EntityID:    a.ID,
			Action:      models.AuditActionUpdate,
			Description: "répartition modifiée",
			Before:      before,
			After:       a,
		})
		return c.JSON(toResponse(a))
	}
}

// DELETE /api/allocations/:id
func DeleteHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		a, err := svc.Delete(id)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "expense_allocation",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("répartition supprimée (dépense %d)", a.ExpenseID),
			Before:      a,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/allocations/:id/invoiced
func MarkInvoicedHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body InvoicedRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		date, err := period.Parse(body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		a, err := svc.MarkInvoiced(id, date)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(a))
	}
}

// GET /api/expenses/:id/allocations
func ListForExpenseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		expenseID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		as, err := svc.ForExpense(expenseID)
		if err != nil {
			return err
		}
		resp := make([]AllocationResponse, 0, len(as))
		for i := range as {
			resp = append(resp, toResponse(&as[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/apartments/:id/allocations?from=2025-01-01&to=2025-12-31
func ListForApartmentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apartmentID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		from, err := period.ParseOptional(optionalQuery(c, "from"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		to, err := period.ParseOptional(optionalQuery(c, "to"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		lines, err := svc.ForApartment(apartmentID, from, to)
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.Amount)
		}
		if lines == nil {
			lines = []ApartmentLine{}
		}
		return c.JSON(fiber.Map{"lines": lines, "total": total.Round(2)})
	}
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}
