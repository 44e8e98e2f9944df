package payment

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

type PaymentRequest struct {
	LeaseID     uint                 `json:"lease_id" validate:"required"`
	Month       string               `json:"month" validate:"required"`
	Rent        decimal.Decimal      `json:"rent"`
	Charges     decimal.Decimal      `json:"charges"`
	Other       decimal.Decimal      `json:"other"`
	PaymentDate string               `json:"payment_date" validate:"required,datetime=2006-01-02"`
	DueDate     *string              `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Mode        models.PaymentMode   `json:"mode" validate:"required"`
	Reference   string               `json:"reference" validate:"max=100"`
	Status      models.PaymentStatus `json:"status"`
	Validated   bool                 `json:"validated"`
	Notes       string               `json:"notes"`
}

func (r PaymentRequest) input() (Input, error) {
	month, err := period.ParseMonth(r.Month)
	if err != nil {
		return Input{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	date, err := period.Parse(r.PaymentDate)
	if err != nil {
		return Input{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	due, err := period.ParseOptional(r.DueDate)
	if err != nil {
		return Input{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return Input{
		LeaseID:     r.LeaseID,
		Month:       month,
		Rent:        r.Rent,
		Charges:     r.Charges,
		Other:       r.Other,
		PaymentDate: date,
		DueDate:     due,
		Mode:        r.Mode,
		Reference:   r.Reference,
		Status:      r.Status,
		Validated:   r.Validated,
		Notes:       r.Notes,
	}, nil
}

type QuickPaymentRequest struct {
	LeaseID     uint               `json:"lease_id" validate:"required"`
	Month       string             `json:"month" validate:"required"`
	PaymentDate string             `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Mode        models.PaymentMode `json:"mode" validate:"required"`
	Reference   string             `json:"reference" validate:"max=100"`
}

type PaymentResponse struct {
	ID          uint                 `json:"id"`
	LeaseID     uint                 `json:"lease_id"`
	Apartment   string               `json:"apartment,omitempty"`
	Month       string               `json:"month"`
	Rent        decimal.Decimal      `json:"rent"`
	Charges     decimal.Decimal      `json:"charges"`
	Other       decimal.Decimal      `json:"other"`
	Total       decimal.Decimal      `json:"total"`
	Expected    *decimal.Decimal     `json:"expected,omitempty"`
	Complete    *bool                `json:"complete,omitempty"`
	PaymentDate string               `json:"payment_date"`
	DueDate     *string              `json:"due_date"`
	Late        bool                 `json:"late"`
	LateDays    int                  `json:"late_days"`
	Mode        models.PaymentMode   `json:"mode"`
	Reference   string               `json:"reference"`
	Status      models.PaymentStatus `json:"status"`
	Validated   bool                 `json:"validated"`
	ReceiptID   *uint                `json:"receipt_id"`
	Notes       string               `json:"notes"`
	Warnings    []string             `json:"warnings,omitempty"`
}

func toResponse(p *models.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:          p.ID,
		LeaseID:     p.LeaseID,
		Month:       p.Month.Format(period.MonthLayout),
		Rent:        p.Rent,
		Charges:     p.Charges,
		Other:       p.Other,
		Total:       p.Total(),
		PaymentDate: period.Format(p.PaymentDate),
		DueDate:     period.FormatOptional(p.DueDate),
		Late:        IsLate(*p),
		LateDays:    LateDays(*p),
		Mode:        p.Mode,
		Reference:   p.Reference,
		Status:      p.Status,
		Validated:   p.Validated,
		ReceiptID:   p.ReceiptID,
		Notes:       p.Notes,
	}
	if p.Lease != nil {
		expected := ExpectedAmount(*p.Lease)
		complete := IsComplete(*p, *p.Lease)
		resp.Expected = &expected
		resp.Complete = &complete
		if p.Lease.Apartment != nil {
			resp.Apartment = p.Lease.Apartment.Label()
		}
	}
	return resp
}

func auditPayment(c *fiber.Ctx, db *gorm.DB, log *zap.Logger, action models.AuditAction, before, after *models.Payment) {
	p := after
	if p == nil {
		p = before
	}
	var desc string
	switch action {
	case models.AuditActionCreate:
		desc = fmt.Sprintf("paiement %s enregistré : %s €", p.Month.Format(period.MonthLayout), p.Total().StringFixed(2))
	case models.AuditActionUpdate:
		desc = fmt.Sprintf("paiement %s modifié", p.Month.Format(period.MonthLayout))
	default:
		desc = fmt.Sprintf("paiement %s supprimé", p.Month.Format(period.MonthLayout))
	}
	opts := audit.LogOptions{EntityType: "payment", EntityID: p.ID, Action: action, Description: desc}
	if before != nil {
		opts.Before = before
	}
	if after != nil {
		opts.After = after
	}
	audit.Record(c, db, log, opts)
}

func withWarnings(res *Result) PaymentResponse {
	resp := toResponse(res.Payment)
	resp.Warnings = res.Warnings
	return resp
}

// POST /api/payments
func RecordPaymentHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PaymentRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		res, err := svc.Record(in)
		if err != nil {
			return err
		}
		auditPayment(c, db, log, models.AuditActionCreate, nil, res.Payment)
		return c.Status(fiber.StatusCreated).JSON(withWarnings(res))
	}
}

// POST /api/payments/quick
func QuickPaymentHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body QuickPaymentRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		month, err := period.ParseMonth(body.Month)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		date, err := period.Parse(body.PaymentDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := svc.RecordQuick(body.LeaseID, month, date, body.Mode, body.Reference)
		if err != nil {
			return err
		}
		auditPayment(c, db, log, models.AuditActionCreate, nil, res.Payment)
		return c.Status(fiber.StatusCreated).JSON(withWarnings(res))
	}
}

// PUT /api/payments/:id
func UpdatePaymentHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body PaymentRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		before, err := svc.Get(id)
		if err != nil {
			return err
		}
		before.Lease = nil
		res, err := svc.Update(id, in)
		if err != nil {
			return err
		}
		auditPayment(c, db, log, models.AuditActionUpdate, before, res.Payment)
		return c.JSON(withWarnings(res))
	}
}

// GET /api/payments?lease_id=&from=2025-01&to=2025-12&status=&mode=&late=true
func ListPaymentsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			LeaseID:  uint(c.QueryInt("lease_id")),
			Status:   models.PaymentStatus(c.Query("status")),
			Mode:     models.PaymentMode(c.Query("mode")),
			LateOnly: c.QueryBool("late"),
		}
		if v := c.Query("from"); v != "" {
			from, err := period.ParseMonth(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.From = &from
		}
		if v := c.Query("to"); v != "" {
			to, err := period.ParseMonth(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.To = &to
		}
		ps, err := svc.List(f)
		if err != nil {
			return err
		}
		resp := make([]PaymentResponse, 0, len(ps))
		for i := range ps {
			resp = append(resp, toResponse(&ps[i]))
		}
		return c.JSON(resp)
	}
}

func GetPaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.Get(id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(p))
	}
}

// POST /api/payments/:id/validate
func ValidatePaymentHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.Validate(id)
		if err != nil {
			return err
		}
		auditPayment(c, db, log, models.AuditActionUpdate, nil, p)
		return c.JSON(toResponse(p))
	}
}

// DELETE /api/payments/:id
func DeletePaymentHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.Delete(id)
		if err != nil {
			return err
		}
		auditPayment(c, db, log, models.AuditActionDelete, p, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}
