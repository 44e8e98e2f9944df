package receipt

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

type GenerateRequest struct {
	LeaseID   uint   `json:"lease_id" validate:"required"`
	Month     string `json:"month" validate:"required"`
	PaymentID *uint  `json:"payment_id"`
	Force     bool   `json:"force"`
}

type GenerateMonthRequest struct {
	Month       string `json:"month" validate:"required"`
	BuildingIDs []uint `json:"building_ids"`
	OnlyPaid    *bool  `json:"only_paid"`
}

type MarkSentRequest struct {
	Mode models.SendMode `json:"mode" validate:"required,oneof=email courrier remise_main portail"`
}

type ReceiptResponse struct {
	ID          uint            `json:"id"`
	Number      string          `json:"number"`
	LeaseID     uint            `json:"lease_id"`
	Apartment   string          `json:"apartment,omitempty"`
	Month       string          `json:"month"`
	Rent        decimal.Decimal `json:"rent"`
	Charges     decimal.Decimal `json:"charges"`
	Total       decimal.Decimal `json:"total"`
	GeneratedAt string          `json:"generated_at"`
	Sent        bool            `json:"sent"`
	SentAt      *string         `json:"sent_at"`
	SendMode    models.SendMode `json:"send_mode"`
	PaymentID   *uint           `json:"payment_id"`
	HasDocument bool            `json:"has_document"`
}

func toResponse(r *models.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:          r.ID,
		Number:      r.Number,
		LeaseID:     r.LeaseID,
		Month:       r.Month.Format(period.MonthLayout),
		Rent:        r.Rent,
		Charges:     r.Charges,
		Total:       r.Total,
		GeneratedAt: r.GeneratedAt.Format("2006-01-02 15:04"),
		Sent:        r.Sent,
		SendMode:    r.SendMode,
		PaymentID:   r.PaymentID,
		HasDocument: r.DocumentKey != "",
	}
	if r.SentAt != nil {
		s := r.SentAt.Format("2006-01-02 15:04")
		resp.SentAt = &s
	}
	if r.Lease != nil && r.Lease.Apartment != nil {
		resp.Apartment = r.Lease.Apartment.Label()
	}
	return resp
}

// POST /api/receipts
func GenerateHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body GenerateRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		month, err := period.ParseMonth(body.Month)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		r, err := svc.Generate(c.UserContext(), body.LeaseID, month, body.PaymentID, body.Force)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "receipt",
			EntityID:    r.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("quittance %s générée (%s €)", r.Number, r.Total.StringFixed(2)),
			After:       r,
		})
		return c.Status(fiber.StatusCreated).JSON(toResponse(r))
	}
}

// POST /api/payments/:id/receipt
func GenerateFromPaymentHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		paymentID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := svc.GenerateFromPayment(c.UserContext(), paymentID)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "receipt",
			EntityID:    r.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("quittance %s générée depuis le paiement %d", r.Number, paymentID),
			After:       r,
		})
		return c.Status(fiber.StatusCreated).JSON(toResponse(r))
	}
}

// POST /api/receipts/month
func GenerateMonthHandler(svc *Service, onlyPaidDefault bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body GenerateMonthRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		month, err := period.ParseMonth(body.Month)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		onlyPaid := onlyPaidDefault
		if body.OnlyPaid != nil {
			onlyPaid = *body.OnlyPaid
		}
		res, err := svc.GenerateMonth(c.UserContext(), month, body.BuildingIDs, onlyPaid)
		if err != nil {
			return err
		}
		generated := make([]ReceiptResponse, 0, len(res.Generated))
		for i := range res.Generated {
			generated = append(generated, toResponse(&res.Generated[i]))
		}
		return c.JSON(fiber.Map{
			"month":     res.Month,
			"leases":    res.Leases,
			"generated": generated,
			"errors":    res.Errors,
		})
	}
}

// POST /api/receipts/:id/regenerate
func RegenerateHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := svc.Regenerate(c.UserContext(), id)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "receipt",
			EntityID:    r.ID,
			Action:      models.AuditActionUpdate,
			Description: "quittance régénérée : " + r.Number,
			After:       r,
		})
		return c.JSON(toResponse(r))
	}
}

// POST /api/receipts/:id/sent
func MarkSentHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body MarkSentRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		r, err := svc.MarkSent(id, body.Mode)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "receipt",
			EntityID:    r.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("quittance %s envoyée (%s)", r.Number, r.SendMode),
			After:       r,
		})
		return c.JSON(toResponse(r))
	}
}

// GET /api/receipts?lease_id=&month=2025-01&sent=false
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{LeaseID: uint(c.QueryInt("lease_id"))}
		if v := c.Query("month"); v != "" {
			m, err := period.ParseMonth(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.Month = &m
		}
		if v := c.Query("sent"); v != "" {
			b := c.QueryBool("sent")
			f.Sent = &b
		}
		rs, err := svc.List(f)
		if err != nil {
			return err
		}
		resp := make([]ReceiptResponse, 0, len(rs))
		for i := range rs {
			resp = append(resp, toResponse(&rs[i]))
		}
		return c.JSON(resp)
	}
}

func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := svc.Get(id)
		if err != nil {
			return err
		}
		snap, err := svc.Snapshot(id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"receipt": toResponse(r), "snapshot": snap})
	}
}

// GET /api/receipts/:id/pdf
func DocumentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		rc, name, err := svc.Document(c.UserContext(), id)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", name))
		return c.SendStream(rc)
	}
}
