package expense

import (
	"fmt"
	"sort"

	"gestion-locative/internal/audit"
	"gestion-locative/internal/httpx"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ExpenseTypeRequest struct {
	Name          string                 `json:"name" validate:"required,max=100"`
	Category      models.ExpenseCategory `json:"category" validate:"required,oneof=entretien charges taxe assurance travaux autre"`
	Recurring     bool                   `json:"recurring"`
	TaxDeductible bool                   `json:"tax_deductible"`
}

type ExpenseRequest struct {
	BuildingID    *uint                `json:"building_id"`
	ApartmentID   *uint                `json:"apartment_id"`
	TypeID        uint                 `json:"type_id" validate:"required"`
	Designation   string               `json:"designation" validate:"required,max=200"`
	Description   string               `json:"description"`
	AmountHT      decimal.Decimal      `json:"amount_ht"`
	VAT           decimal.NullDecimal  `json:"vat"`
	VATRate       decimal.NullDecimal  `json:"vat_rate"` // percent, used when vat is absent
	AmountTTC     decimal.NullDecimal  `json:"amount_ttc"`
	ExpenseDate   string               `json:"expense_date" validate:"required,datetime=2006-01-02"`
	PaymentDate   *string              `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate       *string              `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	SupplierName  string               `json:"supplier_name" validate:"max=200"`
	SupplierInfo  string               `json:"supplier_info"`
	InvoiceNumber string               `json:"invoice_number" validate:"max=50"`
	PaymentMode   models.PaymentMode   `json:"payment_mode"`
	Status        models.ExpenseStatus `json:"status"`
	Allocatable   bool                 `json:"allocatable"`
	TaxDeductible *bool                `json:"tax_deductible"`
	InvoiceFile   string               `json:"invoice_file" validate:"max=255"`
	ReceiptFile   string               `json:"receipt_file" validate:"max=255"`
}

func (r ExpenseRequest) input() (Input, error) {
	date, err := period.Parse(r.ExpenseDate)
	if err != nil {
		return Input{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	paid, err := period.ParseOptional(r.PaymentDate)
	if err != nil {
		return Input{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	due, err := period.ParseOptional(r.DueDate)
	if err != nil {
		return Input{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	vat := r.VAT.Decimal
	if !r.VAT.Valid && r.VATRate.Valid {
		vat = VATFromRate(r.AmountHT, r.VATRate.Decimal)
	}
	return Input{
		BuildingID:    r.BuildingID,
		ApartmentID:   r.ApartmentID,
		TypeID:        r.TypeID,
		Designation:   r.Designation,
		Description:   r.Description,
		AmountHT:      r.AmountHT,
		VAT:           vat,
		AmountTTC:     r.AmountTTC,
		ExpenseDate:   date,
		PaymentDate:   paid,
		DueDate:       due,
		SupplierName:  r.SupplierName,
		SupplierInfo:  r.SupplierInfo,
		InvoiceNumber: r.InvoiceNumber,
		PaymentMode:   r.PaymentMode,
		Status:        r.Status,
		Allocatable:   r.Allocatable,
		TaxDeductible: r.TaxDeductible,
		InvoiceFile:   r.InvoiceFile,
		ReceiptFile:   r.ReceiptFile,
	}, nil
}

type ExpenseResponse struct {
	ID            uint                 `json:"id"`
	BuildingID    *uint                `json:"building_id"`
	ApartmentID   *uint                `json:"apartment_id"`
	TypeID        uint                 `json:"type_id"`
	Type          string               `json:"type"`
	Designation   string               `json:"designation"`
	AmountHT      decimal.Decimal      `json:"amount_ht"`
	VAT           decimal.Decimal      `json:"vat"`
	AmountTTC     decimal.Decimal      `json:"amount_ttc"`
	ExpenseDate   string               `json:"expense_date"`
	PaymentDate   *string              `json:"payment_date"`
	DueDate       *string              `json:"due_date"`
	SupplierName  string               `json:"supplier_name"`
	InvoiceNumber string               `json:"invoice_number"`
	PaymentMode   models.PaymentMode   `json:"payment_mode"`
	Status        models.ExpenseStatus `json:"status"`
	Allocatable   bool                 `json:"allocatable"`
	Allocated     bool                 `json:"allocated"`
	TaxDeductible bool                 `json:"tax_deductible"`
}

func toExpenseResponse(e *models.Expense) ExpenseResponse {
	resp := ExpenseResponse{
		ID:            e.ID,
		BuildingID:    e.BuildingID,
		ApartmentID:   e.ApartmentID,
		TypeID:        e.TypeID,
		Designation:   e.Designation,
		AmountHT:      e.AmountHT,
		VAT:           e.VAT,
		AmountTTC:     e.AmountTTC,
		ExpenseDate:   period.Format(e.ExpenseDate),
		PaymentDate:   period.FormatOptional(e.PaymentDate),
		DueDate:       period.FormatOptional(e.DueDate),
		SupplierName:  e.SupplierName,
		InvoiceNumber: e.InvoiceNumber,
		PaymentMode:   e.PaymentMode,
		Status:        e.Status,
		Allocatable:   e.Allocatable,
		Allocated:     e.Allocated,
		TaxDeductible: e.TaxDeductible,
	}
	if e.Type != nil {
		resp.Type = e.Type.Name
	}
	return resp
}

// -------------------------
// Types de dépense
// -------------------------

// GET /api/expense-types
func ListExpenseTypesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ts, err := svc.ListTypes()
		if err != nil {
			return err
		}
		return c.JSON(ts)
	}
}

// POST /api/admin/expense-types
func CreateExpenseTypeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ExpenseTypeRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		t := models.ExpenseType{
			Name:          body.Name,
			Category:      body.Category,
			Recurring:     body.Recurring,
			TaxDeductible: body.TaxDeductible,
		}
		if err := svc.CreateType(&t); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	}
}

// -------------------------
// Dépenses
// -------------------------

// POST /api/expenses
func CreateExpenseHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ExpenseRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		e, err := svc.Create(in)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "expense",
			EntityID:    e.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("dépense ajoutée : %s - %s €", e.Designation, e.AmountTTC.StringFixed(2)),
			After:       e,
		})
		return c.Status(fiber.StatusCreated).JSON(toExpenseResponse(e))
	}
}

// PUT /api/expenses/:id
func UpdateExpenseHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ExpenseRequest
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
		e, err := svc.Update(id, in)
		if err != nil {
			return err
		}
		audit.Record(c, db, log, audit.LogOptions{
			EntityType:  "expense",
			EntityID:    e.ID,
			Action:      models.AuditActionUpdate,
			Description: "dépense modifiée",
			Before:      before,
			After:       e,
		})
		return c.JSON(toExpenseResponse(e))
	}
}

// GET /api/expenses?from=...&to=...&type_id=...&building_id=...&status=...
func ListExpensesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			BuildingID:  uint(c.QueryInt("building_id")),
			ApartmentID: uint(c.QueryInt("apartment_id")),
			TypeID:      uint(c.QueryInt("type_id")),
			Status:      models.ExpenseStatus(c.Query("status")),
		}
		if v := c.Query("from"); v != "" {
			from, err := period.Parse(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.From = &from
		}
		if v := c.Query("to"); v != "" {
			to, err := period.Parse(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.To = &to
		}
		if v := c.Query("allocatable"); v != "" {
			b := c.QueryBool("allocatable")
			f.Allocatable = &b
		}

		rows, err := svc.List(f)
		if err != nil {
			return err
		}
		resp := make([]ExpenseResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toExpenseResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}

func GetExpenseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		e, err := svc.Get(id)
		if err != nil {
			return err
		}
		remaining, err := svc.Remaining(id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"expense":     toExpenseResponse(e),
			"allocations": e.Allocations,
			"remaining":   remaining,
		})
	}
}

// DELETE /api/expenses/:id
func DeleteExpenseHandler(svc *Service, db *gorm.DB, log *zap.Logger) fiber.Handler {
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
			EntityType:  "expense",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "dépense supprimée : " + before.Designation,
			Before:      before,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type MarkPaidRequest struct {
	PaymentDate string             `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PaymentMode models.PaymentMode `json:"payment_mode" validate:"required"`
}

// POST /api/expenses/:id/paid
func MarkPaidHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body MarkPaidRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		date, err := period.Parse(body.PaymentDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		e, err := svc.MarkPaid(id, date, body.PaymentMode)
		if err != nil {
			return err
		}
		return c.JSON(toExpenseResponse(e))
	}
}

type MonthlyExpenseSummaryItem struct {
	TypeID   uint            `json:"type_id"`
	TypeName string          `json:"type_name"`
	Total    decimal.Decimal `json:"total"`
}

type MonthlyExpenseSummaryResponse struct {
	Month      string                      `json:"month"`
	BuildingID uint                        `json:"building_id"`
	Items      []MonthlyExpenseSummaryItem `json:"items"`
	GrandTotal decimal.Decimal             `json:"grand_total"`
}

// GET /api/expenses/summary/monthly?month=2025-12[&building_id=1]
func MonthlyExpenseSummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := period.ParseMonth(c.Query("month"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		last := month.AddDate(0, 1, -1)
		f := Filter{BuildingID: uint(c.QueryInt("building_id")), From: &month, To: &last}
		rows, err := svc.List(f)
		if err != nil {
			return err
		}

		byType := map[uint]*MonthlyExpenseSummaryItem{}
		resp := MonthlyExpenseSummaryResponse{
			Month:      month.Format(period.MonthLayout),
			BuildingID: f.BuildingID,
			Items:      []MonthlyExpenseSummaryItem{},
			GrandTotal: decimal.Zero,
		}
		for _, e := range rows {
			if e.Status == models.ExpenseCancelled {
				continue
			}
			item, ok := byType[e.TypeID]
			if !ok {
				item = &MonthlyExpenseSummaryItem{TypeID: e.TypeID, Total: decimal.Zero}
				if e.Type != nil {
					item.TypeName = e.Type.Name
				}
				byType[e.TypeID] = item
			}
			item.Total = item.Total.Add(e.AmountTTC)
			resp.GrandTotal = resp.GrandTotal.Add(e.AmountTTC)
		}
		for _, item := range byType {
			resp.Items = append(resp.Items, *item)
		}
		sort.Slice(resp.Items, func(i, j int) bool { return resp.Items[i].TypeName < resp.Items[j].TypeName })
		return c.JSON(resp)
	}
}
