package report

import (
	"bytes"
	"fmt"
	"time"

	"gestion-locative/internal/httpx"
	"gestion-locative/internal/period"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /api/reports/monthly?month=2025-01
func MonthlySummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := period.ParseMonth(c.Query("month"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "month requis (YYYY-MM)")
		}
		sum, err := svc.MonthlySummary(month)
		if err != nil {
			return err
		}
		return c.JSON(sum)
	}
}

func sendWorkbook(c *fiber.Ctx, name string, buf *bytes.Buffer) error {
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(buf.Bytes())
}

// GET /api/reports/payments.xlsx?month=2025-01
func ExportPaymentsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := period.ParseMonth(c.Query("month"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "month requis (YYYY-MM)")
		}
		var buf bytes.Buffer
		if err := svc.ExportPayments(month, &buf); err != nil {
			return err
		}
		return sendWorkbook(c, "paiements_"+period.Prefix(month)+".xlsx", &buf)
	}
}

// GET /api/reports/expenses/:id/allocations.xlsx
func ExportAllocationsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := svc.ExportAllocations(id, &buf); err != nil {
			return err
		}
		return sendWorkbook(c, fmt.Sprintf("repartition_depense_%d.xlsx", id), &buf)
	}
}

// GET /api/dashboard
func DashboardHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := svc.Dashboard(time.Now())
		if err != nil {
			return err
		}
		return c.JSON(d)
	}
}

// GET /api/dashboard/revenue?count=12
func RevenueChartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count := c.QueryInt("count", revenueMonths)
		if count <= 0 || count > 120 {
			return fiber.NewError(fiber.StatusBadRequest, "count invalide")
		}
		chart, err := svc.RevenueChart(time.Now(), count)
		if err != nil {
			return err
		}
		return c.JSON(chart)
	}
}
