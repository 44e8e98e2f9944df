package audit

import (
	"gestion-locative/internal/auth"
	"gestion-locative/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      *uint              `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  string             `json:"before_data"`
	AfterData   string             `json:"after_data"`
}

// ActorFrom reads the authenticated user from the request.
func ActorFrom(c *fiber.Ctx) Actor {
	var a Actor
	if id, ok := c.Locals(auth.CtxUserIDKey).(uint); ok {
		a.UserID = &id
	}
	if name, ok := c.Locals(auth.CtxUserNameKey).(string); ok {
		a.Name = name
	}
	return a
}

// Record writes an entry for a request and only logs a failure: the
// change itself has already been committed.
func Record(c *fiber.Ctx, db *gorm.DB, log *zap.Logger, opts LogOptions) {
	opts.Actor = ActorFrom(c)
	if err := WriteLog(db, opts); err != nil {
		log.Warn("audit non enregistré",
			zap.String("entity", opts.EntityType),
			zap.Uint("id", opts.EntityID),
			zap.Error(err))
	}
}

// GET /api/audit-logs?entity_type=payment&entity_id=1&user_id=2
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType: c.Query("entity_type"),
			EntityID:   uint(c.QueryInt("entity_id")),
			UserID:     uint(c.QueryInt("user_id")),
			Limit:      c.QueryInt("limit", 100),
		}
		logs, err := List(db, f)
		if err != nil {
			return err
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				BeforeData:  l.BeforeData,
				AfterData:   l.AfterData,
			})
		}
		return c.JSON(resp)
	}
}
