package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// nil for system jobs (scheduler, CLI)
	UserID   *uint  `gorm:"index" json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"`

	// "lease", "membership", "payment", "allocation", "receipt", ...
	EntityType string `gorm:"size:50;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   uint   `gorm:"index:idx_audit_entity,priority:2" json:"entity_id"`

	Action      AuditAction `gorm:"size:20;not null" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// JSON snapshots, "null" when absent
	BeforeData string `gorm:"type:text" json:"before_data"`
	AfterData  string `gorm:"type:text" json:"after_data"`
}
