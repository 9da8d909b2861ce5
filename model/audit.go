package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records one storage transaction handled by the facade.
type AuditLog struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID     string         `gorm:"index:idx_audit_trace;size:36" json:"trace_id"`
	Action      string         `gorm:"size:64;not null" json:"action"`
	StorageType uint8          `gorm:"index:idx_audit_storage" json:"storage_type"`
	OwnerID     string         `gorm:"index:idx_audit_storage;size:36" json:"owner_id"`
	CharacterID string         `gorm:"index:idx_audit_char;size:36" json:"character_id"`
	Request     datatypes.JSON `json:"request"`
	Result      string         `gorm:"size:32" json:"result"`
	Error       string         `gorm:"type:text" json:"error"`
	DurationMs  int            `json:"duration_ms"`
	CreatedAt   time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
