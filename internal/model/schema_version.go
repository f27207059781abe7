package model

import (
	"time"
)

// SchemaVersion is one entry in the append-only ledger of schema revisions.
type SchemaVersion struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Version     string    `json:"version" gorm:"type:varchar(20);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	AppliedAt   time.Time `json:"applied_at" gorm:"autoCreateTime"`
}
