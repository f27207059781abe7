package model

import (
	"time"
)

// Extraction sources: where a field value came from.
const (
	SourceModel    = "model"
	SourceComputed = "computed"
	SourceExternal = "external"
	SourceManual   = "manual"
)

// ExtractionField is one audit entry for one (lease, field_name) extraction
// attempt. Entries are append-mostly: a re-extraction or a human override
// creates a new row, never rewrites an existing one, so the full history of
// every field survives. Rows are removed only by cascade when a lease is
// hard-purged.
type ExtractionField struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	LeaseRecordID uint   `json:"lease_record_id" gorm:"not null;index:idx_field_history,priority:1"`
	FieldName     string `json:"field_name" gorm:"type:varchar(64);not null;index:idx_field_history,priority:2"`

	RawValue    *string `json:"raw_value,omitempty" gorm:"type:text"`
	ParsedValue *string `json:"parsed_value,omitempty" gorm:"type:jsonb"`

	// Confidence in [0,1]; indexed because the low-confidence review queue is
	// the hot-path query against this table.
	Confidence *float64 `json:"confidence,omitempty" gorm:"type:numeric(4,3);index"`

	Source     string  `json:"source" gorm:"type:varchar(20);not null;default:model"`
	Citation   *string `json:"citation,omitempty" gorm:"type:text"`
	NullReason *string `json:"null_reason,omitempty" gorm:"type:text"`

	// Human override bookkeeping. An override row references the entry it
	// corrects through SupersedesID; the prior entry is retained unchanged.
	HumanOverride  bool       `json:"human_override" gorm:"not null;default:false"`
	OverriddenBy   *uint      `json:"overridden_by,omitempty"`
	OverriddenAt   *time.Time `json:"overridden_at,omitempty"`
	OverrideReason *string    `json:"override_reason,omitempty" gorm:"type:text"`
	SupersedesID   *uint      `json:"supersedes_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ValidSource reports whether source is one of the known extraction sources.
func ValidSource(source string) bool {
	switch source {
	case SourceModel, SourceComputed, SourceExternal, SourceManual:
		return true
	}
	return false
}

// ValidConfidence reports whether a confidence value lies in [0,1].
// A nil confidence is valid: it means the extractor reported none.
func ValidConfidence(confidence *float64) bool {
	if confidence == nil {
		return true
	}
	return *confidence >= 0 && *confidence <= 1
}
