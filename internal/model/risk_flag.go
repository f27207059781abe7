package model

import (
	"time"
)

// Risk flag severities, most severe first.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// RiskFlag is one structured finding attached to a lease by the reasoning
// engine. Flags are immutable once created and removed only by cascade with
// their lease.
type RiskFlag struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	LeaseRecordID uint `json:"lease_record_id" gorm:"not null;index"`

	Slug        string `json:"slug" gorm:"type:varchar(64);not null"`
	Severity    string `json:"severity" gorm:"type:varchar(10);not null"`
	Category    string `json:"category" gorm:"type:varchar(30);not null"`
	Description string `json:"description" gorm:"type:text;not null"`
	Detail      string `json:"detail" gorm:"type:text"`

	ClauseCitation    *string `json:"clause_citation,omitempty" gorm:"type:text"`
	StatuteCitation   *string `json:"statute_citation,omitempty" gorm:"type:varchar(255)"`
	JurisdictionNote  *string `json:"jurisdiction_note,omitempty" gorm:"type:text"`
	RecommendedAction *string `json:"recommended_action,omitempty" gorm:"type:text"`
	RefusalFallback   *string `json:"refusal_fallback,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

// ValidSeverity reports whether severity is one of the four levels.
func ValidSeverity(severity string) bool {
	switch severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// SeverityRank orders severities for report rendering, CRITICAL first.
// Unknown severities sort last.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}
