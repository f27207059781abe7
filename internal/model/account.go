package model

import (
	"time"
)

// Account roles and plan tiers. Accounts are created by the external auth
// collaborator; this service only stores identity, tier and usage counters.
const (
	RoleTenant   = "tenant"
	RoleLandlord = "landlord"
	RoleOperator = "operator"

	TierFree     = "free"
	TierPaid     = "paid"
	TierLandlord = "landlord"
	TierAdmin    = "admin"
)

// Account represents a tenant/landlord/operator account stored in the database.
// Accounts are never hard-deleted; they are deactivated instead so lease
// ownership history stays auditable.
type Account struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Email          string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Role           string     `json:"role" gorm:"type:varchar(20);not null;default:tenant"`
	Tier           string     `json:"tier" gorm:"type:varchar(20);not null;default:free"`
	AnalysesUsed   int        `json:"analyses_used" gorm:"not null;default:0"`
	AnalysesLimit  int        `json:"analyses_limit" gorm:"not null;default:3"`
	Active         bool       `json:"active" gorm:"not null;default:true"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	switch role {
	case RoleTenant, RoleLandlord, RoleOperator:
		return true
	}
	return false
}

// ValidTier reports whether tier is one of the known plan tiers.
func ValidTier(tier string) bool {
	switch tier {
	case TierFree, TierPaid, TierLandlord, TierAdmin:
		return true
	}
	return false
}
