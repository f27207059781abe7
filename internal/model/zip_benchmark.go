package model

import (
	"time"
)

// ZipBenchmark is the rolling market summary for one ZIP code, maintained
// incrementally as qualifying leases arrive. A row is created on the first
// qualifying lease for a ZIP and never deleted; a ZIP whose samples have all
// been soft-deleted keeps its historical aggregate until an explicit
// administrative recompute.
type ZipBenchmark struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	ZipCode string `json:"zip_code" gorm:"type:varchar(10);uniqueIndex;not null"`

	// SampleSize is monotonically non-decreasing on the incremental path; only
	// an administrative recompute may shrink it.
	SampleSize int `json:"sample_size" gorm:"not null;default:0"`

	// MedianRent covers the whole qualifying population regardless of
	// bedroom count.
	MedianRent *float64 `json:"median_rent,omitempty" gorm:"type:numeric(10,2)"`

	// Median rent by bedroom count.
	MedianRentStudio *float64 `json:"median_rent_studio,omitempty" gorm:"type:numeric(10,2)"`
	MedianRent1BR    *float64 `json:"median_rent_1br,omitempty" gorm:"type:numeric(10,2)"`
	MedianRent2BR    *float64 `json:"median_rent_2br,omitempty" gorm:"type:numeric(10,2)"`
	MedianRent3BR    *float64 `json:"median_rent_3br,omitempty" gorm:"type:numeric(10,2)"`
	MedianRent4Plus  *float64 `json:"median_rent_4plus,omitempty" gorm:"type:numeric(10,2)"`

	// Rent distribution across all bedroom counts.
	RentP25 *float64 `json:"rent_p25,omitempty" gorm:"type:numeric(10,2)"`
	RentP75 *float64 `json:"rent_p75,omitempty" gorm:"type:numeric(10,2)"`

	MedianCostPerSqft       *float64 `json:"median_cost_per_sqft,omitempty" gorm:"type:numeric(10,4)"`
	MedianDepositRatio      *float64 `json:"median_deposit_ratio,omitempty" gorm:"type:numeric(6,3)"`
	MedianLateFeePct        *float64 `json:"median_late_fee_pct,omitempty" gorm:"type:numeric(6,3)"`
	MedianRenewalNoticeDays *float64 `json:"median_renewal_notice_days,omitempty" gorm:"type:numeric(6,1)"`
	MedianEntryNoticeHours  *float64 `json:"median_entry_notice_hours,omitempty" gorm:"type:numeric(6,1)"`

	// Clause prevalence as percentages in [0,100] of the sampled population.
	PctAutoRenewal *float64 `json:"pct_auto_renewal,omitempty" gorm:"type:numeric(5,2)"`
	PctPetsAllowed *float64 `json:"pct_pets_allowed,omitempty" gorm:"type:numeric(5,2)"`
	PctSubletting  *float64 `json:"pct_subletting,omitempty" gorm:"type:numeric(5,2)"`
	PctFurnished   *float64 `json:"pct_furnished,omitempty" gorm:"type:numeric(5,2)"`

	LastLeaseAddedAt *time.Time `json:"last_lease_added_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
