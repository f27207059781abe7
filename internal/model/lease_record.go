package model

import (
	"time"

	"gorm.io/gorm"
)

// Risk tiers summarizing a lease's overall risk score.
const (
	TierGreen  = "GREEN"
	TierYellow = "YELLOW"
	TierOrange = "ORANGE"
	TierRed    = "RED"
)

// LeaseRecord is the denormalized current-state projection for one analyzed
// lease document. The extraction pipeline writes all four layers in a single
// ingest; this service never computes raw or derived values itself.
//
// Every raw and computed attribute is nullable: absence of a field in the
// source document is a meaningful state, not an error.
type LeaseRecord struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// ExtractionID is the externally generated, globally unique key for this
	// analysis run. Immutable after creation.
	ExtractionID string `json:"extraction_id" gorm:"type:varchar(64);uniqueIndex;not null"`

	// AccountID references the submitting account. Cleared (never reassigned)
	// if the account goes away.
	AccountID *uint `json:"account_id,omitempty" gorm:"index"`

	// Document metadata
	DocumentFilename string `json:"document_filename" gorm:"type:varchar(255)"`
	DocumentSHA256   string `json:"document_sha256" gorm:"type:varchar(64)"`
	PipelineVersion  string `json:"pipeline_version" gorm:"type:varchar(20)"`

	// ── Raw layer: parties and property ──
	TenantName         *string  `json:"tenant_full_name,omitempty" gorm:"type:varchar(255)"`
	LandlordName       *string  `json:"landlord_full_name,omitempty" gorm:"type:varchar(255)"`
	LandlordEntityType *string  `json:"landlord_entity_type,omitempty" gorm:"type:varchar(50)"`
	PropertyAddress    *string  `json:"property_address,omitempty" gorm:"type:varchar(255)"`
	PropertyCity       *string  `json:"property_city,omitempty" gorm:"type:varchar(100)"`
	PropertyState      *string  `json:"property_state,omitempty" gorm:"type:varchar(2)"`
	PropertyZip        *string  `json:"property_zip,omitempty" gorm:"type:varchar(10);index"`
	UnitNumber         *string  `json:"unit_number,omitempty" gorm:"type:varchar(50)"`
	PropertyType       *string  `json:"property_type,omitempty" gorm:"type:varchar(30)"`
	Bedrooms           *int     `json:"bedrooms,omitempty"`
	SquareFootage      *float64 `json:"square_footage,omitempty" gorm:"type:numeric(10,2)"`
	Furnished          *bool    `json:"furnished,omitempty"`

	// ── Raw layer: financial terms ──
	MonthlyRent          *float64 `json:"monthly_rent,omitempty" gorm:"type:numeric(10,2)"`
	NumberOfTenants      *int     `json:"number_of_tenants,omitempty"`
	SecurityDeposit      *float64 `json:"security_deposit,omitempty" gorm:"type:numeric(10,2)"`
	LastMonthDeposit     *float64 `json:"last_month_deposit,omitempty" gorm:"type:numeric(10,2)"`
	PetDeposit           *float64 `json:"pet_deposit,omitempty" gorm:"type:numeric(10,2)"`
	OtherFeesMonthly     *float64 `json:"other_fees_monthly,omitempty" gorm:"type:numeric(10,2)"`
	LateFeeStructure     *string  `json:"late_fee_structure,omitempty" gorm:"type:text"`
	LateFeeInitialAmount *float64 `json:"late_fee_initial_amount,omitempty" gorm:"type:numeric(10,2)"`
	LateFeeInitialPct    *float64 `json:"late_fee_initial_pct,omitempty" gorm:"type:numeric(6,3)"`
	LateFeeGraceDays     *int     `json:"late_fee_grace_days,omitempty"`
	LateFeeEscalates     *bool    `json:"late_fee_escalates,omitempty"`
	NSFFee               *float64 `json:"nsf_fee,omitempty" gorm:"type:numeric(10,2)"`
	PoliceViolationFee   *float64 `json:"police_violation_fee,omitempty" gorm:"type:numeric(10,2)"`

	// ── Raw layer: term and renewal ──
	LeaseType                  *string    `json:"lease_type,omitempty" gorm:"type:varchar(20)"`
	LeaseStartDate             *time.Time `json:"lease_start_date,omitempty" gorm:"type:date"`
	LeaseEndDate               *time.Time `json:"lease_end_date,omitempty" gorm:"type:date"`
	RentDueDay                 *int       `json:"rent_due_day,omitempty"`
	RenewalNoticeDays          *int       `json:"renewal_notice_days_required,omitempty"`
	RenewalDeadlineExplicit    *time.Time `json:"renewal_deadline_explicit,omitempty" gorm:"type:date"`
	AutoRenewal                *bool      `json:"auto_renewal,omitempty"`
	HoldoverRentAmount         *float64   `json:"holdover_rent_amount,omitempty" gorm:"type:numeric(10,2)"`
	EarlyTerminationFee        *float64   `json:"early_termination_fee,omitempty" gorm:"type:numeric(10,2)"`
	EarlyTerminationNoticeDays *int       `json:"early_termination_notice_days,omitempty"`
	LeaseSignedDate            *time.Time `json:"lease_signed_date,omitempty" gorm:"type:date"`
	LeaseDocumentPages         *int       `json:"lease_document_pages,omitempty"`

	// ── Raw layer: entry, utilities, restrictions, liability ──
	EntryNoticeHours             *int     `json:"landlord_entry_notice_hours,omitempty"`
	EntryClauseVerbatim          *string  `json:"landlord_entry_clause_verbatim,omitempty" gorm:"type:text"`
	UtilitiesTenantResponsible   *string  `json:"utilities_tenant_responsible,omitempty" gorm:"type:jsonb"`
	UtilitiesLandlordResponsible *string  `json:"utilities_landlord_responsible,omitempty" gorm:"type:jsonb"`
	AllUtilitiesTenant           *bool    `json:"all_utilities_tenant,omitempty"`
	TenantMaintenanceObligations *string  `json:"tenant_maintenance_obligations,omitempty" gorm:"type:text"`
	RepairDeductionMultiplier    *float64 `json:"repair_deduction_multiplier,omitempty" gorm:"type:numeric(5,2)"`
	PetsAllowed                  *bool    `json:"pets_allowed,omitempty"`
	SublettingAllowed            *bool    `json:"subletting_allowed,omitempty"`
	SmokingProhibited            *bool    `json:"smoking_prohibited,omitempty"`
	GuestPolicy                  *string  `json:"guest_policy,omitempty" gorm:"type:text"`
	JointSeveralLiability        *bool    `json:"joint_several_liability,omitempty"`
	ParentalGuaranteeRequired    *bool    `json:"parental_guarantee_required,omitempty"`
	MandatoryArbitration         *bool    `json:"mandatory_arbitration,omitempty"`
	AttorneysFeesClause          *bool    `json:"attorneys_fees_clause,omitempty"`

	// ── Computed layer: derived by the pipeline, stored verbatim ──
	ComputedEffectiveMonthlyCost     *float64   `json:"computed_effective_monthly_cost,omitempty" gorm:"type:numeric(10,2)"`
	ComputedTotalUpfrontCost         *float64   `json:"computed_total_upfront_cost,omitempty" gorm:"type:numeric(10,2)"`
	ComputedAnnualizedRent           *float64   `json:"computed_annualized_rent,omitempty" gorm:"type:numeric(12,2)"`
	ComputedRentPerTenant            *float64   `json:"computed_rent_per_tenant,omitempty" gorm:"type:numeric(10,2)"`
	ComputedDepositPerTenant         *float64   `json:"computed_deposit_per_tenant,omitempty" gorm:"type:numeric(10,2)"`
	ComputedUpfrontPerTenant         *float64   `json:"computed_upfront_per_tenant,omitempty" gorm:"type:numeric(10,2)"`
	ComputedLeaseTermDays            *int       `json:"computed_lease_term_days,omitempty"`
	ComputedLeaseTermMonths          *int       `json:"computed_lease_term_months,omitempty"`
	ComputedTotalLiabilityTerm       *float64   `json:"computed_total_liability_term,omitempty" gorm:"type:numeric(12,2)"`
	ComputedDaysUntilLeaseEnd        *int       `json:"computed_days_until_lease_end,omitempty"`
	ComputedRenewalDeadlineDate      *time.Time `json:"computed_renewal_deadline_date,omitempty" gorm:"type:date"`
	ComputedDaysUntilRenewalDeadline *int       `json:"computed_days_until_renewal_deadline,omitempty"`
	ComputedCostPerSqftMonthly       *float64   `json:"computed_cost_per_sqft_monthly,omitempty" gorm:"type:numeric(10,4)"`
	ComputedDepositAsMonthsRent      *float64   `json:"computed_deposit_as_months_rent,omitempty" gorm:"type:numeric(6,3)"`
	ComputedLateFeeAsPctRent         *float64   `json:"computed_late_fee_as_pct_rent,omitempty" gorm:"type:numeric(6,4)"`
	ComputedHoldoverRentIncrease     *float64   `json:"computed_holdover_rent_increase,omitempty" gorm:"type:numeric(10,2)"`
	ComputedHoldoverRentIncreasePct  *float64   `json:"computed_holdover_rent_increase_pct,omitempty" gorm:"type:numeric(6,4)"`

	// ── Score layer: 0-100 bounded scores from the reasoning engine ──
	OverallRiskScore     *int    `json:"overall_lease_risk_score,omitempty"`
	RenewalRiskScore     *int    `json:"renewal_risk_score,omitempty"`
	FinancialBurdenScore *int    `json:"financial_burden_score,omitempty"`
	AccessRiskScore      *int    `json:"landlord_access_risk_score,omitempty"`
	TerminationRiskScore *int    `json:"termination_risk_score,omitempty"`
	LiabilityRiskScore   *int    `json:"liability_risk_score,omitempty"`
	RiskTier             *string `json:"risk_tier,omitempty" gorm:"type:varchar(10)"`
	ScoreRationale       *string `json:"score_rationale,omitempty" gorm:"type:text"`
	MarketComparison     *string `json:"lease_compared_to_market,omitempty" gorm:"type:text"`

	// ZipPercentile is where this lease's rent falls inside its ZIP benchmark
	// population, stamped at ingest.
	ZipPercentile *int `json:"zip_percentile,omitempty"`

	// ── Quality metadata ──
	FieldsExtracted            int     `json:"fields_extracted" gorm:"not null;default:0"`
	FieldsBelowConfidenceFloor int     `json:"fields_below_confidence_floor" gorm:"not null;default:0"`
	RequiresHumanReview        bool    `json:"requires_human_review" gorm:"not null;default:false"`
	HumanReviewReasons         *string `json:"human_review_reasons,omitempty" gorm:"type:jsonb"`
	NonstandardFormat          bool    `json:"nonstandard_format" gorm:"not null;default:false"`
	NonstandardIssues          *string `json:"nonstandard_issues,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Fields []ExtractionField `json:"fields,omitempty" gorm:"foreignKey:LeaseRecordID;constraint:OnDelete:CASCADE"`
	Flags  []RiskFlag        `json:"flags,omitempty" gorm:"foreignKey:LeaseRecordID;constraint:OnDelete:CASCADE"`
}

// ValidRiskTier reports whether tier is one of the four enumerated tiers.
func ValidRiskTier(tier string) bool {
	switch tier {
	case TierGreen, TierYellow, TierOrange, TierRed:
		return true
	}
	return false
}

// ScoreFields returns each bounded sub-score with its wire name, for
// validation before persistence.
func (l *LeaseRecord) ScoreFields() map[string]*int {
	return map[string]*int{
		"overall_lease_risk_score":   l.OverallRiskScore,
		"renewal_risk_score":         l.RenewalRiskScore,
		"financial_burden_score":     l.FinancialBurdenScore,
		"landlord_access_risk_score": l.AccessRiskScore,
		"termination_risk_score":     l.TerminationRiskScore,
		"liability_risk_score":       l.LiabilityRiskScore,
	}
}

// scoreColumns resolves both spellings of each bounded score, the wire name
// and the database column, to the canonical column name.
var scoreColumns = map[string]string{
	"overall_lease_risk_score":   "overall_risk_score",
	"overall_risk_score":         "overall_risk_score",
	"renewal_risk_score":         "renewal_risk_score",
	"financial_burden_score":     "financial_burden_score",
	"landlord_access_risk_score": "access_risk_score",
	"access_risk_score":          "access_risk_score",
	"termination_risk_score":     "termination_risk_score",
	"liability_risk_score":       "liability_risk_score",
}

// ScoreColumn maps a patch key to the score column it targets. ok is false
// for keys that are not bounded scores.
func ScoreColumn(name string) (string, bool) {
	col, ok := scoreColumns[name]
	return col, ok
}

// Benchmarkable reports whether this lease qualifies for the ZIP benchmark:
// partial records without a ZIP or a rent would skew medians and are excluded.
func (l *LeaseRecord) Benchmarkable() bool {
	return l.PropertyZip != nil && *l.PropertyZip != "" && l.MonthlyRent != nil
}
