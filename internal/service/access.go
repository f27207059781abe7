package service

import (
	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"

	"gorm.io/gorm"
)

// Identity describes the caller of a request: either an account or the
// extraction pipeline's machine identity.
type Identity struct {
	AccountID uint
	Role      string
	Tier      string
	// Service marks the pipeline/service identity. It ingests and mutates
	// lease records; regular accounts never can after creation.
	Service bool
}

// Admin reports whether the caller holds the admin tier, which bypasses
// ownership checks for reads.
func (id Identity) Admin() bool {
	return id.Tier == model.TierAdmin
}

// AccessPolicy is the tenant-isolation policy evaluated on every read and
// write. It is pure: decisions depend only on the identity and the record,
// so the policy is testable with no storage behind it.
//
// ExtractionField and RiskFlag rows inherit the ownership of their parent
// lease, so every child check goes through the lease policy.
type AccessPolicy struct{}

// CanReadLease allows the owner, the service identity and admin readers.
func (AccessPolicy) CanReadLease(id Identity, lease *model.LeaseRecord) bool {
	if id.Service || id.Admin() {
		return true
	}
	return lease.AccountID != nil && *lease.AccountID == id.AccountID
}

// CanMutateLease allows only the pipeline/service identity. Submitting
// tenants cannot touch a record after creation; admins read but do not write.
func (AccessPolicy) CanMutateLease(id Identity, lease *model.LeaseRecord) bool {
	return id.Service
}

// CanIngest allows only the pipeline/service identity to write new analyses.
func (AccessPolicy) CanIngest(id Identity) bool {
	return id.Service
}

// CanSoftDelete allows the service identity and admins (administrative
// tooling), plus the owning account removing its own submission.
func (AccessPolicy) CanSoftDelete(id Identity, lease *model.LeaseRecord) bool {
	if id.Service || id.Admin() {
		return true
	}
	return lease.AccountID != nil && *lease.AccountID == id.AccountID
}

// CanReadBenchmark always allows: ZIP benchmarks are intentionally public
// aggregate data with no ownership.
func (AccessPolicy) CanReadBenchmark(id Identity) bool {
	return true
}

// CanAdminister allows administrative operations: benchmark recompute,
// schema ledger appends, account management, audit fetches of soft-deleted
// records.
func (AccessPolicy) CanAdminister(id Identity) bool {
	return id.Service || id.Admin()
}

// ScopeLeases narrows a lease query to the caller's visible set. List and
// search queries silently scope rather than erroring; direct reads of a
// specific record use CanReadLease and fail loudly instead.
func (AccessPolicy) ScopeLeases(id Identity, q *gorm.DB) *gorm.DB {
	if id.Service || id.Admin() {
		return q
	}
	return q.Where("account_id = ?", id.AccountID)
}

// denied builds the uniform policy-violation error.
func denied(resource string) error {
	return apperr.New(apperr.KindAccessDenied, "access denied to %s", resource)
}
