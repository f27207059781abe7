package service

import (
	"context"
	"errors"
	"time"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeaseService is the lease record store: the current-state projection per
// analyzed document. Creation flows through the ingest service; this service
// owns reads, service-identity updates and soft deletion.
type LeaseService struct {
	db     *gorm.DB
	policy AccessPolicy
	logger *zap.Logger
}

func NewLeaseService(db *gorm.DB, logger *zap.Logger) *LeaseService {
	return &LeaseService{db: db, logger: logger}
}

// ValidateLease checks the score-layer invariants before anything touches the
// database: bounded scores and the risk tier enumeration.
func ValidateLease(lease *model.LeaseRecord) error {
	if lease.ExtractionID == "" {
		return apperr.New(apperr.KindValidation, "extraction_id is required")
	}
	for name, score := range lease.ScoreFields() {
		if score != nil && (*score < 0 || *score > 100) {
			return apperr.New(apperr.KindScoreOutOfRange, "%s must be in [0,100], got %d", name, *score)
		}
	}
	if lease.RiskTier != nil && !model.ValidRiskTier(*lease.RiskTier) {
		return apperr.New(apperr.KindInvalidEnum, "unknown risk_tier %q", *lease.RiskTier)
	}
	return nil
}

// createTx inserts the full lease projection inside an existing transaction.
// Duplicate extraction IDs surface as DuplicateExternalKey.
func (s *LeaseService) createTx(tx *gorm.DB, lease *model.LeaseRecord) error {
	if err := ValidateLease(lease); err != nil {
		return err
	}
	if err := tx.Create(lease).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Wrap(err, apperr.KindDuplicateExternalKey,
				"extraction_id %s already exists", lease.ExtractionID)
		}
		return classifyPgError(err, "create lease")
	}
	return nil
}

// Get fetches one lease by storage ID. Soft-deleted records are invisible
// here; admins and the service identity use GetForAudit for those.
func (s *LeaseService) Get(ctx context.Context, id Identity, leaseID uint) (*model.LeaseRecord, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return nil, err
	}
	if !s.policy.CanReadLease(id, &lease) {
		prometheus.RecordAccessDenied("lease")
		return nil, denied("lease record")
	}
	return &lease, nil
}

// GetByExtractionID fetches one lease by its external key.
func (s *LeaseService) GetByExtractionID(ctx context.Context, id Identity, extractionID string) (*model.LeaseRecord, error) {
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).Where("extraction_id = ?", extractionID).First(&lease).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "extraction %s not found", extractionID)
		}
		return nil, err
	}
	if !s.policy.CanReadLease(id, &lease) {
		prometheus.RecordAccessDenied("lease")
		return nil, denied("lease record")
	}
	return &lease, nil
}

// GetForAudit fetches a lease regardless of soft deletion, for administrative
// audit tooling only.
func (s *LeaseService) GetForAudit(ctx context.Context, id Identity, leaseID uint) (*model.LeaseRecord, error) {
	if !s.policy.CanAdminister(id) {
		prometheus.RecordAccessDenied("lease")
		return nil, denied("lease audit record")
	}
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).Unscoped().First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return nil, err
	}
	return &lease, nil
}

// ListForAccount returns the caller's visible, non-deleted leases, newest
// first. List queries scope silently instead of erroring.
func (s *LeaseService) ListForAccount(ctx context.Context, id Identity, accountID uint) ([]model.LeaseRecord, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	q = s.policy.ScopeLeases(id, q)

	var leases []model.LeaseRecord
	if err := q.Order("created_at DESC").Find(&leases).Error; err != nil {
		return nil, err
	}
	return leases, nil
}

// Update applies a partial patch to a lease. Only the pipeline/service
// identity may mutate a record after creation; the submitting tenant cannot.
func (s *LeaseService) Update(ctx context.Context, id Identity, leaseID uint, patch map[string]interface{}) (*model.LeaseRecord, error) {
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return nil, err
	}
	if !s.policy.CanMutateLease(id, &lease) {
		prometheus.RecordAccessDenied("lease")
		return nil, denied("lease update")
	}

	// The external key is immutable; strip it from any patch rather than
	// letting a caller rewrite identity.
	delete(patch, "extraction_id")
	delete(patch, "id")

	if tier, ok := patch["risk_tier"].(string); ok && !model.ValidRiskTier(tier) {
		return nil, apperr.New(apperr.KindInvalidEnum, "unknown risk_tier %q", tier)
	}

	// Score keys arrive under either the wire name or the column name.
	// Validate bounds on both spellings and rewrite to the canonical column
	// so the UPDATE always targets real columns.
	canonical := make(map[string]interface{}, len(patch))
	for name, raw := range patch {
		col, isScore := model.ScoreColumn(name)
		if !isScore {
			canonical[name] = raw
			continue
		}
		if score, numeric := scoreValue(raw); numeric && (score < 0 || score > 100) {
			return nil, apperr.New(apperr.KindScoreOutOfRange,
				"%s must be in [0,100], got %v", name, score)
		}
		canonical[col] = raw
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := s.db.WithContext(ctx).Model(&lease).Updates(canonical).Error; err != nil {
		return nil, classifyPgError(err, "update lease")
	}

	if err := s.db.WithContext(ctx).First(&lease, leaseID).Error; err != nil {
		return nil, err
	}
	return &lease, nil
}

// scoreValue normalizes a patch value to a comparable number. JSON decoding
// yields float64; direct callers may pass ints.
func scoreValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// SoftDelete stamps the deletion timestamp. The record disappears from
// listings and from every future aggregate recompute but stays fetchable
// through GetForAudit. The incremental benchmark path does not retract
// already-counted samples; Recompute exists for that.
func (s *LeaseService) SoftDelete(ctx context.Context, id Identity, leaseID uint) error {
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return err
	}
	if !s.policy.CanSoftDelete(id, &lease) {
		prometheus.RecordAccessDenied("lease")
		return denied("lease delete")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := s.db.WithContext(ctx).Delete(&lease).Error; err != nil {
		return classifyPgError(err, "soft delete lease")
	}
	s.logger.Info("lease soft-deleted",
		zap.Uint("lease_id", leaseID),
		zap.String("extraction_id", lease.ExtractionID))
	return nil
}

// Purge permanently removes a lease and, by cascade, its audit entries and
// flags. This is the administrative escape hatch for legal erasure requests;
// everything else uses SoftDelete.
func (s *LeaseService) Purge(ctx context.Context, id Identity, leaseID uint) error {
	if !s.policy.CanAdminister(id) {
		prometheus.RecordAccessDenied("lease")
		return denied("lease purge")
	}
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).Unscoped().First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := s.db.WithContext(ctx).Unscoped().Delete(&lease).Error; err != nil {
		return classifyPgError(err, "purge lease")
	}
	s.logger.Warn("lease hard-purged",
		zap.Uint("lease_id", leaseID),
		zap.String("extraction_id", lease.ExtractionID))
	return nil
}
