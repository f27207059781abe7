package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditService is the extraction audit store: an append-mostly log of
// per-field extraction attempts. Nothing here mutates an existing entry; a
// re-extraction or a human override always appends a new row, so the full
// history of every field survives for review.
type AuditService struct {
	db     *gorm.DB
	policy AccessPolicy
	logger *zap.Logger
}

func NewAuditService(db *gorm.DB, logger *zap.Logger) *AuditService {
	return &AuditService{db: db, logger: logger}
}

// RecordInput carries one field extraction result from the pipeline.
type RecordInput struct {
	FieldName   string   `json:"field_name"`
	RawValue    *string  `json:"raw_value"`
	ParsedValue *string  `json:"parsed_value"`
	Confidence  *float64 `json:"confidence"`
	Source      string   `json:"source"`
	Citation    *string  `json:"citation"`
	NullReason  *string  `json:"null_reason"`
}

// ValidateRecordInput enforces the audit-entry invariants before persistence.
func ValidateRecordInput(in *RecordInput) error {
	if in.FieldName == "" {
		return apperr.New(apperr.KindValidation, "field_name is required")
	}
	if !model.ValidConfidence(in.Confidence) {
		return apperr.New(apperr.KindInvalidConfidence,
			"confidence for %s must be in [0,1], got %v", in.FieldName, *in.Confidence)
	}
	if in.Source == "" {
		in.Source = model.SourceModel
	}
	if !model.ValidSource(in.Source) {
		return apperr.New(apperr.KindInvalidEnum, "unknown extraction source %q", in.Source)
	}
	return nil
}

// recordTx appends one audit entry inside an existing transaction. Used by
// the ingest flow, which writes one entry per extracted field.
func (s *AuditService) recordTx(tx *gorm.DB, leaseID uint, in *RecordInput) (*model.ExtractionField, error) {
	if err := ValidateRecordInput(in); err != nil {
		return nil, err
	}
	entry := &model.ExtractionField{
		LeaseRecordID: leaseID,
		FieldName:     in.FieldName,
		RawValue:      in.RawValue,
		ParsedValue:   in.ParsedValue,
		Confidence:    in.Confidence,
		Source:        in.Source,
		Citation:      in.Citation,
		NullReason:    in.NullReason,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, classifyPgError(err, "record extraction field")
	}
	return entry, nil
}

// Record appends one audit entry for a lease the caller may mutate.
func (s *AuditService) Record(ctx context.Context, id Identity, leaseID uint, in *RecordInput) (*model.ExtractionField, error) {
	prometheus.RecordAuditOperation("record")

	lease, err := s.loadParent(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanMutateLease(id, lease) {
		prometheus.RecordAccessDenied("extraction_field")
		return nil, denied("extraction audit log")
	}

	var entry *model.ExtractionField
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.recordTx(tx, leaseID, in)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Override appends a manual correction for an existing entry. The prior entry
// is retained unchanged; the new entry carries the actor, the reason and a
// supersedes link. An empty reason is rejected; a correction with no
// justification is useless in an audit trail.
func (s *AuditService) Override(ctx context.Context, id Identity, entryID uint, newValue string, reason string) (*model.ExtractionField, error) {
	prometheus.RecordAuditOperation("override")

	if strings.TrimSpace(reason) == "" {
		return nil, apperr.New(apperr.KindMissingJustification, "override requires a non-empty reason")
	}

	var prior model.ExtractionField
	if err := s.db.WithContext(ctx).First(&prior, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "audit entry %d not found", entryID)
		}
		return nil, err
	}

	lease, err := s.loadParent(ctx, prior.LeaseRecordID)
	if err != nil {
		return nil, err
	}
	// Overrides come from review tooling: admins and the service identity.
	if !s.policy.CanAdminister(id) {
		prometheus.RecordAccessDenied("extraction_field")
		return nil, denied("extraction override")
	}

	now := time.Now().UTC()
	actor := id.AccountID
	entry := &model.ExtractionField{
		LeaseRecordID:  prior.LeaseRecordID,
		FieldName:      prior.FieldName,
		ParsedValue:    &newValue,
		Source:         model.SourceManual,
		HumanOverride:  true,
		OverriddenBy:   &actor,
		OverriddenAt:   &now,
		OverrideReason: &reason,
		SupersedesID:   &prior.ID,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, classifyPgError(err, "record override")
	}

	s.logger.Info("extraction field overridden",
		zap.Uint("lease_id", lease.ID),
		zap.String("field", prior.FieldName),
		zap.Uint("prior_entry", prior.ID),
		zap.Uint("actor", actor))
	return entry, nil
}

// FieldHistory returns every audit entry for one (lease, field) in creation
// order: originals first, overrides after.
func (s *AuditService) FieldHistory(ctx context.Context, id Identity, leaseID uint, fieldName string) ([]model.ExtractionField, error) {
	prometheus.RecordAuditOperation("history")

	lease, err := s.loadParent(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanReadLease(id, lease) {
		prometheus.RecordAccessDenied("extraction_field")
		return nil, denied("extraction history")
	}

	var entries []model.ExtractionField
	err = s.db.WithContext(ctx).
		Where("lease_record_id = ? AND field_name = ?", leaseID, fieldName).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListLowConfidence returns entries below a confidence threshold across the
// caller's visible leases, the feed for human-review queues, served off the
// confidence index. Admins and the service identity see every account's
// entries; regular callers are silently scoped to their own.
func (s *AuditService) ListLowConfidence(ctx context.Context, id Identity, threshold float64) ([]model.ExtractionField, error) {
	prometheus.RecordAuditOperation("low_confidence")
	defer prometheus.TrackDBOperation("query")(time.Now())

	if threshold < 0 || threshold > 1 {
		return nil, apperr.New(apperr.KindInvalidConfidence,
			"threshold must be in [0,1], got %v", threshold)
	}

	q := s.db.WithContext(ctx).Model(&model.ExtractionField{}).
		Joins("JOIN lease_records ON lease_records.id = extraction_fields.lease_record_id").
		Where("lease_records.deleted_at IS NULL").
		Where("extraction_fields.confidence IS NOT NULL AND extraction_fields.confidence < ?", threshold)
	if !id.Service && !id.Admin() {
		q = q.Where("lease_records.account_id = ?", id.AccountID)
	}

	var entries []model.ExtractionField
	if err := q.Order("extraction_fields.confidence ASC, extraction_fields.id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// loadParent fetches the owning lease for child-row policy checks.
func (s *AuditService) loadParent(ctx context.Context, leaseID uint) (*model.LeaseRecord, error) {
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return nil, err
	}
	return &lease, nil
}
