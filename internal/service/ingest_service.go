package service

import (
	"context"
	"time"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/pkg/config"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IngestService runs the one write path that persists a finished lease
// analysis: the lease row, its per-field audit entries, its risk flags, the
// account usage bump and the ZIP benchmark update all land in a single
// transaction, or none of them do.
type IngestService struct {
	db        *gorm.DB
	leases    *LeaseService
	audit     *AuditService
	flags     *FlagService
	accounts  *AccountService
	benchmark *BenchmarkService
	cfg       config.BenchmarkConfig
	policy    AccessPolicy
	logger    *zap.Logger
}

func NewIngestService(
	db *gorm.DB,
	leases *LeaseService,
	audit *AuditService,
	flags *FlagService,
	accounts *AccountService,
	benchmark *BenchmarkService,
	cfg *config.Config,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		db:        db,
		leases:    leases,
		audit:     audit,
		flags:     flags,
		accounts:  accounts,
		benchmark: benchmark,
		cfg:       cfg.Benchmark,
		logger:    logger,
	}
}

// IngestInput is the full payload the extraction pipeline posts per document.
type IngestInput struct {
	Lease  model.LeaseRecord `json:"lease"`
	Fields []RecordInput     `json:"fields"`
	Flags  []FlagInput       `json:"flags"`
}

// Ingest persists one analysis atomically. Lock timeouts and serialization
// conflicts on the benchmark row are retried a bounded number of times with
// doubling backoff; any other mid-transaction failure aborts the whole write.
func (s *IngestService) Ingest(ctx context.Context, id Identity, in *IngestInput) (*model.LeaseRecord, error) {
	if !s.policy.CanIngest(id) {
		prometheus.RecordAccessDenied("ingest")
		return nil, denied("ingest")
	}
	if err := ValidateLease(&in.Lease); err != nil {
		return nil, err
	}
	for i := range in.Fields {
		if err := ValidateRecordInput(&in.Fields[i]); err != nil {
			return nil, err
		}
	}
	for i := range in.Flags {
		if err := ValidateFlagInput(&in.Flags[i]); err != nil {
			return nil, err
		}
	}
	s.stampQuality(in)

	var lease *model.LeaseRecord
	var err error
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		lease, err = s.ingestOnce(ctx, in)
		if err == nil || !apperr.Retryable(err) || attempt >= s.cfg.RetryAttempts {
			break
		}
		s.logger.Warn("ingest retrying after benchmark contention",
			zap.String("extraction_id", in.Lease.ExtractionID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		prometheus.RecordIngest("error")
		return nil, err
	}

	if lease.PropertyZip != nil {
		s.benchmark.InvalidateCache(ctx, *lease.PropertyZip)
	}
	prometheus.RecordIngest("ok")
	s.logger.Info("lease analysis ingested",
		zap.Uint("lease_id", lease.ID),
		zap.String("extraction_id", lease.ExtractionID),
		zap.Int("fields", len(in.Fields)),
		zap.Int("flags", len(in.Flags)))
	return lease, nil
}

func (s *IngestService) ingestOnce(ctx context.Context, in *IngestInput) (*model.LeaseRecord, error) {
	lease := in.Lease
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.leases.createTx(tx, &lease); err != nil {
			return err
		}
		for i := range in.Fields {
			if _, err := s.audit.recordTx(tx, lease.ID, &in.Fields[i]); err != nil {
				return err
			}
		}
		if _, err := s.flags.attachAllTx(tx, lease.ID, in.Flags); err != nil {
			return err
		}
		if err := s.benchmark.ApplyLease(tx, &lease); err != nil {
			return err
		}
		if lease.Benchmarkable() {
			pct, err := s.benchmark.RentPercentile(tx, *lease.PropertyZip, *lease.MonthlyRent)
			if err != nil {
				return err
			}
			if err := tx.Model(&lease).Update("zip_percentile", pct).Error; err != nil {
				return err
			}
			lease.ZipPercentile = &pct
		}
		if err := s.accounts.incrementUsageTx(tx, lease.AccountID, time.Now()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Wrap(err, apperr.KindPartialWriteAborted,
				"ingest aborted for %s, no partial state persisted", in.Lease.ExtractionID)
		}
		return nil, err
	}
	return &lease, nil
}

// stampQuality derives the quality counters from the audit entries so the
// lease row agrees with its own history.
func (s *IngestService) stampQuality(in *IngestInput) {
	in.Lease.FieldsExtracted = len(in.Fields)
	low := 0
	for i := range in.Fields {
		c := in.Fields[i].Confidence
		if c != nil && *c < s.cfg.ConfidenceFloor {
			low++
		}
	}
	in.Lease.FieldsBelowConfidenceFloor = low
	if low > 0 {
		in.Lease.RequiresHumanReview = true
	}
}
