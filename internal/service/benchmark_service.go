package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/pkg/cache"
	"github.com/thomas-denton/lease-intelligence/pkg/config"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Postgres error codes the aggregator's retry loop cares about.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

const benchmarkCacheKeyPrefix = "zipbench:"

// BenchmarkService maintains the per-ZIP rolling market summaries.
//
// Writers to the same ZIP serialize on a Postgres advisory lock held for the
// duration of the read-recompute-write cycle; writers to distinct ZIPs do not
// contend. Statistics are recomputed exactly over the current non-deleted
// population rather than maintained as streaming approximations.
type BenchmarkService struct {
	db       *gorm.DB
	kv       cache.KV
	cfg      config.BenchmarkConfig
	cacheTTL time.Duration
	policy   AccessPolicy
	logger   *zap.Logger
}

// NewBenchmarkService creates the benchmark aggregator. kv may be nil to
// disable read caching.
func NewBenchmarkService(db *gorm.DB, kv cache.KV, cfg *config.Config, logger *zap.Logger) *BenchmarkService {
	return &BenchmarkService{
		db:       db,
		kv:       kv,
		cfg:      cfg.Benchmark,
		cacheTTL: cfg.Cache.TTL,
		logger:   logger,
	}
}

// benchRow is the per-lease slice of columns the recompute reads.
type benchRow struct {
	MonthlyRent          float64
	Bedrooms             *int
	SquareFootage        *float64
	SecurityDeposit      *float64
	LateFeeInitialAmount *float64
	LateFeeInitialPct    *float64
	RenewalNoticeDays    *int
	EntryNoticeHours     *int
	AutoRenewal          *bool
	PetsAllowed          *bool
	SublettingAllowed    *bool
	Furnished            *bool
}

// Get returns the benchmark row for a ZIP. Benchmarks are public aggregate
// data: no ownership check applies. Reads go through the cache when one is
// configured.
func (s *BenchmarkService) Get(ctx context.Context, zip string) (*model.ZipBenchmark, error) {
	if s.kv != nil {
		if raw, err := s.kv.Get(ctx, benchmarkCacheKeyPrefix+zip); err == nil {
			var bench model.ZipBenchmark
			if jsonErr := json.Unmarshal([]byte(raw), &bench); jsonErr == nil {
				return &bench, nil
			}
		}
	}

	var bench model.ZipBenchmark
	if err := s.db.WithContext(ctx).Where("zip_code = ?", zip).First(&bench).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no benchmark for zip %s", zip)
		}
		return nil, err
	}

	if s.kv != nil {
		if raw, err := json.Marshal(&bench); err == nil {
			_ = s.kv.Set(ctx, benchmarkCacheKeyPrefix+zip, string(raw), s.cacheTTL)
		}
	}
	return &bench, nil
}

// ApplyLease upserts and recomputes the benchmark for a freshly inserted
// lease. It must run inside the same transaction as the lease insert so the
// benchmark can never drift from the lease population, and so a failed ingest
// rolls the benchmark back with everything else.
//
// Leases without a ZIP or a rent are skipped entirely: partial data must not
// skew medians.
func (s *BenchmarkService) ApplyLease(tx *gorm.DB, lease *model.LeaseRecord) error {
	if !lease.Benchmarkable() {
		s.logger.Debug("lease not benchmarkable, skipping aggregate update",
			zap.String("extraction_id", lease.ExtractionID))
		return nil
	}
	zip := *lease.PropertyZip

	if err := s.lockZip(tx, zip); err != nil {
		return err
	}

	now := time.Now().UTC()

	var bench model.ZipBenchmark
	err := tx.Where("zip_code = ?", zip).First(&bench).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First qualifying lease for this ZIP seeds the row.
		defer prometheus.TrackBenchmarkRecompute("seed")(time.Now())
		bench = model.ZipBenchmark{ZipCode: zip, SampleSize: 1, LastLeaseAddedAt: &now}
		if err := s.recomputeStats(tx, zip, &bench); err != nil {
			return err
		}
		if err := tx.Create(&bench).Error; err != nil {
			return classifyPgError(err, "seed benchmark")
		}
		prometheus.RecordBenchmarkUpdate("seed")
		prometheus.RecordTrackedZip()
	case err != nil:
		return classifyPgError(err, "load benchmark")
	default:
		defer prometheus.TrackBenchmarkRecompute("incremental")(time.Now())
		// Incremental path: the count only grows. Soft-deleted leases drop out
		// of the statistics below but are not retracted from sample_size; an
		// administrative Recompute rebuilds both from scratch.
		bench.SampleSize++
		bench.LastLeaseAddedAt = &now
		if err := s.recomputeStats(tx, zip, &bench); err != nil {
			return err
		}
		if err := tx.Save(&bench).Error; err != nil {
			return classifyPgError(err, "update benchmark")
		}
		prometheus.RecordBenchmarkUpdate("incremental")
	}
	return nil
}

// Recompute fully rebuilds one ZIP's benchmark from the current non-deleted
// population, including sample_size. This is the administrative escape hatch
// for ZIPs whose incremental stats have drifted from heavy soft-deletion, and
// the one operation allowed to shrink sample_size.
func (s *BenchmarkService) Recompute(ctx context.Context, id Identity, zip string) (*model.ZipBenchmark, error) {
	if !s.policy.CanAdminister(id) {
		prometheus.RecordAccessDenied("benchmark")
		return nil, denied("benchmark recompute")
	}

	defer prometheus.TrackBenchmarkRecompute("recompute")(time.Now())

	var bench model.ZipBenchmark
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockZip(tx, zip); err != nil {
			return err
		}

		if err := tx.Where("zip_code = ?", zip).First(&bench).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "no benchmark for zip %s", zip)
			}
			return classifyPgError(err, "load benchmark")
		}

		var count int64
		if err := tx.Model(&model.LeaseRecord{}).
			Where("property_zip = ? AND monthly_rent IS NOT NULL", zip).
			Count(&count).Error; err != nil {
			return classifyPgError(err, "count population")
		}

		bench.SampleSize = int(count)
		if err := s.recomputeStats(tx, zip, &bench); err != nil {
			return err
		}
		return classifyPgError(tx.Save(&bench).Error, "save benchmark")
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCache(ctx, zip)
	prometheus.RecordBenchmarkUpdate("recompute")
	s.logger.Info("benchmark recomputed",
		zap.String("zip", zip),
		zap.Int("sample_size", bench.SampleSize))
	return &bench, nil
}

// RentPercentile returns where rent falls within the ZIP's current non-deleted
// rent population, for stamping on a lease at ingest.
func (s *BenchmarkService) RentPercentile(tx *gorm.DB, zip string, rent float64) (int, error) {
	var rents []float64
	if err := tx.Model(&model.LeaseRecord{}).
		Where("property_zip = ? AND monthly_rent IS NOT NULL", zip).
		Pluck("monthly_rent", &rents).Error; err != nil {
		return 0, classifyPgError(err, "load rent population")
	}
	return percentileRank(rents, rent), nil
}

// InvalidateCache drops the cached benchmark for a ZIP. Call after the
// owning transaction commits so readers cannot re-cache a stale row.
func (s *BenchmarkService) InvalidateCache(ctx context.Context, zip string) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Del(ctx, benchmarkCacheKeyPrefix+zip); err != nil {
		s.logger.Warn("benchmark cache invalidation failed",
			zap.String("zip", zip), zap.Error(err))
	}
}

// lockZip serializes writers on one ZIP for the remainder of the transaction.
// hashtext keys the advisory lock per ZIP, so distinct ZIPs never contend.
// The wait is bounded by lock_timeout; exceeding it surfaces as LockTimeout.
func (s *BenchmarkService) lockZip(tx *gorm.DB, zip string) error {
	timeoutMs := int(s.cfg.LockTimeout / time.Millisecond)
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}
	// SET LOCAL scopes the timeout to this transaction; the value cannot be a
	// bind parameter.
	if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMs)).Error; err != nil {
		return classifyPgError(err, "set lock timeout")
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", zip).Error; err != nil {
		return classifyPgError(err, "acquire zip lock")
	}
	return nil
}

// recomputeStats fills bench's derived statistics from the current non-deleted
// qualifying population for the ZIP. sample_size is managed by the caller.
func (s *BenchmarkService) recomputeStats(tx *gorm.DB, zip string, bench *model.ZipBenchmark) error {
	var rows []benchRow
	if err := tx.Model(&model.LeaseRecord{}).
		Select("monthly_rent", "bedrooms", "square_footage", "security_deposit",
			"late_fee_initial_amount", "late_fee_initial_pct",
			"renewal_notice_days", "entry_notice_hours",
			"auto_renewal", "pets_allowed", "subletting_allowed", "furnished").
		Where("property_zip = ? AND monthly_rent IS NOT NULL", zip).
		Find(&rows).Error; err != nil {
		return classifyPgError(err, "load population")
	}

	var (
		allRents     []float64
		rentsByBeds  = map[int][]float64{}
		costsPerSqft []float64
		depositRatio []float64
		lateFeePcts  []float64
		noticeDays   []float64
		entryHours   []float64
		autoRenewals []*bool
		pets         []*bool
		subletting   []*bool
		furnished    []*bool
	)

	for _, r := range rows {
		allRents = append(allRents, r.MonthlyRent)

		if r.Bedrooms != nil {
			beds := *r.Bedrooms
			if beds > 4 {
				beds = 4
			}
			rentsByBeds[beds] = append(rentsByBeds[beds], r.MonthlyRent)
		}
		if r.SquareFootage != nil && *r.SquareFootage > 0 {
			costsPerSqft = append(costsPerSqft, r.MonthlyRent / *r.SquareFootage)
		}
		if r.SecurityDeposit != nil && r.MonthlyRent > 0 {
			depositRatio = append(depositRatio, *r.SecurityDeposit/r.MonthlyRent)
		}
		switch {
		case r.LateFeeInitialPct != nil:
			lateFeePcts = append(lateFeePcts, *r.LateFeeInitialPct)
		case r.LateFeeInitialAmount != nil && r.MonthlyRent > 0:
			lateFeePcts = append(lateFeePcts, *r.LateFeeInitialAmount/r.MonthlyRent*100)
		}
		if r.RenewalNoticeDays != nil {
			noticeDays = append(noticeDays, float64(*r.RenewalNoticeDays))
		}
		if r.EntryNoticeHours != nil {
			entryHours = append(entryHours, float64(*r.EntryNoticeHours))
		}
		autoRenewals = append(autoRenewals, r.AutoRenewal)
		pets = append(pets, r.PetsAllowed)
		subletting = append(subletting, r.SublettingAllowed)
		furnished = append(furnished, r.Furnished)
	}

	bench.MedianRent = median(allRents)
	bench.MedianRentStudio = median(rentsByBeds[0])
	bench.MedianRent1BR = median(rentsByBeds[1])
	bench.MedianRent2BR = median(rentsByBeds[2])
	bench.MedianRent3BR = median(rentsByBeds[3])
	bench.MedianRent4Plus = median(rentsByBeds[4])
	bench.RentP25 = quantile(allRents, 0.25)
	bench.RentP75 = quantile(allRents, 0.75)
	bench.MedianCostPerSqft = median(costsPerSqft)
	bench.MedianDepositRatio = median(depositRatio)
	bench.MedianLateFeePct = median(lateFeePcts)
	bench.MedianRenewalNoticeDays = median(noticeDays)
	bench.MedianEntryNoticeHours = median(entryHours)
	bench.PctAutoRenewal = prevalencePct(autoRenewals)
	bench.PctPetsAllowed = prevalencePct(pets)
	bench.PctSubletting = prevalencePct(subletting)
	bench.PctFurnished = prevalencePct(furnished)
	return nil
}

// classifyPgError maps Postgres failures onto the service error taxonomy:
// bounded lock waits become LockTimeout, serialization and deadlock failures
// become ConcurrencyConflict (both safe to retry). Everything else passes
// through untouched.
func classifyPgError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			prometheus.RecordLockTimeout()
			return apperr.Wrap(err, apperr.KindLockTimeout, "%s: zip lock wait exceeded bound", op)
		case pgSerializationFailure, pgDeadlockDetected:
			return apperr.Wrap(err, apperr.KindConcurrencyConflict, "%s: transaction conflict", op)
		}
	}
	return err
}
