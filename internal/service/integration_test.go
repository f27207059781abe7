//go:build integration

package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Run with: go test -tags integration ./internal/service/
// Requires a PostgreSQL instance; set TEST_DATABASE_DSN to point at it.

func openTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=postgres password=postgres dbname=lease_intelligence_test sslmode=disable"
	}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	err = db.AutoMigrate(
		&model.Account{},
		&model.SchemaVersion{},
		&model.LeaseRecord{},
		&model.ExtractionField{},
		&model.RiskFlag{},
		&model.ZipBenchmark{},
	)
	require.NoError(t, err)

	return db
}

type testEnv struct {
	db        *gorm.DB
	leases    *LeaseService
	audit     *AuditService
	flags     *FlagService
	accounts  *AccountService
	benchmark *BenchmarkService
	ingest    *IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	db := openTestDB(t)
	log := zap.NewNop()
	cfg := &config.Config{
		Benchmark: config.BenchmarkConfig{
			LockTimeout:     3 * time.Second,
			RetryAttempts:   3,
			RetryBackoff:    10 * time.Millisecond,
			ConfidenceFloor: 0.70,
		},
	}

	leases := NewLeaseService(db, log)
	audit := NewAuditService(db, log)
	flags := NewFlagService(db, log)
	accounts := NewAccountService(db, log)
	benchmark := NewBenchmarkService(db, nil, cfg, log)
	ingest := NewIngestService(db, leases, audit, flags, accounts, benchmark, cfg, log)

	return &testEnv{
		db:        db,
		leases:    leases,
		audit:     audit,
		flags:     flags,
		accounts:  accounts,
		benchmark: benchmark,
		ingest:    ingest,
	}
}

func testZip() string {
	// unique per test run so parallel CI runs never share a benchmark row
	return fmt.Sprintf("%05d", time.Now().UnixNano()%100000)
}

func sampleInput(accountID *uint, zip string, rent float64) *IngestInput {
	conf := 0.95
	lowConf := 0.45
	raw := "$2,500.00 per month"
	deposit := rent * 1.5
	return &IngestInput{
		Lease: model.LeaseRecord{
			ExtractionID:    uuid.New().String(),
			AccountID:       accountID,
			PropertyZip:     &zip,
			MonthlyRent:     &rent,
			SecurityDeposit: &deposit,
		},
		Fields: []RecordInput{
			{FieldName: "monthly_rent", RawValue: &raw, Confidence: &conf},
			{FieldName: "late_fee_policy", Confidence: &lowConf},
		},
		Flags: []FlagInput{
			{
				Slug:        "excessive_late_fee",
				Severity:    model.SeverityCritical,
				Category:    "fees",
				Description: "Late fee exceeds statutory cap",
			},
		},
	}
}

func TestIngest_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	zip := testZip()

	lease, err := env.ingest.Ingest(ctx, pipeline, sampleInput(nil, zip, 2500))
	require.NoError(t, err)
	require.NotZero(t, lease.ID)

	// quality metadata derived from the fields
	assert.Equal(t, 2, lease.FieldsExtracted)
	assert.Equal(t, 1, lease.FieldsBelowConfidenceFloor)
	assert.True(t, lease.RequiresHumanReview)

	// lone lease defines its own market
	require.NotNil(t, lease.ZipPercentile)

	// the benchmark row exists in the same transaction's wake
	bench, err := env.benchmark.Get(ctx, zip)
	require.NoError(t, err)
	assert.Equal(t, 1, bench.SampleSize)
	require.NotNil(t, bench.RentP25)

	// audit entries landed with the lease
	history, err := env.audit.FieldHistory(ctx, pipeline, lease.ID, "monthly_rent")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.SourceModel, history[0].Source)

	// only the low-confidence field surfaces in the review queue; the
	// 0.95-confidence rent entry stays out
	queue, err := env.audit.ListLowConfidence(ctx, pipeline, 0.75)
	require.NoError(t, err)
	var mine []model.ExtractionField
	for _, entry := range queue {
		if entry.LeaseRecordID == lease.ID {
			mine = append(mine, entry)
		}
	}
	require.Len(t, mine, 1)
	assert.Equal(t, "late_fee_policy", mine[0].FieldName)

	// the CRITICAL flag is first in listing order
	flags, err := env.flags.ListForLease(ctx, pipeline, lease.ID)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, model.SeverityCritical, flags[0].Severity)
}

func TestIngest_DuplicateExtractionID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	zip := testZip()

	in := sampleInput(nil, zip, 2400)
	_, err := env.ingest.Ingest(ctx, pipeline, in)
	require.NoError(t, err)

	dup := sampleInput(nil, zip, 2600)
	dup.Lease.ExtractionID = in.Lease.ExtractionID
	_, err = env.ingest.Ingest(ctx, pipeline, dup)
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicateExternalKey, apperr.KindOf(err))

	// the failed ingest left no trace: still one lease, sample size still 1
	bench, err := env.benchmark.Get(ctx, zip)
	require.NoError(t, err)
	assert.Equal(t, 1, bench.SampleSize)
}

func TestIngest_RejectedForNonService(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ingest.Ingest(context.Background(), admin, sampleInput(nil, testZip(), 2000))
	require.Error(t, err)
	assert.Equal(t, apperr.KindAccessDenied, apperr.KindOf(err))
}

func TestIngest_ConcurrentSameZip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	zip := testZip()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rent := 2000 + float64(i)*500
			_, errs[i] = env.ingest.Ingest(ctx, pipeline, sampleInput(nil, zip, rent))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	bench, err := env.benchmark.Get(ctx, zip)
	require.NoError(t, err)
	assert.Equal(t, 2, bench.SampleSize)
	require.NotNil(t, bench.MedianRent)
	assert.Equal(t, 2250.0, *bench.MedianRent)
}

func TestOverride_PreservesHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lease, err := env.ingest.Ingest(ctx, pipeline, sampleInput(nil, testZip(), 2500))
	require.NoError(t, err)

	history, err := env.audit.FieldHistory(ctx, pipeline, lease.ID, "monthly_rent")
	require.NoError(t, err)
	require.Len(t, history, 1)
	original := history[0]

	// an override without a reason is rejected
	_, err = env.audit.Override(ctx, admin, original.ID, "2600", "  ")
	require.Error(t, err)
	assert.Equal(t, apperr.KindMissingJustification, apperr.KindOf(err))

	corrected, err := env.audit.Override(ctx, admin, original.ID, "2600", "OCR misread the rent rider")
	require.NoError(t, err)
	assert.True(t, corrected.HumanOverride)
	require.NotNil(t, corrected.SupersedesID)
	assert.Equal(t, original.ID, *corrected.SupersedesID)

	// both entries remain, oldest first
	history, err = env.audit.FieldHistory(ctx, pipeline, lease.ID, "monthly_rent")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, original.ID, history[0].ID)
	assert.Equal(t, corrected.ID, history[1].ID)
}

func TestSoftDelete_HidesLeaseAndSurvivesRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	zip := testZip()

	first, err := env.ingest.Ingest(ctx, pipeline, sampleInput(nil, zip, 2000))
	require.NoError(t, err)
	_, err = env.ingest.Ingest(ctx, pipeline, sampleInput(nil, zip, 3000))
	require.NoError(t, err)

	require.NoError(t, env.leases.SoftDelete(ctx, pipeline, first.ID))

	// normal reads no longer see it
	_, err = env.leases.Get(ctx, pipeline, first.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// the audit fetch still does
	audited, err := env.leases.GetForAudit(ctx, admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, audited.ID)

	// incremental stats keep the historical sample size until an admin rebuild
	bench, err := env.benchmark.Get(ctx, zip)
	require.NoError(t, err)
	assert.Equal(t, 2, bench.SampleSize)

	rebuilt, err := env.benchmark.Recompute(ctx, admin, zip)
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilt.SampleSize)
	require.NotNil(t, rebuilt.MedianRent)
	assert.Equal(t, 3000.0, *rebuilt.MedianRent)
}

func TestPurge_CascadesChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lease, err := env.ingest.Ingest(ctx, pipeline, sampleInput(nil, testZip(), 2500))
	require.NoError(t, err)

	// only admins may purge
	err = env.leases.Purge(ctx, owner, lease.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAccessDenied, apperr.KindOf(err))

	require.NoError(t, env.leases.Purge(ctx, admin, lease.ID))

	_, err = env.leases.GetForAudit(ctx, admin, lease.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	var fieldCount int64
	require.NoError(t, env.db.Model(&model.ExtractionField{}).
		Where("lease_record_id = ?", lease.ID).Count(&fieldCount).Error)
	assert.Zero(t, fieldCount)

	var flagCount int64
	require.NoError(t, env.db.Model(&model.RiskFlag{}).
		Where("lease_record_id = ?", lease.ID).Count(&flagCount).Error)
	assert.Zero(t, flagCount)
}

func TestBenchmarkGet_UnknownZip(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.benchmark.Get(context.Background(), "00000")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestIngest_Idempotent_Reads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := env.accounts.Create(ctx, pipeline, &AccountInput{
		Email: uuid.New().String() + "@example.com",
		Role:  model.RoleTenant,
		Tier:  model.TierPaid,
	})
	require.NoError(t, err)

	lease, err := env.ingest.Ingest(ctx, pipeline, sampleInput(&acct.ID, testZip(), 2500))
	require.NoError(t, err)

	ownerID := Identity{AccountID: acct.ID, Role: acct.Role, Tier: acct.Tier}
	got, err := env.leases.Get(ctx, ownerID, lease.ID)
	require.NoError(t, err)
	assert.Equal(t, lease.ExtractionID, got.ExtractionID)

	// another account cannot read it
	stranger := Identity{AccountID: acct.ID + 1, Role: model.RoleTenant, Tier: model.TierFree}
	_, err = env.leases.Get(ctx, stranger, lease.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAccessDenied, apperr.KindOf(err))

	// usage counter bumped inside the ingest transaction
	refreshed, err := env.accounts.Get(ctx, pipeline, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.AnalysesUsed)
	require.NotNil(t, refreshed.LastActivityAt)
}
