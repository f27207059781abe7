package service

import (
	"context"
	"testing"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return mock, gdb
}

func TestListLowConfidence_ScopesRegularCallers(t *testing.T) {
	mock, gdb := setupMockDB(t)
	svc := NewAuditService(gdb, zap.NewNop())

	rows := sqlmock.NewRows([]string{"id", "lease_record_id", "field_name", "confidence", "source"}).
		AddRow(3, 1, "late_fee_policy", 0.41, "model").
		AddRow(9, 1, "security_deposit_amount", 0.55, "model")

	// regular caller: threshold plus the account scope
	mock.ExpectQuery(`SELECT .* FROM "extraction_fields" JOIN lease_records`).
		WithArgs(0.7, uint(7)).
		WillReturnRows(rows)

	entries, err := svc.ListLowConfidence(context.Background(), owner, 0.7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "late_fee_policy", entries[0].FieldName)
	assert.Equal(t, 0.41, *entries[0].Confidence)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListLowConfidence_ServiceSeesAllAccounts(t *testing.T) {
	mock, gdb := setupMockDB(t)
	svc := NewAuditService(gdb, zap.NewNop())

	rows := sqlmock.NewRows([]string{"id", "lease_record_id", "field_name", "confidence", "source"})

	// service identity: threshold only, no account scope
	mock.ExpectQuery(`SELECT .* FROM "extraction_fields" JOIN lease_records`).
		WithArgs(0.7).
		WillReturnRows(rows)

	entries, err := svc.ListLowConfidence(context.Background(), pipeline, 0.7)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListLowConfidence_RejectsThresholdOutOfRange(t *testing.T) {
	_, gdb := setupMockDB(t)
	svc := NewAuditService(gdb, zap.NewNop())

	_, err := svc.ListLowConfidence(context.Background(), pipeline, 1.5)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidConfidence, apperr.KindOf(err))
}

func TestFieldHistory_OrderedOldestFirst(t *testing.T) {
	mock, gdb := setupMockDB(t)
	svc := NewAuditService(gdb, zap.NewNop())

	leaseRows := sqlmock.NewRows([]string{"id", "extraction_id", "account_id"}).
		AddRow(1, "ext-100", 7)
	mock.ExpectQuery(`SELECT .* FROM "lease_records"`).
		WillReturnRows(leaseRows)

	historyRows := sqlmock.NewRows([]string{"id", "lease_record_id", "field_name", "parsed_value", "human_override"}).
		AddRow(2, 1, "monthly_rent", "2500", false).
		AddRow(5, 1, "monthly_rent", "2600", true)
	mock.ExpectQuery(`SELECT .* FROM "extraction_fields"`).
		WithArgs(uint(1), "monthly_rent").
		WillReturnRows(historyRows)

	history, err := svc.FieldHistory(context.Background(), owner, 1, "monthly_rent")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].HumanOverride)
	assert.True(t, history[1].HumanOverride)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFieldHistory_DeniedForNonOwner(t *testing.T) {
	mock, gdb := setupMockDB(t)
	svc := NewAuditService(gdb, zap.NewNop())

	leaseRows := sqlmock.NewRows([]string{"id", "extraction_id", "account_id"}).
		AddRow(1, "ext-100", 7)
	mock.ExpectQuery(`SELECT .* FROM "lease_records"`).
		WillReturnRows(leaseRows)

	_, err := svc.FieldHistory(context.Background(), other, 1, "monthly_rent")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAccessDenied, apperr.KindOf(err))
}

func TestLeaseGet_NotFound(t *testing.T) {
	mock, gdb := setupMockDB(t)
	svc := NewLeaseService(gdb, zap.NewNop())

	mock.ExpectQuery(`SELECT .* FROM "lease_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "extraction_id", "account_id"}))

	_, err := svc.Get(context.Background(), pipeline, 99)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
