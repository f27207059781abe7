package service

import (
	"testing"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestValidateLease_RequiresExtractionID(t *testing.T) {
	err := ValidateLease(&model.LeaseRecord{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestValidateLease_ScoreBounds(t *testing.T) {
	lease := &model.LeaseRecord{
		ExtractionID: "ext-001",
		OverallRiskScore: intPtr(101),
	}
	err := ValidateLease(lease)
	require.Error(t, err)
	assert.Equal(t, apperr.KindScoreOutOfRange, apperr.KindOf(err))

	lease.OverallRiskScore = intPtr(-1)
	err = ValidateLease(lease)
	require.Error(t, err)
	assert.Equal(t, apperr.KindScoreOutOfRange, apperr.KindOf(err))

	lease.OverallRiskScore = intPtr(100)
	assert.NoError(t, ValidateLease(lease))

	lease.OverallRiskScore = nil
	assert.NoError(t, ValidateLease(lease))
}

func TestValidateLease_RiskTierEnum(t *testing.T) {
	lease := &model.LeaseRecord{
		ExtractionID: "ext-002",
		RiskTier:     strPtr("PURPLE"),
	}
	err := ValidateLease(lease)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidEnum, apperr.KindOf(err))

	lease.RiskTier = strPtr(model.TierGreen)
	assert.NoError(t, ValidateLease(lease))
}

func TestValidateRecordInput_ConfidenceBounds(t *testing.T) {
	in := &RecordInput{FieldName: "monthly_rent", Confidence: floatPtr(1.2)}
	err := ValidateRecordInput(in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidConfidence, apperr.KindOf(err))

	in.Confidence = floatPtr(-0.1)
	err = ValidateRecordInput(in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidConfidence, apperr.KindOf(err))

	in.Confidence = floatPtr(0.95)
	assert.NoError(t, ValidateRecordInput(in))

	// nil confidence is legal: unparseable fields carry a null reason instead
	in.Confidence = nil
	assert.NoError(t, ValidateRecordInput(in))
}

func TestValidateRecordInput_DefaultsSource(t *testing.T) {
	in := &RecordInput{FieldName: "lease_term_months", Confidence: floatPtr(0.9)}
	require.NoError(t, ValidateRecordInput(in))
	assert.Equal(t, model.SourceModel, in.Source)
}

func TestValidateRecordInput_RejectsUnknownSource(t *testing.T) {
	in := &RecordInput{FieldName: "monthly_rent", Source: "guessed"}
	err := ValidateRecordInput(in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidEnum, apperr.KindOf(err))
}

func TestValidateRecordInput_RequiresFieldName(t *testing.T) {
	err := ValidateRecordInput(&RecordInput{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestValidateFlagInput(t *testing.T) {
	err := ValidateFlagInput(&FlagInput{Severity: model.SeverityHigh})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = ValidateFlagInput(&FlagInput{Slug: "excessive_late_fee", Severity: "SEVERE"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidEnum, apperr.KindOf(err))

	assert.NoError(t, ValidateFlagInput(&FlagInput{
		Slug:     "excessive_late_fee",
		Severity: model.SeverityHigh,
	}))
}
