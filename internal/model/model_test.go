package model

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidConfidence(t *testing.T) {
	valid := []float64{0, 0.5, 1}
	for _, v := range valid {
		c := v
		assert.True(t, ValidConfidence(&c), "confidence %v should be valid", v)
	}

	invalid := []float64{-0.01, 1.01, 2}
	for _, v := range invalid {
		c := v
		assert.False(t, ValidConfidence(&c), "confidence %v should be invalid", v)
	}

	// nil means the field could not be parsed at all, which is legal
	assert.True(t, ValidConfidence(nil))
}

func TestValidRiskTier(t *testing.T) {
	for _, tier := range []string{TierGreen, TierYellow, TierOrange, TierRed} {
		assert.True(t, ValidRiskTier(tier))
	}
	assert.False(t, ValidRiskTier("green"))
	assert.False(t, ValidRiskTier(""))
}

func TestSeverityRank_OrdersCriticalFirst(t *testing.T) {
	severities := []string{SeverityLow, SeverityCritical, SeverityMedium, SeverityHigh}
	sort.Slice(severities, func(i, j int) bool {
		return SeverityRank(severities[i]) < SeverityRank(severities[j])
	})
	assert.Equal(t, []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}, severities)
}

func TestBenchmarkable(t *testing.T) {
	zip := "02139"
	rent := 2500.0

	assert.True(t, (&LeaseRecord{PropertyZip: &zip, MonthlyRent: &rent}).Benchmarkable())
	assert.False(t, (&LeaseRecord{PropertyZip: &zip}).Benchmarkable())
	assert.False(t, (&LeaseRecord{MonthlyRent: &rent}).Benchmarkable())
	assert.False(t, (&LeaseRecord{}).Benchmarkable())
}

func TestValidSource(t *testing.T) {
	for _, s := range []string{SourceModel, SourceComputed, SourceExternal, SourceManual} {
		assert.True(t, ValidSource(s))
	}
	assert.False(t, ValidSource("guessed"))
}

func TestValidRoleAndTier(t *testing.T) {
	assert.True(t, ValidRole(RoleTenant))
	assert.True(t, ValidRole(RoleLandlord))
	assert.True(t, ValidRole(RoleOperator))
	assert.False(t, ValidRole("superuser"))

	assert.True(t, ValidTier(TierAdmin))
	assert.True(t, ValidTier(TierFree))
	assert.False(t, ValidTier("platinum"))
}
