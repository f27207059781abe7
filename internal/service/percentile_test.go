package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian_OddPopulation(t *testing.T) {
	m := median([]float64{1400, 1000, 1200})
	require.NotNil(t, m)
	assert.Equal(t, 1200.0, *m)
}

func TestMedian_EvenPopulation(t *testing.T) {
	m := median([]float64{1000, 1200, 1400, 1600})
	require.NotNil(t, m)
	assert.Equal(t, 1300.0, *m)
}

func TestMedian_Empty(t *testing.T) {
	assert.Nil(t, median(nil))
}

func TestMedian_SingleValue(t *testing.T) {
	m := median([]float64{2500})
	require.NotNil(t, m)
	assert.Equal(t, 2500.0, *m)
}

func TestQuantile_Interpolates(t *testing.T) {
	values := []float64{1000, 2000, 3000, 4000}

	p25 := quantile(values, 0.25)
	require.NotNil(t, p25)
	assert.Equal(t, 1750.0, *p25)

	p75 := quantile(values, 0.75)
	require.NotNil(t, p75)
	assert.Equal(t, 3250.0, *p75)
}

func TestQuantile_DoesNotMutateInput(t *testing.T) {
	values := []float64{3000, 1000, 2000}
	_ = quantile(values, 0.5)
	assert.Equal(t, []float64{3000, 1000, 2000}, values)
}

func TestPrevalencePct_IgnoresUnobserved(t *testing.T) {
	yes, no := true, false
	pct := prevalencePct([]*bool{&yes, &no, nil, &yes})
	require.NotNil(t, pct)
	assert.InDelta(t, 66.666, *pct, 0.01)
}

func TestPrevalencePct_NothingObserved(t *testing.T) {
	assert.Nil(t, prevalencePct([]*bool{nil, nil}))
}

func TestPercentileRank(t *testing.T) {
	population := []float64{1000, 1500, 2000, 2500}

	assert.Equal(t, 50, percentileRank(population, 1500))
	assert.Equal(t, 100, percentileRank(population, 3000))
	assert.Equal(t, 0, percentileRank(population, 500))
}

func TestPercentileRank_EmptyPopulationDefaultsToMidpoint(t *testing.T) {
	assert.Equal(t, 50, percentileRank(nil, 2500))
}
