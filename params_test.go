package pandemicsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodToRate(t *testing.T) {
	assert.InDelta(t, 0.25, PeriodToRate(4), 1e-12)
	assert.Zero(t, PeriodToRate(0), "zero period means the transition is off")
	assert.Zero(t, PeriodToRate(-3))
}

func TestMortalityVector_HighRiskMultiplier(t *testing.T) {
	nu := MortalityVector([]float64{0.01, 0.02}, 9)

	assert.InDelta(t, 0.01, nu[0][RiskLow], 1e-12)
	assert.InDelta(t, 0.09, nu[0][RiskHigh], 1e-12)
	assert.InDelta(t, 0.18, nu[1][RiskHigh], 1e-12)
}

func TestBetaFromScale(t *testing.T) {
	assert.InDelta(t, 1.45/0.9, BetaFromScale(1.45, 0.9), 1e-12)
	assert.Zero(t, BetaFromScale(2.5, 0))
}

func TestBetaFromNextGenMatrix_SingleAge(t *testing.T) {
	cm, err := NewContactMatrix(1, [][]float64{{3}})
	require.NoError(t, err)

	// One age group: rho(M) = C·sigma·period = 3·0.5·4 = 6, beta = R0/6.
	beta, err := BetaFromNextGenMatrix(2.4, cm, []float64{0.5}, 4)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, beta, 1e-9)
}

func TestBetaFromNextGenMatrix_SpectralRadiusOfSymmetricMatrix(t *testing.T) {
	cm, err := NewContactMatrix(2, [][]float64{{2, 1}, {1, 2}})
	require.NoError(t, err)

	// Eigenvalues of [[2,1],[1,2]] are 3 and 1; with sigma = 1 and a
	// 1-day infectious period the spectral radius is 3.
	beta, err := BetaFromNextGenMatrix(3.0, cm, []float64{1, 1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, beta, 1e-9)
}

func TestBetaFromNextGenMatrix_SigmaLengthMismatchIsShapeError(t *testing.T) {
	cm, err := NewContactMatrix(2, [][]float64{{1, 1}, {1, 1}})
	require.NoError(t, err)

	_, err = BetaFromNextGenMatrix(2.0, cm, []float64{1}, 1)
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestTwoWaySplit_EqualRatesIsIdentity(t *testing.T) {
	// With gamma == eta the correction is a no-op: pi == p.
	assert.InDelta(t, 0.3, TwoWaySplit(0.3, 0.2, 0.2), 1e-12)
}

func TestTwoWaySplit_AdjustedFractionFormula(t *testing.T) {
	p, gamma, eta := 0.4, 0.25, 0.1
	want := p * gamma / ((gamma-eta)*p + eta)
	assert.InDelta(t, want, TwoWaySplit(p, gamma, eta), 1e-12)
}
