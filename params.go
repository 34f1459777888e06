package pandemicsim

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PeriodToRate converts a period given in days to a per-day rate (1/period).
// A non-positive period is treated as "off" rather than propagating
// Inf/NaN through the rate set.
func PeriodToRate(periodDays float64) float64 {
	if periodDays <= 0 {
		return 0
	}
	return 1.0 / periodDays
}

// MortalityVector builds a dense [age][risk]float64 mortality-rate table
// from a per-age base rate and a fixed high-risk multiplier.
func MortalityVector(baseNu []float64, highRiskMultiplier float64) [][2]float64 {
	out := make([][2]float64, len(baseNu))
	for a, nu := range baseNu {
		out[a][RiskLow] = nu
		out[a][RiskHigh] = nu * highRiskMultiplier
	}
	return out
}

// BetaFromScale implements the SEATIRD baseline-β rule: β = R0/beta_scale.
func BetaFromScale(r0, betaScale float64) float64 {
	if betaScale <= 0 {
		return 0
	}
	return r0 / betaScale
}

// BetaFromNextGenMatrix implements the SEIHRD/SEIRS baseline-β rule: solve
// for β such that the next-generation matrix K[a,a'] = β·C[a,a']·σ[a']·
// infectiousPeriod has spectral radius R0, i.e. β = R0 / ρ(K/β). Since K is
// linear in β, ρ(K/β) is the spectral radius of the β-free matrix
// M[a,a'] = C[a,a']·σ[a']·infectiousPeriod, so β = R0/ρ(M). The spectral
// radius is the largest-magnitude eigenvalue, computed with gonum's general
// eigendecomposition.
func BetaFromNextGenMatrix(r0 float64, contact *ContactMatrix, sigma []float64, infectiousPeriod float64) (float64, error) {
	a := contact.Ages()
	if len(sigma) != a {
		return 0, NewShapeError("sigma", VectorLengthMismatchError, len(sigma), a)
	}
	m := mat.NewDense(a, a, nil)
	for i := 0; i < a; i++ {
		for j := 0; j < a; j++ {
			m.Set(i, j, contact.At(i, j)*sigma[j]*infectiousPeriod)
		}
	}
	var eig mat.Eigen
	if ok := eig.Factorize(m, mat.EigenRight); !ok {
		return 0, NewShapeError("contact", "eigendecomposition of next-generation matrix failed to converge")
	}
	var rho float64
	for _, v := range eig.Values(nil) {
		mag := realAbs(v)
		if mag > rho {
			rho = mag
		}
	}
	if rho == 0 {
		return 0, nil
	}
	return r0 / rho, nil
}

// realAbs returns the modulus of a complex eigenvalue.
func realAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// RateSetSEIRS holds the SEIRS compartment rates.
type RateSetSEIRS struct {
	Sigma float64 // E -> I
	Gamma float64 // I -> R
	Omega float64 // R -> S; 0 if immune_period = 0
}

// NewRateSetSEIRS converts user-supplied periods (days) into rates.
func NewRateSetSEIRS(exposedPeriod, infectiousPeriod, immunePeriod float64) RateSetSEIRS {
	return RateSetSEIRS{
		Sigma: PeriodToRate(exposedPeriod),
		Gamma: PeriodToRate(infectiousPeriod),
		Omega: PeriodToRate(immunePeriod),
	}
}

// RateSetSEATIRD holds the SEATIRD compartment rates. Nu (A,T,I -> D) is
// per (age,risk); the rest are scalar.
type RateSetSEATIRD struct {
	Tau   float64      // E -> A
	Kappa float64      // A -> T
	Chi   float64      // T -> I (deterministic offset in the stochastic engine)
	Gamma float64      // A,T,I -> R
	Nu    [][2]float64 // A,T,I -> D, per (age,risk)
}

// NewRateSetSEATIRD converts user-supplied periods into rates and binds
// the per-(age,risk) mortality vector.
func NewRateSetSEATIRD(asymptomaticPeriod, preSymptomaticPeriod, symptomaticPeriod, recoveryPeriod float64, nu [][2]float64) RateSetSEATIRD {
	return RateSetSEATIRD{
		Tau:   PeriodToRate(asymptomaticPeriod),
		Kappa: PeriodToRate(preSymptomaticPeriod),
		Chi:   PeriodToRate(symptomaticPeriod),
		Gamma: PeriodToRate(recoveryPeriod),
		Nu:    nu,
	}
}

// RateSetSEIHRD holds the SEIHRD compartment rates and the two competing
// target fractions used by the two-way-split correction.
type RateSetSEIHRD struct {
	EOut        float64 // E -> IA/IP, split by the asymptomatic fraction
	IPToIS      float64 // IP -> IS
	IAToR       float64 // IA -> R
	ISToRBase   float64 // IS -> R, competing rate γ
	ISToHTarget float64 // IS -> H, target rate η, pre-correction
	HToRBase    float64 // H -> R, competing rate
	HToDTarget  float64 // H -> D, target rate, pre-correction
	FracToH     float64 // configured long-run fraction of IS that reaches H
	FracToD     float64 // configured long-run fraction of H that reaches D
}

// TwoWaySplit applies the two-way-split correction: given a competing rate γ, a target
// rate η, and the desired long-run fraction p reaching the target branch,
// returns the adjusted fraction π = p·γ / ((γ−η)·p + η) such that drawing
// with π realizes fraction p in the long run regardless of γ, η.
func TwoWaySplit(p, gamma, eta float64) float64 {
	denom := (gamma-eta)*p + eta
	if denom == 0 {
		return 0
	}
	return p * gamma / denom
}
