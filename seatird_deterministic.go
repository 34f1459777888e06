package pandemicsim

import "math"

// SEATIRDDeterministic implements the forward-Euler SEATIRD disease
// model: S -> E -> A -> T -> I -> {R,D}, with A, T, and I
// all contributing to transmission (InfectiousMask controls which
// compartments count) and per-(age,risk) mortality out of every
// infectious stage.
type SEATIRDDeterministic struct {
	Rates RateSetSEATIRD
}

// Identity returns the disease_model.identity this engine answers to.
func (m *SEATIRDDeterministic) Identity() string { return "seatird-deterministic" }

// Step advances node by one day against a single start-of-day snapshot,
// following the same six-step rule as the SEIRS variant but with three
// infectious stages and a death branch out of each.
func (m *SEATIRDDeterministic) Step(node *Node, day int, beta []float64, ctx *DiseaseContext) {
	snap := node.Snapshot()
	cs := node.Compartments
	sIdx := cs.MustIndex("S")
	eIdx := cs.MustIndex("E")
	aIdx := cs.MustIndex("A")
	tIdx := cs.MustIndex("T")
	iIdx := cs.MustIndex("I")
	rIdx := cs.MustIndex("R")
	dIdx := cs.MustIndex("D")

	// transmittingByAgeVax[a][v] is the InfectiousMask-weighted source
	// population at source age a and vax status v, summed over risk.
	// SEATIRD folds VE and sigma into this source loop rather than the
	// focal side, so it is tracked per source vax
	// status rather than pre-summed across v like the other variants.
	ages := node.Ages
	nodeTotal := node.TotalPopulation()
	transmittingByAgeVax := make([][2]float64, ages)
	for a := 0; a < ages; a++ {
		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				vec := node.SnapshotGet(snap, a, r, v)
				var w float64
				for c, weight := range ctx.InfectiousMask {
					if weight != 0 {
						w += weight * vec[c]
					}
				}
				transmittingByAgeVax[a][v] += w
			}
		}
	}

	for af := 0; af < ages; af++ {
		// Force of infection on the focal age: beta, sigma, and the
		// (1-VE) discount are all taken from the source side (each
		// source stratum's own age and vax status), then divided by the
		// node's total population.
		var lambda float64
		if nodeTotal > 0 {
			for as := 0; as < ages; as++ {
				contact := ctx.Contact.At(af, as)
				if contact == 0 {
					continue
				}
				bs := 0.0
				if as < len(beta) {
					bs = beta[as]
				}
				sigma := ctx.sig(as)
				for vs := 0; vs < 2; vs++ {
					ve := 0.0
					if vs == VaxVaccinated {
						ve = ctx.VE(as)
					}
					lambda += bs * (1 - ve) * contact * sigma * transmittingByAgeVax[as][vs]
				}
			}
			lambda /= nodeTotal
		}
		if lambda < 0 {
			lambda = 0
		}
		// SEATIRD uses the force of infection directly as a probability
		// rather than the 1-exp(-λ) transform.
		p := clampProb(lambda)

		for r := 0; r < 2; r++ {
			nu := 0.0
			if af < len(m.Rates.Nu) {
				nu = m.Rates.Nu[af][r]
			}
			for v := 0; v < 2; v++ {
				vec := node.SnapshotGet(snap, af, r, v)
				s, e, a, tt, i, rr := vec[sIdx], vec[eIdx], vec[aIdx], vec[tIdx], vec[iIdx], vec[rIdx]

				newInf := math.Min(p*s, s)
				eToA := m.Rates.Tau * e
				aToT := m.Rates.Kappa * a
				tToI := m.Rates.Chi * tt
				aToR := m.Rates.Gamma * a
				tToR := m.Rates.Gamma * tt
				iToR := m.Rates.Gamma * i
				aToD := nu * a
				tToD := nu * tt
				iToD := nu * i

				// Competing outflows are scaled down together when they would
				// drain more than the source holds, so mass is conserved.
				eToA = math.Min(eToA, e)
				if out := aToT + aToR + aToD; out > a {
					f := a / out
					aToT, aToR, aToD = aToT*f, aToR*f, aToD*f
				}
				if out := tToI + tToR + tToD; out > tt {
					f := tt / out
					tToI, tToR, tToD = tToI*f, tToR*f, tToD*f
				}
				if out := iToR + iToD; out > i {
					f := i / out
					iToR, iToD = iToR*f, iToD*f
				}

				dS := -newInf
				dE := newInf - eToA
				dA := eToA - aToT - aToR - aToD
				dT := aToT - tToI - tToR - tToD
				dI := tToI - iToR - iToD
				dR := aToR + tToR + iToR
				dD := aToD + tToD + iToD

				out := node.Get(af, r, v)
				out[sIdx] = clampNonNegative(s + dS)
				out[eIdx] = clampNonNegative(e + dE)
				out[aIdx] = clampNonNegative(a + dA)
				out[tIdx] = clampNonNegative(tt + dT)
				out[iIdx] = clampNonNegative(i + dI)
				out[rIdx] = clampNonNegative(rr + dR)
				out[dIdx] = clampNonNegative(vec[dIdx] + dD)
			}
		}
	}
}
