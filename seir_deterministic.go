package pandemicsim

import "math"

// SEIRSDeterministic implements the forward-Euler SEIRS disease
// model: S -> E -> I -> R -> S, with optional waning
// immunity (Omega = 0 disables the R -> S edge).
type SEIRSDeterministic struct {
	Rates RateSetSEIRS
}

// Identity returns the disease_model.identity this engine answers to.
func (m *SEIRSDeterministic) Identity() string { return "seir-deterministic" }

// Step advances node by one day. It snapshots the tensor once at the start
// of the day so every focal stratum's force of infection is computed
// against the same pre-day state, then writes each stratum's update back
// to the live tensor.
func (m *SEIRSDeterministic) Step(node *Node, day int, beta []float64, ctx *DiseaseContext) {
	snap := node.Snapshot()
	cs := node.Compartments
	sIdx := cs.MustIndex("S")
	eIdx := cs.MustIndex("E")
	iIdx := cs.MustIndex("I")
	rIdx := cs.MustIndex("R")

	// Per-source-age transmitting population, summed over risk and vax,
	// computed once against the snapshot. The denominator is the node's
	// whole population, not each source age's own subtotal.
	ages := node.Ages
	nodeTotal := node.TotalPopulation()
	infectiousBySrcAge := make([]float64, ages)
	for a := 0; a < ages; a++ {
		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				vec := node.SnapshotGet(snap, a, r, v)
				infectiousBySrcAge[a] += vec[iIdx]
			}
		}
	}

	for af := 0; af < ages; af++ {
		// 2. Force of infection on the focal age: each source age
		// contributes beta[as]·C[af,as]·sigma[as]·I[as], divided by the
		// node's total population, not each source age's own subtotal.
		var lambda float64
		if nodeTotal > 0 {
			for as := 0; as < ages; as++ {
				bs := 0.0
				if as < len(beta) {
					bs = beta[as]
				}
				lambda += bs * ctx.Contact.At(af, as) * ctx.sig(as) * infectiousBySrcAge[as]
			}
			lambda /= nodeTotal
		}

		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				// 3. Focal-side scaling by relative susceptibility and VE.
				ve := 0.0
				if v == VaxVaccinated {
					ve = ctx.VE(af)
				}
				lf := lambda * ctx.sig(af) * (1 - ve)
				if lf < 0 {
					lf = 0
				}

				// 4. Transmission probability.
				p := 1 - math.Exp(-lf)

				vec := node.SnapshotGet(snap, af, r, v)
				s, e, i, rr := vec[sIdx], vec[eIdx], vec[iIdx], vec[rIdx]

				// 5. Derivatives from the configured rate set.
				newInf := math.Min(p*s, s)
				newSympt := m.Rates.Sigma * e
				newRecov := m.Rates.Gamma * i
				newWane := m.Rates.Omega * rr

				dS := -newInf + newWane
				dE := newInf - newSympt
				dI := newSympt - newRecov
				dR := newRecov - newWane

				// 6. Update the focal stratum and write back.
				out := node.Get(af, r, v)
				out[sIdx] = clampNonNegative(s + dS)
				out[eIdx] = clampNonNegative(e + dE)
				out[iIdx] = clampNonNegative(i + dI)
				out[rIdx] = clampNonNegative(rr + dR)
			}
		}
	}
}
