package pandemicsim

import "math"

// SEIHRDStochastic implements the discrete-time stochastic SEIHRD model:
// the same per-stratum daily update as the deterministic variant, with
// every continuous flow replaced by a Poisson draw capped at its source
// compartment's count so no compartment ever overdraws. The two
// competing exits (IS -> {H,R} and H -> {D,R}) draw the target branch
// first and the competing branch from whatever the target left behind,
// with the same TwoWaySplit-corrected branching fractions the
// deterministic engine uses.
type SEIHRDStochastic struct {
	Rates RateSetSEIHRD
	// AsymptomaticFraction is the share of E -> I progression routed to
	// IA instead of IP.
	AsymptomaticFraction float64
}

// Identity returns the disease_model.identity this engine answers to.
func (m *SEIHRDStochastic) Identity() string { return "seihrd-stochastic" }

// poissonCapped draws min(Poisson(rate*count), count), the one-day leap
// for a flow with per-capita rate out of a compartment holding count
// individuals. Zero rate or an empty compartment short-circuits to 0.
func poissonCapped(rng *RNG, rate, count float64) float64 {
	if rate <= 0 || count <= 0 {
		return 0
	}
	d := rng.Poisson(rate * count)
	if d > count {
		d = count
	}
	return d
}

// Step advances node by one day against a single start-of-day snapshot.
// The force of infection is accumulated exactly as in the deterministic
// variant; only the integration differs: each flow is a capped Poisson
// draw, taken from the source count floored to whole individuals, rather
// than a fractional Euler term.
func (m *SEIHRDStochastic) Step(node *Node, day int, beta []float64, ctx *DiseaseContext) {
	snap := node.Snapshot()
	cs := node.Compartments
	sIdx := cs.MustIndex("S")
	eIdx := cs.MustIndex("E")
	iaIdx := cs.MustIndex("IA")
	ipIdx := cs.MustIndex("IP")
	isIdx := cs.MustIndex("IS")
	hIdx := cs.MustIndex("H")
	rIdx := cs.MustIndex("R")
	dIdx := cs.MustIndex("D")

	piH := TwoWaySplit(m.Rates.FracToH, m.Rates.ISToRBase, m.Rates.ISToHTarget)
	piD := TwoWaySplit(m.Rates.FracToD, m.Rates.HToRBase, m.Rates.HToDTarget)

	ages := node.Ages
	nodeTotal := node.TotalPopulation()
	transmittingBySrcAge := make([]float64, ages)
	for a := 0; a < ages; a++ {
		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				vec := node.SnapshotGet(snap, a, r, v)
				for c, w := range ctx.InfectiousMask {
					if w != 0 {
						transmittingBySrcAge[a] += w * vec[c]
					}
				}
			}
		}
	}

	for af := 0; af < ages; af++ {
		var lambda float64
		if nodeTotal > 0 {
			for as := 0; as < ages; as++ {
				bs := 0.0
				if as < len(beta) {
					bs = beta[as]
				}
				lambda += bs * ctx.Contact.At(af, as) * ctx.sig(as) * transmittingBySrcAge[as]
			}
			lambda /= nodeTotal
		}

		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				ve := 0.0
				if v == VaxVaccinated {
					ve = ctx.VE(af)
				}
				lf := lambda * ctx.sig(af) * (1 - ve)
				if lf < 0 {
					lf = 0
				}

				vec := node.SnapshotGet(snap, af, r, v)
				s := math.Floor(vec[sIdx])
				e := math.Floor(vec[eIdx])
				ia := math.Floor(vec[iaIdx])
				ip := math.Floor(vec[ipIdx])
				is := math.Floor(vec[isIdx])
				h := math.Floor(vec[hIdx])

				newInf := poissonCapped(ctx.RNG, lf, s)
				eOut := poissonCapped(ctx.RNG, m.Rates.EOut, e)
				eToIA := math.Floor(m.AsymptomaticFraction * eOut)
				eToIP := eOut - eToIA
				ipToIS := poissonCapped(ctx.RNG, m.Rates.IPToIS, ip)
				iaToR := poissonCapped(ctx.RNG, m.Rates.IAToR, ia)

				// Target branch first, competing branch from the
				// remainder, so the two draws together can never exceed
				// the compartment.
				isToH := poissonCapped(ctx.RNG, piH*m.Rates.ISToHTarget, is)
				isToR := poissonCapped(ctx.RNG, (1-piH)*m.Rates.ISToRBase, is-isToH)
				hToD := poissonCapped(ctx.RNG, piD*m.Rates.HToDTarget, h)
				hToR := poissonCapped(ctx.RNG, (1-piD)*m.Rates.HToRBase, h-hToD)

				out := node.Get(af, r, v)
				out[sIdx] = clampNonNegative(vec[sIdx] - newInf)
				out[eIdx] = clampNonNegative(vec[eIdx] + newInf - eToIA - eToIP)
				out[iaIdx] = clampNonNegative(vec[iaIdx] + eToIA - iaToR)
				out[ipIdx] = clampNonNegative(vec[ipIdx] + eToIP - ipToIS)
				out[isIdx] = clampNonNegative(vec[isIdx] + ipToIS - isToH - isToR)
				out[hIdx] = clampNonNegative(vec[hIdx] + isToH - hToD - hToR)
				out[rIdx] = clampNonNegative(vec[rIdx] + iaToR + isToR + hToR)
				out[dIdx] = clampNonNegative(vec[dIdx] + hToD)
			}
		}
	}
}
