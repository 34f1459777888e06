package pandemicsim

import "math"

// SEIHRDDeterministic implements the forward-Euler SEIHRD disease
// model: S -> E -> IP -> IS -> {H,R}, IA in parallel with
// IS (asymptomatic branch, no hospitalization/death), and H -> {R,D}. The
// two competing-exit branches (IS -> {H,R} and H -> {D,R}) are corrected
// with TwoWaySplit so the configured long-run fractions hold regardless
// of the underlying competing rates.
type SEIHRDDeterministic struct {
	Rates RateSetSEIHRD
	// AsymptomaticFraction is the share of E -> I progression routed to
	// IA instead of IP.
	AsymptomaticFraction float64
}

// Identity returns the disease_model.identity this engine answers to.
func (m *SEIHRDDeterministic) Identity() string { return "seihrd-deterministic" }

// Step advances node by one day against a single start-of-day snapshot.
// IP and IS together form the transmitting/symptomatic-progression chain;
// IA is the parallel asymptomatic branch that recovers without ever
// reaching H. Compartment labels: S, E, IA, IP, IS, H, R, D.
func (m *SEIHRDDeterministic) Step(node *Node, day int, beta []float64, ctx *DiseaseContext) {
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
		// Force of infection: each source age contributes
		// beta[as]·C[af,as]·sigma[as]·transmitting[as], divided by the
		// node's total population, not each source age's own subtotal.
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
				p := 1 - math.Exp(-lf)

				vec := node.SnapshotGet(snap, af, r, v)
				s, e, ia, ip, is, h, rr := vec[sIdx], vec[eIdx], vec[iaIdx], vec[ipIdx], vec[isIdx], vec[hIdx], vec[rIdx]

				newInf := math.Min(p*s, s)
				eToIA := m.Rates.EOut * m.AsymptomaticFraction * e
				eToIP := m.Rates.EOut * (1 - m.AsymptomaticFraction) * e
				ipToIS := m.Rates.IPToIS * ip
				iaToR := m.Rates.IAToR * ia

				// Two-way-split correction: flow-to-target is scaled by
				// the target rate (ISToHTarget/HToDTarget) and flow-to-
				// competing by the competing rate (ISToRBase/HToRBase),
				// each weighted by the adjusted branching probability
				// piH/piD, so the configured long-run fraction FracToH/
				// FracToD holds regardless of the underlying rates.
				isToH := piH * m.Rates.ISToHTarget * is
				isToR := (1 - piH) * m.Rates.ISToRBase * is

				hToD := piD * m.Rates.HToDTarget * h
				hToR := (1 - piD) * m.Rates.HToRBase * h

				dS := -newInf
				dE := newInf - eToIA - eToIP
				dIA := eToIA - iaToR
				dIP := eToIP - ipToIS
				dIS := ipToIS - isToH - isToR
				dH := isToH - hToD - hToR
				dR := iaToR + isToR + hToR
				dD := hToD

				out := node.Get(af, r, v)
				out[sIdx] = clampNonNegative(s + dS)
				out[eIdx] = clampNonNegative(e + dE)
				out[iaIdx] = clampNonNegative(ia + dIA)
				out[ipIdx] = clampNonNegative(ip + dIP)
				out[isIdx] = clampNonNegative(is + dIS)
				out[hIdx] = clampNonNegative(h + dH)
				out[rIdx] = clampNonNegative(rr + dR)
				out[dIdx] = clampNonNegative(vec[dIdx] + dD)
			}
		}
	}
}
