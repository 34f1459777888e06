package pandemicsim

import (
	rv "github.com/kentwait/randomvariate"
)

// TravelParams configures the travel coupler: a per-age mobility
// reduction and the overall commuting-participation scalar applied
// against the network's flow matrix.
type TravelParams struct {
	// FlowReduction[age] is the age-specific travel-damping denominator
	// (e.g. 10 for ages 0-4, 2 for 65+): younger and older travelers
	// contribute proportionally fewer effective contacts per unit flow
	// than the raw flow-matrix entry alone implies.
	FlowReduction []float64
	// Rho is the network-wide mobility-reduction scalar applied on top
	// of FlowReduction.
	Rho float64
	// BetaFromDestination selects which node's NPI-modulated beta governs
	// a travel exposure: the sink (true) or the source (false). The two
	// give materially different epidemic curves under targeted NPIs, so
	// the choice is a config switch rather than hard-coded.
	BetaFromDestination bool
	// AsymmetricTransmitting selects which source population drives the
	// source->sink commuting direction: the full transmitting population
	// (false), or only its asymptomatic component (true). The sink->source
	// direction always uses the full transmitting population. The two
	// definitions produce materially different epidemic curves, so this
	// is a config switch rather than hard-coded.
	AsymmetricTransmitting bool
}

// flowReductionFor returns the configured reduction for an age, or 1 (no
// reduction) if the vector is shorter than expected.
func (p *TravelParams) flowReductionFor(age int) float64 {
	if age < 0 || age >= len(p.FlowReduction) || p.FlowReduction[age] == 0 {
		return 1
	}
	return p.FlowReduction[age]
}

// StepTravel applies one day of the travel coupler to every node in
// net. For every ordered pair of distinct nodes with nonzero flow in
// either direction, it accumulates a per-susceptible-age exposure
// probability at the sink from both commuting directions: sink residents
// visiting the source and source residents visiting the sink both carry
// the source's transmitting population's infectiousness back to the sink
// (the source->sink direction optionally counting only the asymptomatic
// component, per AsymmetricTransmitting), weighted by the contact
// matrix, per-age
// susceptibility, and the age-specific flow-reduction denominator. The
// aggregate probability is then discounted by vaccine effectiveness on
// the sink's vaccinated strata, clamped to [0,1], and used to draw a
// Binomial number of new exposures per (age,risk,vax) stratum, applied
// as bulk S->E transfers.
//
// All reads (prevalence, population, susceptible counts) are taken from
// a single start-of-day pass over every node before any sink is mutated,
// so a day's travel step never lets one sink's exposures influence
// another sink's computation.
func StepTravel(net *Network, params *TravelParams, betaPerNode [][]float64, ctx *DiseaseContext) {
	ages := 0
	if len(net.Nodes) > 0 {
		ages = net.Nodes[0].Ages
	}
	n := net.Size()

	// The source->sink direction can be configured to count only the
	// asymptomatic component of the source's transmitting population;
	// sink->source always uses the full transmitting population.
	outboundMask := ctx.InfectiousMask
	if params.AsymmetricTransmitting && ctx.AsymptomaticMask != nil {
		outboundMask = ctx.AsymptomaticMask
	}

	total := make([]float64, n)
	transmittingByAge := make([][]float64, n)
	outboundByAge := make([][]float64, n)
	for i, node := range net.Nodes {
		total[i] = node.TotalPopulation()
		transmittingByAge[i] = make([]float64, ages)
		outboundByAge[i] = make([]float64, ages)
		for a := 0; a < ages; a++ {
			for r := 0; r < 2; r++ {
				for v := 0; v < 2; v++ {
					transmittingByAge[i][a] += node.TransmittingPopulation(a, r, v, ctx.InfectiousMask)
					outboundByAge[i][a] += node.TransmittingPopulation(a, r, v, outboundMask)
				}
			}
		}
	}

	probBySink := make([][]float64, n)
	for sink := 0; sink < n; sink++ {
		probBySink[sink] = make([]float64, ages)
		if total[sink] <= 0 {
			continue
		}
		for source := 0; source < n; source++ {
			if source == sink || total[source] <= 0 {
				continue
			}
			flowSinkSource := net.Flow.At(sink, source)
			flowSourceSink := net.Flow.At(source, sink)
			if flowSinkSource <= 0 && flowSourceSink <= 0 {
				continue
			}
			betaNode := source
			if params.BetaFromDestination {
				betaNode = sink
			}
			for a1 := 0; a1 < ages; a1++ {
				var beta float64
				if a1 < len(betaPerNode[betaNode]) {
					beta = betaPerNode[betaNode][a1]
				}
				if beta <= 0 {
					continue
				}
				sigma := ctx.sig(a1)
				redA1 := params.flowReductionFor(a1)

				var contactsSinkToSrc, contactsSrcToSink float64
				for a2 := 0; a2 < ages; a2++ {
					c := ctx.Contact.At(a1, a2)
					if c == 0 {
						continue
					}
					scale := beta * params.Rho * c * sigma
					if src := transmittingByAge[source][a2]; src != 0 {
						contactsSinkToSrc += src * scale / redA1
					}
					if src := outboundByAge[source][a2]; src != 0 {
						contactsSrcToSink += src * scale / params.flowReductionFor(a2)
					}
				}

				if flowSinkSource > 0 {
					probBySink[sink][a1] += flowSinkSource * contactsSinkToSrc / total[source]
				}
				if flowSourceSink > 0 {
					probBySink[sink][a1] += flowSourceSink * contactsSrcToSink / total[sink]
				}
			}
		}
	}

	type exposureDraw struct {
		sink, age, risk, vax int
		count                float64
	}
	var draws []exposureDraw
	for sink := 0; sink < n; sink++ {
		node := net.Nodes[sink]
		sIdx := node.Compartments.MustIndex("S")
		for a := 0; a < ages; a++ {
			p := probBySink[sink][a]
			if p <= 0 {
				continue
			}
			for r := 0; r < 2; r++ {
				for v := 0; v < 2; v++ {
					pv := p
					if v == VaxVaccinated {
						pv *= 1 - ctx.VE(a)
					}
					pv = clampProb(pv)
					if pv <= 0 {
						continue
					}
					count := node.Count(a, r, v, sIdx)
					k := int(count + 0.5)
					if k <= 0 {
						continue
					}
					exposed := rv.Binomial(k, pv)
					if exposed <= 0 {
						continue
					}
					draws = append(draws, exposureDraw{sink: sink, age: a, risk: r, vax: v, count: float64(exposed)})
				}
			}
		}
	}

	for _, d := range draws {
		net.Nodes[d.sink].ExposeBulk(d.age, d.risk, d.vax, d.count)
	}
}
