package pandemicsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriverFixture(t *testing.T) *Realization {
	t.Helper()
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)

	n := NewNode(0, "n0", "00001", 1, cs)
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{990, 0, 10, 0})
	n.SeedInitialPopulation()

	net, err := NewNetwork([]*Node{n}, NewFlowMatrix(1))
	require.NoError(t, err)

	contact, err := NewContactMatrix(1, [][]float64{{1}})
	require.NoError(t, err)

	npi, err := BuildNPICube(nil, 366, net, 1)
	require.NoError(t, err)

	engine := &SEIRSDeterministic{Rates: NewRateSetSEIRS(2, 5, 0)}
	ctx := &DiseaseContext{
		Contact:        contact,
		Sigma:          []float64{1},
		VaccineEff:     []float64{0},
		InfectiousMask: cs.Weights(map[string]float64{"I": 1}),
		RNG:            NewRNG(1),
	}

	return &Realization{
		Index:              1,
		Net:                net,
		RNG:                NewRNG(1),
		Engine:             engine,
		Ctx:                ctx,
		Travel:             &TravelParams{FlowReduction: []float64{1}, Rho: 1},
		NPI:                npi,
		BaseBeta:           []float64{0.3},
		EarlyStopTolerance: 1.0,
	}
}

func TestRealization_RunAdvancesDays(t *testing.T) {
	real := newDriverFixture(t)
	var daysObserved []int
	real.OnDay = func(day int, net *Network) { daysObserved = append(daysObserved, day) }

	real.Run(10, false)

	assert.NotEmpty(t, daysObserved)
	assert.Equal(t, 0, daysObserved[0], "day 0 always snapshots before any disease step")
}

func TestRealization_EarlyStopHaltsBeforeHorizon(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "n0", "00001", 1, cs)
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{1000, 0, 0, 0}) // no infection seeded at all
	n.SeedInitialPopulation()
	net, err := NewNetwork([]*Node{n}, NewFlowMatrix(1))
	require.NoError(t, err)
	contact, err := NewContactMatrix(1, [][]float64{{1}})
	require.NoError(t, err)
	npi, err := BuildNPICube(nil, 366, net, 1)
	require.NoError(t, err)

	engine := &SEIRSDeterministic{Rates: NewRateSetSEIRS(2, 5, 0)}
	ctx := &DiseaseContext{Contact: contact, Sigma: []float64{1}, VaccineEff: []float64{0}, InfectiousMask: cs.Weights(map[string]float64{"I": 1}), RNG: NewRNG(1)}

	real := &Realization{
		Net: net, RNG: NewRNG(1), Engine: engine, Ctx: ctx,
		Travel: &TravelParams{FlowReduction: []float64{1}, Rho: 1},
		NPI: npi, BaseBeta: []float64{0.3}, EarlyStopTolerance: 1.0,
	}

	var lastDay int
	real.OnDay = func(day int, net *Network) { lastDay = day }
	real.Run(365, false)

	assert.Less(t, lastDay, 365, "with zero seeded infection the early-stop predicate must fire well before the horizon")
}

func TestRealization_ConcurrentNodesMatchesSequential(t *testing.T) {
	seqReal := newDriverFixture(t)
	seqReal.Run(30, false)
	seqE := seqReal.Net.Nodes[0].Count(0, RiskLow, VaxUnvaccinated, seqReal.Net.Nodes[0].Compartments.MustIndex("E"))

	concReal := newDriverFixture(t)
	concReal.Run(30, true)
	concE := concReal.Net.Nodes[0].Count(0, RiskLow, VaxUnvaccinated, concReal.Net.Nodes[0].Compartments.MustIndex("E"))

	// A single-node network has no travel coupling effect, so the
	// concurrent and sequential per-node code paths must agree exactly.
	assert.InDelta(t, seqE, concE, 1e-9)
}

func TestRealization_NodeBetaLagsScheduleByOneDay(t *testing.T) {
	real := newDriverFixture(t)
	records := []NPIRecord{{Day: 0, Duration: 2, Location: "0", Effectiveness: []float64{0.9}}}
	npi, err := BuildNPICube(records, 366, real.Net, 1)
	require.NoError(t, err)
	real.NPI = npi

	baseline := real.BaseBeta[0]
	// The step advancing the network into day d reads schedule slot d-1,
	// so an intervention on slots 0..1 shapes the steps for days 1 and 2
	// and expires at the day-3 step.
	assert.InDelta(t, 0.1*baseline, real.nodeBeta(1, 0)[0], 1e-12)
	assert.InDelta(t, 0.1*baseline, real.nodeBeta(2, 0)[0], 1e-12)
	assert.InDelta(t, baseline, real.nodeBeta(3, 0)[0], 1e-12)
}
