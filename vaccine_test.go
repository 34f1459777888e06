package pandemicsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVaccineTestNetwork(t *testing.T) *Network {
	t.Helper()
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	a := NewNode(0, "a", "00001", 1, cs)
	a.Set(0, RiskLow, VaxUnvaccinated, []float64{700, 0, 0, 0})
	a.Set(0, RiskHigh, VaxUnvaccinated, []float64{300, 0, 0, 0})
	a.SeedInitialPopulation()

	b := NewNode(1, "b", "00002", 1, cs)
	b.Set(0, RiskLow, VaxUnvaccinated, []float64{300, 0, 0, 0})
	b.SeedInitialPopulation()

	flow := NewFlowMatrix(2)
	net, err := NewNetwork([]*Node{a, b}, flow)
	require.NoError(t, err)
	return net
}

func TestAllocateNetworkToNode_SumsExactlyToDoses(t *testing.T) {
	net := newVaccineTestNetwork(t)
	policy := &VaccinePolicy{Priority: []float64{1}}

	alloc := AllocateNetworkToNode(net, 777, policy)

	var sum float64
	for _, a := range alloc {
		sum += a
	}
	assert.Equal(t, 777.0, sum, "largest-remainder rounding must conserve the total dose count exactly")
}

func TestAllocateNetworkToNode_ZeroEligiblePopulationGivesZero(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "a", "00001", 1, cs)
	n.SeedInitialPopulation()
	net, err := NewNetwork([]*Node{n}, NewFlowMatrix(1))
	require.NoError(t, err)

	alloc := AllocateNetworkToNode(net, 100, &VaccinePolicy{Priority: []float64{1}})
	assert.Equal(t, []float64{0}, alloc)
}

func TestAllocateNodeToStrata_RespectsAdherenceCeiling(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "a", "00001", 1, cs)
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{1000, 0, 0, 0})
	n.SeedInitialPopulation()

	policy := &VaccinePolicy{Priority: []float64{1}, AdherenceCeiling: 0.5, CapacityFraction: 1.0}
	administered, _ := AllocateNodeToStrata(n, 2000, policy)

	assert.InDelta(t, 500.0, administered[0][RiskLow], 1e-6, "ceiling of 0.5 over 1000 people caps doses at 500")
	assert.InDelta(t, 500.0, n.CumulativeVaccinated(0, RiskLow), 1e-6)
}

func TestAllocateNodeToStrata_CapacityFractionLimitsDailyDoses(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "a", "00001", 1, cs)
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{1000, 0, 0, 0})
	n.SeedInitialPopulation()

	policy := &VaccinePolicy{Priority: []float64{1}, AdherenceCeiling: 1.0, CapacityFraction: 0.1}
	administered, rollover := AllocateNodeToStrata(n, 1000, policy)

	assert.InDelta(t, 100.0, administered[0][RiskLow], 1e-6)
	assert.InDelta(t, 900.0, rollover, 1e-6)
}

func TestAllocateNodeToStrata_CapacityIsFractionOfPopulationNotDoses(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "a", "00001", 1, cs)
	// A 100-person node with a much larger stockpile on hand: the
	// capacity cap must still bind at 10% of the 100-person population
	// (10 doses), not 10% of the 1000-dose stockpile (100 doses).
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{100, 0, 0, 0})
	n.SeedInitialPopulation()

	policy := &VaccinePolicy{Priority: []float64{1}, AdherenceCeiling: 1.0, CapacityFraction: 0.1}
	administered, rollover := AllocateNodeToStrata(n, 1000, policy)

	assert.InDelta(t, 10.0, administered[0][RiskLow], 1e-6)
	assert.InDelta(t, 990.0, rollover, 1e-6)
}

func TestAllocateNodeToStrata_PriorityExcludesAge(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "a", "00001", 2, cs)
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{500, 0, 0, 0})
	n.Set(1, RiskLow, VaxUnvaccinated, []float64{500, 0, 0, 0})
	n.SeedInitialPopulation()

	policy := &VaccinePolicy{Priority: []float64{1, 0}, AdherenceCeiling: 1.0, CapacityFraction: 1.0}
	administered, _ := AllocateNodeToStrata(n, 1000, policy)

	assert.Greater(t, administered[0][RiskLow], 0.0)
	assert.Equal(t, 0.0, administered[1][RiskLow], "priority 0 excludes age group 1 entirely")
}

func TestAllocateNodeToStrata_ProRatesByHeadroomShare(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "a", "00001", 2, cs)
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{300, 0, 0, 0})
	n.Set(1, RiskLow, VaxUnvaccinated, []float64{100, 0, 0, 0})
	n.SeedInitialPopulation()

	// Headroom is 300 and 100 (adherence 1.0, nobody vaccinated yet), so
	// 40 doses split 3:1 by headroom share, not by priority-list order.
	policy := &VaccinePolicy{Priority: []float64{1, 1}, AdherenceCeiling: 1.0, CapacityFraction: 1.0}
	administered, rollover := AllocateNodeToStrata(n, 40, policy)

	assert.InDelta(t, 30.0, administered[0][RiskLow], 1e-6)
	assert.InDelta(t, 10.0, administered[1][RiskLow], 1e-6)
	assert.InDelta(t, 0.0, rollover, 1e-6)
}

func TestAllocateNodeToStrata_AdherenceLimitsTotalAndRollsRemainder(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)
	n := NewNode(0, "a", "00001", 1, cs)
	n.Set(0, RiskLow, VaxUnvaccinated, []float64{100, 0, 0, 0})
	n.SeedInitialPopulation()

	policy := &VaccinePolicy{Priority: []float64{1}, AdherenceCeiling: 0.5, CapacityFraction: 1.0}
	administered, rollover := AllocateNodeToStrata(n, 60, policy)

	assert.InDelta(t, 50.0, administered[0][RiskLow], 1e-6, "adherence 0.5 on 100 people caps at 50")
	assert.InDelta(t, 10.0, rollover, 1e-6, "the 10 doses over the ceiling roll to day 1")
}

func TestVaccinePolicy_RolloverDecay(t *testing.T) {
	p := &VaccinePolicy{HalfLifeDays: 7}
	d := p.RolloverDecay()
	assert.Less(t, d, 1.0)
	assert.Greater(t, d, 0.0)

	none := &VaccinePolicy{}
	assert.Equal(t, 1.0, none.RolloverDecay())
}
