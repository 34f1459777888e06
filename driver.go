package pandemicsim

import (
	"math"
	"sync"
)

// Realization bundles one realization's owned, mutable state: its own
// copy of the network, its own RNG, and the disease engine/travel/
// vaccine policy it was configured with. A realization is deterministic
// given its seed; no state here is ever shared with another realization.
type Realization struct {
	Index    int
	Net      *Network
	RNG      *RNG
	Engine   DiseaseEngine
	Ctx      *DiseaseContext
	Travel   *TravelParams
	Vaccine  *VaccinePolicy
	NPI      *NPICube
	BaseBeta []float64 // baseline beta per age, before NPI

	// EarlyStopTolerance is the Σ(E ∪ transmitting) threshold below
	// which the realization halts early; reference
	// value is 1.0.
	EarlyStopTolerance float64

	// StockpileSchedule maps simulation day to network-wide doses newly
	// available that day, from the configured vaccine_model. A
	// nil/empty schedule means no new doses ever arrive and only
	// rolled-over stockpile is distributed.
	StockpileSchedule map[int]float64

	// OnDay, if set, is called after each day's snapshot is taken
	// (vaccinate -> disease -> travel -> snapshot -> early-stop), for
	// the output writer to consume without the driver depending on any
	// particular output format.
	OnDay func(day int, net *Network)
}

// Run executes one realization for up to days days. Each day runs in a
// fixed order: network vaccine allocation, per-node node-level vaccine
// allocation and disease step (optionally concurrent across nodes),
// travel coupling, snapshot, early-stop check. Day 0 is a
// vaccine-allocation-and-snapshot step only, with no disease or travel
// step, so the initial state is on record before day 1 runs.
func (real *Realization) Run(days int, concurrentNodes bool) {
	if real.Vaccine != nil {
		real.allocateDay(0)
	}
	if real.OnDay != nil {
		real.OnDay(0, real.Net)
	}

	for day := 1; day <= days; day++ {
		if real.Vaccine != nil {
			real.allocateDay(day)
		}

		betaPerNode := make([][]float64, real.Net.Size())
		if concurrentNodes {
			var wg sync.WaitGroup
			for i, node := range real.Net.Nodes {
				beta := real.nodeBeta(day, i)
				betaPerNode[i] = beta
				wg.Add(1)
				go func(node *Node, beta []float64) {
					defer wg.Done()
					real.Engine.Step(node, day, beta, real.Ctx)
				}(node, beta)
			}
			wg.Wait()
		} else {
			for i, node := range real.Net.Nodes {
				beta := real.nodeBeta(day, i)
				betaPerNode[i] = beta
				real.Engine.Step(node, day, beta, real.Ctx)
			}
		}

		StepTravel(real.Net, real.Travel, betaPerNode, real.Ctx)

		if real.OnDay != nil {
			real.OnDay(day, real.Net)
		}

		if real.shouldStop() {
			break
		}
	}
}

// nodeBeta computes the NPI-adjusted beta vector for one node on one day
// from the realization's configured baseline beta per age. The day-d step
// reads the schedule slot for the previous day (day 0 reads slot 0), so
// an intervention scheduled on day d first affects the step that advances
// the network from day d to day d+1.
func (real *Realization) nodeBeta(day, node int) []float64 {
	slot := day - 1
	if slot < 0 {
		slot = 0
	}
	return BetaWithNPI(real.BaseBeta, real.NPI, slot, node)
}

func (real *Realization) allocateDay(day int) {
	netAlloc := AllocateNetworkToNode(real.Net, real.stockpileForDay(day), real.Vaccine)
	for i, node := range real.Net.Nodes {
		available := node.Stockpile[day] + netAlloc[i]
		// Half-life decay applies to today's combined stockpile (rollover
		// plus today's fresh delivery) before administration, except on
		// day 0 which is delivered undecayed.
		if day > 0 {
			available *= real.Vaccine.RolloverDecay()
		}
		_, rollover := AllocateNodeToStrata(node, available, real.Vaccine)
		// Sub-integer doses left over from decay are discarded rather
		// than rolled forward.
		if whole := math.Floor(rollover); whole >= 1 {
			node.Stockpile[day+1] += whole
		}
	}
}

// stockpileForDay returns the network-wide doses newly available on day,
// from the configured StockpileSchedule.
func (real *Realization) stockpileForDay(day int) float64 {
	return real.StockpileSchedule[day]
}

// shouldStop implements the early-termination predicate: the run halts
// once total E-plus-transmitting population across the whole network
// falls below EarlyStopTolerance.
func (real *Realization) shouldStop() bool {
	if real.EarlyStopTolerance <= 0 {
		return false
	}
	eIdx, hasE := real.Net.Nodes[0].Compartments.Index("E")
	if !hasE {
		return false
	}
	var total float64
	for _, node := range real.Net.Nodes {
		for a := 0; a < node.Ages; a++ {
			for r := 0; r < 2; r++ {
				for v := 0; v < 2; v++ {
					total += node.Count(a, r, v, eIdx)
					total += node.TransmittingPopulation(a, r, v, real.Ctx.InfectiousMask)
				}
			}
		}
	}
	return total < real.EarlyStopTolerance
}
