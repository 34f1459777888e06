package pandemicsim

// Risk and vaccination axis indices. Age is a dense 0..A-1 range supplied
// by the caller; risk and vax are always binary
const (
	RiskLow  = 0
	RiskHigh = 1

	VaxUnvaccinated = 0
	VaxVaccinated   = 1
)

// Stratum identifies one (age, risk, vax) row of the compartment tensor.
type Stratum struct {
	Age  int
	Risk int
	Vax  int
}

// EligibleGroup is one row of an eligibility query's result: a stratum's
// age/risk pair together with the count the query matched.
type EligibleGroup struct {
	Age   int
	Risk  int
	Count float64
}

// Node owns one location's compartment tensor. Counts are indexed
// (age, risk, vax, compartment) and stored as a single dense slice so the
// deterministic engine's per-stratum Euler update never allocates.
//
// A Node additionally carries the bookkeeping the vaccine allocator and
// stochastic engine need: the initial per-(age,risk) population (for the
// adherence ceiling), the t=0 group-share cache, the per-(age,risk) cumulative
// vaccination count, and a day-indexed stockpile timeline. The stochastic
// engine's event queue and contact counters live in the separate Stoch
// field so the deterministic engine carries no unused weight.
type Node struct {
	Index  int
	ID     string
	FIPSID string

	Ages         int
	Compartments *CompartmentSet

	tensor []float64

	// initialPop[age][risk] is the population of that (age,risk) pair,
	// summed over vax and all compartments, at t=0. Immutable after
	// construction; used for the adherence ceiling.
	initialPop [][2]float64

	// groupShare[age][risk][vax] is that stratum's fraction of the
	// node's total t=0 population. Immutable after construction; used
	// by the stochastic contact-event generator.
	groupShare [][2][2]float64

	// cumVax[age][risk] counts doses ever delivered in that (age,risk)
	// pair, for the adherence ceiling.
	cumVax [][2]float64

	// Stockpile maps simulation day to doses available to this node on
	// that day (allocator-private; populated by the network->node
	// allocation stage and consumed/rolled forward by the node->strata
	// stage).
	Stockpile map[int]float64

	// Stoch holds event-queue and contact-bookkeeping state used only
	// by the stochastic (Gillespie-style) disease engine. Nil for nodes
	// only ever advanced by the deterministic engine.
	Stoch *StochasticState
}

// NewNode allocates a node with Ages age groups over the given
// compartment set, all strata initialized to zero.
func NewNode(index int, id, fipsID string, ages int, cs *CompartmentSet) *Node {
	n := &Node{
		Index:        index,
		ID:           id,
		FIPSID:       fipsID,
		Ages:         ages,
		Compartments: cs,
		tensor:       make([]float64, ages*2*2*cs.Len()),
		initialPop:   make([][2]float64, ages),
		groupShare:   make([][2][2]float64, ages),
		cumVax:       make([][2]float64, ages),
		Stockpile:    make(map[int]float64),
	}
	return n
}

// base returns the offset of stratum (age,risk,vax)'s compartment block.
func (n *Node) base(age, risk, vax int) int {
	return ((age*2+risk)*2 + vax) * n.Compartments.Len()
}

// Get returns the compartment vector for a stratum. The returned slice
// aliases the node's tensor; callers that need a stable copy should clone
// it (used for the deterministic engine's per-day read snapshot).
func (n *Node) Get(age, risk, vax int) []float64 {
	b := n.base(age, risk, vax)
	return n.tensor[b : b+n.Compartments.Len()]
}

// Set overwrites a stratum's compartment vector in place.
func (n *Node) Set(age, risk, vax int, values []float64) {
	copy(n.Get(age, risk, vax), values)
}

// Snapshot returns an independent copy of the whole tensor. The
// deterministic engine reads every source stratum from a single day-start
// snapshot while writing focal-stratum updates to the live tensor, so
// that derivatives for every stratum are computed against the same
// start-of-day state.
func (n *Node) Snapshot() []float64 {
	return append([]float64(nil), n.tensor...)
}

// SnapshotGet reads a stratum's compartment vector out of a snapshot
// produced by Snapshot, using this node's own indexing.
func (n *Node) SnapshotGet(snap []float64, age, risk, vax int) []float64 {
	b := n.base(age, risk, vax)
	return snap[b : b+n.Compartments.Len()]
}

// Count returns a single compartment's count in a stratum.
func (n *Node) Count(age, risk, vax, comp int) float64 {
	return n.tensor[n.base(age, risk, vax)+comp]
}

// Add adds delta to a single compartment, clamping the result at 0 so no
// count ever goes negative.
func (n *Node) Add(age, risk, vax, comp int, delta float64) {
	i := n.base(age, risk, vax) + comp
	v := n.tensor[i] + delta
	if v < 0 {
		v = 0
	}
	n.tensor[i] = v
}

// Transfer moves k individuals from one compartment to another within the
// same stratum, clamping k at the source count so it never goes negative.
// This is the primitive behind initial seeding and travel bulk
// exposures (S->E); vaccination uses Vaccinate instead.
func (n *Node) Transfer(age, risk, vax, from, to int, k float64) float64 {
	b := n.base(age, risk, vax)
	if k > n.tensor[b+from] {
		k = n.tensor[b+from]
	}
	if k <= 0 {
		return 0
	}
	n.tensor[b+from] -= k
	n.tensor[b+to] += k
	return k
}

// Vaccinate moves k susceptibles from the unvaccinated to the vaccinated
// stratum at the same (age,risk), clamping k at the unvaccinated S count.
// Used by the node->strata vaccine allocator; doses
// change vax status, not compartment, so this crosses the vax axis rather
// than going through Transfer (which stays within one stratum).
func (n *Node) Vaccinate(age, risk int, k float64) float64 {
	sIdx := n.Compartments.MustIndex("S")
	bFrom := n.base(age, risk, VaxUnvaccinated)
	if k > n.tensor[bFrom+sIdx] {
		k = n.tensor[bFrom+sIdx]
	}
	if k <= 0 {
		return 0
	}
	bTo := n.base(age, risk, VaxVaccinated)
	n.tensor[bFrom+sIdx] -= k
	n.tensor[bTo+sIdx] += k
	return k
}

// ExposeBulk moves k susceptibles directly to Exposed in one stratum. Used
// by the travel coupler and by initial-infection seeding; it performs
// no per-individual scheduling itself; the stochastic engine's expose
// method wraps this to additionally enqueue events.
func (n *Node) ExposeBulk(age, risk, vax int, k float64) float64 {
	s := n.Compartments.MustIndex("S")
	e := n.Compartments.MustIndex("E")
	return n.Transfer(age, risk, vax, s, e, k)
}

// TransmittingPopulation returns Σ_c weights[c]·count_c for one stratum.
// weights is a dense per-compartment vector (see CompartmentSet.Weights).
func (n *Node) TransmittingPopulation(age, risk, vax int, weights []float64) float64 {
	vec := n.Get(age, risk, vax)
	var sum float64
	for c, w := range weights {
		if w != 0 {
			sum += w * vec[c]
		}
	}
	return sum
}

// StratumTotal sums every compartment in one stratum (total population of
// that age/risk/vax, including any Death compartment).
func (n *Node) StratumTotal(age, risk, vax int) float64 {
	vec := n.Get(age, risk, vax)
	var sum float64
	for _, v := range vec {
		sum += v
	}
	return sum
}

// TotalPopulation sums every stratum's total, i.e. the whole node.
func (n *Node) TotalPopulation() float64 {
	var sum float64
	for _, v := range n.tensor {
		sum += v
	}
	return sum
}

// AgeRiskTotal sums a compartment across both vax strata for one (age,risk).
func (n *Node) AgeRiskTotal(age, risk, comp int) float64 {
	return n.Count(age, risk, VaxUnvaccinated, comp) + n.Count(age, risk, VaxVaccinated, comp)
}

// Strata enumerates every (age,risk,vax) triple in canonical lexicographic
// order.
func (n *Node) Strata() []Stratum {
	out := make([]Stratum, 0, n.Ages*4)
	for a := 0; a < n.Ages; a++ {
		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				out = append(out, Stratum{Age: a, Risk: r, Vax: v})
			}
		}
	}
	return out
}

// SeedInitialPopulation records age,risk totals and the t=0 group-share
// cache from the current tensor contents. Must be called exactly once,
// immediately after the node's population is loaded and before any
// simulation day runs, since both caches are frozen thereafter.
func (n *Node) SeedInitialPopulation() {
	total := n.TotalPopulation()
	for a := 0; a < n.Ages; a++ {
		for r := 0; r < 2; r++ {
			n.initialPop[a][r] = n.StratumTotal(a, r, VaxUnvaccinated) + n.StratumTotal(a, r, VaxVaccinated)
			for v := 0; v < 2; v++ {
				if total > 0 {
					n.groupShare[a][r][v] = n.StratumTotal(a, r, v) / total
				}
			}
		}
	}
}

// GroupShare returns the immutable t=0 population share of one stratum.
func (n *Node) GroupShare(age, risk, vax int) float64 {
	return n.groupShare[age][risk][vax]
}

// InitialPopulation returns the (age,risk) population recorded at t=0,
// summed over vax and compartments, the adherence-ceiling denominator.
func (n *Node) InitialPopulation(age, risk int) float64 {
	return n.initialPop[age][risk]
}

// CumulativeVaccinated returns doses ever delivered in (age,risk).
func (n *Node) CumulativeVaccinated(age, risk int) float64 {
	return n.cumVax[age][risk]
}

// AddCumulativeVaccinated records newly delivered doses against the
// adherence ceiling for (age,risk).
func (n *Node) AddCumulativeVaccinated(age, risk int, doses float64) {
	n.cumVax[age][risk] += doses
}

// EligibilityQuery answers the vaccine allocator's "who can still be
// vaccinated here" question: given a per-age priority vector (0 =
// excluded, 0.5 = high-risk only, 1 = all risks) and optional
// unvaccinated/susceptible filters,
// return one EligibleGroup per matching (age,risk) and the scalar sum.
func (n *Node) EligibilityQuery(priority []float64, onlyUnvaccinated, onlySusceptible bool) ([]EligibleGroup, float64) {
	var groups []EligibleGroup
	var total float64
	sIdx := -1
	if onlySusceptible {
		sIdx = n.Compartments.MustIndex("S")
	}
	for a := 0; a < n.Ages && a < len(priority); a++ {
		p := priority[a]
		if p <= 0 {
			continue
		}
		risks := []int{RiskLow, RiskHigh}
		if p < 1 {
			risks = []int{RiskHigh}
		}
		for _, r := range risks {
			var count float64
			if onlyUnvaccinated {
				count = n.strataCount(a, r, VaxUnvaccinated, sIdx)
			} else {
				count = n.strataCount(a, r, VaxUnvaccinated, sIdx) + n.strataCount(a, r, VaxVaccinated, sIdx)
			}
			groups = append(groups, EligibleGroup{Age: a, Risk: r, Count: count})
			total += count
		}
	}
	return groups, total
}

// strataCount returns either the single compartment count (onlySusceptible,
// compIdx >= 0) or the full stratum total.
func (n *Node) strataCount(age, risk, vax, compIdx int) float64 {
	if compIdx >= 0 {
		return n.Count(age, risk, vax, compIdx)
	}
	return n.StratumTotal(age, risk, vax)
}

// Clone deep-copies the node's tensor, t=0 caches, and stockpile. The
// clone's cumulative vaccination counts start at zero, and stochastic
// state, if present, is replaced by a fresh empty one (cloneEmpty). Used
// once per realization to derive a
// mutable working copy from the pristine initial network.
func (n *Node) Clone() *Node {
	c := &Node{
		Index:        n.Index,
		ID:           n.ID,
		FIPSID:       n.FIPSID,
		Ages:         n.Ages,
		Compartments: n.Compartments,
		tensor:       append([]float64(nil), n.tensor...),
		initialPop:   append([][2]float64(nil), n.initialPop...),
		groupShare:   append([][2][2]float64(nil), n.groupShare...),
		cumVax:       make([][2]float64, n.Ages),
		Stockpile:    make(map[int]float64, len(n.Stockpile)),
	}
	for day, doses := range n.Stockpile {
		c.Stockpile[day] = doses
	}
	if n.Stoch != nil {
		c.Stoch = n.Stoch.cloneEmpty()
	}
	return c
}
