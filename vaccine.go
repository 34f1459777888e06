package pandemicsim

import (
	"math"
	"sort"
)

// VaccineStockpile describes one day's network-wide vaccine delivery,
// before it has been split across nodes or strata.
type VaccineStockpile struct {
	Day   int
	Doses float64
}

// VaccinePolicy configures the two-stage allocator: network->node
// largest-remainder rounding, then node->strata
// allocation subject to a per-age priority, an adherence ceiling, a
// per-day capacity fraction, and half-life decay of the stockpile.
type VaccinePolicy struct {
	// Priority[age] is the eligibility query's priority vector: 0
	// excludes the age group, 0.5 restricts to high-risk only, 1 admits
	// both risk groups.
	Priority []float64
	// AdherenceCeiling caps cumulative doses in an (age,risk) group at
	// this fraction of its t=0 population.
	AdherenceCeiling float64
	// CapacityFraction caps a node's doses administered in a single day
	// at this fraction of the node's total population.
	CapacityFraction float64
	// HalfLifeDays is the decay half-life applied each day after day 0
	// to a node's whole available stockpile (rollover plus that day's
	// new allocation); 0 disables decay.
	HalfLifeDays float64
	// EfficacyLagDays is added to each stockpile entry's day to give the
	// day its doses become available; applied when the stockpile
	// schedule is built, not consumed directly by the allocator.
	EfficacyLagDays int
}

// RolloverDecay returns the multiplicative one-day decay applied to a
// node's available stockpile: 2^(-1/HalfLifeDays), or 1 if decay is
// disabled.
func (p *VaccinePolicy) RolloverDecay() float64 {
	if p.HalfLifeDays <= 0 {
		return 1
	}
	return math.Pow(2, -1.0/p.HalfLifeDays)
}

// AllocateNetworkToNode splits doses across nodes in proportion to each
// node's share of total eligible population, using largest-remainder
// rounding so the per-node allocations sum exactly to doses.
func AllocateNetworkToNode(net *Network, doses float64, policy *VaccinePolicy) []float64 {
	n := net.Size()
	eligible := make([]float64, n)
	var total float64
	for i, node := range net.Nodes {
		_, sum := node.EligibilityQuery(policy.Priority, true, false)
		eligible[i] = sum
		total += sum
	}
	alloc := make([]float64, n)
	if total <= 0 {
		return alloc
	}

	type remainder struct {
		idx int
		r   float64
	}
	rems := make([]remainder, n)
	var flooredSum float64
	for i := range alloc {
		exact := doses * eligible[i] / total
		floor := math.Floor(exact)
		alloc[i] = floor
		flooredSum += floor
		rems[i] = remainder{idx: i, r: exact - floor}
	}
	remaining := int64(doses - flooredSum)
	sort.Slice(rems, func(a, b int) bool { return rems[a].r > rems[b].r })
	for i := int64(0); i < remaining && int(i) < len(rems); i++ {
		alloc[rems[i].idx]++
	}
	return alloc
}

// AllocateNodeToStrata distributes one node's daily dose allocation across
// its (age,risk) groups: expected allocation is pro-rated by each group's
// headroom share of the total, floored to an integer, and the leftover
// from flooring is handed out one dose at a time to the groups with the
// largest fractional remainder, subject to their own headroom ceiling.
// It returns the doses actually administered
// per (age,risk) and the unused remainder to roll over to the next day.
func AllocateNodeToStrata(node *Node, dosesAvailable float64, policy *VaccinePolicy) (administered [][2]float64, rollover float64) {
	administered = make([][2]float64, node.Ages)
	// Capacity is a fraction of the node's total population, not of
	// however much stockpile happens to be on hand that day.
	capacity := math.Floor(policy.CapacityFraction * node.TotalPopulation())
	if capacity > dosesAvailable {
		capacity = dosesAvailable
	}

	type headroomGroup struct {
		age, risk int
		headroom  float64
	}
	groups, _ := node.EligibilityQuery(policy.Priority, true, true)
	hgs := make([]headroomGroup, 0, len(groups))
	var totalHeadroom float64
	for _, g := range groups {
		ceiling := node.InitialPopulation(g.Age, g.Risk) * policy.AdherenceCeiling
		headroom := ceiling - node.CumulativeVaccinated(g.Age, g.Risk)
		if headroom > g.Count {
			headroom = g.Count
		}
		if headroom <= 0 {
			continue
		}
		hgs = append(hgs, headroomGroup{age: g.Age, risk: g.Risk, headroom: headroom})
		totalHeadroom += headroom
	}

	const eps = 1e-9
	if totalHeadroom <= eps {
		return administered, dosesAvailable
	}

	doses := math.Min(capacity, totalHeadroom)

	type allocRow struct {
		age, risk        int
		floor, remainder float64
		headroom         float64
	}
	rows := make([]allocRow, len(hgs))
	var flooredSum float64
	for i, hg := range hgs {
		exact := doses * hg.headroom / totalHeadroom
		floor := math.Floor(exact)
		rows[i] = allocRow{age: hg.age, risk: hg.risk, floor: floor, remainder: exact - floor, headroom: hg.headroom}
		flooredSum += floor
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return rows[order[a]].remainder > rows[order[b]].remainder })
	leftover := doses - flooredSum
	for _, oi := range order {
		if leftover < 1 {
			break
		}
		r := &rows[oi]
		if r.floor+1 <= r.headroom {
			r.floor++
			leftover--
		}
	}

	var administeredTotal float64
	for _, r := range rows {
		if r.floor <= 0 {
			continue
		}
		node.Vaccinate(r.age, r.risk, r.floor)
		node.AddCumulativeVaccinated(r.age, r.risk, r.floor)
		administered[r.age][r.risk] += r.floor
		administeredTotal += r.floor
	}

	rollover = dosesAvailable - administeredTotal
	return administered, rollover
}
