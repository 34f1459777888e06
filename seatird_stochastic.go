package pandemicsim

import (
	"container/heap"
	"math"
)

// eventKind enumerates the compartment transitions the stochastic SEATIRD
// engine schedules. CONTACT is the odd one out: its destination stratum is
// carried on the event itself rather than implied by kind, since a single
// individual generates a whole contact stream across many destinations.
type eventKind int

const (
	eventContact eventKind = iota
	eventEtoA
	eventAtoT
	eventAtoR
	eventAtoD
	eventTtoI
	eventTtoR
	eventTtoD
	eventItoR
	eventItoD
)

// individualSchedule is one exposed individual's pre-sampled trajectory
// through A/T/I, drawn once at exposure (or, for population already in
// A/T/I when bootstrapped, at the stage it's discovered in). Competing
// exits are drawn up front so firing one transition only has to pick the
// earliest remaining branch rather than re-drawing.
type individualSchedule struct {
	ta, tt, ti float64
	tdA, trA   float64
	tdTI, trTI float64
	// exitAsym is min(tdA,trA), or +Inf if tt (the A->T branch) precedes
	// it, in which case the direct-exit-from-A branch is moot.
	exitAsym float64
	// trdAti is the contact-generation horizon: min(exitAsym, min(tdTI,trTI)).
	trdAti float64
}

// scheduledEvent is one pending event: a transition for one individual
// (sched non-nil, chained to the next stage when it fires) or a contact
// probe from one individual's stream toward a destination stratum.
type scheduledEvent struct {
	initTime                   float64
	time                       float64
	kind                       eventKind
	age, risk, vax             int // individual's own stratum
	destAge, destRisk, destVax int // CONTACT only: the probed stratum
	sched                      *individualSchedule
}

// eventQueue is a min-heap of scheduledEvent ordered by fire time,
// implementing container/heap.Interface. The pack carries no dedicated
// priority-queue library, and a binary heap over a slice is the idiomatic
// stdlib tool for this.
type eventQueue []scheduledEvent

func (q eventQueue) Len() int            { return len(q) }
func (q eventQueue) Less(i, j int) bool  { return q[i].time < q[j].time }
func (q eventQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(scheduledEvent)) }
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// stratumKey and compartmentKey are the map keys used for the per-day and
// cross-day bookkeeping below. Go allows array types as map keys, which
// keeps this free of manual hashing.
type stratumKey [3]int
type compartmentKey [4]int

// StochasticState carries the Gillespie-style event queue and bookkeeping
// for one node's stochastic disease engine. It is
// nil on nodes that only ever run under a deterministic engine.
type StochasticState struct {
	queue eventQueue

	// pending[age,risk,vax,compartment] counts individuals currently in
	// that compartment who already have an outstanding event scheduled
	// to move them out of it. It persists across days (unlike the
	// per-day counters below) so that Step can detect population that
	// arrived in E/A/T/I without going through expose (the initial
	// tensor seed, or a travel-driven ExposeBulk) and bootstrap a
	// schedule for it.
	pending map[compartmentKey]float64

	// initialCount is the per-day start-of-day snapshot used by
	// keep_event's Bernoulli denominator.
	initialCount map[compartmentKey]float64
	// unqueuedEvent[g,c] accumulates, over the day, transition events
	// discarded as stale for source compartment c in stratum g.
	unqueuedEvent map[compartmentKey]float64
	// contactRemaining[g] is the count of today's still-unprocessed
	// CONTACT events whose origin stratum is g.
	contactRemaining map[stratumKey]float64
	// unqueuedContact[g] accumulates today's discarded-as-stale contacts
	// originating from g.
	unqueuedContact map[stratumKey]float64

	// ContactCounter, UnqueuedContactCounter and UnqueuedEventCounter are
	// lifetime diagnostics: contacts accepted, contacts discarded as
	// stale, and transition events discarded as stale.
	ContactCounter         int64
	UnqueuedContactCounter int64
	UnqueuedEventCounter   int64
}

// NewStochasticState returns an empty event queue ready for day 0.
func NewStochasticState() *StochasticState {
	s := &StochasticState{pending: make(map[compartmentKey]float64)}
	heap.Init(&s.queue)
	return s
}

// cloneEmpty returns a fresh StochasticState for a cloned node. The event
// queue and pending-schedule bookkeeping are realization-local pending
// state, not part of the compartment snapshot: a clone starts empty and
// re-bootstraps schedules for whatever the cloned tensor already contains
// on its first Step.
func (s *StochasticState) cloneEmpty() *StochasticState {
	return NewStochasticState()
}

func (s *StochasticState) schedule(e scheduledEvent) {
	heap.Push(&s.queue, e)
}

// SEATIRDStochastic implements the event-driven SEATIRD disease
// model: a continuous-time Gillespie-style simulation with
// an explicit per-individual pre-sampled trajectory through A/T/I and a
// contact-event stream, rather than the deterministic variant's aggregate
// forward-Euler update.
type SEATIRDStochastic struct {
	Rates RateSetSEATIRD
}

// Identity returns the disease_model.identity this engine answers to.
func (m *SEATIRDStochastic) Identity() string { return "seatird-stochastic" }

// minOneExpOrInf draws RNG.MinOneExponential(rate), or +Inf if rate is
// non-positive ("off"): an +Inf branch never wins a min() comparison
// against a real draw.
func minOneExpOrInf(rng *RNG, rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return rng.MinOneExponential(rate)
}

// tiOffset returns the deterministic T->I duration the per-individual
// schedule adds to Tt. SEATIRD's rate-set convention stores chi as a rate
// (1/symptomatic_period, matching tau/kappa/gamma; see the deterministic
// engine's `tToI := m.Rates.Chi * tt`); the stochastic schedule instead
// needs the underlying period as an additive offset, so this inverts it.
func (m *SEATIRDStochastic) tiOffset() float64 {
	if m.Rates.Chi <= 0 {
		return math.Inf(1)
	}
	return 1.0 / m.Rates.Chi
}

func (m *SEATIRDStochastic) nu(age, risk int) float64 {
	if age < len(m.Rates.Nu) {
		return m.Rates.Nu[age][risk]
	}
	return 0
}

// scheduleFromTa builds the full per-individual schedule given a known
// Ta.
func (m *SEATIRDStochastic) scheduleFromTa(ctx *DiseaseContext, age, risk int, ta float64) *individualSchedule {
	nu := m.nu(age, risk)
	s := &individualSchedule{ta: ta}
	s.tt = ta + minOneExpOrInf(ctx.RNG, m.Rates.Kappa)
	s.ti = s.tt + m.tiOffset()
	s.tdA = ta + minOneExpOrInf(ctx.RNG, nu)
	s.trA = ta + minOneExpOrInf(ctx.RNG, m.Rates.Gamma)
	s.tdTI = s.tt + minOneExpOrInf(ctx.RNG, nu)
	s.trTI = s.tt + minOneExpOrInf(ctx.RNG, m.Rates.Gamma)
	s.exitAsym = math.Min(s.tdA, s.trA)
	if s.tt < s.exitAsym {
		s.exitAsym = math.Inf(1)
	}
	s.trdAti = math.Min(s.exitAsym, math.Min(s.tdTI, s.trTI))
	return s
}

// expose moves one susceptible to E, draws its schedule, queues its first
// transition event and its contact stream.
func (m *SEATIRDStochastic) expose(node *Node, ctx *DiseaseContext, beta []float64, st *StochasticState, age, risk, vax int, now float64) {
	if node.ExposeBulk(age, risk, vax, 1) == 0 {
		return
	}
	ta := now + minOneExpOrInf(ctx.RNG, m.Rates.Tau)
	s := m.scheduleFromTa(ctx, age, risk, ta)
	eIdx := node.Compartments.MustIndex("E")
	st.schedule(scheduledEvent{initTime: now, time: ta, kind: eventEtoA, age: age, risk: risk, vax: vax, sched: s})
	st.pending[compartmentKey{age, risk, vax, eIdx}]++
	m.generateContacts(node, ctx, beta, st, age, risk, vax, now, s)
}

// generateContacts lays down one individual's whole contact stream at
// exposure time, from Ta out to the A/T contagious horizon Trd_ati.
func (m *SEATIRDStochastic) generateContacts(node *Node, ctx *DiseaseContext, beta []float64, st *StochasticState, age, risk, vax int, now float64, s *individualSchedule) {
	if math.IsInf(s.trdAti, 1) || math.IsInf(s.ta, 1) {
		return
	}
	ages := node.Ages
	for a2 := 0; a2 < ages; a2++ {
		contact := ctx.Contact.At(age, a2)
		if contact == 0 {
			continue
		}
		sigma := ctx.sig(a2)
		bf := 0.0
		if a2 < len(beta) {
			bf = beta[a2]
		}
		for r2 := 0; r2 < 2; r2++ {
			for v2 := 0; v2 < 2; v2++ {
				share := node.GroupShare(a2, r2, v2)
				if share <= 0 {
					continue
				}
				ve := 0.0
				if v2 == VaxVaccinated {
					ve = ctx.VE(a2)
				}
				rate := (1 - ve) * bf * contact * sigma * share
				if rate <= 0 {
					continue
				}
				t := s.ta
				for {
					t += ctx.RNG.Exponential(rate)
					if t >= s.trdAti {
						break
					}
					st.schedule(scheduledEvent{initTime: now, time: t, kind: eventContact, age: age, risk: risk, vax: vax, destAge: a2, destRisk: r2, destVax: v2})
				}
			}
		}
	}
}

// Step advances node by one simulated day: it snapshots start-of-day
// counts for keep_event, bootstraps schedules for any E/A/T/I population
// that doesn't already have one outstanding (the initial seed, or a
// travel-driven exposure that bypassed expose), then dispatches the event
// queue in ascending time order up to the day's horizon.
func (m *SEATIRDStochastic) Step(node *Node, day int, beta []float64, ctx *DiseaseContext) {
	if node.Stoch == nil {
		node.Stoch = NewStochasticState()
	}
	st := node.Stoch
	now := float64(day)
	dayHorizon := now + 1.0

	cs := node.Compartments
	eIdx := cs.MustIndex("E")
	aIdx := cs.MustIndex("A")
	tIdx := cs.MustIndex("T")
	iIdx := cs.MustIndex("I")

	st.initialCount = make(map[compartmentKey]float64)
	st.unqueuedEvent = make(map[compartmentKey]float64)
	st.contactRemaining = make(map[stratumKey]float64)
	st.unqueuedContact = make(map[stratumKey]float64)

	ages := node.Ages
	for a := 0; a < ages; a++ {
		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				vec := node.Get(a, r, v)
				for c, cnt := range vec {
					st.initialCount[compartmentKey{a, r, v, c}] = cnt
				}
			}
		}
	}

	for a := 0; a < ages; a++ {
		for r := 0; r < 2; r++ {
			for v := 0; v < 2; v++ {
				m.bootstrapStratum(node, ctx, beta, st, a, r, v, eIdx, now)
				m.bootstrapStratum(node, ctx, beta, st, a, r, v, aIdx, now)
				m.bootstrapStratum(node, ctx, beta, st, a, r, v, tIdx, now)
				m.bootstrapStratum(node, ctx, beta, st, a, r, v, iIdx, now)
			}
		}
	}

	for _, ev := range st.queue {
		if ev.kind == eventContact && ev.time < dayHorizon {
			st.contactRemaining[stratumKey{ev.age, ev.risk, ev.vax}]++
		}
	}

	for st.queue.Len() > 0 && st.queue[0].time < dayHorizon {
		ev := heap.Pop(&st.queue).(scheduledEvent)
		if ev.kind == eventContact {
			m.dispatchContact(node, ctx, beta, ev, st)
		} else {
			m.dispatchTransition(node, ctx, ev, st, day)
		}
	}
}

// bootstrapStratum synthesizes a schedule for any occupants of (age,risk,
// vax)'s comp compartment that don't already have one outstanding: the
// deficit between the live tensor count and st.pending for that cell.
func (m *SEATIRDStochastic) bootstrapStratum(node *Node, ctx *DiseaseContext, beta []float64, st *StochasticState, age, risk, vax, comp int, now float64) {
	key := compartmentKey{age, risk, vax, comp}
	deficit := int(math.Round(node.Count(age, risk, vax, comp) - st.pending[key]))
	for i := 0; i < deficit; i++ {
		m.bootstrapOne(node, ctx, beta, st, age, risk, vax, comp, now)
	}
}

func (m *SEATIRDStochastic) bootstrapOne(node *Node, ctx *DiseaseContext, beta []float64, st *StochasticState, age, risk, vax, comp int, now float64) {
	cs := node.Compartments
	switch comp {
	case cs.MustIndex("E"):
		s := m.scheduleFromTa(ctx, age, risk, now+minOneExpOrInf(ctx.RNG, m.Rates.Tau))
		st.schedule(scheduledEvent{initTime: now, time: s.ta, kind: eventEtoA, age: age, risk: risk, vax: vax, sched: s})
		st.pending[compartmentKey{age, risk, vax, comp}]++
		m.generateContacts(node, ctx, beta, st, age, risk, vax, now, s)
	case cs.MustIndex("A"):
		s := m.scheduleFromTa(ctx, age, risk, now)
		m.queueAExit(node, st, age, risk, vax, now, s)
		m.generateContacts(node, ctx, beta, st, age, risk, vax, now, s)
	case cs.MustIndex("T"):
		nu := m.nu(age, risk)
		s := &individualSchedule{ta: now, tt: now}
		s.ti = s.tt + m.tiOffset()
		s.tdTI = s.tt + minOneExpOrInf(ctx.RNG, nu)
		s.trTI = s.tt + minOneExpOrInf(ctx.RNG, m.Rates.Gamma)
		s.exitAsym = math.Inf(1)
		s.trdAti = math.Min(s.tdTI, s.trTI)
		m.queueTExit(node, st, age, risk, vax, now, s)
		// The individual's true Ta predates "now"; the contact stream
		// generated here only covers the remaining T-stage window.
		m.generateContacts(node, ctx, beta, st, age, risk, vax, now, s)
	case cs.MustIndex("I"):
		m.queueIExit(node, ctx, st, age, risk, vax, now, now)
	}
}

// queueAExit picks A's earliest remaining branch (A->T, A->R, or A->D) and
// enqueues it, marking the individual pending in A until it fires.
func (m *SEATIRDStochastic) queueAExit(node *Node, st *StochasticState, age, risk, vax int, initTime float64, s *individualSchedule) {
	cs := node.Compartments
	aIdx := cs.MustIndex("A")
	if s.tt < s.exitAsym {
		st.schedule(scheduledEvent{initTime: initTime, time: s.tt, kind: eventAtoT, age: age, risk: risk, vax: vax, sched: s})
	} else if s.tdA < s.trA {
		st.schedule(scheduledEvent{initTime: initTime, time: s.tdA, kind: eventAtoD, age: age, risk: risk, vax: vax})
	} else {
		st.schedule(scheduledEvent{initTime: initTime, time: s.trA, kind: eventAtoR, age: age, risk: risk, vax: vax})
	}
	st.pending[compartmentKey{age, risk, vax, aIdx}]++
}

// queueTExit picks T's earliest remaining branch (T->I, T->R, or T->D).
func (m *SEATIRDStochastic) queueTExit(node *Node, st *StochasticState, age, risk, vax int, initTime float64, s *individualSchedule) {
	cs := node.Compartments
	tIdx := cs.MustIndex("T")
	if s.ti < math.Min(s.tdTI, s.trTI) {
		st.schedule(scheduledEvent{initTime: initTime, time: s.ti, kind: eventTtoI, age: age, risk: risk, vax: vax, sched: s})
	} else if s.tdTI < s.trTI {
		st.schedule(scheduledEvent{initTime: initTime, time: s.tdTI, kind: eventTtoD, age: age, risk: risk, vax: vax})
	} else {
		st.schedule(scheduledEvent{initTime: initTime, time: s.trTI, kind: eventTtoR, age: age, risk: risk, vax: vax})
	}
	st.pending[compartmentKey{age, risk, vax, tIdx}]++
}

// queueIExit draws I's exit-to-R/D pair the same way A's and T's own
// exits are drawn: Exp(nu) and Exp(gamma) anchored off the stage's own
// start time, earliest branch wins.
func (m *SEATIRDStochastic) queueIExit(node *Node, ctx *DiseaseContext, st *StochasticState, age, risk, vax int, initTime, ti float64) {
	cs := node.Compartments
	iIdx := cs.MustIndex("I")
	nu := m.nu(age, risk)
	tdI := ti + minOneExpOrInf(ctx.RNG, nu)
	trI := ti + minOneExpOrInf(ctx.RNG, m.Rates.Gamma)
	if tdI < trI {
		st.schedule(scheduledEvent{initTime: initTime, time: tdI, kind: eventItoD, age: age, risk: risk, vax: vax})
	} else {
		st.schedule(scheduledEvent{initTime: initTime, time: trI, kind: eventItoR, age: age, risk: risk, vax: vax})
	}
	st.pending[compartmentKey{age, risk, vax, iIdx}]++
}

// dispatchTransition fires one transition event: keep_event decides
// whether it's still consistent with current counts, and if so one unit
// moves from source to destination and the individual's next branch (if
// any) is queued.
func (m *SEATIRDStochastic) dispatchTransition(node *Node, ctx *DiseaseContext, ev scheduledEvent, st *StochasticState, day int) {
	cs := node.Compartments
	eIdx := cs.MustIndex("E")
	aIdx := cs.MustIndex("A")
	tIdx := cs.MustIndex("T")
	iIdx := cs.MustIndex("I")
	rIdx := cs.MustIndex("R")
	dIdx := cs.MustIndex("D")

	var from, to int
	switch ev.kind {
	case eventEtoA:
		from, to = eIdx, aIdx
	case eventAtoT:
		from, to = aIdx, tIdx
	case eventAtoR:
		from, to = aIdx, rIdx
	case eventAtoD:
		from, to = aIdx, dIdx
	case eventTtoI:
		from, to = tIdx, iIdx
	case eventTtoR:
		from, to = tIdx, rIdx
	case eventTtoD:
		from, to = tIdx, dIdx
	case eventItoR:
		from, to = iIdx, rIdx
	case eventItoD:
		from, to = iIdx, dIdx
	}

	key := compartmentKey{ev.age, ev.risk, ev.vax, from}
	st.pending[key]--

	fresh := from == tIdx && int(ev.initTime) == day
	keep := fresh
	if !keep {
		ic := st.initialCount[key]
		uq := st.unqueuedEvent[key]
		prob := 1.0
		if denom := ic + uq; denom > 0 {
			prob = ic / denom
		}
		keep = ctx.RNG.Float64() < prob
	}
	if !keep {
		st.unqueuedEvent[key]++
		st.UnqueuedEventCounter++
		return
	}

	if node.Transfer(ev.age, ev.risk, ev.vax, from, to, 1) == 0 {
		return
	}

	switch ev.kind {
	case eventEtoA:
		m.queueAExit(node, st, ev.age, ev.risk, ev.vax, ev.time, ev.sched)
	case eventAtoT:
		m.queueTExit(node, st, ev.age, ev.risk, ev.vax, ev.time, ev.sched)
	case eventTtoI:
		m.queueIExit(node, ctx, st, ev.age, ev.risk, ev.vax, ev.time, ev.sched.ti)
	}
}

// dispatchContact resolves one CONTACT event: keep_contact decides whether
// it's still live, and if so a uniform contactee is drawn from the
// destination stratum's current population; landing on a susceptible
// exposes them, recursively generating their own schedule and contact
// stream.
func (m *SEATIRDStochastic) dispatchContact(node *Node, ctx *DiseaseContext, beta []float64, ev scheduledEvent, st *StochasticState) {
	g := stratumKey{ev.age, ev.risk, ev.vax}
	remaining := st.contactRemaining[g]
	rejected := st.unqueuedContact[g]
	accept := true
	if denom := remaining + rejected; denom > 0 {
		accept = ctx.RNG.Float64() < remaining/denom
	}
	if remaining > 0 {
		st.contactRemaining[g] = remaining - 1
	}
	if !accept {
		st.unqueuedContact[g] = rejected + 1
		st.UnqueuedContactCounter++
		return
	}
	st.ContactCounter++

	total := node.StratumTotal(ev.destAge, ev.destRisk, ev.destVax)
	if total <= 0 {
		return
	}
	sIdx := node.Compartments.MustIndex("S")
	sCount := node.Count(ev.destAge, ev.destRisk, ev.destVax, sIdx)
	if ctx.RNG.Float64()*total >= sCount {
		return
	}
	m.expose(node, ctx, beta, st, ev.destAge, ev.destRisk, ev.destVax, ev.time)
}
