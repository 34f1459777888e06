package pandemicsim

import "math"

// AssembledModel is the product of binding a validated Config to the
// domain objects every realization needs: the
// pristine (unseeded-by-realization) network, the disease engine and its
// shared rate parameters, the travel and vaccine policies, and the raw
// NPI/initial-infected records a realization resolves against its own
// network clone. Building this once per run and cloning its network per
// realization is what makes Config -> N independent realizations cheap.
type AssembledModel struct {
	Net              *Network
	Contact          *ContactMatrix
	Compartments     *CompartmentSet
	Engine           DiseaseEngine
	BaseBeta         []float64
	Sigma            []float64
	VaccineEff       []float64
	InfectiousMask   []float64
	AsymptomaticMask []float64
	Travel           *TravelParams
	Vaccine          *VaccinePolicy
	Stockpile        map[int]float64
	NPIRecords       []NPIRecord
	HorizonDays      int
}

// AssembleModel binds a validated Config to its domain objects: loads the
// CSV inputs, builds the network and contact matrix, constructs the
// configured disease engine and its rate set, the travel and vaccine
// policies, and the NPI record list. Config.Validate must have already
// been called; AssembleModel re-derives nothing Validate already checked.
func AssembleModel(cfg *Config, horizonDays int) (*AssembledModel, error) {
	ids, pops, err := LoadPopulationCSV(cfg.Data.Population)
	if err != nil {
		return nil, err
	}
	contactRows, err := LoadMatrixCSV(cfg.Data.Contact)
	if err != nil {
		return nil, err
	}
	flowRows, err := LoadMatrixCSV(cfg.Data.Flow)
	if err != nil {
		return nil, err
	}
	highRisk, err := LoadHighRiskRatios(cfg.Data.HighRiskRatios)
	if err != nil {
		return nil, err
	}

	cs, err := NewCompartmentSet(cfg.CompartmentLabels())
	if err != nil {
		return nil, err
	}

	net, contact, err := BuildNetwork(ids, pops, contactRows, flowRows, highRisk, cs)
	if err != nil {
		return nil, err
	}
	if err := seedInitialInfected(net, cfg.InitialInfected); err != nil {
		return nil, err
	}

	ages := contact.Ages()
	params := cfg.DiseaseModel.Parameters
	sigma := paramFloatSliceOrOnes(params, "sigma", ages)
	ve := paramFloatSliceOrZeros(params, "vaccine_efficacy", ages)

	engine, infectiousMask, baseBeta, err := buildDiseaseEngine(cfg.DiseaseModel.Identity, params, cs, contact, sigma, ages)
	if err != nil {
		return nil, err
	}

	travel, err := buildTravelParams(cfg.TravelModel.Parameters, ages)
	if err != nil {
		return nil, err
	}

	var vaccine *VaccinePolicy
	var stockpile map[int]float64
	if cfg.VaccineModel != nil && cfg.VaccineModel.Identity != "" {
		vaccine, stockpile = buildVaccinePolicy(cfg.VaccineModel.Parameters, ages)
	}

	npiRecords := make([]NPIRecord, len(cfg.NonPharmaInterventions))
	for i, r := range cfg.NonPharmaInterventions {
		npiRecords[i] = NPIRecord{Day: r.Day, Duration: r.Duration, Location: r.Location, Effectiveness: r.Effectiveness}
	}

	return &AssembledModel{
		Net:              net,
		Contact:          contact,
		Compartments:     cs,
		Engine:           engine,
		BaseBeta:         baseBeta,
		Sigma:            sigma,
		VaccineEff:       ve,
		InfectiousMask:   infectiousMask,
		AsymptomaticMask: asymptomaticMask(cfg.DiseaseModel.Identity, cs),
		Travel:           travel,
		Vaccine:          vaccine,
		Stockpile:        stockpile,
		NPIRecords:       npiRecords,
		HorizonDays:      horizonDays,
	}, nil
}

// asymptomaticMask weights only the asymptomatic component of an
// identity's transmitting population, for the travel coupler's
// asymmetric-transmitting switch. Identities with no asymptomatic
// compartment fall back to their full transmitting set.
func asymptomaticMask(identity string, cs *CompartmentSet) []float64 {
	switch identity {
	case "seatird-deterministic", "seatird-stochastic":
		return cs.Weights(map[string]float64{"A": 1})
	case "seihrd-deterministic", "seihrd-stochastic":
		return cs.Weights(map[string]float64{"IA": 1})
	default:
		return cs.Weights(map[string]float64{"I": 1})
	}
}

// NewRealization builds one realization from an assembled model: a fresh
// network clone, a child RNG seeded from seed, and the NPI cube built
// over the clone (NPICube only references node indices, which Clone
// preserves, so building it per realization is cheap and keeps no
// cross-realization aliasing).
func (model *AssembledModel) NewRealization(index int, seed int64) (*Realization, error) {
	net := model.Net.Clone()
	npi, err := BuildNPICube(model.NPIRecords, model.HorizonDays+1, net, model.Contact.Ages())
	if err != nil {
		return nil, err
	}
	rng := NewRNG(seed)
	ctx := &DiseaseContext{
		Contact:          model.Contact,
		Sigma:            model.Sigma,
		VaccineEff:       model.VaccineEff,
		InfectiousMask:   model.InfectiousMask,
		AsymptomaticMask: model.AsymptomaticMask,
		RNG:              rng,
	}
	return &Realization{
		Index:              index,
		Net:                net,
		RNG:                rng,
		Engine:             model.Engine,
		Ctx:                ctx,
		Travel:             model.Travel,
		Vaccine:            model.Vaccine,
		NPI:                npi,
		BaseBeta:           model.BaseBeta,
		EarlyStopTolerance: 1.0,
		StockpileSchedule:  model.Stockpile,
	}, nil
}

// seedInitialInfected moves each configured (node, age_group) infected
// count from S to E, split across the two risk groups in proportion to
// their share of that age group's unvaccinated population. Seeding
// happens before any realization starts, so every individual is still
// unvaccinated at this point regardless of the configured vaccine model.
func seedInitialInfected(net *Network, entries []InitialInfectedEntry) error {
	for _, entry := range entries {
		idx, ok := net.NodeByID(entry.County)
		if !ok {
			return NewConfigError("initial_infected.county", UnrecognizedIdentityError, "node_id", entry.County)
		}
		node := net.Nodes[idx]
		if entry.AgeGroup < 0 || entry.AgeGroup >= node.Ages {
			return NewShapeError("initial_infected.age_group", VectorLengthMismatchError, entry.AgeGroup, node.Ages)
		}
		lowPop := node.StratumTotal(entry.AgeGroup, RiskLow, VaxUnvaccinated)
		highPop := node.StratumTotal(entry.AgeGroup, RiskHigh, VaxUnvaccinated)
		total := lowPop + highPop
		if total <= 0 {
			continue
		}
		lowCount := math.Round(entry.Infected * lowPop / total)
		highCount := entry.Infected - lowCount
		node.ExposeBulk(entry.AgeGroup, RiskLow, VaxUnvaccinated, lowCount)
		node.ExposeBulk(entry.AgeGroup, RiskHigh, VaxUnvaccinated, highCount)
	}
	return nil
}

// buildDiseaseEngine constructs the configured disease engine, its
// infectious-compartment weight mask, and its baseline (pre-NPI) β
// vector, using the calibration rule belonging to each identity family:
// next-generation-matrix spectral radius for seir/seihrd, R0/beta_scale
// for seatird.
func buildDiseaseEngine(identity string, params map[string]interface{}, cs *CompartmentSet, contact *ContactMatrix, sigma []float64, ages int) (DiseaseEngine, []float64, []float64, error) {
	r0 := paramFloat(params, "r0", 2.5)

	switch identity {
	case "seir-deterministic":
		infectiousPeriod := paramFloat(params, "infectious_period", 5)
		beta, err := BetaFromNextGenMatrix(r0, contact, sigma, infectiousPeriod)
		if err != nil {
			return nil, nil, nil, err
		}
		rates := NewRateSetSEIRS(
			paramFloat(params, "exposed_period", 3),
			infectiousPeriod,
			paramFloat(params, "immune_period", 0),
		)
		mask := cs.Weights(map[string]float64{"I": 1})
		return &SEIRSDeterministic{Rates: rates}, mask, broadcast(beta, ages), nil

	case "seatird-deterministic", "seatird-stochastic":
		betaScale := paramFloat(params, "beta_scale", 1)
		beta := BetaFromScale(r0, betaScale)
		baseNu := paramFloatSliceOrZeros(params, "mortality", ages)
		nu := MortalityVector(baseNu, paramFloat(params, "high_risk_multiplier", 1))
		rates := NewRateSetSEATIRD(
			paramFloat(params, "asymptomatic_period", 2),
			paramFloat(params, "presymptomatic_period", 2),
			paramFloat(params, "symptomatic_period", 5),
			paramFloat(params, "recovery_period", 7),
			nu,
		)
		mask := cs.Weights(map[string]float64{"A": 1, "T": 1, "I": 1})
		if identity == "seatird-stochastic" {
			return &SEATIRDStochastic{Rates: rates}, mask, broadcast(beta, ages), nil
		}
		return &SEATIRDDeterministic{Rates: rates}, mask, broadcast(beta, ages), nil

	case "seihrd-deterministic", "seihrd-stochastic":
		infectiousPeriod := paramFloat(params, "infectious_period", 5)
		beta, err := BetaFromNextGenMatrix(r0, contact, sigma, infectiousPeriod)
		if err != nil {
			return nil, nil, nil, err
		}
		rates := RateSetSEIHRD{
			EOut:        PeriodToRate(paramFloat(params, "exposed_period", 3)),
			IPToIS:      PeriodToRate(paramFloat(params, "presymptomatic_period", 2)),
			IAToR:       PeriodToRate(paramFloat(params, "asymptomatic_recovery_period", 7)),
			ISToRBase:   PeriodToRate(paramFloat(params, "symptomatic_recovery_period", 7)),
			ISToHTarget: PeriodToRate(paramFloat(params, "symptomatic_hospital_period", 7)),
			HToRBase:    PeriodToRate(paramFloat(params, "hospital_recovery_period", 10)),
			HToDTarget:  PeriodToRate(paramFloat(params, "hospital_death_period", 10)),
			FracToH:     paramFloat(params, "frac_to_hospital", 0.1),
			FracToD:     paramFloat(params, "frac_to_death", 0.1),
		}
		// IS is the base infectious compartment; IA and IP carry
		// configurable relative-infectiousness weights.
		mask := cs.Weights(map[string]float64{
			"IA": paramFloat(params, "rel_inf_ia", 1),
			"IP": paramFloat(params, "rel_inf_ip", 1),
			"IS": 1,
		})
		asympFrac := paramFloat(params, "asymptomatic_fraction", 0.3)
		if identity == "seihrd-stochastic" {
			return &SEIHRDStochastic{Rates: rates, AsymptomaticFraction: asympFrac}, mask, broadcast(beta, ages), nil
		}
		return &SEIHRDDeterministic{Rates: rates, AsymptomaticFraction: asympFrac}, mask, broadcast(beta, ages), nil
	}

	return nil, nil, nil, NewConfigError("disease_model.identity", UnrecognizedIdentityError, "disease_model", identity)
}

// buildTravelParams reads the travel_model.parameters block: rho, a
// per-age flow_reduction vector (default all-1, i.e. no reduction), and
// the two direction-semantics switches, defaulting to source-side β and
// symmetric transmitting populations.
func buildTravelParams(params map[string]interface{}, ages int) (*TravelParams, error) {
	flowReduction := paramFloatSliceOrOnes(params, "flow_reduction", ages)
	betaFromDest, _ := params["beta_from_destination"].(bool)
	asymTransmitting, _ := params["asymmetric_transmitting"].(bool)
	return &TravelParams{
		FlowReduction:          flowReduction,
		Rho:                    paramFloat(params, "rho", 1),
		BetaFromDestination:    betaFromDest,
		AsymmetricTransmitting: asymTransmitting,
	}, nil
}

// buildVaccinePolicy reads the vaccine_model.parameters block: the
// per-age priority vector, adherence ceiling, per-day capacity fraction,
// rollover half-life, efficacy lag, and the stockpile delivery schedule
// (a list of {day, doses} entries).
func buildVaccinePolicy(params map[string]interface{}, ages int) (*VaccinePolicy, map[int]float64) {
	lagDays := int(paramFloat(params, "vaccine_eff_lag_days", paramFloat(params, "efficacy_lag_days", 0)))
	policy := &VaccinePolicy{
		Priority:         paramFloatSliceOrOnes(params, "priority", ages),
		AdherenceCeiling: paramFloat(params, "adherence_ceiling", 0.7),
		CapacityFraction: paramFloat(params, "capacity_fraction", 1.0),
		HalfLifeDays:     paramFloat(params, "half_life_days", 0),
		EfficacyLagDays:  lagDays,
	}
	// Re-index the raw {day, amount} list onto effective_day =
	// max(0, day + vaccine_eff_lag_days), summing entries that collapse
	// onto the same effective day.
	schedule := make(map[int]float64)
	raw, _ := params["stockpile"].([]interface{})
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		day, _ := m["day"].(float64)
		amount, ok := m["amount"].(float64)
		if !ok {
			amount, _ = m["doses"].(float64)
		}
		effectiveDay := int(day) + lagDays
		if effectiveDay < 0 {
			effectiveDay = 0
		}
		schedule[effectiveDay] += amount
	}
	return policy, schedule
}

func broadcast(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func paramFloat(params map[string]interface{}, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func paramFloatSlice(params map[string]interface{}, key string) []float64 {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, len(raw))
	for i, x := range raw {
		if f, ok := x.(float64); ok {
			out[i] = f
		}
	}
	return out
}

func paramFloatSliceOrOnes(params map[string]interface{}, key string, n int) []float64 {
	v := paramFloatSlice(params, key)
	if len(v) == n {
		return v
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func paramFloatSliceOrZeros(params map[string]interface{}, key string, n int) []float64 {
	v := paramFloatSlice(params, key)
	if len(v) == n {
		return v
	}
	return make([]float64, n)
}
