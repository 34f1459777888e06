package pandemicsim

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config is the top-level JSON configuration document. Loading and
// validating a Config happens once, before any realization starts.
type Config struct {
	OutputDirPath          string                 `json:"output_dir_path"`
	NumberOfRealizations   int                    `json:"number_of_realizations,omitempty"`
	RealizationRange       []int                  `json:"realization_range,omitempty"`
	BatchNum               int                    `json:"batch_num,omitempty"`
	Compartments           []string               `json:"compartments,omitempty"`
	Data                   DataConfig             `json:"data"`
	DiseaseModel           DiseaseModelConfig     `json:"disease_model"`
	TravelModel            TravelModelConfig      `json:"travel_model"`
	VaccineModel           *VaccineModelConfig    `json:"vaccine_model,omitempty"`
	NonPharmaInterventions []NPIRecordConfig      `json:"non_pharma_interventions,omitempty"`
	InitialInfected        []InitialInfectedEntry `json:"initial_infected"`
}

// DataConfig names the CSV input files.
type DataConfig struct {
	Population     string `json:"population"`
	Contact        string `json:"contact"`
	Flow           string `json:"flow"`
	HighRiskRatios string `json:"high_risk_ratios"`
}

// DiseaseModelConfig selects and parameterizes one of the four disease
// engine identities.
type DiseaseModelConfig struct {
	Identity   string                 `json:"identity"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TravelModelConfig selects and parameterizes the travel coupler.
type TravelModelConfig struct {
	Identity   string                 `json:"identity"`
	Parameters map[string]interface{} `json:"parameters"`
}

// VaccineModelConfig selects and parameterizes the vaccine allocator. A
// nil *VaccineModelConfig (the field omitted or Identity == "") disables
// vaccination for the run entirely.
type VaccineModelConfig struct {
	Identity   string                 `json:"identity"`
	Parameters map[string]interface{} `json:"parameters"`
}

// NPIRecordConfig is the wire form of one non_pharma_interventions entry.
type NPIRecordConfig struct {
	Day           int       `json:"day"`
	Duration      int       `json:"duration"`
	Location      string    `json:"location"`
	Effectiveness []float64 `json:"effectiveness"`
}

// InitialInfectedEntry seeds one (node, age group) with an initial
// infected count.
type InitialInfectedEntry struct {
	County   string  `json:"county"`
	AgeGroup int     `json:"age_group"`
	Infected float64 `json:"infected"`
}

// knownIdentities enumerates the accepted disease_model.identity values;
// anything else is a config error.
var knownIdentities = map[string]bool{
	"seir-deterministic":    true,
	"seatird-deterministic": true,
	"seatird-stochastic":    true,
	"seihrd-deterministic":  true,
	"seihrd-stochastic":     true,
}

// canonicalCompartments returns the default compartment set for a disease
// model identity, used when the config omits an explicit "compartments"
// list.
func canonicalCompartments(identity string) []string {
	switch identity {
	case "seir-deterministic":
		return []string{"S", "E", "I", "R"}
	case "seatird-deterministic", "seatird-stochastic":
		return []string{"S", "E", "A", "T", "I", "R", "D"}
	case "seihrd-deterministic", "seihrd-stochastic":
		return []string{"S", "E", "IA", "IP", "IS", "H", "R", "D"}
	default:
		return nil
	}
}

// LoadConfig reads and JSON-decodes a Config from path. I/O failures are
// reported as *ConfigError (config/IO errors abort
// before any realization starts).
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(NewConfigError("output_dir_path", UnreadableFileError, "config", path), "loading config")
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config JSON")
	}
	return &cfg, nil
}

// Validate rejects missing keys, non-positive counts, malformed
// compartment sets, negative realization_range values, and unrecognized
// disease_model identities before any realization starts.
func (c *Config) Validate() error {
	if c.OutputDirPath == "" {
		return NewConfigError("output_dir_path", MissingConfigFieldError, "output_dir_path")
	}
	if c.Data.Population == "" || c.Data.Contact == "" || c.Data.Flow == "" || c.Data.HighRiskRatios == "" {
		return NewConfigError("data", MissingConfigFieldError, "data.{population,contact,flow,high_risk_ratios}")
	}
	if !knownIdentities[c.DiseaseModel.Identity] {
		return NewConfigError("disease_model.identity", UnrecognizedIdentityError, "disease_model", c.DiseaseModel.Identity)
	}
	if c.TravelModel.Identity != "binomial" {
		return NewConfigError("travel_model.identity", UnrecognizedIdentityError, "travel_model", c.TravelModel.Identity)
	}

	if len(c.RealizationRange) > 0 {
		if len(c.RealizationRange) != 2 || c.RealizationRange[0] < 0 || c.RealizationRange[1] < c.RealizationRange[0] {
			return NewConfigError("realization_range", NegativeRealizationRange, c.RealizationRange)
		}
	} else if c.NumberOfRealizations <= 0 {
		return NewConfigError("number_of_realizations", NonPositiveCountError, "number_of_realizations", c.NumberOfRealizations)
	}

	labels := c.Compartments
	if len(labels) == 0 {
		labels = canonicalCompartments(c.DiseaseModel.Identity)
	}
	if _, err := NewCompartmentSet(labels); err != nil {
		return errors.Wrap(err, "validating compartments")
	}

	for _, npi := range c.NonPharmaInterventions {
		if npi.Duration <= 0 {
			return NewConfigError("non_pharma_interventions.duration", NonPositiveCountError, "non_pharma_interventions.duration", npi.Duration)
		}
	}
	return nil
}

// NumInstances returns the number of realizations this config requests,
// whichever of number_of_realizations/realization_range was set.
func (c *Config) NumInstances() int {
	if len(c.RealizationRange) == 2 {
		return c.RealizationRange[1] - c.RealizationRange[0] + 1
	}
	return c.NumberOfRealizations
}

// RealizationStart returns the first realization index (1-based),
// defaulting to 1 when realization_range is not set.
func (c *Config) RealizationStart() int {
	if len(c.RealizationRange) == 2 {
		return c.RealizationRange[0]
	}
	return 1
}

// CompartmentLabels resolves the effective compartment set: the config's
// explicit "compartments" list if present, else the canonical set implied
// by the disease_model identity.
func (c *Config) CompartmentLabels() []string {
	if len(c.Compartments) > 0 {
		return c.Compartments
	}
	return canonicalCompartments(c.DiseaseModel.Identity)
}
