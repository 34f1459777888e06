package pandemicsim

import (
	"regexp"

	"github.com/pkg/errors"
)

// identifierPattern matches the labels the compartment set accepts: a
// leading letter followed by letters or digits (S, E, A, T, I, R, D, ...).
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// CompartmentSet is the closed, ordered table of epidemiological
// compartment labels for a run. It is built once from user input and
// never mutated afterwards; every tensor access in the state store goes
// through the indices it hands out.
type CompartmentSet struct {
	labels []string
	index  map[string]int
}

// NewCompartmentSet freezes the given ordered label list into a
// CompartmentSet. The set must include "S" and "E", and must not contain
// duplicates or non-identifier labels.
func NewCompartmentSet(labels []string) (*CompartmentSet, error) {
	cs := &CompartmentSet{
		labels: append([]string(nil), labels...),
		index:  make(map[string]int, len(labels)),
	}
	hasS, hasE := false, false
	for i, label := range labels {
		if !identifierPattern.MatchString(label) {
			return nil, errors.Errorf(InvalidCompartmentLabel, label)
		}
		if _, exists := cs.index[label]; exists {
			return nil, errors.Errorf(DuplicateCompartmentError, label)
		}
		cs.index[label] = i
		switch label {
		case "S":
			hasS = true
		case "E":
			hasE = true
		}
	}
	if !hasS {
		return nil, errors.Errorf(MissingCompartmentError, "S")
	}
	if !hasE {
		return nil, errors.Errorf(MissingCompartmentError, "E")
	}
	return cs, nil
}

// Len returns the number of compartments in the set.
func (cs *CompartmentSet) Len() int {
	return len(cs.labels)
}

// Labels returns the ordered compartment labels. Callers must not mutate
// the returned slice.
func (cs *CompartmentSet) Labels() []string {
	return cs.labels
}

// Index returns the position of label in the compartment ordering, and
// whether the label is present. Accessing an index before the set has
// been constructed via NewCompartmentSet is a programming error; there is
// no usable zero value.
func (cs *CompartmentSet) Index(label string) (int, bool) {
	i, ok := cs.index[label]
	return i, ok
}

// MustIndex is Index but panics on an unknown label. Used in hot paths
// (disease-model construction) where the label set has already been
// validated against the configured compartment list.
func (cs *CompartmentSet) MustIndex(label string) int {
	i, ok := cs.index[label]
	if !ok {
		panic("pandemicsim: compartment label " + label + " is not in the configured set")
	}
	return i
}

// Has reports whether label is part of the set.
func (cs *CompartmentSet) Has(label string) bool {
	_, ok := cs.index[label]
	return ok
}

// Weights builds a dense per-compartment weight vector from a sparse map
// of label->weight in [0,1], defaulting every unlisted compartment to 0.
// Used by the state store's weighted "transmitting population" query
// to turn e.g. {"A": 1, "T": 1, "I": 1} into a vector
// aligned with the compartment ordering.
func (cs *CompartmentSet) Weights(byLabel map[string]float64) []float64 {
	w := make([]float64, cs.Len())
	for label, v := range byLabel {
		if i, ok := cs.index[label]; ok {
			w[i] = v
		}
	}
	return w
}
