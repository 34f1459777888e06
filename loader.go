package pandemicsim

import (
	"bufio"
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LoadPopulationCSV parses the population file: a
// header row, then one row per node with the node id in the first column
// and one age-group count per remaining column. It returns the node ids
// in file order and a [node][age]float64 count table.
func LoadPopulationCSV(path string) ([]string, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(NewConfigError("data.population", UnreadableFileError, "population", path), "loading population")
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing population CSV")
	}
	if len(rows) < 2 {
		return nil, nil, NewConfigError("data.population", "population file %q has no data rows", path)
	}

	var ids []string
	var pops [][]float64
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		ids = append(ids, strings.TrimSpace(row[0]))
		counts := make([]float64, len(row)-1)
		for i, cell := range row[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "parsing population count for node %q", row[0])
			}
			counts[i] = v
		}
		pops = append(pops, counts)
	}
	return ids, pops, nil
}

// LoadMatrixCSV parses a dense, comma-separated N×N (or M×M) numeric
// matrix with no header row; ParseFloat natively accepts the scientific
// notation the flow matrix may contain.
func LoadMatrixCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(NewConfigError("data", UnreadableFileError, "matrix", path), "loading matrix")
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parsing matrix CSV")
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing matrix cell (%d,%d)", i, j)
			}
			out[i][j] = v
		}
	}
	return out, nil
}

// LoadHighRiskRatios parses the high-risk ratio file: one float per line,
// length equal to the number of age groups.
func LoadHighRiskRatios(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(NewConfigError("data.high_risk_ratios", UnreadableFileError, "high_risk_ratios", path), "loading high-risk ratios")
	}
	defer f.Close()

	var out []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing high-risk ratio line")
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading high-risk ratios")
	}
	return out, nil
}

// BuildNetwork assembles a Network from the loaded population table,
// contact matrix, flow matrix, and high-risk ratios, seeding every node's
// population into the susceptible compartment split by risk according to
// the per-age high-risk ratio, all under the unvaccinated stratum.
func BuildNetwork(ids []string, pops [][]float64, contactRows, flowRows [][]float64, highRiskRatios []float64, cs *CompartmentSet) (*Network, *ContactMatrix, error) {
	if len(pops) == 0 {
		return nil, nil, NewConfigError("data.population", "population file has no nodes")
	}
	ages := len(pops[0])
	contact, err := NewContactMatrix(ages, contactRows)
	if err != nil {
		return nil, nil, err
	}
	if len(highRiskRatios) != ages {
		return nil, nil, NewShapeError("high_risk_ratios", VectorLengthMismatchError, len(highRiskRatios), ages)
	}

	flow := NewFlowMatrix(len(ids))
	if len(flowRows) != len(ids) {
		return nil, nil, NewShapeError("flow", MatrixSizeMismatchError, len(flowRows), "node", len(ids))
	}
	for i, row := range flowRows {
		if len(row) != len(ids) {
			return nil, nil, NewShapeError("flow", MatrixSizeMismatchError, len(row), "node", len(ids))
		}
		for j, v := range row {
			flow.Set(i, j, v)
		}
	}

	sIdx := cs.MustIndex("S")
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		n := NewNode(i, id, id, ages, cs)
		for a := 0; a < ages && a < len(pops[i]); a++ {
			total := pops[i][a]
			high := total * highRiskRatios[a]
			low := total - high
			n.Add(a, RiskLow, VaxUnvaccinated, sIdx, low)
			n.Add(a, RiskHigh, VaxUnvaccinated, sIdx, high)
		}
		n.SeedInitialPopulation()
		nodes[i] = n
	}

	net, err := NewNetwork(nodes, flow)
	if err != nil {
		return nil, nil, err
	}
	return net, contact, nil
}
