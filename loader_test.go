package pandemicsim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPopulationCSV(t *testing.T) {
	path := writeTempFile(t, "pop.csv", "node_id,age0,age1\n00001,700,300\n00002,400,600\n")

	ids, pops, err := LoadPopulationCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"00001", "00002"}, ids)
	assert.Equal(t, [][]float64{{700, 300}, {400, 600}}, pops)
}

func TestLoadMatrixCSV_ScientificNotation(t *testing.T) {
	path := writeTempFile(t, "flow.csv", "0,1.5e3\n2.5E2,0\n")

	m, err := LoadMatrixCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1500}, {250, 0}}, m)
}

func TestLoadHighRiskRatios(t *testing.T) {
	path := writeTempFile(t, "hrr.txt", "0.1\n0.2\n0.3\n")

	ratios, err := LoadHighRiskRatios(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, ratios)
}

func TestBuildNetwork_SeedsSusceptiblesByRisk(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)

	ids := []string{"00001"}
	pops := [][]float64{{1000}}
	contactRows := [][]float64{{1}}
	flowRows := [][]float64{{0}}
	highRisk := []float64{0.2}

	net, contact, err := BuildNetwork(ids, pops, contactRows, flowRows, highRisk, cs)
	require.NoError(t, err)
	assert.Equal(t, 1, contact.Ages())

	node := net.Nodes[0]
	sIdx := cs.MustIndex("S")
	assert.Equal(t, 200.0, node.Count(0, RiskHigh, VaxUnvaccinated, sIdx))
	assert.Equal(t, 800.0, node.Count(0, RiskLow, VaxUnvaccinated, sIdx))
}

func TestBuildNetwork_FlowSizeMismatchIsShapeError(t *testing.T) {
	cs, err := NewCompartmentSet([]string{"S", "E", "I", "R"})
	require.NoError(t, err)

	ids := []string{"00001", "00002"}
	pops := [][]float64{{1000}, {1000}}
	contactRows := [][]float64{{1}}
	flowRows := [][]float64{{0}} // wrong size: should be 2x2
	highRisk := []float64{0.2}

	_, _, err = BuildNetwork(ids, pops, contactRows, flowRows, highRisk, cs)
	require.Error(t, err)
	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}
