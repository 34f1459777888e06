package pandemicsim

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/segmentio/ksuid"
)

// CSVOutput is the batch-mode output writer: one
// append-only per-node CSV (one row per node per day), one append-only
// per-network summary CSV, and
// a per-realization wall-clock time CSV, all keyed by (sim_id, day).
// Writes are buffered per call and flushed with AppendToFile.
type CSVOutput struct {
	SimID     string
	nodePath  string
	netPath   string
	timesPath string
}

// NewCSVOutput derives one realization's CSV paths from basepath and its
// batch number, stamping a fresh ksuid as the realization's sim_id.
func NewCSVOutput(basepath string, batch int) *CSVOutput {
	trimmed := strings.TrimSuffix(basepath, "/")
	return &CSVOutput{
		SimID:     ksuid.New().String(),
		nodePath:  fmt.Sprintf("%s/node_batch-%03d.csv", trimmed, batch),
		netPath:   fmt.Sprintf("%s/network_batch-%03d.csv", trimmed, batch),
		timesPath: fmt.Sprintf("%s/simulation_times_batch-%03d.csv", trimmed, batch),
	}
}

// WriteNodeDay appends one row per node for a simulated day: sim_id, day,
// node_id, then one compartment total per configured label in compartment
// order.
func (o *CSVOutput) WriteNodeDay(day int, net *Network) error {
	var b bytes.Buffer
	labels := net.Nodes[0].Compartments.Labels()
	for _, node := range net.Nodes {
		b.WriteString(o.SimID)
		b.WriteString(",")
		fmt.Fprintf(&b, "%d,%s", day, node.ID)
		for _, label := range labels {
			idx := node.Compartments.MustIndex(label)
			var total float64
			for a := 0; a < node.Ages; a++ {
				for r := 0; r < 2; r++ {
					for v := 0; v < 2; v++ {
						total += node.Count(a, r, v, idx)
					}
				}
			}
			fmt.Fprintf(&b, ",%f", total)
		}
		b.WriteString("\n")
	}
	return AppendToFile(o.nodePath, b.Bytes())
}

// WriteNetworkDay appends one row for a simulated day: sim_id, day, then
// one network-wide compartment total per configured label.
func (o *CSVOutput) WriteNetworkDay(day int, net *Network) error {
	labels := net.Nodes[0].Compartments.Labels()
	totals := make([]float64, len(labels))
	for _, node := range net.Nodes {
		for i, label := range labels {
			idx := node.Compartments.MustIndex(label)
			for a := 0; a < node.Ages; a++ {
				for r := 0; r < 2; r++ {
					for v := 0; v < 2; v++ {
						totals[i] += node.Count(a, r, v, idx)
					}
				}
			}
		}
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s,%d", o.SimID, day)
	for _, t := range totals {
		fmt.Fprintf(&b, ",%f", t)
	}
	b.WriteString("\n")
	return AppendToFile(o.netPath, b.Bytes())
}

// WriteRealizationTime appends one row recording a completed
// realization's wall-clock duration in seconds.
func (o *CSVOutput) WriteRealizationTime(realizationIndex int, seconds float64) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s,%d,%f\n", o.SimID, realizationIndex, seconds)
	return AppendToFile(o.timesPath, b.Bytes())
}

// AppendToFile creates a new file on the given path if it does not exist,
// or appends to the end of the existing file if the file exists.
func AppendToFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}
