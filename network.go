package pandemicsim

import "github.com/pkg/errors"

// FlowMatrix is a dense N×N nonnegative commuter-flow matrix. Row-
// stochasticity is not required and a zero diagonal is conventional.
// Stored as one contiguous slice, mirroring the
// compartment tensor's layout choice for the same reason: the travel
// coupler reads every entry once per day and should not pay map overhead
// for it.
type FlowMatrix struct {
	n    int
	flow []float64
}

// NewFlowMatrix allocates an n×n flow matrix, all entries zero.
func NewFlowMatrix(n int) *FlowMatrix {
	return &FlowMatrix{n: n, flow: make([]float64, n*n)}
}

// Size returns the matrix dimension.
func (f *FlowMatrix) Size() int { return f.n }

// At returns F[sink][source].
func (f *FlowMatrix) At(sink, source int) float64 {
	return f.flow[sink*f.n+source]
}

// Set assigns F[sink][source] = v.
func (f *FlowMatrix) Set(sink, source int, v float64) {
	f.flow[sink*f.n+source] = v
}

// Copy returns an independent copy of the matrix.
func (f *FlowMatrix) Copy() *FlowMatrix {
	return &FlowMatrix{n: f.n, flow: append([]float64(nil), f.flow...)}
}

// ContactMatrix is the dense, symmetric, age-structured contact matrix
// C[a,a']. It is square by construction (NewContactMatrix validates this)
// and, unlike FlowMatrix, never changes size once a run starts.
type ContactMatrix struct {
	ages int
	c    []float64
}

// NewContactMatrix wraps a pre-loaded A×A row-major slice, validating
// squareness against the declared age count.
func NewContactMatrix(ages int, rows [][]float64) (*ContactMatrix, error) {
	if len(rows) != ages {
		return nil, NewShapeError("contact", NonSquareMatrixError, len(rows), ages)
	}
	flat := make([]float64, ages*ages)
	for i, row := range rows {
		if len(row) != ages {
			return nil, NewShapeError("contact", NonSquareMatrixError, len(rows), len(row))
		}
		copy(flat[i*ages:(i+1)*ages], row)
	}
	return &ContactMatrix{ages: ages, c: flat}, nil
}

// At returns C[a,a'].
func (m *ContactMatrix) At(a, ap int) float64 {
	return m.c[a*m.ages+ap]
}

// Ages returns the number of age groups the matrix covers.
func (m *ContactMatrix) Ages() int { return m.ages }

// Network is the ordered list of nodes plus the commuter-flow matrix
// connecting them. Node order is fixed at construction
// and defines the dense node_index space every other component addresses
// nodes by.
type Network struct {
	Nodes []*Node
	Flow  *FlowMatrix

	byID map[string]int
}

// NewNetwork builds a Network from an ordered node list and a flow matrix
// sized to match. Returns a ShapeError if the flow matrix's dimension
// does not equal the node count.
func NewNetwork(nodes []*Node, flow *FlowMatrix) (*Network, error) {
	if flow.Size() != len(nodes) {
		return nil, NewShapeError("flow", MatrixSizeMismatchError, flow.Size(), "node", len(nodes))
	}
	net := &Network{Nodes: nodes, Flow: flow, byID: make(map[string]int, len(nodes))}
	for i, n := range nodes {
		if n.Index != i {
			return nil, errors.Errorf("node %q has index %d, expected dense position %d", n.ID, n.Index, i)
		}
		net.byID[n.ID] = i
	}
	return net, nil
}

// NodeByID resolves a user-facing node_id to its dense index.
func (net *Network) NodeByID(id string) (int, bool) {
	i, ok := net.byID[id]
	return i, ok
}

// Size returns the number of nodes in the network.
func (net *Network) Size() int { return len(net.Nodes) }

// Clone deep-copies every node and the flow matrix, giving a realization
// its own mutable working copy of the pristine initial network. The
// node index, ID map, and flow matrix topology are
// immutable across realizations, so only the per-node tensors (and, for
// the stochastic engine, event queues/counters) actually need copying.
func (net *Network) Clone() *Network {
	nodes := make([]*Node, len(net.Nodes))
	for i, n := range net.Nodes {
		nodes[i] = n.Clone()
	}
	return &Network{
		Nodes: nodes,
		Flow:  net.Flow.Copy(),
		byID:  net.byID, // immutable: node_id -> index never changes across realizations
	}
}
