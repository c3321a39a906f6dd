// Package graph holds the pipeline graph: typed nodes, the edges between
// their ports and the rules a well-formed graph satisfies.
package graph

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/chive/backend/pkg/nodetype"
)

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Finite reports whether both coordinates are real numbers. NaN and the
// infinities cannot be encoded as JSON.
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Node is one operation in the pipeline. Selected is editor state and is
// never persisted.
type Node struct {
	ID       string
	Position Position
	Name     string
	Type     nodetype.NodeType
	Params   nodetype.Params
	Selected bool
}

type Side int

const (
	Input Side = iota
	Output
)

func (s Side) String() string {
	if s == Input {
		return "in"
	}
	return "out"
}

// Port addresses one connection point of a node.
type Port struct {
	NodeID string
	Side   Side
	Index  int
}

func InputPort(nodeID string, index int) Port {
	return Port{NodeID: nodeID, Side: Input, Index: index}
}

func OutputPort(nodeID string, index int) Port {
	return Port{NodeID: nodeID, Side: Output, Index: index}
}

// Handle returns the wire name of the port, "in-<i>" or "out-<i>".
func (p Port) Handle() string {
	return p.Side.String() + "-" + strconv.Itoa(p.Index)
}

func (p Port) String() string {
	return p.NodeID + ":" + p.Handle()
}

// ParseHandle is the inverse of Port.Handle.
func ParseHandle(h string) (Side, int, error) {
	prefix, idx, ok := strings.Cut(h, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHandle, h)
	}
	var side Side
	switch prefix {
	case "in":
		side = Input
	case "out":
		side = Output
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHandle, h)
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHandle, h)
	}
	return side, i, nil
}

// Edge connects an output port to an input port.
type Edge struct {
	ID     string
	Source Port
	Target Port
}

// Touches reports whether either endpoint of e is on node id.
func (e Edge) Touches(id string) bool {
	return e.Source.NodeID == id || e.Target.NodeID == id
}

// Graph is an ordered list of nodes and an ordered list of edges.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Clone returns a copy that shares no slices with g. Params records are
// values and are safe to share.
func (g Graph) Clone() Graph {
	return Graph{
		Nodes: slices.Clone(g.Nodes),
		Edges: slices.Clone(g.Edges),
	}
}

// NodeIndex returns the position of node id in g.Nodes, or -1.
func (g Graph) NodeIndex(id string) int {
	return slices.IndexFunc(g.Nodes, func(n Node) bool { return n.ID == id })
}

func (g Graph) Node(id string) (Node, bool) {
	i := g.NodeIndex(id)
	if i < 0 {
		return Node{}, false
	}
	return g.Nodes[i], true
}

func (g Graph) EdgeIndex(id string) int {
	return slices.IndexFunc(g.Edges, func(e Edge) bool { return e.ID == id })
}

// Incoming returns the edge connected to input port p, if any.
func (g Graph) Incoming(p Port) (Edge, bool) {
	i := slices.IndexFunc(g.Edges, func(e Edge) bool { return e.Target == p })
	if i < 0 {
		return Edge{}, false
	}
	return g.Edges[i], true
}

// Without returns g minus the given nodes and every edge touching them.
func (g Graph) Without(ids ...string) Graph {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := Graph{
		Nodes: make([]Node, 0, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		if !drop[n.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		if !drop[e.Source.NodeID] && !drop[e.Target.NodeID] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Selected returns the id of the selected node, or "" when none is.
func (g Graph) Selected() string {
	for _, n := range g.Nodes {
		if n.Selected {
			return n.ID
		}
	}
	return ""
}
