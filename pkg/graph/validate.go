package graph

import (
	"errors"
	"fmt"

	"github.com/chive/backend/pkg/nodetype"
)

var ErrMultipleSelected = errors.New("more than one node selected")

// Validate checks every invariant of a well-formed graph: unique ids,
// registered types with matching params and finite positions, edges between
// existing in-range ports, at most one edge per input, no cycles and at most
// one selected node. Node and edge ids must not be empty.
func (g Graph) Validate() error {
	nodes := make(map[string]bool, len(g.Nodes))
	selected := 0
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node: %w", ErrEmptyID)
		}
		if nodes[n.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
		}
		nodes[n.ID] = true
		if err := checkNode(n); err != nil {
			return err
		}
		if n.Selected {
			selected++
		}
	}
	if selected > 1 {
		return ErrMultipleSelected
	}

	edges := make(map[string]bool, len(g.Edges))
	targets := make(map[Port]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID == "" {
			return fmt.Errorf("edge %s -> %s: %w", e.Source, e.Target, ErrEmptyID)
		}
		if edges[e.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateEdge, e.ID)
		}
		edges[e.ID] = true
		if err := g.checkPort(e.Source, Output); err != nil {
			return fmt.Errorf("edge %q: %w", e.ID, err)
		}
		if err := g.checkPort(e.Target, Input); err != nil {
			return fmt.Errorf("edge %q: %w", e.ID, err)
		}
		if targets[e.Target] {
			return fmt.Errorf("edge %q: %w: %s", e.ID, ErrPortOccupied, e.Target)
		}
		targets[e.Target] = true
	}

	_, err := g.Order()
	return err
}

func checkNode(n Node) error {
	if _, ok := nodetype.Lookup(n.Type); !ok {
		return fmt.Errorf("node %q: %w: %d", n.ID, nodetype.ErrUnknownType, int(n.Type))
	}
	if !n.Position.Finite() {
		return fmt.Errorf("node %q: %w", n.ID, ErrBadPosition)
	}
	if n.Params == nil || n.Params.NodeType() != n.Type {
		return fmt.Errorf("node %q: %w", n.ID, ErrParamsMismatch)
	}
	if err := nodetype.Validate(n.Params); err != nil {
		return fmt.Errorf("node %q: %w: %w", n.ID, ErrParamsMismatch, err)
	}
	return nil
}

func (g Graph) checkPort(p Port, side Side) error {
	n, ok := g.Node(p.NodeID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, p.NodeID)
	}
	if p.Side != side {
		return fmt.Errorf("%w: %s is not an %s port", ErrPortSide, p, side)
	}
	cfg, ok := nodetype.Lookup(n.Type)
	if !ok {
		return fmt.Errorf("%w: %d", nodetype.ErrUnknownType, int(n.Type))
	}
	count := cfg.Inputs
	if side == Output {
		count = cfg.Outputs
	}
	if p.Index < 0 || p.Index >= count {
		return fmt.Errorf("%w: %s (%s has %d)", ErrPortRange, p, n.Type, count)
	}
	return nil
}

// CheckEdge reports whether e can be added to g without breaking any
// invariant.
func (g Graph) CheckEdge(e Edge) error {
	if e.ID != "" && g.EdgeIndex(e.ID) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateEdge, e.ID)
	}
	if err := g.checkPort(e.Source, Output); err != nil {
		return err
	}
	if err := g.checkPort(e.Target, Input); err != nil {
		return err
	}
	if prev, ok := g.Incoming(e.Target); ok {
		return fmt.Errorf("%w: %s is fed by %s", ErrPortOccupied, e.Target, prev.Source)
	}
	if g.reaches(e.Target.NodeID, e.Source.NodeID) {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, e.Source.NodeID, e.Target.NodeID)
	}
	return nil
}

// PortInRange reports whether p exists on its node's current type.
func (g Graph) PortInRange(p Port) bool {
	return g.checkPort(p, p.Side) == nil
}

// reaches reports whether to is reachable from from along edges. Every node
// reaches itself.
func (g Graph) reaches(from, to string) bool {
	adj := g.adjacency()
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		for _, next := range adj[id] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func (g Graph) adjacency() map[string][]string {
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.Source.NodeID] = append(adj[e.Source.NodeID], e.Target.NodeID)
	}
	return adj
}

// Order returns the nodes in execution order: every node after all of its
// upstream nodes, ties broken by list order. It fails with ErrCycle if the
// edges are cyclic.
func (g Graph) Order() ([]Node, error) {
	indegree := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		indegree[e.Target.NodeID]++
	}
	adj := g.adjacency()

	done := make(map[string]bool, len(g.Nodes))
	order := make([]Node, 0, len(g.Nodes))
	for len(order) < len(g.Nodes) {
		progressed := false
		for _, n := range g.Nodes {
			if done[n.ID] || indegree[n.ID] > 0 {
				continue
			}
			done[n.ID] = true
			order = append(order, n)
			for _, next := range adj[n.ID] {
				indegree[next]--
			}
			progressed = true
		}
		if !progressed {
			return nil, ErrCycle
		}
	}
	return order, nil
}
