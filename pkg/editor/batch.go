package editor

import (
	"fmt"
	"slices"

	"github.com/chive/backend/pkg/graph"
	"github.com/chive/backend/pkg/logger"
	"github.com/chive/backend/pkg/nodetype"
)

type NodeChangeKind int

const (
	NodeAdd NodeChangeKind = iota
	NodeRemove
	NodeMove
	NodeSelect
)

// NodeChange is one node instruction of a Batch. Add uses Node, Move uses
// Position and Select uses Selected; the others only need ID.
type NodeChange struct {
	Kind     NodeChangeKind
	ID       string
	Node     graph.Node
	Position graph.Position
	Selected bool
}

type EdgeChangeKind int

const (
	EdgeConnect EdgeChangeKind = iota
	EdgeRemove
)

// EdgeChange is one edge instruction of a Batch. Connect uses Source and
// Target and takes ID if it is set; Remove only needs ID.
type EdgeChange struct {
	Kind   EdgeChangeKind
	ID     string
	Source graph.Port
	Target graph.Port
}

// Batch groups the changes the canvas produces for one gesture: a drag, a
// multi-delete, a reconnect.
type Batch struct {
	Nodes []NodeChange
	Edges []EdgeChange
}

// ApplyStructuralChange applies the node changes in order, then the edge
// changes in order, as one transition. If any change is invalid, or the
// result breaks a graph invariant, nothing is applied and the error is
// returned.
func (s *Store) ApplyStructuralChange(b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.g.Clone()
	var changed Change
	for _, c := range b.Nodes {
		flags, err := s.applyNodeChangeLocked(&next, c)
		if err != nil {
			logger.Debug("Rejected structural change", "node", c.ID, "err", err)
			return err
		}
		changed |= flags
	}
	for _, c := range b.Edges {
		if err := s.applyEdgeChangeLocked(&next, c); err != nil {
			logger.Debug("Rejected structural change", "edge", c.ID, "err", err)
			return err
		}
		changed |= ChangeGraph
	}
	if err := next.Validate(); err != nil {
		return err
	}

	s.g = next
	s.publishLocked(changed)
	return nil
}

func (s *Store) applyNodeChangeLocked(g *graph.Graph, c NodeChange) (Change, error) {
	if c.Kind == NodeAdd {
		n := c.Node
		if !n.Type.Valid() {
			return 0, fmt.Errorf("%w: %d", nodetype.ErrUnknownType, int(n.Type))
		}
		if n.ID == "" {
			n.ID = s.freshIDLocked(*g)
		} else if g.NodeIndex(n.ID) >= 0 {
			return 0, fmt.Errorf("%w: %q", graph.ErrDuplicateNode, n.ID)
		}
		if n.Name == "" {
			n.Name = NewNodeName
		}
		if n.Params == nil {
			n.Params = nodetype.DefaultParams(n.Type)
		}
		changed := ChangeGraph
		if n.Selected {
			clearSelection(g)
			changed |= ChangeSelection
		}
		g.Nodes = append(g.Nodes, n)
		return changed, nil
	}

	i := g.NodeIndex(c.ID)
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNode, c.ID)
	}
	switch c.Kind {
	case NodeRemove:
		changed := ChangeGraph
		if g.Nodes[i].Selected {
			changed |= ChangeSelection
		}
		*g = g.Without(c.ID)
		return changed, nil
	case NodeMove:
		if g.Nodes[i].Position == c.Position {
			return 0, nil
		}
		g.Nodes[i].Position = c.Position
		return ChangeGraph, nil
	case NodeSelect:
		if g.Nodes[i].Selected == c.Selected {
			return 0, nil
		}
		if c.Selected {
			clearSelection(g)
		}
		g.Nodes[i].Selected = c.Selected
		return ChangeSelection, nil
	default:
		return 0, fmt.Errorf("unknown node change kind %d", c.Kind)
	}
}

func (s *Store) applyEdgeChangeLocked(g *graph.Graph, c EdgeChange) error {
	switch c.Kind {
	case EdgeConnect:
		e := graph.Edge{ID: c.ID, Source: c.Source, Target: c.Target}
		if err := g.CheckEdge(e); err != nil {
			return err
		}
		if e.ID == "" {
			e.ID = s.freshIDLocked(*g)
		}
		g.Edges = append(g.Edges, e)
		return nil
	case EdgeRemove:
		i := g.EdgeIndex(c.ID)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownEdge, c.ID)
		}
		g.Edges = slices.Delete(g.Edges, i, i+1)
		return nil
	default:
		return fmt.Errorf("unknown edge change kind %d", c.Kind)
	}
}

func clearSelection(g *graph.Graph) {
	for i := range g.Nodes {
		g.Nodes[i].Selected = false
	}
}
