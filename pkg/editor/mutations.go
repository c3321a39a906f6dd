package editor

import (
	"fmt"
	"slices"

	"github.com/chive/backend/pkg/graph"
	"github.com/chive/backend/pkg/nodetype"
	"github.com/chive/backend/pkg/project"
)

// AddNode appends a node of type t with default parameters. The selection is
// left alone. A position that is not finite is rejected with
// graph.ErrBadPosition.
func (s *Store) AddNode(t nodetype.NodeType, pos graph.Position) (graph.Node, error) {
	if !pos.Finite() {
		return graph.Node{}, fmt.Errorf("%w: (%v, %v)", graph.ErrBadPosition, pos.X, pos.Y)
	}
	params := nodetype.DefaultParams(t)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := graph.Node{
		ID:       s.freshIDLocked(s.g),
		Position: pos,
		Name:     NewNodeName,
		Type:     t,
		Params:   params,
	}
	s.g = graph.Graph{
		Nodes: append(slices.Clone(s.g.Nodes), n),
		Edges: s.g.Edges,
	}
	s.publishLocked(ChangeGraph)
	return n, nil
}

// NodeDataPatch carries the fields of a node's data to overwrite; nil fields
// are kept.
type NodeDataPatch struct {
	Name   *string
	Type   *nodetype.NodeType
	Params nodetype.Params
}

// UpdateNodeData merges patch into node id. It reports false and changes
// nothing when the node is unknown, the type is unregistered or the params
// do not fit the resulting type.
//
// Changing the type replaces the params with the new type's defaults unless
// the patch carries params for it, and drops every edge attached to a port
// the new type does not have.
func (s *Store) UpdateNodeData(id string, patch NodeDataPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.g.NodeIndex(id)
	if i < 0 {
		return false
	}
	n := s.g.Nodes[i]
	prev := n

	if patch.Type != nil && *patch.Type != n.Type {
		if !patch.Type.Valid() {
			return false
		}
		n.Type = *patch.Type
		n.Params = nodetype.DefaultParams(n.Type)
	}
	if patch.Params != nil {
		if patch.Params.NodeType() != n.Type || nodetype.Validate(patch.Params) != nil {
			return false
		}
		n.Params = patch.Params
	}
	if patch.Name != nil {
		n.Name = *patch.Name
	}
	if n == prev {
		return true
	}

	next := graph.Graph{Nodes: slices.Clone(s.g.Nodes), Edges: s.g.Edges}
	next.Nodes[i] = n
	if n.Type != prev.Type {
		next.Edges = slices.DeleteFunc(slices.Clone(s.g.Edges), func(e graph.Edge) bool {
			return !next.PortInRange(e.Source) || !next.PortInRange(e.Target)
		})
	}
	s.g = next
	s.publishLocked(ChangeGraph)
	return true
}

// RemoveNodes deletes the given nodes and every edge touching them. Unknown
// ids are ignored.
func (s *Store) RemoveNodes(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.g.Without(ids...)
	if len(next.Nodes) == len(s.g.Nodes) {
		return
	}
	changed := ChangeGraph
	if s.g.Selected() != next.Selected() {
		changed |= ChangeSelection
	}
	s.g = next
	s.publishLocked(changed)
}

// RemoveEdges deletes the given edges. Unknown ids are ignored.
func (s *Store) RemoveEdges(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := slices.DeleteFunc(slices.Clone(s.g.Edges), func(e graph.Edge) bool {
		return slices.Contains(ids, e.ID)
	})
	if len(edges) == len(s.g.Edges) {
		return
	}
	s.g = graph.Graph{Nodes: s.g.Nodes, Edges: edges}
	s.publishLocked(ChangeGraph)
}

// SetSelection makes id the only selected node, or clears the selection when
// id is empty. An unknown id is a no-op reported as false.
func (s *Store) SetSelection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" && s.g.NodeIndex(id) < 0 {
		return false
	}
	if s.g.Selected() == id {
		return true
	}
	nodes := slices.Clone(s.g.Nodes)
	for i := range nodes {
		nodes[i].Selected = nodes[i].ID == id
	}
	s.g = graph.Graph{Nodes: nodes, Edges: s.g.Edges}
	s.publishLocked(ChangeSelection)
	return true
}

// Selected returns the id of the selected node, or "".
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Selected()
}

// Connect adds an edge from output port src to input port dst. It fails with
// the graph package's sentinel errors when either port is missing or on the
// wrong side, when dst is already connected or when the edge would close a
// cycle.
func (s *Store) Connect(src, dst graph.Port) (graph.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := graph.Edge{Source: src, Target: dst}
	if err := s.g.CheckEdge(e); err != nil {
		return graph.Edge{}, err
	}
	e.ID = s.freshIDLocked(s.g)
	s.g = graph.Graph{
		Nodes: s.g.Nodes,
		Edges: append(slices.Clone(s.g.Edges), e),
	}
	s.publishLocked(ChangeGraph)
	return e, nil
}

func (s *Store) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == s.title {
		return
	}
	s.title = title
	s.publishLocked(ChangeTitle)
}

// Load replaces the session state with a stored project and marks the store
// loaded. meta is nil for a project storage has never seen. The graph must be
// valid.
func (s *Store) Load(title string, g graph.Graph, meta *project.Meta) error {
	if err := g.Validate(); err != nil {
		return err
	}
	g = g.Clone()
	if g.Nodes == nil {
		g.Nodes = []graph.Node{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.g = g
	s.title = title
	s.meta = nil
	if meta != nil {
		m := *meta
		s.meta = &m
	}
	s.loaded = true
	s.loadVer = s.version + 1
	s.publishLocked(ChangeLoad)
	return nil
}

// MarkLoaded starts a session on the current (starter) state without
// loading anything.
func (s *Store) MarkLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return
	}
	s.loaded = true
	s.loadVer = s.version + 1
	s.publishLocked(ChangeLoad)
}

// MarkSaved records the result of a successful save.
func (s *Store) MarkSaved(saved project.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := project.Merge(s.meta, saved)
	if s.meta != nil && *s.meta == m {
		return
	}
	s.meta = &m
	s.publishLocked(ChangeProject)
}
