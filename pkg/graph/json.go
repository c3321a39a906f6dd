package graph

import (
	"encoding/json"
	"fmt"

	"github.com/chive/backend/pkg/nodetype"
)

// NodeKind is the canvas node kind every pipeline node is rendered with.
const NodeKind = "cvNode"

type wireNode struct {
	ID       string       `json:"id"`
	Position Position     `json:"position"`
	Type     string       `json:"type"`
	Data     wireNodeData `json:"data"`
}

type wireNodeData struct {
	Name       string            `json:"name"`
	CVNodeType nodetype.NodeType `json:"cvNodeType"`
	Params     json.RawMessage   `json:"params"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	params := n.Params
	if params == nil {
		params = nodetype.DefaultParams(n.Type)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireNode{
		ID:       n.ID,
		Position: n.Position,
		Type:     NodeKind,
		Data: wireNodeData{
			Name:       n.Name,
			CVNodeType: n.Type,
			Params:     raw,
		},
	})
}

// UnmarshalJSON accepts untrusted documents: params are coerced onto the
// node type's schema, an unregistered type is an error. A missing kind is
// read as NodeKind; any other kind is rejected.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Type != "" && w.Type != NodeKind {
		return fmt.Errorf("node %q: %w: %q", w.ID, ErrNodeKind, w.Type)
	}
	params, err := nodetype.DecodeParams(w.Data.CVNodeType, w.Data.Params)
	if err != nil {
		return fmt.Errorf("node %q: %w", w.ID, err)
	}
	*n = Node{
		ID:       w.ID,
		Position: w.Position,
		Name:     w.Data.Name,
		Type:     w.Data.CVNodeType,
		Params:   params,
	}
	return nil
}

type wireEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEdge{
		ID:           e.ID,
		Source:       e.Source.NodeID,
		SourceHandle: e.Source.Handle(),
		Target:       e.Target.NodeID,
		TargetHandle: e.Target.Handle(),
	})
}

// UnmarshalJSON treats a missing handle as index 0.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var w wireEdge
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	src, err := handlePort(w.Source, w.SourceHandle, Output)
	if err != nil {
		return fmt.Errorf("edge %q: %w", w.ID, err)
	}
	dst, err := handlePort(w.Target, w.TargetHandle, Input)
	if err != nil {
		return fmt.Errorf("edge %q: %w", w.ID, err)
	}
	*e = Edge{ID: w.ID, Source: src, Target: dst}
	return nil
}

func handlePort(nodeID, handle string, want Side) (Port, error) {
	if handle == "" {
		return Port{NodeID: nodeID, Side: want}, nil
	}
	side, idx, err := ParseHandle(handle)
	if err != nil {
		return Port{}, err
	}
	if side != want {
		return Port{}, fmt.Errorf("%w: %q", ErrPortSide, handle)
	}
	return Port{NodeID: nodeID, Side: side, Index: idx}, nil
}

type wireGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON writes {nodes, edges}, with empty lists rather than null.
func (g Graph) MarshalJSON() ([]byte, error) {
	w := wireGraph{Nodes: g.Nodes, Edges: g.Edges}
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	if w.Edges == nil {
		w.Edges = []Edge{}
	}
	return json.Marshal(w)
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	if w.Edges == nil {
		w.Edges = []Edge{}
	}
	*g = Graph{Nodes: w.Nodes, Edges: w.Edges}
	return nil
}

// Parse decodes a {nodes, edges} document and validates it.
func Parse(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, err
	}
	if err := g.Validate(); err != nil {
		return Graph{}, err
	}
	return g, nil
}
