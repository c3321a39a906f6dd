package graph

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chive/backend/pkg/nodetype"
)

func node(id string, t nodetype.NodeType) Node {
	return Node{ID: id, Name: id, Type: t, Params: nodetype.DefaultParams(t)}
}

func edge(id, src, dst string) Edge {
	return Edge{ID: id, Source: OutputPort(src, 0), Target: InputPort(dst, 0)}
}

func chain() Graph {
	return Graph{
		Nodes: []Node{node("src", nodetype.Source), node("blur", nodetype.Blur), node("out", nodetype.Output)},
		Edges: []Edge{edge("e1", "src", "blur"), edge("e2", "blur", "out")},
	}
}

func TestHandles(t *testing.T) {
	assert.Equal(t, "in-0", InputPort("a", 0).Handle())
	assert.Equal(t, "out-3", OutputPort("a", 3).Handle())

	side, idx, err := ParseHandle("out-2")
	require.NoError(t, err)
	assert.Equal(t, Output, side)
	assert.Equal(t, 2, idx)

	for _, bad := range []string{"", "out", "left-1", "in-x", "in--1"} {
		_, _, err := ParseHandle(bad)
		assert.ErrorIs(t, err, ErrBadHandle, bad)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Graph)
		want   error
	}{
		{
			name:   "well formed",
			mutate: func(g *Graph) {},
		},
		{
			name:   "duplicate node",
			mutate: func(g *Graph) { g.Nodes = append(g.Nodes, node("blur", nodetype.Blur)) },
			want:   ErrDuplicateNode,
		},
		{
			name:   "duplicate edge",
			mutate: func(g *Graph) { g.Edges[1].ID = "e1" },
			want:   ErrDuplicateEdge,
		},
		{
			name:   "dangling edge",
			mutate: func(g *Graph) { g.Edges = append(g.Edges, edge("e3", "ghost", "out")) },
			want:   ErrUnknownNode,
		},
		{
			name:   "target on output side",
			mutate: func(g *Graph) { g.Edges[0].Target.Side = Output },
			want:   ErrPortSide,
		},
		{
			name:   "port out of range",
			mutate: func(g *Graph) { g.Edges[0].Source.Index = 1 },
			want:   ErrPortRange,
		},
		{
			name: "two edges into one input",
			mutate: func(g *Graph) {
				g.Nodes = append(g.Nodes, node("src2", nodetype.Source))
				g.Edges = append(g.Edges, edge("e3", "src2", "blur"))
			},
			want: ErrPortOccupied,
		},
		{
			name: "cycle",
			mutate: func(g *Graph) {
				g.Nodes = append(g.Nodes, node("fry", nodetype.DeepFry))
				g.Edges = []Edge{edge("e1", "blur", "fry"), edge("e2", "fry", "blur")}
			},
			want: ErrCycle,
		},
		{
			name:   "params of another type",
			mutate: func(g *Graph) { g.Nodes[1].Params = nodetype.DefaultParams(nodetype.DeepFry) },
			want:   ErrParamsMismatch,
		},
		{
			name:   "params out of bounds",
			mutate: func(g *Graph) { g.Nodes[1].Params = nodetype.BlurParams{Size: 0} },
			want:   ErrParamsMismatch,
		},
		{
			name:   "unregistered type",
			mutate: func(g *Graph) { g.Nodes[1].Type = nodetype.NodeType(17) },
			want:   nodetype.ErrUnknownType,
		},
		{
			name:   "NaN position",
			mutate: func(g *Graph) { g.Nodes[1].Position.X = math.NaN() },
			want:   ErrBadPosition,
		},
		{
			name:   "infinite position",
			mutate: func(g *Graph) { g.Nodes[2].Position.Y = math.Inf(-1) },
			want:   ErrBadPosition,
		},
		{
			name: "empty node id",
			mutate: func(g *Graph) {
				g.Nodes = append(g.Nodes, node("", nodetype.Blur))
			},
			want: ErrEmptyID,
		},
		{
			name:   "empty edge id",
			mutate: func(g *Graph) { g.Edges[0].ID = "" },
			want:   ErrEmptyID,
		},
		{
			name: "two selected",
			mutate: func(g *Graph) {
				g.Nodes[0].Selected = true
				g.Nodes[2].Selected = true
			},
			want: ErrMultipleSelected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chain()
			tt.mutate(&g)
			err := g.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckEdge(t *testing.T) {
	g := Graph{Nodes: []Node{
		node("src", nodetype.Source),
		node("blur", nodetype.Blur),
		node("fry", nodetype.DeepFry),
		node("out", nodetype.Output),
		node("lone", nodetype.Blur),
	}}
	require.NoError(t, g.CheckEdge(edge("a", "src", "blur")))
	g.Edges = append(g.Edges, edge("a", "src", "blur"), edge("b", "blur", "fry"))

	tests := []struct {
		name string
		e    Edge
		want error
	}{
		{"self loop", edge("x", "lone", "lone"), ErrCycle},
		{"back edge", edge("x", "fry", "blur"), ErrPortOccupied},
		{"occupied input", edge("x", "src", "fry"), ErrPortOccupied},
		{"source into source", Edge{ID: "x", Source: OutputPort("fry", 0), Target: InputPort("src", 0)}, ErrPortRange},
		{"from an input", Edge{ID: "x", Source: InputPort("fry", 0), Target: InputPort("out", 0)}, ErrPortSide},
		{"missing node", edge("x", "ghost", "out"), ErrUnknownNode},
		{"reused id", edge("a", "fry", "out"), ErrDuplicateEdge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, g.CheckEdge(tt.e), tt.want)
		})
	}

	assert.NoError(t, g.CheckEdge(edge("c", "fry", "out")))
}

func TestCheckEdgeDetectsLongCycle(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("a", nodetype.Blur), node("b", nodetype.DeepFry), node("c", nodetype.Blur)},
		Edges: []Edge{edge("1", "a", "b"), edge("2", "b", "c")},
	}
	assert.ErrorIs(t, g.CheckEdge(edge("3", "c", "a")), ErrCycle)
}

func TestWithoutCascades(t *testing.T) {
	g := chain().Without("blur")
	assert.Len(t, g.Nodes, 2)
	assert.Empty(t, g.Edges)
	for _, e := range g.Edges {
		assert.False(t, e.Touches("blur"))
	}
	assert.NoError(t, g.Validate())
}

func TestOrder(t *testing.T) {
	g := chain()
	g.Nodes = []Node{g.Nodes[2], g.Nodes[1], g.Nodes[0]}

	order, err := g.Order()
	require.NoError(t, err)
	ids := make([]string, len(order))
	for i, n := range order {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"src", "blur", "out"}, ids)
}

func TestCloneIsIndependent(t *testing.T) {
	g := chain()
	c := g.Clone()
	c.Nodes[0].Name = "changed"
	c.Edges = c.Edges[:1]
	assert.Equal(t, "src", g.Nodes[0].Name)
	assert.Len(t, g.Edges, 2)
}

func TestWireFormat(t *testing.T) {
	g := chain()
	g.Nodes[0].Selected = true
	g.Nodes[1].Position = Position{X: 120, Y: -4.5}

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var doc map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["nodes"], 3)
	blur := doc["nodes"][1]
	assert.Equal(t, "blur", blur["id"])
	assert.Equal(t, NodeKind, blur["type"])
	assert.Equal(t, map[string]any{"x": 120.0, "y": -4.5}, blur["position"])
	assert.Equal(t, map[string]any{
		"name":       "blur",
		"cvNodeType": float64(nodetype.Blur),
		"params":     map[string]any{"size": float64(5)},
	}, blur["data"])
	assert.NotContains(t, doc["nodes"][0], "selected")

	assert.Equal(t, map[string]any{
		"id":           "e1",
		"source":       "src",
		"sourceHandle": "out-0",
		"target":       "blur",
		"targetHandle": "in-0",
	}, doc["edges"][0])

	back, err := Parse(data)
	require.NoError(t, err)
	want := chain()
	want.Nodes[1].Position = Position{X: 120, Y: -4.5}
	assert.Equal(t, want, back)
}

func TestEmptyGraphEncodesEmptyLists(t *testing.T) {
	data, err := json.Marshal(Graph{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(data))
}

func TestDecodeTolerance(t *testing.T) {
	doc := `{
		"nodes": [
			{"id": "s", "position": {"x": 0, "y": 0}, "type": "cvNode",
			 "data": {"name": "Source Node", "cvNodeType": 0, "params": {"stale": 1}}},
			{"id": "b", "position": {"x": 1, "y": 1}, "type": "cvNode",
			 "data": {"name": "Blur", "cvNodeType": 2, "params": {"size": 1000}}}
		],
		"edges": [{"id": "e", "source": "s", "target": "b"}]
	}`
	g, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, nodetype.SourceParams{}, g.Nodes[0].Params)
	assert.Equal(t, nodetype.BlurParams{Size: 99}, g.Nodes[1].Params)
	assert.Equal(t, edge("e", "s", "b"), g.Edges[0])
}

func TestPositionFinite(t *testing.T) {
	assert.True(t, Position{X: -3, Y: 1e300}.Finite())
	assert.False(t, Position{X: math.NaN()}.Finite())
	assert.False(t, Position{Y: math.Inf(1)}.Finite())
}

func TestDecodeMissingKindIsNodeKind(t *testing.T) {
	g, err := Parse([]byte(`{"nodes":[{"id":"s","data":{"name":"Source Node","cvNodeType":0}}],"edges":[]}`))
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	var doc struct {
		Nodes []struct {
			Type string `json:"type"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, NodeKind, doc.Nodes[0].Type)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown type",
			doc:  `{"nodes":[{"id":"x","data":{"cvNodeType":9}}],"edges":[]}`,
			want: nodetype.ErrUnknownType,
		},
		{
			name: "swapped handles",
			doc:  `{"nodes":[],"edges":[{"id":"e","source":"a","sourceHandle":"in-0","target":"b"}]}`,
			want: ErrPortSide,
		},
		{
			name: "foreign node kind",
			doc:  `{"nodes":[{"id":"x","type":"textNode","data":{"cvNodeType":0}}],"edges":[]}`,
			want: ErrNodeKind,
		},
		{
			name: "empty node id",
			doc:  `{"nodes":[{"id":"","type":"cvNode","data":{"cvNodeType":0}}],"edges":[]}`,
			want: ErrEmptyID,
		},
		{
			name: "edge without id",
			doc: `{"nodes":[{"id":"s","data":{"cvNodeType":0}},{"id":"o","data":{"cvNodeType":1}}],
				"edges":[{"source":"s","target":"o"}]}`,
			want: ErrEmptyID,
		},
		{
			name: "garbled handle",
			doc:  `{"nodes":[],"edges":[{"id":"e","source":"a","target":"b","targetHandle":"in"}]}`,
			want: ErrBadHandle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
