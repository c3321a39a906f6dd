package editor

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chive/backend/pkg/graph"
	"github.com/chive/backend/pkg/nodetype"
	"github.com/chive/backend/pkg/project"
)

func counterIDs() Option {
	n := 100
	return WithIDGenerator(func() string {
		n++
		return "id" + strconv.Itoa(n)
	})
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(counterIDs())
	s.MarkLoaded()
	return s
}

func ptr[T any](v T) *T { return &v }

func add(t *testing.T, s *Store, typ nodetype.NodeType, pos graph.Position) graph.Node {
	t.Helper()
	n, err := s.AddNode(typ, pos)
	require.NoError(t, err)
	return n
}

func TestNewStartsWithStarterGraph(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	assert.False(t, snap.Loaded)
	assert.Equal(t, project.DefaultTitle, snap.Title)
	assert.Nil(t, snap.Project)
	require.Len(t, snap.Graph.Nodes, 1)
	n := snap.Graph.Nodes[0]
	assert.Equal(t, StarterNodeID, n.ID)
	assert.Equal(t, StarterNodeName, n.Name)
	assert.Equal(t, nodetype.Source, n.Type)
	assert.Equal(t, graph.Position{}, n.Position)
	assert.Empty(t, snap.Graph.Edges)
}

func TestAddNode(t *testing.T) {
	s := newStore(t)
	require.True(t, s.SetSelection(StarterNodeID))

	a := add(t, s, nodetype.DeepFry, graph.Position{X: 10, Y: 20})
	b := add(t, s, nodetype.DeepFry, graph.Position{})

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, NewNodeName, a.Name)
	assert.Equal(t, nodetype.DefaultParams(nodetype.DeepFry), a.Params)
	assert.Equal(t, StarterNodeID, s.Selected())

	snap := s.Snapshot()
	require.Len(t, snap.Graph.Nodes, 3)
	assert.Equal(t, a, snap.Graph.Nodes[1])
	assert.NoError(t, snap.Graph.Validate())
}

func TestAddNodeRejectsNonFinitePosition(t *testing.T) {
	s := newStore(t)
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	for _, pos := range []graph.Position{{X: math.NaN()}, {Y: math.Inf(1)}, {X: math.Inf(-1)}} {
		_, err := s.AddNode(nodetype.Blur, pos)
		assert.ErrorIs(t, err, graph.ErrBadPosition)
	}
	assert.Len(t, s.Snapshot().Graph.Nodes, 1)
	assert.Len(t, ch, 0)
}

func TestIDGeneratorSkipsExistingIDs(t *testing.T) {
	ids := []string{StarterNodeID, StarterNodeID, "fresh"}
	s := New(WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	n := add(t, s, nodetype.Blur, graph.Position{})
	assert.Equal(t, "fresh", n.ID)
}

func TestSourceToOutputScenario(t *testing.T) {
	s := New(counterIDs())
	require.NoError(t, s.Load("T", graph.Graph{}, nil))

	src := add(t, s, nodetype.Source, graph.Position{})
	out := add(t, s, nodetype.Output, graph.Position{X: 300})
	e, err := s.Connect(graph.OutputPort(src.ID, 0), graph.InputPort(out.ID, 0))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Graph.Nodes, 2)
	assert.Equal(t, []graph.Edge{e}, snap.Graph.Edges)
	assert.NoError(t, snap.Graph.Validate())
}

func TestConnectRejections(t *testing.T) {
	s := newStore(t)
	a := add(t, s, nodetype.Source, graph.Position{})
	c := add(t, s, nodetype.Source, graph.Position{})
	b := add(t, s, nodetype.Blur, graph.Position{})
	f := add(t, s, nodetype.DeepFry, graph.Position{})
	_, err := s.Connect(graph.OutputPort(c.ID, 0), graph.InputPort(b.ID, 0))
	require.NoError(t, err)
	_, err = s.Connect(graph.OutputPort(b.ID, 0), graph.InputPort(f.ID, 0))
	require.NoError(t, err)

	tests := []struct {
		name     string
		src, dst graph.Port
		want     error
	}{
		{"input already fed", graph.OutputPort(a.ID, 0), graph.InputPort(b.ID, 0), graph.ErrPortOccupied},
		{"source from input side", graph.InputPort(f.ID, 0), graph.InputPort(b.ID, 0), graph.ErrPortSide},
		{"target on output side", graph.OutputPort(a.ID, 0), graph.OutputPort(b.ID, 0), graph.ErrPortSide},
		{"index out of range", graph.OutputPort(a.ID, 1), graph.InputPort(f.ID, 0), graph.ErrPortRange},
		{"source has no inputs", graph.OutputPort(f.ID, 0), graph.InputPort(a.ID, 0), graph.ErrPortRange},
		{"unknown node", graph.OutputPort("ghost", 0), graph.InputPort(f.ID, 0), graph.ErrUnknownNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Snapshot()
			_, err := s.Connect(tt.src, tt.dst)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before.Graph, s.Snapshot().Graph)
		})
	}
	assert.Len(t, s.Snapshot().Graph.Edges, 2)
}

func TestConnectRejectsCycle(t *testing.T) {
	s := newStore(t)
	b := add(t, s, nodetype.Blur, graph.Position{})
	f := add(t, s, nodetype.DeepFry, graph.Position{})
	_, err := s.Connect(graph.OutputPort(b.ID, 0), graph.InputPort(f.ID, 0))
	require.NoError(t, err)

	_, err = s.Connect(graph.OutputPort(f.ID, 0), graph.InputPort(b.ID, 0))
	assert.ErrorIs(t, err, graph.ErrCycle)
	_, err = s.Connect(graph.OutputPort(f.ID, 0), graph.InputPort(f.ID, 0))
	assert.ErrorIs(t, err, graph.ErrPortOccupied)
}

func TestRemoveNodesCascades(t *testing.T) {
	s := newStore(t)
	b := add(t, s, nodetype.Blur, graph.Position{})
	o := add(t, s, nodetype.Output, graph.Position{})
	_, err := s.Connect(graph.OutputPort(StarterNodeID, 0), graph.InputPort(b.ID, 0))
	require.NoError(t, err)
	_, err = s.Connect(graph.OutputPort(b.ID, 0), graph.InputPort(o.ID, 0))
	require.NoError(t, err)
	require.True(t, s.SetSelection(b.ID))

	s.RemoveNodes(b.ID, "ghost")

	snap := s.Snapshot()
	assert.Len(t, snap.Graph.Nodes, 2)
	for _, e := range snap.Graph.Edges {
		assert.False(t, e.Touches(b.ID))
	}
	assert.Empty(t, snap.Graph.Edges)
	assert.Equal(t, "", s.Selected())
}

func TestRemoveEdges(t *testing.T) {
	s := newStore(t)
	o := add(t, s, nodetype.Output, graph.Position{})
	e, err := s.Connect(graph.OutputPort(StarterNodeID, 0), graph.InputPort(o.ID, 0))
	require.NoError(t, err)

	s.RemoveEdges(e.ID)
	assert.Empty(t, s.Snapshot().Graph.Edges)
}

func countSelected(g graph.Graph) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Selected {
			n++
		}
	}
	return n
}

func TestSetSelectionIsExclusive(t *testing.T) {
	s := newStore(t)
	a := add(t, s, nodetype.Blur, graph.Position{})
	b := add(t, s, nodetype.Blur, graph.Position{})

	require.True(t, s.SetSelection(a.ID))
	assert.Equal(t, 1, countSelected(s.Snapshot().Graph))
	assert.Equal(t, a.ID, s.Selected())

	require.True(t, s.SetSelection(b.ID))
	snap := s.Snapshot()
	assert.Equal(t, 1, countSelected(snap.Graph))
	assert.Equal(t, b.ID, snap.Graph.Selected())

	assert.False(t, s.SetSelection("ghost"))
	assert.Equal(t, b.ID, s.Selected())

	require.True(t, s.SetSelection(""))
	assert.Equal(t, 0, countSelected(s.Snapshot().Graph))
}

func TestUpdateNodeData(t *testing.T) {
	s := newStore(t)
	b := add(t, s, nodetype.Blur, graph.Position{})

	assert.False(t, s.UpdateNodeData("ghost", NodeDataPatch{Name: ptr("x")}))

	require.True(t, s.UpdateNodeData(b.ID, NodeDataPatch{Name: ptr("Soft"), Params: nodetype.BlurParams{Size: 9}}))
	n, _ := s.Snapshot().Graph.Node(b.ID)
	assert.Equal(t, "Soft", n.Name)
	assert.Equal(t, nodetype.BlurParams{Size: 9}, n.Params)

	before := s.Snapshot().Graph
	assert.False(t, s.UpdateNodeData(b.ID, NodeDataPatch{Name: ptr("Other"), Params: nodetype.DefaultParams(nodetype.DeepFry)}))
	assert.False(t, s.UpdateNodeData(b.ID, NodeDataPatch{Params: nodetype.BlurParams{Size: 0}}))
	assert.False(t, s.UpdateNodeData(b.ID, NodeDataPatch{Type: ptr(nodetype.NodeType(40))}))
	assert.Equal(t, before, s.Snapshot().Graph)
}

func TestUpdateNodeTypeResetsParams(t *testing.T) {
	s := newStore(t)
	b := add(t, s, nodetype.Blur, graph.Position{})
	require.True(t, s.UpdateNodeData(b.ID, NodeDataPatch{Params: nodetype.BlurParams{Size: 31}}))

	require.True(t, s.UpdateNodeData(b.ID, NodeDataPatch{Type: ptr(nodetype.DeepFry)}))
	n, _ := s.Snapshot().Graph.Node(b.ID)
	assert.Equal(t, nodetype.DeepFry, n.Type)
	assert.Equal(t, nodetype.DefaultParams(nodetype.DeepFry), n.Params)

	custom := nodetype.BlurParams{Size: 3}
	require.True(t, s.UpdateNodeData(b.ID, NodeDataPatch{Type: ptr(nodetype.Blur), Params: custom}))
	n, _ = s.Snapshot().Graph.Node(b.ID)
	assert.Equal(t, custom, n.Params)
}

func TestUpdateNodeTypeDropsOutOfRangeEdges(t *testing.T) {
	s := newStore(t)
	b := add(t, s, nodetype.Blur, graph.Position{})
	o := add(t, s, nodetype.Output, graph.Position{})
	_, err := s.Connect(graph.OutputPort(StarterNodeID, 0), graph.InputPort(b.ID, 0))
	require.NoError(t, err)
	kept, err := s.Connect(graph.OutputPort(b.ID, 0), graph.InputPort(o.ID, 0))
	require.NoError(t, err)

	require.True(t, s.UpdateNodeData(b.ID, NodeDataPatch{Type: ptr(nodetype.Source)}))

	snap := s.Snapshot()
	assert.Equal(t, []graph.Edge{kept}, snap.Graph.Edges)
	assert.NoError(t, snap.Graph.Validate())
}

func TestApplyStructuralChange(t *testing.T) {
	s := newStore(t)
	o := add(t, s, nodetype.Output, graph.Position{})

	err := s.ApplyStructuralChange(Batch{
		Nodes: []NodeChange{
			{Kind: NodeAdd, Node: graph.Node{ID: "blur", Type: nodetype.Blur}},
			{Kind: NodeMove, ID: o.ID, Position: graph.Position{X: 50, Y: 60}},
			{Kind: NodeSelect, ID: "blur", Selected: true},
		},
		Edges: []EdgeChange{
			{Kind: EdgeConnect, Source: graph.OutputPort(StarterNodeID, 0), Target: graph.InputPort("blur", 0)},
			{Kind: EdgeConnect, ID: "e-out", Source: graph.OutputPort("blur", 0), Target: graph.InputPort(o.ID, 0)},
		},
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Graph.Nodes, 3)
	blur, ok := snap.Graph.Node("blur")
	require.True(t, ok)
	assert.Equal(t, NewNodeName, blur.Name)
	assert.Equal(t, nodetype.DefaultParams(nodetype.Blur), blur.Params)
	moved, _ := snap.Graph.Node(o.ID)
	assert.Equal(t, graph.Position{X: 50, Y: 60}, moved.Position)
	assert.Equal(t, "blur", snap.Graph.Selected())
	assert.Len(t, snap.Graph.Edges, 2)
	assert.Equal(t, "e-out", snap.Graph.Edges[1].ID)
}

func TestApplyStructuralChangeIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  error
	}{
		{
			name: "bad connect after valid moves",
			batch: Batch{
				Nodes: []NodeChange{{Kind: NodeMove, ID: StarterNodeID, Position: graph.Position{X: 1}}},
				Edges: []EdgeChange{{Kind: EdgeConnect, Source: graph.OutputPort(StarterNodeID, 0), Target: graph.InputPort(StarterNodeID, 0)}},
			},
			want: graph.ErrPortRange,
		},
		{
			name: "move of unknown node",
			batch: Batch{Nodes: []NodeChange{
				{Kind: NodeAdd, Node: graph.Node{Type: nodetype.Blur}},
				{Kind: NodeMove, ID: "ghost"},
			}},
			want: ErrUnknownNode,
		},
		{
			name:  "remove of unknown edge",
			batch: Batch{Edges: []EdgeChange{{Kind: EdgeRemove, ID: "ghost"}}},
			want:  ErrUnknownEdge,
		},
		{
			name: "duplicate node id",
			batch: Batch{Nodes: []NodeChange{
				{Kind: NodeAdd, Node: graph.Node{ID: StarterNodeID, Type: nodetype.Blur}},
			}},
			want: graph.ErrDuplicateNode,
		},
		{
			name:  "move to NaN",
			batch: Batch{Nodes: []NodeChange{{Kind: NodeMove, ID: StarterNodeID, Position: graph.Position{X: math.NaN()}}}},
			want:  graph.ErrBadPosition,
		},
		{
			name: "add at infinity",
			batch: Batch{Nodes: []NodeChange{
				{Kind: NodeAdd, Node: graph.Node{ID: "x", Type: nodetype.Blur, Position: graph.Position{Y: math.Inf(1)}}},
			}},
			want: graph.ErrBadPosition,
		},
		{
			name: "added node with foreign params",
			batch: Batch{Nodes: []NodeChange{
				{Kind: NodeAdd, Node: graph.Node{ID: "x", Type: nodetype.Blur, Params: nodetype.SourceParams{}}},
			}},
			want: graph.ErrParamsMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			ch, unsubscribe := s.Subscribe()
			defer unsubscribe()
			before := s.Snapshot()

			err := s.ApplyStructuralChange(tt.batch)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, s.Snapshot())
			assert.Len(t, ch, 0)
		})
	}
}

func TestBatchRemoveCascadesAndReselects(t *testing.T) {
	s := newStore(t)
	b := add(t, s, nodetype.Blur, graph.Position{})
	_, err := s.Connect(graph.OutputPort(StarterNodeID, 0), graph.InputPort(b.ID, 0))
	require.NoError(t, err)

	err = s.ApplyStructuralChange(Batch{Nodes: []NodeChange{
		{Kind: NodeSelect, ID: StarterNodeID, Selected: true},
		{Kind: NodeSelect, ID: b.ID, Selected: true},
		{Kind: NodeRemove, ID: StarterNodeID},
	}})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Empty(t, snap.Graph.Edges)
	assert.Equal(t, b.ID, snap.Graph.Selected())
	assert.Equal(t, 1, countSelected(snap.Graph))
}

func TestSubscribeMergesSkippedChanges(t *testing.T) {
	s := New(counterIDs())
	ch, unsubscribe := s.Subscribe()

	require.NoError(t, s.Load("T", StarterGraph(), nil))
	snap := <-ch
	assert.Equal(t, ChangeLoad, snap.Changed)
	assert.True(t, snap.Loaded)

	s.SetTitle("Renamed")
	require.True(t, s.SetSelection(StarterNodeID))
	add(t, s, nodetype.Blur, graph.Position{})

	snap = <-ch
	assert.Equal(t, ChangeTitle|ChangeSelection|ChangeGraph, snap.Changed)
	assert.Equal(t, "Renamed", snap.Title)
	assert.Len(t, snap.Graph.Nodes, 2)
	assert.Len(t, ch, 0)

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	unsubscribe()
	s.SetTitle("After")
}

func TestNoOpsDoNotPublish(t *testing.T) {
	s := newStore(t)
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.SetTitle(project.DefaultTitle)
	s.RemoveNodes("ghost")
	s.RemoveEdges("ghost")
	require.True(t, s.SetSelection(""))
	s.UpdateNodeData("ghost", NodeDataPatch{Name: ptr("x")})
	s.MarkLoaded()
	assert.Len(t, ch, 0)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := newStore(t)
	snap := s.Snapshot()
	snap.Graph.Nodes[0].Name = "mutated"
	snap.Project = &project.Meta{ID: 1}

	fresh := s.Snapshot()
	assert.Equal(t, StarterNodeName, fresh.Graph.Nodes[0].Name)
	assert.Nil(t, fresh.Project)
}

func TestLoad(t *testing.T) {
	s := New()
	bad := graph.Graph{Edges: []graph.Edge{{ID: "e", Source: graph.OutputPort("a", 0), Target: graph.InputPort("b", 0)}}}
	assert.ErrorIs(t, s.Load("T", bad, nil), graph.ErrUnknownNode)
	assert.False(t, s.Snapshot().Loaded)

	meta := &project.Meta{ID: 4, CreatedAt: "a", UpdatedAt: "b"}
	require.NoError(t, s.Load("Loaded", graph.Graph{}, meta))
	meta.ID = 99

	snap := s.Snapshot()
	assert.True(t, snap.Loaded)
	assert.Equal(t, "Loaded", snap.Title)
	assert.Equal(t, int64(4), snap.Project.ID)
	assert.NotNil(t, snap.Graph.Nodes)
	assert.NotNil(t, snap.Graph.Edges)
}

func TestMarkSaved(t *testing.T) {
	s := newStore(t)
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.MarkSaved(project.Info{ID: 12, Title: "T", CreatedAt: "c", UpdatedAt: "u1"})
	snap := <-ch
	assert.Equal(t, ChangeProject, snap.Changed)
	assert.Equal(t, &project.Meta{ID: 12, CreatedAt: "c", UpdatedAt: "u1"}, snap.Project)

	s.MarkSaved(project.Info{ID: 12, Title: "T", CreatedAt: "ignored", UpdatedAt: "u2"})
	snap = <-ch
	assert.Equal(t, "c", snap.Project.CreatedAt)
	assert.Equal(t, "u2", snap.Project.UpdatedAt)
}

func TestMarkSavedAdoptsReassignedID(t *testing.T) {
	s := New()
	foreign := &project.Meta{ID: 5, CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z", CreatorID: "bob"}
	require.NoError(t, s.Load("T", StarterGraph(), foreign))

	s.MarkSaved(project.Info{ID: 9, Title: "T", CreatedAt: "2026-05-04T09:00:00Z", UpdatedAt: "2026-05-04T09:00:00Z", CreatorID: "u1"})
	assert.Equal(t, &project.Meta{
		ID:        9,
		CreatedAt: "2026-05-04T09:00:00Z",
		UpdatedAt: "2026-05-04T09:00:00Z",
		CreatorID: "u1",
	}, s.Snapshot().Project)
}

func TestLoadRejectsNonFinitePosition(t *testing.T) {
	s := New()
	g := StarterGraph()
	g.Nodes[0].Position.X = math.NaN()
	assert.ErrorIs(t, s.Load("T", g, nil), graph.ErrBadPosition)
	assert.False(t, s.Snapshot().Loaded)
}

func TestRandomEditsKeepGraphValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := newStore(t)
	types := nodetype.Types()

	for step := 0; step < 500; step++ {
		g := s.Snapshot().Graph
		switch op := rng.Intn(10); {
		case op < 3 || len(g.Nodes) < 2:
			add(t, s, types[rng.Intn(len(types))], graph.Position{X: float64(step)})
		case op < 4:
			s.RemoveNodes(g.Nodes[rng.Intn(len(g.Nodes))].ID)
		case op < 5:
			s.SetSelection(g.Nodes[rng.Intn(len(g.Nodes))].ID)
		case op < 6:
			nt := types[rng.Intn(len(types))]
			s.UpdateNodeData(g.Nodes[rng.Intn(len(g.Nodes))].ID, NodeDataPatch{Type: &nt})
		default:
			src := g.Nodes[rng.Intn(len(g.Nodes))].ID
			dst := g.Nodes[rng.Intn(len(g.Nodes))].ID
			_, _ = s.Connect(graph.OutputPort(src, rng.Intn(2)), graph.InputPort(dst, rng.Intn(2)))
		}

		after := s.Snapshot().Graph
		require.NoError(t, after.Validate(), "step %d", step)
		require.LessOrEqual(t, countSelected(after), 1)
		edgeIDs := map[string]bool{}
		for _, e := range after.Edges {
			require.False(t, edgeIDs[e.ID], "duplicate edge %q", e.ID)
			edgeIDs[e.ID] = true
		}
	}
}
