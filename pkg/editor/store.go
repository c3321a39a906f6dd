// Package editor holds the state of one editing session: the pipeline graph,
// the selection, the project title and the metadata storage assigned to it.
//
// A Store is the single source of truth for its session. Every operation
// runs under one lock and leaves the graph valid; subscribers receive
// immutable snapshots, never an intermediate state.
package editor

import (
	"errors"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/chive/backend/pkg/graph"
	"github.com/chive/backend/pkg/nodetype"
	"github.com/chive/backend/pkg/project"
)

var (
	ErrUnknownNode = errors.New("unknown node")
	ErrUnknownEdge = errors.New("unknown edge")
)

const (
	// NewNodeName is the display name given to nodes added from the palette.
	NewNodeName = "New Node"
	// StarterNodeID and StarterNodeName describe the node every new session
	// starts with.
	StarterNodeID   = "1"
	StarterNodeName = "Source Node"
)

// Change flags what a published snapshot differs in from the previous one.
type Change uint8

const (
	ChangeGraph Change = 1 << iota
	ChangeSelection
	ChangeTitle
	ChangeProject
	ChangeLoad
)

func (c Change) Has(flag Change) bool { return c&flag != 0 }

// Snapshot is a consistent view of a Store. Its graph is a private copy and
// must be treated as read-only by the receiver, since all subscribers of one
// publication share it.
type Snapshot struct {
	Graph       graph.Graph
	Title       string
	Project     *project.Meta
	Loaded      bool
	Version     uint64
	// LoadVersion is the Version published by the last Load or MarkLoaded.
	LoadVersion uint64
	Changed     Change
}

// StarterGraph is the graph of a fresh session: one Source node at the
// origin.
func StarterGraph() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{{
			ID:     StarterNodeID,
			Name:   StarterNodeName,
			Type:   nodetype.Source,
			Params: nodetype.DefaultParams(nodetype.Source),
		}},
		Edges: []graph.Edge{},
	}
}

type Store struct {
	mu      sync.Mutex
	newID   func() string
	g       graph.Graph
	title   string
	meta    *project.Meta
	loaded  bool
	version uint64
	loadVer uint64

	subs    map[int]chan Snapshot
	nextSub int
}

type Option func(*Store)

// WithIDGenerator replaces the nanoid generator used for new nodes and
// edges. Generated ids that already exist in the graph are skipped.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New returns a store holding the starter graph. It reports Loaded only
// after Load or MarkLoaded.
func New(opts ...Option) *Store {
	s := &Store{
		newID: func() string { return gonanoid.Must() },
		g:     StarterGraph(),
		title: project.DefaultTitle,
		subs:  make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state with Changed left empty.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(0)
}

func (s *Store) snapshotLocked(changed Change) Snapshot {
	var meta *project.Meta
	if s.meta != nil {
		m := *s.meta
		meta = &m
	}
	return Snapshot{
		Graph:       s.g.Clone(),
		Title:       s.title,
		Project:     meta,
		Loaded:      s.loaded,
		Version:     s.version,
		LoadVersion: s.loadVer,
		Changed:     changed,
	}
}

// Subscribe returns a channel that receives a snapshot after every state
// change, and a function that ends the subscription and closes the channel.
// The channel holds only the latest snapshot: a slow reader skips
// intermediate states, and the skipped Changed flags are merged into the
// snapshot it finally reads.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription. The store stays usable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// publishLocked must be called with s.mu held. Sends never block: only the
// publisher writes to a mailbox and it empties the slot first.
func (s *Store) publishLocked(changed Change) {
	if changed == 0 {
		return
	}
	s.version++
	snap := s.snapshotLocked(changed)
	for _, ch := range s.subs {
		out := snap
		select {
		case prev := <-ch:
			out.Changed |= prev.Changed
		default:
		}
		ch <- out
	}
}

// freshIDLocked returns a generated id not used by any node or edge.
func (s *Store) freshIDLocked(g graph.Graph) string {
	for {
		id := s.newID()
		if g.NodeIndex(id) < 0 && g.EdgeIndex(id) < 0 {
			return id
		}
	}
}
