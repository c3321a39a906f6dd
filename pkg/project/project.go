// Package project converts editor state to and from the persisted project
// document.
package project

import (
	"time"

	"github.com/chive/backend/pkg/graph"
)

// DefaultTitle is the title of a project that was never named.
const DefaultTitle = "Untitled Project"

// TimeFormat is the layout of CreatedAt and UpdatedAt.
const TimeFormat = time.RFC3339

// Project is the persisted unit. ID 0 marks a project storage has not seen.
type Project struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	Data            graph.Graph `json:"data"`
	CreatedAt       string      `json:"createdAt"`
	UpdatedAt       string      `json:"updatedAt"`
	CreatorID       string      `json:"creatorId,omitempty"`
	CreatorUsername string      `json:"creatorUsername,omitempty"`
}

// Meta is everything in a Project besides title and graph.
type Meta struct {
	ID              int64  `json:"id" yaml:"id"`
	CreatedAt       string `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       string `json:"updatedAt" yaml:"updatedAt"`
	CreatorID       string `json:"creatorId,omitempty" yaml:"creatorId,omitempty"`
	CreatorUsername string `json:"creatorUsername,omitempty" yaml:"creatorUsername,omitempty"`
}

// Saved reports whether storage has assigned an id.
func (m *Meta) Saved() bool {
	return m != nil && m.ID != 0
}

// Info is the storage-side summary of a project, as returned by save and by
// the project listings.
type Info struct {
	ID              int64  `json:"id" yaml:"id"`
	Title           string `json:"title" yaml:"title"`
	CreatedAt       string `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       string `json:"updatedAt" yaml:"updatedAt"`
	CreatorID       string `json:"creatorId,omitempty" yaml:"creatorId,omitempty"`
	CreatorUsername string `json:"creatorUsername,omitempty" yaml:"creatorUsername,omitempty"`
}

type SaveResponse struct {
	Message string `json:"message"`
	Project Info   `json:"project"`
}

func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ToProject builds the document to save. Without existing metadata the
// project is new: id 0 and both timestamps set to now. Otherwise identity,
// creator and creation time are kept and only UpdatedAt moves.
func ToProject(g graph.Graph, title string, existing *Meta, now time.Time) Project {
	stamp := Timestamp(now)
	p := Project{
		Title:     title,
		Data:      g.Clone(),
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
	if existing != nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		p.CreatorID = existing.CreatorID
		p.CreatorUsername = existing.CreatorUsername
	}
	for i := range p.Data.Nodes {
		p.Data.Nodes[i].Selected = false
	}
	return p
}

// FromProject splits a loaded document into editor state.
func FromProject(p Project) (string, graph.Graph, Meta) {
	meta := Meta{
		ID:              p.ID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		CreatorID:       p.CreatorID,
		CreatorUsername: p.CreatorUsername,
	}
	return p.Title, p.Data.Clone(), meta
}

// Merge folds a save response into the metadata that was current when the
// save was issued. A first save adopts the assigned id and both timestamps,
// and so does a save that storage answered with a different id (the sent id
// was gone or owned by someone else). Otherwise only UpdatedAt moves.
func Merge(prev *Meta, saved Info) Meta {
	if prev.Saved() && (saved.ID == 0 || saved.ID == prev.ID) {
		m := *prev
		m.UpdatedAt = saved.UpdatedAt
		return m
	}

	m := Meta{
		ID:        saved.ID,
		CreatedAt: saved.CreatedAt,
		UpdatedAt: saved.UpdatedAt,
	}
	if prev != nil && !prev.Saved() {
		m.CreatorID = prev.CreatorID
		m.CreatorUsername = prev.CreatorUsername
	}
	if saved.CreatorID != "" {
		m.CreatorID = saved.CreatorID
		m.CreatorUsername = saved.CreatorUsername
	}
	return m
}
