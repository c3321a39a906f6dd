package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/graph"
	"github.com/chive/backend/pkg/project"
)

var ErrProjectNotFound = errors.New("project not found")

// Projects maps stored rows onto project documents. Every method is scoped to
// a creator; rows owned by someone else behave as if they did not exist.
type Projects struct {
	q *Queries
}

func NewProjects(conn DBTX) *Projects {
	return &Projects{q: New(conn)}
}

// Save updates the project when its id exists and belongs to creatorID and
// creates a new row otherwise.
func (r *Projects) Save(ctx context.Context, creatorID, creatorUsername string, p project.Project) (project.Info, error) {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return project.Info{}, fmt.Errorf("encode graph: %w", err)
	}
	title := util.SanitizeText(p.Title)
	if title == "" {
		title = project.DefaultTitle
	}

	if p.ID != 0 {
		row, err := r.q.UpdateProject(ctx, UpdateProjectParams{
			ID:        p.ID,
			CreatorID: creatorID,
			Title:     title,
			Data:      data,
		})
		if err == nil {
			return rowInfo(row), nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return project.Info{}, fmt.Errorf("update project %d: %w", p.ID, err)
		}
	}

	row, err := r.q.CreateProject(ctx, CreateProjectParams{
		Title:           title,
		Data:            data,
		CreatorID:       creatorID,
		CreatorUsername: util.SanitizeText(creatorUsername),
	})
	if err != nil {
		return project.Info{}, fmt.Errorf("create project: %w", err)
	}
	return rowInfo(row), nil
}

func (r *Projects) Load(ctx context.Context, creatorID string, id int64) (project.Project, error) {
	row, err := r.q.GetProject(ctx, GetProjectParams{ID: id, CreatorID: creatorID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, ErrProjectNotFound
		}
		return project.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}

	var g graph.Graph
	if err := json.Unmarshal(row.Data, &g); err != nil {
		return project.Project{}, fmt.Errorf("decode graph of project %d: %w", id, err)
	}
	return project.Project{
		ID:              row.ID,
		Title:           row.Title,
		Data:            g,
		CreatedAt:       stamp(row.CreatedAt),
		UpdatedAt:       stamp(row.UpdatedAt),
		CreatorID:       row.CreatorID,
		CreatorUsername: row.CreatorUsername,
	}, nil
}

func (r *Projects) Info(ctx context.Context, creatorID string, id int64) (project.Info, error) {
	row, err := r.q.GetProjectInfo(ctx, GetProjectInfoParams{ID: id, CreatorID: creatorID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Info{}, ErrProjectNotFound
		}
		return project.Info{}, fmt.Errorf("get project info %d: %w", id, err)
	}
	return project.Info{
		ID:              row.ID,
		Title:           row.Title,
		CreatedAt:       stamp(row.CreatedAt),
		UpdatedAt:       stamp(row.UpdatedAt),
		CreatorID:       row.CreatorID,
		CreatorUsername: row.CreatorUsername,
	}, nil
}

// List returns the creator's projects, most recently updated first.
func (r *Projects) List(ctx context.Context, creatorID string) ([]project.Info, error) {
	rows, err := r.q.ListProjectInfos(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	infos := make([]project.Info, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, project.Info{
			ID:              row.ID,
			Title:           row.Title,
			CreatedAt:       stamp(row.CreatedAt),
			UpdatedAt:       stamp(row.UpdatedAt),
			CreatorID:       row.CreatorID,
			CreatorUsername: row.CreatorUsername,
		})
	}
	return infos, nil
}

func rowInfo(row Project) project.Info {
	return project.Info{
		ID:              row.ID,
		Title:           row.Title,
		CreatedAt:       stamp(row.CreatedAt),
		UpdatedAt:       stamp(row.UpdatedAt),
		CreatorID:       row.CreatorID,
		CreatorUsername: row.CreatorUsername,
	}
}

func stamp(ts pgtype.Timestamptz) string {
	if !ts.Valid {
		return ""
	}
	return project.Timestamp(ts.Time)
}
