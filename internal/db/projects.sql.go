package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createProject = `-- name: CreateProject :one
INSERT INTO projects (title, data, creator_id, creator_username)
VALUES ($1, $2, $3, $4)
RETURNING id, title, data, creator_id, creator_username, created_at, updated_at
`

type CreateProjectParams struct {
	Title           string `json:"title"`
	Data            []byte `json:"data"`
	CreatorID       string `json:"creator_id"`
	CreatorUsername string `json:"creator_username"`
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	row := q.db.QueryRow(ctx, createProject,
		arg.Title,
		arg.Data,
		arg.CreatorID,
		arg.CreatorUsername,
	)
	var i Project
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Data,
		&i.CreatorID,
		&i.CreatorUsername,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateProject = `-- name: UpdateProject :one
UPDATE projects
SET title = $3, data = $4, updated_at = now()
WHERE id = $1 AND creator_id = $2
RETURNING id, title, data, creator_id, creator_username, created_at, updated_at
`

type UpdateProjectParams struct {
	ID        int64  `json:"id"`
	CreatorID string `json:"creator_id"`
	Title     string `json:"title"`
	Data      []byte `json:"data"`
}

func (q *Queries) UpdateProject(ctx context.Context, arg UpdateProjectParams) (Project, error) {
	row := q.db.QueryRow(ctx, updateProject,
		arg.ID,
		arg.CreatorID,
		arg.Title,
		arg.Data,
	)
	var i Project
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Data,
		&i.CreatorID,
		&i.CreatorUsername,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProject = `-- name: GetProject :one
SELECT id, title, data, creator_id, creator_username, created_at, updated_at
FROM projects
WHERE id = $1 AND creator_id = $2
`

type GetProjectParams struct {
	ID        int64  `json:"id"`
	CreatorID string `json:"creator_id"`
}

func (q *Queries) GetProject(ctx context.Context, arg GetProjectParams) (Project, error) {
	row := q.db.QueryRow(ctx, getProject, arg.ID, arg.CreatorID)
	var i Project
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Data,
		&i.CreatorID,
		&i.CreatorUsername,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProjectInfo = `-- name: GetProjectInfo :one
SELECT id, title, creator_id, creator_username, created_at, updated_at
FROM projects
WHERE id = $1 AND creator_id = $2
`

type GetProjectInfoParams struct {
	ID        int64  `json:"id"`
	CreatorID string `json:"creator_id"`
}

type GetProjectInfoRow struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	CreatorID       string             `json:"creator_id"`
	CreatorUsername string             `json:"creator_username"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) GetProjectInfo(ctx context.Context, arg GetProjectInfoParams) (GetProjectInfoRow, error) {
	row := q.db.QueryRow(ctx, getProjectInfo, arg.ID, arg.CreatorID)
	var i GetProjectInfoRow
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.CreatorID,
		&i.CreatorUsername,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listProjectInfos = `-- name: ListProjectInfos :many
SELECT id, title, creator_id, creator_username, created_at, updated_at
FROM projects
WHERE creator_id = $1
ORDER BY updated_at DESC
`

type ListProjectInfosRow struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	CreatorID       string             `json:"creator_id"`
	CreatorUsername string             `json:"creator_username"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) ListProjectInfos(ctx context.Context, creatorID string) ([]ListProjectInfosRow, error) {
	rows, err := q.db.Query(ctx, listProjectInfos, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListProjectInfosRow
	for rows.Next() {
		var i ListProjectInfosRow
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.CreatorID,
			&i.CreatorUsername,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
