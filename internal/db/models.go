package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Project struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	Data            []byte             `json:"data"`
	CreatorID       string             `json:"creator_id"`
	CreatorUsername string             `json:"creator_username"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}
