package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/altsecops/findings-console/internal/domain/pipelines"
)

// PipelineLister reads pipeline summaries with their stored AI response
// payloads. Rows come back oldest first so that array position reflects
// chronology for verdict resolution.
type PipelineLister struct {
	db *sql.DB
}

func NewPipelineLister(db *sql.DB) *PipelineLister {
	return &PipelineLister{db: db}
}

var _ pipelines.Lister = (*PipelineLister)(nil)

func (r *PipelineLister) List(ctx context.Context, productID int64, status string) ([]pipelines.Summary, error) {
	base := sq.Select("p.id", "p.project_id", "pr.product_id", "prod.name", "p.status", "p.created", "p.response_from_ai").
		From("pipelines p").
		Join("projects pr ON pr.id = p.project_id").
		Join("products prod ON prod.id = pr.product_id").
		OrderBy("p.created ASC", "p.id ASC")
	if productID > 0 {
		base = base.Where(sq.Eq{"pr.product_id": productID})
	}
	if status != "" {
		base = base.Where(sq.Eq{"p.status": status})
	}

	query, args, err := base.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building pipelines query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pipelines: %w", err)
	}
	defer rows.Close()

	var out []pipelines.Summary
	for rows.Next() {
		var (
			s       pipelines.Summary
			payload sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.ProductID, &s.ProductName, &s.Status, &s.Created, &payload); err != nil {
			return nil, fmt.Errorf("scanning pipeline row: %w", err)
		}
		if payload.Valid && payload.String != "" {
			var resp pipelines.AIResponse
			// A malformed stored payload drops the response, not the pipeline.
			if err := json.Unmarshal([]byte(payload.String), &resp); err == nil {
				s.ResponseFromAI = &resp
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
