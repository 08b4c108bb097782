package storage

import (
	"context"
	"fmt"

	"citegap/internal/models"
)

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

// InsertPapers inserts papers one statement at a time and reports a per-item
// outcome. The store assigns ids; an item that fails gets an error message and
// no id, and does not affect the other items. Statements run outside any
// shared transaction so a reported id is always a committed row: a pipelined
// batch would let one failed INSERT roll back ids already handed out.
func (r *PaperRepo) InsertPapers(ctx context.Context, papers []models.PaperInput) ([]models.PaperInsert, error) {
	if len(papers) == 0 {
		return []models.PaperInsert{}, nil
	}
	out := make([]models.PaperInsert, 0, len(papers))
	for _, p := range papers {
		var id string
		err := r.db.Pool.QueryRow(ctx,
			`INSERT INTO papers (title, abstract) VALUES ($1, $2) RETURNING paper_id::text`,
			p.Title, p.Abstract).Scan(&id)
		if err != nil {
			out = append(out, models.PaperInsert{Err: err.Error()})
			continue
		}
		out = append(out, models.PaperInsert{PaperID: id})
	}
	return out, nil
}

// GetPapersByIDs fetches papers for the given ids, preserving input order.
// Ids with no matching paper are silently skipped.
func (r *PaperRepo) GetPapersByIDs(ctx context.Context, ids []string) ([]models.Paper, error) {
	if len(ids) == 0 {
		return []models.Paper{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT paper_id::text, title, abstract, created_at
FROM papers
WHERE paper_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("get papers by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Paper, len(ids))
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.PaperID, &p.Title, &p.Abstract, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		byID[p.PaperID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	out := make([]models.Paper, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// TitleExists reports whether a paper with exactly this title is indexed.
func (r *PaperRepo) TitleExists(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM papers WHERE title = $1)`, title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("title exists: %w", err)
	}
	return exists, nil
}

func (r *PaperRepo) CountPapers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return n, nil
}
