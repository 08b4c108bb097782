package vector

import (
	"context"
	"fmt"
	"strings"

	"citegap/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// hnsw.ef_search is capped by pgvector; clamp the widened pool rather than
// fail the query.
const maxEfSearch = 1000

type Searcher struct {
	pool *pgxpool.Pool
}

func NewSearcher(pool *pgxpool.Pool) *Searcher {
	return &Searcher{pool: pool}
}

// SearchChunks returns the k nearest chunks to queryVec, best first. fetchK
// widens the index's candidate pool for the scan; it never changes how many
// rows come back.
func (s *Searcher) SearchChunks(ctx context.Context, queryVec []float32, k, fetchK int) ([]models.ChunkHit, error) {
	if k <= 0 {
		k = 50
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin search tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ef := fetchK
	if ef > maxEfSearch {
		ef = maxEfSearch
	}
	if ef < k {
		ef = k
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", ef)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	rows, err := tx.Query(ctx, `
SELECT chunk_id,
       paper_id::text,
       chunk_index,
       start_offset,
       text,
       1 - (embedding <=> $1::vector) AS score
FROM chunks
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1::vector
LIMIT $2`, ToLiteral(queryVec), k)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ChunkHit, 0, k)
	for rows.Next() {
		var h models.ChunkHit
		if err := rows.Scan(&h.ChunkID, &h.PaperID, &h.ChunkIndex, &h.StartOffset, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("scan chunk hit: %w", err)
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit search tx: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
