package storage

import (
	"context"
	"fmt"

	"citegap/internal/models"
	"citegap/internal/vector"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertChunks stores chunks with their embeddings in one transaction.
// vectors[i] belongs to chunks[i].
func (r *ChunkRepo) InsertChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx insert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for i, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, paper_id, chunk_index, start_offset, text, embedding)
VALUES ($1, $2::uuid, $3, $4, $5, $6::vector)
ON CONFLICT (chunk_id)
DO UPDATE SET
  text = EXCLUDED.text,
  start_offset = EXCLUDED.start_offset,
  embedding = EXCLUDED.embedding`,
			c.ChunkID, c.PaperID, c.ChunkIndex, c.StartOffset, c.Text, vector.ToLiteral(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ListChunksByPaper(ctx context.Context, paperID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, paper_id::text, chunk_index, start_offset, text
FROM chunks
WHERE paper_id = $1::uuid
ORDER BY chunk_index ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by paper: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0, 8)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.PaperID, &c.ChunkIndex, &c.StartOffset, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk by paper: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks by paper: %w", err)
	}
	return out, nil
}
