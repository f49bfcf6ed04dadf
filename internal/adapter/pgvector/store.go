package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pgv "github.com/pgvector/pgvector-go"

	"vexi/apps/worker/internal/worker"
)

const (
	// Serializes writers of the same document for the rest of the transaction.
	lockDocumentQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`
	deleteChunksQuery = `DELETE FROM search_index WHERE document_id = $1`
	insertChunkQuery  = `INSERT INTO search_index (document_id, chunk_index, chunk_text, embedding) VALUES ($1, $2, $3, $4)`

	listChunksQuery     = `SELECT chunk_index, chunk_text, embedding FROM search_index WHERE document_id = $1 ORDER BY chunk_index`
	countChunksQuery    = `SELECT COUNT(*) FROM search_index`
	countDocumentsQuery = `SELECT COUNT(DISTINCT document_id) FROM search_index`
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReplaceChunks deletes every row of documentID and inserts chunks in one
// transaction. Readers see either the old set or the new one. On any error
// the transaction is rolled back.
func (s *Store) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []worker.IndexedChunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "rollback failed", "error", rbErr)
		}
	}()

	if _, err = tx.ExecContext(ctx, lockDocumentQuery, documentID); err != nil {
		return fmt.Errorf("lock document: %w", err)
	}

	res, err := tx.ExecContext(ctx, deleteChunksQuery, documentID)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if deleted, raErr := res.RowsAffected(); raErr == nil {
		slog.DebugContext(ctx, "deleted previous chunks", "rows", deleted)
	}

	if len(chunks) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx, insertChunkQuery)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			if _, err = stmt.ExecContext(ctx, documentID, c.ChunkIndex, c.Text, c.Embedding); err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) ListChunks(ctx context.Context, documentID uuid.UUID) ([]worker.IndexedChunk, error) {
	rows, err := s.db.QueryContext(ctx, listChunksQuery, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []worker.IndexedChunk
	for rows.Next() {
		var c worker.IndexedChunk
		var vec pgv.Vector
		if err := rows.Scan(&c.ChunkIndex, &c.Text, &vec); err != nil {
			return nil, err
		}
		c.Embedding = vec
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, countChunksQuery).Scan(&count)
	return count, err
}

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, countDocumentsQuery).Scan(&count)
	return count, err
}
