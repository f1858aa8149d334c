package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

// schemaLockID serialises schema creation between the API and worker
// processes starting at the same time.
const schemaLockID int64 = 2027010501

var schema = []string{
	`CREATE TABLE IF NOT EXISTS policy_documents (
	file_id       TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	storage_key   TEXT NOT NULL,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_documents_status ON policy_documents (status)`,
}

const documentColumns = `file_id, filename, storage_key, chunk_count, status, error_message, created_at, updated_at`

// DocumentRepository is the registry of ingested policy documents.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	for _, stmt := range schema {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert records the current state of a document. created_at keeps the
// value written by the first ingestion.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.PolicyDocument) error {
	const query = `INSERT INTO policy_documents (` + documentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (file_id) DO UPDATE SET
	filename      = EXCLUDED.filename,
	storage_key   = EXCLUDED.storage_key,
	chunk_count   = EXCLUDED.chunk_count,
	status        = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	updated_at    = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		doc.FileID, doc.Filename, doc.StorageKey, doc.ChunkCount,
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert policy document %s: %w", doc.FileID, err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, fileID string) (*domain.PolicyDocument, error) {
	const query = `SELECT ` + documentColumns + ` FROM policy_documents WHERE file_id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get policy document", fmt.Errorf("file_id %s", fileID))
	}
	if err != nil {
		return nil, fmt.Errorf("get policy document %s: %w", fileID, err)
	}
	return doc, nil
}

func scanDocument(row *sql.Row) (*domain.PolicyDocument, error) {
	var (
		doc    domain.PolicyDocument
		status string
	)
	err := row.Scan(&doc.FileID, &doc.Filename, &doc.StorageKey, &doc.ChunkCount,
		&status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
