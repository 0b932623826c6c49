package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"readingroom/internal/modules/library/domain"
	libraryout "readingroom/internal/modules/library/port/out"
	apperrors "readingroom/internal/platform/errors"

	_ "modernc.org/sqlite"
)

type SQLiteDocumentProjector struct {
	db *sql.DB
}

func NewSQLiteDocumentProjector(dbPath string) (libraryout.DocumentIndexProjector, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	projector := &SQLiteDocumentProjector{db: db}
	if err := projector.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return projector, nil
}

func (s *SQLiteDocumentProjector) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  slug TEXT NOT NULL,
  authors TEXT,
  url TEXT,
  file_path TEXT,
  user_book_id INTEGER NOT NULL UNIQUE,
  status TEXT,
  progress_percent REAL NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *SQLiteDocumentProjector) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("reset documents: %w", err)
	}
	return nil
}

func (s *SQLiteDocumentProjector) UpsertDocument(ctx context.Context, doc domain.Document) error {
	const stmt = `
INSERT INTO documents (id, kind, title, slug, authors, url, file_path, user_book_id, status, progress_percent, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  kind=excluded.kind,
  title=excluded.title,
  slug=excluded.slug,
  authors=excluded.authors,
  url=excluded.url,
  file_path=excluded.file_path,
  user_book_id=excluded.user_book_id,
  status=excluded.status,
  progress_percent=excluded.progress_percent,
  updated_at=excluded.updated_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		doc.ID,
		string(doc.Kind),
		doc.Title,
		doc.Slug,
		strings.Join(doc.Authors, ", "),
		doc.URL,
		doc.FilePath,
		doc.UserBookID,
		doc.Status,
		doc.ProgressPct,
		doc.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *SQLiteDocumentProjector) DocumentIDForUserBook(ctx context.Context, userBookID int) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE user_book_id = ?`, userBookID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup user book: %w", err)
	}
	return id, nil
}
