package corpus

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/codelens/codelens/pkg/types"
)

// SQLiteStore persists the corpus in a single SQLite database file. The
// driver is chosen at build time: mattn/go-sqlite3 under CGO, modernc's
// pure-Go driver otherwise (see build_cgo.go / build_purego.go).
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path   TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	start_line  INTEGER NOT NULL,
	end_line    INTEGER NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT '',
	code        TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT '',
	embedding   BLOB,
	UNIQUE(file_path, fingerprint, start_line)
);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);
`

// OpenSQLiteStore opens (creating if needed) the corpus database at path.
// A database that cannot be read is rebuilt empty rather than failing the
// caller; the corpus is always recoverable by a full re-index.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open corpus database: %w", err)
	}

	// SQLite allows a single writer; serialize access through one
	// connection so concurrent file replacements queue instead of failing
	// with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply corpus schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ReplaceFileChunks swaps one file's chunk subset inside a transaction so
// readers never observe a partial list.
func (s *SQLiteStore) ReplaceFileChunks(ctx context.Context, filePath string, chunks []types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	const insert = `
		INSERT INTO chunks (file_path, fingerprint, start_line, end_line, name, kind, code, context, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i := range chunks {
		c := &chunks[i]
		var blob []byte
		if len(c.Embedding) > 0 {
			blob = serializeVector(c.Embedding)
		}
		if _, err := tx.ExecContext(ctx, insert,
			c.FilePath, c.Fingerprint, c.StartLine, c.EndLine,
			c.Name, string(c.Kind), c.Code, c.Context, blob,
		); err != nil {
			return fmt.Errorf("insert chunk %s:%d: %w", c.FilePath, c.StartLine, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk replacement: %w", err)
	}
	return nil
}

// ChunksForFile returns one file's chunk subset ordered by start line.
func (s *SQLiteStore) ChunksForFile(ctx context.Context, filePath string) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, fingerprint, start_line, end_line, name, kind, code, context, embedding
		 FROM chunks WHERE file_path = ? ORDER BY start_line`, filePath)
	if err != nil {
		return nil, err
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNotFound
	}
	return chunks, nil
}

// AllChunks returns the whole corpus.
func (s *SQLiteStore) AllChunks(ctx context.Context) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, fingerprint, start_line, end_line, name, kind, code, context, embedding
		 FROM chunks ORDER BY file_path, start_line`)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// Files lists indexed file paths.
func (s *SQLiteStore) Files(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT file_path FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes one file's chunks.
func (s *SQLiteStore) DeleteFile(ctx context.Context, filePath string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, filePath)
	return err
}

// Count returns the total chunk count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanChunks(rows *sql.Rows) ([]types.Chunk, error) {
	defer func() { _ = rows.Close() }()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var kind string
		var blob []byte
		if err := rows.Scan(&c.FilePath, &c.Fingerprint, &c.StartLine, &c.EndLine,
			&c.Name, &kind, &c.Code, &c.Context, &blob); err != nil {
			return nil, err
		}
		c.Kind = types.SymbolKind(kind)
		if len(blob) > 0 {
			c.Embedding = deserializeVector(blob)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian).
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
