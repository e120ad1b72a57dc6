package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	"recall/internal/embedder"
	"recall/internal/errs"
	"recall/internal/plan"
)

// OpenMode selects the lock discipline Open uses (spec.md 5).
type OpenMode int

const (
	// ModeRead acquires a shared lock: many readers may hold it at once.
	ModeRead OpenMode = iota
	// ModeWrite acquires an exclusive lock: only one writer at a time,
	// and no readers while it is held.
	ModeWrite
)

// Store is the persistence layer for a single Recall store: doc/chunk/
// meta rows and the fts_chunk FTS5 table all live in one SQLite file
// (db); the vector index lives in a sidecar file next to it (spec.md 6 —
// see vectorSidecarPath doc comment). Store implements plan.StoreReader.
type Store struct {
	path       string
	vectorPath string
	db         *sql.DB
	vector     VectorStore
	lock       *FileLock
	mode       OpenMode
	embedding  embedder.Embedder
	dim        int
	closed     bool
}

var _ plan.StoreReader = (*Store)(nil)

// vectorSidecarPath derives the HNSW sidecar path from the main store
// path. HNSWStore.Save/Load are file-path based (they persist via
// os.Create/os.Open, not an io.Writer the main db file could share), so
// true single-file storage isn't possible without forking coder/hnsw's
// (de)serialization. The SQLite file remains the single binary artifact
// with the well-known magic header spec.md 6 describes; the sidecar is
// regenerable from chunk rows via Compact, so losing it alone is not
// data loss.
func vectorSidecarPath(storePath string) string {
	return storePath + ".vectors"
}

// Open opens (creating if necessary) the store at path, acquiring the
// lock discipline mode requires before touching any file (spec.md 5).
func Open(ctx context.Context, path string, mode OpenMode, embeddingName string, embeddingDim int, busyTimeout time.Duration) (*Store, error) {
	lock := NewFileLock(path)
	var lockErr error
	if mode == ModeWrite {
		lockErr = lock.AcquireExclusive(ctx, busyTimeout)
	} else {
		lockErr = lock.AcquireShared(ctx, busyTimeout)
	}
	if lockErr != nil {
		return nil, lockErr
	}

	db, err := openSQLite(path)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		_ = lock.Release()
		return nil, err
	}

	dim, err := loadOrInitEmbeddingDim(ctx, db, embeddingDim)
	if err != nil {
		_ = db.Close()
		_ = lock.Release()
		return nil, err
	}

	vecPath := vectorSidecarPath(path)
	vs, err := NewHNSWStore(DefaultVectorStoreConfig(dim))
	if err != nil {
		_ = db.Close()
		_ = lock.Release()
		return nil, errs.IO("failed to initialize vector index", err)
	}
	if _, statErr := os.Stat(vecPath); statErr == nil {
		if err := vs.Load(vecPath); err != nil {
			_ = db.Close()
			_ = lock.Release()
			return nil, errs.New(errs.KindIndexCorrupt, "vector index could not be loaded").WithDetail("path", vecPath)
		}
	}

	emb, _ := embedder.New(embeddingName, dim)

	return &Store{
		path:       path,
		vectorPath: vecPath,
		db:         db,
		vector:     vs,
		lock:       lock,
		mode:       mode,
		embedding:  emb,
		dim:        dim,
	}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.IO("failed to create store directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.IO("failed to open store", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range storePragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errs.IO("failed to set store pragma", err)
		}
	}
	return db, nil
}

// Close releases the vector index, the database handle, and the store
// lock, in that order.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.mode == ModeWrite {
		if err := s.vector.Save(s.vectorPath); err != nil {
			_ = s.db.Close()
			_ = s.lock.Release()
			return errs.IO("failed to save vector index", err)
		}
	}
	_ = s.vector.Close()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		// Not fatal: the WAL is still replayed correctly on next open.
	}
	if err := s.db.Close(); err != nil {
		_ = s.lock.Release()
		return errs.IO("failed to close store", err)
	}
	return s.lock.Release()
}

// EmbeddingDim reports the store's configured embedding dimension.
func (s *Store) EmbeddingDim() int { return s.dim }

func loadOrInitEmbeddingDim(ctx context.Context, db *sql.DB, configured int) (int, error) {
	existing, ok, err := readMeta(ctx, db, StateKeyEmbeddingDim)
	if err != nil {
		return 0, err
	}
	if !ok {
		if configured <= 0 {
			configured = 384
		}
		if err := writeMeta(ctx, db, StateKeyEmbeddingDim, fmt.Sprintf("%d", configured)); err != nil {
			return 0, err
		}
		return configured, nil
	}
	var dim int
	if _, err := fmt.Sscanf(existing, "%d", &dim); err != nil {
		return 0, errs.New(errs.KindIndexCorrupt, "stored embedding_dim is not a number")
	}
	return dim, nil
}

func readMeta(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.IO("failed to read store metadata", err)
	}
	return value, true, nil
}

func writeMeta(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errs.IO("failed to write store metadata", err)
	}
	return nil
}

// runMigrations applies schemaDDL and checks the on-disk schema version
// is one this build understands (spec.md 7: KindSchemaTooNew,
// KindMigrationFailed).
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return errs.Wrap(errs.KindMigrationFailed, err)
	}

	var onDisk int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&onDisk)
	if err != nil {
		return errs.Wrap(errs.KindMigrationFailed, err)
	}
	if onDisk > CurrentSchemaVersion {
		return errs.New(errs.KindSchemaTooNew, fmt.Sprintf(
			"store schema version %d is newer than this build supports (%d)", onDisk, CurrentSchemaVersion))
	}
	return nil
}

// CurrentSnapshot implements plan.StoreReader.
func (s *Store) CurrentSnapshot(ctx context.Context) (string, error) {
	var mtime sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(mtime) FROM doc WHERE deleted = 0`).Scan(&mtime)
	if err != nil {
		return "", errs.IO("failed to read current snapshot", err)
	}
	if !mtime.Valid {
		return EmptyStoreSnapshot, nil
	}
	return mtime.String, nil
}

// ValidateSnapshot implements plan.StoreReader.
func (s *Store) ValidateSnapshot(token string) error {
	if token == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, token); err != nil {
		return errs.New(errs.KindInvalidSnapshot, "snapshot token is not a valid RFC3339 timestamp").
			WithDetail("token", token)
	}
	return nil
}

// docMetaJSON marshals Doc.Meta the way doc.meta is stored: a JSON
// object of scalar leaves, matching filterc's json_extract(doc.meta, ...)
// lookups (spec.md 4.6).
func docMetaJSON(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", errs.Wrap(errs.KindValidationError, err)
	}
	return string(b), nil
}

func parseDocMetaJSON(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// InsertDoc atomically replaces any live doc at batch.Doc.Path (tombstone
// the old one, insert the new doc+chunks) and updates the lexical and
// vector indexes, per spec.md 3's update lifecycle.
func (s *Store) InsertDoc(ctx context.Context, batch *DocBatch) error {
	if batch == nil || batch.Doc == nil {
		return errs.Validation("insert_doc requires a non-nil doc")
	}
	if err := validateChunks(batch, s.dim); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.IO("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT id FROM doc WHERE path = ? AND deleted = 0`, batch.Doc.Path).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return errs.IO("failed to look up existing doc", err)
	}
	var tombstonedChunkIDs []string
	if existingID.Valid {
		tombstonedChunkIDs, err = tombstoneDocTx(ctx, tx, existingID.String)
		if err != nil {
			return err
		}
	}

	metaJSON, err := docMetaJSON(batch.Doc.Meta)
	if err != nil {
		return err
	}
	deletedInt := 0
	if batch.Doc.Deleted {
		deletedInt = 1
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO doc(id, path, hash, mtime, tag, source, meta, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.Doc.ID, batch.Doc.Path, batch.Doc.Hash, batch.Doc.MTime, batch.Doc.Tag, batch.Doc.Source, metaJSON, deletedInt)
	if err != nil {
		return errs.IO("failed to insert doc", err)
	}

	var newChunkIDs []string
	var newEmbeddings [][]float32
	for _, c := range batch.Chunks {
		embBytes := encodeEmbedding(c.Embedding)
		_, err = tx.ExecContext(ctx, `INSERT INTO chunk(id, doc_id, offset, tokens, text, embedding, deleted)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			c.ID, c.DocID, c.Offset, c.Tokens, c.Text, embBytes)
		if err != nil {
			return errs.IO("failed to insert chunk", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunk WHERE chunk_id = ?`, c.ID); err != nil {
			return errs.IO("failed to clear stale lexical entry", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO fts_chunk(chunk_id, content) VALUES (?, ?)`,
			c.ID, tokenizeForIndex(c.Text)); err != nil {
			return errs.IO("failed to update lexical index", err)
		}
		if len(c.Embedding) > 0 {
			newChunkIDs = append(newChunkIDs, c.ID)
			newEmbeddings = append(newEmbeddings, c.Embedding)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.IO("failed to commit doc insert", err)
	}

	if len(tombstonedChunkIDs) > 0 {
		_ = s.vector.Delete(ctx, tombstonedChunkIDs)
	}
	if len(newChunkIDs) > 0 {
		if err := s.vector.Add(ctx, newChunkIDs, newEmbeddings); err != nil {
			return errs.Wrap(errs.KindValidationError, err)
		}
	}
	return nil
}

func validateChunks(batch *DocBatch, dim int) error {
	lastOffset := -1
	for _, c := range batch.Chunks {
		if c.Offset <= lastOffset {
			return errs.Validation("chunk.offset must be strictly increasing per doc").
				WithDetail("doc_id", batch.Doc.ID)
		}
		lastOffset = c.Offset
		if len(c.Embedding) > 0 && len(c.Embedding) != dim {
			return errs.Validation(ErrDimensionMismatch{Expected: dim, Got: len(c.Embedding)}.Error())
		}
	}
	return nil
}

// tokenizeForIndex renders text the way fts_chunk stores it: tokenized
// and stop-word filtered before insertion. A literal-mode query applies
// the same tokenizer to its own input before quoting each token (see
// literalMatchExpr); an fts5-mode query instead hands its text straight
// to FTS5's own tokenizer via MATCH (grounded on sqlite_bm25.go's
// Index/Search pairing, which tokenizes on the index side the same way).
func tokenizeForIndex(text string) string {
	tokens := TokenizeCode(text)
	tokens = FilterStopWords(tokens, BuildStopWordMap(DefaultStopWords))
	return strings.Join(tokens, " ")
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// Tombstone marks the live doc at path (and its chunks) deleted, per
// spec.md 3's lifecycle (tombstone, not erase).
func (s *Store) Tombstone(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.IO("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var docID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM doc WHERE path = ? AND deleted = 0`, path).Scan(&docID)
	if err == sql.ErrNoRows {
		return errs.NotFound(fmt.Sprintf("no live doc at path %q", path))
	}
	if err != nil {
		return errs.IO("failed to look up doc", err)
	}

	chunkIDs, err := tombstoneDocTx(ctx, tx, docID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.IO("failed to commit tombstone", err)
	}
	if len(chunkIDs) > 0 {
		_ = s.vector.Delete(ctx, chunkIDs)
	}
	return nil
}

// tombstoneDocTx marks docID and its chunks deleted and removes them
// from fts_chunk (fts5 has no soft-delete marker), returning the chunk
// ids so the caller can remove them from the vector index outside the
// SQL transaction.
func tombstoneDocTx(ctx context.Context, tx *sql.Tx, docID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunk WHERE doc_id = ? AND deleted = 0`, docID)
	if err != nil {
		return nil, errs.IO("failed to enumerate chunks for tombstone", err)
	}
	var chunkIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.IO("failed to scan chunk id", err)
		}
		chunkIDs = append(chunkIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.IO("failed to enumerate chunks for tombstone", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE doc SET deleted = 1 WHERE id = ?`, docID); err != nil {
		return nil, errs.IO("failed to tombstone doc", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE chunk SET deleted = 1 WHERE doc_id = ?`, docID); err != nil {
		return nil, errs.IO("failed to tombstone chunks", err)
	}
	for _, id := range chunkIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunk WHERE chunk_id = ?`, id); err != nil {
			return nil, errs.IO("failed to remove lexical entry", err)
		}
	}
	return chunkIDs, nil
}

// Compact permanently removes tombstoned doc/chunk rows and rebuilds
// the lexical and vector indexes from the chunks that remain (spec.md
// 4.1). After Compact, no tombstone record survives to be undone.
func (s *Store) Compact(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.IO("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk WHERE doc_id IN (SELECT id FROM doc WHERE deleted = 1)`); err != nil {
		return errs.IO("failed to compact chunks", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk WHERE deleted = 1`); err != nil {
		return errs.IO("failed to compact orphan chunks", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc WHERE deleted = 1`); err != nil {
		return errs.IO("failed to compact docs", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.IO("failed to commit compaction", err)
	}

	return s.rebuildIndexes(ctx)
}

func (s *Store) rebuildIndexes(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding FROM chunk`)
	if err != nil {
		return errs.IO("failed to enumerate chunks for rebuild", err)
	}
	defer rows.Close()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM fts_chunk`); err != nil {
		return errs.IO("failed to clear lexical index", err)
	}

	var ids []string
	var vecs [][]float32
	for rows.Next() {
		var id, text string
		var embBytes []byte
		if err := rows.Scan(&id, &text, &embBytes); err != nil {
			return errs.IO("failed to scan chunk during rebuild", err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO fts_chunk(chunk_id, content) VALUES (?, ?)`,
			id, tokenizeForIndex(text)); err != nil {
			return errs.IO("failed to rebuild lexical index", err)
		}
		if emb := decodeEmbedding(embBytes); len(emb) > 0 {
			ids = append(ids, id)
			vecs = append(vecs, emb)
		}
	}
	if err := rows.Err(); err != nil {
		return errs.IO("failed to enumerate chunks for rebuild", err)
	}

	for _, id := range s.vector.AllIDs() {
		_ = s.vector.Delete(ctx, []string{id})
	}
	if len(ids) > 0 {
		if err := s.vector.Add(ctx, ids, vecs); err != nil {
			return errs.Wrap(errs.KindIndexCorrupt, err)
		}
	}
	return nil
}

// DoctorReport summarizes Doctor's findings (spec.md 4.1).
type DoctorReport struct {
	OrphanChunks      []string // chunk rows whose doc_id has no doc row
	DimensionMismatch []string // chunk ids whose embedding length != store dim
	MissingVectors    []string // live chunks with an embedding but absent from the vector index
	StaleVectors      []string // vector index entries with no corresponding live chunk
	Fixed             bool
}

// Doctor checks store invariants and, if fix is true, repairs what it
// safely can: orphaned index entries are removed and the vector index
// is rebuilt from chunk rows. It never deletes chunk data — data loss
// is Compact's job, not Doctor's (spec.md 4.1).
func (s *Store) Doctor(ctx context.Context, fix bool) (*DoctorReport, error) {
	report := &DoctorReport{}

	rows, err := s.db.QueryContext(ctx, `SELECT chunk.id FROM chunk
		LEFT JOIN doc ON chunk.doc_id = doc.id WHERE doc.id IS NULL`)
	if err != nil {
		return nil, errs.IO("failed doctor orphan scan", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.IO("failed doctor orphan scan", err)
		}
		report.OrphanChunks = append(report.OrphanChunks, id)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT id, length(embedding) FROM chunk WHERE deleted = 0 AND embedding IS NOT NULL`)
	if err != nil {
		return nil, errs.IO("failed doctor dimension scan", err)
	}
	for rows.Next() {
		var id string
		var byteLen int
		if err := rows.Scan(&id, &byteLen); err != nil {
			rows.Close()
			return nil, errs.IO("failed doctor dimension scan", err)
		}
		if byteLen/4 != s.dim {
			report.DimensionMismatch = append(report.DimensionMismatch, id)
		}
	}
	rows.Close()

	vectorIDs := make(map[string]bool)
	for _, id := range s.vector.AllIDs() {
		vectorIDs[id] = true
	}
	liveEmbedded := make(map[string]bool)
	rows, err = s.db.QueryContext(ctx, `SELECT id FROM chunk WHERE deleted = 0 AND embedding IS NOT NULL`)
	if err != nil {
		return nil, errs.IO("failed doctor vector scan", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.IO("failed doctor vector scan", err)
		}
		liveEmbedded[id] = true
		if !vectorIDs[id] {
			report.MissingVectors = append(report.MissingVectors, id)
		}
	}
	rows.Close()
	for id := range vectorIDs {
		if !liveEmbedded[id] {
			report.StaleVectors = append(report.StaleVectors, id)
		}
	}
	sort.Strings(report.OrphanChunks)
	sort.Strings(report.DimensionMismatch)
	sort.Strings(report.MissingVectors)
	sort.Strings(report.StaleVectors)

	if fix && (len(report.OrphanChunks) > 0 || len(report.MissingVectors) > 0 || len(report.StaleVectors) > 0) {
		if err := s.rebuildIndexes(ctx); err != nil {
			return nil, err
		}
		report.Fixed = true
	}

	return report, nil
}
