package store

// schemaDDL creates the primary store schema in a single SQLite file:
// doc/chunk/meta tables plus the fts_chunk FTS5 virtual table used for
// lexical search. Keeping all four in one *sql.DB connection is what
// gives Recall the "single binary file" property spec.md 6 asks for —
// the vector index is the one piece that still lives in a sidecar file,
// since coder/hnsw's Graph only knows how to (de)serialize itself via a
// file path (see Store.vectorPath).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS doc (
	id      TEXT PRIMARY KEY,
	path    TEXT NOT NULL,
	hash    TEXT NOT NULL,
	mtime   TEXT NOT NULL,
	tag     TEXT NOT NULL DEFAULT '',
	source  TEXT NOT NULL DEFAULT '',
	meta    TEXT NOT NULL DEFAULT '{}',
	deleted INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS doc_path_live_idx ON doc(path) WHERE deleted = 0;
CREATE INDEX IF NOT EXISTS doc_mtime_idx ON doc(mtime);

CREATE TABLE IF NOT EXISTS chunk (
	id        TEXT PRIMARY KEY,
	doc_id    TEXT NOT NULL REFERENCES doc(id),
	offset    INTEGER NOT NULL,
	tokens    INTEGER NOT NULL,
	text      TEXT NOT NULL,
	embedding BLOB,
	deleted   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS chunk_doc_id_idx ON chunk(doc_id);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunk USING fts5(
	chunk_id UNINDEXED,
	content,
	tokenize='unicode61'
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// storePragmas mirror sqlite_bm25.go's pragma set: WAL mode for
// concurrent readers alongside the single writer the file lock already
// serializes, a bounded busy timeout as a second line of defense, and a
// larger page cache since chunk text/embeddings are read in bulk during
// compaction and doctor runs.
var storePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -65536",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
}
