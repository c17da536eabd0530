// Package mbtiles writes MBTiles 1.x tile databases on SQLite.
package mbtiles

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/cartoforge/tilecutter/internal/domain"
	"github.com/cartoforge/tilecutter/internal/ports/output"
)

// The minimal MBTiles schema. Readers address tiles by the
// (zoom_level, tile_column, tile_row) triple, rows numbered from the
// bottom-left corner (TMS).
const schema = `
CREATE TABLE metadata (name text, value text);
CREATE UNIQUE INDEX metadata_name ON metadata (name);
CREATE TABLE tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);
CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
`

// Factory implements output.TileStoreFactory for MBTiles files.
type Factory struct{}

// NewFactory creates a new MBTiles store factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a fresh MBTiles database at path, replacing any
// existing file. The connection runs without journal or fsync; the file
// is write-once and rebuilt from scratch on failure.
func (f *Factory) Create(ctx context.Context, path string) (output.TileStore, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, &domain.StoreError{Path: path, Op: "remove", Err: err}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=OFF&_synchronous=OFF&_locking_mode=EXCLUSIVE", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &domain.StoreError{Path: path, Op: "open", Err: err}
	}

	// One writer per file, no concurrent connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StoreError{Path: path, Op: "create schema", Err: err}
	}

	return &Store{db: db, path: path}, nil
}

// Store implements output.TileStore over one MBTiles file. A store is
// used by a single worker and is not safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	closed bool
}

// WriteMetadata writes the metadata rows, replacing rows with the same
// name.
func (s *Store) WriteMetadata(ctx context.Context, md domain.TilesetMetadata) error {
	for _, row := range md.Rows() {
		_, err := s.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)",
			row[0], row[1])
		if err != nil {
			return &domain.StoreError{Path: s.path, Op: "write metadata", Err: err}
		}
	}
	return nil
}

// WriteTile inserts or replaces the tile at (zoom, column, row). The
// row is expected in TMS numbering.
func (s *Store) WriteTile(ctx context.Context, zoom, column, row int, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
		zoom, column, row, data)
	if err != nil {
		return &domain.StoreError{Path: s.path, Op: "write tile", Err: err}
	}
	return nil
}

// Close closes the database. Safe to call twice.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return &domain.StoreError{Path: s.path, Op: "close", Err: err}
	}
	return nil
}
