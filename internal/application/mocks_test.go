package application

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cartoforge/tilecutter/internal/domain"
	"github.com/cartoforge/tilecutter/internal/ports/output"
)

// mockRaster implements output.RasterProcessor for testing.
type mockRaster struct {
	mu sync.Mutex

	extents      map[string]domain.Extent // path -> described extent
	describeErr  error
	reprojectErr error
	clipErr      error
	renderErr    error

	// renderFn lets tests materialize a pyramid directory.
	renderFn func(dir string) error

	reprojected []string
	clipped     []string
	rendered    []string
}

func (m *mockRaster) Describe(_ context.Context, path string) (domain.Extent, error) {
	if m.describeErr != nil {
		return domain.Extent{}, m.describeErr
	}
	if ext, ok := m.extents[path]; ok {
		return ext, nil
	}
	return domain.Extent{}, &domain.ToolError{Tool: "gdalinfo", Stage: "describe", Err: os.ErrNotExist}
}

func (m *mockRaster) Reproject(_ context.Context, src, dst string) error {
	m.mu.Lock()
	m.reprojected = append(m.reprojected, dst)
	m.mu.Unlock()
	return m.reprojectErr
}

func (m *mockRaster) Clip(_ context.Context, src, dst string, _ domain.Extent, _ int) error {
	if m.clipErr != nil {
		return m.clipErr
	}
	m.mu.Lock()
	m.clipped = append(m.clipped, dst)
	m.mu.Unlock()
	return os.WriteFile(dst, []byte("clip"), 0o644)
}

func (m *mockRaster) RenderPyramid(_ context.Context, src, dir string, _, _ int) error {
	if m.renderErr != nil {
		return m.renderErr
	}
	m.mu.Lock()
	m.rendered = append(m.rendered, dir)
	m.mu.Unlock()
	if m.renderFn != nil {
		return m.renderFn(dir)
	}
	return os.MkdirAll(dir, 0o755)
}

// mockFilter implements output.TileFilter for testing.
type mockFilter struct {
	mu          sync.Mutex
	flattened   [][2]string // src, dst pairs
	quality     int
	quantized   []string
	keyed       []string
	flattenErr  error
	quantizeErr error
	keyErr      error
}

func (m *mockFilter) FlattenJPEG(_ context.Context, src, dst string, quality int) error {
	if m.flattenErr != nil {
		return m.flattenErr
	}
	m.mu.Lock()
	m.flattened = append(m.flattened, [2]string{src, dst})
	m.quality = quality
	m.mu.Unlock()
	return nil
}

func (m *mockFilter) QuantizePNG8(_ context.Context, path string) error {
	if m.quantizeErr != nil {
		return m.quantizeErr
	}
	m.mu.Lock()
	m.quantized = append(m.quantized, path)
	m.mu.Unlock()
	return nil
}

func (m *mockFilter) KeyTransparency(_ context.Context, path string) error {
	if m.keyErr != nil {
		return m.keyErr
	}
	m.mu.Lock()
	m.keyed = append(m.keyed, path)
	m.mu.Unlock()
	return nil
}

// memTileSource implements output.TileSource over a fixed leaf slice.
type memTileSource struct {
	leaves  []output.TileLeaf
	walkErr error
}

func (s *memTileSource) Walk(_ context.Context, fn func(output.TileLeaf) error) error {
	if s.walkErr != nil {
		return s.walkErr
	}
	for _, leaf := range s.leaves {
		if err := fn(leaf); err != nil {
			return err
		}
	}
	return nil
}

// mockOpener implements output.TileSourceOpener, handing out a fixed
// source regardless of directory.
type mockOpener struct {
	source *memTileSource
	opened []string
}

func (o *mockOpener) Open(dir string, _ domain.TileFormat) output.TileSource {
	o.opened = append(o.opened, dir)
	return o.source
}

type tileKey struct {
	zoom, column, row int
}

// memTileStore implements output.TileStore in memory.
type memTileStore struct {
	metadata map[string]string
	tiles    map[tileKey][]byte
	writeErr error
	closed   bool
}

func newMemTileStore() *memTileStore {
	return &memTileStore{
		metadata: make(map[string]string),
		tiles:    make(map[tileKey][]byte),
	}
}

func (s *memTileStore) WriteMetadata(_ context.Context, md domain.TilesetMetadata) error {
	for _, row := range md.Rows() {
		s.metadata[row[0]] = row[1]
	}
	return nil
}

func (s *memTileStore) WriteTile(_ context.Context, zoom, column, row int, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.tiles[tileKey{zoom, column, row}] = data
	return nil
}

func (s *memTileStore) Close() error {
	s.closed = true
	return nil
}

// memStoreFactory implements output.TileStoreFactory, recording the
// stores it hands out keyed by path.
type memStoreFactory struct {
	mu        sync.Mutex
	stores    map[string]*memTileStore
	createErr error
	writeErr  error
}

func newMemStoreFactory() *memStoreFactory {
	return &memStoreFactory{stores: make(map[string]*memTileStore)}
}

func (f *memStoreFactory) Create(_ context.Context, path string) (output.TileStore, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	store := newMemTileStore()
	store.writeErr = f.writeErr
	f.mu.Lock()
	f.stores[path] = store
	f.mu.Unlock()
	return store, nil
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu        sync.Mutex
	uploads   map[string]string // key -> local path
	uploadErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{uploads: make(map[string]string)}
}

func (m *mockStorage) Upload(_ context.Context, localPath, key string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.mu.Lock()
	m.uploads[key] = localPath
	m.mu.Unlock()
	return nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.uploads[key]
	return ok, nil
}

// fakeCellRunner implements CellRunner without touching the filesystem.
type fakeCellRunner struct {
	mu        sync.Mutex
	processed []domain.GridCell
	tiles     int
	failCell  string // cell name that fails, empty for none
	failErr   error
}

func (r *fakeCellRunner) Process(_ context.Context, cell domain.GridCell, _, _, outputDir string) (string, int, error) {
	r.mu.Lock()
	r.processed = append(r.processed, cell)
	r.mu.Unlock()
	if r.failCell != "" && cell.Name() == r.failCell {
		return "", 0, r.failErr
	}
	return filepath.Join(outputDir, cell.Name()+".mbtiles"), r.tiles, nil
}

// sequencedCellRunner fails one cell only after another cell is in
// flight, and records whether the in-flight cell saw its context
// canceled before finishing.
type sequencedCellRunner struct {
	failCell string
	failErr  error

	inFlight chan struct{} // closed when the surviving cell starts
	failed   chan struct{} // closed when the failing cell returns

	mu          sync.Mutex
	interrupted bool
	completed   []string
}

func newSequencedCellRunner(failCell string, failErr error) *sequencedCellRunner {
	return &sequencedCellRunner{
		failCell: failCell,
		failErr:  failErr,
		inFlight: make(chan struct{}),
		failed:   make(chan struct{}),
	}
}

func (r *sequencedCellRunner) Process(ctx context.Context, cell domain.GridCell, _, _, outputDir string) (string, int, error) {
	if cell.Name() == r.failCell {
		<-r.inFlight
		close(r.failed)
		return "", 0, r.failErr
	}

	close(r.inFlight)
	<-r.failed
	// Give the pool time to react to the failure before checking.
	time.Sleep(100 * time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		r.interrupted = true
		return "", 0, ctx.Err()
	}
	r.completed = append(r.completed, cell.Name())
	return filepath.Join(outputDir, cell.Name()+".mbtiles"), 1, nil
}
