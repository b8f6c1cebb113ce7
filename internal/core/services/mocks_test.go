package services

import (
	"context"
	"os"
	"sync"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

// memVectorStore keeps vector layers in memory, keyed by path.
type memVectorStore struct {
	mu    sync.Mutex
	files map[string]domain.FeatureCollection
}

func newMemVectorStore() *memVectorStore {
	return &memVectorStore{files: make(map[string]domain.FeatureCollection)}
}

func (m *memVectorStore) Read(path string) (domain.FeatureCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fc, ok := m.files[path]
	if !ok {
		return domain.FeatureCollection{}, os.ErrNotExist
	}
	return fc, nil
}

func (m *memVectorStore) Write(path string, fc domain.FeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = fc
	return nil
}

// memRasterStore keeps rasters in memory, keyed by path.
type memRasterStore struct {
	mu     sync.Mutex
	class  map[string]*domain.Grid[uint8]
	values map[string]*domain.Grid[float32]
}

func newMemRasterStore() *memRasterStore {
	return &memRasterStore{
		class:  make(map[string]*domain.Grid[uint8]),
		values: make(map[string]*domain.Grid[float32]),
	}
}

func (m *memRasterStore) ReadClassGrid(path string) (*domain.Grid[uint8], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.class[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return g, nil
}

func (m *memRasterStore) WriteClassGrid(path string, g *domain.Grid[uint8]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.class[path] = g
	return nil
}

func (m *memRasterStore) ReadValueGrid(path string) (*domain.Grid[float32], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.values[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return g, nil
}

func (m *memRasterStore) WriteValueGrid(path string, g *domain.Grid[float32]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = g
	return nil
}

// mockSurvey serves canned map-unit features, with optional per-tile
// failure injection.
type mockSurvey struct {
	mu       sync.Mutex
	calls    int
	features []domain.Feature
	fail     func(domain.Extent) error
}

func (m *mockSurvey) FetchMapUnits(_ context.Context, extent domain.Extent) ([]domain.Feature, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fail != nil {
		if err := m.fail(extent); err != nil {
			return nil, err
		}
	}
	return m.features, nil
}

// mockTabular serves canned component records and captures the keys it was
// asked for.
type mockTabular struct {
	mu         sync.Mutex
	gotKeys    []string
	components []domain.Component
	err        error
}

func (m *mockTabular) FetchComponents(_ context.Context, keys []string) ([]domain.Component, error) {
	m.mu.Lock()
	m.gotKeys = append([]string(nil), keys...)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.components, nil
}

// mockCoverage synthesizes a uniform land-cover grid for any requested
// extent, snapped to a shared cell lattice so tiles mosaic cleanly.
type mockCoverage struct {
	mu       sync.Mutex
	calls    int
	cellSize float64
	code     uint8
	fail     func(domain.Extent) error
}

func (m *mockCoverage) FetchCoverage(_ context.Context, extent domain.Extent) (*domain.Grid[uint8], error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fail != nil {
		if err := m.fail(extent); err != nil {
			return nil, err
		}
	}

	cell := m.cellSize
	minX := floorTo(extent.MinX, cell)
	maxY := ceilTo(extent.MaxY, cell)
	cols := int(ceilTo(extent.MaxX-minX, cell) / cell)
	rows := int(ceilTo(maxY-extent.MinY, cell) / cell)
	def := domain.GridDef{
		OriginX:  minX,
		OriginY:  maxY,
		CellSize: cell,
		Rows:     rows,
		Cols:     cols,
		SRID:     domain.SRIDConusAlbers,
	}
	g := domain.NewGrid[uint8](def, 0)
	for i := range g.Data {
		g.Data[i] = m.code
	}
	return g, nil
}

func floorTo(v, step float64) float64 {
	return step * float64(int(v/step)-1)
}

func ceilTo(v, step float64) float64 {
	return step * float64(int(v/step)+1)
}

// mockLookup serves a fixed table or error.
type mockLookup struct {
	table *domain.ManningsTable
	err   error
}

func (m *mockLookup) Load(string) (*domain.ManningsTable, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.table != nil {
		return m.table, nil
	}
	return domain.DefaultManningsTable(), nil
}
