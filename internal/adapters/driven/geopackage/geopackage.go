// Package geopackage reads and writes vector layers as OGC GeoPackage
// files, the SQLite-based format hydrologic tooling expects. Only feature
// tables are handled; tile pyramids are out of scope.
package geopackage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
)

const (
	// applicationID is "GPKG", required in the SQLite header.
	applicationID = 0x47504B47

	// userVersion marks GeoPackage 1.3.
	userVersion = 10300

	geometryColumn = "geom"
)

const wgs84Definition = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

// Store reads and writes GeoPackage feature tables.
type Store struct{}

var _ driven.FeatureFileStore = (*Store)(nil)

// NewStore creates a GeoPackage store.
func NewStore() *Store {
	return &Store{}
}

// Read loads the first feature table from a GeoPackage.
func (s *Store) Read(path string) (domain.FeatureCollection, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	var layer struct {
		TableName  string `db:"table_name"`
		ColumnName string `db:"column_name"`
		SRSID      int    `db:"srs_id"`
	}
	err = db.Get(&layer, `SELECT table_name, column_name, srs_id FROM gpkg_geometry_columns LIMIT 1`)
	if err == sql.ErrNoRows {
		return domain.FeatureCollection{}, fmt.Errorf("%s: %w", path, domain.ErrEmptyCollection)
	}
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("read %s: %w", path, err)
	}

	rows, err := db.Queryx(fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(layer.TableName)))
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("read %s: %w", path, err)
	}
	defer rows.Close()

	fc := domain.FeatureCollection{SRID: layer.SRSID}
	for rows.Next() {
		record, err := rows.SliceScan()
		if err != nil {
			return domain.FeatureCollection{}, fmt.Errorf("read %s: %w", path, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			return domain.FeatureCollection{}, fmt.Errorf("read %s: %w", path, err)
		}

		f := domain.Feature{Properties: make(map[string]any)}
		for i, col := range cols {
			switch {
			case col == layer.ColumnName:
				blob, _ := record[i].([]byte)
				geom, err := decodeGeometry(blob)
				if err != nil {
					return domain.FeatureCollection{}, fmt.Errorf("read %s: %w", path, err)
				}
				f.Geometry = geom
			case col == "fid" || col == "id":
				// Synthetic primary key, not a property.
			default:
				if b, ok := record[i].([]byte); ok {
					f.Properties[col] = string(b)
				} else {
					f.Properties[col] = record[i]
				}
			}
		}
		if f.Geometry == nil {
			continue
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, rows.Err()
}

// Write saves a feature collection as a single-layer GeoPackage. The file
// is built under a temporary name and renamed into place.
func (s *Store) Write(path string, fc domain.FeatureCollection) error {
	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".gpkg")
	if err := s.writeFile(tmp, path, fc); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Store) writeFile(tmp, path string, fc domain.FeatureCollection) error {
	db, err := sqlx.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer db.Close()

	srid := fc.SRID
	if srid == 0 {
		srid = domain.SRIDWGS84
	}
	layer := layerName(path)
	propCols := propertyColumns(fc)

	stmts := []string{
		fmt.Sprintf(`PRAGMA application_id = %d`, applicationID),
		fmt.Sprintf(`PRAGMA user_version = %d`, userVersion),
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER,
			CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
		)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	colDefs := []string{`fid INTEGER PRIMARY KEY AUTOINCREMENT`, quoteIdent(geometryColumn) + ` BLOB`}
	for _, col := range propCols {
		colDefs = append(colDefs, quoteIdent(col)+` TEXT`)
	}
	createLayer := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(layer), strings.Join(colDefs, ", "))
	if _, err := db.Exec(createLayer); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer tx.Rollback()

	srsRows := [][]any{
		{"Undefined Cartesian", -1, "NONE", -1, "undefined", nil},
		{"Undefined Geographic", 0, "NONE", 0, "undefined", nil},
		{"WGS 84", domain.SRIDWGS84, "EPSG", domain.SRIDWGS84, wgs84Definition, nil},
	}
	for _, row := range srsRows {
		if _, err := tx.Exec(`INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, ?, ?, ?, ?)`, row...); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	placeholders := make([]string, 0, len(propCols)+1)
	insertCols := []string{quoteIdent(geometryColumn)}
	placeholders = append(placeholders, "?")
	for _, col := range propCols {
		insertCols = append(insertCols, quoteIdent(col))
		placeholders = append(placeholders, "?")
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(layer), strings.Join(insertCols, ", "), strings.Join(placeholders, ", "))

	for _, f := range fc.Features {
		blob, err := encodeGeometry(f.Geometry, srid)
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[sanitizeIdent(k)] = v
		}
		args := []any{blob}
		for _, col := range propCols {
			args = append(args, propertyText(props[col]))
		}
		if _, err := tx.Exec(insertSQL, args...); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	var minX, minY, maxX, maxY any
	if b, err := fc.Bound(); err == nil {
		minX, minY, maxX, maxY = b.Min[0], b.Min[1], b.Max[0], b.Max[1]
	}
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	if _, err := tx.Exec(
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, '', ?, ?, ?, ?, ?, ?)`,
		layer, layer, now, minX, minY, maxX, maxY, srid,
	); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO gpkg_geometry_columns VALUES (?, ?, ?, ?, 0, 0)`,
		layer, geometryColumn, geometryTypeName(fc), srid,
	); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// encodeGeometry wraps WKB in the GeoPackage binary header: magic, version,
// flags (little-endian, XY envelope), srs_id, envelope, geometry.
func encodeGeometry(g orb.Geometry, srid int) ([]byte, error) {
	body, err := wkb.Marshal(g)
	if err != nil {
		return nil, err
	}
	b := g.Bound()

	header := make([]byte, 40)
	header[0], header[1] = 'G', 'P'
	header[2] = 0
	header[3] = 0b0000_0011
	binary.LittleEndian.PutUint32(header[4:], uint32(int32(srid)))
	binary.LittleEndian.PutUint64(header[8:], floatBits(b.Min[0]))
	binary.LittleEndian.PutUint64(header[16:], floatBits(b.Max[0]))
	binary.LittleEndian.PutUint64(header[24:], floatBits(b.Min[1]))
	binary.LittleEndian.PutUint64(header[32:], floatBits(b.Max[1]))
	return append(header, body...), nil
}

// decodeGeometry strips the GeoPackage binary header and parses the WKB.
func decodeGeometry(blob []byte) (orb.Geometry, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, fmt.Errorf("%w: not a GeoPackage geometry blob", domain.ErrUnsupportedFormat)
	}
	flags := blob[3]
	envelopeSize := 0
	switch (flags >> 1) & 0x7 {
	case 0:
		envelopeSize = 0
	case 1:
		envelopeSize = 32
	case 2, 3:
		envelopeSize = 48
	case 4:
		envelopeSize = 64
	default:
		return nil, fmt.Errorf("%w: invalid geometry envelope", domain.ErrUnsupportedFormat)
	}
	offset := 8 + envelopeSize
	if len(blob) < offset {
		return nil, fmt.Errorf("%w: truncated geometry blob", domain.ErrUnsupportedFormat)
	}
	return wkb.Unmarshal(blob[offset:])
}

func geometryTypeName(fc domain.FeatureCollection) string {
	name := ""
	for _, f := range fc.Features {
		var t string
		switch f.Geometry.(type) {
		case orb.Point:
			t = "POINT"
		case orb.LineString:
			t = "LINESTRING"
		case orb.Polygon:
			t = "POLYGON"
		case orb.MultiPolygon:
			t = "MULTIPOLYGON"
		default:
			t = "GEOMETRY"
		}
		if name == "" {
			name = t
		} else if name != t {
			return "GEOMETRY"
		}
	}
	if name == "" {
		return "GEOMETRY"
	}
	return name
}

func propertyColumns(fc domain.FeatureCollection) []string {
	seen := make(map[string]bool)
	for _, f := range fc.Features {
		for k := range f.Properties {
			seen[sanitizeIdent(k)] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func propertyText(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

var identPattern = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func sanitizeIdent(s string) string {
	s = identPattern.ReplaceAllString(s, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func layerName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return sanitizeIdent(base)
}

func floatBits(v float64) uint64 {
	return math.Float64bits(v)
}
