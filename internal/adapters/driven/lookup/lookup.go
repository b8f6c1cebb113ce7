// Package lookup loads Manning's n reclassification tables from CSV files
// with the columns value, nlcd_name, mannings_n.
package lookup

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
)

// CSVSource loads Manning's n lookup tables from CSV files.
type CSVSource struct{}

var _ driven.LookupSource = (*CSVSource)(nil)

// NewCSVSource creates a CSV lookup source.
func NewCSVSource() *CSVSource {
	return &CSVSource{}
}

// requiredColumns are the headers a lookup CSV must declare. Columns may
// appear in any order; extra columns are ignored.
var requiredColumns = []string{"value", "nlcd_name", "mannings_n"}

// Load reads and validates a lookup CSV. An empty path returns the
// built-in default table. The header row is mandatory.
func (s *CSVSource) Load(path string) (*domain.ManningsTable, error) {
	if path == "" {
		return domain.DefaultManningsTable(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, path)
	}

	cols, err := columnIndex(records[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, path, err)
	}

	var entries []domain.ManningsEntry
	for i, rec := range records[1:] {
		row := i + 2
		code, err := strconv.ParseUint(strings.TrimSpace(rec[cols["value"]]), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: bad land-cover code %q", domain.ErrInvalidInput, path, row, rec[cols["value"]])
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(rec[cols["mannings_n"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: bad Manning's n %q", domain.ErrInvalidInput, path, row, rec[cols["mannings_n"]])
		}
		entries = append(entries, domain.ManningsEntry{
			Code:      uint8(code),
			Name:      strings.TrimSpace(rec[cols["nlcd_name"]]),
			Roughness: n,
		})
	}

	table, err := domain.NewManningsTable(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ExportDefault writes the built-in table as a CSV, giving users a
// starting point for a custom lookup.
func ExportDefault(path string) error {
	return Export(path, domain.DefaultManningsTable())
}

// Export writes a lookup table as a CSV with a header row. The path must
// end in .csv so the file round-trips through Load.
func Export(path string, table *domain.ManningsTable) error {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return fmt.Errorf("%w: lookup table path %q must end in .csv", domain.ErrUnsupportedFormat, path)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"value", "nlcd_name", "mannings_n"}); err != nil {
		return err
	}
	for _, e := range table.Entries() {
		row := []string{
			strconv.FormatUint(uint64(e.Code), 10),
			e.Name,
			strconv.FormatFloat(e.Roughness, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// columnIndex maps the required column names to their positions in the
// header row.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing required column %q (want %s)", name, strings.Join(requiredColumns, ", "))
		}
	}
	return idx, nil
}
