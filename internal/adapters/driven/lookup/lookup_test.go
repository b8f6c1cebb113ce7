package lookup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lookup.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSource_Load_EmptyPathReturnsDefault(t *testing.T) {
	table, err := NewCSVSource().Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultManningsTable().Entries(), table.Entries())
}

func TestCSVSource_Load_WithHeader(t *testing.T) {
	path := writeCSV(t, "value,nlcd_name,mannings_n\n11,Open Water,0.03\n82,Cultivated Crops,0.04\n")

	table, err := NewCSVSource().Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	n, ok := table.Lookup(11)
	require.True(t, ok)
	assert.Equal(t, 0.03, n)
}

func TestCSVSource_Load_ColumnsInAnyOrder(t *testing.T) {
	path := writeCSV(t, "nlcd_name,mannings_n,value\nOpen Water,0.03,11\n")

	table, err := NewCSVSource().Load(path)
	require.NoError(t, err)

	n, ok := table.Lookup(11)
	require.True(t, ok)
	assert.Equal(t, 0.03, n)
}

func TestCSVSource_Load_RejectsMissingHeader(t *testing.T) {
	path := writeCSV(t, "11,Open Water,0.03\n82,Cultivated Crops,0.04\n")

	_, err := NewCSVSource().Load(path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestCSVSource_Load_RejectsBadCode(t *testing.T) {
	path := writeCSV(t, "value,nlcd_name,mannings_n\nwater,Open Water,0.03\n")
	_, err := NewCSVSource().Load(path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCSVSource_Load_RejectsBadRoughness(t *testing.T) {
	path := writeCSV(t, "value,nlcd_name,mannings_n\n11,Open Water,fast\n")
	_, err := NewCSVSource().Load(path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCSVSource_Load_RejectsShortRow(t *testing.T) {
	path := writeCSV(t, "value,nlcd_name,mannings_n\n82,Crops\n")
	_, err := NewCSVSource().Load(path)
	assert.Error(t, err)
}

func TestCSVSource_Load_RejectsDuplicateCode(t *testing.T) {
	path := writeCSV(t, "value,nlcd_name,mannings_n\n11,Open Water,0.03\n11,Still Water,0.05\n")
	_, err := NewCSVSource().Load(path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCSVSource_Load_MissingFile(t *testing.T) {
	_, err := NewCSVSource().Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestExportDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.csv")
	require.NoError(t, ExportDefault(path))

	table, err := NewCSVSource().Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultManningsTable().Entries(), table.Entries())
}

func TestExportDefault_RejectsNonCSVPath(t *testing.T) {
	err := ExportDefault(filepath.Join(t.TempDir(), "table.txt"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
