package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "patients.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Patients": {
			{"Name", "Email", "Age"},
			{"Ana Rivera", "ana@example.com", "41"},
			{"Bo Chen", "bo@example.com", "35"},
		},
	})

	tbl, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Email", "Age"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Ana Rivera", "ana@example.com", "41"}, tbl.Rows[0])

	recs := tbl.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "35", recs[1].Get("age"))
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Intake": {{"Name"}, {"Kim"}},
	})

	tbl, err := ReadXLSX(path, XLSXOptions{SheetName: "Intake"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Kim"}}, tbl.Rows)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_EmptySheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {}})

	_, err := ReadXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestReadXLSX_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ReadXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestReadTable_Dispatch(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "patients.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("Name,Email\n Ana , ana@x.com \n"), 0o644))
	tbl, err := ReadTable(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Ana", "ana@x.com"}}, tbl.Rows)

	tsvPath := filepath.Join(dir, "patients.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte("Name\tNotes\nBo\tprefers mornings, weekdays\n"), 0o644))
	tbl, err = ReadTable(context.Background(), tsvPath)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Bo", "prefers mornings, weekdays"}}, tbl.Rows)

	xlsxPath := createTestXLSX(t, map[string][][]string{"Sheet1": {{"Name"}, {"Cy"}}})
	tbl, err = ReadTable(context.Background(), xlsxPath)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Cy"}}, tbl.Rows)

	_, err = ReadTable(context.Background(), filepath.Join(dir, "patients.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	_, err = ReadTable(context.Background(), filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}
