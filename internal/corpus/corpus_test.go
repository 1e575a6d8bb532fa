package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/medqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_csv(t *testing.T) {
	path := writeFile(t, "mtsamples.csv", "\ufeffdescription,transcription\n"+
		"Gallbladder,\"Patient underwent laparoscopic cholecystectomy\nunder general anesthesia.\"\n"+
		"Wrist, Patient received local anesthesia \n")

	records, err := Load(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 0, records[0].RowID)
	assert.Equal(t, "description: Gallbladder\ntranscription: Patient underwent laparoscopic cholecystectomy\nunder general anesthesia.", records[0].Text)
	assert.Equal(t, path, records[0].Source)
	assert.Equal(t, 1, records[1].RowID)
	assert.Equal(t, "description: Wrist\ntranscription: Patient received local anesthesia", records[1].Text)
}

func TestLoad_columns(t *testing.T) {
	path := writeFile(t, "c.csv", "id,specialty,transcription\n1,Surgery,Text one\n2,Ortho,Text two\n")

	records, err := Load(path, Options{Columns: []string{"transcription", "specialty"}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Header order is kept regardless of option order.
	assert.Equal(t, "specialty: Surgery\ntranscription: Text one", records[0].Text)

	_, err = Load(path, Options{Columns: []string{"missing"}})
	var le *models.LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestLoad_errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "nope.csv")},
		{"empty", writeFile(t, "empty.csv", "")},
		{"header only", writeFile(t, "header.csv", "a,b\n")},
		{"inconsistent fields", writeFile(t, "bad.csv", "a,b\n1,2,3\n")},
		{"bad quoting", writeFile(t, "quote.csv", "a,b\n\"unterminated,2\n")},
		{"unsupported", writeFile(t, "notes.json", "{}")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Load(tt.path, Options{})
			require.Error(t, err)
			assert.Nil(t, records)
			var le *models.LoadError
			require.True(t, errors.As(err, &le), "want *models.LoadError, got %T", err)
			assert.Equal(t, tt.path, le.Path)
			assert.Equal(t, models.FailureLoad, models.Classify(err))
		})
	}
}

func TestLoad_xlsx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mtsamples.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "description"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "transcription"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Wrist"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "Carpal tunnel release."))
	require.NoError(t, f.SetCellValue(sheet, "A3", "Knee"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	records, err := Load(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "description: Wrist\ntranscription: Carpal tunnel release.", records[0].Text)
	assert.Equal(t, "description: Knee\ntranscription: ", records[1].Text)
}

func TestChecksum(t *testing.T) {
	a := writeFile(t, "a.csv", "x,y\n1,2\n")
	b := writeFile(t, "b.csv", "x,y\n1,3\n")

	sumA, err := Checksum(a)
	require.NoError(t, err)
	assert.Len(t, sumA, 64)
	again, err := Checksum(a)
	require.NoError(t, err)
	assert.Equal(t, sumA, again)
	sumB, err := Checksum(b)
	require.NoError(t, err)
	assert.NotEqual(t, sumA, sumB)

	_, err = Checksum(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
