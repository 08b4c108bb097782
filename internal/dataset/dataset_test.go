package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRecordFile(t *testing.T, dir, name string, records ...string) {
	t.Helper()
	content := ""
	for i, r := range records {
		if i > 0 {
			content += RecordSeparator
		}
		content += r
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCollectRowsLabelsCitationMarkers(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "a.txt",
		"Prior work established this [12]. We build on it.",
		"Another study agrees [3, 4].")

	rows, err := CollectRows(dir)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byText := map[string]bool{}
	for _, r := range rows {
		byText[r.Sentence] = r.Citing
	}
	require.True(t, byText["Prior work established this."])
	require.False(t, byText["We build on it."])
	require.True(t, byText["Another study agrees."])
}

func TestCollectRowsStripsMarkersFromSentences(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "a.txt", "As shown in <DOI:10.1000/x> this holds.")

	rows, err := CollectRows(dir)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Citing)
	require.NotContains(t, rows[0].Sentence, "DOI")
}

func TestCollectRowsRepairsHyphenation(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "a.txt", "This uses a trans-\nformer model [1].")

	rows, err := CollectRows(dir)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Contains(t, rows[0].Sentence, "transformer")
}

func TestCollectRowsIgnoresNonTxtFiles(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "a.txt", "One labeled sentence [1].")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Skipped [2]."), 0o644))

	rows, err := CollectRows(dir)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestGenerateWritesBothFormats(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	writeRecordFile(t, dataDir, "a.txt", "Cited claim [7]. Plain claim.")

	n, err := Generate(dataDir, outDir)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	f, err := os.Open(filepath.Join(outDir, "dataset.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"sentence", "citing"}, records[0])

	info, err := os.Stat(filepath.Join(outDir, "dataset.parquet"))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestGenerateEmptyCorpus(t *testing.T) {
	_, err := Generate(t.TempDir(), t.TempDir())
	require.Error(t, err)
}
