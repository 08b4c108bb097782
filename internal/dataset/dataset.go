// Package dataset builds classifier training data from cleaned paper text.
// Each input file holds one or more text records separated by RecordSeparator;
// every sentence becomes one labeled row, where the label records whether the
// raw sentence carried an inline citation marker before stripping.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"citegap/internal/util"

	"github.com/parquet-go/parquet-go"
)

const RecordSeparator = "\n============\n"

type Row struct {
	Sentence string `parquet:"sentence" json:"sentence"`
	Citing   bool   `parquet:"citing" json:"citing"`
}

// CollectRows walks dataDir for .txt files and labels every sentence in them.
func CollectRows(dataDir string) ([]Row, error) {
	var rows []Row
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".txt") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		for _, record := range strings.Split(string(b), RecordSeparator) {
			record = util.CleanHyphenation(strings.TrimSpace(record))
			if record == "" {
				continue
			}
			for _, s := range util.SplitSentences(record) {
				citing := util.ContainsCitationMarker(s)
				sentence := strings.TrimSpace(util.StripCitationMarkers(s))
				if sentence == "" {
					continue
				}
				rows = append(rows, Row{Sentence: sentence, Citing: citing})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func WriteCSV(path string, rows []Row) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sentence", "citing"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Sentence, strconv.FormatBool(r.Citing)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func WriteParquet(path string, rows []Row) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

// Generate reads every record under dataDir and writes dataset.csv and
// dataset.parquet into outDir. It returns the number of rows written.
func Generate(dataDir, outDir string) (int, error) {
	rows, err := CollectRows(dataDir)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("no sentences found under %s", dataDir)
	}
	if err := WriteCSV(filepath.Join(outDir, "dataset.csv"), rows); err != nil {
		return 0, err
	}
	if err := WriteParquet(filepath.Join(outDir, "dataset.parquet"), rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
