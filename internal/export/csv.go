package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/reliefops/triage-cli/internal/model"
)

// exportColumns is the ordered tabular output schema shared by the CSV and
// XLSX writers.
var exportColumns = []string{"objectid", "note", "flag", "longitude", "latitude"}

// WriteCSV writes submissions as a CSV file.
func WriteCSV(path string, subs []model.Submission) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(exportColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, sub := range subs {
		if err := w.Write(buildCSVRow(sub)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	return w.Error()
}

func buildCSVRow(sub model.Submission) []string {
	lon, lat := "", ""
	if sub.Geometry != nil {
		lon = strconv.FormatFloat(sub.Geometry.X, 'f', -1, 64)
		lat = strconv.FormatFloat(sub.Geometry.Y, 'f', -1, 64)
	}
	return []string{
		strconv.FormatInt(sub.ObjectID, 10),
		sub.Note,
		string(sub.Flag),
		lon,
		lat,
	}
}
