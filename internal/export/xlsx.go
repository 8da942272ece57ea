package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/reliefops/triage-cli/internal/model"
)

// WriteXLSX writes submissions to a single-sheet workbook.
func WriteXLSX(path string, subs []model.Submission) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Emergencies")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportColumns {
		header.AddCell().SetString(col)
	}

	for _, sub := range subs {
		row := sheet.AddRow()
		row.AddCell().SetInt64(sub.ObjectID)
		row.AddCell().SetString(sub.Note)
		row.AddCell().SetString(string(sub.Flag))
		if sub.Geometry != nil {
			row.AddCell().SetFloat(sub.Geometry.X)
			row.AddCell().SetFloat(sub.Geometry.Y)
		} else {
			row.AddCell().SetString("")
			row.AddCell().SetString("")
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
