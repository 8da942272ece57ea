package export

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/model"
)

// shapefileFields is the DBF schema for exported points. Note text is
// truncated to the DBF string limit.
var shapefileFields = []shp.Field{
	shp.NumberField("OBJECTID", 18),
	shp.StringField("NOTE", 254),
	shp.StringField("FLAG", 16),
}

// WriteShapefile writes submissions as a point shapefile. Submissions
// without geometry cannot be represented and are skipped.
func WriteShapefile(path string, subs []model.Submission) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields(shapefileFields)

	row := 0
	skipped := 0
	for _, sub := range subs {
		if sub.Geometry == nil {
			skipped++
			continue
		}
		w.Write(&shp.Point{X: sub.Geometry.X, Y: sub.Geometry.Y})

		note := sub.Note
		if len(note) > 254 {
			note = note[:254]
		}
		// go-shp's DBF writer accepts int but not int64.
		if err := w.WriteAttribute(row, 0, int(sub.ObjectID)); err != nil {
			return eris.Wrap(err, "export: write objectid attribute")
		}
		if err := w.WriteAttribute(row, 1, note); err != nil {
			return eris.Wrap(err, "export: write note attribute")
		}
		if err := w.WriteAttribute(row, 2, string(sub.Flag)); err != nil {
			return eris.Wrap(err, "export: write flag attribute")
		}
		row++
	}

	if skipped > 0 {
		zap.L().Warn("export: skipped submissions without geometry", zap.Int("skipped", skipped))
	}
	return nil
}
