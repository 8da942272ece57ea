package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/reliefops/triage-cli/internal/model"
)

// WriteGeoJSON writes submissions as a GeoJSON FeatureCollection. Submissions
// without geometry get a null geometry rather than being dropped, so the
// attribute record survives.
func WriteGeoJSON(path string, subs []model.Submission) error {
	fc := &geojson.FeatureCollection{}
	for _, sub := range subs {
		var g geom.T
		if sub.Geometry != nil {
			g = geom.NewPointFlat(geom.XY, []float64{sub.Geometry.X, sub.Geometry.Y}).SetSRID(4326)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: g,
			Properties: map[string]any{
				"objectid": sub.ObjectID,
				"note":     sub.Note,
				"flag":     string(sub.Flag),
			},
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
