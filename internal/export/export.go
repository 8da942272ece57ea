// Package export writes flagged emergency submissions to local files for
// downstream mapping and reporting tools.
package export

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/model"
	"github.com/reliefops/triage-cli/internal/pipeline"
	"github.com/reliefops/triage-cli/pkg/arcgis"
)

// Format identifies an output file format.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
	FormatGeoJSON   Format = "geojson"
)

// ParseFormat validates a format string from the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX, FormatShapefile, FormatGeoJSON:
		return Format(s), nil
	default:
		return "", eris.Errorf("export: unknown format %q (want csv, xlsx, shp, or geojson)", s)
	}
}

// FetchFlagged queries the layer for every submission whose flag field is
// EMERGENCY, geometry included, paging through the full result set.
func FetchFlagged(ctx context.Context, layer arcgis.Client, fields pipeline.FieldMap, pageSize int) ([]model.Submission, error) {
	where := fmt.Sprintf("%s = '%s'", fields.Flag, model.Emergency)

	var subs []model.Submission
	offset := 0
	for {
		res, err := layer.Query(ctx, arcgis.Query{
			Where:          where,
			OutFields:      []string{fields.ObjectID, fields.Note, fields.Flag},
			OrderBy:        []string{fields.ObjectID},
			ReturnGeometry: true,
			Offset:         offset,
			Limit:          pageSize,
		})
		if err != nil {
			return nil, eris.Wrap(err, "export: query flagged")
		}

		for _, f := range res.Features {
			sub, err := pipeline.ToSubmission(f, fields)
			if err != nil {
				zap.L().Warn("export: skipping malformed feature", zap.Error(err))
				continue
			}
			subs = append(subs, sub)
		}

		if !res.ExceededLimit || len(res.Features) == 0 {
			break
		}
		offset += len(res.Features)
	}

	return subs, nil
}

// Write dispatches to the writer for the given format.
func Write(path string, format Format, subs []model.Submission) error {
	switch format {
	case FormatCSV:
		return WriteCSV(path, subs)
	case FormatXLSX:
		return WriteXLSX(path, subs)
	case FormatShapefile:
		return WriteShapefile(path, subs)
	case FormatGeoJSON:
		return WriteGeoJSON(path, subs)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}
