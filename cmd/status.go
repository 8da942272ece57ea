package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reliefops/triage-cli/internal/model"
	"github.com/reliefops/triage-cli/internal/pipeline"
	"github.com/reliefops/triage-cli/pkg/arcgis"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show layer triage counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		counts, err := layerCounts(cmd.Context(), initLayer(), fieldMap())
		if err != nil {
			return err
		}

		formatStatus(os.Stdout, counts)
		return nil
	},
}

// layerStatus holds the per-classification record counts.
type layerStatus struct {
	Total        int `json:"total"`
	Unclassified int `json:"unclassified"`
	Emergency    int `json:"emergency"`
	OK           int `json:"ok"`
}

func layerCounts(ctx context.Context, layer arcgis.Client, fields pipeline.FieldMap) (layerStatus, error) {
	var s layerStatus
	var err error

	if s.Total, err = layer.Count(ctx, "1=1"); err != nil {
		return s, eris.Wrap(err, "count total")
	}
	if s.Unclassified, err = layer.Count(ctx, fields.UnclassifiedWhere()); err != nil {
		return s, eris.Wrap(err, "count unclassified")
	}
	if s.Emergency, err = layer.Count(ctx, flagWhere(fields, model.Emergency)); err != nil {
		return s, eris.Wrap(err, "count emergency")
	}
	if s.OK, err = layer.Count(ctx, flagWhere(fields, model.OK)); err != nil {
		return s, eris.Wrap(err, "count ok")
	}
	return s, nil
}

func flagWhere(fields pipeline.FieldMap, c model.Classification) string {
	return fmt.Sprintf("%s = '%s'", fields.Flag, c)
}

func formatStatus(out io.Writer, s layerStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total reports:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Unclassified:\t%d\n", s.Unclassified)
	_, _ = fmt.Fprintf(w, "Emergency:\t%d\n", s.Emergency)
	_, _ = fmt.Fprintf(w, "OK:\t%d\n", s.OK)
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
