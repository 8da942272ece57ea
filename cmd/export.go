package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export flagged emergencies to a file",
	Long:  "Fetches every report flagged EMERGENCY, geometry included, and writes it as csv, xlsx, shp, or geojson.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		subs, err := export.FetchFlagged(ctx, initLayer(), fieldMap(), cfg.ArcGIS.PageSize)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			zap.L().Warn("no flagged emergencies to export")
		}

		if err := export.Write(exportOut, format, subs); err != nil {
			return eris.Wrap(err, "export")
		}

		zap.L().Info("export written",
			zap.String("path", exportOut),
			zap.String("format", string(format)),
			zap.Int("records", len(subs)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, xlsx, shp, geojson")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (required)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
