package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"vessel-cbm-monitor/internal/export"
	"vessel-cbm-monitor/internal/metrics"
	"vessel-cbm-monitor/internal/models"
)

// exportCmd writes one of the downloadable reports to a file
func exportCmd() *cobra.Command {
	var flags equipmentFlags
	var raw models.RawFilter
	var format, out, sortBy string
	var rangeDays, threshold int

	cmd := &cobra.Command{
		Use:   "export [equipment|trend|raw|missing]",
		Short: "Export readings or the missing readings report (csv, xlsx, pdf)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := export.ParseKind(args[0])
			if err != nil {
				return err
			}
			if format == "pdf" && kind != export.KindMissing {
				return fmt.Errorf("pdf is only available for %s", export.KindMissing)
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				now := time.Now()
				e := a.engine()
				var body []byte
				var err error

				if kind == export.KindMissing {
					if !cmd.Flags().Changed("threshold") {
						threshold = a.cfg.Query.StalenessDays
					}
					items := e.MissingEquipment(flags.vessel, threshold, sortBy)
					body, err = renderMissing(items, threshold, format, now)
				} else {
					var readings []models.Reading
					switch kind {
					case export.KindEquipment:
						readings = e.EquipmentSeries(flags.filter())
					case export.KindTrend:
						readings = e.TrendReadings(flags.parameter, flags.vessel, rangeDays)
					case export.KindRaw:
						raw.Vessel, raw.Parameter, raw.RangeDays = flags.vessel, flags.parameter, rangeDays
						readings = e.RawReadings(raw)
						sort.SliceStable(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) })
					}
					body, err = renderReadings(string(kind), readings, format)
				}
				if err != nil {
					metrics.IncExport(string(kind), metrics.ResultError)
					return err
				}
				metrics.IncExport(string(kind), metrics.ResultSuccess)

				if out == "" {
					out = export.FileName(kind, format, now)
				}
				if err := os.WriteFile(out, body, 0o644); err != nil {
					return fmt.Errorf("error writing %s: %w", out, err)
				}
				fmt.Printf("✓ Exported to %s\n", out)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&raw.Search, "search", "s", "", "Raw export search text")
	cmd.Flags().IntVarP(&rangeDays, "range", "r", 0, "Days of history (0 for all)")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 30, "Missing report threshold in days")
	cmd.Flags().StringVar(&sortBy, "sort", models.SortByDays, "Missing report sort (days, vessel, equipment)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format (csv, xlsx, pdf)")
	cmd.Flags().StringVarP(&out, "out", "O", "", "Output file (default <kind>_<date>.<format>)")
	return cmd
}

func renderReadings(sheet string, readings []models.Reading, format string) ([]byte, error) {
	records := export.ReadingRecords(readings)
	switch format {
	case "xlsx":
		return export.BuildXLSX(sheet, records, export.ReadingColumns)
	case "csv":
		text, err := export.ToDelimitedText(records, export.ReadingColumns)
		return []byte(text), err
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

func renderMissing(items []models.MissingEquipment, threshold int, format string, now time.Time) ([]byte, error) {
	records := export.MissingRecords(items)
	switch format {
	case "pdf":
		return export.BuildMissingReportPDF(items, threshold, now)
	case "xlsx":
		return export.BuildXLSX(string(export.KindMissing), records, export.MissingColumns)
	case "csv":
		text, err := export.ToDelimitedText(records, export.MissingColumns)
		return []byte(text), err
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}
