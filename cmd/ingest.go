package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"vessel-cbm-monitor/internal/ingest"
	"vessel-cbm-monitor/internal/models"
	"vessel-cbm-monitor/internal/parser"
)

// clearCmd removes the saved state
func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved readings so the next run starts empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.persistence.Clear(ctx); err != nil {
					return err
				}
				a.logger.Info("saved state cleared", zap.String("database", a.cfg.Database))
				fmt.Println("✓ Saved state cleared")
				return nil
			})
		},
	}
}

// ingestCmd replaces the stored readings with the contents of files
func ingestCmd() *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest CBM exports (xlsx, csv, json); replaces previously ingested data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				opts := []ingest.Option{
					ingest.WithSaver(a.persistence),
					ingest.WithReader(parser.NewParser(format).ParseFile),
				}
				result, err := a.pipeline(opts...).Run(ctx, args)
				if err != nil {
					return err
				}

				if output == "json" {
					return printJSON(result)
				}

				for _, f := range result.Files {
					fmt.Printf("  ✓ %-30s vessel=%-20s rows=%-6d readings=%-7d skipped=%-5d defects=%d\n",
						f.File, f.Vessel, f.Rows, f.Readings, f.SkippedRows, f.TimestampDefects)
				}
				for _, f := range result.Failures {
					fmt.Printf("  ✗ %-30s %s: %s\n", f.File, f.Category, f.Error)
				}
				fmt.Printf("\nBatch %s: %d/%d files, %d records in %v\n",
					result.ID, result.ProcessedFiles, len(args), result.Records, result.Duration.Round(time.Millisecond))

				if len(result.Quality) > 0 {
					fmt.Println("\nData quality:")
					for _, q := range result.Quality {
						fmt.Printf("  %-20s %6.1f%%  (%d rows, %d timestamp defects, %d skipped)\n",
							q.Vessel, q.Score, q.Rows, q.TimestampDefects, q.SkippedRows)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "File format (xlsx, csv, json); empty infers from extension")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

var sampleComponents = []struct {
	code, name, number string
	points             []string
}{
	{"ME-01", "Main Engine", "601.001", []string{"DE Bearing", "NDE Bearing"}},
	{"AE-02", "Aux Engine 2", "602.002", []string{"DE Bearing"}},
	{"BP-03", "Ballast Pump", "721.003", []string{"Motor DE", "Pump NDE"}},
	{"FP-04", "Fire Pump", "731.004", []string{"Motor DE"}},
}

// generateCmd writes sample CBM workbooks
func generateCmd() *cobra.Command {
	var vessels int
	var days int
	var dir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample CBM workbooks, one per vessel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("error creating output dir: %w", err)
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			names := []string{"Aurora", "Borealis", "Cassiopeia", "Draco", "Eridanus", "Fornax"}

			for i := 0; i < vessels; i++ {
				name := names[i%len(names)]
				if i >= len(names) {
					name = fmt.Sprintf("%s %d", name, i/len(names)+1)
				}
				path := filepath.Join(dir, fmt.Sprintf("CBM %s.xlsx", name))
				rows, err := writeSampleWorkbook(path, days, rng)
				if err != nil {
					return err
				}
				fmt.Printf("✓ %s (%d rows)\n", path, rows)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&vessels, "vessels", "n", 3, "Number of vessel files")
	cmd.Flags().IntVarP(&days, "days", "d", 120, "Days of history per vessel")
	cmd.Flags().StringVarP(&dir, "dir", "o", ".", "Output directory")
	return cmd
}

var sampleHeader = []string{
	parser.ColumnDate, parser.ColumnTime, parser.ColumnEquipmentCode, parser.ColumnComponent,
	parser.ColumnMeasurementPoint, parser.ColumnSubComponent,
	models.ParamVelocity, models.ParamDisplacement, models.ParamAcceleration,
	models.ParamRPM, models.ParamAmpere, "Bearing Temp", "Remarks",
}

// serialEpoch is day zero for spreadsheet serials after 1900-03-01.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func writeSampleWorkbook(path string, days int, rng *rand.Rand) (int, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	for i, h := range sampleHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	row := 2
	for ci, c := range sampleComponents {
		// Leave the last component stale so the missing report has content.
		last := 0
		if ci == len(sampleComponents)-1 {
			last = 45
		}
		for d := days; d >= last; d -= 7 {
			day := today.AddDate(0, 0, -d)
			serial := day.Sub(serialEpoch).Hours() / 24
			for _, point := range c.points {
				clock := float64(8*3600+rng.Intn(8*3600)) / 86400
				values := []interface{}{
					serial, clock, c.code, c.name, point, c.number,
					round2(1 + rng.Float64()*7),
					round2(10 + rng.Float64()*90),
					round2(0.2 + rng.Float64()*2.5),
					round2(700 + rng.Float64()*500),
					round2(40 + rng.Float64()*80),
					round2(45 + rng.Float64()*30),
					"",
				}
				if rng.Intn(10) == 0 {
					values[len(values)-1] = "checked"
				}
				cell, _ := excelize.CoordinatesToCellName(1, row)
				if err := f.SetSheetRow(sheet, cell, &values); err != nil {
					return 0, err
				}
				row++
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("error writing %s: %w", path, err)
	}
	return row - 2, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
