package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vessel-cbm-monitor/internal/db"
	"vessel-cbm-monitor/internal/models"
)

const displayTime = "2006-01-02 15:04:05"

type equipmentFlags struct {
	vessel, code, component, parameter string
}

func (f *equipmentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.vessel, "vessel", "V", "", "Vessel name")
	cmd.Flags().StringVarP(&f.code, "equipment", "e", "", "Equipment code (MP_NUMBER)")
	cmd.Flags().StringVarP(&f.component, "component", "c", "", "Component name")
	cmd.Flags().StringVarP(&f.parameter, "parameter", "p", "", "Parameter name")
}

func (f *equipmentFlags) filter() models.EquipmentFilter {
	return models.EquipmentFilter{Vessel: f.vessel, EquipmentCode: f.code, Component: f.component, Parameter: f.parameter}
}

// equipmentCmd prints one equipment's series and its most recent readings
func equipmentCmd() *cobra.Command {
	var flags equipmentFlags
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "equipment",
		Short: "Show readings for one piece of equipment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.vessel == "" || flags.code == "" {
				return fmt.Errorf("--vessel and --equipment are required")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				e := a.engine()
				series := e.EquipmentSeries(flags.filter())
				recent := e.RecentReadings(flags.filter(), limit)
				if output == "json" {
					return printJSON(map[string]interface{}{"series": series, "recent": recent})
				}

				fmt.Printf("Found %d readings\n\n", len(series))
				fmt.Printf("%-19s  %-22s  %-18s  %12s  %-6s  %s\n", "Timestamp", "Component", "Parameter", "Value", "Unit", "Status")
				for _, r := range recent {
					fmt.Printf("%-19s  %-22s  %-18s  %12.3f  %-6s  %s\n",
						r.Timestamp.Format(displayTime), r.Component, r.Parameter, r.Value, r.Unit, r.Status)
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Recent readings to show")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// pairedCmd prints RPM/current pairs
func pairedCmd() *cobra.Command {
	var flags equipmentFlags
	var output string

	cmd := &cobra.Command{
		Use:   "paired",
		Short: "Show RPM and current readings taken at the same instant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.vessel == "" || flags.code == "" {
				return fmt.Errorf("--vessel and --equipment are required")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				points := a.engine().PairedSeries(flags.vessel, flags.code, flags.component)
				if output == "json" {
					return printJSON(points)
				}
				fmt.Printf("%d paired points\n\n", len(points))
				fmt.Printf("%-19s  %10s  %10s\n", "Timestamp", models.ParamRPM, models.ParamAmpere)
				for _, p := range points {
					fmt.Printf("%-19s  %10.2f  %10.2f\n", p.Timestamp.Format(displayTime), p.RPM, p.Ampere)
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// trendCmd prints fleet-wide statistics for one parameter
func trendCmd() *cobra.Command {
	var parameter, vessel, output string
	var rangeDays int

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show a parameter's trend across the fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				trend := a.engine().FleetTrend(parameter, vessel, rangeDays)
				if output == "json" {
					return printJSON(trend)
				}

				fmt.Printf("📈 %s across %d vessel(s)\n", parameter, len(trend.Vessels))
				fmt.Println("==========================================")
				for _, v := range trend.Vessels {
					fmt.Printf("  %-20s %d points\n", v, len(trend.SeriesByVessel[v]))
				}
				fmt.Printf("\n  Average:  %s\n", models.FormatStat(trend.Stats.Average, trend.Unit))
				fmt.Printf("  Minimum:  %s\n", models.FormatStat(trend.Stats.Minimum, trend.Unit))
				fmt.Printf("  Maximum:  %s\n", models.FormatStat(trend.Stats.Maximum, trend.Unit))
				fmt.Printf("  Std Dev:  %s\n", models.FormatStat(trend.Stats.StdDev, trend.Unit))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&parameter, "parameter", "p", models.ParamVelocity, "Parameter name")
	cmd.Flags().StringVarP(&vessel, "vessel", "V", "", "Restrict to one vessel")
	cmd.Flags().IntVarP(&rangeDays, "range", "r", 30, "Days of history (0 for all)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// rawCmd pages through readings
func rawCmd() *cobra.Command {
	var f models.RawFilter
	var page, pageSize int
	var output string

	cmd := &cobra.Command{
		Use:   "raw",
		Short: "List readings newest first, one page at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if pageSize <= 0 {
					pageSize = a.cfg.Query.PageSize
				}
				result := a.engine().RawListing(f, page, pageSize)
				if output == "json" {
					return printJSON(result)
				}

				fmt.Printf("Page %d of %d (%d readings)\n\n", result.Page, result.TotalPages, result.TotalCount)
				for _, r := range result.Items {
					fmt.Printf("[%s] %-18s %-10s %-22s %-18s %.3f\n",
						r.Timestamp.Format(displayTime), r.Vessel, r.EquipmentCode, r.Component, r.Parameter, r.Value)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Search, "search", "s", "", "Case-insensitive substring of vessel, equipment, component or parameter")
	cmd.Flags().StringVarP(&f.Vessel, "vessel", "V", "", "Vessel name")
	cmd.Flags().StringVarP(&f.Parameter, "parameter", "p", "", "Parameter name")
	cmd.Flags().IntVarP(&f.RangeDays, "range", "r", 0, "Days of history (0 for all)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// missingCmd lists equipment without recent readings
func missingCmd() *cobra.Command {
	var vessel, sortBy, output string
	var threshold int

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List equipment whose last reading is older than a threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("threshold") {
					threshold = a.cfg.Query.StalenessDays
				}
				items := a.engine().MissingEquipment(vessel, threshold, sortBy)
				if output == "json" {
					return printJSON(items)
				}
				if len(items) == 0 {
					fmt.Printf("All equipment has readings within %d days.\n", threshold)
					return nil
				}

				fmt.Printf("%-20s %-10s %-22s %-19s %5s  %s\n", "Vessel", "Equipment", "Component", "Last Reading", "Days", "Severity")
				fmt.Println(strings.Repeat("-", 92))
				for _, m := range items {
					fmt.Printf("%-20s %-10s %-22s %-19s %5d  %s\n",
						m.Vessel, m.EquipmentCode, m.Component, m.LastReading.Format(displayTime), m.DaysSinceLastReading, m.Severity)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&vessel, "vessel", "V", "", "Restrict to one vessel")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 30, "Minimum days since the last reading")
	cmd.Flags().StringVar(&sortBy, "sort", models.SortByDays, "Sort by days, vessel or equipment")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// optionsCmd prints the values of one dimension compatible with the given filters
func optionsCmd() *cobra.Command {
	var constraints []string
	var changed string

	cmd := &cobra.Command{
		Use:   "options [dimension]",
		Short: "List filter options for a dimension given other selections",
		Long: `List the values of a dimension (vessel, equipmentCode, component,
measurementPoint, subComponentCode) that co-occur with every selection given
via --where dimension=value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := models.ParseDimension(args[0])
			if err != nil {
				return err
			}
			selected := make(map[models.Dimension]string)
			for _, c := range constraints {
				name, value, ok := strings.Cut(c, "=")
				if !ok {
					return fmt.Errorf("invalid --where %q, want dimension=value", c)
				}
				d, err := models.ParseDimension(name)
				if err != nil {
					return err
				}
				selected[d] = value
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				var options []string
				if changed != "" {
					d, err := models.ParseDimension(changed)
					if err != nil {
						return err
					}
					options = a.store.Index().OptionsForChange(target, selected, d)
				} else {
					options = a.store.Index().OptionsFor(target, selected)
				}
				for _, o := range options {
					fmt.Println(o)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&constraints, "where", "w", nil, "Selection as dimension=value (repeatable)")
	cmd.Flags().StringVar(&changed, "changed", "", "Dimension the user changed last")
	return cmd
}

// statsCmd shows store and database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show reading statistics and data quality",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				fmt.Println("📊 Vessel CBM Monitor Statistics")
				fmt.Println("================================")
				fmt.Printf("  Readings:    %d\n", a.store.Len())
				fmt.Printf("  Vessels:     %d\n", len(a.store.Vessels()))
				fmt.Printf("  Parameters:  %d\n", len(a.store.ParameterNames()))
				fmt.Printf("  Database:    %s\n", a.cfg.Database)
				if keys, err := a.kv.Keys(ctx, db.Scope); err == nil {
					fmt.Printf("  Saved keys:  %v\n", keys)
				}
				if database, ok := a.kv.(*db.Database); ok {
					if stats, err := database.GetStats(ctx); err == nil {
						fmt.Printf("  KV entries:  %v (%v bytes)\n", stats["entries"], stats["bytes"])
					}
				}

				quality := a.store.Quality()
				if len(quality) > 0 {
					fmt.Println("\n  Data quality:")
					for _, q := range quality {
						fmt.Printf("    %-20s %6.1f%%  (%d rows, %d readings)\n", q.Vessel, q.Score, q.Rows, q.Readings)
					}
				}
				return nil
			})
		},
	}
}
