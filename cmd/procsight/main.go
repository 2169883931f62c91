package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"procsight/adapters/api"
	"procsight/app"
	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/config"
	"procsight/internal/container"
	"procsight/internal/dataset"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "procsight",
		Short: "Offline analytics for multi-source process data",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newExportCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// windowFlags holds the shared time-window and resampling flag set.
type windowFlags struct {
	series []string
	start  string
	end    string
	period string
	agg    string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.series, "series", nil, "series keys, in order (default: all columns)")
	cmd.Flags().StringVar(&f.start, "start", "", "window start (RFC3339, inclusive)")
	cmd.Flags().StringVar(&f.end, "end", "", "window end (RFC3339, inclusive)")
	cmd.Flags().StringVar(&f.period, "period", "", "resample period, e.g. 30s, 5m, 1h, D")
	cmd.Flags().StringVar(&f.agg, "agg", "", "resample aggregator: mean, first, max, min, median")
}

func (f *windowFlags) window() (series.Window, error) {
	var w series.Window
	if f.start != "" {
		t, err := time.Parse(time.RFC3339, f.start)
		if err != nil {
			return w, fmt.Errorf("invalid --start (use RFC3339): %w", err)
		}
		w.Start = t
	}
	if f.end != "" {
		t, err := time.Parse(time.RFC3339, f.end)
		if err != nil {
			return w, fmt.Errorf("invalid --end (use RFC3339): %w", err)
		}
		w.End = t
	}
	return w, nil
}

// loadInto ingests the source files and resolves the selection, defaulting
// to every loaded column in merge order.
func loadInto(c *container.Container, paths []string, selected []string) ([]core.SeriesKey, error) {
	result := c.Store.LoadFiles(paths)
	for path, err := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", path, err)
	}
	if len(result.Loaded) == 0 {
		return nil, fmt.Errorf("no files could be loaded")
	}

	if len(selected) > 0 {
		return core.SeriesKeys(selected), nil
	}
	snap := c.Store.Snapshot()
	return append([]core.SeriesKey(nil), snap.Columns...), nil
}

func newAnalyzeCmd() *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Run the full analysis suite over one or more data files",
		Long: `Merge the given CSV/XLSX files onto a shared time axis and run
descriptive statistics, correlation, causality ranking, step identification
and fuzzy-rule mining over the selected series.

Example: procsight analyze boiler.csv turbine.xlsx --series boiler_Temp,boiler_Flow --period 1m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer()
			if err != nil {
				return err
			}
			keys, err := loadInto(c, args, flags.series)
			if err != nil {
				return err
			}
			window, err := flags.window()
			if err != nil {
				return err
			}
			if flags.period == "" {
				flags.period = c.Config.Analysis.ResamplePeriod
			}
			if flags.agg == "" {
				flags.agg = c.Config.Analysis.Aggregator
			}

			rep, err := c.Analysis.Analyze(cmd.Context(), c.Store.Snapshot(), app.AnalysisRequest{
				Selection:  keys,
				Window:     window,
				Period:     flags.period,
				Aggregator: flags.agg,
			})
			if err != nil {
				return err
			}
			fmt.Print(rep.Render())
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var flags windowFlags
	var out string

	cmd := &cobra.Command{
		Use:   "export [files...]",
		Short: "Export the filtered/resampled selection as CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer()
			if err != nil {
				return err
			}
			keys, err := loadInto(c, args, flags.series)
			if err != nil {
				return err
			}
			window, err := flags.window()
			if err != nil {
				return err
			}

			ds, err := c.Store.Snapshot().Select(keys)
			if err != nil {
				return err
			}
			ds = ds.Filter(window)
			if flags.period != "" {
				agg := flags.agg
				if agg == "" {
					agg = dataset.AggMean
				}
				ds, err = dataset.Resample(ds, flags.period, agg)
				if err != nil {
					return err
				}
			}

			w := os.Stdout
			if out != "" {
				f, ferr := os.Create(out)
				if ferr != nil {
					return ferr
				}
				defer f.Close()
				w = f
			}
			return dataset.WriteCSV(w, ds)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer()
			if err != nil {
				return err
			}
			return api.NewServer(c.Store, c.Analysis, c.Config).Start()
		},
	}
}

func newContainer() (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(cfg)
}
