package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chrissnell/snowline/internal/app"
	"github.com/chrissnell/snowline/internal/log"
	"github.com/chrissnell/snowline/pkg/config"
)

const version = app.Version + "-" + runtime.GOOS + "/" + runtime.GOARCH

var (
	cfgFile    string
	cfgBackend string
	debug      bool
	serveAfter bool

	startYear int
	endYear   int
	aggDays   int
	until     string

	convertForce bool

	rootCmd = &cobra.Command{
		Use:           "snowline",
		Short:         "Estimate snowline elevations from daily snow cover and a DEM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Init(debug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Process every configured AOI and interval and store the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), app.Options{Batch: true, Serve: serveAfter})
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results over the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), app.Options{Serve: true})
		},
	}

	intervalsCmd = &cobra.Command{
		Use:   "intervals",
		Short: "Print the aggregation intervals for a year range",
		RunE:  printIntervals,
	}

	convertCmd = &cobra.Command{
		Use:   "config-convert <config.yaml> <config.db>",
		Short: "Convert a YAML configuration into a SQLite configuration database",
		Args:  cobra.ExactArgs(2),
		RunE:  convertConfig,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "snowline %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	rootCmd.PersistentFlags().StringVar(&cfgBackend, "config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Turn on debugging output")

	runCmd.Flags().BoolVar(&serveAfter, "serve", false, "Keep serving the REST API after the run")

	intervalsCmd.Flags().IntVar(&startYear, "start-year", 0, "First year")
	intervalsCmd.Flags().IntVar(&endYear, "end-year", 0, "Last year (defaults to start-year)")
	intervalsCmd.Flags().IntVar(&aggDays, "days", 10, "Target interval length in days")
	intervalsCmd.Flags().StringVar(&until, "until", "", "Drop intervals starting after this date (YYYY-MM-DD)")
	intervalsCmd.MarkFlagRequired("start-year")

	convertCmd.Flags().BoolVar(&convertForce, "force", false, "Replace the configuration stored in an existing database")

	rootCmd.AddCommand(runCmd, serveCmd, intervalsCmd, convertCmd, versionCmd)
}

func runApp(ctx context.Context, opts app.Options) error {
	provider, err := openProvider(cfgFile, cfgBackend)
	if err != nil {
		return err
	}
	defer provider.Close()

	err = app.New(provider, log.Component("snowline")).Run(ctx, opts)
	if errors.Is(err, app.ErrUnitsFailed) {
		log.Warnw("run finished with failed units")
	}
	return err
}

func openProvider(file, backend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(file)

	switch backend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
	}
}
