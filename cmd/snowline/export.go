package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrissnell/snowline/internal/export"
	"github.com/chrissnell/snowline/internal/log"
	"github.com/chrissnell/snowline/internal/storage/sqlite"
	"github.com/chrissnell/snowline/pkg/config"
)

var (
	exportFormat string
	exportOutput string
	exportAOI    string
	exportSource string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write stored snowline results to a CSV or JSON file",
		RunE:  runExport,
	}
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Export format: csv or json")
	exportCmd.Flags().StringVar(&exportOutput, "output", "snowlines", "Output file base name (extension added automatically)")
	exportCmd.Flags().StringVar(&exportAOI, "aoi", "", "Only export this AOI")
	exportCmd.Flags().StringVar(&exportSource, "source", "sqlite", "Storage engine to read: sqlite or timescaledb")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	provider, err := openProvider(cfgFile, cfgBackend)
	if err != nil {
		return err
	}
	defer provider.Close()
	sc, err := provider.GetStorageConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	src, closeSrc, err := openExportSource(ctx, exportSource, sc.SQLite, sc.TimescaleDB)
	if err != nil {
		return err
	}
	defer closeSrc()

	filename := exportOutput + "." + string(format)
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	n, err := export.Write(ctx, src, f, format, exportAOI)
	if err != nil {
		return fmt.Errorf("%s export failed: %w", format, err)
	}
	log.Infow("export completed", "records", n, "file", filename)
	return f.Close()
}

func openExportSource(ctx context.Context, name string, lite *config.SQLiteData, ts *config.TimescaleDBData) (export.Source, func(), error) {
	switch name {
	case "sqlite":
		if lite == nil || lite.Path == "" {
			return nil, nil, fmt.Errorf("no SQLite storage configured")
		}
		s, err := sqlite.New(ctx, lite.Path, log.Component("sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return export.ReaderSource{Reader: s}, func() { s.Close() }, nil
	case "timescaledb":
		if ts == nil || ts.ConnectionString == "" {
			return nil, nil, fmt.Errorf("no TimescaleDB storage configured")
		}
		s, err := export.NewPostgresSource(ctx, ts.ConnectionString)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown export source %q", name)
}
