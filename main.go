package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"quarterhour-export/internal/config"
	"quarterhour-export/internal/export/application"
	export "quarterhour-export/internal/export/domain"
	"quarterhour-export/internal/export/infrastructure/memory"
	exportmongo "quarterhour-export/internal/export/infrastructure/mongo"
	exportpostgres "quarterhour-export/internal/export/infrastructure/postgres"
	"quarterhour-export/internal/export/interfaces"
	"quarterhour-export/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const pushJob = "quarterhour_export"

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	if err := config.LoadDotenv(getenvDefault("QUARTORARIE_ENV_FILE", ".env")); err != nil {
		logger.Printf("dotenv error: %v", err)
	}
	config.LogEnvironment(logger)
	os.Exit(run(context.Background(), os.Args[1:], logger, os.Stderr))
}

func run(ctx context.Context, args []string, logger *log.Logger, stderr io.Writer) int {
	started := time.Now()
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if errors.Is(err, config.ErrUsage) {
			fmt.Fprintln(stderr, config.Usage)
		}
		return config.ExitCode(err)
	}
	logger.Printf("args received: selection=%s start=%s end=%s source=%s",
		cfg.Selection.Name(), cfg.Selection.StartKey(), cfg.Selection.EndKey(), cfg.Source)

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		logger.Printf("source error: %v", err)
		return config.ExitFailure
	}
	defer src.close()

	if err := src.beforeRun(ctx); err != nil {
		logger.Printf("source prepare error: %v", err)
		return config.ExitFailure
	}

	summary, err := exportSelection(ctx, cfg, src.source, logger)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNoColumns):
			fmt.Fprintln(stderr, "db returned no PODs to perform this operation")
		case errors.Is(err, export.ErrNoMeasurements):
			fmt.Fprintln(stderr, "db returned no measurements to perform this operation")
		default:
			logger.Printf("export error: %v", err)
		}
		return config.ExitCode(err)
	}

	if err := src.afterRun(ctx); err != nil {
		logger.Printf("source cleanup error: %v", err)
	}
	logger.Printf("file %s written in %s (%d rows)", cfg.OutputPath(".csv"), time.Since(started), summary.Rows)
	return config.ExitOK
}

func exportSelection(ctx context.Context, cfg config.Config, source application.MeasurementSource, logger *log.Logger) (summary application.RunSummary, err error) {
	var csvOpts []interfaces.CSVOption
	if cfg.Verbose {
		csvOpts = append(csvOpts, interfaces.WithTrace(logger))
	}
	csvFile, err := interfaces.CreateCSVFile(cfg.OutputPath(".csv"), csvOpts...)
	if err != nil {
		return summary, err
	}
	defer func() {
		if closeErr := csvFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var sinks []application.GridSink
	if cfg.XLSX {
		xlsx, xlsxErr := interfaces.NewXLSXGridWriter(cfg.OutputPath(".xlsx"))
		if xlsxErr != nil {
			return summary, xlsxErr
		}
		defer func() {
			if closeErr := xlsx.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		sinks = append(sinks, xlsx)
	}

	runMetrics := metrics.New()
	exporter, err := application.NewExporter(source, csvFile, logger,
		application.WithSinks(sinks...),
		application.WithRecorder(runMetrics),
		application.WithPolicy(cfg.DuplicatePolicy()),
	)
	if err != nil {
		return summary, err
	}

	summary, err = exporter.Run(ctx, cfg.Selection)
	if pushErr := runMetrics.Push(cfg.PushgatewayURL, pushJob, cfg.Selection.Name()); pushErr != nil {
		logger.Printf("metrics push error: %v", pushErr)
	}
	if err != nil {
		return summary, err
	}

	if cfg.ReportPDF {
		if err := interfaces.WriteRunReportPDF(cfg.OutputPath("_report.pdf"), summary); err != nil {
			logger.Printf("run report error: %v", err)
		}
	}
	return summary, nil
}

// openedSource bundles a source with its lifecycle hooks.
type openedSource struct {
	source    application.MeasurementSource
	close     func()
	beforeRun func(ctx context.Context) error
	afterRun  func(ctx context.Context) error
}

func noopHook(context.Context) error { return nil }

func openSource(ctx context.Context, cfg config.Config, logger *log.Logger) (*openedSource, error) {
	switch cfg.Source {
	case config.SourceMongo:
		return openMongo(ctx, cfg, logger)
	case config.SourcePostgres:
		db, err := sql.Open("pgx", cfg.Postgres.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		source, err := exportpostgres.NewSource(db, exportpostgres.WithTable(cfg.Postgres.Table))
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &openedSource{
			source:    source,
			close:     func() { _ = db.Close() },
			beforeRun: noopHook,
			afterRun:  noopHook,
		}, nil
	case config.SourceMemory:
		source := memory.NewSource()
		if err := source.LoadFixture(cfg.Selection.Name(), cfg.FixturePath); err != nil {
			return nil, fmt.Errorf("fixture: %w", err)
		}
		return &openedSource{source: source, close: func() {}, beforeRun: noopHook, afterRun: noopHook}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func openMongo(ctx context.Context, cfg config.Config, logger *log.Logger) (*openedSource, error) {
	client, err := exportmongo.Connect(ctx, cfg.MongoURI(), cfg.Mongo.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.Mongo.Database)
	source, err := exportmongo.NewSource(db, exportmongo.WithQueryTimeout(cfg.QueryTimeout))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	indexes, err := exportmongo.NewIndexManager(db, logger)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	collection := cfg.Selection.Name()
	created := ""
	return &openedSource{
		source: source,
		close:  func() { _ = client.Disconnect(context.Background()) },
		beforeRun: func(ctx context.Context) error {
			if !cfg.Mongo.RecreateIndex {
				return nil
			}
			name, err := indexes.Recreate(ctx, collection)
			if err != nil {
				return err
			}
			created = name
			return nil
		},
		afterRun: func(ctx context.Context) error {
			if created == "" {
				return nil
			}
			return indexes.Drop(ctx, collection, created)
		},
	}, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
