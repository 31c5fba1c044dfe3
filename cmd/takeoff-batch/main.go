package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/export"
	"github.com/estimatorhq/takeoff-engine/internal/measure"
	repo "github.com/estimatorhq/takeoff-engine/internal/repository"
	"github.com/estimatorhq/takeoff-engine/internal/tasks"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		inmem      = flag.Bool("inmem", false, "use in-memory SQLite database")
		sqlitePath = flag.String("sqlite", "", "path to a SQLite database file (instead of DB_URL)")
		projectStr = flag.String("project", "", "project UUID to process (required)")
		out        = flag.String("out", "takeoff.xlsx", "output XLSX file path")
		recalc     = flag.Bool("recalc", true, "recalculate all measurements before exporting")
	)
	flag.Parse()

	if *projectStr == "" {
		printError("Error: --project is required\n")
		os.Exit(1)
	}
	projectID, err := uuid.Parse(*projectStr)
	if err != nil {
		printError("Error: --project must be a UUID: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	// Wire repositories against the selected store
	var (
		pages        repo.PageRepository
		conditions   repo.ConditionRepository
		measurements repo.MeasurementRepository
	)
	switch {
	case *inmem || *sqlitePath != "":
		path := *sqlitePath
		if *inmem {
			path = ":memory:"
		}
		db, err := repo.OpenSQLite(path, logger)
		if err != nil {
			logger.Error("failed to open sqlite database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := repo.EnsureSchema(ctx, db); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		pages = repo.NewSQLitePageRepository(db, logger)
		conditions = repo.NewSQLiteConditionRepository(db, logger)
		measurements = repo.NewSQLiteMeasurementRepository(db, logger)
	default:
		if cfg.Database.DSN == "" {
			printError("Error: DB_URL is required unless --inmem or --sqlite is set\n")
			os.Exit(1)
		}
		pool, err := repo.Open(ctx, repo.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pages = repo.NewPageRepository(pool, logger)
		conditions = repo.NewConditionRepository(pool, logger)
		measurements = repo.NewMeasurementRepository(pool, logger)
	}

	// Recalculate quantities against current page calibrations
	if *recalc {
		engine := measure.NewEngine(pages, conditions, measurements, logger)
		recalcSvc := tasks.NewRecalcService(engine, measurements, cfg.Batch.RecalcWorkers, logger)

		conds, err := conditions.ListByProject(ctx, projectID)
		if err != nil {
			logger.Error("failed to list conditions", "project_id", projectID, "error", err)
			os.Exit(1)
		}
		failures := 0
		for _, c := range conds {
			summary, err := recalcSvc.RecalculateCondition(ctx, c.ID)
			if err != nil {
				logger.Error("failed to recalculate condition", "condition_id", c.ID, "error", err)
				failures++
				continue
			}
			failures += len(summary.Failures)
		}
		logger.Info("recalculation pass complete", "conditions", len(conds), "failures", failures)
	}

	// Export to XLSX
	logger.Info("exporting takeoff", "output", *out)
	exportService := export.NewService(conditions, measurements, logger)

	xlsxBytes, err := exportService.ExportTakeoffXLSX(ctx, projectID)
	if err != nil {
		logger.Error("failed to export takeoff", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch complete", "project_id", projectID, "output", *out)
}
