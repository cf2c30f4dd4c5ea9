package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/budget-tracker/internal/api"
	"github.com/insightdelivered/budget-tracker/internal/extractor"
	"github.com/insightdelivered/budget-tracker/internal/logger"
	"github.com/insightdelivered/budget-tracker/internal/models"
	"github.com/insightdelivered/budget-tracker/internal/parser"
	"github.com/insightdelivered/budget-tracker/internal/reconcile"
	"github.com/insightdelivered/budget-tracker/internal/store"
)

const version = "1.0.0"

func main() {
	dbFlag := flag.String("db", envOr("BUDGET_TRACKER_DB", "budget_tracker.db"), "Path to the SQLite database")
	addrFlag := flag.String("addr", envOr("BUDGET_TRACKER_ADDR", ":8080"), "API listen address")
	serveFlag := flag.Bool("serve", false, "Start the API server after importing any given files")
	versionFlag := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Budget Tracker
by Insight Delivered

Imports bank statements (xlsx or PDF) into a local database, reconciles
manual expenses against them, and serves the dashboard API.

Usage:
  budget-tracker [flags] [statement.xlsx statement.pdf ...]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Import a statement
  budget-tracker statement.xlsx

  # Import several statements into a specific database
  budget-tracker --db=books.db jan.pdf feb.pdf

  # Start the API server
  budget-tracker --serve --addr=:8080
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("budget-tracker v%s\n", version)
		os.Exit(0)
	}

	if flag.NArg() == 0 && !*serveFlag {
		flag.Usage()
		os.Exit(0)
	}

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	st, err := store.Open(*dbFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open database")
	}
	defer st.Close()

	if err := st.Setup(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not set up database")
	}

	engine := reconcile.New(st, log)

	for _, path := range flag.Args() {
		if err := importFile(ctx, engine, path); err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("import failed")
		}
	}

	if *serveFlag {
		app := fiber.New(fiber.Config{
			AppName:   "budget-tracker v" + version,
			BodyLimit: 32 << 20,
		})
		h := &api.Handler{Engine: engine, Store: st, Log: log}
		h.Register(app)

		log.Info().Str("addr", *addrFlag).Msg("starting API server")
		if err := app.Listen(*addrFlag); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}
}

// importFile parses one statement file and ingests it.
func importFile(ctx context.Context, engine *reconcile.Engine, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", path)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("file", path).Msg("processing statement")

	var (
		stmt *models.Statement
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xls":
		f, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("open %s: %w", path, openErr)
		}
		defer f.Close()
		rows, exErr := extractor.ExcelRows(f)
		if exErr != nil {
			return fmt.Errorf("spreadsheet extraction failed: %w", exErr)
		}
		stmt, err = parser.Parse(rows)
	case ".pdf":
		tables, exErr := extractor.PDFTables(path)
		if exErr != nil {
			return fmt.Errorf("PDF extraction failed: %w", exErr)
		}
		stmt, err = parser.ParseTables(tables)
	default:
		return fmt.Errorf("unsupported file type %q; expected .xlsx or .pdf", ext)
	}
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}

	if stmt.Diagnostics.SkippedRows > 0 {
		log.Warn().
			Str("file", path).
			Int("skipped_rows", stmt.Diagnostics.SkippedRows).
			Msg("some statement rows could not be parsed and were dropped")
	}

	result, err := engine.Ingest(ctx, stmt.Transactions)
	if err != nil {
		return err
	}

	log.Info().
		Str("file", path).
		Int("added", result.Added).
		Int("duplicates", result.Duplicates).
		Msg("statement imported")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
