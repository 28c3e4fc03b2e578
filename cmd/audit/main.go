package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rmachado/expense-audit/internal/config"
	"github.com/rmachado/expense-audit/internal/domain"
	"github.com/rmachado/expense-audit/internal/engine"
	infraBQ "github.com/rmachado/expense-audit/internal/infra/bigquery"
	"github.com/rmachado/expense-audit/internal/loader"
	"github.com/rmachado/expense-audit/internal/logger"
	"github.com/rmachado/expense-audit/internal/metrics"
	"github.com/rmachado/expense-audit/internal/oracle"
	"github.com/rmachado/expense-audit/internal/report"
)

func main() {
	log := logger.New("info")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runAudit(log)
	case "check-config":
		runCheckConfig(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Expense Audit CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  audit <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run           Audit a transaction/message corpus and report findings")
	fmt.Println("  check-config  Validate a configuration file and exit")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'audit <command> -h' for more information on a command.")
}

func runAudit(log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (default: built-in policy)")
	transactionsPath := fs.String("transactions", "", "Transactions CSV: local path or gs:// URI")
	messagesPath := fs.String("messages", "", "Messages file: local path or gs:// URI")
	startDate := fs.String("start", "", "Corpus start date (YYYY-MM-DD) when loading from BigQuery")
	endDate := fs.String("end", "", "Corpus end date (YYYY-MM-DD) when loading from BigQuery")
	skipOracle := fs.Bool("skip-oracle", false, "Run rule checks only; cross-source bundles become inconclusive")
	csvOut := fs.String("csv", "", "Also export findings as CSV to this path")
	persist := fs.Bool("persist", false, "Write findings to the configured BigQuery dataset")
	metricsAddr := fs.String("metrics-addr", "", "Expose prometheus metrics on this address (e.g. :9090) for the run's duration")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall run timeout")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration rejected")
	}
	log = logger.New(cfg.Logging.Level)

	if err := checkPersistFlag(*persist, cfg.Storage); err != nil {
		log.Fatal().Err(err).Msg("Configuration rejected")
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info().Str("address", *metricsAddr).Msg("Metrics server listening")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var store *infraBQ.Store
	if cfg.Storage.Enabled() && (*persist || *transactionsPath == "") {
		store, err = infraBQ.NewStore(ctx, cfg.Storage, logger.Component(log, "bigquery"))
		if err != nil {
			log.Fatal().Err(err).Msg("BigQuery unavailable")
		}
		defer store.Close()
	}

	txs, skippedTxs, err := loadTransactions(ctx, store, *transactionsPath, *startDate, *endDate, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}
	msgs, skippedMsgs, err := loadMessages(ctx, *messagesPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load messages")
	}
	if skippedTxs > 0 || skippedMsgs > 0 {
		log.Warn().Int("transactions", skippedTxs).Int("messages", skippedMsgs).Msg("Skipped malformed records during load")
	}

	corpus := domain.NewCorpus(txs, msgs)

	var judger oracle.Judger
	if !*skipOracle {
		gemini, err := oracle.NewGemini(ctx, cfg.Oracle, logger.Component(log, "oracle"))
		if err != nil {
			log.Fatal().Err(err).Msg("Oracle client failed to initialize")
		}
		judger = gemini
	}

	summary, err := engine.New(cfg, judger, log).Run(ctx, corpus)
	if err != nil {
		log.Fatal().Err(err).Msg("Audit run failed")
	}

	if err := report.WriteText(os.Stdout, summary); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	if *csvOut != "" {
		if err := exportCSV(*csvOut, summary); err != nil {
			log.Fatal().Err(err).Msg("Failed to export CSV")
		}
		log.Info().Str("path", *csvOut).Msg("CSV export written")
	}
	if *persist && store != nil {
		if err := store.InsertFindings(ctx, summary.RunID, summary.Findings); err != nil {
			log.Fatal().Err(err).Msg("Failed to persist findings")
		}
	}
}

// checkPersistFlag rejects -persist when no BigQuery backend is
// configured, rather than silently dropping the findings.
func checkPersistFlag(persist bool, storage config.StorageConfig) error {
	if persist && !storage.Enabled() {
		return fmt.Errorf("-persist requires storage.project in the configuration")
	}
	return nil
}

func runCheckConfig(log zerolog.Logger) {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config")
	fs.Parse(os.Args[2:])

	if _, err := config.Load(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Configuration rejected")
	}
	fmt.Println("Configuration OK.")
}

func loadTransactions(ctx context.Context, store *infraBQ.Store, path, start, end string, log zerolog.Logger) ([]domain.Transaction, int, error) {
	if path == "" {
		if store == nil {
			return nil, 0, fmt.Errorf("no transaction source: pass -transactions or configure storage.project")
		}
		s, err := civil.ParseDate(start)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid -start date: %w", err)
		}
		e, err := civil.ParseDate(end)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid -end date: %w", err)
		}
		return store.QueryTransactions(ctx, s, e)
	}

	data, err := readSource(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	return loader.LoadTransactions(bytes.NewReader(data), logger.Component(log, "loader"))
}

func loadMessages(ctx context.Context, path string, log zerolog.Logger) ([]domain.Message, int, error) {
	if path == "" {
		return nil, 0, nil
	}
	data, err := readSource(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	return loader.LoadMessages(bytes.NewReader(data), logger.Component(log, "loader"))
}

// readSource fetches file contents from disk or GCS depending on the
// path scheme.
func readSource(ctx context.Context, path string) ([]byte, error) {
	if !isGCSURI(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return data, nil
	}

	fetcher, err := loader.NewFetcher(ctx)
	if err != nil {
		return nil, err
	}
	defer fetcher.Close()
	return fetcher.Fetch(ctx, path)
}

func isGCSURI(path string) bool {
	return len(path) > 5 && path[:5] == "gs://"
}

func exportCSV(path string, summary *engine.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return report.WriteCSV(f, summary.Findings)
}
