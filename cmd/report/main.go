// cmd/report/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/report"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

func main() {
	journalPath := flag.String("journal", "data/journal.csv", "journal file written by the launchpad daemon")
	format := flag.String("format", "json", "output format: csv or json")
	outDir := flag.String("out", "reports", "output directory")
	token := flag.String("token", "", "only entries for this token index")
	side := flag.String("side", "", "only trades on this side (buy or sell)")
	since := flag.Duration("since", 0, "only entries newer than this, e.g. 24h")
	flag.Parse()

	log, err := logger.New(logger.Options{Format: logger.FormatPretty})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	entries, err := report.ReadJournal(*journalPath)
	if err != nil {
		log.Fatal("Failed to read journal", zap.String("file", *journalPath), zap.Error(err))
	}

	options := report.Options{
		Format:    report.Format(*format),
		Token:     *token,
		Side:      types.Side(*side),
		OutputDir: *outDir,
	}
	if *since > 0 {
		options.StartTime = time.Now().Add(-*since)
	}

	path, err := report.NewExporter(log).Export(entries, options)
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}
	fmt.Println(path)
}
