// Command extract runs invoice extraction on a single PDF without the
// server, writing the report and a statistics summary next to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/invoicemill/internal/core/report"
	"github.com/artpar/invoicemill/internal/shell/extract"
	"github.com/artpar/invoicemill/internal/shell/pdf"
)

func main() {
	os.Exit(run())
}

func run() int {
	workers := flag.Int("workers", 4, "Number of concurrent page workers")
	format := flag.String("format", "", "Output format: csv or xlsx (default: from output extension)")
	quiet := flag.Bool("quiet", false, "Suppress progress output")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: extract [flags] <input.pdf> [output.csv|output.xlsx]")
		flag.PrintDefaults()
		return 1
	}

	inputPath := flag.Arg(0)
	outputPath := flag.Arg(1)
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".xlsx"
	}

	outFormat := *format
	if outFormat == "" {
		outFormat = strings.TrimPrefix(filepath.Ext(outputPath), ".")
	}
	if outFormat != "csv" && outFormat != "xlsx" {
		fmt.Fprintf(os.Stderr, "unsupported output format %q, want csv or xlsx\n", outFormat)
		return 1
	}

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()

	pages, err := pdf.NewReader().ReadFile(ctx, inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", inputPath, err)
		return 1
	}

	engine := extract.New(extract.Config{Concurrency: *workers}, logger)

	var progress extract.ProgressFunc
	if !*quiet {
		progress = func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rpages %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	result, err := engine.Run(ctx, pages, progress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extraction failed: %v\n", err)
		return 1
	}

	if err := writeReport(outputPath, outFormat, engine, result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", outputPath, err)
		return 1
	}

	stats := report.ComputeStatistics(result.Groups, result.Records, result.MergedCount)
	statsPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_stats.json"
	if err := writeStats(statsPath, stats); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", statsPath, err)
		return 1
	}

	fmt.Printf("extracted %d shipments from %d invoices across %d pages\n",
		stats.TotalShipments, stats.InvoiceCount, result.PagesTotal)
	fmt.Printf("report: %s\n", outputPath)
	fmt.Printf("statistics: %s\n", statsPath)
	return 0
}

func writeReport(path, format string, engine *extract.Engine, result *extract.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var werr error
	if format == "csv" {
		werr = report.WriteCSV(f, result.Groups)
	} else {
		werr = report.WriteXLSX(f, result.Groups, engine.Matrix().SurchargeNames())
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func writeStats(path string, stats *report.Statistics) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	werr := report.WriteStatisticsJSON(f, stats)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
