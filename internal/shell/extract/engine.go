// Package extract runs the page-parallel extraction pipeline over a
// document's pages.
package extract

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/askiada/go-pipeline/pkg/pipeline"
	"github.com/pkg/errors"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

// Config holds engine settings.
type Config struct {
	// Concurrency is the number of pages parsed in parallel.
	Concurrency int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{Concurrency: 4}
}

// ProgressFunc receives page completion updates during a run.
type ProgressFunc func(done, total int)

// Result is the outcome of one extraction run.
type Result struct {
	Groups      []*invoice.Group
	Records     []invoice.DirectRecord
	MergedCount int
	PagesTotal  int
}

// Shipments counts all shipments across groups.
func (r *Result) Shipments() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Shipments)
	}
	return n
}

// Engine parses document pages concurrently and assembles the results
// back into document order.
type Engine struct {
	parser      *invoice.Parser
	concurrency int
	logger      *slog.Logger
}

// New creates an engine. A nil logger falls back to the default.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Engine{
		parser:      invoice.NewParser(),
		concurrency: cfg.Concurrency,
		logger:      logger.With("component", "extract"),
	}
}

// Matrix exposes the field matrix backing the engine.
func (e *Engine) Matrix() *invoice.Matrix {
	return e.parser.Matrix()
}

// pageResult carries one page's parsed output through the pipeline.
type pageResult struct {
	page      int
	shipments []*invoice.Shipment
	records   []invoice.DirectRecord
}

// Run extracts shipments from the pages. Group detection is sequential
// since it depends on page order; per-page parsing fans out across the
// pipeline. Progress fires once per page after its parse completes.
func (e *Engine) Run(ctx context.Context, pages []invoice.Page, progress ProgressFunc) (*Result, error) {
	if len(pages) == 0 {
		return nil, errors.New("no pages to extract")
	}

	groups := e.parser.DetectGroups(pages)
	pageGroup := make(map[int]*invoice.Group)
	pageYear := make(map[int]int)
	for _, g := range groups {
		year := g.Header.Year()
		for _, num := range g.Pages {
			pageGroup[num] = g
			pageYear[num] = year
		}
	}

	pipe, err := pipeline.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline")
	}

	root, err := pipeline.AddRootStep(pipe, "pages", func(ctx context.Context, rootChan chan<- invoice.Page) error {
		for _, page := range pages {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- page:
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "add root step")
	}

	parsed, err := pipeline.AddStepOneToMany(pipe, "parse", root,
		func(_ context.Context, page invoice.Page) ([]pageResult, error) {
			return []pageResult{e.parsePage(page, pageGroup[page.Number], pageYear[page.Number])}, nil
		},
		pipeline.StepConcurrency[pageResult](e.concurrency),
	)
	if err != nil {
		return nil, errors.Wrap(err, "add parse step")
	}

	var (
		mu      sync.Mutex
		results []pageResult
		done    int
	)
	total := len(pages)
	err = pipeline.AddSink(pipe, "collect", parsed, func(_ context.Context, res pageResult) error {
		mu.Lock()
		results = append(results, res)
		done++
		d := done
		mu.Unlock()
		if progress != nil {
			progress(d, total)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "add sink")
	}

	if err := pipe.Run(); err != nil {
		return nil, errors.Wrap(err, "run pipeline")
	}

	// Reassemble in document order.
	sort.Slice(results, func(i, j int) bool { return results[i].page < results[j].page })

	var records []invoice.DirectRecord
	for _, res := range results {
		g := pageGroup[res.page]
		if g == nil {
			continue
		}
		g.Shipments = append(g.Shipments, res.shipments...)
		records = append(records, res.records...)
	}

	merged := invoice.MergeDirect(groups, records)
	e.logger.Debug("extraction finished",
		"pages", total,
		"groups", len(groups),
		"direct_records", len(records),
		"merged", merged)

	return &Result{
		Groups:      groups,
		Records:     records,
		MergedCount: merged,
		PagesTotal:  total,
	}, nil
}

// parsePage runs both extraction passes over one page.
func (e *Engine) parsePage(page invoice.Page, g *invoice.Group, year int) pageResult {
	res := pageResult{page: page.Number}
	if g == nil || invoice.IsEmptyPage(page.Text) || invoice.IsSummaryPage(page.Text) {
		return res
	}
	if !invoice.IsInvoicePage(page.Text) {
		return res
	}
	for _, block := range invoice.SplitShipmentBlocks(page.Text) {
		sh := e.parser.ParseShipmentBlock(block, year)
		if sh == nil {
			continue
		}
		sh.PageNumber = page.Number
		sh.InvoiceGroup = g.Label()
		res.shipments = append(res.shipments, sh)
	}
	res.records = invoice.ExtractDirect(page.Text)
	return res
}
