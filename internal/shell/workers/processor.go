// Package workers contains the background workers that drive job
// processing and retention.
package workers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/artpar/invoicemill/internal/core/job"
	"github.com/artpar/invoicemill/internal/core/report"
	"github.com/artpar/invoicemill/internal/shell/extract"
	"github.com/artpar/invoicemill/internal/shell/pdf"
	"github.com/artpar/invoicemill/internal/shell/store"
)

// ProcessorConfig configures the job processing worker.
type ProcessorConfig struct {
	Interval      time.Duration
	MaxConcurrent int
	UploadDir     string
	OutputDir     string
}

// DefaultProcessorConfig returns default configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Interval:      2 * time.Second,
		MaxConcurrent: 2,
	}
}

// Processor polls for pending jobs and runs extraction on them.
type Processor struct {
	store  store.Store
	reader *pdf.Reader
	engine *extract.Engine
	config ProcessorConfig
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a new job processing worker.
func NewProcessor(s store.Store, engine *extract.Engine, config ProcessorConfig, logger *slog.Logger) *Processor {
	if config.Interval == 0 {
		config.Interval = 2 * time.Second
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = extract.New(extract.DefaultConfig(), logger)
	}

	return &Processor{
		store:  s,
		reader: pdf.NewReader(),
		engine: engine,
		config: config,
		logger: logger.With("component", "processor"),
	}
}

// Start begins the processor background goroutine.
func (p *Processor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg.Add(1)
	go p.run()
	p.logger.Info("processor started", "interval", p.config.Interval, "max_concurrent", p.config.MaxConcurrent)
}

// Stop gracefully stops the processor, waiting for in-flight jobs.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("processor stopped")
}

func (p *Processor) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	sem := make(chan struct{}, p.config.MaxConcurrent)
	var jobs sync.WaitGroup

	for {
		select {
		case <-p.ctx.Done():
			jobs.Wait()
			return
		case <-ticker.C:
			p.runCycle(sem, &jobs)
		}
	}
}

// runCycle claims as many pending jobs as free worker slots allow.
func (p *Processor) runCycle(sem chan struct{}, jobs *sync.WaitGroup) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			return
		}

		claimed, err := p.store.ClaimNextPending(p.ctx)
		if err != nil {
			<-sem
			if !errors.Is(err, store.ErrNotFound) {
				p.logger.Error("failed to claim job", "error", err)
			}
			return
		}

		jobs.Add(1)
		go func(j *job.Job) {
			defer jobs.Done()
			defer func() { <-sem }()
			p.process(p.ctx, j)
		}(claimed)
	}
}

// process runs one job end to end. The uploaded document is removed
// once processing finishes, whatever the outcome.
func (p *Processor) process(parent context.Context, j *job.Job) {
	ctx, cancel := context.WithTimeout(parent, 30*time.Minute)
	defer cancel()

	logger := p.logger.With("job_id", j.ID)
	logger.Info("processing job", "filename", j.Filename, "format", j.Format)

	uploadPath := filepath.Join(p.config.UploadDir, j.StoredName)
	defer os.Remove(uploadPath)

	pages, err := p.reader.ReadFile(ctx, uploadPath)
	if err != nil {
		p.fail(ctx, logger, j.ID, "failed to read document", err)
		return
	}

	result, err := p.engine.Run(ctx, pages, func(done, total int) {
		if err := p.store.UpdateProgress(ctx, j.ID, done, total); err != nil {
			logger.Warn("failed to update progress", "error", err)
		}
	})
	if err != nil {
		p.fail(ctx, logger, j.ID, "extraction failed", err)
		return
	}

	outputPath, err := p.writeReport(j, result)
	if err != nil {
		p.fail(ctx, logger, j.ID, "failed to write report", err)
		return
	}

	stats := report.ComputeStatistics(result.Groups, result.Records, result.MergedCount)
	if err := p.writeStats(outputPath, stats); err != nil {
		logger.Warn("failed to write statistics", "error", err)
	}

	j.PagesTotal = result.PagesTotal
	j.PagesDone = result.PagesTotal
	j.ShipmentCount = stats.TotalShipments
	j.InvoiceCount = stats.InvoiceCount
	j.OutputPath = outputPath

	if err := p.store.CompleteJob(ctx, j); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}

	logger.Info("job completed",
		"pages", j.PagesTotal,
		"shipments", j.ShipmentCount,
		"invoices", j.InvoiceCount,
		"output", outputPath)
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, id, message string, cause error) {
	logger.Error(message, "error", cause)
	if err := p.store.FailJob(ctx, id, message+": "+cause.Error()); err != nil {
		logger.Error("failed to mark job failed", "error", err)
	}
}

func (p *Processor) writeReport(j *job.Job, result *extract.Result) (string, error) {
	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		return "", err
	}
	outputPath := filepath.Join(p.config.OutputDir, j.ID+j.Format.Extension())

	f, err := os.Create(outputPath)
	if err != nil {
		return "", err
	}

	var werr error
	if j.Format == job.FormatCSV {
		werr = report.WriteCSV(f, result.Groups)
	} else {
		werr = report.WriteXLSX(f, result.Groups, p.engine.Matrix().SurchargeNames())
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(outputPath)
		return "", werr
	}
	return outputPath, nil
}

// writeStats drops the run statistics next to the report.
func (p *Processor) writeStats(outputPath string, stats *report.Statistics) error {
	statsPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_stats.json"
	f, err := os.Create(statsPath)
	if err != nil {
		return err
	}

	werr := report.WriteStatisticsJSON(f, stats)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// ProcessOnce claims and processes a single pending job, for tests and
// the CLI. Returns store.ErrNotFound (wrapped) when the queue is empty.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	claimed, err := p.store.ClaimNextPending(ctx)
	if err != nil {
		return err
	}
	p.process(ctx, claimed)
	return nil
}
