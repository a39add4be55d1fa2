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
	"github.com/artpar/invoicemill/internal/shell/store"
)

// JanitorConfig configures the retention worker.
type JanitorConfig struct {
	Interval  time.Duration
	Retention time.Duration
	UploadDir string
}

// DefaultJanitorConfig returns default configuration.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:  time.Hour,
		Retention: 24 * time.Hour,
	}
}

// Janitor removes finished jobs and their artifacts after the
// retention window expires.
type Janitor struct {
	store  store.Store
	config JanitorConfig
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a new retention worker.
func NewJanitor(s store.Store, config JanitorConfig, logger *slog.Logger) *Janitor {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.Retention == 0 {
		config.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		store:  s,
		config: config,
		logger: logger.With("component", "janitor"),
	}
}

// Start begins the janitor background goroutine.
func (j *Janitor) Start() {
	j.ctx, j.cancel = context.WithCancel(context.Background())
	j.wg.Add(1)
	go j.run()
	j.logger.Info("janitor started", "interval", j.config.Interval, "retention", j.config.Retention)
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

func (j *Janitor) run() {
	defer j.wg.Done()

	time.Sleep(10 * time.Second)
	j.runCycle()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.runCycle()
		}
	}
}

func (j *Janitor) runCycle() {
	ctx, cancel := context.WithTimeout(j.ctx, 2*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-j.config.Retention)
	if err := j.Sweep(ctx, cutoff); err != nil {
		j.logger.Error("retention sweep failed", "error", err)
	}
}

// Sweep removes every finished job older than cutoff along with its
// report, statistics sidecar and any leftover upload.
func (j *Janitor) Sweep(ctx context.Context, cutoff time.Time) error {
	for {
		jobs, err := j.store.ListFinishedBefore(ctx, cutoff, store.ListOptions{Limit: 100})
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		for _, expired := range jobs {
			if err := j.remove(ctx, expired); err != nil {
				return err
			}
		}

		if len(jobs) < 100 {
			return nil
		}
	}
}

func (j *Janitor) remove(ctx context.Context, expired job.Job) error {
	if expired.OutputPath != "" {
		j.removeArtifact(expired.OutputPath)
		statsPath := strings.TrimSuffix(expired.OutputPath, filepath.Ext(expired.OutputPath)) + "_stats.json"
		j.removeArtifact(statsPath)
	}
	if j.config.UploadDir != "" {
		j.removeArtifact(filepath.Join(j.config.UploadDir, expired.StoredName))
	}

	if err := j.store.DeleteJob(ctx, expired.ID); err != nil {
		var storeErr *store.StoreError
		if errors.As(err, &storeErr) && errors.Is(storeErr.Err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	j.logger.Info("expired job removed", "job_id", expired.ID, "status", expired.Status)
	return nil
}

func (j *Janitor) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		j.logger.Warn("failed to remove artifact", "path", path, "error", err)
	}
}
