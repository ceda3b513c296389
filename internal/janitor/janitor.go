// Package janitor removes stored images that no project references.
//
// Handlers delete files synchronously on every failure path; the janitor is
// the backstop for crashes between a write and its cleanup.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hijo-electricity/hijo/internal/storage"
	"github.com/hijo-electricity/hijo/internal/upload"
)

// ImageLister returns the image paths every project references.
type ImageLister interface {
	ListProjectImages(ctx context.Context) ([]string, error)
}

// Config controls a Janitor.
type Config struct {
	Schedule string
	// Grace protects objects younger than this from removal, covering
	// uploads whose row is not written yet.
	Grace time.Duration
	// DryRun only reports what would be removed.
	DryRun bool
}

// Result summarizes a sweep.
type Result struct {
	Scanned int
	Removed []string
	Failed  int
}

// Janitor runs Sweep on a cron schedule.
type Janitor struct {
	images   ImageLister
	provider storage.Provider
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	onRemove func(n int)

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// Option configures a Janitor.
type Option func(*Janitor)

// OnRemove registers fn to receive the number of objects each sweep removed.
func OnRemove(fn func(n int)) Option {
	return func(j *Janitor) { j.onRemove = fn }
}

// New creates a Janitor. A zero Grace defaults to one hour.
func New(images ImageLister, provider storage.Provider, cfg Config, logger *slog.Logger, opts ...Option) *Janitor {
	if cfg.Grace <= 0 {
		cfg.Grace = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		images:   images,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		onRemove: func(int) {},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Sweep deletes every object under the project prefix that is older than the
// grace period and not referenced by a project.
func (j *Janitor) Sweep(ctx context.Context) (*Result, error) {
	// Objects are listed before references are loaded so an upload that
	// completes in between is seen as referenced, never as an orphan.
	objects, err := j.provider.List(ctx, upload.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	paths, err := j.images.ListProjectImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list project images: %w", err)
	}
	referenced := make(map[string]bool, len(paths))
	for _, p := range paths {
		if key, ok := storage.KeyFromPath(p); ok {
			referenced[key] = true
		}
	}

	res := &Result{Scanned: len(objects)}
	cutoff := j.now().Add(-j.cfg.Grace)
	for _, obj := range objects {
		if referenced[obj.Key] || obj.LastModified.After(cutoff) {
			continue
		}
		if j.cfg.DryRun {
			res.Removed = append(res.Removed, obj.Key)
			continue
		}
		if err := j.provider.Delete(ctx, obj.Key); err != nil {
			j.logger.Error("failed to remove orphan", "key", obj.Key, "error", err)
			res.Failed++
			continue
		}
		res.Removed = append(res.Removed, obj.Key)
	}
	if !j.cfg.DryRun && len(res.Removed) > 0 {
		j.onRemove(len(res.Removed))
	}
	return res, nil
}

// Start schedules Sweep. An empty schedule disables the janitor.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running || j.cfg.Schedule == "" {
		return nil
	}
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(j.ctx, 10*time.Minute)
		defer cancel()
		res, err := j.Sweep(ctx)
		if err != nil {
			j.logger.Error("orphan sweep failed", "error", err)
			return
		}
		j.logger.Info("orphan sweep finished",
			"scanned", res.Scanned,
			"removed", len(res.Removed),
			"failed", res.Failed,
		)
	})
	if err != nil {
		j.cancel()
		return fmt.Errorf("invalid janitor schedule %q: %w", j.cfg.Schedule, err)
	}
	j.cron.Start()
	j.running = true
	j.logger.Info("janitor started", "schedule", j.cfg.Schedule, "grace", j.cfg.Grace)
	return nil
}

// Stop cancels a running sweep and waits for it to return.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	j.cancel()
	<-j.cron.Stop().Done()
	j.running = false
	j.logger.Info("janitor stopped")
}
