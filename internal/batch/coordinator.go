package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"zupgo/internal/models"
	"zupgo/internal/report"
	"zupgo/internal/utils"
)

type State string

const (
	StateReceived           State = "received"
	StateDirectoryEnsured   State = "directory_ensured"
	StateDispatching        State = "dispatching"
	StateAwaitingCompletion State = "awaiting_completion"
	StateReporting          State = "reporting"
	StateDone               State = "done"
	StateFatalAborted       State = "fatal_aborted"
)

// Fetcher runs one job to a terminal outcome.
type Fetcher interface {
	Fetch(ctx context.Context, job models.DownloadJob) models.Outcome
}

// ReportFunc persists or clears the failure artifact for a collection.
type ReportFunc func(dir, title, pageURL string, failed []models.FailedItem) error

// CompletionHook runs after a batch has been reported.
type CompletionHook func(ctx context.Context, res *models.BatchResult)

// Progress is a snapshot of running counts, sent after every outcome.
type Progress struct {
	BatchID    string
	Collection string
	Done       int
	Total      int
	Succeeded  int
	Skipped    int
	Failed     int
}

type Observer interface {
	BatchProgress(p Progress)
}

type ObserverFunc func(p Progress)

func (f ObserverFunc) BatchProgress(p Progress) { f(p) }

// DirectoryError is the only batch-level failure: the collection
// directory could not be derived or created, so no job was dispatched.
type DirectoryError struct {
	Collection string
	Path       string
	Err        error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("collection %q: directory %q: %v", e.Collection, e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

type Coordinator struct {
	fetcher   Fetcher
	root      string
	report    ReportFunc
	observers []Observer
	hooks     []CompletionHook
}

type Option func(*Coordinator)

func WithReporter(fn ReportFunc) Option {
	return func(c *Coordinator) { c.report = fn }
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, o) }
}

func WithCompletionHook(h CompletionHook) Option {
	return func(c *Coordinator) { c.hooks = append(c.hooks, h) }
}

// New returns a coordinator writing collections under root. The fetcher
// carries the shared gate, so every coordinator built on the same fetcher
// competes for the same slots.
func New(fetcher Fetcher, root string, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher: fetcher,
		root:    root,
		report:  report.Write,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the directory a collection title maps to.
func (c *Coordinator) Dir(title string) (string, error) {
	name, err := utils.SanitizeCollection(title)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, name), nil
}

// BuildJobs derives one job per url, in order.
func BuildJobs(dir string, urls []string) []models.DownloadJob {
	jobs := make([]models.DownloadJob, len(urls))
	for i, u := range urls {
		jobs[i] = models.DownloadJob{
			Index:     i,
			SourceURL: u,
			DestPath:  filepath.Join(dir, models.FileName(i)),
		}
	}
	return jobs
}

// Run fetches every url of req and always drains to completion once
// dispatch has started. Only a *DirectoryError is returned as an error.
func (c *Coordinator) Run(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error) {
	res := &models.BatchResult{
		ID:         uuid.NewString(),
		Collection: req.Title,
		PageURL:    req.PageURL,
		Total:      len(req.URLs),
		Failed:     []models.FailedItem{},
		StartedAt:  time.Now(),
	}
	log := slog.With("batch", res.ID, "collection", req.Title)
	state := StateReceived
	transition := func(next State) {
		log.Debug("Batch state", "from", state, "to", next)
		state = next
	}

	dir, err := c.Dir(req.Title)
	if err == nil {
		err = os.MkdirAll(dir, os.ModePerm)
	}
	if err != nil {
		transition(StateFatalAborted)
		log.Error("Failed to prepare collection directory", "dir", dir, "error", err)
		return nil, &DirectoryError{Collection: req.Title, Path: dir, Err: err}
	}
	res.Dir = dir
	transition(StateDirectoryEnsured)

	jobs := BuildJobs(dir, req.URLs)
	outcomes := make(chan models.Outcome, len(jobs))
	var wg sync.WaitGroup

	transition(StateDispatching)
	log.Info("Batch started", "dir", dir, "total", len(jobs))
	for _, job := range jobs {
		wg.Add(1)
		go c.runJob(ctx, job, outcomes, &wg)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	transition(StateAwaitingCompletion)
	for o := range outcomes {
		res.Add(o)
		c.notify(log, Progress{
			BatchID:    res.ID,
			Collection: res.Collection,
			Done:       res.Done(),
			Total:      res.Total,
			Succeeded:  res.Succeeded,
			Skipped:    res.Skipped,
			Failed:     len(res.Failed),
		})
	}
	res.FinishedAt = time.Now()

	transition(StateReporting)
	if err := c.report(dir, req.Title, req.PageURL, res.Failed); err != nil {
		log.Error("Failed to update failure report", "dir", dir, "error", err)
	}

	transition(StateDone)
	log.Info("Batch completed",
		"total", res.Total,
		"succeeded", res.Succeeded,
		"skipped", res.Skipped,
		"failed", len(res.Failed),
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)

	for _, h := range c.hooks {
		c.runHook(ctx, log, h, res)
	}
	return res, nil
}

// runJob always delivers exactly one outcome, even if the fetcher panics.
func (c *Coordinator) runJob(ctx context.Context, job models.DownloadJob, out chan<- models.Outcome, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Job panicked", "index", job.Index, "url", job.SourceURL, "panic", r)
			out <- models.Failed(job, models.KindTaskFault, fmt.Sprintf("task fault: %v", r))
		}
	}()
	out <- c.fetcher.Fetch(ctx, job)
}

func (c *Coordinator) notify(log *slog.Logger, p Progress) {
	log.Debug("Batch progress", "done", p.Done, "total", p.Total, "failed", p.Failed)
	for _, o := range c.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("Progress observer panicked", "panic", r)
				}
			}()
			o.BatchProgress(p)
		}()
	}
}

func (c *Coordinator) runHook(ctx context.Context, log *slog.Logger, h CompletionHook, res *models.BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("Completion hook panicked", "panic", r)
		}
	}()
	h(ctx, res)
}
