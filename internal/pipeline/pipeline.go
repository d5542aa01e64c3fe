package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/traffic-safety-pipeline/internal/common"
	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
	"github.com/i474232898/traffic-safety-pipeline/internal/sources"
	"github.com/i474232898/traffic-safety-pipeline/internal/store"
)

// RetryPolicy bounds the fetch retry loop. Only transient fetch failures are
// retried; normalize, merge, and save are never retried.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy matches the sources' expected failure modes: brief rate
// limiting and occasional upstream 5xx.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// FetchError surfaces a fetch that failed permanently or exhausted its
// retries. It aborts only its own kind's run.
type FetchError struct {
	Kind     string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Kind pairs a dataset schema with the source that feeds it.
type Kind struct {
	Schema dataset.Schema
	Source sources.Source
}

// Result reports one kind's run: merge counts, records dropped during
// normalization, and the error that aborted the run, if any.
type Result struct {
	Kind     string          `json:"kind"`
	Outcome  dataset.Outcome `json:"outcome"`
	Dropped  int             `json:"dropped"`
	Duration time.Duration   `json:"durationNs"`
	Failure  string          `json:"error,omitempty"`

	Err error `json:"-"`
}

// Report aggregates one RunAll invocation across all kinds.
type Report struct {
	ID       string            `json:"id"`
	Window   common.Window     `json:"window"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
	Results  map[string]Result `json:"results"`
}

// Failed reports whether any kind's run failed.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil || res.Failure != "" {
			return true
		}
	}
	return false
}

// Pipeline drives the per-kind accumulation sequence: fetch, normalize,
// merge against the committed master, save.
type Pipeline struct {
	store store.Store
	kinds []Kind
	retry RetryPolicy

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.RWMutex
	last *Report
}

// New creates a Pipeline over the given store and kinds.
func New(st store.Store, kinds []Kind, retry RetryPolicy) *Pipeline {
	return &Pipeline{
		store: st,
		kinds: kinds,
		retry: retry,
		sleep: sleepContext,
	}
}

// Kinds returns the configured kinds.
func (p *Pipeline) Kinds() []Kind {
	return p.kinds
}

// RunAll runs every kind for the window, each in its own goroutine. Kinds own
// disjoint masters, so they never coordinate. Every kind is always attempted;
// one kind's failure never blocks another's commit.
func (p *Pipeline) RunAll(ctx context.Context, window common.Window) Report {
	report := Report{
		ID:      uuid.NewString(),
		Window:  window,
		Started: time.Now().UTC(),
		Results: make(map[string]Result, len(p.kinds)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, k := range p.kinds {
		k := k
		wg.Add(1)
		go func() {
			defer wg.Done()

			res := p.Run(ctx, k, window)

			mu.Lock()
			report.Results[k.Schema.Kind] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	report.Finished = time.Now().UTC()

	p.mu.Lock()
	p.last = &report
	p.mu.Unlock()

	return report
}

// Run executes the full sequence for one kind. Running it twice over the same
// or an overlapping window leaves the committed master identical after the
// second run.
func (p *Pipeline) Run(ctx context.Context, kind Kind, window common.Window) Result {
	name := kind.Schema.Kind
	started := time.Now()

	fail := func(err error) Result {
		log.Printf("pipeline: %s failed: %v", name, err)
		return Result{Kind: name, Duration: time.Since(started), Err: err, Failure: err.Error()}
	}

	raw, err := p.fetchWithRetry(ctx, kind, window)
	if err != nil {
		return fail(err)
	}

	records, normErrs := dataset.Normalize(kind.Schema, raw)
	for _, nerr := range normErrs {
		log.Printf("pipeline: %s: dropped record: %v", name, nerr)
	}
	if len(raw) > 0 && len(records) == 0 {
		return fail(&dataset.SchemaError{
			Kind:   name,
			Field:  "",
			Reason: fmt.Sprintf("batch rejected: all %d records failed normalization", len(raw)),
		})
	}

	existing, err := p.store.Load(kind.Schema)
	if err != nil {
		return fail(err)
	}

	merged, outcome := dataset.Merge(existing, records)

	if err := p.store.Save(merged); err != nil {
		return fail(err)
	}

	res := Result{
		Kind:     name,
		Outcome:  outcome,
		Dropped:  len(normErrs),
		Duration: time.Since(started),
	}
	log.Printf("pipeline: %s: appended=%d updated=%d skipped=%d dropped=%d size=%d (%s)",
		name, outcome.Appended, outcome.Updated, outcome.Skipped, res.Dropped, outcome.Size, res.Duration.Round(time.Millisecond))
	return res
}

// LastReport returns the most recent RunAll report, if any run has completed.
func (p *Pipeline) LastReport() (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

func (p *Pipeline) fetchWithRetry(ctx context.Context, kind Kind, window common.Window) ([]dataset.RawRecord, error) {
	name := kind.Schema.Kind
	delay := p.retry.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		raw, err := kind.Source.Fetch(ctx, window)
		if err == nil {
			return raw, nil
		}

		if !errors.Is(err, sources.ErrTransient) {
			return nil, &FetchError{Kind: name, Attempts: attempt, Err: err}
		}

		lastErr = err
		if attempt == p.retry.MaxAttempts {
			break
		}

		log.Printf("pipeline: %s: fetch attempt %d failed, retrying in %s: %v", name, attempt, delay, err)
		if err := p.sleep(ctx, delay); err != nil {
			return nil, &FetchError{Kind: name, Attempts: attempt, Err: err}
		}

		delay *= 2
		if p.retry.MaxDelay > 0 && delay > p.retry.MaxDelay {
			delay = p.retry.MaxDelay
		}
	}
	return nil, &FetchError{Kind: name, Attempts: p.retry.MaxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
