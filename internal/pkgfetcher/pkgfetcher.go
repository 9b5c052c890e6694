package pkgfetcher

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/network"
)

// ErrDownloadsFailed is returned when at least one task ends Failed.
var ErrDownloadsFailed = errors.New("one or more downloads failed")

// Fetcher downloads planned tasks with a bounded pool of workers.
type Fetcher struct {
	Client    *http.Client
	Workers   int
	Retry     network.RetryPolicy
	Timeout   time.Duration // per attempt, including the body
	Collector *logger.ReportCollector
	Progress  bool
}

// New returns a Fetcher with the default retry policy.
func New(client *http.Client, workers int, collector *logger.ReportCollector) *Fetcher {
	return &Fetcher{
		Client:    client,
		Workers:   workers,
		Retry:     network.DefaultRetryPolicy,
		Timeout:   60 * time.Second,
		Collector: collector,
	}
}

// FetchPackages runs every task to a terminal state. In dry-run mode no
// request is made and tasks end Planned. When ctx is cancelled, tasks not
// yet handed to a worker end Skipped and partial files are removed.
func (f *Fetcher) FetchPackages(ctx context.Context, tasks []*ospackage.DownloadTask, dryRun bool) error {
	log := logger.Logger()

	if dryRun {
		for _, task := range tasks {
			if err := task.Transition(ospackage.TaskPlanned); err != nil {
				return err
			}
			f.record(task)
			log.Infof("would download %s -> %s", task.URL, task.Dest)
		}
		return nil
	}

	total := len(tasks)
	if total == 0 {
		return nil
	}

	for _, task := range tasks {
		if err := os.MkdirAll(filepath.Dir(task.Dest), 0755); err != nil {
			return fmt.Errorf("creating destination directory: %w", err)
		}
	}

	workers := f.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	bar := f.newProgressBar(total)

	jobs := make(chan *ospackage.DownloadTask)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if bar != nil {
					bar.Describe(fmt.Sprintf("downloading %s", filepath.Base(task.Dest)))
				}
				f.run(ctx, task)
				f.record(task)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	scheduled := 0
schedule:
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break schedule
		case jobs <- task:
			scheduled++
		}
	}
	close(jobs)
	wg.Wait()

	for _, task := range tasks[scheduled:] {
		task.Err = fmt.Errorf("not started: %w", ctx.Err())
		if err := task.Transition(ospackage.TaskSkipped); err != nil {
			log.Errorf("%v", err)
		}
		f.record(task)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	failed := 0
	for _, task := range tasks {
		if task.State == ospackage.TaskFailed {
			failed++
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("download interrupted after %d of %d tasks: %w", scheduled, total, err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d packages: %w", failed, total, ErrDownloadsFailed)
	}
	log.Infof("downloaded %d packages", total)
	return nil
}

func (f *Fetcher) newProgressBar(total int) *progressbar.ProgressBar {
	if !f.Progress {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func (f *Fetcher) record(task *ospackage.DownloadTask) {
	if f.Collector != nil {
		f.Collector.RecordTask(task)
	}
}

func (f *Fetcher) fail(task *ospackage.DownloadTask, err error) {
	task.Err = err
	if terr := task.Transition(ospackage.TaskFailed); terr != nil {
		logger.Logger().Errorf("%v", terr)
	}
}

// run drives one task through its attempts.
func (f *Fetcher) run(ctx context.Context, task *ospackage.DownloadTask) {
	log := logger.Logger()

	if task.Record == nil || task.Record.Checksum.IsZero() {
		f.fail(task, fmt.Errorf("no checksum published for %s", task.URL))
		return
	}

	if present, err := verifyExisting(task.Dest, task.Record.Checksum); err != nil {
		log.Debugf("existing %s unusable: %v", task.Dest, err)
	} else if present {
		if err := task.Transition(ospackage.TaskSkipped); err != nil {
			log.Errorf("%v", err)
		}
		log.Debugf("%s already present with matching checksum", task.Dest)
		return
	}

	b := f.Retry.NewBackOff()
	attempts := f.Retry.Attempts()
	for {
		if err := task.Transition(ospackage.TaskInFlight); err != nil {
			f.fail(task, err)
			return
		}

		err := f.download(ctx, task)
		if err == nil {
			if err := task.Transition(ospackage.TaskSucceeded); err != nil {
				log.Errorf("%v", err)
			}
			return
		}

		if ctx.Err() != nil {
			f.fail(task, ctx.Err())
			return
		}
		if !ospackage.IsTransient(err) || task.Attempts >= attempts {
			log.Errorf("downloading %s failed after %d attempt(s): %v", task.URL, task.Attempts, err)
			f.fail(task, err)
			return
		}

		if err := task.Transition(ospackage.TaskRetrying); err != nil {
			f.fail(task, err)
			return
		}
		wait := f.Retry.NextDelay(b, err)
		log.Warnf("downloading %s failed (attempt %d/%d): %v, retrying in %s", task.URL, task.Attempts, attempts, err, wait)
		if err := network.Sleep(ctx, wait); err != nil {
			f.fail(task, err)
			return
		}
	}
}

// download performs one attempt. The body is streamed into a temp file in
// the destination directory while hashing; the file is renamed into place
// only when the digest matches.
func (f *Fetcher) download(ctx context.Context, task *ospackage.DownloadTask) error {
	reqCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", task.URL, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return network.ClassifyTransportError(ctx, task.URL, err)
	}
	defer resp.Body.Close()

	if err := network.CheckResponse(task.URL, resp); err != nil {
		return err
	}

	h, err := task.Record.Checksum.NewHash()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(task.Dest), "."+filepath.Base(task.Dest)+".*.part")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return network.ClassifyTransportError(ctx, task.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	sum := h.Sum(nil)
	if !task.Record.Checksum.Matches(sum) {
		return &ospackage.IntegrityError{Source: task.URL, Expected: task.Record.Checksum, Actual: hex.EncodeToString(sum)}
	}

	if err := os.Rename(tmpName, task.Dest); err != nil {
		return fmt.Errorf("moving %s into place: %w", task.Dest, err)
	}
	renamed = true
	return nil
}

// verifyExisting reports whether dest already holds the expected content.
func verifyExisting(dest string, want ospackage.Checksum) (bool, error) {
	f, err := os.Open(dest)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	h, err := want.NewHash()
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return want.Matches(h.Sum(nil)), nil
}
