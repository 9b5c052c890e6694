package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// RepoOutcome records how ingesting one repository went.
type RepoOutcome struct {
	Ecosystem ospackage.Ecosystem `yaml:"ecosystem"`
	URL       string              `yaml:"url"`
	Packages  int                 `yaml:"packages"`
	Error     string              `yaml:"error,omitempty"`
}

// TaskOutcome records the final state of one download task.
type TaskOutcome struct {
	Package  string `yaml:"package"`
	URL      string `yaml:"url"`
	Dest     string `yaml:"dest"`
	State    string `yaml:"state"`
	Attempts int    `yaml:"attempts"`
	Reason   string `yaml:"reason,omitempty"`
}

// ReportCollector gathers per-repo and per-task outcomes of one run. It is
// safe for concurrent use.
type ReportCollector struct {
	mu       sync.Mutex
	title    string
	runID    string
	dryRun   bool
	started  time.Time
	repos    []RepoOutcome
	tasks    []TaskOutcome
	resolved []string
	failure  string
}

// NewReportCollector returns an empty collector. title names the fetched
// list file, e.g. fetchurl-<title>.txt.
func NewReportCollector(title, runID string, dryRun bool) *ReportCollector {
	return &ReportCollector{title: title, runID: runID, dryRun: dryRun, started: time.Now()}
}

// RecordRepo stores the outcome of ingesting one repository.
func (r *ReportCollector) RecordRepo(eco ospackage.Ecosystem, url string, packages int, err error) {
	out := RepoOutcome{Ecosystem: eco, URL: url, Packages: packages}
	if err != nil {
		out.Error = err.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repos = append(r.repos, out)
}

// RecordTransaction stores the resolved package identities.
func (r *ReportCollector) RecordTransaction(refs []ospackage.PackageRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = r.resolved[:0]
	for _, ref := range refs {
		r.resolved = append(r.resolved, ref.String())
	}
}

// RecordFailure stores a run-level error such as a resolution failure.
func (r *ReportCollector) RecordFailure(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = err.Error()
}

// RecordTask stores the state of a task. Call once the task is terminal.
func (r *ReportCollector) RecordTask(task *ospackage.DownloadTask) {
	out := TaskOutcome{
		URL:      task.URL,
		Dest:     task.Dest,
		State:    task.State.String(),
		Attempts: task.Attempts,
	}
	if task.Record != nil {
		out.Package = task.Record.Ref().String()
	}
	if task.Err != nil {
		out.Reason = task.Err.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, out)
}

// Counts returns the number of recorded tasks per state name.
func (r *ReportCollector) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, t := range r.tasks {
		counts[t.State]++
	}
	return counts
}

// Repos returns a copy of the recorded repository outcomes.
func (r *ReportCollector) Repos() []RepoOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RepoOutcome(nil), r.repos...)
}

// tasksByState returns the tasks in state sorted by destination, so
// completion order does not leak into the summary.
func (r *ReportCollector) tasksByState(state string) []TaskOutcome {
	var out []TaskOutcome
	for _, t := range r.tasks {
		if t.State == state {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Dest < out[j].Dest })
	return out
}

// WriteSummary prints a human readable summary of the run.
func (r *ReportCollector) WriteSummary(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", r.runID)

	fmt.Fprintf(&b, "Repositories:\n")
	for _, repo := range r.repos {
		if repo.Error != "" {
			fmt.Fprintf(&b, "  FAILED %s %s: %s\n", repo.Ecosystem, repo.URL, repo.Error)
			continue
		}
		fmt.Fprintf(&b, "  ok     %s %s (%d packages)\n", repo.Ecosystem, repo.URL, repo.Packages)
	}

	if r.failure != "" {
		fmt.Fprintf(&b, "Resolution failed: %s\n", r.failure)
	}

	if r.dryRun {
		planned := r.tasks
		fmt.Fprintf(&b, "Dry run, %d package(s) would be downloaded:\n", len(planned))
		for i, t := range planned {
			fmt.Fprintf(&b, "  %3d. %s -> %s\n", i+1, t.Package, filepath.Base(t.Dest))
		}
	} else {
		counts := make(map[string]int)
		for _, t := range r.tasks {
			counts[t.State]++
		}
		fmt.Fprintf(&b, "Downloads: %d succeeded, %d failed, %d skipped\n",
			counts[ospackage.TaskSucceeded.String()], counts[ospackage.TaskFailed.String()], counts[ospackage.TaskSkipped.String()])
		for _, t := range r.tasksByState(ospackage.TaskFailed.String()) {
			fmt.Fprintf(&b, "  failed  %s: %s\n", filepath.Base(t.Dest), t.Reason)
		}
		for _, t := range r.tasksByState(ospackage.TaskSkipped.String()) {
			reason := t.Reason
			if reason == "" {
				reason = "already present"
			}
			fmt.Fprintf(&b, "  skipped %s: %s\n", filepath.Base(t.Dest), reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFetchedList appends the URLs of succeeded downloads to
// dir/fetchurl-<title>.txt, one per line.
func (r *ReportCollector) WriteFetchedList(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating base path: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	title := r.title
	if title == "" {
		title = "untitled"
	}
	// Replace spaces and special characters with underscores
	safeTitle := ""
	for _, c := range title {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			safeTitle += string(c)
		} else {
			safeTitle += "_"
		}
	}

	reportFullPath := filepath.Join(dir, fmt.Sprintf("fetchurl-%s.txt", safeTitle))
	f, err := os.OpenFile(reportFullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	for _, t := range r.tasks {
		if t.State != ospackage.TaskSucceeded.String() {
			continue
		}
		if _, err := fmt.Fprintln(f, t.URL); err != nil {
			return "", fmt.Errorf("writing to file: %w", err)
		}
	}
	return reportFullPath, nil
}

type yamlReport struct {
	RunID        string         `yaml:"runId"`
	Started      string         `yaml:"started"`
	DryRun       bool           `yaml:"dryRun"`
	Failure      string         `yaml:"failure,omitempty"`
	Repositories []RepoOutcome  `yaml:"repositories"`
	Transaction  []string       `yaml:"transaction"`
	Tasks        []TaskOutcome  `yaml:"tasks"`
	Counts       map[string]int `yaml:"counts"`
}

// WriteYAML writes a machine readable report to path.
func (r *ReportCollector) WriteYAML(path string) error {
	r.mu.Lock()
	rep := yamlReport{
		RunID:        r.runID,
		Started:      r.started.UTC().Format(time.RFC3339),
		DryRun:       r.dryRun,
		Failure:      r.failure,
		Repositories: append([]RepoOutcome(nil), r.repos...),
		Transaction:  append([]string(nil), r.resolved...),
		Tasks:        append([]TaskOutcome(nil), r.tasks...),
		Counts:       make(map[string]int),
	}
	for _, t := range r.tasks {
		rep.Counts[t.State]++
	}
	r.mu.Unlock()

	data, err := yaml.Marshal(&rep)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
