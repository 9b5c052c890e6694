// Package pipeline runs one fetch: ingest repository indexes into a
// catalog, resolve the requested packages, plan and download the
// transaction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/open-edge-platform/os-package-fetcher/internal/config"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/catalog"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/planner"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/repofetch"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/resolver"
	"github.com/open-edge-platform/os-package-fetcher/internal/pkgfetcher"
	"github.com/open-edge-platform/os-package-fetcher/internal/provider"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/general/slice"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/network"

	_ "github.com/open-edge-platform/os-package-fetcher/internal/provider/debrepo"
	_ "github.com/open-edge-platform/os-package-fetcher/internal/provider/rpmrepo"
)

// ErrNoCatalog is returned when no enabled repository produced any package.
var ErrNoCatalog = errors.New("no package metadata could be loaded")

// Request describes what to fetch.
type Request struct {
	Roots    []string
	RPMRepos []string
	DEBRepos []string
	UseRPM   bool
	UseDEB   bool
	RPMArch  string
	DEBArch  string
	DestDir  string
	DryRun   bool
	// Probe lists the catalog candidates for Roots and stops before solving.
	Probe bool
}

// RequestFromConfig builds a request for roots from the configuration.
func RequestFromConfig(cfg *config.GlobalConfig, roots []string, dryRun bool) Request {
	return Request{
		Roots:    roots,
		RPMRepos: cfg.RPM.Repos,
		DEBRepos: cfg.DEB.Repos,
		UseRPM:   cfg.RPM.Enabled,
		UseDEB:   cfg.DEB.Enabled,
		RPMArch:  cfg.RPM.Arch,
		DEBArch:  cfg.DEB.Arch,
		DestDir:  cfg.DestDir,
		DryRun:   dryRun,
	}
}

func (r Request) enabled() []ospackage.Ecosystem {
	var out []ospackage.Ecosystem
	if r.UseRPM && len(r.RPMRepos) > 0 {
		out = append(out, ospackage.RPM)
	}
	if r.UseDEB && len(r.DEBRepos) > 0 {
		out = append(out, ospackage.DEB)
	}
	return out
}

func (r Request) repos(eco ospackage.Ecosystem) ([]string, string) {
	if eco == ospackage.DEB {
		return r.DEBRepos, r.DEBArch
	}
	return r.RPMRepos, r.RPMArch
}

// Result is what a run produced. It is returned even when the run fails so
// that callers can write the report.
type Result struct {
	RunID       string
	Catalog     *catalog.Catalog
	Transaction []ospackage.PackageRef
	Tasks       []*ospackage.DownloadTask
	Matches     []resolver.ProbeMatch
	Report      *logger.ReportCollector
}

// Pipeline holds the collaborators shared by every stage of a run.
type Pipeline struct {
	Client   *http.Client
	Workers  int
	Retry    network.RetryPolicy
	Timeout  time.Duration
	KeyRing  openpgp.KeyRing
	Resolver *resolver.Resolver
	Progress bool
}

// New returns a pipeline configured from helpers.
func New(client *http.Client, helpers *config.ConfigHelpers) *Pipeline {
	return &Pipeline{
		Client:   client,
		Workers:  helpers.Workers(),
		Retry:    helpers.RetryPolicy(),
		Timeout:  helpers.GetConfig().HTTP.Timeout,
		Resolver: resolver.New(nil),
	}
}

// Run executes req. Resolution errors are returned before any download is
// attempted; download failures are returned wrapping
// pkgfetcher.ErrDownloadsFailed.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	log := logger.Logger()

	req.Roots = slice.Unique(slice.NonEmpty(req.Roots))
	res := &Result{RunID: uuid.NewString()}
	res.Report = logger.NewReportCollector(strings.Join(req.Roots, "-"), res.RunID, req.DryRun)
	log.Infof("run %s: fetching %s", res.RunID, strings.Join(req.Roots, ", "))

	enabled := req.enabled()
	if len(enabled) == 0 {
		return res, fmt.Errorf("no ecosystem enabled with at least one repository")
	}

	cat, err := p.Ingest(ctx, req, res.Report)
	res.Catalog = cat
	if err != nil {
		return res, err
	}
	for eco, n := range cat.CountByEcosystem() {
		log.Infof("%s catalog: %d packages", eco, n)
	}

	if req.Probe {
		res.Matches = resolver.Probe(cat, req.Roots, enabled)
		return res, nil
	}

	rs := p.Resolver
	if rs == nil {
		rs = resolver.New(nil)
	}
	tx, err := rs.Resolve(cat, req.Roots, enabled)
	if err != nil {
		res.Report.RecordFailure(err)
		return res, fmt.Errorf("resolving %s: %w", strings.Join(req.Roots, ", "), err)
	}
	res.Transaction = tx
	res.Report.RecordTransaction(tx)
	log.Infof("transaction has %d packages", len(tx))

	tasks, err := planner.Plan(cat, tx, req.DestDir)
	if err != nil {
		res.Report.RecordFailure(err)
		return res, fmt.Errorf("planning downloads: %w", err)
	}
	res.Tasks = tasks

	fetcher := pkgfetcher.New(p.Client, p.Workers, res.Report)
	fetcher.Retry = p.Retry
	if p.Timeout > 0 {
		fetcher.Timeout = p.Timeout
	}
	fetcher.Progress = p.Progress
	if err := fetcher.FetchPackages(ctx, tasks, req.DryRun); err != nil {
		return res, err
	}
	return res, nil
}

type repoJob struct {
	eco  ospackage.Ecosystem
	url  string
	prov provider.Provider
}

type repoResult struct {
	records []*ospackage.PackageRecord
	err     error
}

// Ingest fetches every configured repository in parallel and merges the
// records into a catalog in configured order, so the first repository
// listing a package wins regardless of completion order. A failing
// repository is reported and skipped.
func (p *Pipeline) Ingest(ctx context.Context, req Request, report *logger.ReportCollector) (*catalog.Catalog, error) {
	log := logger.Logger()

	fetcher := repofetch.New(p.Client, p.Retry, p.Timeout)

	var jobs []repoJob
	for _, eco := range req.enabled() {
		urls, arch := req.repos(eco)
		prov, err := provider.Get(eco, provider.Options{Fetcher: fetcher, Arch: arch, KeyRing: p.KeyRing})
		if err != nil {
			return nil, err
		}
		for _, u := range urls {
			jobs = append(jobs, repoJob{eco: eco, url: u, prov: prov})
		}
	}

	results := make([]repoResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			log.Infof("loading %s repository %s", job.eco, job.url)
			records, err := job.prov.Packages(gctx, job.url)
			results[i] = repoResult{records: records, err: err}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return catalog.New(), fmt.Errorf("loading repositories: %w", err)
	}

	cat := catalog.New()
	for i, job := range jobs {
		r := results[i]
		if r.err != nil {
			log.Warnf("skipping %s repository %s: %v", job.eco, job.url, r.err)
			report.RecordRepo(job.eco, job.url, 0, r.err)
			continue
		}
		added := cat.Add(r.records...)
		log.Debugf("%s: %d records, %d new", job.url, len(r.records), added)
		report.RecordRepo(job.eco, job.url, len(r.records), nil)
	}

	if cat.Len() == 0 {
		return cat, ErrNoCatalog
	}
	return cat, nil
}
