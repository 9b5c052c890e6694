// Package debrepo reads Debian style binary package indices.
package debrepo

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/debutils"
	"github.com/open-edge-platform/os-package-fetcher/internal/provider"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
)

// DebRepo implements provider.Provider
type DebRepo struct {
	opts provider.Options
}

func init() {
	provider.Register(ospackage.DEB, func(opts provider.Options) provider.Provider {
		return New(opts)
	})
}

// New returns a Packages index provider.
func New(opts provider.Options) *DebRepo {
	return &DebRepo{opts: opts}
}

// Name returns the unique name of the provider
func (p *DebRepo) Name() string { return "deb-packages" }

// Ecosystem returns ospackage.DEB.
func (p *DebRepo) Ecosystem() ospackage.Ecosystem { return ospackage.DEB }

// Packages reads the Packages index at repoURL. The URL is either a
// binary-<arch> directory, tried as Packages.xz, Packages.gz and Packages
// in that order, or the index file itself.
func (p *DebRepo) Packages(ctx context.Context, repoURL string) ([]*ospackage.PackageRecord, error) {
	log := logger.Logger()
	f := p.opts.Fetcher

	candidates := debutils.IndexCandidates(repoURL)
	if strings.HasPrefix(path.Base(repoURL), "Packages") {
		candidates = []string{repoURL}
	}

	indexURL, data, err := f.FetchFirst(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("fetching Packages index: %w", err)
	}

	base := debutils.RepoBaseURL(indexURL)
	records, err := debutils.ParsePackagesBytes(data, indexURL, base)
	if err != nil {
		return nil, err
	}
	kept := provider.FilterArch(records, p.opts.Arch, "all")
	log.Infof("found %d packages (%d for %s) in %s", len(records), len(kept), p.opts.Arch, indexURL)
	return kept, nil
}
