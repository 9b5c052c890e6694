// Package rpmrepo reads RPM repositories published with repodata/repomd.xml.
package rpmrepo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/repofetch"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/rpmutils"
	"github.com/open-edge-platform/os-package-fetcher/internal/provider"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
)

const repomdPath = "repodata/repomd.xml"

// RPMRepo implements provider.Provider
type RPMRepo struct {
	opts provider.Options
}

func init() {
	provider.Register(ospackage.RPM, func(opts provider.Options) provider.Provider {
		return New(opts)
	})
}

// New returns a repomd provider.
func New(opts provider.Options) *RPMRepo {
	return &RPMRepo{opts: opts}
}

// Name returns the unique name of the provider
func (p *RPMRepo) Name() string { return "rpm-repomd" }

// Ecosystem returns ospackage.RPM.
func (p *RPMRepo) Ecosystem() ospackage.Ecosystem { return ospackage.RPM }

// Packages reads repomd.xml and the primary package list of repoURL. The
// URL may also point at a .repo file, whose first section's baseurl is used.
func (p *RPMRepo) Packages(ctx context.Context, repoURL string) ([]*ospackage.PackageRecord, error) {
	log := logger.Logger()
	f := p.opts.Fetcher
	keyring := p.opts.KeyRing

	if strings.HasSuffix(repoURL, ".repo") {
		cfg, err := p.resolveRepoFile(ctx, repoURL)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, nil
		}
		repoURL = cfg.URL
		if keyring == nil && cfg.RepoGPGCheck {
			if keyring, err = p.repoKeyRing(ctx, cfg); err != nil {
				return nil, err
			}
		}
	}

	base, repomd, err := p.fetchRepomd(ctx, repoURL)
	if err != nil {
		return nil, err
	}

	if keyring != nil {
		sig, err := f.Fetch(ctx, base+repomdPath+".asc")
		if err != nil {
			return nil, fmt.Errorf("fetching repomd signature: %w", err)
		}
		if err := rpmutils.VerifyRepomdSignature(keyring, repomd, sig); err != nil {
			return nil, err
		}
		log.Debugf("repomd.xml signature of %s verified", base)
	}

	primary, err := rpmutils.ParseRepomd(bytes.NewReader(repomd), base+repomdPath)
	if err != nil {
		return nil, err
	}

	primaryURL := base + strings.TrimLeft(primary.Href, "/")
	raw, err := f.Fetch(ctx, primaryURL)
	if err != nil {
		return nil, fmt.Errorf("fetching primary list: %w", err)
	}
	if err := primary.VerifyDownload(primaryURL, raw); err != nil {
		return nil, err
	}
	data, err := f.Codecs.Decompress(primaryURL, raw)
	if err != nil {
		return nil, err
	}
	if err := primary.VerifyOpen(primaryURL, data); err != nil {
		return nil, err
	}

	records, err := rpmutils.ParsePrimary(bytes.NewReader(data), primaryURL, base)
	if err != nil {
		return nil, err
	}
	kept := provider.FilterArch(records, p.opts.Arch, "noarch")
	log.Infof("found %d packages (%d for %s) in %s", len(records), len(kept), p.opts.Arch, base)
	return kept, nil
}

// fetchRepomd returns the effective repository base and the raw repomd.xml.
// A 404 below ".../os/" retries at the parent directory.
func (p *RPMRepo) fetchRepomd(ctx context.Context, repoURL string) (string, []byte, error) {
	log := logger.Logger()

	base := ospackage.EnsureTrailingSlash(repoURL)
	data, err := p.opts.Fetcher.Fetch(ctx, base+repomdPath)
	if err == nil {
		return base, data, nil
	}
	if !repofetch.IsNotFound(err) || !strings.HasSuffix(base, "/os/") {
		return "", nil, fmt.Errorf("fetching repomd.xml: %w", err)
	}

	parent := strings.TrimSuffix(base, "os/")
	log.Infof("%s has no repodata, trying %s", base, parent)
	data, err = p.opts.Fetcher.Fetch(ctx, parent+repomdPath)
	if err != nil {
		return "", nil, fmt.Errorf("fetching repomd.xml: %w", err)
	}
	return parent, data, nil
}

// resolveRepoFile reads the first section of a .repo file with $basearch
// expanded. A disabled section yields nil.
func (p *RPMRepo) resolveRepoFile(ctx context.Context, url string) (*rpmutils.RepoConfig, error) {
	log := logger.Logger()

	data, err := p.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading repo config %s: %w", url, err)
	}
	cfg, err := rpmutils.LoadRepoConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing repo config %s: %w", url, err)
	}
	if !cfg.Enabled {
		log.Warnf("repo section %s in %s is disabled, skipping", cfg.Section, url)
		return nil, nil
	}
	if cfg.URL == "" {
		return nil, &ospackage.MalformedMetadataError{Source: url, Reason: "no baseurl in repo section " + cfg.Section}
	}
	cfg.URL = strings.ReplaceAll(cfg.URL, "$basearch", p.opts.Arch)
	cfg.GPGKey = strings.ReplaceAll(cfg.GPGKey, "$basearch", p.opts.Arch)
	log.Infof("repo section=%s name=%s baseurl=%s", cfg.Section, cfg.Name, cfg.URL)
	return &cfg, nil
}

// repoKeyRing loads the gpgkey of a section with repo_gpgcheck=1. Local
// file:// keys are read from disk, anything else is downloaded.
func (p *RPMRepo) repoKeyRing(ctx context.Context, cfg *rpmutils.RepoConfig) (openpgp.KeyRing, error) {
	log := logger.Logger()

	if cfg.GPGKey == "" {
		log.Warnf("repo section %s sets repo_gpgcheck without gpgkey, repomd.xml is not verified", cfg.Section)
		return nil, nil
	}

	var data []byte
	var err error
	if local, ok := strings.CutPrefix(cfg.GPGKey, "file://"); ok {
		data, err = os.ReadFile(local)
	} else {
		data, err = p.opts.Fetcher.Fetch(ctx, cfg.GPGKey)
	}
	if err != nil {
		return nil, fmt.Errorf("loading gpgkey of repo section %s: %w", cfg.Section, err)
	}
	keyring, err := rpmutils.ReadKeyRing(data)
	if err != nil {
		return nil, fmt.Errorf("gpgkey %s: %w", cfg.GPGKey, err)
	}
	log.Debugf("verifying repomd.xml of %s with %s", cfg.Section, cfg.GPGKey)
	return keyring, nil
}
