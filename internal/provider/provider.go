package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/repofetch"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/general/slice"
)

// Provider is the interface every repository format plugin must implement.
type Provider interface {
	// Name is a unique ID, e.g. "rpm-repomd" or "deb-packages".
	Name() string

	// Ecosystem is the packaging family the provider's records belong to.
	Ecosystem() ospackage.Ecosystem

	// Packages fetches and parses the index of one repository.
	Packages(ctx context.Context, repoURL string) ([]*ospackage.PackageRecord, error)
}

// Options configures a provider instance.
type Options struct {
	Fetcher *repofetch.Fetcher
	// Arch is the binary architecture to keep; records for the ecosystem's
	// architecture-independent arch ("noarch", "all") are always kept.
	Arch string
	// KeyRing, when set, enables repository metadata signature checks.
	KeyRing openpgp.KeyRing
}

// Factory builds a provider from options.
type Factory func(opts Options) Provider

var (
	mu        sync.RWMutex
	factories = make(map[ospackage.Ecosystem]Factory)
)

// Register makes a provider factory available for its ecosystem.
func Register(eco ospackage.Ecosystem, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[eco] = f
}

// Get returns a provider for the ecosystem.
func Get(eco ospackage.Ecosystem, opts Options) (Provider, error) {
	mu.RLock()
	f, ok := factories[eco]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for ecosystem %q", eco)
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("provider for %s needs a fetcher", eco)
	}
	return f(opts), nil
}

// FilterArch keeps records built for arch or for one of the neutral arches.
// An empty arch keeps everything.
func FilterArch(records []*ospackage.PackageRecord, arch string, neutral ...string) []*ospackage.PackageRecord {
	if arch == "" {
		return records
	}
	out := records[:0:0]
	for _, rec := range records {
		if rec.Arch == arch || slice.Contains(neutral, rec.Arch) {
			out = append(out, rec)
		}
	}
	return out
}
