// Package planner turns a solver transaction into download tasks.
package planner

import (
	"fmt"
	"path/filepath"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/catalog"
)

// Plan builds one task per distinct (URL, checksum) in transaction order.
// Every ref must be present in cat; otherwise ErrInconsistentTransaction is
// returned and no tasks are produced.
func Plan(cat *catalog.Catalog, tx []ospackage.PackageRef, destDir string) ([]*ospackage.DownloadTask, error) {
	type key struct {
		url      string
		checksum ospackage.Checksum
	}

	tasks := make([]*ospackage.DownloadTask, 0, len(tx))
	seen := make(map[key]bool)
	dests := make(map[string]string)

	for _, ref := range tx {
		rec, ok := cat.Get(ref)
		if !ok {
			return nil, fmt.Errorf("planning %s: %w", ref, ospackage.ErrInconsistentTransaction)
		}

		url := rec.DownloadURL()
		k := key{url: url, checksum: rec.Checksum}
		if seen[k] {
			continue
		}
		seen[k] = true

		dest := filepath.Join(destDir, rec.FileName())
		if prev, ok := dests[dest]; ok && prev != url {
			return nil, fmt.Errorf("planning %s: destination %s already planned for %s", ref, dest, prev)
		}
		dests[dest] = url

		tasks = append(tasks, ospackage.NewDownloadTask(rec, url, dest))
	}
	return tasks, nil
}
