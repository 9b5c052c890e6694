package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/open-edge-platform/os-package-fetcher/internal/config"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/rpmutils"
	"github.com/open-edge-platform/os-package-fetcher/internal/pipeline"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/general/slice"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/network"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/system"
)

// Fetch command flags
var (
	dryRun     bool
	rpmRepos   []string
	debRepos   []string
	noRPM      bool
	noDEB      bool
	outDir     string
	rpmArch    string
	debArch    string
	rpmProbe   bool
	workers    int
	reportFile string
	rpmGPGKey  string
)

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and print the download plan without downloading")
	cmd.Flags().StringArrayVar(&rpmRepos, "rpm-repo", nil, "RPM repository base URL or .repo file URL (repeatable, replaces the defaults)")
	cmd.Flags().StringArrayVar(&debRepos, "deb-repo", nil, "DEB binary index directory URL (repeatable, replaces the defaults)")
	cmd.Flags().BoolVar(&noRPM, "no-rpm", false, "Do not use RPM repositories")
	cmd.Flags().BoolVar(&noDEB, "no-deb", false, "Do not use DEB repositories")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Download directory (default \"downloads\")")
	cmd.Flags().StringVar(&rpmArch, "arch", "", "RPM architecture, \"host\" for this machine; also sets the DEB architecture unless --deb-arch is given (default \"x86_64\")")
	cmd.Flags().StringVar(&debArch, "deb-arch", "", "DEB architecture, \"host\" for this machine (default \"amd64\")")
	cmd.Flags().BoolVar(&rpmProbe, "rpm-probe", false, "List the packages that match the requested names and exit")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of concurrent downloads")
	cmd.Flags().StringVar(&reportFile, "report", "", "Write a YAML run report to this file")
	cmd.Flags().StringVar(&rpmGPGKey, "rpm-gpgkey", "", "Armored or binary OpenPGP key used to verify repomd.xml signatures")
}

// applyFetchFlags overlays the flags the user set on cfg.
func applyFetchFlags(flags *pflag.FlagSet, cfg *config.GlobalConfig) error {
	if flags.Changed("rpm-repo") {
		cfg.RPM.Repos = slice.Unique(slice.NonEmpty(rpmRepos))
	}
	if flags.Changed("deb-repo") {
		cfg.DEB.Repos = slice.Unique(slice.NonEmpty(debRepos))
	}
	if noRPM {
		cfg.RPM.Enabled = false
	}
	if noDEB {
		cfg.DEB.Enabled = false
	}
	if noRPM && noDEB {
		return errors.New("--no-rpm and --no-deb leave nothing to fetch")
	}
	if flags.Changed("out") {
		cfg.DestDir = outDir
	}
	if flags.Changed("arch") {
		arch := rpmArch
		if arch == "host" {
			arch = system.HostArch()
		}
		rpm, err := system.RPMArch(arch)
		if err != nil {
			return fmt.Errorf("--arch: %w", err)
		}
		cfg.RPM.Arch = rpm
		if !flags.Changed("deb-arch") {
			// keep both ecosystems on the same machine
			if deb, err := system.DEBArch(rpm); err == nil {
				cfg.DEB.Arch = deb
			}
		}
	}
	if flags.Changed("deb-arch") {
		arch := debArch
		if arch == "host" {
			arch = system.HostArch()
		}
		deb, err := system.DEBArch(arch)
		if err != nil {
			return fmt.Errorf("--deb-arch: %w", err)
		}
		cfg.DEB.Arch = deb
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("rpm-gpgkey") {
		cfg.RPM.GPGKey = rpmGPGKey
	}
	return nil
}

// executeFetch handles the fetch command execution logic
func executeFetch(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	helpers := config.NewConfigHelpers(globalConfig)

	proxy := network.CaptureProxy()
	if !proxy.IsZero() {
		log.Infof("using proxy settings %s", proxy)
	}
	client := network.NewSecureHTTPClient(helpers.ClientOptions(proxy))

	p := pipeline.New(client, helpers)
	p.Progress = !helpers.IsDebugMode()
	if path := globalConfig.RPM.GPGKey; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading gpg key: %w", err)
		}
		keyring, err := rpmutils.ReadKeyRing(data)
		if err != nil {
			return fmt.Errorf("gpg key %s: %w", path, err)
		}
		p.KeyRing = keyring
	}

	req := pipeline.RequestFromConfig(globalConfig, args, dryRun)
	req.Probe = rpmProbe
	destDir, err := helpers.DestDir()
	if err != nil {
		return fmt.Errorf("resolving destination directory: %w", err)
	}
	req.DestDir = destDir

	res, runErr := p.Run(cmd.Context(), req)
	if res == nil {
		return runErr
	}
	out := cmd.OutOrStdout()

	if req.Probe {
		if runErr == nil {
			writeProbe(out, res)
		}
		return runErr
	}

	if err := res.Report.WriteSummary(out); err != nil {
		log.Warnf("writing summary: %v", err)
	}
	if !req.DryRun && len(res.Tasks) > 0 {
		if dir, err := helpers.ReportDir(); err == nil {
			if path, err := res.Report.WriteFetchedList(dir); err != nil {
				log.Warnf("writing fetched list: %v", err)
			} else {
				log.Infof("fetched URLs listed in %s", path)
			}
		}
	}
	if reportFile != "" {
		if err := res.Report.WriteYAML(reportFile); err != nil {
			log.Warnf("writing report: %v", err)
		} else {
			log.Infof("report written to %s", reportFile)
		}
	}
	return runErr
}

func writeProbe(w io.Writer, res *pipeline.Result) {
	if len(res.Matches) == 0 {
		fmt.Fprintln(w, "no matching packages")
		return
	}
	for _, m := range res.Matches {
		fmt.Fprintf(w, "%-20s %-50s %s\n", m.Query, m.Ref, m.Via)
	}
}
