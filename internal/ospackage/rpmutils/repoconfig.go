package rpmutils

import (
	"bufio"
	"io"
	"strings"
)

// RepoConfig holds .repo file values
type RepoConfig struct {
	Section      string // raw section header
	Name         string // human-readable name from name=
	URL          string
	RepoGPGCheck bool // repomd.xml must carry a valid signature
	Enabled      bool
	GPGKey       string
}

// LoadRepoConfig parses the first section of a yum/dnf .repo file.
func LoadRepoConfig(r io.Reader) (RepoConfig, error) {
	s := bufio.NewScanner(r)
	rc := RepoConfig{Enabled: true}
	sections := 0
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		// skip comments or empty
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			sections++
			if sections > 1 {
				break
			}
			rc.Section = strings.Trim(line, "[]")
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "name":
			rc.Name = val
		case "baseurl":
			// only the first mirror of a multi-line baseurl is used
			rc.URL = firstField(val)
		case "repo_gpgcheck":
			rc.RepoGPGCheck = (val == "1")
		case "enabled":
			rc.Enabled = (val == "1")
		case "gpgkey":
			rc.GPGKey = firstField(val)
		}
	}
	if err := s.Err(); err != nil {
		return rc, err
	}
	return rc, nil
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
