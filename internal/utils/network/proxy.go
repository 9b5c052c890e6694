package network

import (
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/http/httpproxy"
)

// ProxyConfig is the process-wide proxy setting, read once from the
// environment at startup and injected into the HTTP client.
type ProxyConfig struct {
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ProxyFromEnviron captures proxy settings from environ (os.Environ format).
// Lowercase names win over uppercase ones, as curl and apt do.
func ProxyFromEnviron(environ []string) ProxyConfig {
	env := make(map[string]string)
	for _, kv := range environ {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}
	pick := func(name string) string {
		if v := env[strings.ToLower(name)]; v != "" {
			return v
		}
		return env[strings.ToUpper(name)]
	}
	return ProxyConfig{
		HTTPProxy:  pick("http_proxy"),
		HTTPSProxy: pick("https_proxy"),
		NoProxy:    pick("no_proxy"),
	}
}

// CaptureProxy reads the proxy environment of the current process.
func CaptureProxy() ProxyConfig {
	return ProxyFromEnviron(os.Environ())
}

// IsZero reports whether no proxy is configured.
func (p ProxyConfig) IsZero() bool {
	return p.HTTPProxy == "" && p.HTTPSProxy == ""
}

// ProxyFunc returns a transport proxy selector bound to this configuration.
func (p ProxyConfig) ProxyFunc() func(*http.Request) (*url.URL, error) {
	cfg := &httpproxy.Config{
		HTTPProxy:  p.HTTPProxy,
		HTTPSProxy: p.HTTPSProxy,
		NoProxy:    p.NoProxy,
	}
	fn := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

var credentialsRe = regexp.MustCompile(`(https?://[^:/@]+:)([^@]+)(@)`)

// MaskCredentials hides the password part of a proxy URL for logging.
func MaskCredentials(s string) string {
	return credentialsRe.ReplaceAllString(s, "${1}****${3}")
}

// String renders the configuration with credentials masked.
func (p ProxyConfig) String() string {
	return "http_proxy=" + MaskCredentials(p.HTTPProxy) +
		" https_proxy=" + MaskCredentials(p.HTTPSProxy) +
		" no_proxy=" + p.NoProxy
}
