package environment

import (
	"net"
	"os"
	"strings"
)

// EnvVars lists the process-level variables consulted by Detect, in order.
var EnvVars = []string{"FEATURE_ENV", "APP_ENV", "GO_ENV", "ENVIRONMENT", "ENV"}

// Detector resolves the current environment.
// Resolution order: explicit value, process environment, hostname heuristic.
type Detector struct {
	Explicit  string
	LookupEnv func(string) (string, bool)
	Hostname  func() (string, error)
}

// Detect resolves the environment with the process defaults.
// An empty explicit value falls through to the next signal.
func Detect(explicit string) Environment {
	return Detector{Explicit: explicit}.Detect()
}

// Detect runs the resolution chain.
func (d Detector) Detect() Environment {
	if d.Explicit != "" {
		return Parse(d.Explicit)
	}

	lookup := d.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range EnvVars {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return Parse(v)
		}
	}

	hostname := d.Hostname
	if hostname == nil {
		hostname = os.Hostname
	}
	host, err := hostname()
	if err != nil || host == "" {
		// Unknown host is treated as production so guarded features stay off.
		return Production
	}
	return FromHostname(host)
}

// FromHostname classifies a hostname.
// Local, private-network and staging-like hosts are non-production;
// everything else is production.
func FromHostname(host string) Environment {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return Production
	}

	if isLocalHost(h) {
		return Development
	}

	if ip := net.ParseIP(h); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return Development
		}
		return Production
	}

	for _, marker := range []string{"staging", "stage", "preview", "dev", "test", "qa", "sandbox"} {
		for _, label := range strings.FieldsFunc(h, func(r rune) bool { return r == '.' || r == '-' }) {
			if label == marker {
				return Staging
			}
		}
	}

	return Production
}

func isLocalHost(h string) bool {
	return h == "localhost" ||
		strings.HasSuffix(h, ".localhost") ||
		strings.HasSuffix(h, ".local") ||
		strings.HasSuffix(h, ".internal") ||
		strings.HasSuffix(h, ".lan")
}
