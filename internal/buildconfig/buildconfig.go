// Package buildconfig exposes values stamped in at link time, e.g.
//
//	go build -ldflags "-X github.com/Harshitk-cp/veritas/internal/buildconfig.version=v1.2.0"
package buildconfig

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// String is the one-line form printed by --version.
func String() string {
	s := version + " (" + commit + ")"
	if buildDate != "" {
		s += " built " + buildDate
	}
	return s
}

// VersionInfo is the form reported by the metrics endpoint.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
	}
	if buildDate != "" {
		info["build_date"] = buildDate
	}
	return info
}
