// Package version reports the build stamp of the scraper binary.
package version

// SchemaVersion identifies the output column contract written to every row.
// Bump it whenever a column is added, removed or changes type
const SchemaVersion = "1.0"

// BuildInfo holds version information about the binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Schema  string `json:"schema"`
}

// Info returns the build information. version, commit and date are set with
// -ldflags "-X 'github.com/georgenavi/esimdb-scraper/internal/core/version.version=v1.2.0'"
func Info() BuildInfo {
	return BuildInfo{
		Service: "esimdb-scrape",
		Version: version,
		Commit:  commit,
		Date:    date,
		Schema:  SchemaVersion,
	}
}

// UserAgent is the default User-Agent header for upstream requests
func UserAgent() string {
	return "esimdb-scraper/" + SchemaVersion + " (" + version + ")"
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
