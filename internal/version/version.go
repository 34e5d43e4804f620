// Package version holds build metadata injected via -ldflags.
package version

var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// UserAgent identifies li to completion endpoints.
func UserAgent() string {
	return "li/" + Version
}
