// Package version carries the build-time identity of the firmware.
//
//	tinygo build -ldflags "-X presenter-fw/version.Revision=$(git rev-parse --short HEAD)"
package version

var (
	Version  = "0.1.0"
	Revision = ""
)

// String is the firmware revision reported to peers: Revision when set,
// otherwise Version.
func String() string {
	if Revision != "" {
		return Revision
	}
	return Version
}
