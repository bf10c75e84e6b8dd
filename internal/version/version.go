package version

// Version contains the graspci version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X github.com/eegrasp/graspci/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return "graspci " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
