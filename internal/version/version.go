package version

// Overridden at build time with -ldflags "-X aurora/internal/version.BuildDate=...".
var (
	AppName        = "Aurora"
	AppDescription = "Music and community bot with per-guild records"
	BuildDate      = ""
	GoVersion      = ""
)
