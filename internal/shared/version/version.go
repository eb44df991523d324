package version

// Version is overridden at build time with
// -ldflags "-X cppmsplit/internal/shared/version.Version=...".
var Version = "0.3.0"
