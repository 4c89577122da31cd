package version

// Version is the application version, overridden at build time via
// -ldflags "-X github.com/fibratrack/fibratrack-backend/internal/version.Version=v1.2.3".
var Version = "dev"
