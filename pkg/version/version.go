// Package version holds build identity, set at build time via ldflags.
package version

// AppName identifies the engine to remote services (MCP handshake, UA).
const AppName = "glean"

// Version is overridden by the release build.
var Version = "dev"
