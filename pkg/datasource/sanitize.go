package datasource

import "regexp"

// Error messages from drivers can embed credentials or full connection URLs.
// Everything surfaced outside the engine goes through SanitizeError first.
var (
	passwordPattern = regexp.MustCompile(`(?i)password=\S+`)
	urlPattern      = regexp.MustCompile(`(?i)(jdbc:|postgres(ql)?://|mysql://|mongodb(\+srv)?://|redis://|https?://)[^\s"']+`)
)

// SanitizeError redacts credential material from an error message:
// password=... becomes password=*** and any connection URL becomes
// [connection-url].
func SanitizeError(msg string) string {
	msg = passwordPattern.ReplaceAllString(msg, "password=***")
	msg = urlPattern.ReplaceAllString(msg, "[connection-url]")
	return msg
}
