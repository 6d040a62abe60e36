package config

import "fmt"

// ProtocolVersion is the gateway registration protocol spoken by this build. Gateways
// accept workers with the same major version.
const ProtocolVersion = "1.0.0"

var (
	Version       = "dev"
	CommitHash    = "n/a"
	BuildTime     = "n/a"
	VersionString = fmt.Sprintf("%s-%s (%s)", Version, CommitHash, BuildTime)
)
